// Package web holds the dashboard assets served at /_ui/.
package web

import "embed"

// DistFS contains the dashboard from the dist directory.
//
//go:embed all:dist
var DistFS embed.FS
