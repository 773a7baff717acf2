// Package ui serves the embedded dashboard.
package ui

import (
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/johnwards/pipemon/web"
)

// RegisterRoutes registers the dashboard at /_ui/. Unknown paths under the
// prefix fall back to index.html so client-side routes resolve.
func RegisterRoutes(mux *http.ServeMux) {
	distFS, err := fs.Sub(web.DistFS, "dist")
	if err != nil {
		panic("failed to create sub filesystem: " + err.Error())
	}
	fileServer := http.StripPrefix("/_ui/", http.FileServer(http.FS(distFS)))

	mux.Handle("GET /_ui", http.RedirectHandler("/_ui/", http.StatusMovedPermanently))
	mux.HandleFunc("GET /_ui/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/_ui")
		name = strings.TrimPrefix(name, "/")
		if name != "" && name != "index.html" {
			if st, err := fs.Stat(distFS, name); err == nil && !st.IsDir() {
				fileServer.ServeHTTP(w, r)
				return
			}
		}

		index, err := fs.ReadFile(distFS, "index.html")
		if err != nil {
			http.Error(w, "index.html not found", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(index)
	})
}
