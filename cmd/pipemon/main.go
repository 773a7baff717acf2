// Command pipemon serves the pipeline health API and runs the workflows from
// the command line.
package main

import (
	"context"
	"log/slog"
	"os"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	c := &cli{}
	defer c.shutdown()

	root := c.rootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
