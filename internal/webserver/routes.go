package webserver

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/callaudit/callaudit/internal/webapi"
)

//go:embed static
var assets embed.FS

// registerRoutes sets up API and static routes on the given mux.
func registerRoutes(mux *http.ServeMux, cfg Config) error {
	webapi.RegisterRoutes(mux, cfg.Service)

	handler, err := staticHandler()
	if err != nil {
		return fmt.Errorf("failed to initialize static handler: %w", err)
	}
	mux.Handle("GET /", handler)
	return nil
}

// staticHandler serves the embedded upload page.
func staticHandler() (http.Handler, error) {
	staticFS, err := fs.Sub(assets, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to create sub filesystem for static: %w", err)
	}
	return http.FileServer(http.FS(staticFS)), nil
}
