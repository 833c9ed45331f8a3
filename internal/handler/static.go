package handler

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var staticFS embed.FS

// StaticHandler serves the embedded stylesheet and images under /static/.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// The directory is embedded at build time; Sub only fails on a bad name.
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServerFS(sub))
}
