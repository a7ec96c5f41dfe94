// ABOUTME: Serves the page script and icon embedded under static/
// ABOUTME: Sets explicit content types and revalidation cache headers

package webui

import (
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
)

// mimeFromExt returns the MIME type for a file extension.
// Falls back to the standard MIME database, then to application/octet-stream.
func mimeFromExt(ext string) string {
	switch ext {
	case ".js":
		return "application/javascript"
	case ".css":
		return "text/css; charset=utf-8"
	case ".svg":
		return "image/svg+xml"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}

// staticHandler serves embedded files. Paths are relative to static/
// (strip /static/ before calling). Files are not content hashed, so every
// response must be revalidated.
func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("webui: failed to create static sub filesystem: " + err.Error())
	}
	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		if ext := strings.ToLower(path.Ext(r.URL.Path)); ext != "" {
			w.Header().Set("Content-Type", mimeFromExt(ext))
		}
		w.Header().Set("Cache-Control", "no-cache")
		fileServer.ServeHTTP(w, r)
	})
}
