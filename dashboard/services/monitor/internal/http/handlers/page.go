package handlers

import (
	_ "embed"
	"net/http"
)

//go:embed page.html
var dashboardPage []byte

// NewPageHandler serves the dashboard page at GET /.
func NewPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(dashboardPage)
	}
}
