package httpserver

import (
	"net/http"

	"go.uber.org/zap"

	"socdash/dashboard/services/monitor/internal/chart"
	"socdash/dashboard/services/monitor/internal/http/handlers"
	"socdash/dashboard/services/monitor/internal/http/middleware"
)

// RouterDeps collects handler dependencies.
type RouterDeps struct {
	Dashboard     *handlers.DashboardHandlers
	LoginHandler  http.HandlerFunc
	HealthHandler http.HandlerFunc
	WSHandler     http.HandlerFunc
	ProfileCanvas *chart.Canvas
	LiveCanvas    *chart.Canvas
	Logger        *zap.Logger
}

// NewRouter wires HTTP routes. authMiddleware guards operator actions.
func NewRouter(deps RouterDeps, authMiddleware func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/", method(http.MethodGet, handlers.NewPageHandler()))
	mux.Handle("/health", method(http.MethodGet, deps.HealthHandler))
	mux.Handle("/ws", method(http.MethodGet, deps.WSHandler))
	mux.Handle("/api/state", method(http.MethodGet, http.HandlerFunc(deps.Dashboard.State)))
	mux.Handle("/api/login", method(http.MethodPost, deps.LoginHandler))

	authenticated := func(handler http.HandlerFunc) http.Handler {
		return middleware.Chain(handler, authMiddleware)
	}

	mux.Handle("/api/upload", method(http.MethodPost, authenticated(deps.Dashboard.Upload)))
	mux.Handle("/api/train", method(http.MethodPost, authenticated(deps.Dashboard.Train)))
	mux.Handle("/api/predict", method(http.MethodPost, authenticated(deps.Dashboard.Predict)))
	mux.Handle("/api/recording", method(http.MethodPost, authenticated(deps.Dashboard.Recording)))
	mux.Handle("/api/model", method(http.MethodPost, authenticated(deps.Dashboard.Model)))

	for _, canvas := range []*chart.Canvas{deps.ProfileCanvas, deps.LiveCanvas} {
		mux.Handle("/charts/"+canvas.ID()+".html", method(http.MethodGet, handlers.NewChartHTMLHandler(canvas, deps.Logger)))
		mux.Handle("/charts/"+canvas.ID()+".png", method(http.MethodGet, handlers.NewChartPNGHandler(canvas, deps.Logger)))
	}

	return mux
}

func method(expected string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
