package handlers

import (
	"bytes"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"socdash/dashboard/services/monitor/internal/chart"
)

// NewChartHTMLHandler serves the canvas as an interactive HTML chart.
func NewChartHTMLHandler(canvas *chart.Canvas, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := canvas.WriteHTML(&buf); err != nil {
			writeChartError(w, logger, canvas.ID(), err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(buf.Bytes())
	}
}

// NewChartPNGHandler serves the canvas as a PNG image.
func NewChartPNGHandler(canvas *chart.Canvas, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := canvas.WritePNG(&buf); err != nil {
			writeChartError(w, logger, canvas.ID(), err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(buf.Bytes())
	}
}

func writeChartError(w http.ResponseWriter, logger *zap.Logger, id string, err error) {
	if errors.Is(err, chart.ErrNoChart) {
		writeError(w, http.StatusNotFound, "no chart rendered yet")
		return
	}
	logger.Error("chart render failed", zap.String("canvas", id), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "chart render failed")
}
