package handlers

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"socdash/dashboard/services/monitor/internal/models"
	"socdash/dashboard/services/monitor/internal/service"
)

const maxUploadBytes = 32 << 20

// SnapshotSource exposes the latest poll result.
type SnapshotSource interface {
	Last() models.Snapshot
}

// DashboardHandlers serves operator actions and state.
type DashboardHandlers struct {
	svc          *service.DashboardService
	snapshots    SnapshotSource
	authRequired bool
	logger       *zap.Logger
}

// NewDashboardHandlers returns handler struct.
func NewDashboardHandlers(svc *service.DashboardService, snapshots SnapshotSource, authRequired bool, logger *zap.Logger) *DashboardHandlers {
	return &DashboardHandlers{svc: svc, snapshots: snapshots, authRequired: authRequired, logger: logger}
}

type sessionView struct {
	UserID     string               `json:"user_id"`
	Headers    []string             `json:"headers"`
	Mapping    models.ColumnMapping `json:"mapping"`
	ModelType  string               `json:"model_type"`
	Trained    bool                 `json:"trained"`
	Highlights map[string]string    `json:"highlights"`
	MaxVoltage float64              `json:"max_voltage"`
}

type stateResponse struct {
	Snapshot     models.Snapshot `json:"snapshot"`
	Session      sessionView     `json:"session"`
	AuthRequired bool            `json:"auth_required"`
}

// State handles GET /api/state.
func (h *DashboardHandlers) State(w http.ResponseWriter, r *http.Request) {
	sess := h.svc.Session()
	_, trained := sess.Active()
	headers := sess.Headers()
	if headers == nil {
		headers = []string{}
	}
	writeJSON(w, http.StatusOK, stateResponse{
		Snapshot: h.snapshots.Last(),
		Session: sessionView{
			UserID:     sess.UserID(),
			Headers:    headers,
			Mapping:    sess.Mapping(),
			ModelType:  sess.ModelType(),
			Trained:    trained,
			Highlights: sess.Highlights(),
			MaxVoltage: sess.MaxVoltage(),
		},
		AuthRequired: h.authRequired,
	})
}

// Upload handles POST /api/upload (multipart field "file").
func (h *DashboardHandlers) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	out, err := h.svc.Upload(r.Context(), header.Filename, data)
	if err != nil {
		writeServiceError(w, h.logger, "upload", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Train handles POST /api/train.
func (h *DashboardHandlers) Train(w http.ResponseWriter, r *http.Request) {
	var in service.TrainInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	out, err := h.svc.Train(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.logger, "train", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Predict handles POST /api/predict.
func (h *DashboardHandlers) Predict(w http.ResponseWriter, r *http.Request) {
	var in service.PredictInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	out, err := h.svc.ManualPredict(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.logger, "predict", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Recording handles POST /api/recording.
func (h *DashboardHandlers) Recording(w http.ResponseWriter, r *http.Request) {
	var in struct {
		MinV float64 `json:"min_v"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	status, err := h.svc.ToggleRecording(r.Context(), in.MinV)
	if err != nil {
		writeServiceError(w, h.logger, "toggle_gen", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_recording": status.IsRecording})
}

// Model handles POST /api/model, switching the live model type without retraining.
func (h *DashboardHandlers) Model(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ModelType string `json:"model_type"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.ModelType != models.ModelFast && in.ModelType != models.ModelPro {
		writeError(w, http.StatusBadRequest, "model_type must be fast or pro")
		return
	}
	h.svc.Session().SetModelType(in.ModelType)
	writeJSON(w, http.StatusOK, map[string]string{"model_type": in.ModelType})
}
