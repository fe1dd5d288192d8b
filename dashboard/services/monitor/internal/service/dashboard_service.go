package service

import (
	"bytes"
	"context"
	"io"
	"math"
	"net/http"

	"go.uber.org/zap"

	"socdash/dashboard/services/monitor/internal/chart"
	"socdash/dashboard/services/monitor/internal/clients"
	"socdash/dashboard/services/monitor/internal/csvmap"
	"socdash/dashboard/services/monitor/internal/csvparse"
	"socdash/dashboard/services/monitor/internal/models"
	"socdash/dashboard/services/monitor/internal/session"
)

// Backend is the subset of the battery client used by operator actions.
type Backend interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*models.UploadResult, error)
	Train(ctx context.Context, req models.TrainRequest) (*models.TrainResult, error)
	Predict(ctx context.Context, req models.PredictRequest) (*models.PredictResult, error)
	ToggleGeneration(ctx context.Context, minV float64) (*models.RecordingStatus, error)
}

// Options tune how requests are built.
type Options struct {
	// VoltageCorrection sends manual voltages pre-inverted for a backend that corrects sensor readings.
	VoltageCorrection bool
}

// DashboardService implements the operator actions.
type DashboardService struct {
	backend Backend
	session *session.Session
	profile *chart.Canvas
	opts    Options
	logger  *zap.Logger
}

// UploadOutput is returned after a file upload.
type UploadOutput struct {
	UserID   string               `json:"user_id"`
	Headers  []string             `json:"headers"`
	Mapping  models.ColumnMapping `json:"mapping"`
	Rows     *int                 `json:"rows,omitempty"`
	Plotted  int                  `json:"plotted"`
	Unmapped []string             `json:"unmapped"`
}

// TrainInput carries the operator-confirmed mapping.
type TrainInput struct {
	Mapping   models.ColumnMapping `json:"mapping"`
	ModelType string               `json:"model_type"`
}

// TrainOutput summarises a successful training run.
type TrainOutput struct {
	ModelType  string            `json:"model_type"`
	Highlights map[string]string `json:"highlights"`
	MaxVoltage *float64          `json:"max_voltage,omitempty"`
	Points     int               `json:"points"`
}

// PredictInput is the manual prediction form.
type PredictInput struct {
	MaxVoltage float64 `json:"max_voltage"`
	TargetSoC  float64 `json:"target_soc"`
}

// PredictOutput is the remaining-time range for a manual prediction.
type PredictOutput struct {
	Voltage     float64  `json:"voltage"`
	SentVoltage float64  `json:"sent_voltage"`
	HighLoadMin float64  `json:"high_load_min"`
	LowLoadMin  float64  `json:"low_load_min"`
	SoC         *float64 `json:"soc,omitempty"`
	Engine      string   `json:"engine,omitempty"`
}

// NewDashboardService builds service.
func NewDashboardService(
	backend Backend,
	sess *session.Session,
	profile *chart.Canvas,
	opts Options,
	logger *zap.Logger,
) *DashboardService {
	return &DashboardService{
		backend: backend,
		session: sess,
		profile: profile,
		opts:    opts,
		logger:  logger,
	}
}

// Session exposes the shared session.
func (s *DashboardService) Session() *session.Session {
	return s.session
}

// Upload charts the file locally, then sends it to the backend. The local chart is drawn even
// when the upload fails.
func (s *DashboardService) Upload(ctx context.Context, filename string, data []byte) (*UploadOutput, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, clients.NewValidationError("file", "choose a non-empty CSV file")
	}
	text := string(data)
	headers := csvparse.ReadHeaders(text)
	guessed := csvmap.Guess(headers)
	plotted := s.renderProfile(text, headers, guessed)

	res, err := s.backend.Upload(ctx, filename, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if len(res.Headers) > 0 {
		headers = res.Headers
		guessed = csvmap.Guess(headers)
	}
	s.session.Uploaded(res.UserID, headers, guessed)

	s.logger.Info("file uploaded",
		zap.String("file", filename),
		zap.String("user_id", res.UserID),
		zap.Int("headers", len(headers)),
		zap.Int("plotted", plotted),
	)
	return &UploadOutput{
		UserID:   res.UserID,
		Headers:  headers,
		Mapping:  guessed,
		Rows:     res.Rows,
		Plotted:  plotted,
		Unmapped: csvmap.Missing(guessed),
	}, nil
}

// renderProfile draws the SoC profile when a SoC column is mapped, else the voltage profile.
// Unmapped time and voltage fall back to the first two columns.
func (s *DashboardService) renderProfile(text string, headers []string, m models.ColumnMapping) int {
	idx := csvmap.Index(m, headers)
	timeCol := idx[models.FieldTime]
	if timeCol < 0 {
		timeCol = 0
	}

	spec := chart.Spec{XName: "Time (Minutes)"}
	valueCol := idx[models.FieldSoC]
	if valueCol >= 0 {
		spec.Title, spec.YName = "SoC Profile (%)", "SoC (%)"
	} else {
		valueCol = idx[models.FieldVoltage]
		if valueCol < 0 {
			valueCol = 1
		}
		spec.Title, spec.YName = "Voltage Profile (V)", "Voltage (V)"
	}

	// a file with no plottable rows still replaces the previous chart
	series := csvparse.ProfileSeries(text, timeCol, valueCol)
	spec.Labels = series.Labels
	spec.Series = []chart.Series{{Name: spec.Title, Values: series.Values}}
	s.profile.Render(spec)
	return series.Len()
}

// Train validates the mapping and trains a model on the uploaded file.
func (s *DashboardService) Train(ctx context.Context, in TrainInput) (*TrainOutput, error) {
	userID := s.session.UserID()
	if userID == "" {
		return nil, clients.NewValidationError("file", "upload a CSV before training")
	}
	modelType := s.session.ResolveModel(in.ModelType)
	if modelType != models.ModelFast && modelType != models.ModelPro {
		return nil, clients.NewValidationError("model_type", "unknown model type "+modelType)
	}
	if err := csvmap.Validate(in.Mapping, s.session.Headers()); err != nil {
		return nil, err
	}

	res, err := s.backend.Train(ctx, models.TrainRequest{
		UserID:    userID,
		Mapping:   in.Mapping,
		ModelType: modelType,
	})
	if err != nil {
		return nil, err
	}
	if !res.Succeeded() {
		return nil, &clients.ApplicationError{Op: "train", Status: http.StatusOK, Message: "training finished with status " + res.Status}
	}

	var maxV float64
	if res.MaxVoltage != nil {
		maxV = *res.MaxVoltage
	}
	s.session.Trained(in.Mapping, modelType, res.Highlights, maxV)

	points := 0
	if res.GraphData != nil {
		series := csvparse.SeriesFromSeconds(res.GraphData.Time, res.GraphData.SoC)
		points = series.Len()
		s.profile.Render(chart.Spec{
			Title:  "Training Curve: SoC %",
			XName:  "Time (Minutes)",
			YName:  "SoC (%)",
			Labels: series.Labels,
			Series: []chart.Series{{Name: "SoC %", Values: series.Values}},
		})
	}

	s.logger.Info("model trained",
		zap.String("user_id", userID),
		zap.String("model_type", modelType),
		zap.Float64("max_voltage", maxV),
		zap.Int("points", points),
	)

	highlights := res.Highlights
	if highlights == nil {
		highlights = map[string]string{}
	}
	return &TrainOutput{
		ModelType:  modelType,
		Highlights: highlights,
		MaxVoltage: res.MaxVoltage,
		Points:     points,
	}, nil
}

// ManualPredict estimates remaining time at a target SoC under the standard high load.
// The low-load figure is a fixed multiple of the model's answer.
func (s *DashboardService) ManualPredict(ctx context.Context, in PredictInput) (*PredictOutput, error) {
	if !positive(in.MaxVoltage) || !positive(in.TargetSoC) {
		return nil, clients.NewValidationError("input", "enter both Max Voltage and Target SoC")
	}

	voltage := TargetVoltage(in.MaxVoltage, in.TargetSoC)
	sent := voltage
	if s.opts.VoltageCorrection {
		sent = RawVoltage(voltage)
	}
	temp := ManualTemperature
	req := models.PredictRequest{
		Voltage:   sent,
		Current:   ManualLoadCurrent,
		Temp:      &temp,
		ModelType: s.session.ModelType(),
	}
	if model, ok := s.session.Active(); ok {
		req.UserID = model.UserID
	}

	res, err := s.backend.Predict(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.TimeRemainingMin == nil {
		return nil, &clients.ApplicationError{Op: "predict", Status: http.StatusOK, Message: "no remaining time in response"}
	}

	high := *res.TimeRemainingMin
	return &PredictOutput{
		Voltage:     voltage,
		SentVoltage: sent,
		HighLoadMin: high,
		LowLoadMin:  math.Round(high*LowLoadMultiplier*10) / 10,
		SoC:         res.SoC,
		Engine:      res.Engine,
	}, nil
}

// ToggleRecording flips backend recording. A non-positive minV uses DefaultRecordingV.
func (s *DashboardService) ToggleRecording(ctx context.Context, minV float64) (*models.RecordingStatus, error) {
	if !positive(minV) {
		minV = DefaultRecordingV
	}
	status, err := s.backend.ToggleGeneration(ctx, minV)
	if err != nil {
		return nil, err
	}
	s.logger.Info("recording toggled", zap.Bool("recording", status.IsRecording), zap.Float64("min_v", minV))
	return status, nil
}

func positive(v float64) bool {
	return !math.IsNaN(v) && v > 0
}
