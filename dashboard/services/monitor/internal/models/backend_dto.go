package models

// ColumnMapping maps logical fields to CSV headers. Empty means unmapped.
type ColumnMapping struct {
	Time    string `json:"time"`
	Voltage string `json:"voltage"`
	Current string `json:"current"`
	Temp    string `json:"temp"`
	SoC     string `json:"soc"`
}

// Get returns the header mapped to field.
func (m ColumnMapping) Get(field string) string {
	switch field {
	case FieldTime:
		return m.Time
	case FieldVoltage:
		return m.Voltage
	case FieldCurrent:
		return m.Current
	case FieldTemp:
		return m.Temp
	case FieldSoC:
		return m.SoC
	}
	return ""
}

// Set assigns header to field; unknown fields are ignored.
func (m *ColumnMapping) Set(field, header string) {
	switch field {
	case FieldTime:
		m.Time = header
	case FieldVoltage:
		m.Voltage = header
	case FieldCurrent:
		m.Current = header
	case FieldTemp:
		m.Temp = header
	case FieldSoC:
		m.SoC = header
	}
}

// UploadResult mirrors POST /upload.
type UploadResult struct {
	Status  string   `json:"status,omitempty"`
	UserID  string   `json:"user_id"`
	Headers []string `json:"headers"`
	Rows    *int     `json:"rows,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// TrainRequest is the body of POST /train.
type TrainRequest struct {
	UserID    string        `json:"user_id"`
	Mapping   ColumnMapping `json:"mapping"`
	ModelType string        `json:"model_type"`
}

// GraphData is the downsampled training curve returned by /train. Time is in seconds.
type GraphData struct {
	Time []float64 `json:"time"`
	SoC  []float64 `json:"soc"`
}

// TrainResult mirrors POST /train.
type TrainResult struct {
	Status     string            `json:"status"`
	Highlights map[string]string `json:"highlights,omitempty"`
	GraphData  *GraphData        `json:"graph_data,omitempty"`
	MaxVoltage *float64          `json:"max_voltage,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Succeeded reports a "success" training status.
func (r TrainResult) Succeeded() bool {
	return r.Status == "success"
}

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	UserID    string   `json:"user_id,omitempty"`
	ModelType string   `json:"model_type,omitempty"`
	Voltage   float64  `json:"voltage"`
	Current   float64  `json:"current"`
	Temp      *float64 `json:"temp,omitempty"`
	SoC       *float64 `json:"soc,omitempty"`
}

// PredictResult mirrors POST /predict.
type PredictResult struct {
	SoC              *float64 `json:"soc,omitempty"`
	TimeRemainingMin *float64 `json:"time_remaining_min,omitempty"`
	Engine           string   `json:"engine,omitempty"`
	Error            string   `json:"error,omitempty"`
}

// LiveData mirrors GET /get_data.
type LiveData struct {
	Voltage float64 `json:"voltage"`
	Current float64 `json:"current"`
	Temp    float64 `json:"temp"`
	SoC     float64 `json:"soc"`
	Error   string  `json:"error,omitempty"`
}

// LiveCurve mirrors GET /live_curve_data.
type LiveCurve struct {
	Times []float64 `json:"times"`
	SoCs  []float64 `json:"socs"`
	Error string    `json:"error,omitempty"`
}

// ToggleRequest is the body of POST /toggle_gen.
type ToggleRequest struct {
	MinV float64 `json:"min_v"`
}

// RecordingStatus mirrors POST /toggle_gen.
type RecordingStatus struct {
	IsRecording bool   `json:"is_recording"`
	Error       string `json:"error,omitempty"`
}
