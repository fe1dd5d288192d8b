package models

import "time"

// UnknownDuration marks a remaining time that is not known yet. It is never compared as a number.
const UnknownDuration = 9999.0

// Field names used by column mappings and the train request.
const (
	FieldTime    = "time"
	FieldVoltage = "voltage"
	FieldCurrent = "current"
	FieldTemp    = "temp"
	FieldSoC     = "soc"
)

// Fields lists the logical telemetry fields in mapping order.
var Fields = []string{FieldTime, FieldVoltage, FieldCurrent, FieldTemp, FieldSoC}

// Model types understood by the backend.
const (
	ModelFast = "fast"
	ModelPro  = "pro"
)

// Sample is one telemetry reading. Time is in seconds.
type Sample struct {
	Time        float64 `json:"time"`
	Voltage     float64 `json:"voltage"`
	Current     float64 `json:"current"`
	Temperature float64 `json:"temp"`
	SoC         float64 `json:"soc"`
}

// ConnectionState is the poller's view of the backend.
type ConnectionState string

const (
	Connected    ConnectionState = "connected"
	Disconnected ConnectionState = "disconnected"
)

// AlertKind names a threshold alert.
type AlertKind string

const (
	AlertLowCharge AlertKind = "low_charge"
	AlertOverheat  AlertKind = "overheat"
)

// Alert is raised from instantaneous raw values on a single poll.
type Alert struct {
	Kind    AlertKind `json:"kind"`
	Message string    `json:"message"`
	Value   float64   `json:"value"`
}

// Display holds the smoothed values shown to the operator.
type Display struct {
	SoC      float64 `json:"soc"`
	Duration float64 `json:"duration"`
}

// DurationKnown reports whether Duration holds a real estimate.
func (d Display) DurationKnown() bool {
	return d.Duration != UnknownDuration
}

// Snapshot is the outcome of one poll cycle.
type Snapshot struct {
	Connection ConnectionState `json:"connection"`
	Raw        Sample          `json:"raw"`
	Display    Display         `json:"display"`
	Alerts     []Alert         `json:"alerts"`
	Engine     string          `json:"engine,omitempty"`
	Predicted  bool            `json:"predicted"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
