package session

import "socdash/dashboard/services/monitor/internal/models"

// InitialSoC is the display value before any reading has been clamped in.
const InitialSoC = 100.0

// DisplayMemory keeps the values shown to the operator. SoC only goes down; duration only goes
// down and ignores the unknown sentinel. Not safe for concurrent use on its own.
type DisplayMemory struct {
	soc      float64
	duration float64
}

// NewDisplayMemory returns memory at 100% / unknown.
func NewDisplayMemory() DisplayMemory {
	return DisplayMemory{soc: InitialSoC, duration: models.UnknownDuration}
}

// Observe clamps a raw SoC and remaining-time candidate into the memory and returns the result.
func (d *DisplayMemory) Observe(rawSoC, rawDuration float64) models.Display {
	if rawSoC <= d.soc {
		d.soc = rawSoC
	}
	if rawDuration <= d.duration && rawDuration != models.UnknownDuration {
		d.duration = rawDuration
	}
	return d.Value()
}

// Reset discards all history.
func (d *DisplayMemory) Reset() {
	*d = NewDisplayMemory()
}

// Value returns the current display values.
func (d DisplayMemory) Value() models.Display {
	return models.Display{SoC: d.soc, Duration: d.duration}
}
