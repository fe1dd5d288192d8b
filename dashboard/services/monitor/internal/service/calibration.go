package service

// Calibration constants for turning a target SoC into a voltage the model understands.
const (
	MinVoltage        = 9.0
	ManualLoadCurrent = 0.6
	ManualTemperature = 25.0
	LowLoadMultiplier = 3.0
	DefaultRecordingV = MinVoltage

	correctionGain   = 0.8301
	correctionOffset = 2.7903
)

// TargetVoltage interpolates linearly between MinVoltage (0%) and maxVoltage (100%).
func TargetVoltage(maxVoltage, targetSoC float64) float64 {
	return MinVoltage + (targetSoC/100)*(maxVoltage-MinVoltage)
}

// RawVoltage inverts the backend's sensor correction v = raw*gain + offset, so that the
// backend sees the wanted voltage after correcting.
func RawVoltage(v float64) float64 {
	return (v - correctionOffset) / correctionGain
}
