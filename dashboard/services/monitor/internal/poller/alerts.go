package poller

import (
	"fmt"

	"socdash/dashboard/services/monitor/internal/models"
)

const (
	lowChargeThreshold = 10.0
	overheatThreshold  = 40.0
)

// Alerts derives threshold alerts from one raw reading. Nothing is remembered between calls.
func Alerts(raw models.Sample) []models.Alert {
	alerts := []models.Alert{}
	if raw.SoC < lowChargeThreshold {
		alerts = append(alerts, models.Alert{
			Kind:    models.AlertLowCharge,
			Message: "LOW VOLTAGE ALERT: Battery SoC is below 10%. Please charge!",
			Value:   raw.SoC,
		})
	}
	if raw.Temperature >= overheatThreshold {
		alerts = append(alerts, models.Alert{
			Kind:    models.AlertOverheat,
			Message: fmt.Sprintf("OVERTEMP ALERT: Battery is overheating at %.1f°C!", raw.Temperature),
			Value:   raw.Temperature,
		})
	}
	return alerts
}
