package csvmap

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socdash/dashboard/services/monitor/internal/clients"
	"socdash/dashboard/services/monitor/internal/models"
)

func TestGuessTypicalHeaders(t *testing.T) {
	m := Guess([]string{"Time(s)", "Voltage", "Current", "Temp", "SoC%"})
	assert.Equal(t, models.ColumnMapping{
		Time:    "Time(s)",
		Voltage: "Voltage",
		Current: "Current",
		Temp:    "Temp",
		SoC:     "SoC%",
	}, m)
}

func TestGuessCollectorHeaders(t *testing.T) {
	m := Guess([]string{"Time (s)", "Voltage (V)", "Current (A)", "Temp (C)", "SoC"})
	assert.Equal(t, "Time (s)", m.Time)
	assert.Equal(t, "Voltage (V)", m.Voltage)
	assert.Equal(t, "Current (A)", m.Current)
	assert.Equal(t, "Temp (C)", m.Temp)
	assert.Equal(t, "SoC", m.SoC)
}

func TestGuessShortHeadersNeedExactMatch(t *testing.T) {
	m := Guess([]string{"t_sec", "V", "I", "deg_c", "percent"})
	assert.Equal(t, "t_sec", m.Time)
	assert.Equal(t, "V", m.Voltage)
	assert.Equal(t, "I", m.Current)
	assert.Equal(t, "deg_c", m.Temp)
	assert.Equal(t, "percent", m.SoC)

	// "Time(s)" contains an "i" but is not a current column.
	m = Guess([]string{"Time(s)", "Voltage"})
	assert.Empty(t, m.Current)
}

func TestGuessFirstMatchWins(t *testing.T) {
	m := Guess([]string{"cell_temp", "ambient_temp", "Voltage1", "Voltage2"})
	assert.Equal(t, "cell_temp", m.Temp)
	assert.Equal(t, "Voltage1", m.Voltage)
}

func TestGuessUnmatchedStaysEmpty(t *testing.T) {
	m := Guess([]string{"a", "b"})
	assert.Equal(t, models.ColumnMapping{}, m)
	assert.Equal(t, models.Fields, Missing(m))

	assert.Equal(t, models.ColumnMapping{}, Guess(nil))
}

func TestGuessOnlySelectsQualifyingHeaders(t *testing.T) {
	headerSets := [][]string{
		{"Time(s)", "Voltage", "Current", "Temp", "SoC%"},
		{"x", "amp_hours", "Seconds", "DEGREES", "charge_perc", "volts"},
		{"i", "v", "time", "time", "soc", "soc2"},
		{"", " ", "Temperature", "battery_soc"},
	}
	for _, headers := range headerSets {
		m := Guess(headers)
		for _, field := range models.Fields {
			got := m.Get(field)
			if got == "" {
				assert.Equal(t, -1, FirstMatch(headers, field))
				continue
			}
			lower := strings.ToLower(got)
			found := false
			for _, tok := range Tokens(field) {
				if strings.Contains(lower, tok) {
					found = true
				}
			}
			assert.True(t, found, "%s mapped to %q", field, got)
			assert.Equal(t, headers[FirstMatch(headers, field)], got)
		}
	}
}

func TestValidate(t *testing.T) {
	headers := []string{"Time(s)", "Voltage", "Current", "Temp", "SoC%"}
	require.NoError(t, Validate(Guess(headers), headers))

	m := Guess(headers)
	m.SoC = ""
	err := Validate(m, headers)
	require.Error(t, err)
	assert.True(t, clients.IsValidation(err))
	assert.Contains(t, err.Error(), "soc")

	m = Guess(headers)
	m.Temp = "Ambient"
	assert.True(t, clients.IsValidation(Validate(m, headers)))
	assert.NoError(t, Validate(m, nil))
}

func TestIndex(t *testing.T) {
	headers := []string{"Time(s)", "Voltage", "Current", "Temp", "SoC%"}
	idx := Index(Guess(headers), headers)
	assert.Equal(t, map[string]int{"time": 0, "voltage": 1, "current": 2, "temp": 3, "soc": 4}, idx)

	idx = Index(models.ColumnMapping{Time: "Time(s)"}, headers)
	assert.Equal(t, 0, idx["time"])
	assert.Equal(t, -1, idx["soc"])
}
