// Package csvmap guesses which CSV header holds which telemetry field.
package csvmap

import (
	"strings"

	"socdash/dashboard/services/monitor/internal/clients"
	"socdash/dashboard/services/monitor/internal/models"
)

// tokens are checked against lower-cased headers. Single-letter tokens must equal the whole
// header; longer ones match anywhere in it.
var tokens = map[string][]string{
	models.FieldTime:    {"time", "sec"},
	models.FieldVoltage: {"volt", "v"},
	models.FieldCurrent: {"curr", "amp", "i"},
	models.FieldTemp:    {"temp", "deg"},
	models.FieldSoC:     {"soc", "perc"},
}

// Tokens returns the match tokens registered for field.
func Tokens(field string) []string {
	return append([]string(nil), tokens[field]...)
}

// Guess maps every field to the first header matching one of its tokens.
// Fields without a match stay empty.
func Guess(headers []string) models.ColumnMapping {
	var m models.ColumnMapping
	for _, field := range models.Fields {
		if idx := FirstMatch(headers, field); idx >= 0 {
			m.Set(field, headers[idx])
		}
	}
	return m
}

// FirstMatch returns the index of the first header matching field, or -1.
func FirstMatch(headers []string, field string) int {
	for i, h := range headers {
		if Matches(h, field) {
			return i
		}
	}
	return -1
}

// Matches reports whether header qualifies for field.
func Matches(header, field string) bool {
	h := strings.ToLower(strings.TrimSpace(header))
	if h == "" {
		return false
	}
	for _, tok := range tokens[field] {
		if len(tok) == 1 {
			if h == tok {
				return true
			}
			continue
		}
		if strings.Contains(h, tok) {
			return true
		}
	}
	return false
}

// Missing lists fields of m that have no header.
func Missing(m models.ColumnMapping) []string {
	var out []string
	for _, field := range models.Fields {
		if strings.TrimSpace(m.Get(field)) == "" {
			out = append(out, field)
		}
	}
	return out
}

// Validate checks that every field is mapped to one of headers. A nil headers slice skips the
// membership check.
func Validate(m models.ColumnMapping, headers []string) error {
	if missing := Missing(m); len(missing) > 0 {
		return clients.NewValidationError("mapping", "unmapped fields: "+strings.Join(missing, ", "))
	}
	if headers == nil {
		return nil
	}
	known := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		known[h] = struct{}{}
	}
	for _, field := range models.Fields {
		if _, ok := known[m.Get(field)]; !ok {
			return clients.NewValidationError("mapping", field+" is mapped to unknown column "+m.Get(field))
		}
	}
	return nil
}

// Index returns the column index of each field's header; unmapped or unknown fields get -1.
func Index(m models.ColumnMapping, headers []string) map[string]int {
	out := make(map[string]int, len(models.Fields))
	for _, field := range models.Fields {
		out[field] = -1
		want := m.Get(field)
		if want == "" {
			continue
		}
		for i, h := range headers {
			if h == want {
				out[field] = i
				break
			}
		}
	}
	return out
}
