// Package csvparse turns uploaded CSV text into numeric series for charting.
//
// Rows are split on plain commas; quoting is not supported because the telemetry files are
// produced by the collector and the backend, neither of which quotes fields.
package csvparse

import (
	"math"
	"strconv"
	"strings"
)

// Table holds parsed rows. Columns[i] lines up with the i-th requested column index.
type Table struct {
	Header  []string
	Columns [][]float64
	Skipped int
}

// Rows returns the number of accepted data rows.
func (t Table) Rows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0])
}

// Row returns the values of row i in requested-column order.
func (t Table) Row(i int) []float64 {
	out := make([]float64, len(t.Columns))
	for c := range t.Columns {
		out[c] = t.Columns[c][i]
	}
	return out
}

// ReadHeaders returns the trimmed fields of the first line.
func ReadHeaders(text string) []string {
	first, _, _ := strings.Cut(text, "\n")
	first = strings.TrimRight(first, "\r")
	if strings.TrimSpace(first) == "" {
		return nil
	}
	parts := strings.Split(first, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// Parse reads the given column indexes from every data line. Line 0 is the header. Rows with
// fewer fields than the highest requested index needs, or with a non-numeric value in a requested
// column, are skipped.
func Parse(text string, columns ...int) Table {
	table := Table{
		Header:  ReadHeaders(text),
		Columns: make([][]float64, len(columns)),
	}
	required := 0
	for _, c := range columns {
		if c+1 > required {
			required = c + 1
		}
	}

	lines := strings.Split(text, "\n")
	for i := 1; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < required {
			table.Skipped++
			continue
		}

		values := make([]float64, len(columns))
		ok := true
		for j, c := range columns {
			values[j] = parseFloat(fields[c])
			if math.IsNaN(values[j]) {
				ok = false
				break
			}
		}
		if !ok {
			table.Skipped++
			continue
		}
		for j := range columns {
			table.Columns[j] = append(table.Columns[j], values[j])
		}
	}
	return table
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Series is a chart-ready x/y sequence.
type Series struct {
	Labels []string
	Values []float64
}

// Len returns the number of points.
func (s Series) Len() int {
	return len(s.Values)
}

// ProfileSeries reads a time column (seconds) and a value column and converts time to minutes
// for labels. The parsed values themselves are not modified.
func ProfileSeries(text string, timeCol, valueCol int) Series {
	table := Parse(text, timeCol, valueCol)
	return SeriesFromSeconds(table.Columns[0], table.Columns[1])
}

// SeriesFromSeconds builds minute-labelled points from paired seconds/values slices.
// Extra entries in the longer slice are ignored.
func SeriesFromSeconds(seconds, values []float64) Series {
	n := len(seconds)
	if len(values) < n {
		n = len(values)
	}
	s := Series{
		Labels: make([]string, 0, n),
		Values: make([]float64, 0, n),
	}
	for i := 0; i < n; i++ {
		s.Labels = append(s.Labels, MinutesLabel(seconds[i]))
		s.Values = append(s.Values, values[i])
	}
	return s
}

// MinutesLabel formats seconds as minutes with one decimal.
func MinutesLabel(seconds float64) string {
	return strconv.FormatFloat(seconds/60, 'f', 1, 64)
}
