package capture

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MinRows is the smallest raw log Finalize accepts.
const MinRows = 10

var (
	// ErrNotEnoughData is returned when the raw log has fewer than MinRows samples.
	ErrNotEnoughData = errors.New("capture: not enough data points")
	// ErrZeroDuration is returned when all samples share one timestamp.
	ErrZeroDuration = errors.New("capture: test duration is zero")
)

// Summary describes a finalized drain test.
type Summary struct {
	Rows     int
	Duration time.Duration
}

type rawRow struct {
	t      float64
	fields []string
}

// Finalize reads the raw log, sorts it by time and writes finalPath with a SoC column that
// falls linearly from 100 at the first sample to 0 at the last.
func Finalize(rawPath, finalPath string) (Summary, error) {
	in, err := os.Open(rawPath)
	if err != nil {
		return Summary{}, fmt.Errorf("open raw log: %w", err)
	}
	defer in.Close()

	header, rows, err := readRaw(in)
	if err != nil {
		return Summary{}, err
	}
	if len(rows) < MinRows {
		return Summary{}, fmt.Errorf("%w: %d rows", ErrNotEnoughData, len(rows))
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].t < rows[j].t })
	tmin, tmax := rows[0].t, rows[len(rows)-1].t
	duration := tmax - tmin
	if duration <= 0 {
		return Summary{}, ErrZeroDuration
	}

	out, err := os.Create(finalPath)
	if err != nil {
		return Summary{}, fmt.Errorf("create final csv: %w", err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := w.Write(append(append([]string{}, header...), "SoC")); err != nil {
		return Summary{}, err
	}
	for _, row := range rows {
		soc := LinearSoC(row.t, tmin, duration)
		if err := w.Write(append(row.fields, strconv.FormatFloat(soc, 'f', 1, 64))); err != nil {
			return Summary{}, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return Summary{}, fmt.Errorf("write final csv: %w", err)
	}

	return Summary{
		Rows:     len(rows),
		Duration: time.Duration(duration * float64(time.Second)),
	}, nil
}

// LinearSoC maps a timestamp to 100..0 over the test, rounded to one decimal.
func LinearSoC(t, start, duration float64) float64 {
	soc := 100 - (t-start)/duration*100
	soc = math.Round(soc*10) / 10
	return math.Max(0, math.Min(100, soc))
}

// readRaw skips rows whose width differs from the header or whose time is not numeric.
func readRaw(r io.Reader) ([]string, []rawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, ErrNotEnoughData
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read raw header: %w", err)
	}

	var rows []rawRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				continue
			}
			return nil, nil, fmt.Errorf("read raw log: %w", err)
		}
		if len(record) != len(header) {
			continue
		}
		t, err := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
		if err != nil || math.IsNaN(t) {
			continue
		}
		rows = append(rows, rawRow{t: t, fields: record})
	}
	return header, rows, nil
}
