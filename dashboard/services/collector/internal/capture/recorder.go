// Package capture records battery drain tests from the sensor board's serial stream and turns
// the raw log into a training CSV with a SoC column.
package capture

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/tarm/serial"
	"go.uber.org/zap"
)

// RawHeader is written to a new raw log.
var RawHeader = []string{"Time (s)", "Voltage (V)", "Current (A)", "Temp (C)"}

const (
	dataStartMarker   = "DATA_START"
	minFields         = 4
	defaultRetryDelay = 2 * time.Second
	serialReadTimeout = 3 * time.Second
)

// Opener opens the sample stream. The returned reader yields io.EOF when the stream ends.
type Opener func(ctx context.Context) (io.ReadCloser, error)

// Recorder appends sensor lines to the raw CSV log.
type Recorder struct {
	path       string
	open       Opener
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewRecorder builds a recorder writing to path.
func NewRecorder(path string, open Opener, logger *zap.Logger) *Recorder {
	return &Recorder{path: path, open: open, retryDelay: defaultRetryDelay, logger: logger}
}

// Run keeps the stream open until ctx ends, reconnecting after a short delay whenever the
// stream fails or ends.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		r.logger.Info("connecting to sensor stream")
		src, err := r.open(ctx)
		if err == nil {
			r.logger.Info("connected, waiting for data")
			err = r.Record(ctx, src)
			src.Close()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Warn("connection lost, retrying", zap.Error(err), zap.Duration("delay", r.retryDelay))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.retryDelay):
		}
	}
}

// Record copies complete sample lines from src to the raw log until src ends.
func (r *Recorder) Record(ctx context.Context, src io.Reader) error {
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open raw log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat raw log: %w", err)
	}
	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := writeRow(w, RawHeader); err != nil {
			return err
		}
	}

	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		parts, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		if err := writeRow(w, parts); err != nil {
			return err
		}
		r.logger.Info("sample",
			zap.String("time_s", parts[0]),
			zap.String("voltage_v", parts[1]),
			zap.String("current_a", parts[2]),
			zap.String("temp_c", parts[3]),
		)
	}
	return scanner.Err()
}

func parseLine(line string) ([]string, bool) {
	line = strings.TrimSpace(strings.ToValidUTF8(line, ""))
	if line == "" || strings.Contains(line, dataStartMarker) {
		return nil, false
	}
	parts := strings.Split(line, ",")
	if len(parts) < minFields {
		return nil, false
	}
	return parts, true
}

func writeRow(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write raw log: %w", err)
	}
	w.Flush()
	return w.Error()
}

// SerialOpener opens the named serial port. Read timeouts on an idle port are retried until
// ctx ends.
func SerialOpener(name string, baud int) Opener {
	return func(ctx context.Context) (io.ReadCloser, error) {
		port, err := serial.OpenPort(&serial.Config{Name: name, Baud: baud, ReadTimeout: serialReadTimeout})
		if err != nil {
			return nil, fmt.Errorf("open serial %s: %w", name, err)
		}
		if err := port.Flush(); err != nil {
			port.Close()
			return nil, fmt.Errorf("flush serial %s: %w", name, err)
		}
		return &idleReader{ctx: ctx, src: port}, nil
	}
}

type idleReader struct {
	ctx context.Context
	src io.ReadCloser
}

func (r *idleReader) Read(b []byte) (int, error) {
	for {
		n, err := r.src.Read(b)
		if n > 0 || (err != nil && !errors.Is(err, io.EOF)) {
			return n, err
		}
		if r.ctx.Err() != nil {
			return 0, io.EOF
		}
	}
}

func (r *idleReader) Close() error {
	return r.src.Close()
}
