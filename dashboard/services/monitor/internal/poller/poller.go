// Package poller drives the live view: it polls the backend for readings, optionally asks the
// trained model for a prediction, smooths the result and tracks whether the backend is reachable.
package poller

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"socdash/dashboard/services/monitor/internal/chart"
	"socdash/dashboard/services/monitor/internal/models"
	"socdash/dashboard/services/monitor/internal/session"
)

// Clock abstracts time for the watchdog.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Backend is the subset of the battery client the poller needs.
type Backend interface {
	GetData(ctx context.Context) (*models.LiveData, error)
	Predict(ctx context.Context, req models.PredictRequest) (*models.PredictResult, error)
	LiveCurveData(ctx context.Context) (*models.LiveCurve, error)
}

// Sink receives every snapshot the poller produces.
type Sink interface {
	Publish(ctx context.Context, snap models.Snapshot) error
}

// Config holds loop timings.
type Config struct {
	PollInterval      time.Duration
	WatchdogInterval  time.Duration
	DisconnectTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.WatchdogInterval <= 0 {
		c.WatchdogInterval = time.Second
	}
	if c.DisconnectTimeout <= 0 {
		c.DisconnectTimeout = 3 * time.Second
	}
	return c
}

// Poller owns the connection state and the last snapshot.
type Poller struct {
	backend Backend
	session *session.Session
	live    *chart.Canvas
	clock   Clock
	cfg     Config
	logger  *zap.Logger

	mu          sync.RWMutex
	state       models.ConnectionState
	lastSuccess time.Time
	last        models.Snapshot
	sinks       []Sink
}

// New builds a poller. live may be nil when the live curve is not charted.
func New(backend Backend, sess *session.Session, live *chart.Canvas, clock Clock, cfg Config, logger *zap.Logger) *Poller {
	if clock == nil {
		clock = SystemClock
	}
	p := &Poller{
		backend: backend,
		session: sess,
		live:    live,
		clock:   clock,
		cfg:     cfg.withDefaults(),
		logger:  logger,
		state:   models.Disconnected,
	}
	p.last = models.Snapshot{
		Connection: models.Disconnected,
		Display:    sess.Display(),
		Alerts:     []models.Alert{},
	}
	return p
}

// AddSink registers a snapshot receiver.
func (p *Poller) AddSink(s Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, s)
}

// State returns the current connection state.
func (p *Poller) State() models.ConnectionState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Last returns the most recent snapshot, with the display reflecting any reset since.
func (p *Poller) Last() models.Snapshot {
	p.mu.RLock()
	snap := p.last
	snap.Connection = p.state
	p.mu.RUnlock()
	snap.Display = p.session.Display()
	snap.Alerts = append([]models.Alert{}, snap.Alerts...)
	return snap
}

// Run polls and checks the watchdog until ctx ends. Polls are serial; the watchdog runs on its
// own goroutine so a hung poll cannot hold the connection state at CONNECTED.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started",
		zap.Duration("poll_interval", p.cfg.PollInterval),
		zap.Duration("disconnect_timeout", p.cfg.DisconnectTimeout),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.watch(ctx)
	}()
	defer wg.Wait()

	pollTicker := time.NewTicker(p.cfg.PollInterval)
	defer pollTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pollTicker.C:
			_, _ = p.Tick(ctx)
		}
	}
}

func (p *Poller) watch(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.WatchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Watchdog(ctx)
		}
	}
}

// Tick runs one poll cycle. A failed fetch leaves state untouched; Run ignores the error.
func (p *Poller) Tick(ctx context.Context) (models.Snapshot, error) {
	data, err := p.backend.GetData(ctx)
	if err != nil {
		p.logger.Debug("poll failed", zap.Error(err))
		return models.Snapshot{}, err
	}
	now := p.clock.Now()

	p.mu.Lock()
	p.lastSuccess = now
	p.state = models.Connected
	p.mu.Unlock()

	raw := models.Sample{
		Time:        float64(now.UnixMilli()) / 1000,
		Voltage:     data.Voltage,
		Current:     data.Current,
		Temperature: data.Temp,
		SoC:         data.SoC,
	}

	snap := models.Snapshot{
		Connection: models.Connected,
		Raw:        raw,
		Alerts:     Alerts(raw),
		UpdatedAt:  now,
	}

	rawSoC, rawDuration := raw.SoC, models.UnknownDuration
	if model, ok := p.session.Active(); ok {
		if pred, ok := p.predict(ctx, model, raw); ok {
			rawSoC = *pred.SoC
			if pred.TimeRemainingMin != nil {
				rawDuration = *pred.TimeRemainingMin
			}
			snap.Engine = pred.Engine
			snap.Predicted = true
		}
	}
	snap.Display = p.session.Smooth(rawSoC, rawDuration)

	p.mu.Lock()
	// the watchdog may have fired while predicting
	snap.Connection = p.state
	p.last = snap
	sinks := append([]Sink(nil), p.sinks...)
	p.mu.Unlock()

	p.publish(ctx, sinks, snap)
	p.refreshLiveCurve(ctx)
	return snap, nil
}

func (p *Poller) predict(ctx context.Context, model session.Model, raw models.Sample) (*models.PredictResult, bool) {
	temp := raw.Temperature
	pred, err := p.backend.Predict(ctx, models.PredictRequest{
		UserID:    model.UserID,
		ModelType: model.ModelType,
		Voltage:   raw.Voltage,
		Current:   raw.Current,
		Temp:      &temp,
	})
	if err != nil {
		p.logger.Debug("live prediction failed", zap.Error(err))
		return nil, false
	}
	if pred.SoC == nil {
		return nil, false
	}
	return pred, true
}

// Watchdog marks the backend disconnected when no poll has succeeded within the timeout.
func (p *Poller) Watchdog(ctx context.Context) models.ConnectionState {
	now := p.clock.Now()

	p.mu.Lock()
	changed := false
	if p.state == models.Connected && now.Sub(p.lastSuccess) >= p.cfg.DisconnectTimeout {
		p.state = models.Disconnected
		p.last.Connection = models.Disconnected
		changed = true
	}
	state := p.state
	snap := p.last
	sinks := append([]Sink(nil), p.sinks...)
	p.mu.Unlock()

	if changed {
		p.logger.Warn("backend disconnected", zap.Time("last_success", snap.UpdatedAt))
		p.publish(ctx, sinks, snap)
	}
	return state
}

func (p *Poller) publish(ctx context.Context, sinks []Sink, snap models.Snapshot) {
	for _, s := range sinks {
		if err := s.Publish(ctx, snap); err != nil {
			p.logger.Warn("snapshot sink failed", zap.Error(err))
		}
	}
}

func (p *Poller) refreshLiveCurve(ctx context.Context) {
	if p.live == nil {
		return
	}
	curve, err := p.backend.LiveCurveData(ctx)
	if err != nil {
		p.logger.Debug("live curve fetch failed", zap.Error(err))
		return
	}
	labels := make([]string, len(curve.Times))
	for i, t := range curve.Times {
		labels[i] = strconv.FormatFloat(t, 'f', -1, 64)
	}
	p.live.Render(chart.Spec{
		Title:  "Predicted SoC %",
		XName:  "Mins Remaining",
		YName:  "SoC %",
		Labels: labels,
		Series: []chart.Series{{Name: "Predicted SoC %", Values: curve.SoCs}},
	})
}
