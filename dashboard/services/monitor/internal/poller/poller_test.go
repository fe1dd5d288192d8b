package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"socdash/dashboard/services/monitor/internal/chart"
	"socdash/dashboard/services/monitor/internal/models"
	"socdash/dashboard/services/monitor/internal/session"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Set(seconds int) {
	c.now = time.Unix(1_700_000_000, 0).Add(time.Duration(seconds) * time.Second)
}

type fakeBackend struct {
	data       *models.LiveData
	dataErr    error
	pred       *models.PredictResult
	predErr    error
	curve      *models.LiveCurve
	curveErr   error
	predictReq []models.PredictRequest
}

func (f *fakeBackend) GetData(context.Context) (*models.LiveData, error) {
	if f.dataErr != nil {
		return nil, f.dataErr
	}
	d := *f.data
	return &d, nil
}

func (f *fakeBackend) Predict(_ context.Context, req models.PredictRequest) (*models.PredictResult, error) {
	f.predictReq = append(f.predictReq, req)
	if f.predErr != nil {
		return nil, f.predErr
	}
	return f.pred, nil
}

func (f *fakeBackend) LiveCurveData(context.Context) (*models.LiveCurve, error) {
	if f.curveErr != nil {
		return nil, f.curveErr
	}
	return f.curve, nil
}

type recordingSink struct{ snaps []models.Snapshot }

func (r *recordingSink) Publish(_ context.Context, s models.Snapshot) error {
	r.snaps = append(r.snaps, s)
	return nil
}

func floatPtr(v float64) *float64 { return &v }

func newPoller(backend Backend, sess *session.Session, clock Clock, live *chart.Canvas) *Poller {
	return New(backend, sess, live, clock, Config{DisconnectTimeout: 3 * time.Second}, zap.NewNop())
}

func TestWatchdogDisconnectsAfterTimeout(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{}
	backend := &fakeBackend{data: &models.LiveData{Voltage: 12, SoC: 80, Temp: 25}, curveErr: errors.New("down")}
	p := newPoller(backend, session.New(""), clock, nil)

	assert.Equal(t, models.Disconnected, p.State())

	clock.Set(0)
	_, err := p.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Connected, p.State())

	backend.dataErr = errors.New("connection refused")
	for _, sec := range []int{1, 2} {
		clock.Set(sec)
		_, _ = p.Tick(ctx)
		assert.Equal(t, models.Connected, p.Watchdog(ctx), "t=%d", sec)
	}

	clock.Set(3)
	assert.Equal(t, models.Disconnected, p.Watchdog(ctx))

	backend.dataErr = nil
	clock.Set(4)
	_, err = p.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Connected, p.State())
	assert.Equal(t, models.Connected, p.Watchdog(ctx))
}

func TestWatchdogPublishesOnlyOnTransition(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{}
	clock.Set(0)
	backend := &fakeBackend{data: &models.LiveData{SoC: 50}, curveErr: errors.New("down")}
	p := newPoller(backend, session.New(""), clock, nil)
	sink := &recordingSink{}
	p.AddSink(sink)

	p.Watchdog(ctx)
	assert.Empty(t, sink.snaps)

	_, err := p.Tick(ctx)
	require.NoError(t, err)
	require.Len(t, sink.snaps, 1)

	clock.Set(10)
	p.Watchdog(ctx)
	p.Watchdog(ctx)
	require.Len(t, sink.snaps, 2)
	assert.Equal(t, models.Disconnected, sink.snaps[1].Connection)
	assert.Equal(t, 50.0, sink.snaps[1].Raw.SoC)
}

func TestTickWithoutModelSmoothsRawSoC(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{}
	backend := &fakeBackend{curveErr: errors.New("down")}
	p := newPoller(backend, session.New(""), clock, nil)

	var shown []float64
	for _, soc := range []float64{80, 85, 60, 60, 70} {
		backend.data = &models.LiveData{Voltage: 11, Current: 0.5, Temp: 25, SoC: soc}
		snap, err := p.Tick(ctx)
		require.NoError(t, err)
		assert.False(t, snap.Predicted)
		assert.False(t, snap.Display.DurationKnown())
		shown = append(shown, snap.Display.SoC)
	}
	assert.Equal(t, []float64{80, 80, 60, 60, 60}, shown)
	assert.Empty(t, backend.predictReq)
}

func TestTickUsesTrainedModel(t *testing.T) {
	ctx := context.Background()
	sess := session.New("")
	sess.Uploaded("user-7", []string{"t", "v"}, models.ColumnMapping{})
	sess.Trained(models.ColumnMapping{Time: "t", Voltage: "v"}, models.ModelPro, nil, 12.4)

	backend := &fakeBackend{
		data:     &models.LiveData{Voltage: 11.8, Current: 0.7, Temp: 31, SoC: 90},
		pred:     &models.PredictResult{SoC: floatPtr(72.5), TimeRemainingMin: floatPtr(41), Engine: "XGBoost"},
		curveErr: errors.New("down"),
	}
	p := newPoller(backend, sess, &fakeClock{}, nil)

	snap, err := p.Tick(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Predicted)
	assert.Equal(t, "XGBoost", snap.Engine)
	assert.Equal(t, models.Display{SoC: 72.5, Duration: 41}, snap.Display)
	assert.Equal(t, 90.0, snap.Raw.SoC)

	require.Len(t, backend.predictReq, 1)
	req := backend.predictReq[0]
	assert.Equal(t, "user-7", req.UserID)
	assert.Equal(t, models.ModelPro, req.ModelType)
	assert.Equal(t, 11.8, req.Voltage)
	require.NotNil(t, req.Temp)
	assert.Equal(t, 31.0, *req.Temp)

	// Predictions without a duration leave the remembered one alone.
	backend.pred = &models.PredictResult{SoC: floatPtr(70)}
	snap, err = p.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Display{SoC: 70, Duration: 41}, snap.Display)
}

func TestTickFallsBackWhenPredictionFails(t *testing.T) {
	ctx := context.Background()
	sess := session.New("")
	sess.Uploaded("u", nil, models.ColumnMapping{})
	sess.Trained(models.ColumnMapping{}, "", nil, 0)

	backend := &fakeBackend{
		data:     &models.LiveData{SoC: 64},
		predErr:  errors.New("model missing"),
		curveErr: errors.New("down"),
	}
	p := newPoller(backend, sess, &fakeClock{}, nil)

	snap, err := p.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, snap.Predicted)
	assert.Equal(t, 64.0, snap.Display.SoC)

	backend.predErr = nil
	backend.pred = &models.PredictResult{Error: "no soc"}
	snap, err = p.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, snap.Predicted)
}

func TestTickReportsAlerts(t *testing.T) {
	backend := &fakeBackend{data: &models.LiveData{SoC: 5, Temp: 45}, curveErr: errors.New("down")}
	p := newPoller(backend, session.New(""), &fakeClock{}, nil)

	snap, err := p.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Alerts, 2)
	assert.Equal(t, models.AlertLowCharge, snap.Alerts[0].Kind)
	assert.Equal(t, models.AlertOverheat, snap.Alerts[1].Kind)
	assert.Contains(t, snap.Alerts[1].Message, "45.0°C")
}

func TestAlertThresholds(t *testing.T) {
	assert.Empty(t, Alerts(models.Sample{SoC: 10, Temperature: 39.9}))
	assert.Len(t, Alerts(models.Sample{SoC: 9.99, Temperature: 20}), 1)
	assert.Len(t, Alerts(models.Sample{SoC: 50, Temperature: 40}), 1)
}

func TestFailedPollKeepsLastSnapshot(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{data: &models.LiveData{SoC: 77}, curveErr: errors.New("down")}
	p := newPoller(backend, session.New(""), &fakeClock{}, nil)

	_, err := p.Tick(ctx)
	require.NoError(t, err)

	backend.dataErr = errors.New("timeout")
	_, err = p.Tick(ctx)
	require.Error(t, err)
	assert.Equal(t, 77.0, p.Last().Raw.SoC)
}

func TestTickRendersLiveCurve(t *testing.T) {
	live := chart.NewCanvas("live", 0, 0)
	backend := &fakeBackend{
		data:  &models.LiveData{SoC: 60},
		curve: &models.LiveCurve{Times: []float64{0, 1.5, 3}, SoCs: []float64{60, 55, 50}},
	}
	p := newPoller(backend, session.New(""), &fakeClock{}, live)

	_, err := p.Tick(context.Background())
	require.NoError(t, err)
	spec, ok := live.Spec()
	require.True(t, ok)
	assert.Equal(t, []string{"0", "1.5", "3"}, spec.Labels)
	assert.Equal(t, []float64{60, 55, 50}, spec.Series[0].Values)
	gen := live.Generation()

	backend.curveErr = errors.New("down")
	_, err = p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gen, live.Generation())
}

func TestLastReflectsDisplayReset(t *testing.T) {
	sess := session.New("")
	backend := &fakeBackend{data: &models.LiveData{SoC: 30}, curveErr: errors.New("down")}
	p := newPoller(backend, sess, &fakeClock{}, nil)

	_, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 30.0, p.Last().Display.SoC)

	sess.ResetDisplay()
	assert.Equal(t, session.InitialSoC, p.Last().Display.SoC)
}

func TestRunStopsOnCancel(t *testing.T) {
	backend := &fakeBackend{data: &models.LiveData{SoC: 50}, curveErr: errors.New("down")}
	p := New(backend, session.New(""), nil, nil, Config{PollInterval: time.Millisecond, WatchdogInterval: time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return p.State() == models.Connected }, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

// hangingBackend answers the first GetData and then blocks until ctx ends.
type hangingBackend struct {
	fakeBackend
	calls atomic.Int32
}

func (h *hangingBackend) GetData(ctx context.Context) (*models.LiveData, error) {
	if h.calls.Add(1) == 1 {
		return &models.LiveData{SoC: 70}, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestWatchdogFiresWhilePollHangs(t *testing.T) {
	backend := &hangingBackend{}
	backend.curveErr = errors.New("down")
	p := New(backend, session.New(""), nil, nil, Config{
		PollInterval:      10 * time.Millisecond,
		WatchdogInterval:  10 * time.Millisecond,
		DisconnectTimeout: 50 * time.Millisecond,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool { return p.State() == models.Connected }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return p.State() == models.Disconnected }, 500*time.Millisecond, 5*time.Millisecond)
	assert.GreaterOrEqual(t, backend.calls.Load(), int32(2))
}
