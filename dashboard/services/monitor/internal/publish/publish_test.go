package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socdash/dashboard/services/monitor/internal/models"
)

type fakeRedis struct {
	store      map[string]string
	ttls       map[string]time.Duration
	published  map[string][]string
	publishErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{store: map[string]string{}, ttls: map[string]time.Duration{}, published: map[string][]string{}}
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	if f.publishErr != nil {
		return redis.NewIntResult(0, f.publishErr)
	}
	f.published[channel] = append(f.published[channel], string(message.([]byte)))
	return redis.NewIntResult(1, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.store[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestRedisPublisherCachesAndPublishes(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	p := NewRedisPublisher(rdb, "", 30*time.Second)

	assert.Empty(t, rdb.store)

	snap := models.Snapshot{Connection: models.Connected, Raw: models.Sample{SoC: 55}, Display: models.Display{SoC: 54, Duration: 20}}
	require.NoError(t, p.Publish(ctx, snap))

	require.Len(t, rdb.published["soc:snapshots"], 1)
	assert.Equal(t, 30*time.Second, rdb.ttls["soc:snapshots:latest"])

	var latest models.Snapshot
	require.NoError(t, json.Unmarshal([]byte(rdb.store["soc:snapshots:latest"]), &latest))
	assert.Equal(t, rdb.published["soc:snapshots"][0], rdb.store["soc:snapshots:latest"])
	assert.Equal(t, 54.0, latest.Display.SoC)
	assert.Equal(t, models.Connected, latest.Connection)
}

func TestRedisPublisherWrapsErrors(t *testing.T) {
	rdb := newFakeRedis()
	rdb.publishErr = errors.New("READONLY")
	p := NewRedisPublisher(rdb, "live", 0)

	err := p.Publish(context.Background(), models.Snapshot{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "READONLY")
}

type doneToken struct{ err error }

func (t doneToken) Wait() bool { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type sentMessage struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeMQTT struct {
	sent []sentMessage
	err  error
}

func (f *fakeMQTT) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	f.sent = append(f.sent, sentMessage{topic: topic, retained: retained, payload: payload.([]byte)})
	return doneToken{err: f.err}
}

func TestAlertPublisherTopics(t *testing.T) {
	client := &fakeMQTT{}
	p := NewAlertPublisher(client, "lab/bat1", time.Second)
	p.now = func() time.Time { return time.Unix(1700000000, 0) }
	ctx := context.Background()

	snap := models.Snapshot{
		Connection: models.Connected,
		Alerts: []models.Alert{
			{Kind: models.AlertLowCharge, Message: "low", Value: 8},
			{Kind: models.AlertOverheat, Message: "hot", Value: 41},
		},
	}
	require.NoError(t, p.Publish(ctx, snap))
	require.Len(t, client.sent, 3)
	assert.Equal(t, "lab/bat1/connection", client.sent[0].topic)
	assert.True(t, client.sent[0].retained)
	assert.Equal(t, "lab/bat1/alerts/low_charge", client.sent[1].topic)
	assert.Equal(t, "lab/bat1/alerts/overheat", client.sent[2].topic)

	var event AlertEvent
	require.NoError(t, json.Unmarshal(client.sent[2].payload, &event))
	assert.Equal(t, 41.0, event.Value)
	assert.Equal(t, int64(1700000000), event.Timestamp)

	// Same state, no alerts: nothing new.
	require.NoError(t, p.Publish(ctx, models.Snapshot{Connection: models.Connected}))
	assert.Len(t, client.sent, 3)

	require.NoError(t, p.Publish(ctx, models.Snapshot{Connection: models.Disconnected}))
	require.Len(t, client.sent, 4)
	var conn ConnectionEvent
	require.NoError(t, json.Unmarshal(client.sent[3].payload, &conn))
	assert.Equal(t, models.Disconnected, conn.State)
}

func TestAlertPublisherReturnsTokenError(t *testing.T) {
	client := &fakeMQTT{err: errors.New("not connected")}
	p := NewAlertPublisher(client, "", 0)
	err := p.Publish(context.Background(), models.Snapshot{Connection: models.Connected})
	assert.EqualError(t, err, "not connected")
	assert.Equal(t, "battery/soc/connection", client.sent[0].topic)
}
