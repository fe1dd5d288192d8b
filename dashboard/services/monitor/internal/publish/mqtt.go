package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"socdash/dashboard/services/monitor/internal/models"
)

// MQTTPublisher is the subset of mqtt.Client used here.
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// AlertEvent is the payload of an alert message.
type AlertEvent struct {
	Kind      models.AlertKind `json:"kind"`
	Message   string           `json:"message"`
	Value     float64          `json:"value"`
	Timestamp int64            `json:"timestamp"`
}

// ConnectionEvent is the retained payload describing backend reachability.
type ConnectionEvent struct {
	State     models.ConnectionState `json:"state"`
	Timestamp int64                  `json:"timestamp"`
}

// AlertPublisher sends alerts to <topic>/alerts/<kind> and connection changes to
// <topic>/connection.
type AlertPublisher struct {
	client  MQTTPublisher
	topic   string
	timeout time.Duration
	now     func() time.Time

	mu        sync.Mutex
	lastState models.ConnectionState
}

// NewAlertPublisher builds publisher.
func NewAlertPublisher(client MQTTPublisher, topic string, timeout time.Duration) *AlertPublisher {
	if topic == "" {
		topic = "battery/soc"
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &AlertPublisher{client: client, topic: topic, timeout: timeout, now: time.Now}
}

// Publish implements the poller sink.
func (p *AlertPublisher) Publish(_ context.Context, snap models.Snapshot) error {
	ts := p.now().Unix()

	p.mu.Lock()
	changed := snap.Connection != p.lastState
	p.lastState = snap.Connection
	p.mu.Unlock()

	if changed {
		if err := p.send(p.topic+"/connection", true, ConnectionEvent{State: snap.Connection, Timestamp: ts}); err != nil {
			return err
		}
	}
	for _, a := range snap.Alerts {
		event := AlertEvent{Kind: a.Kind, Message: a.Message, Value: a.Value, Timestamp: ts}
		if err := p.send(fmt.Sprintf("%s/alerts/%s", p.topic, a.Kind), false, event); err != nil {
			return err
		}
	}
	return nil
}

func (p *AlertPublisher) send(topic string, retained bool, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	token := p.client.Publish(topic, 1, retained, data)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("mqtt publish %s: timeout", topic)
	}
	return token.Error()
}

// NewMQTTClient connects to broker with auto-reconnect.
func NewMQTTClient(broker, clientID string, logger *zap.Logger) (mqtt.Client, error) {
	if clientID == "" {
		clientID = fmt.Sprintf("soc-dashboard-%d", time.Now().Unix())
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info("mqtt connected", zap.String("broker", broker))
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return client, nil
}
