// Package publisher fans stored readings out to a message broker so other
// systems can react to new measurements without polling the API.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/okian/sensorboard/internal/domain/model"
	"github.com/okian/sensorboard/pkg/logger"
	"github.com/okian/sensorboard/pkg/metrics"
)

// Sentinel kinds for publisher errors.
var (
	ErrConnect = errors.New("broker connect failed")
	ErrPublish = errors.New("publish failed")
	ErrTimeout = errors.New("publish timed out")
)

// Publisher announces stored readings.
type Publisher interface {
	Publish(ctx context.Context, r model.Reading) error
	Close() error
}

// Nop drops every reading. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, model.Reading) error { return nil }
func (Nop) Close() error                                 { return nil }

// Message is the JSON payload published for each reading.
type Message struct {
	ID        int64     `json:"id"`
	Value     float64   `json:"value"`
	Mode      *int      `json:"mode"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage converts a reading to its wire form.
func NewMessage(r model.Reading) Message {
	m := Message{ID: r.ID, Value: r.Value, Timestamp: r.Timestamp.UTC()}
	if r.Mode != nil {
		mode := int(*r.Mode)
		m.Mode = &mode
	}
	return m
}

// Option configures an MQTT publisher.
type Option func(*MQTT)

// WithQoS sets the MQTT quality of service (0, 1 or 2).
func WithQoS(qos byte) Option {
	return func(p *MQTT) {
		if qos <= 2 {
			p.qos = qos
		}
	}
}

// WithRetain marks messages retained so new subscribers get the latest
// reading immediately.
func WithRetain(retain bool) Option {
	return func(p *MQTT) { p.retain = retain }
}

// WithTimeout bounds connect and publish waits when the context carries no
// deadline.
func WithTimeout(d time.Duration) Option {
	return func(p *MQTT) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the logger for connection events.
func WithLogger(l logger.Logger) Option {
	return func(p *MQTT) {
		if l != nil {
			p.log = l
		}
	}
}

// MQTT publishes readings with the Paho client.
type MQTT struct {
	client  mqtt.Client
	topic   string
	qos     byte
	retain  bool
	timeout time.Duration
	log     logger.Logger
}

var _ Publisher = (*MQTT)(nil)

// NewMQTT connects to broker (e.g. "tcp://localhost:1883") and returns a
// publisher for topic.
func NewMQTT(ctx context.Context, broker, clientID, topic string, opts ...Option) (*MQTT, error) {
	p := &MQTT{
		topic:   topic,
		qos:     1,
		retain:  true,
		timeout: 5 * time.Second,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	co := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(p.timeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			p.log.Warn(context.Background(), "mqtt connection lost", logger.Error(err))
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			p.log.Info(context.Background(), "mqtt connected", logger.String("broker", broker))
		})
	p.client = mqtt.NewClient(co)

	token := p.client.Connect()
	if !token.WaitTimeout(p.wait(ctx)) {
		p.client.Disconnect(0)
		return nil, fmt.Errorf("%w: %s: timeout", ErrConnect, broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnect, broker, err)
	}
	return p, nil
}

func (p *MQTT) wait(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d < p.timeout {
			return max(d, 0)
		}
	}
	return p.timeout
}

// Publish implements Publisher.
func (p *MQTT) Publish(ctx context.Context, r model.Reading) error {
	payload, err := json.Marshal(NewMessage(r))
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrPublish, err)
	}

	token := p.client.Publish(p.topic, p.qos, p.retain, payload)
	if !token.WaitTimeout(p.wait(ctx)) {
		metrics.RecordPublishError()
		return fmt.Errorf("%w: reading %d", ErrTimeout, r.ID)
	}
	if err := token.Error(); err != nil {
		metrics.RecordPublishError()
		return fmt.Errorf("%w: reading %d: %w", ErrPublish, r.ID, err)
	}
	metrics.RecordPublish()
	return nil
}

// Close disconnects, allowing in-flight messages a short grace period.
func (p *MQTT) Close() error {
	p.client.Disconnect(250)
	return nil
}
