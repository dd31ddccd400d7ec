package position

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dpup/prefab/logging"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/dpup/campusnav/server/internal/lib/geo"
	"github.com/dpup/campusnav/server/internal/lib/navigation"
)

// ErrConnectionClosed is returned by Watch when the broker connection is down
var ErrConnectionClosed = errors.New("mqtt connection closed")

const topicPattern = "campus/devices/%s/location"

// mqttClient is the part of mqtt.Client used by MQTTSource
type mqttClient interface {
	IsConnectionOpen() bool
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// locationMessage is the JSON payload published by campus devices
type locationMessage struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  float64  `json:"accuracy"`
	Timestamp int64    `json:"timestamp"` // unix milliseconds
}

// Connect opens a broker connection. An empty clientID gets a random one.
func Connect(broker, clientID string, timeout time.Duration) (mqtt.Client, error) {
	if clientID == "" {
		clientID = "navd-" + uuid.NewString()
	}
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return client, nil
}

// MQTTSource streams fixes a device publishes to its location topic
type MQTTSource struct {
	ctx    context.Context
	client mqttClient
	topic  string
	qos    byte
}

// NewMQTTSource creates a source for deviceID's location topic. Messages are
// handled on the client's goroutines and log through ctx.
func NewMQTTSource(ctx context.Context, client mqttClient, deviceID string) *MQTTSource {
	return &MQTTSource{
		ctx:    logging.EnsureLogger(ctx),
		client: client,
		topic:  fmt.Sprintf(topicPattern, deviceID),
		qos:    1,
	}
}

// Topic returns the subscribed topic
func (s *MQTTSource) Topic() string {
	return s.topic
}

// Watch subscribes to the device topic
func (s *MQTTSource) Watch(opts navigation.WatchOptions, onFix func(navigation.Fix)) (navigation.Subscription, error) {
	if !s.client.IsConnectionOpen() {
		return nil, ErrConnectionClosed
	}

	sub := &mqttSubscription{
		ctx:    s.ctx,
		client: s.client,
		topic:  s.topic,
		filter: newFixFilter(opts),
		onFix:  onFix,
	}

	token := s.client.Subscribe(s.topic, s.qos, sub.handleMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt subscribe %s: %w", s.topic, err)
	}
	return sub, nil
}

type mqttSubscription struct {
	ctx    context.Context
	client mqttClient
	topic  string
	filter *fixFilter
	onFix  func(navigation.Fix)

	mu     sync.Mutex
	closed bool
}

func (s *mqttSubscription) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	fix, err := parseLocationMessage(msg.Payload())
	if err != nil {
		logging.Warnw(s.ctx, "Invalid location message", "topic", msg.Topic(), "error", err)
		return
	}
	if !s.filter.accept(fix) {
		return
	}
	s.onFix(fix)
}

// Unsubscribe stops delivery; safe to call more than once
func (s *mqttSubscription) Unsubscribe() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	token := s.client.Unsubscribe(s.topic)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		logging.Warnw(s.ctx, "MQTT unsubscribe failed", "topic", s.topic, "error", token.Error())
	}
}

func parseLocationMessage(payload []byte) (navigation.Fix, error) {
	var raw locationMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return navigation.Fix{}, fmt.Errorf("invalid json: %w", err)
	}
	if raw.Latitude == nil || raw.Longitude == nil {
		return navigation.Fix{}, errors.New("latitude and longitude are required")
	}

	point, err := geo.NewPoint(*raw.Latitude, *raw.Longitude)
	if err != nil {
		return navigation.Fix{}, err
	}
	if raw.Accuracy < 0 {
		return navigation.Fix{}, errors.New("accuracy: must not be negative")
	}

	timestamp := time.Now()
	if raw.Timestamp > 0 {
		timestamp = time.UnixMilli(raw.Timestamp)
	}

	return navigation.Fix{
		Coordinate: point,
		Accuracy:   raw.Accuracy,
		Timestamp:  timestamp,
	}, nil
}
