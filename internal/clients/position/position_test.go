package position

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dpup/prefab/logging"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/campusnav/server/internal/lib/geo"
	"github.com/dpup/campusnav/server/internal/lib/navigation"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type fakeMQTTClient struct {
	mu           sync.Mutex
	open         bool
	subscribeErr error
	handlers     map[string]mqtt.MessageHandler
	unsubscribed []string
}

func newFakeMQTTClient() *fakeMQTTClient {
	return &fakeMQTTClient{open: true, handlers: make(map[string]mqtt.MessageHandler)}
}

func (c *fakeMQTTClient) IsConnectionOpen() bool {
	return c.open
}

func (c *fakeMQTTClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribeErr == nil {
		c.handlers[topic] = callback
	}
	return &fakeToken{err: c.subscribeErr}
}

func (c *fakeMQTTClient) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribed = append(c.unsubscribed, topics...)
	return &fakeToken{}
}

func (c *fakeMQTTClient) publish(topic string, payload []byte) {
	c.mu.Lock()
	handler := c.handlers[topic]
	c.mu.Unlock()
	if handler != nil {
		handler(nil, &fakeMQTTMessage{topic: topic, payload: payload})
	}
}

type fakeMQTTMessage struct {
	topic   string
	payload []byte
}

func (f *fakeMQTTMessage) Duplicate() bool   { return false }
func (f *fakeMQTTMessage) Qos() byte         { return 1 }
func (f *fakeMQTTMessage) Retained() bool    { return false }
func (f *fakeMQTTMessage) Topic() string     { return f.topic }
func (f *fakeMQTTMessage) MessageID() uint16 { return 0 }
func (f *fakeMQTTMessage) Payload() []byte   { return f.payload }
func (f *fakeMQTTMessage) Ack()              {}

func payload(t *testing.T, lat, lng, accuracy float64, ts time.Time) []byte {
	data, err := json.Marshal(map[string]any{
		"latitude":  lat,
		"longitude": lng,
		"accuracy":  accuracy,
		"timestamp": ts.UnixMilli(),
	})
	require.NoError(t, err)
	return data
}

var acceptAll = navigation.WatchOptions{Accuracy: navigation.AccuracyLow}

func testCtx() context.Context {
	return logging.EnsureLogger(context.Background())
}

func TestMQTTSource_DeliversFixes(t *testing.T) {
	client := newFakeMQTTClient()
	source := NewMQTTSource(testCtx(), client, "phone-42")
	assert.Equal(t, "campus/devices/phone-42/location", source.Topic())

	var fixes []navigation.Fix
	sub, err := source.Watch(acceptAll, func(fix navigation.Fix) {
		fixes = append(fixes, fix)
	})
	require.NoError(t, err)

	ts := time.UnixMilli(1741597200000)
	client.publish(source.Topic(), payload(t, 20.65398, -100.40607, 8, ts))

	require.Len(t, fixes, 1)
	assert.Equal(t, geo.Point{Latitude: 20.65398, Longitude: -100.40607}, fixes[0].Coordinate)
	assert.Equal(t, 8.0, fixes[0].Accuracy)
	assert.True(t, ts.Equal(fixes[0].Timestamp))

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, []string{source.Topic()}, client.unsubscribed)

	client.publish(source.Topic(), payload(t, 20.65510, -100.40480, 8, ts.Add(time.Minute)))
	assert.Len(t, fixes, 1, "no fixes after unsubscribe")
}

func TestMQTTSource_DropsInvalidMessages(t *testing.T) {
	client := newFakeMQTTClient()
	// Rejections are logged even when the caller's context has no logger
	source := NewMQTTSource(context.Background(), client, "phone-42")

	count := 0
	_, err := source.Watch(acceptAll, func(navigation.Fix) { count++ })
	require.NoError(t, err)

	client.publish(source.Topic(), []byte("not json"))
	client.publish(source.Topic(), []byte(`{"latitude": 20.6}`))
	client.publish(source.Topic(), []byte(`{"latitude": 95, "longitude": 0}`))
	client.publish(source.Topic(), []byte(`{"latitude": 20.6, "longitude": -100.4, "accuracy": -1}`))
	assert.Equal(t, 0, count)

	// Zero coordinates are valid, not missing
	client.publish(source.Topic(), []byte(`{"latitude": 0, "longitude": 0}`))
	assert.Equal(t, 1, count)
}

func TestMQTTSource_ConnectionClosed(t *testing.T) {
	client := newFakeMQTTClient()
	client.open = false

	_, err := NewMQTTSource(testCtx(), client, "phone-42").Watch(acceptAll, func(navigation.Fix) {})
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestMQTTSource_SubscribeError(t *testing.T) {
	client := newFakeMQTTClient()
	client.subscribeErr = errors.New("not authorized")

	_, err := NewMQTTSource(testCtx(), client, "phone-42").Watch(acceptAll, func(navigation.Fix) {})
	assert.ErrorContains(t, err, "not authorized")
}

func TestFixFilter(t *testing.T) {
	filter := newFixFilter(navigation.WatchOptions{
		Accuracy:         navigation.AccuracyBestForNavigation,
		TimeInterval:     3 * time.Second,
		DistanceInterval: 10,
	})
	t0 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	origin := geo.Point{Latitude: 0, Longitude: 0}

	assert.True(t, filter.accept(navigation.Fix{Coordinate: origin, Accuracy: 5, Timestamp: t0}))

	// Too soon
	assert.False(t, filter.accept(navigation.Fix{Coordinate: geo.Point{Latitude: 0.001}, Accuracy: 5, Timestamp: t0.Add(time.Second)}))

	// Not far enough (~5.5 m)
	assert.False(t, filter.accept(navigation.Fix{Coordinate: geo.Point{Latitude: 0.00005}, Accuracy: 5, Timestamp: t0.Add(5 * time.Second)}))

	// Too inaccurate for the tier
	assert.False(t, filter.accept(navigation.Fix{Coordinate: geo.Point{Latitude: 0.001}, Accuracy: 80, Timestamp: t0.Add(5 * time.Second)}))

	// ~111 m and 5 s later
	assert.True(t, filter.accept(navigation.Fix{Coordinate: geo.Point{Latitude: 0.001}, Accuracy: 5, Timestamp: t0.Add(5 * time.Second)}))

	assert.False(t, filter.accept(navigation.Fix{Coordinate: geo.Point{Latitude: 100}, Timestamp: t0.Add(time.Minute)}))
}

func TestReplaySource(t *testing.T) {
	walk := []geo.Point{
		{Latitude: 20.65398, Longitude: -100.40607},
		{Latitude: 20.65421, Longitude: -100.40581},
		{Latitude: 20.65459, Longitude: -100.40544},
	}
	source := NewReplaySource(walk, time.Millisecond).WithOffset(111.32)

	var mu sync.Mutex
	var fixes []navigation.Fix
	_, err := source.Watch(acceptAll, func(fix navigation.Fix) {
		mu.Lock()
		defer mu.Unlock()
		fixes = append(fixes, fix)
	})
	require.NoError(t, err)

	select {
	case <-source.Finished():
	case <-time.After(2 * time.Second):
		t.Fatal("replay did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, fixes, 3)
	assert.InDelta(t, walk[0].Latitude+0.001, fixes[0].Coordinate.Latitude, 1e-9)
	assert.Equal(t, walk[2].Longitude, fixes[2].Coordinate.Longitude)
}

func TestReplaySource_Unsubscribe(t *testing.T) {
	walk := make([]geo.Point, 100)
	source := NewReplaySource(walk, 10*time.Millisecond)

	sub, err := source.Watch(acceptAll, func(navigation.Fix) {})
	require.NoError(t, err)
	sub.Unsubscribe()
	sub.Unsubscribe()

	select {
	case <-source.Finished():
	case <-time.After(time.Second):
		t.Fatal("replay did not stop")
	}
}

func TestManualSource(t *testing.T) {
	source := NewManualSource()
	assert.False(t, source.Watching())

	sub, err := source.Watch(acceptAll, func(navigation.Fix) {
		t.Fatal("manual source never delivers fixes")
	})
	require.NoError(t, err)
	assert.True(t, source.Watching())

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.False(t, source.Watching())
}
