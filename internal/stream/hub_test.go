package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/campusnav/server/internal/lib/navigation"
	"github.com/dpup/campusnav/server/internal/lib/routing"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(context.Background())
	client := hub.Register("client-1")
	defer hub.Unregister(client)

	hub.Broadcast([]byte("hello"))

	select {
	case msg := <-client.Send:
		assert.Equal(t, "hello", string(msg))
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
}

func TestHubDropsForSlowClients(t *testing.T) {
	hub := NewHub(context.Background())
	client := hub.Register("slow")

	for i := 0; i < sendBuffer+10; i++ {
		hub.Broadcast([]byte("tick"))
	}
	assert.Len(t, client.Send, sendBuffer)

	hub.Unregister(client)
	hub.Unregister(client)
	assert.Equal(t, 0, hub.Count())
}

func TestHubHandleEvent(t *testing.T) {
	hub := NewHub(context.Background())
	client := hub.Register("client-1")
	defer hub.Unregister(client)

	hub.HandleEvent(navigation.Event{
		Seq:       7,
		Type:      navigation.EventDeviationDetected,
		State:     navigation.Navigating,
		Deviation: &routing.Deviation{Classification: routing.OffRoute, DistanceToRoute: 72.5},
	})

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(<-client.Send, &decoded))
	assert.Equal(t, "deviation_detected", decoded["type"])
	assert.Equal(t, float64(7), decoded["seq"])
}

func TestServeWS(t *testing.T) {
	hub := NewHub(context.Background())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, []byte(`{"type":"snapshot"}`))
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"snapshot"}`, string(msg))

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)
	hub.Broadcast([]byte("update"))

	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "update", string(msg))

	conn.Close()
	require.Eventually(t, func() bool { return hub.Count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestServeWS_UpgradeRequired(t *testing.T) {
	hub := NewHub(context.Background())
	// A bare request context carries no logger; the failed upgrade is still logged
	req := httptest.NewRequest(http.MethodGet, "/api/v1/navigation/events", nil)
	rec := httptest.NewRecorder()

	hub.ServeWS(rec, req, nil)

	assert.NotEqual(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, hub.Count())
}

func TestHubClose(t *testing.T) {
	hub := NewHub(context.Background())
	client := hub.Register("client-1")

	hub.Close()

	_, ok := <-client.Send
	assert.False(t, ok)
	hub.Unregister(client)
}
