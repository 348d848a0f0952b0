package stream_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/linesmerrill/courtroom-api/api/stream"
	"github.com/linesmerrill/courtroom-api/models"
)

func dial(t *testing.T, hub *stream.Hub, simulationID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, simulationID)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return hub.Subscribers(simulationID) == 1 }, time.Second, 5*time.Millisecond)
	return conn
}

func TestHub_PublishReachesSubscribersOfThatSimulation(t *testing.T) {
	hub := stream.NewHub(zap.NewNop().Sugar())
	conn := dial(t, hub, "sim-1")

	hub.Publish("sim-2", models.Message{SimulationID: "sim-2", Content: "elsewhere", Sequence: 1})
	hub.Publish("sim-1", models.Message{SimulationID: "sim-1", Content: "Your Honor, we are ready.", Sequence: 4})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev stream.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, stream.EventMessageAppended, ev.Event)
	assert.Equal(t, "sim-1", ev.Data.SimulationID)
	assert.Equal(t, "Your Honor, we are ready.", ev.Data.Content)
	assert.Equal(t, int64(4), ev.Data.Sequence)
}

func TestHub_UnsubscribesOnDisconnect(t *testing.T) {
	hub := stream.NewHub(zap.NewNop().Sugar())
	conn := dial(t, hub, "sim-1")

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Subscribers("sim-1") == 0 }, time.Second, 5*time.Millisecond)

	// publishing with nobody listening is a no-op
	hub.Publish("sim-1", models.Message{Content: "anyone?"})
}

func TestHub_PublishWithoutSubscribers(t *testing.T) {
	hub := stream.NewHub(zap.NewNop().Sugar())
	hub.Publish("sim-1", models.Message{Content: "hello"})
	assert.Equal(t, 0, hub.Subscribers("sim-1"))
}
