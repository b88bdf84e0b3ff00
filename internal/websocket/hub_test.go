package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/shared/testutil"
)

// dialHub stands up an upgrader endpoint, registers the server side of the
// connection with the hub, and returns the client side.
func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Register(conn)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	// Registration happens in the server handler; wait for it.
	require.Eventually(t, func() bool { return hub.ClientCount() > 0 },
		time.Second, 10*time.Millisecond)
	return client
}

func TestHub_EmitReachesClient(t *testing.T) {
	hub := NewHub(testutil.NewTestLogger(t))
	client := dialHub(t, hub)

	hub.Emit(EventLicenseCreated, map[string]interface{}{"license_id": "lic-1"})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event Event
	require.NoError(t, client.ReadJSON(&event))
	assert.Equal(t, EventLicenseCreated, event.Type)
	assert.Equal(t, "lic-1", event.Details["license_id"])
	assert.False(t, event.Timestamp.IsZero())
}

func TestHub_EmitWithoutClients(t *testing.T) {
	hub := NewHub(testutil.NewTestLogger(t))

	// No clients connected: Emit is a no-op, not a panic.
	hub.Emit(EventLicenseRevoked, nil)
	assert.Zero(t, hub.ClientCount())
}

func TestHub_UnregisterClosesAndRemoves(t *testing.T) {
	hub := NewHub(testutil.NewTestLogger(t))
	dialHub(t, hub)

	require.Equal(t, 1, hub.ClientCount())

	hub.mu.Lock()
	var serverConn *websocket.Conn
	for conn := range hub.clients {
		serverConn = conn
	}
	hub.mu.Unlock()

	hub.Unregister(serverConn)
	assert.Zero(t, hub.ClientCount())

	// Unregistering again is a no-op.
	hub.Unregister(serverConn)
}

func TestHub_DropsDeadClientOnEmit(t *testing.T) {
	hub := NewHub(testutil.NewTestLogger(t))
	client := dialHub(t, hub)

	// Tear the connection down underneath the hub.
	client.Close()
	hub.mu.Lock()
	for conn := range hub.clients {
		conn.Close()
	}
	hub.mu.Unlock()

	hub.Emit(EventMachineActivated, nil)
	assert.Zero(t, hub.ClientCount())
}
