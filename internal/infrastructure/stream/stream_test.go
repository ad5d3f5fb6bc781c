package stream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

var upgrader = websocket.Upgrader{}

// serve starts a server whose handler registers a client for "B1" and hands
// it back on the returned channel.
func serve(t *testing.T, hub *Hub) (*httptest.Server, <-chan *Client) {
	t.Helper()
	clients := make(chan *Client, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient(conn)
		if !hub.Register("B1", c) {
			return
		}
		clients <- c
		c.Run()
		hub.Unregister(c)
	}))
	return srv, clients
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestClient_StreamsEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub()
	srv, clients := serve(t, hub)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	c := <-clients

	c.Publish(domain.GeofenceEvent{ZoneID: "Z1", Kind: domain.EventEnter})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev domain.GeofenceEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, "Z1", ev.ZoneID)
	assert.Equal(t, domain.EventEnter, ev.Kind)
	assert.Equal(t, 1, hub.Count("B1"))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Count("") == 0 }, waitFor, tick)
}

func TestHub_CloseBookingDisconnectsPeer(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub()
	srv, clients := serve(t, hub)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	c := <-clients

	hub.CloseBooking("B1")
	<-c.Done()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.Count("B1"))
}

func TestHub_ShutdownRejectsNewClients(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub()
	srv, clients := serve(t, hub)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	<-clients

	hub.Shutdown()
	assert.Equal(t, 0, hub.Count(""))

	late := dial(t, srv)
	defer late.Close()
	require.NoError(t, late.SetReadDeadline(time.Now().Add(waitFor)))
	_, _, err := late.ReadMessage()
	assert.Error(t, err)
}

func TestClient_PublishDropsWhenFull(t *testing.T) {
	c := &Client{send: make(chan []byte, 1), done: make(chan struct{})}

	c.Publish(domain.GeofenceEvent{ZoneID: "Z1"})
	c.Publish(domain.GeofenceEvent{ZoneID: "Z2"})
	c.Publish(domain.GeofenceEvent{ZoneID: "Z3"})

	assert.Len(t, c.send, 1)
	assert.EqualValues(t, 2, c.Dropped())

	close(c.done)
	c.Publish(domain.GeofenceEvent{ZoneID: "Z4"})
	assert.EqualValues(t, 2, c.Dropped())
}
