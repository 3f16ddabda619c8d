package websocket

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
)

func TestHubDeliversOnlyToSameOrg(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub()
	go h.Run(ctx)

	a := h.RegisterClient(nil, "u1", "org-a")
	b := h.RegisterClient(nil, "u2", "org-b")
	require.Eventually(t, func() bool { return h.ClientCount("org-a") == 1 && h.ClientCount("org-b") == 1 }, time.Second, 5*time.Millisecond)

	h.Publish(Event{Type: EventSprintItemMoved, OrgID: "org-a", EntityID: "item-1"})

	select {
	case raw := <-a.Send:
		var got Event
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, EventSprintItemMoved, got.Type)
		assert.Equal(t, "item-1", got.EntityID)
	case <-time.After(time.Second):
		t.Fatal("org-a client did not receive the event")
	}

	select {
	case <-b.Send:
		t.Fatal("org-b client received another org's event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubClosesClientsOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub()
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	c := h.RegisterClient(nil, "u1", "org-a")
	cancel()
	<-done

	_, ok := <-c.Send
	assert.False(t, ok)
	assert.Zero(t, h.ClientCount("org-a"))
}

// serveClient upgrades one connection, registers it with h and runs only
// its read pump so tests control what reaches Send.
func serveClient(t *testing.T, h *Hub, orgID string) (*websocket.Conn, *Client, <-chan struct{}) {
	t.Helper()
	clients := make(chan *Client, 1)
	readDone := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := h.RegisterClient(conn, "u1", orgID)
		clients <- c
		go func() {
			c.ReadPump()
			close(readDone)
		}()
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	select {
	case c := <-clients:
		return conn, c, readDone
	case <-time.After(2 * time.Second):
		t.Fatal("client was not registered")
	}
	return nil, nil, nil
}

func TestPingGetsPong(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub()
	go h.Run(ctx)

	conn, c, _ := serveClient(t, h, "org-a")
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))

	select {
	case msg := <-c.Send:
		assert.JSONEq(t, `{"type":"pong"}`, string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("no pong queued")
	}
}

func TestPingFromDroppedClientDoesNotPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub()
	go h.Run(ctx)

	conn, _, readDone := serveClient(t, h, "org-a")
	require.Eventually(t, func() bool { return h.ClientCount("org-a") == 1 }, time.Second, 5*time.Millisecond)

	// Nothing drains Send, so the hub drops the client once its buffer fills.
	require.Eventually(t, func() bool {
		for i := 0; i < 50; i++ {
			h.Publish(Event{Type: EventSprintUpdated, OrgID: "org-a", EntityID: "s1"})
		}
		return h.ClientCount("org-a") == 0
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	conn.Close()

	select {
	case <-readDone:
	case <-time.After(2 * time.Second):
		t.Fatal("read pump did not exit")
	}
}

func TestPingAfterShutdownDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub()
	go h.Run(ctx)

	conn, _, readDone := serveClient(t, h, "org-a")
	cancel()
	<-h.done

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	conn.Close()

	select {
	case <-readDone:
	case <-time.After(2 * time.Second):
		t.Fatal("read pump blocked after hub shutdown")
	}
}
