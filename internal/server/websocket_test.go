package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket

	"github.com/scrypster/mneme/internal/notify"
	"github.com/scrypster/mneme/internal/server"
)

func TestHub_RejectsForeignOrigin(t *testing.T) {
	hub := server.NewHub("127.0.0.1:6464")
	defer hub.Stop()

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Origin", "http://evil.com")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")

	w := httptest.NewRecorder()
	hub.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHub_StreamsStoreEvents(t *testing.T) {
	ts := startTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket

	require.Eventually(t, func() bool { return ts.Hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp := ts.do(t, http.MethodPost, "/api/memories", server.MemoryRequest{Content: "Library books due Monday"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	_, data, err := conn.Read(ctx) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	require.NoError(t, err)

	var evt notify.Event
	require.NoError(t, json.Unmarshal(data, &evt))
	assert.Equal(t, notify.EventMemoryCreated, evt.Type)
	assert.NotEmpty(t, evt.ID)
}

func TestHub_StopIsIdempotentWithoutClients(t *testing.T) {
	hub := server.NewHub()
	go hub.Run()
	hub.Stop()
	hub.Stop()

	hub.StoreUpdated(notify.NewEvent(notify.EventMaintenanceDone, ""))
	assert.Equal(t, 0, hub.ClientCount())
}
