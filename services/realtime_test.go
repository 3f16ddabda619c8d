package services

import (
	"net/http"
	"net/http/httptest"
	"testing"

	ws "github.com/krshsl/staffline/websocket"
	"github.com/stretchr/testify/assert"
)

func TestSplitOrigins(t *testing.T) {
	assert.Equal(t, []string{"http://a", "http://b"}, splitOrigins(" http://a, ,http://b ,"))
	assert.Nil(t, splitOrigins(""))
}

func TestWebSocketHandlerRequiresUser(t *testing.T) {
	e := NewRealtimeEndpoints(ws.NewHub(), "http://localhost:5173")
	w := httptest.NewRecorder()
	e.WebSocketHandler(w, httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
