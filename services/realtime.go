package services

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	ws "github.com/krshsl/staffline/websocket"
)

// RealtimeEndpoints upgrades authenticated browsers to the event stream.
type RealtimeEndpoints struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

func NewRealtimeEndpoints(hub *ws.Hub, allowedOrigins string) *RealtimeEndpoints {
	return &RealtimeEndpoints{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return CheckOrigin(r, allowedOrigins)
			},
		},
	}
}

func (e *RealtimeEndpoints) RegisterRoutes(r chi.Router) {
	r.Get("/ws", e.WebSocketHandler)
}

func (e *RealtimeEndpoints) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		slog.Error("WebSocket connection failed - user not found in context")
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	slog.Info("WebSocket connection established", "user_id", user.ID, "org_id", user.OrgID)

	client := e.hub.RegisterClient(conn, user.ID, user.OrgID)
	go client.WritePump()
	go client.ReadPump()
}

// CheckOrigin validates the origin of WebSocket connections to prevent CSRF attacks
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	// If no allowed origins are configured, deny all requests for security
	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	for _, allowed := range splitOrigins(allowedOriginsStr) {
		if allowed == origin {
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}

// splitOrigins parses a comma-separated origin list, dropping blanks.
func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
