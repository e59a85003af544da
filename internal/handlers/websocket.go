package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"social-backend/internal/apperr"
	"social-backend/internal/middleware"
	"social-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub      *services.WSHub
	verifier middleware.TokenVerifier
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.WSHub, verifier middleware.TokenVerifier) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		verifier: verifier,
	}
}

// HandleWebSocket handles GET /ws?token=
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ValidateWebSocketToken(r.URL.Query().Get("token"), h.verifier)
	if err != nil {
		respondError(w, r, apperr.Wrap(apperr.Unauthorized, err, "Token is not valid"))
		return
	}
	userID := claims.UserID

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	c := h.hub.Register(userID, conn)
	defer h.hub.Unregister(c)

	if err := h.hub.Send(c, services.WSMessage{Type: "connected", Timestamp: time.Now().UnixMilli()}); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to send connected message")
		return
	}

	log.Info().Str("user_id", userID).Msg("WebSocket connection established")

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket error")
			}
			return
		}

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Failed to parse WebSocket message")
			if h.sendError(c, "Invalid message format") != nil {
				return
			}
			continue
		}

		switch msg.Type {
		case "ping":
			err = h.hub.Send(c, services.WSMessage{Type: "pong", Timestamp: time.Now().UnixMilli()})
		default:
			err = h.sendError(c, "Unknown message type")
		}
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Failed to reply on WebSocket")
			return
		}
	}
}

// sendError sends an error message to the WebSocket connection
func (h *WebSocketHandler) sendError(c *services.WSConn, message string) error {
	return h.hub.Send(c, services.WSMessage{
		Type:    "error",
		Message: message,
	})
}
