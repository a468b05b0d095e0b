package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/launchpad/backend/internal/middleware"
	"github.com/launchpad/backend/internal/services"
	"github.com/launchpad/backend/internal/utils"
	"github.com/launchpad/backend/pkg/logger"
	"github.com/launchpad/backend/pkg/response"
)

const sseKeepAlive = 25 * time.Second

// SSEHandler streams a user's notifications as Server-Sent Events
type SSEHandler struct {
	hub        *services.SSEHub
	cookieName string
}

func NewSSEHandler(hub *services.SSEHub, cookieName string) *SSEHandler {
	return &SSEHandler{hub: hub, cookieName: cookieName}
}

// StreamNotifications accepts the session cookie, a bearer header or a
// ?token= query parameter, since EventSource cannot set headers.
// GET /api/events/notifications
func (h *SSEHandler) StreamNotifications(c *gin.Context) {
	token := middleware.TokenFromRequest(c, h.cookieName)
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		response.Unauthorized(c, "authentication required")
		return
	}

	claims, err := utils.ParseToken(token)
	if err != nil {
		response.Unauthorized(c, "invalid or expired token")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	clientID := uuid.New().String()
	events := h.hub.Subscribe(clientID, claims.UserID)
	defer h.hub.Unsubscribe(clientID)

	logger.Info().Str("client_id", clientID).Uint("user_id", claims.UserID).Int("total", h.hub.ClientCount()).Msg("SSE client connected")

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	fmt.Fprint(c.Writer, ": connected\n\n")
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case n, ok := <-events:
			if !ok {
				return false
			}
			data, err := json.Marshal(n)
			if err != nil {
				logger.Error().Err(err).Msg("SSE marshal error")
				return true
			}
			fmt.Fprintf(w, "event: notification\nid: %d\ndata: %s\n\n", n.ID, data)
			return true
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
			return true
		case <-c.Request.Context().Done():
			logger.Info().Str("client_id", clientID).Msg("SSE client disconnected")
			return false
		}
	})
}
