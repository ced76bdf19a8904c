package handlers

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"servex_backend/internal/notify"
	"servex_backend/pkg/utils"
)

const keepAliveInterval = 20 * time.Second

// EventHandler streams change events to dashboards over Server-Sent Events.
type EventHandler struct {
	hub *notify.Hub
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(hub *notify.Hub) *EventHandler {
	return &EventHandler{hub: hub}
}

// Stream holds the connection open until the client leaves. Each event is sent with its
// type as the SSE event name; a periodic "ping" event keeps proxies from timing out.
func (h *EventHandler) Stream(c *gin.Context) {
	sub := h.hub.Subscribe()
	defer sub.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	utils.LogDebug("Event stream opened", map[string]interface{}{"role": c.GetString("role")})
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-sub.Events:
			if !ok {
				return false
			}
			c.SSEvent(event.Type, event)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		}
	})
	utils.LogDebug("Event stream closed", map[string]interface{}{"role": c.GetString("role")})
}
