package handlers

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

const keepAlive = 25 * time.Second

// @Summary Real-time stream
// @Description Server-sent events. Repeat project to join several project rooms. Accepts the access token as ?token=.
// @Tags realtime
// @Produce text/event-stream
// @Security BearerAuth
// @Param project query []string false "Project IDs" collectionFormat(multi)
// @Param token query string false "Access token"
// @Success 200 {string} string "event stream"
// @Router /api/realtime [get]
func (h *Handler) Realtime(c *gin.Context) {
	sub := h.Hub.Join(c.QueryArray("project")...)
	defer sub.Close()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"rooms": c.QueryArray("project")})
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent(msg.Event, msg.Data)
			return true
		case t := <-ticker.C:
			c.SSEvent("ping", t.UTC())
			return true
		}
	})
}
