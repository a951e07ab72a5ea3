package api

import (
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
)

// handleNotify serves the long-lived push stream. Each connection gets a
// connected event, periodic heartbeats, and one new-email event per newly
// persisted message. The subscriber is removed on client disconnect, hub
// drop, or the first failed write.
func (s *Server) handleNotify(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	sub := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sub.ID)

	if err := writeEvent(c, "0", "connected",
		gin.H{"connected": true, "timestamp": time.Now().UnixMilli()}); err != nil {
		return
	}

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return

		case ev, ok := <-sub.Events:
			if !ok {
				// Hub dropped us (slow reader).
				return
			}
			if err := writeEvent(c, strconv.FormatInt(ev.Seq, 10), "new-email",
				gin.H{"messageId": ev.MessageID}); err != nil {
				s.logger.Warn("push-stream write failed", "subscriber", sub.ID, "error", err)
				return
			}

		case <-ticker.C:
			if err := writeEvent(c, "heartbeat", "heartbeat",
				gin.H{"heartbeat": true, "timestamp": time.Now().UnixMilli()}); err != nil {
				s.logger.Warn("push-stream heartbeat failed", "subscriber", sub.ID, "error", err)
				return
			}
		}
	}
}

func writeEvent(c *gin.Context, id, event string, data any) error {
	if err := sse.Encode(c.Writer, sse.Event{Id: id, Event: event, Data: data}); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}
