package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"crosspost/domain/model"
	"crosspost/infrastructure/metrics"

	"github.com/gin-gonic/gin"
)

const subscriberBuffer = 16

// PostHub fans post status events out to the owning user's SSE streams.
type PostHub struct {
	mu    sync.RWMutex
	users map[string]map[chan model.PostEvent]struct{}
}

func NewPostHub() *PostHub {
	return &PostHub{users: make(map[string]map[chan model.PostEvent]struct{})}
}

// Serve streams events for the authenticated user (user_id set by middleware).
func (h *PostHub) Serve(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.Status(http.StatusUnauthorized)
		return
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ch := make(chan model.PostEvent, subscriberBuffer)
	h.subscribe(userID, ch)
	defer h.unsubscribe(userID, ch)

	_, _ = c.Writer.Write([]byte(":ok\n\n"))
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-ch:
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			_, _ = c.Writer.Write([]byte("event: " + evt.Type + "\n"))
			_, _ = c.Writer.Write([]byte("data: "))
			_, _ = c.Writer.Write(data)
			_, _ = c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

// Subscribers returns the number of open streams for a user.
func (h *PostHub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

func (h *PostHub) subscribe(userID string, ch chan model.PostEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.users[userID] == nil {
		h.users[userID] = make(map[chan model.PostEvent]struct{})
	}
	h.users[userID][ch] = struct{}{}
}

func (h *PostHub) unsubscribe(userID string, ch chan model.PostEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.users[userID]
	if subs == nil {
		return
	}
	delete(subs, ch)
	if len(subs) == 0 {
		delete(h.users, userID)
	}
}

// PublishPostEvent never blocks; a subscriber with a full buffer misses the event.
func (h *PostHub) PublishPostEvent(_ context.Context, evt model.PostEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.users[evt.UserID] {
		select {
		case ch <- evt:
		default:
			metrics.EventDropped("sse")
		}
	}
	return nil
}
