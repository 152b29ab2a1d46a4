package httpapi

import (
	"net/http"
	"time"

	"github.com/antigravity-proxy/core/internal/events"
)

// sseSubscriber adapts an HTTP response into an events.Subscriber. Writes
// are queued on a buffered channel so the broker's broadcast loop (which
// may run on any request's goroutine) never blocks on a slow client; a
// full queue marks the subscriber dead, matching spec §4.5's "write
// failures mark a subscriber dead" rule.
type sseSubscriber struct {
	frames chan events.Frame
	done   chan struct{}
}

func newSSESubscriber() *sseSubscriber {
	return &sseSubscriber{
		frames: make(chan events.Frame, 64),
		done:   make(chan struct{}),
	}
}

func (s *sseSubscriber) Write(frame events.Frame) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.frames <- frame:
		return true
	default:
		return false
	}
}

func (s *sseSubscriber) close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// handleEventStream implements GET /api/events/stream (spec §4.5, §6).
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	out := newSSEWriter(w)
	out.writeHeaders()
	w.WriteHeader(http.StatusOK)

	if err := out.writeData(map[string]interface{}{
		"type":      "connected",
		"timestamp": time.Now().UTC(),
	}); err != nil {
		return
	}

	if r.URL.Query().Get("history") == "true" {
		limit := parseIntParam(r, "limit", 100)
		if err := out.writeData(s.recorder.Tail(limit)); err != nil {
			return
		}
	}

	sub := newSSESubscriber()
	sc := s.broker.Subscribe(sub)
	defer sc.Close()
	defer sub.close()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-sub.frames:
			if !ok {
				return
			}
			if err := out.writeData(frame.Payload); err != nil {
				return
			}
		}
	}
}
