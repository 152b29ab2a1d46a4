package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/antigravity-proxy/core/internal/events"
)

func parseSince(r *http.Request) time.Time {
	v := r.URL.Query().Get("since")
	if v == "" {
		return time.Time{}
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.UnixMilli(ms)
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t
	}
	return time.Time{}
}

func parseIntParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := events.Filter{
		Type:      events.Type(q.Get("type")),
		Account:   q.Get("account"),
		Model:     q.Get("model"),
		Severity:  events.Severity(q.Get("severity")),
		RequestID: q.Get("requestId"),
		Since:     parseSince(r),
		Offset:    parseIntParam(r, "offset", 0),
		Limit:     parseIntParam(r, "limit", 100),
	}

	matched, total := s.recorder.GetEvents(filter)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": matched,
		"total":  total,
	})
}

func (s *Server) handleEventStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	stats := s.recorder.GetStats(events.StatsFilter{
		Since:   parseSince(r),
		Account: q.Get("account"),
		Model:   q.Get("model"),
	})
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleClearEvents(w http.ResponseWriter, r *http.Request) {
	cleared := s.recorder.Clear(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "cleared": cleared})
}
