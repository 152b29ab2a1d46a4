package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/antigravity-proxy/core/internal/config"
	"github.com/antigravity-proxy/core/internal/store"
)

const snapshotKey = "events.json"

// Recorder is the append-only event log (C4): bounded by age and count,
// snapshotted to disk, broadcasting every new event to the broker (C5).
type Recorder struct {
	mu     sync.RWMutex
	events []Event // append order, oldest first
	dirty  bool

	broker *Broker
	logger *slog.Logger
	snap   store.Snapshotter
	cfg    *config.Store
}

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	Broker *Broker
	Logger *slog.Logger
	Snap   store.Snapshotter
	Config *config.Store
}

// NewRecorder creates a Recorder and attempts to load any prior snapshot.
// A corrupt or missing snapshot is never treated as a caller-visible
// failure (spec §4.4): the log starts empty, and a corrupt or unreadable
// snapshot is logged as an error (a missing one is not logged).
func NewRecorder(ctx context.Context, opts RecorderOptions) *Recorder {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		broker: opts.Broker,
		logger: logger,
		snap:   opts.Snap,
		cfg:    opts.Config,
	}

	if opts.Snap != nil {
		data, err := opts.Snap.Load(ctx, snapshotKey)
		switch {
		case err == store.ErrNotFound:
			// no prior snapshot, start empty
		case err != nil:
			logger.Error("failed to load event snapshot, starting empty", "error", err)
		default:
			var loaded []Event
			if err := json.Unmarshal(data, &loaded); err != nil {
				logger.Error("corrupt event snapshot, starting empty", "error", err)
			} else {
				r.events = loaded
			}
		}
	}

	return r
}

// Record assigns id/timestamp to d, appends it, marks the log dirty,
// broadcasts it to live subscribers, logs it at a severity-appropriate
// level, and returns the fully-populated Event.
func (r *Recorder) Record(d Draft) Event {
	now := time.Now().UTC()
	msg := d.Message
	if msg == "" {
		msg = fmt.Sprintf("%s: account=%s model=%s", d.Type, d.Account, d.Model)
	}
	evt := Event{
		ID:        newID(now),
		Timestamp: now,
		Type:      d.Type,
		Severity:  d.Severity,
		Account:   d.Account,
		Model:     d.Model,
		RequestID: d.RequestID,
		Message:   msg,
		Details:   d.Details,
	}

	r.mu.Lock()
	r.events = append(r.events, evt)
	r.dirty = true
	r.mu.Unlock()

	if r.broker != nil {
		r.broker.broadcast(Frame{Type: "event", Payload: evt})
	}

	r.logAt(evt)
	return evt
}

func (r *Recorder) logAt(evt Event) {
	attrs := []any{"type", string(evt.Type), "account", evt.Account, "model", evt.Model, "id", evt.ID}
	switch evt.Severity {
	case SeverityError:
		r.logger.Error(evt.Message, attrs...)
	case SeverityWarn:
		r.logger.Warn(evt.Message, attrs...)
	default:
		r.logger.Info(evt.Message, attrs...)
	}
}

// Filter selects events for GetEvents.
type Filter struct {
	Type      Type
	Account   string
	Model     string
	Severity  Severity
	RequestID string
	Since     time.Time
	Offset    int
	Limit     int
}

func (f Filter) matches(e Event) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Account != "" && e.Account != f.Account {
		return false
	}
	if f.Model != "" && e.Model != f.Model {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if f.RequestID != "" && e.RequestID != f.RequestID {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// GetEvents returns events matching filter, sorted newest-first, paged by
// Offset/Limit (default limit 100). Total is the pre-pagination count.
func (r *Recorder) GetEvents(f Filter) (matched []Event, total int) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	r.mu.RLock()
	all := make([]Event, 0, len(r.events))
	for _, e := range r.events {
		if f.matches(e) {
			all = append(all, e)
		}
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })
	total = len(all)

	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []Event{}, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total
}

// RequestStats is the §4.4 "requests" block of GetStats.
type RequestStats struct {
	Total       int     `json:"total"`
	Success     int     `json:"success"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"successRate"`
}

// Stats is the full §4.4 GetStats return shape.
type Stats struct {
	ByType     map[Type]int     `json:"byType"`
	BySeverity map[Severity]int `json:"bySeverity"`
	ByAccount  map[string]int   `json:"byAccount"`
	ByModel    map[string]int   `json:"byModel"`
	Requests   RequestStats     `json:"requests"`
}

// StatsFilter narrows GetStats to a window and optionally an account/model.
type StatsFilter struct {
	Since   time.Time
	Account string
	Model   string
}

// GetStats aggregates counts over the filtered window.
func (r *Recorder) GetStats(f StatsFilter) Stats {
	stats := Stats{
		ByType:     make(map[Type]int),
		BySeverity: make(map[Severity]int),
		ByAccount:  make(map[string]int),
		ByModel:    make(map[string]int),
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.events {
		if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
			continue
		}
		if f.Account != "" && e.Account != f.Account {
			continue
		}
		if f.Model != "" && e.Model != f.Model {
			continue
		}

		stats.ByType[e.Type]++
		stats.BySeverity[e.Severity]++
		if e.Account != "" {
			stats.ByAccount[e.Account]++
		}
		if e.Model != "" {
			stats.ByModel[e.Model]++
		}

		if e.Type == TypeRequest {
			stats.Requests.Total++
			if success, ok := e.Details["success"].(bool); ok && success {
				stats.Requests.Success++
			} else {
				stats.Requests.Failed++
			}
		}
	}

	if stats.Requests.Total == 0 {
		stats.Requests.SuccessRate = 100
	} else {
		ratio := float64(stats.Requests.Success) / float64(stats.Requests.Total)
		stats.Requests.SuccessRate = float64(int(ratio*1000+0.5)) / 10
	}

	return stats
}

// Tail returns the newest limit events in chronological (oldest-first)
// order, for SSE history replay (spec §4.5 step 2).
func (r *Recorder) Tail(limit int) []Event {
	if limit <= 0 {
		limit = 100
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.events)
	start := n - limit
	if start < 0 {
		start = 0
	}
	out := make([]Event, n-start)
	copy(out, r.events[start:])
	return out
}

// Clear drops all events, persists immediately, and returns the prior
// count.
func (r *Recorder) Clear(ctx context.Context) int {
	r.mu.Lock()
	prior := len(r.events)
	r.events = nil
	r.dirty = true
	r.mu.Unlock()

	r.Snapshot(ctx)
	return prior
}

// Snapshot persists the full event array if dirty, clearing the dirty
// flag on success. A failing snapshot logs an error and leaves dirty set
// for the next tick (spec §5/§7): it is never surfaced to Record callers.
func (r *Recorder) Snapshot(ctx context.Context) {
	if r.snap == nil {
		return
	}

	r.mu.Lock()
	if !r.dirty {
		r.mu.Unlock()
		return
	}
	data, err := json.Marshal(r.events)
	r.mu.Unlock()

	if err != nil {
		r.logger.Error("failed to marshal event snapshot", "error", err)
		return
	}

	if err := r.snap.Save(ctx, snapshotKey, data); err != nil {
		r.logger.Error("failed to persist event snapshot", "error", err)
		return
	}

	r.mu.Lock()
	r.dirty = false
	r.mu.Unlock()
}

// Prune drops events older than the configured retention and truncates to
// the newest eventMaxCount, marking the log dirty if anything changed.
func (r *Recorder) Prune() {
	if r.cfg == nil {
		return
	}
	cfg := r.cfg.Get()
	cutoff := time.Now().AddDate(0, 0, -cfg.EventRetentionDays)

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.events[:0:0]
	for _, e := range r.events {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}

	if len(kept) > cfg.EventMaxCount {
		kept = kept[len(kept)-cfg.EventMaxCount:]
	}

	if len(kept) != len(r.events) {
		r.events = kept
		r.dirty = true
	}
}
