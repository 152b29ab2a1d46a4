package issues

import (
	"sync"
	"time"

	"github.com/antigravity-proxy/core/internal/account"
	"github.com/antigravity-proxy/core/internal/config"
	"github.com/antigravity-proxy/core/internal/events"
	"github.com/antigravity-proxy/core/internal/health"
)

const rateLimitStreakWindow = 10 * time.Minute
const rateLimitStreakThreshold = 3

// Aggregator consumes events and produces issues (C6). It implements
// events.Subscriber so it can be wired directly into the broker (C5) to
// react to events in append order, alongside periodic Sweep calls for the
// sustained-condition rule (health_degraded).
type Aggregator struct {
	mu       sync.Mutex
	issues   map[key]*Issue
	streaks  map[key][]time.Time // rate_limit timestamps per (account,model)
	degraded map[key]time.Time   // when an (account,model) first dropped below critical

	cfg *config.Store
}

// NewAggregator creates an empty Aggregator.
func NewAggregator(cfg *config.Store) *Aggregator {
	return &Aggregator{
		issues:   make(map[key]*Issue),
		streaks:  make(map[key][]time.Time),
		degraded: make(map[key]time.Time),
		cfg:      cfg,
	}
}

// Write implements events.Subscriber, letting the broker deliver events
// to the aggregator the same way it delivers them to SSE clients.
func (a *Aggregator) Write(frame events.Frame) bool {
	if evt, ok := frame.Payload.(events.Event); ok {
		a.Consume(evt)
	}
	return true
}

// Consume applies one event to the detection rules. Safe for concurrent
// use.
func (a *Aggregator) Consume(evt events.Event) {
	switch evt.Type {
	case events.TypeRateLimit:
		a.onRateLimit(evt)
	case events.TypeAuthFailure:
		a.onAuthFailure(evt)
	case events.TypeHealthChange:
		a.onHealthChange(evt)
	case events.TypeRequest:
		a.onRequest(evt)
	}
}

func (a *Aggregator) onRateLimit(evt events.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := key{typ: TypeRateLimitStreak, account: evt.Account, model: evt.Model}
	times := append(a.streaks[k], evt.Timestamp)

	cutoff := evt.Timestamp.Add(-rateLimitStreakWindow)
	kept := times[:0:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	a.streaks[k] = kept

	if len(kept) < rateLimitStreakThreshold {
		return
	}

	if iss, ok := a.issues[k]; ok && iss.Status != StatusResolved {
		iss.Count++
		iss.LastSeen = evt.Timestamp
		return
	}

	a.issues[k] = &Issue{
		ID:        newIssueID(),
		Type:      TypeRateLimitStreak,
		Severity:  SeverityMedium,
		Account:   evt.Account,
		Model:     evt.Model,
		FirstSeen: evt.Timestamp,
		LastSeen:  evt.Timestamp,
		Count:     len(kept),
		Status:    StatusActive,
	}
}

func (a *Aggregator) onAuthFailure(evt events.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := key{typ: TypeAuthFailure, account: evt.Account}
	if iss, ok := a.issues[k]; ok && iss.Status != StatusResolved {
		iss.Count++
		iss.LastSeen = evt.Timestamp
		return
	}

	a.issues[k] = &Issue{
		ID:        newIssueID(),
		Type:      TypeAuthFailure,
		Severity:  SeverityHigh,
		Account:   evt.Account,
		FirstSeen: evt.Timestamp,
		LastSeen:  evt.Timestamp,
		Count:     1,
		Status:    StatusActive,
	}
}

// onRequest auto-clears an active auth_failure issue once a subsequent
// successful request is recorded for that account (spec §4.6).
func (a *Aggregator) onRequest(evt events.Event) {
	success, _ := evt.Details["success"].(bool)
	if !success {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	k := key{typ: TypeAuthFailure, account: evt.Account}
	if iss, ok := a.issues[k]; ok && iss.Status != StatusResolved {
		iss.Status = StatusResolved
	}
}

// onHealthChange creates a model_exhausted issue on "disabled" and
// auto-resolves the matching issue on "recovered" (spec §4.6).
func (a *Aggregator) onHealthChange(evt events.Event) {
	disabled, _ := evt.Details["disabled"].(bool)

	a.mu.Lock()
	defer a.mu.Unlock()

	k := key{typ: TypeModelExhausted, account: evt.Account, model: evt.Model}

	if disabled {
		if iss, ok := a.issues[k]; ok && iss.Status != StatusResolved {
			iss.Count++
			iss.LastSeen = evt.Timestamp
			return
		}
		a.issues[k] = &Issue{
			ID:        newIssueID(),
			Type:      TypeModelExhausted,
			Severity:  SeverityHigh,
			Account:   evt.Account,
			Model:     evt.Model,
			FirstSeen: evt.Timestamp,
			LastSeen:  evt.Timestamp,
			Count:     1,
			Status:    StatusActive,
		}
		return
	}

	if iss, ok := a.issues[k]; ok && iss.Status != StatusResolved {
		iss.Status = StatusResolved
	}
}

// Sweep implements the sustained-condition rule (health_degraded) and the
// degraded-issue auto-resolution, since that rule has no single
// triggering event to react to. Call periodically (e.g. once a minute)
// with the live account set and the health tracker used to score them.
func (a *Aggregator) Sweep(accounts []*account.Account, tracker *health.Tracker, modelIDs []string) {
	cfg := a.cfg.Get()
	now := time.Now()

	matrix := tracker.BuildHealthMatrix(accounts, modelIDs)

	a.mu.Lock()
	defer a.mu.Unlock()

	for email, models := range matrix {
		for modelID, rec := range models {
			k := key{typ: TypeHealthDegraded, account: email, model: modelID}

			if rec.HealthScore >= cfg.CriticalThreshold {
				delete(a.degraded, k)
				if iss, ok := a.issues[k]; ok && iss.Status != StatusResolved {
					iss.Status = StatusResolved
				}
				continue
			}

			since, tracking := a.degraded[k]
			if !tracking {
				a.degraded[k] = now
				continue
			}

			if now.Sub(since) < cfg.StaleIssueDuration() {
				continue
			}

			if iss, ok := a.issues[k]; ok && iss.Status != StatusResolved {
				iss.Count++
				iss.LastSeen = now
				continue
			}
			a.issues[k] = &Issue{
				ID:        newIssueID(),
				Type:      TypeHealthDegraded,
				Severity:  SeverityMedium,
				Account:   email,
				Model:     modelID,
				FirstSeen: since,
				LastSeen:  now,
				Count:     1,
				Status:    StatusActive,
			}
		}
	}
}

// List returns issues optionally filtered by status.
func (a *Aggregator) List(status Status) []Issue {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Issue, 0, len(a.issues))
	for _, iss := range a.issues {
		if status != "" && iss.Status != status {
			continue
		}
		out = append(out, *iss)
	}
	return out
}

// Stats summarizes issue counts by status and severity.
type Stats struct {
	Active       int `json:"active"`
	Acknowledged int `json:"acknowledged"`
	Resolved     int `json:"resolved"`
	High         int `json:"high"`
	Medium       int `json:"medium"`
	Low          int `json:"low"`
}

// Stats returns aggregate issue counts.
func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	var s Stats
	for _, iss := range a.issues {
		switch iss.Status {
		case StatusActive:
			s.Active++
		case StatusAcknowledged:
			s.Acknowledged++
		case StatusResolved:
			s.Resolved++
		}
		switch iss.Severity {
		case SeverityHigh:
			s.High++
		case SeverityMedium:
			s.Medium++
		case SeverityLow:
			s.Low++
		}
	}
	return s
}

// Acknowledge transitions an active issue to acknowledged.
func (a *Aggregator) Acknowledge(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, iss := range a.issues {
		if iss.ID == id && iss.Status == StatusActive {
			iss.Status = StatusAcknowledged
			return true
		}
	}
	return false
}

// Resolve transitions an issue to resolved (terminal).
func (a *Aggregator) Resolve(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, iss := range a.issues {
		if iss.ID == id && iss.Status != StatusResolved {
			iss.Status = StatusResolved
			return true
		}
	}
	return false
}
