// Package issues implements the issue aggregator (C6): it collapses
// event patterns into operator-visible incidents with an
// acknowledge/resolve lifecycle (spec §4.6).
package issues

import (
	"time"

	"github.com/google/uuid"
)

// Type enumerates the detection rules from spec §4.6.
type Type string

const (
	TypeRateLimitStreak Type = "rate_limit_streak"
	TypeAuthFailure     Type = "auth_failure"
	TypeModelExhausted  Type = "model_exhausted"
	TypeHealthDegraded  Type = "health_degraded"
)

// Severity mirrors the severities named in spec §4.6.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Status is the issue lifecycle state (spec §3: active → acknowledged →
// resolved, resolved terminal).
type Status string

const (
	StatusActive       Status = "active"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
)

// Issue is an operator-visible incident derived from event patterns.
type Issue struct {
	ID        string                 `json:"id"`
	Type      Type                   `json:"type"`
	Severity  Severity               `json:"severity"`
	Account   string                 `json:"account,omitempty"`
	Model     string                 `json:"model,omitempty"`
	FirstSeen time.Time              `json:"firstSeen"`
	LastSeen  time.Time              `json:"lastSeen"`
	Count     int                    `json:"count"`
	Status    Status                 `json:"status"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// key identifies the one-active-issue-per-(type,account,model) slot
// required by spec §3.
type key struct {
	typ     Type
	account string
	model   string
}

func newIssueID() string {
	return uuid.NewString()
}
