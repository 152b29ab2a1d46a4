// Package events provides the append-only event log (C4) and the live
// stream broker (C5) described in spec §4.4–4.5.
package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type enumerates the closed set of event kinds from spec §3.
type Type string

const (
	TypeRequest       Type = "request"
	TypeRateLimit     Type = "rate_limit"
	TypeAuthFailure   Type = "auth_failure"
	TypeAPIError      Type = "api_error"
	TypeFallback      Type = "fallback"
	TypeAccountSwitch Type = "account_switch"
	TypeHealthChange  Type = "health_change"
	TypeSystem        Type = "system"
)

// Severity enumerates the closed set of event severities.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Event is an immutable structured record of a single system occurrence.
type Event struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Type      Type                   `json:"type"`
	Severity  Severity               `json:"severity"`
	Account   string                 `json:"account,omitempty"`
	Model     string                 `json:"model,omitempty"`
	RequestID string                 `json:"requestId,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// newID builds a sortable-enough, unique event id: a millisecond
// timestamp prefix (so ids sort by creation millisecond, even across
// process restarts) plus a short uuid suffix for uniqueness. Ids created
// within the same millisecond sort by their random suffix, not by append
// order.
func newID(at time.Time) string {
	return fmt.Sprintf("%d-%s", at.UnixMilli(), uuid.NewString()[:8])
}

// Draft is the caller-supplied event content; Record assigns ID and
// Timestamp and renders Message when the caller leaves it empty.
type Draft struct {
	Type      Type
	Severity  Severity
	Account   string
	Model     string
	RequestID string
	Message   string
	Details   map[string]interface{}
}
