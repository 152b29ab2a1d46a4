// Package router implements the request routing contract (C7): selecting
// an (account, model) pair for each incoming request from the pool of
// usable accounts (spec §4.7).
package router

import (
	"errors"
	"sort"

	"github.com/antigravity-proxy/core/internal/account"
	"github.com/antigravity-proxy/core/internal/health"
)

// ErrUnavailable is returned when no usable account exists for the
// requested model. Callers translate this to an upstream 503 (spec §7).
var ErrUnavailable = errors.New("no_usable_account")

// Router selects an (account, model) pair for each request.
type Router struct {
	registry *account.Registry
	tracker  *health.Tracker
}

// NewRouter creates a Router over registry, consulting tracker for
// usability and ordering.
func NewRouter(registry *account.Registry, tracker *health.Tracker) *Router {
	return &Router{registry: registry, tracker: tracker}
}

// PickAccount selects the best usable account for modelID, or
// ErrUnavailable if none is usable (spec §4.7).
func (r *Router) PickAccount(modelID string) (*account.Account, error) {
	candidates := make([]*account.Account, 0)
	for _, acc := range r.registry.List() {
		if !acc.Enabled {
			continue
		}
		if !r.tracker.IsModelUsable(acc, modelID) {
			continue
		}
		candidates = append(candidates, acc)
	}

	if len(candidates) == 0 {
		return nil, ErrUnavailable
	}

	type scored struct {
		acc                 *account.Account
		consecutiveFailures int
		healthScore         float64
		lastSuccessUnixNano int64
	}

	rows := make([]scored, 0, len(candidates))
	for _, acc := range candidates {
		rec := acc.Snapshot(modelID)
		rows = append(rows, scored{
			acc:                 acc,
			consecutiveFailures: rec.ConsecutiveFailures,
			healthScore:         rec.HealthScore,
			lastSuccessUnixNano: rec.LastSuccess.UnixNano(),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.consecutiveFailures != b.consecutiveFailures {
			return a.consecutiveFailures < b.consecutiveFailures
		}
		if a.healthScore != b.healthScore {
			return a.healthScore > b.healthScore
		}
		if a.lastSuccessUnixNano != b.lastSuccessUnixNano {
			return a.lastSuccessUnixNano < b.lastSuccessUnixNano
		}
		return a.acc.Email < b.acc.Email
	})

	return rows[0].acc, nil
}
