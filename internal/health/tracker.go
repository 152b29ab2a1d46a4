// Package health implements the account × model health tracker (C3):
// scoring, auto-disable, auto-recovery, and manual overrides, per spec
// §3 and §4.3.
package health

import (
	"time"

	"github.com/antigravity-proxy/core/internal/account"
	"github.com/antigravity-proxy/core/internal/config"
	"github.com/antigravity-proxy/core/internal/events"
)

// ErrorInfo is the {message, code} pair attached to a failed result.
type ErrorInfo struct {
	Message string
	Code    string
}

// Tracker is the health tracker (C3). It never throws to its callers
// (spec §4.3 "Failure semantics"): an absent account yields no-op reads
// and nil writes.
type Tracker struct {
	cfg      *config.Store
	recorder *events.Recorder
}

// NewTracker creates a Tracker bound to cfg (for thresholds) and recorder
// (for health_change events).
func NewTracker(cfg *config.Store, recorder *events.Recorder) *Tracker {
	return &Tracker{cfg: cfg, recorder: recorder}
}

// score computes the §4.3 formula exactly.
func score(successCount, failCount int64, consecutiveFailures int) float64 {
	total := successCount + failCount
	if total == 0 {
		return 100
	}
	base := 100 * float64(successCount) / float64(total)
	penalty := float64(consecutiveFailures) * 6
	if penalty > 30 {
		penalty = 30
	}
	s := base - penalty
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// RecordResult applies a single outcome to the (account, model) pair and
// returns the resulting record. See spec §4.3.
func (t *Tracker) RecordResult(acc *account.Account, modelID string, success bool, errInfo *ErrorInfo) *account.HealthRecord {
	if acc == nil {
		return nil
	}

	cfg := t.cfg.Get()
	var out account.HealthRecord
	var emitDisabled, emitRecovered bool

	acc.WithLock(func(acc *account.Account) {
		rec := acc.Record(modelID)
		now := time.Now()

		if success {
			rec.SuccessCount++
			rec.LastSuccess = now
			rec.ConsecutiveFailures = 0

			if rec.Disabled && !rec.ManualDisabled {
				rec.Disabled = false
				rec.DisabledReason = ""
				rec.DisabledAt = time.Time{}
				emitRecovered = true
			}
		} else {
			rec.FailCount++
			rec.LastError = now
			if errInfo != nil {
				rec.ErrMessage = errInfo.Message
				rec.ErrCode = errInfo.Code
			}
			rec.ConsecutiveFailures++

			if cfg.AutoDisableEnabled && !rec.Disabled && !rec.ManualDisabled &&
				rec.ConsecutiveFailures >= cfg.ConsecutiveFailureThreshold {
				rec.Disabled = true
				rec.DisabledReason = "consecutive_failures"
				rec.DisabledAt = now
				emitDisabled = true
			}
		}

		rec.HealthScore = score(rec.SuccessCount, rec.FailCount, rec.ConsecutiveFailures)
		out = *rec
	})

	if t.recorder != nil {
		if emitDisabled {
			t.recorder.RecordHealthChange(acc.Email, modelID, "consecutive_failures", true, nil)
		}
		if emitRecovered {
			t.recorder.RecordHealthChange(acc.Email, modelID, "successful_request", false, nil)
		}
	}

	return &out
}

// IsModelUsable is the canonical read used by the router (spec §4.3): it
// has the side effect of clearing auto-disable once AutoRecoveryMs has
// elapsed since DisabledAt.
func (t *Tracker) IsModelUsable(acc *account.Account, modelID string) bool {
	if acc == nil {
		return false
	}

	cfg := t.cfg.Get()
	var usable, recovered bool

	acc.WithLock(func(acc *account.Account) {
		rec, ok := acc.GetRecord(modelID)
		if !ok {
			usable = true
			return
		}

		if rec.Disabled && !rec.ManualDisabled && time.Since(rec.DisabledAt) > cfg.AutoRecoveryDuration() {
			t.recover(rec)
			recovered = true
		}

		usable = !rec.Disabled && !rec.ManualDisabled
	})

	if recovered && t.recorder != nil {
		t.recorder.RecordHealthChange(acc.Email, modelID, "auto_recovery_timeout", false, nil)
	}

	return usable
}

// recover clears the auto-disable state on rec. Must be called with the
// owning account's lock held. This is the single mutation path shared by
// the side-effecting read above and the explicit TickRecovery sweep
// (spec §9 Open Question).
func (t *Tracker) recover(rec *account.HealthRecord) {
	rec.Disabled = false
	rec.ConsecutiveFailures = 0
	rec.DisabledReason = ""
	rec.DisabledAt = time.Time{}
	rec.HealthScore = score(rec.SuccessCount, rec.FailCount, rec.ConsecutiveFailures)
}

// TickRecovery sweeps every (account, model) pair and applies the same
// auto-recovery-by-timeout rule as IsModelUsable's side effect, so live
// SSE subscribers observe recovery even if no request happens to call
// IsModelUsable for that pair.
func (t *Tracker) TickRecovery(accounts []*account.Account) {
	cfg := t.cfg.Get()

	for _, acc := range accounts {
		var recovered []string

		acc.WithLock(func(acc *account.Account) {
			for _, modelID := range acc.Models() {
				rec := acc.Record(modelID)
				if rec.Disabled && !rec.ManualDisabled && time.Since(rec.DisabledAt) > cfg.AutoRecoveryDuration() {
					t.recover(rec)
					recovered = append(recovered, modelID)
				}
			}
		})

		if t.recorder != nil {
			for _, modelID := range recovered {
				t.recorder.RecordHealthChange(acc.Email, modelID, "auto_recovery_timeout", false, nil)
			}
		}
	}
}

// ToggleModel sets the manual override. Enabling also clears any
// auto-disable state (spec §4.3).
func (t *Tracker) ToggleModel(acc *account.Account, modelID string, enabled bool) {
	if acc == nil {
		return
	}
	acc.WithLock(func(acc *account.Account) {
		rec := acc.Record(modelID)
		rec.ManualDisabled = !enabled
		if enabled {
			rec.Disabled = false
			rec.DisabledReason = ""
			rec.DisabledAt = time.Time{}
		}
	})
}

// ResetHealth replaces the record(s) for acc with fresh zero records. If
// modelID is empty, every tracked model for acc is reset.
func (t *Tracker) ResetHealth(acc *account.Account, modelID string) {
	if acc == nil {
		return
	}
	acc.WithLock(func(acc *account.Account) {
		if modelID != "" {
			acc.SetRecord(modelID, account.FreshHealthRecord())
			return
		}
		for _, m := range acc.Models() {
			acc.SetRecord(m, account.FreshHealthRecord())
		}
	})
}

// ModelSnapshot is a single cell of the health matrix.
type ModelSnapshot = account.HealthRecord

// HealthMatrix is keyed by account email, then model id.
type HealthMatrix map[string]map[string]ModelSnapshot

// BuildHealthMatrix returns, for each account, a mapping from each
// requested modelID to a snapshot of its record (or a synthetic
// "never used" record with score 100).
func (t *Tracker) BuildHealthMatrix(accounts []*account.Account, modelIDs []string) HealthMatrix {
	out := make(HealthMatrix, len(accounts))
	for _, acc := range accounts {
		row := make(map[string]ModelSnapshot, len(modelIDs))
		for _, m := range modelIDs {
			row[m] = acc.Snapshot(m)
		}
		out[acc.Email] = row
	}
	return out
}

// Summary is the aggregate counts returned by GetHealthSummary.
type Summary struct {
	Healthy  int `json:"healthy"`
	Warning  int `json:"warning"`
	Critical int `json:"critical"`
	Disabled int `json:"disabled"`
}

// GetHealthSummary counts healthy/warning/critical/disabled across all
// tracked (account, model) pairs using the configured thresholds.
func (t *Tracker) GetHealthSummary(accounts []*account.Account) Summary {
	cfg := t.cfg.Get()
	var s Summary

	for _, acc := range accounts {
		acc.WithLock(func(acc *account.Account) {
			for _, m := range acc.Models() {
				rec := acc.Record(m)
				switch {
				case rec.Disabled || rec.ManualDisabled:
					s.Disabled++
				case rec.HealthScore < cfg.CriticalThreshold:
					s.Critical++
				case rec.HealthScore < cfg.WarningThreshold:
					s.Warning++
				default:
					s.Healthy++
				}
			}
		})
	}
	return s
}
