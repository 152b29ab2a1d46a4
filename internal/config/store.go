package config

import (
	"context"
	"encoding/json"
	"sync"
)

// snapshotter is the minimal persistence contract the store needs; it is
// satisfied by *store.FileSnapshotter and *store.RedisSnapshotter without
// this package importing internal/store (avoids a dependency cycle since
// store has no need to know about config).
type snapshotter interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
}

const snapshotKey = "config.json"

// Store is the copy-on-write config store (C1). Get returns a defensive
// copy; Update validates the patch as a whole (spec §4.1: "no partial
// application") and persists durably before returning.
type Store struct {
	mu   sync.RWMutex
	cur  HealthConfig
	snap snapshotter
}

// NewStore creates a config store seeded with initial, optionally
// overridden by whatever is found in snap under snapshotKey.
func NewStore(ctx context.Context, initial HealthConfig, snap snapshotter) *Store {
	s := &Store{cur: initial, snap: snap}
	if snap == nil {
		return s
	}
	data, err := snap.Load(ctx, snapshotKey)
	if err != nil {
		return s
	}
	var loaded HealthConfig
	if json.Unmarshal(data, &loaded) == nil {
		if Validate(loaded) == nil {
			s.cur = loaded
		}
	}
	return s
}

// Get returns a defensive copy of the current configuration.
func (s *Store) Get() HealthConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Patch describes a partial update to HealthConfig; nil fields mean
// "leave unchanged". All present fields are merged onto the current
// config, validated as a whole, and only then applied.
type Patch struct {
	ConsecutiveFailureThreshold *int
	WarningThreshold            *float64
	CriticalThreshold           *float64
	AutoDisableEnabled          *bool
	AutoRecoveryMs              *int64
	EventMaxCount               *int
	EventRetentionDays          *int
	QuotaThreshold              *float64
	QuotaPollIntervalMs         *int64
	StaleIssueMs                *int64
}

func apply(base HealthConfig, p Patch) HealthConfig {
	if p.ConsecutiveFailureThreshold != nil {
		base.ConsecutiveFailureThreshold = *p.ConsecutiveFailureThreshold
	}
	if p.WarningThreshold != nil {
		base.WarningThreshold = *p.WarningThreshold
	}
	if p.CriticalThreshold != nil {
		base.CriticalThreshold = *p.CriticalThreshold
	}
	if p.AutoDisableEnabled != nil {
		base.AutoDisableEnabled = *p.AutoDisableEnabled
	}
	if p.AutoRecoveryMs != nil {
		base.AutoRecoveryMs = *p.AutoRecoveryMs
	}
	if p.EventMaxCount != nil {
		base.EventMaxCount = *p.EventMaxCount
	}
	if p.EventRetentionDays != nil {
		base.EventRetentionDays = *p.EventRetentionDays
	}
	if p.QuotaThreshold != nil {
		base.QuotaThreshold = *p.QuotaThreshold
	}
	if p.QuotaPollIntervalMs != nil {
		base.QuotaPollIntervalMs = *p.QuotaPollIntervalMs
	}
	if p.StaleIssueMs != nil {
		base.StaleIssueMs = *p.StaleIssueMs
	}
	return base
}

// Reload re-reads the durable snapshot (if any snapshotter is configured)
// and installs it after validation, letting an operator who hand-edits
// config.json on disk pick up the change without restarting the process.
// A missing or invalid snapshot leaves the current config untouched.
func (s *Store) Reload(ctx context.Context) (HealthConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap == nil {
		return s.cur, nil
	}

	data, err := s.snap.Load(ctx, snapshotKey)
	if err != nil {
		return s.cur, err
	}

	var loaded HealthConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		return s.cur, err
	}
	if err := Validate(loaded); err != nil {
		return s.cur, err
	}

	s.cur = loaded
	return s.cur, nil
}

// Update validates patch against the current config as a whole and, if
// valid, durably persists and installs it. On failure the store is left
// unchanged.
func (s *Store) Update(ctx context.Context, p Patch) (HealthConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidate := apply(s.cur, p)
	if err := Validate(candidate); err != nil {
		return s.cur, err
	}

	if s.snap != nil {
		data, err := json.Marshal(candidate)
		if err != nil {
			return s.cur, err
		}
		if err := s.snap.Save(ctx, snapshotKey, data); err != nil {
			return s.cur, err
		}
	}

	s.cur = candidate
	return s.cur, nil
}
