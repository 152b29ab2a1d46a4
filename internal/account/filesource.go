package account

import (
	"context"
	"encoding/json"

	"github.com/antigravity-proxy/core/internal/store"
)

const snapshotKey = "accounts.json"

// record is the on-disk shape of a single account, including its health
// sub-records so a restart never loses tracked state (spec §6: "Accounts
// ... files: JSON ... beyond the requirement that health records round
// trip").
type record struct {
	Email     string                   `json:"email"`
	Enabled   bool                     `json:"enabled"`
	ProjectID string                   `json:"projectId"`
	Source    string                   `json:"source"`
	Limits    map[string]interface{}   `json:"limits"`
	Health    map[string]HealthRecord  `json:"health"`
}

// FileSource is a CredentialSource backed by a single JSON snapshot. How
// credentials first arrive in that file (operator-managed, provisioned by
// another system) is out of scope for this spec; FileSource only owns the
// round trip.
type FileSource struct {
	snap store.Snapshotter
}

// NewFileSource creates a FileSource reading/writing through snap.
func NewFileSource(snap store.Snapshotter) *FileSource {
	return &FileSource{snap: snap}
}

// Load implements CredentialSource.
func (f *FileSource) Load() ([]*Account, error) {
	data, err := f.snap.Load(context.Background(), snapshotKey)
	if err == store.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}

	out := make([]*Account, 0, len(records))
	for _, rec := range records {
		a := New(rec.Email, rec.Enabled, rec.ProjectID, rec.Source, rec.Limits)
		a.WithLock(func(a *Account) {
			for model, h := range rec.Health {
				h := h
				a.SetRecord(model, &h)
			}
		})
		out = append(out, a)
	}
	return out, nil
}

// Persist writes the full account set, including health state, to the
// snapshot backend. Intended to be called on the same cadence as the
// event recorder's snapshot tick and on shutdown.
func Persist(ctx context.Context, snap store.Snapshotter, accounts []*Account) error {
	records := make([]record, 0, len(accounts))
	for _, a := range accounts {
		records = append(records, record{
			Email:     a.Email,
			Enabled:   a.Enabled,
			ProjectID: a.ProjectID,
			Source:    a.Source,
			Limits:    a.Limits,
			Health:    a.AllHealth(),
		})
	}

	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return snap.Save(ctx, snapshotKey, data)
}
