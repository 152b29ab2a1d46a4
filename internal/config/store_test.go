package config

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_WarningBelowCriticalRejected(t *testing.T) {
	h := DefaultHealthConfig()
	h.WarningThreshold = 30
	h.CriticalThreshold = 40

	err := Validate(h)
	require.Error(t, err)
	verr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, "warningThreshold<criticalThreshold")
}

func TestStore_UpdateRejectsInvalidPatchAsAWhole(t *testing.T) {
	s := NewStore(context.Background(), DefaultHealthConfig(), nil)
	before := s.Get()

	bad := -1
	_, err := s.Update(context.Background(), Patch{ConsecutiveFailureThreshold: &bad})
	assert.Error(t, err)
	assert.Equal(t, before, s.Get(), "a rejected patch must leave the store untouched")
}

func TestStore_UpdateMergesOnlyPresentFields(t *testing.T) {
	s := NewStore(context.Background(), DefaultHealthConfig(), nil)

	newThreshold := 9
	updated, err := s.Update(context.Background(), Patch{ConsecutiveFailureThreshold: &newThreshold})
	require.NoError(t, err)

	assert.Equal(t, 9, updated.ConsecutiveFailureThreshold)
	assert.Equal(t, DefaultHealthConfig().WarningThreshold, updated.WarningThreshold)
}

type memSnapshotter struct {
	blobs map[string][]byte
}

func (m *memSnapshotter) Save(_ context.Context, key string, data []byte) error {
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (m *memSnapshotter) Load(_ context.Context, key string) ([]byte, error) {
	data, ok := m.blobs[key]
	if !ok {
		return nil, assertNotFound{}
	}
	return data, nil
}

type assertNotFound struct{}

func (assertNotFound) Error() string { return "not found" }

func TestStore_UpdatePersistsAndReloads(t *testing.T) {
	snap := &memSnapshotter{blobs: make(map[string][]byte)}
	s := NewStore(context.Background(), DefaultHealthConfig(), snap)

	newThreshold := 12
	_, err := s.Update(context.Background(), Patch{ConsecutiveFailureThreshold: &newThreshold})
	require.NoError(t, err)

	reloaded := NewStore(context.Background(), DefaultHealthConfig(), snap)
	assert.Equal(t, 12, reloaded.Get().ConsecutiveFailureThreshold)
}

func TestStore_ReloadPicksUpExternallyEditedSnapshot(t *testing.T) {
	snap := &memSnapshotter{blobs: make(map[string][]byte)}
	s := NewStore(context.Background(), DefaultHealthConfig(), snap)

	// Simulate an operator hand-editing config.json directly, bypassing
	// Update entirely.
	edited := DefaultHealthConfig()
	edited.ConsecutiveFailureThreshold = 7
	data, err := json.Marshal(edited)
	require.NoError(t, err)
	snap.blobs[snapshotKey] = data

	reloaded, err := s.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, reloaded.ConsecutiveFailureThreshold)
	assert.Equal(t, 7, s.Get().ConsecutiveFailureThreshold)
}

func TestStore_ReloadRejectsInvalidSnapshotLeavingStoreUntouched(t *testing.T) {
	snap := &memSnapshotter{blobs: make(map[string][]byte)}
	s := NewStore(context.Background(), DefaultHealthConfig(), snap)
	before := s.Get()

	invalid := DefaultHealthConfig()
	invalid.WarningThreshold = 10
	invalid.CriticalThreshold = 90
	data, err := json.Marshal(invalid)
	require.NoError(t, err)
	snap.blobs[snapshotKey] = data

	_, err = s.Reload(context.Background())
	assert.Error(t, err)
	assert.Equal(t, before, s.Get())
}

func TestStore_ReloadWithNoSnapshotterIsNoop(t *testing.T) {
	s := NewStore(context.Background(), DefaultHealthConfig(), nil)
	reloaded, err := s.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultHealthConfig(), reloaded)
}
