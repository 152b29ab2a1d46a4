package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antigravity-proxy/core/internal/config"
	"github.com/antigravity-proxy/core/internal/store"
)

type memSnapshotter struct {
	blobs map[string][]byte
}

func newMemSnapshotter() *memSnapshotter {
	return &memSnapshotter{blobs: make(map[string][]byte)}
}

func (m *memSnapshotter) Save(_ context.Context, key string, data []byte) error {
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (m *memSnapshotter) Load(_ context.Context, key string) ([]byte, error) {
	data, ok := m.blobs[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return data, nil
}

func TestRecorder_RecordAssignsIDAndAppends(t *testing.T) {
	r := NewRecorder(context.Background(), RecorderOptions{})

	evt := r.Record(Draft{Type: TypeSystem, Severity: SeverityInfo, Message: "hello"})
	assert.NotEmpty(t, evt.ID)
	assert.False(t, evt.Timestamp.IsZero())

	matched, total := r.GetEvents(Filter{})
	assert.Equal(t, 1, total)
	assert.Equal(t, evt.ID, matched[0].ID)
}

func TestRecorder_GetEventsFiltersAndPaginates(t *testing.T) {
	r := NewRecorder(context.Background(), RecorderOptions{})

	r.Record(Draft{Type: TypeRequest, Account: "a@example.com", Message: "1"})
	r.Record(Draft{Type: TypeRequest, Account: "b@example.com", Message: "2"})
	r.Record(Draft{Type: TypeRateLimit, Account: "a@example.com", Message: "3"})

	matched, total := r.GetEvents(Filter{Account: "a@example.com"})
	assert.Equal(t, 2, total)
	assert.Len(t, matched, 2)

	matched, total = r.GetEvents(Filter{Type: TypeRateLimit})
	assert.Equal(t, 1, total)
	assert.Equal(t, "3", matched[0].Message)
}

func TestRecorder_GetStatsSuccessRate(t *testing.T) {
	r := NewRecorder(context.Background(), RecorderOptions{})

	r.Record(Draft{Type: TypeRequest, Details: map[string]interface{}{"success": true}})
	r.Record(Draft{Type: TypeRequest, Details: map[string]interface{}{"success": true}})
	r.Record(Draft{Type: TypeRequest, Details: map[string]interface{}{"success": false}})

	stats := r.GetStats(StatsFilter{})
	assert.Equal(t, 3, stats.Requests.Total)
	assert.Equal(t, 2, stats.Requests.Success)
	assert.Equal(t, 1, stats.Requests.Failed)
	assert.InDelta(t, 66.7, stats.Requests.SuccessRate, 0.01)
}

func TestRecorder_GetStatsSuccessRateDefaultsTo100(t *testing.T) {
	r := NewRecorder(context.Background(), RecorderOptions{})
	stats := r.GetStats(StatsFilter{})
	assert.Equal(t, 100.0, stats.Requests.SuccessRate)
}

func TestRecorder_TailReturnsNewestNInChronologicalOrder(t *testing.T) {
	r := NewRecorder(context.Background(), RecorderOptions{})
	for i := 0; i < 5; i++ {
		r.Record(Draft{Type: TypeSystem, Message: string(rune('a' + i))})
	}

	tail := r.Tail(2)
	require.Len(t, tail, 2)
	assert.Equal(t, "d", tail[0].Message)
	assert.Equal(t, "e", tail[1].Message)
}

func TestRecorder_ClearResetsAndPersists(t *testing.T) {
	snap := newMemSnapshotter()
	r := NewRecorder(context.Background(), RecorderOptions{Snap: snap})
	r.Record(Draft{Type: TypeSystem, Message: "x"})

	cleared := r.Clear(context.Background())
	assert.Equal(t, 1, cleared)

	_, total := r.GetEvents(Filter{})
	assert.Equal(t, 0, total)

	reloaded := NewRecorder(context.Background(), RecorderOptions{Snap: snap})
	_, total = reloaded.GetEvents(Filter{})
	assert.Equal(t, 0, total)
}

func TestRecorder_SnapshotRoundTrip(t *testing.T) {
	snap := newMemSnapshotter()
	r := NewRecorder(context.Background(), RecorderOptions{Snap: snap})
	r.Record(Draft{Type: TypeSystem, Message: "persisted"})
	r.Snapshot(context.Background())

	reloaded := NewRecorder(context.Background(), RecorderOptions{Snap: snap})
	matched, total := reloaded.GetEvents(Filter{})
	require.Equal(t, 1, total)
	assert.Equal(t, "persisted", matched[0].Message)
}

func TestRecorder_PruneDropsOldAndExcess(t *testing.T) {
	h := config.DefaultHealthConfig()
	h.EventRetentionDays = 7
	h.EventMaxCount = 1000
	cfg := config.NewStore(context.Background(), h, nil)
	r := NewRecorder(context.Background(), RecorderOptions{Config: cfg})

	old := Event{ID: "old", Timestamp: time.Now().AddDate(0, 0, -10), Type: TypeSystem}
	fresh := Event{ID: "fresh", Timestamp: time.Now(), Type: TypeSystem}
	r.events = []Event{old, fresh}
	r.dirty = false

	r.Prune()

	assert.Len(t, r.events, 1)
	assert.Equal(t, "fresh", r.events[0].ID)
	assert.True(t, r.dirty)
}
