package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antigravity-proxy/core/internal/account"
	"github.com/antigravity-proxy/core/internal/config"
	"github.com/antigravity-proxy/core/internal/health"
)

func newTestRouter(t *testing.T) (*Router, *account.Registry, *health.Tracker) {
	t.Helper()
	cfg := config.NewStore(context.Background(), config.DefaultHealthConfig(), nil)
	registry := account.NewRegistry(nil, nil)
	tracker := health.NewTracker(cfg, nil)
	return NewRouter(registry, tracker), registry, tracker
}

func TestPickAccount_NoAccountsIsUnavailable(t *testing.T) {
	r, _, _ := newTestRouter(t)
	_, err := r.PickAccount("m1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestPickAccount_SkipsDisabledAccounts(t *testing.T) {
	r, registry, _ := newTestRouter(t)
	registry.Add(account.New("disabled@example.com", false, "", "", nil))
	registry.Add(account.New("enabled@example.com", true, "", "", nil))

	picked, err := r.PickAccount("m1")
	require.NoError(t, err)
	assert.Equal(t, "enabled@example.com", picked.Email)
}

func TestPickAccount_PrefersFewestConsecutiveFailures(t *testing.T) {
	r, registry, tracker := newTestRouter(t)

	worse := account.New("worse@example.com", true, "", "", nil)
	better := account.New("better@example.com", true, "", "", nil)
	registry.Add(worse)
	registry.Add(better)

	tracker.RecordResult(worse, "m1", false, nil)

	picked, err := r.PickAccount("m1")
	require.NoError(t, err)
	assert.Equal(t, "better@example.com", picked.Email)
}

func TestPickAccount_IdenticalRecordsTieBreakOnEmail(t *testing.T) {
	r, registry, _ := newTestRouter(t)

	z := account.New("z@example.com", true, "", "", nil)
	a := account.New("a@example.com", true, "", "", nil)
	registry.Add(z)
	registry.Add(a)

	// Both have identical synthetic "never used" records (score 100,
	// zero failures, zero-value lastSuccess): tie-break falls through to
	// email lexicographic order.
	picked, err := r.PickAccount("m1")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", picked.Email)
}

func TestPickAccount_SkipsAutoDisabledAccount(t *testing.T) {
	cfg := config.DefaultHealthConfig()
	cfg.ConsecutiveFailureThreshold = 1
	cfgStore := config.NewStore(context.Background(), cfg, nil)
	registry := account.NewRegistry(nil, nil)
	tracker := health.NewTracker(cfgStore, nil)
	r := NewRouter(registry, tracker)

	bad := account.New("bad@example.com", true, "", "", nil)
	good := account.New("good@example.com", true, "", "", nil)
	registry.Add(bad)
	registry.Add(good)

	tracker.RecordResult(bad, "m1", false, nil)

	picked, err := r.PickAccount("m1")
	require.NoError(t, err)
	assert.Equal(t, "good@example.com", picked.Email)
}
