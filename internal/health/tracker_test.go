package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/antigravity-proxy/core/internal/account"
	"github.com/antigravity-proxy/core/internal/config"
)

func newTestStore(t *testing.T, mutate func(*config.HealthConfig)) *config.Store {
	t.Helper()
	cfg := config.DefaultHealthConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return config.NewStore(context.Background(), cfg, nil)
}

func TestScoreFormula(t *testing.T) {
	assert.Equal(t, 100.0, score(0, 0, 0))
	assert.Equal(t, 100.0, score(10, 0, 0))
	assert.Equal(t, 50.0, score(5, 5, 0))
	assert.Equal(t, 0.0, score(0, 10, 10))
	// base=90, penalty=min(3*6,30)=18 -> 72
	assert.Equal(t, 72.0, score(9, 1, 3))
	// penalty clamps at 30 regardless of a larger consecutiveFailures count
	assert.Equal(t, 70.0, score(10, 0, 10))
}

func TestRecordResult_AutoDisableOnStreak(t *testing.T) {
	cfgStore := newTestStore(t, func(c *config.HealthConfig) {
		c.ConsecutiveFailureThreshold = 3
	})
	tracker := NewTracker(cfgStore, nil)
	acc := account.New("a@example.com", true, "", "", nil)

	var rec *account.HealthRecord
	for i := 0; i < 3; i++ {
		rec = tracker.RecordResult(acc, "m1", false, &ErrorInfo{Message: "boom", Code: "E"})
	}

	assert.True(t, rec.Disabled)
	assert.Equal(t, "consecutive_failures", rec.DisabledReason)
	assert.False(t, tracker.IsModelUsable(acc, "m1"))
}

func TestRecordResult_SuccessClearsAutoDisable(t *testing.T) {
	cfgStore := newTestStore(t, func(c *config.HealthConfig) {
		c.ConsecutiveFailureThreshold = 2
	})
	tracker := NewTracker(cfgStore, nil)
	acc := account.New("a@example.com", true, "", "", nil)

	tracker.RecordResult(acc, "m1", false, nil)
	tracker.RecordResult(acc, "m1", false, nil)
	assert.False(t, tracker.IsModelUsable(acc, "m1"))

	rec := tracker.RecordResult(acc, "m1", true, nil)
	assert.False(t, rec.Disabled)
	assert.Equal(t, 0, rec.ConsecutiveFailures)
	assert.True(t, tracker.IsModelUsable(acc, "m1"))
}

func TestManualOverrideSurvivesSuccess(t *testing.T) {
	cfgStore := newTestStore(t, nil)
	tracker := NewTracker(cfgStore, nil)
	acc := account.New("a@example.com", true, "", "", nil)

	tracker.ToggleModel(acc, "m1", false)
	assert.False(t, tracker.IsModelUsable(acc, "m1"))

	tracker.RecordResult(acc, "m1", true, nil)
	assert.False(t, tracker.IsModelUsable(acc, "m1"), "manual disable must survive a successful request")

	tracker.ToggleModel(acc, "m1", true)
	assert.True(t, tracker.IsModelUsable(acc, "m1"))
}

func TestIsModelUsable_AutoRecoveryByTimeout(t *testing.T) {
	cfgStore := newTestStore(t, func(c *config.HealthConfig) {
		c.ConsecutiveFailureThreshold = 1
		c.AutoRecoveryMs = 1
	})
	tracker := NewTracker(cfgStore, nil)
	acc := account.New("a@example.com", true, "", "", nil)

	tracker.RecordResult(acc, "m1", false, nil)
	assert.False(t, tracker.IsModelUsable(acc, "m1"))

	time.Sleep(5 * time.Millisecond)
	assert.True(t, tracker.IsModelUsable(acc, "m1"), "disable should clear once autoRecoveryMs has elapsed")
}

func TestTickRecovery_SweepsWithoutRead(t *testing.T) {
	cfgStore := newTestStore(t, func(c *config.HealthConfig) {
		c.ConsecutiveFailureThreshold = 1
		c.AutoRecoveryMs = 1
	})
	tracker := NewTracker(cfgStore, nil)
	acc := account.New("a@example.com", true, "", "", nil)

	tracker.RecordResult(acc, "m1", false, nil)
	time.Sleep(5 * time.Millisecond)

	tracker.TickRecovery([]*account.Account{acc})

	rec := acc.Snapshot("m1")
	assert.False(t, rec.Disabled)
	assert.Equal(t, 0, rec.ConsecutiveFailures)
}

func TestResetHealth(t *testing.T) {
	cfgStore := newTestStore(t, nil)
	tracker := NewTracker(cfgStore, nil)
	acc := account.New("a@example.com", true, "", "", nil)

	tracker.RecordResult(acc, "m1", false, nil)
	tracker.RecordResult(acc, "m2", false, nil)

	tracker.ResetHealth(acc, "m1")
	assert.Equal(t, 100.0, acc.Snapshot("m1").HealthScore)
	assert.Equal(t, int64(1), acc.Snapshot("m2").FailCount)

	tracker.ResetHealth(acc, "")
	assert.Equal(t, int64(0), acc.Snapshot("m2").FailCount)
}

func TestBuildHealthMatrix_SyntheticNeverUsed(t *testing.T) {
	cfgStore := newTestStore(t, nil)
	tracker := NewTracker(cfgStore, nil)
	acc := account.New("a@example.com", true, "", "", nil)

	matrix := tracker.BuildHealthMatrix([]*account.Account{acc}, []string{"unused-model"})
	assert.Equal(t, 100.0, matrix["a@example.com"]["unused-model"].HealthScore)
}

func TestGetHealthSummary(t *testing.T) {
	cfgStore := newTestStore(t, func(c *config.HealthConfig) {
		c.WarningThreshold = 70
		c.CriticalThreshold = 40
	})
	tracker := NewTracker(cfgStore, nil)
	acc := account.New("a@example.com", true, "", "", nil)

	// healthy: never used (score 100)
	acc.WithLock(func(a *account.Account) { a.Record("healthy-model") })
	// warning: score between critical and warning
	acc.WithLock(func(a *account.Account) {
		rec := a.Record("warning-model")
		rec.SuccessCount, rec.FailCount, rec.ConsecutiveFailures = 6, 4, 0
		rec.HealthScore = score(rec.SuccessCount, rec.FailCount, rec.ConsecutiveFailures)
	})

	summary := tracker.GetHealthSummary([]*account.Account{acc})
	assert.Equal(t, 1, summary.Healthy)
	assert.Equal(t, 1, summary.Warning)
}
