package resilience

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthTracker_UnhealthyAfterThreshold(t *testing.T) {
	tracker := NewProviderHealthTracker(3, nil)
	ctx := context.Background()

	tracker.Register("airbnb")
	assert.True(t, tracker.IsAvailable(ctx, "airbnb"))

	tracker.RecordFailure("airbnb", "timeout")
	tracker.RecordFailure("airbnb", "timeout")
	assert.True(t, tracker.IsAvailable(ctx, "airbnb"))

	tracker.RecordFailure("airbnb", "timeout")
	assert.False(t, tracker.IsAvailable(ctx, "airbnb"))
}

func TestHealthTracker_SuccessResetsStreak(t *testing.T) {
	tracker := NewProviderHealthTracker(3, nil)
	ctx := context.Background()

	tracker.RecordFailure("airbnb", "timeout")
	tracker.RecordFailure("airbnb", "timeout")
	tracker.RecordSuccess("airbnb")
	tracker.RecordFailure("airbnb", "timeout")
	tracker.RecordFailure("airbnb", "timeout")

	assert.True(t, tracker.IsAvailable(ctx, "airbnb"))
}

func TestHealthTracker_Recovery(t *testing.T) {
	tracker := NewProviderHealthTracker(1, nil)
	ctx := context.Background()

	tracker.RecordFailure("openweather", "down")
	assert.False(t, tracker.IsAvailable(ctx, "openweather"))

	tracker.RecordSuccess("openweather")
	assert.True(t, tracker.IsAvailable(ctx, "openweather"))
}

func TestHealthTracker_UnknownServiceIsAvailable(t *testing.T) {
	tracker := NewProviderHealthTracker(3, nil)
	assert.True(t, tracker.IsAvailable(context.Background(), "never_seen"))
}

func TestHealthTracker_DegradationLevels(t *testing.T) {
	tracker := NewProviderHealthTracker(1, nil)
	for _, service := range []string{"a", "b", "c", "d"} {
		tracker.Register(service)
	}
	assert.Equal(t, LevelNormal, tracker.DegradationLevel())

	tracker.RecordFailure("a", "down")
	assert.Equal(t, LevelPartial, tracker.DegradationLevel())

	tracker.RecordFailure("b", "down")
	assert.Equal(t, LevelSevere, tracker.DegradationLevel())

	tracker.RecordFailure("c", "down")
	assert.Equal(t, LevelCritical, tracker.DegradationLevel())

	tracker.RecordSuccess("b")
	tracker.RecordSuccess("c")
	assert.Equal(t, LevelPartial, tracker.DegradationLevel())
}

func TestHealthTracker_Snapshot(t *testing.T) {
	tracker := NewProviderHealthTracker(2, nil)
	tracker.RecordFailure("airbnb", "connection refused")

	snapshot := tracker.Snapshot()
	health, ok := snapshot["airbnb"]
	assert.True(t, ok)
	assert.True(t, health.Healthy)
	assert.Equal(t, 1, health.ConsecutiveErrors)
	assert.Equal(t, "connection refused", health.Message)
}
