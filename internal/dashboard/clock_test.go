// ABOUTME: Tests for greeting selection, time/date formatting, and the ticker

package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, min int) time.Time {
	return time.Date(2025, 4, 7, hour, min, 0, 0, time.UTC)
}

func TestGreeting(t *testing.T) {
	tests := []struct {
		name string
		time time.Time
		want string
	}{
		{"midnight", at(0, 0), MorningGreeting},
		{"just before noon", time.Date(2025, 4, 7, 11, 59, 59, 999, time.UTC), MorningGreeting},
		{"exactly noon", at(12, 0), AfternoonGreeting},
		{"evening", at(18, 30), AfternoonGreeting},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Greeting(tt.time))
		})
	}
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "9:05", FormatTime(at(9, 5)))
	assert.Equal(t, "0:00", FormatTime(at(0, 0)))
	assert.Equal(t, "13:45", FormatTime(at(13, 45)))
}

func TestFormatDate(t *testing.T) {
	// 2025-04-07 is a Monday
	assert.Equal(t, "4がつ 7にち (げつ)", FormatDate(at(9, 0)))
	assert.Equal(t, "12がつ 28にち (にち)", FormatDate(time.Date(2025, 12, 28, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "1がつ 3にち (ど)", FormatDate(time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)))
}

func TestTicker_PublishesOnlyChanges(t *testing.T) {
	ticker := NewTicker(time.Second, time.UTC, nil)
	current := at(11, 59)
	ticker.now = func() time.Time { return current }
	ticker.tick()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	faces := ticker.Watch(ctx)

	ticker.tick()
	select {
	case f := <-faces:
		t.Fatalf("unexpected face %+v", f)
	default:
	}

	current = at(12, 0)
	ticker.tick()
	select {
	case f := <-faces:
		assert.Equal(t, "12:00", f.Time)
		assert.Equal(t, AfternoonGreeting, f.Greeting)
	default:
		t.Fatal("expected a new face")
	}
	assert.Equal(t, "12:00", ticker.Current().Time)
}

func TestTicker_UsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	ticker := NewTicker(time.Second, tokyo, nil)
	ticker.now = func() time.Time { return time.Date(2025, 4, 7, 2, 30, 0, 0, time.UTC) }

	ticker.tick()
	assert.Equal(t, "11:30", ticker.Current().Time)
	assert.Equal(t, MorningGreeting, ticker.Current().Greeting)
}

func TestTicker_RunClosesWatchers(t *testing.T) {
	ticker := NewTicker(10*time.Millisecond, time.UTC, nil)

	ctx, cancel := context.WithCancel(context.Background())
	faces := ticker.Watch(context.Background())

	done := make(chan struct{})
	go func() {
		ticker.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	require.Eventually(t, func() bool {
		_, ok := <-faces
		return !ok
	}, time.Second, 10*time.Millisecond)
}
