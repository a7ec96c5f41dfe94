// ABOUTME: Greeting and Japanese time/date formatting for the dashboard header
// ABOUTME: Ticker recomputes the clock face every interval and publishes changes

package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Header texts
const (
	MorningGreeting   = "おはようございます！🌞"
	AfternoonGreeting = "こんにちは！😊"
	Motto             = "きょうも げんきに がんばろう"
)

var weekdayLabels = [7]string{"にち", "げつ", "か", "すい", "もく", "きん", "ど"}

// Greeting returns the morning greeting before noon and the afternoon one
// from 12:00 on.
func Greeting(t time.Time) string {
	if t.Hour() < 12 {
		return MorningGreeting
	}
	return AfternoonGreeting
}

// FormatTime renders t as H:MM with an unpadded hour.
func FormatTime(t time.Time) string {
	return fmt.Sprintf("%d:%02d", t.Hour(), t.Minute())
}

// FormatDate renders t as "Mがつ Dにち (曜)".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%dがつ %dにち (%s)", int(t.Month()), t.Day(), weekdayLabels[t.Weekday()])
}

// ClockFace is everything the header shows that depends on the time
type ClockFace struct {
	Time     string `json:"time"`
	Date     string `json:"date"`
	Greeting string `json:"greeting"`
}

// FaceAt computes the clock face for t.
func FaceAt(t time.Time) ClockFace {
	return ClockFace{
		Time:     FormatTime(t),
		Date:     FormatDate(t),
		Greeting: Greeting(t),
	}
}

// Ticker recomputes the clock face on an interval in a fixed location.
type Ticker struct {
	interval time.Duration
	loc      *time.Location
	now      func() time.Time
	hub      *hub[ClockFace]
	logger   *slog.Logger

	mu      sync.RWMutex
	current ClockFace
}

// NewTicker creates a ticker. A nil location uses time.Local; pass nil logger
// for default.
func NewTicker(interval time.Duration, loc *time.Location, logger *slog.Logger) *Ticker {
	if interval <= 0 {
		interval = time.Second
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "clock")

	t := &Ticker{
		interval: interval,
		loc:      loc,
		now:      time.Now,
		hub:      newHub[ClockFace](logger),
		logger:   logger,
	}
	t.current = FaceAt(t.now().In(loc))
	return t
}

// Now returns the current time in the ticker's location.
func (t *Ticker) Now() time.Time {
	return t.now().In(t.loc)
}

// Current returns the most recently computed face.
func (t *Ticker) Current() ClockFace {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Watch returns a channel receiving each new face until ctx ends.
func (t *Ticker) Watch(ctx context.Context) <-chan ClockFace {
	return t.hub.watch(ctx)
}

// Run ticks until ctx is cancelled, then closes all watchers.
func (t *Ticker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	defer t.hub.close()

	t.logger.Debug("clock started", "interval", t.interval, "location", t.loc.String())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick()
		}
	}
}

// tick recomputes the face and publishes it when it changed.
func (t *Ticker) tick() {
	face := FaceAt(t.Now())

	t.mu.Lock()
	changed := face != t.current
	t.current = face
	t.mu.Unlock()

	if changed {
		t.hub.publish(face)
	}
}
