// ABOUTME: Background poller that refreshes feed subscriptions on an interval
// ABOUTME: Picks up writes made to a shared database by other processes

package store

import (
	"log/slog"
	"sync"
	"time"
)

// Refresher is anything that can re-read its subscriptions on demand.
type Refresher interface {
	Refresh()
}

// Poller calls Refresh on a fixed interval until stopped.
type Poller struct {
	target   Refresher
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewPoller creates a poller for target. Pass nil logger for default.
func NewPoller(target Refresher, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		target:   target,
		interval: interval,
		logger:   logger.With("component", "poller"),
	}
}

// Start begins polling. Calling Start on a running poller does nothing.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	go p.loop(p.stopCh, p.doneCh)
	p.logger.Debug("poller started", "interval", p.interval)
}

// Stop halts polling and waits for the loop to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	done := p.doneCh
	p.mu.Unlock()

	<-done
	p.logger.Debug("poller stopped")
}

func (p *Poller) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.target.Refresh()
		}
	}
}
