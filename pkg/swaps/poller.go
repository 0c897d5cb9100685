package swaps

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 60 * time.Second // Refresh quotes every minute
	MinPollInterval     = 10 * time.Second // Minimum interval to avoid rate limiting
)

// Poller runs a function on a fixed interval until stopped
type Poller struct {
	interval time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

// NewPoller creates a stopped poller. Intervals below MinPollInterval are raised to it.
func NewPoller(interval time.Duration, logger *zap.Logger) *Poller {
	if interval < MinPollInterval {
		interval = MinPollInterval
	}
	return &Poller{interval: interval, logger: logger}
}

// Start runs fn on every tick. ctx cancellation stops the poller as well.
func (p *Poller) Start(ctx context.Context, fn func(ctx context.Context)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("poller is already running")
	}
	p.running = true
	p.stopChan = make(chan struct{})
	p.done = make(chan struct{})

	go p.loop(ctx, p.stopChan, p.done, fn)
	return nil
}

func (p *Poller) loop(ctx context.Context, stop, done chan struct{}, fn func(ctx context.Context)) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Debug("started polling", zap.Duration("interval", p.interval))
	for {
		select {
		case <-stop:
			p.logger.Debug("stopped polling")
			return
		case <-ctx.Done():
			p.logger.Debug("polling context done", zap.Error(ctx.Err()))
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// Stop halts the poller and waits for an in-flight tick. Safe to call when
// the poller is not running.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopChan)
	done := p.done
	p.mu.Unlock()

	<-done
}

// Running reports whether the poller is active
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// StartPollingForQuotes refetches quotes on the poll interval until stopped,
// a swap starts, or the flow is left
func (c *Controller) StartPollingForQuotes(ctx context.Context, inputValue string, maxSlippage float64) error {
	return c.poller.Start(ctx, func(ctx context.Context) {
		if err := c.FetchQuotes(ctx, inputValue, maxSlippage); err != nil {
			c.logger.Warn("quote refresh failed", zap.Error(err))
		}
	})
}

// StopPollingForQuotes stops the quote refresh loop
func (c *Controller) StopPollingForQuotes() {
	c.poller.Stop()
}
