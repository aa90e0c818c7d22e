// Package poller reconciles fills the push stream may have missed by
// periodically querying the host for the current order set.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/raykavin/tradesharer/pkg/core"
	"github.com/raykavin/tradesharer/pkg/dedup"
	"github.com/raykavin/tradesharer/pkg/logger"
	"github.com/samber/lo"
)

const (
	// DefaultInterval between order queries. The interval is also the
	// only retry policy: a failed tick waits for the next one.
	DefaultInterval = 30 * time.Second

	defaultQueryTimeout = 10 * time.Second
)

// Handler consumes order records that survived deduplication. The handler
// isolates its own failures; one bad record never blocks the rest.
type Handler func(ctx context.Context, order core.OrderRecord)

// QueryError reports a failed poll tick
type QueryError struct {
	Err error
}

// Error implements the error interface
func (e *QueryError) Error() string {
	return fmt.Sprintf("order query failed: %v", e.Err)
}

// Unwrap exposes the underlying error
func (e *QueryError) Unwrap() error {
	return e.Err
}

// Poller runs the reconciliation loop
type Poller struct {
	host         core.Host
	tracker      *dedup.Tracker
	handler      Handler
	interval     time.Duration
	queryTimeout time.Duration
	log          logger.Logger
	finish       chan struct{}
	mu           sync.Mutex
	running      bool
}

// New creates a poller. A zero interval falls back to DefaultInterval.
func New(host core.Host, tracker *dedup.Tracker, handler Handler, interval time.Duration, log logger.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Poller{
		host:         host,
		tracker:      tracker,
		handler:      handler,
		interval:     interval,
		queryTimeout: defaultQueryTimeout,
		log:          log,
		finish:       make(chan struct{}),
	}
}

// Start begins the polling loop
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.tick(ctx)
			case <-ctx.Done():
				return
			case <-p.finish:
				return
			}
		}
	}()

	p.log.WithField("interval", p.interval.String()).Info("order poller started")
}

// Stop halts the polling loop. In-flight dispatches are not awaited.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		p.running = false
		close(p.finish)
		p.log.Info("order poller stopped")
	}
}

// tick issues one query-all-orders call and pushes new fills through the
// handler. A query failure skips the tick; the loop continues.
func (p *Poller) tick(ctx context.Context) {
	queryCtx, cancel := context.WithTimeout(ctx, p.queryTimeout)
	defer cancel()

	orders, err := p.host.QueryOrders(queryCtx)
	if err != nil {
		p.log.WithError(&QueryError{Err: err}).Warn("skipping poll tick")
		return
	}

	// The dedup decision doubles as the snapshot update: every record
	// observed this tick is recorded, filled or not.
	pending := lo.Filter(orders, func(order core.OrderRecord, _ int) bool {
		return p.tracker.ShouldNotify(order.ID, order.Status)
	})

	if len(pending) > 0 {
		p.log.WithFields(map[string]any{
			"observed": len(orders),
			"new":      len(pending),
		}).Debug("poll tick found new fills")
	}

	for _, order := range pending {
		p.handler(ctx, order)
	}
}
