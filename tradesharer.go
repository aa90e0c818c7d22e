// Package tradesharer relays trading activity from a host data source to
// a Telegram chat, deduplicating redundant notifications along the way.
package tradesharer

import (
	"context"
	"fmt"
	"sync"

	"github.com/raykavin/tradesharer/pkg/core"
	"github.com/raykavin/tradesharer/pkg/dedup"
	"github.com/raykavin/tradesharer/pkg/logger"
	"github.com/raykavin/tradesharer/pkg/notification"
	"github.com/raykavin/tradesharer/pkg/poller"
)

// Status represents the current state of the pipeline
type Status string

// Available pipeline statuses
const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
)

// Sharer is the pipeline coordinator. It owns the session configuration,
// the dedup tracker and the poll loop, and wires push subscriptions into
// the normalize → dedup → format → dispatch chain.
type Sharer struct {
	settings   *core.Settings
	host       core.Host
	dispatcher core.Dispatcher
	tracker    *dedup.Tracker
	poller     *poller.Poller
	control    *notification.Control
	notifier   core.Notifier
	log        logger.Logger

	stopOnce sync.Once

	mu     sync.RWMutex
	cancel context.CancelFunc
	status Status
}

// NewSharer creates a pipeline for the given session. Both Telegram
// credentials must be present; nothing is subscribed before that check.
func NewSharer(settings *core.Settings, host core.Host, options ...Option) (*Sharer, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	s := &Sharer{
		settings: settings,
		host:     host,
		log:      DefaultLog,
		status:   StatusIdle,
	}

	for _, option := range options {
		option(s)
	}

	if s.dispatcher == nil {
		s.dispatcher = notification.NewTelegram(settings.Telegram, s.log)
	}

	if s.tracker == nil {
		tracker, err := dedup.NewTracker(s.log)
		if err != nil {
			return nil, err
		}
		s.tracker = tracker
	}

	s.poller = poller.New(host, s.tracker, s.onPolledOrder, settings.PollInterval, s.log)

	if settings.Telegram.ControlEnabled {
		control, err := notification.NewControl(settings.Telegram, s.dispatcher, s, s.log)
		if err != nil {
			return nil, fmt.Errorf("failed to start control bot: %w", err)
		}
		s.control = control
	}

	return s, nil
}

// Status returns the current pipeline status, including the host
// connection state when the host exposes one.
func (s *Sharer) Status() string {
	s.mu.RLock()
	status := s.status
	s.mu.RUnlock()

	if probe, ok := s.host.(interface{ IsConnected() bool }); ok && status == StatusRunning && !probe.IsConnected() {
		return string(status) + " (host disconnected)"
	}
	return string(status)
}

// Run subscribes to the host push topics, starts the poll loop and blocks
// until the context is cancelled or Stop is called. Any single failure is
// reported and survived; the pipeline keeps running.
func (s *Sharer) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.status == StatusStopped {
		s.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	trades, tradeErrs := s.host.TradesSubscription(ctx)
	orders, orderErrs := s.host.OrdersSubscription(ctx)

	s.poller.Start(ctx)
	if s.control != nil {
		s.control.Start()
	}

	s.setStatus(StatusRunning)
	s.reportStatus("✅ Listening for trades and orders")

	for {
		select {
		case event, ok := <-trades:
			if !ok {
				s.Stop()
				return nil
			}
			s.onTrade(ctx, event)

		case order, ok := <-orders:
			if !ok {
				s.Stop()
				return nil
			}
			s.onOrder(ctx, order)

		case err := <-tradeErrs:
			s.reportError(err)

		case err := <-orderErrs:
			s.reportError(err)

		case <-ctx.Done():
			s.Stop()
			return nil
		}
	}
}

// Stop cancels the poll loop and the push subscriptions. In-flight
// dispatches complete or fail on their own; they are not awaited. The
// tracker state is discarded.
func (s *Sharer) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		cancel := s.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}

		s.poller.Stop()
		if s.control != nil {
			s.control.Stop()
		}
		if err := s.tracker.Close(); err != nil {
			s.log.WithError(err).Warn("failed to discard tracker state")
		}

		s.setStatus(StatusStopped)
		s.reportStatus("Sharer stopped")
	})
}

// SendTest pushes the fixed test message through the dispatcher so the
// credentials can be verified without waiting for a trade.
func (s *Sharer) SendTest(ctx context.Context) error {
	return s.dispatcher.Send(ctx, notification.TestMessage)
}

func (s *Sharer) setStatus(status Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

func (s *Sharer) reportStatus(text string) {
	s.log.Info(text)
	if s.notifier != nil {
		s.notifier.OnStatus(text)
	}
}

func (s *Sharer) reportError(err error) {
	if err == nil {
		return
	}
	s.log.WithError(err).Error("pipeline error")
	if s.notifier != nil {
		s.notifier.OnError(err)
	}
}
