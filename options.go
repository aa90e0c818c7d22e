package tradesharer

import (
	"github.com/raykavin/tradesharer/pkg/core"
	"github.com/raykavin/tradesharer/pkg/dedup"
	"github.com/raykavin/tradesharer/pkg/logger"
)

// Option is a functional option for configuring a Sharer instance
type Option func(*Sharer)

// WithDispatcher overrides the default Telegram dispatcher
func WithDispatcher(dispatcher core.Dispatcher) Option {
	return func(s *Sharer) {
		s.dispatcher = dispatcher
	}
}

// WithTracker overrides the default in-memory dedup tracker
func WithTracker(tracker *dedup.Tracker) Option {
	return func(s *Sharer) {
		s.tracker = tracker
	}
}

// WithNotifier registers a display surface for status and error reports
func WithNotifier(notifier core.Notifier) Option {
	return func(s *Sharer) {
		s.notifier = notifier
	}
}

// WithLogger overrides the default logger
func WithLogger(log logger.Logger) Option {
	return func(s *Sharer) {
		s.log = log
	}
}
