package tradesharer

import (
	"context"
	"fmt"

	"github.com/raykavin/tradesharer/pkg/core"
	"github.com/raykavin/tradesharer/pkg/notification"
	"github.com/raykavin/tradesharer/pkg/trade"
)

// onTrade handles a trade-execution push. Executions carry no order id
// and are never deduplicated: each one notifies exactly once, immediately.
func (s *Sharer) onTrade(ctx context.Context, event core.TradeEvent) {
	record, err := trade.FromTradeEvent(event)
	if err != nil {
		s.log.WithError(err).WithField("symbol", event.Symbol).Warn("dropping malformed trade event")
		return
	}

	go s.share(ctx, *record)
}

// onOrder handles an order-update push. The dedup decision is made here,
// synchronously, before any network wait begins, so an overlapping poll
// tick observing the same fill cannot double-notify.
func (s *Sharer) onOrder(ctx context.Context, order core.OrderRecord) {
	if !s.tracker.ShouldNotify(order.ID, order.Status) {
		return
	}

	s.shareOrder(ctx, order)
}

// onPolledOrder is the poll-path handler. The poller has already
// consulted the tracker for every record it hands over.
func (s *Sharer) onPolledOrder(ctx context.Context, order core.OrderRecord) {
	s.shareOrder(ctx, order)
}

// shareOrder runs the order half of the pipeline, shared by the push and
// poll paths.
func (s *Sharer) shareOrder(ctx context.Context, order core.OrderRecord) {
	record, err := trade.FromOrderRecord(order)
	if err != nil {
		s.log.WithError(err).WithField("order_id", order.ID).Warn("dropping malformed order record")
		return
	}
	if record == nil {
		return
	}

	go s.share(ctx, *record)
}

// share formats and dispatches one record. Dispatch failures are reported
// and survived; the record is not retried here.
func (s *Sharer) share(ctx context.Context, record core.TradeRecord) {
	text := notification.FormatTrade(record, s.settings.ReferralCode)

	if err := s.dispatcher.Send(ctx, text); err != nil {
		s.reportError(err)
		return
	}

	s.reportStatus(fmt.Sprintf("✅ Shared %s %s @ $%v", record.Symbol, record.Side, record.Price))
}
