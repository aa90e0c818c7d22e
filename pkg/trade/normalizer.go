// Package trade reduces the host's payload shapes to the canonical
// TradeRecord consumed by the formatter and dispatcher.
package trade

import (
	"fmt"
	"strings"
	"time"

	"github.com/raykavin/tradesharer/pkg/core"
)

// ParseSide folds an upstream side string into a normalized SideType.
// Any value other than "buy" or "sell" (case-insensitive) is an error.
func ParseSide(side string) (core.SideType, error) {
	switch strings.ToLower(strings.TrimSpace(side)) {
	case "buy":
		return core.SideTypeBuy, nil
	case "sell":
		return core.SideTypeSell, nil
	default:
		return "", &core.NormalizationError{Field: "side", Reason: fmt.Sprintf("has unrecognized value %q", side)}
	}
}

// FromTradeEvent converts a trade-execution push into a TradeRecord.
// Executions are notified unconditionally, so the record carries no
// order id.
func FromTradeEvent(ev core.TradeEvent) (*core.TradeRecord, error) {
	if ev.Symbol == "" {
		return nil, &core.NormalizationError{Field: "symbol", Reason: "is missing"}
	}

	side, err := ParseSide(ev.Side)
	if err != nil {
		return nil, err
	}

	if ev.Size <= 0 {
		return nil, &core.NormalizationError{Field: "size", Reason: "must be positive"}
	}

	if ev.Price <= 0 {
		return nil, &core.NormalizationError{Field: "price", Reason: "must be positive"}
	}

	return &core.TradeRecord{
		Symbol:      ev.Symbol,
		Side:        side,
		Size:        ev.Size,
		Price:       ev.Price,
		Time:        toTime(ev.Timestamp),
		RealizedPnl: copyPnl(ev.RealizedPnl),
	}, nil
}

// FromOrderRecord converts an order payload into a TradeRecord. Orders in
// any status other than "filled" return (nil, nil): they are expected
// intermediate states, not errors. Price falls back to the average fill
// price, and a missing realized PnL defaults to zero because the host
// always reports a realized figure for fills.
func FromOrderRecord(o core.OrderRecord) (*core.TradeRecord, error) {
	if o.Status != core.OrderStatusFilled {
		return nil, nil
	}

	if o.Symbol == "" {
		return nil, &core.NormalizationError{Field: "symbol", Reason: "is missing"}
	}

	side, err := ParseSide(o.Side)
	if err != nil {
		return nil, err
	}

	if o.Size <= 0 {
		return nil, &core.NormalizationError{Field: "size", Reason: "must be positive"}
	}

	price := o.Price
	if price == 0 {
		price = o.AvgPrice
	}
	if price <= 0 {
		return nil, &core.NormalizationError{Field: "price", Reason: "must be positive"}
	}

	pnl := copyPnl(o.RealizedPnl)
	if pnl == nil {
		zero := 0.0
		pnl = &zero
	}

	return &core.TradeRecord{
		Symbol:      o.Symbol,
		Side:        side,
		Size:        o.Size,
		Price:       price,
		Time:        toTime(o.Timestamp),
		RealizedPnl: pnl,
		OrderID:     o.ID,
	}, nil
}

// toTime converts epoch milliseconds, defaulting to the current time when
// the host omitted the field.
func toTime(millis int64) time.Time {
	if millis <= 0 {
		return time.Now()
	}
	return time.UnixMilli(millis)
}

// copyPnl detaches the record from the upstream payload
func copyPnl(pnl *float64) *float64 {
	if pnl == nil {
		return nil
	}
	v := *pnl
	return &v
}
