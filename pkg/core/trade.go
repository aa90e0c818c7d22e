package core

import "time"

// SideType represents the direction of a trade
type SideType string

// Normalized trade sides
const (
	SideTypeBuy  SideType = "BUY"
	SideTypeSell SideType = "SELL"
)

// Order statuses reported by the host. Only a filled order becomes a
// notification; everything else is an expected intermediate state.
const (
	OrderStatusFilled   = "filled"
	OrderStatusOpen     = "open"
	OrderStatusCanceled = "canceled"
)

// TradeEvent is a trade-execution push payload delivered on the
// "trade.update" topic. Executions carry no order id.
type TradeEvent struct {
	Symbol      string   `json:"symbol"`
	Side        string   `json:"side"`
	Size        float64  `json:"size"`
	Price       float64  `json:"price"`
	Timestamp   int64    `json:"timestamp,omitempty"`
	RealizedPnl *float64 `json:"realizedPnl,omitempty"`
}

// OrderRecord is an order payload, either pushed on the "order.update"
// topic or returned in a batch by the order.query command.
type OrderRecord struct {
	ID          string   `json:"id"`
	Status      string   `json:"status"`
	Symbol      string   `json:"symbol"`
	Side        string   `json:"side"`
	Size        float64  `json:"size"`
	Price       float64  `json:"price,omitempty"`
	AvgPrice    float64  `json:"avgPrice,omitempty"`
	Timestamp   int64    `json:"timestamp,omitempty"`
	RealizedPnl *float64 `json:"realizedPnl,omitempty"`
}

// TradeRecord is the canonical record every upstream shape is reduced to
// before formatting and dispatch. Immutable once constructed.
type TradeRecord struct {
	Symbol      string
	Side        SideType
	Size        float64
	Price       float64
	Time        time.Time
	RealizedPnl *float64 // nil renders as "N/A"
	OrderID     string   // empty for pure executions, which are never deduplicated
}
