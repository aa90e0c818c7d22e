package core

import "context"

// Host is the upstream data source. It yields push events per topic and
// answers order snapshot queries. Connection negotiation and permission
// handshakes are the implementation's concern.
type Host interface {
	TradesSubscription(ctx context.Context) (chan TradeEvent, chan error)
	OrdersSubscription(ctx context.Context) (chan OrderRecord, chan error)
	QueryOrders(ctx context.Context) ([]OrderRecord, error)
}

// Dispatcher delivers a formatted message to the messaging sink.
type Dispatcher interface {
	Send(ctx context.Context, text string) error
}

// Notifier receives human-readable pipeline updates. Display surfaces
// implement it; a notifier must not fail back into the pipeline.
type Notifier interface {
	OnStatus(text string)
	OnError(err error)
}
