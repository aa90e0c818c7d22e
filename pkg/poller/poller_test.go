package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/raykavin/tradesharer/pkg/core"
	"github.com/raykavin/tradesharer/pkg/dedup"
	zerologger "github.com/raykavin/tradesharer/pkg/logger/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHost returns queued query results, one per tick
type fakeHost struct {
	mu      sync.Mutex
	results [][]core.OrderRecord
	errs    []error
	calls   int
}

func (f *fakeHost) QueryOrders(ctx context.Context) ([]core.OrderRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := f.calls
	f.calls++

	if call < len(f.errs) && f.errs[call] != nil {
		return nil, f.errs[call]
	}
	if call < len(f.results) {
		return f.results[call], nil
	}
	return nil, nil
}

func (f *fakeHost) TradesSubscription(ctx context.Context) (chan core.TradeEvent, chan error) {
	return nil, nil
}

func (f *fakeHost) OrdersSubscription(ctx context.Context) (chan core.OrderRecord, chan error) {
	return nil, nil
}

func (f *fakeHost) queryCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type capture struct {
	mu     sync.Mutex
	orders []core.OrderRecord
}

func (c *capture) handler(_ context.Context, order core.OrderRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders = append(c.orders, order)
}

func (c *capture) seen() []core.OrderRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.OrderRecord(nil), c.orders...)
}

func newTestTracker(t *testing.T) *dedup.Tracker {
	t.Helper()
	tracker, err := dedup.NewTracker(zerologger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { tracker.Close() })
	return tracker
}

func TestTick_NewFillsOnly(t *testing.T) {
	tracker := newTestTracker(t)

	// ord-1 was already announced by the push path.
	require.True(t, tracker.ShouldNotify("ord-1", "filled"))

	host := &fakeHost{results: [][]core.OrderRecord{{
		{ID: "ord-1", Status: "filled", Symbol: "ETH-PERP", Side: "buy", Size: 1, Price: 2500},
		{ID: "ord-2", Status: "filled", Symbol: "BTC-PERP", Side: "sell", Size: 0.5, Price: 64000},
		{ID: "ord-3", Status: "open", Symbol: "SOL-PERP", Side: "buy", Size: 10, Price: 150},
	}}}

	sink := &capture{}
	p := New(host, tracker, sink.handler, time.Hour, zerologger.NewNop())
	p.tick(context.Background())

	seen := sink.seen()
	require.Len(t, seen, 1, "only the newly filled order dispatches")
	assert.Equal(t, "ord-2", seen[0].ID)

	// The open order was recorded by the snapshot update.
	status, ok := tracker.Status("ord-3")
	require.True(t, ok)
	assert.Equal(t, "open", status)
}

func TestTick_QueryFailureSkipsTick(t *testing.T) {
	tracker := newTestTracker(t)
	host := &fakeHost{
		errs: []error{errors.New("gateway timeout"), nil},
		results: [][]core.OrderRecord{
			nil,
			{{ID: "ord-1", Status: "filled", Symbol: "ETH-PERP", Side: "buy", Size: 1, Price: 2500}},
		},
	}

	sink := &capture{}
	p := New(host, tracker, sink.handler, time.Hour, zerologger.NewNop())

	p.tick(context.Background())
	assert.Empty(t, sink.seen(), "failed tick dispatches nothing")

	// The loop recovers on the next interval.
	p.tick(context.Background())
	require.Len(t, sink.seen(), 1)
}

func TestTick_RepeatedPollsSuppressed(t *testing.T) {
	tracker := newTestTracker(t)
	fill := []core.OrderRecord{{ID: "ord-1", Status: "filled", Symbol: "ETH-PERP", Side: "buy", Size: 1, Price: 2500}}
	host := &fakeHost{results: [][]core.OrderRecord{fill, fill, fill}}

	sink := &capture{}
	p := New(host, tracker, sink.handler, time.Hour, zerologger.NewNop())

	for i := 0; i < 3; i++ {
		p.tick(context.Background())
	}

	assert.Len(t, sink.seen(), 1, "the same fill notifies once across ticks")
}

func TestStartStop(t *testing.T) {
	tracker := newTestTracker(t)
	host := &fakeHost{}

	p := New(host, tracker, func(context.Context, core.OrderRecord) {}, 10*time.Millisecond, zerologger.NewNop())
	p.Start(context.Background())

	require.Eventually(t, func() bool {
		return host.queryCalls() > 0
	}, time.Second, 5*time.Millisecond)

	p.Stop()
	calls := host.queryCalls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, host.queryCalls(), "no ticks after stop")
}

func TestStart_ContextCancelStopsLoop(t *testing.T) {
	tracker := newTestTracker(t)
	host := &fakeHost{}

	ctx, cancel := context.WithCancel(context.Background())
	p := New(host, tracker, func(context.Context, core.OrderRecord) {}, 10*time.Millisecond, zerologger.NewNop())
	p.Start(ctx)

	require.Eventually(t, func() bool {
		return host.queryCalls() > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	time.Sleep(30 * time.Millisecond)
	calls := host.queryCalls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, host.queryCalls())
}

func TestNew_DefaultInterval(t *testing.T) {
	p := New(&fakeHost{}, newTestTracker(t), nil, 0, zerologger.NewNop())
	assert.Equal(t, DefaultInterval, p.interval)
}
