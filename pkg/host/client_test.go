package host

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raykavin/tradesharer/pkg/core"
	zerologger "github.com/raykavin/tradesharer/pkg/logger/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway upgrades connections and answers subscribe and order.query
// frames like the trading host does.
type fakeGateway struct {
	t        *testing.T
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conn   *websocket.Conn
	topics []string
	orders []core.OrderRecord
}

func (g *fakeGateway) handler(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	require.NoError(g.t, err)

	g.mu.Lock()
	g.conn = conn
	g.mu.Unlock()

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}

		switch env.Op {
		case opSubscribe:
			g.mu.Lock()
			g.topics = append(g.topics, env.Topic)
			g.mu.Unlock()

		case opCommand:
			g.mu.Lock()
			orders := g.orders
			g.mu.Unlock()

			data, _ := json.Marshal(map[string]any{"data": orders})
			g.send(envelope{ID: env.ID, Op: opResponse, Data: data})
		}
	}
}

func (g *fakeGateway) send(env envelope) {
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NoError(g.t, g.conn.WriteJSON(env))
}

func (g *fakeGateway) pushEvent(topic string, payload any) {
	data, err := json.Marshal(payload)
	require.NoError(g.t, err)
	g.send(envelope{Op: opEvent, Topic: topic, Data: data})
}

func (g *fakeGateway) subscribedTopics() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.topics...)
}

func newTestClient(t *testing.T) (*Client, *fakeGateway) {
	t.Helper()

	gateway := &fakeGateway{t: t}
	server := httptest.NewServer(http.HandlerFunc(gateway.handler))
	t.Cleanup(server.Close)

	client := NewClient(Config{
		URL:   "ws" + strings.TrimPrefix(server.URL, "http"),
		AppID: "trade-sharer",
	}, zerologger.NewNop())
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.Connect(context.Background()))
	return client, gateway
}

func TestClient_TradesSubscription(t *testing.T) {
	client, gateway := newTestClient(t)

	trades, _ := client.TradesSubscription(context.Background())

	require.Eventually(t, func() bool {
		return len(gateway.subscribedTopics()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{TopicTrades}, gateway.subscribedTopics())

	gateway.pushEvent(TopicTrades, core.TradeEvent{
		Symbol: "ETH-PERP",
		Side:   "buy",
		Size:   0.1,
		Price:  2500,
	})

	select {
	case event := <-trades:
		assert.Equal(t, "ETH-PERP", event.Symbol)
		assert.Equal(t, 2500.0, event.Price)
	case <-time.After(time.Second):
		t.Fatal("trade event not delivered")
	}
}

func TestClient_OrdersSubscription(t *testing.T) {
	client, gateway := newTestClient(t)

	orders, _ := client.OrdersSubscription(context.Background())

	require.Eventually(t, func() bool {
		return len(gateway.subscribedTopics()) == 1
	}, time.Second, 10*time.Millisecond)

	gateway.pushEvent(TopicOrders, core.OrderRecord{
		ID:     "ord-1",
		Status: "filled",
		Symbol: "ETH-PERP",
		Side:   "buy",
		Size:   0.1,
		Price:  2500,
	})

	select {
	case order := <-orders:
		assert.Equal(t, "ord-1", order.ID)
		assert.Equal(t, "filled", order.Status)
	case <-time.After(time.Second):
		t.Fatal("order event not delivered")
	}
}

func TestClient_QueryOrders(t *testing.T) {
	client, gateway := newTestClient(t)

	gateway.mu.Lock()
	gateway.orders = []core.OrderRecord{
		{ID: "ord-1", Status: "filled", Symbol: "ETH-PERP", Side: "buy", Size: 1, Price: 2500},
		{ID: "ord-2", Status: "open", Symbol: "BTC-PERP", Side: "sell", Size: 0.5, Price: 64000},
	}
	gateway.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	orders, err := client.QueryOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "ord-1", orders[0].ID)
	assert.Equal(t, "open", orders[1].Status)
}

func TestClient_QueryOrdersTimeout(t *testing.T) {
	gateway := &fakeGateway{t: t}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Upgrade but never answer commands.
		conn, err := gateway.upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client := NewClient(Config{URL: "ws" + strings.TrimPrefix(server.URL, "http")}, zerologger.NewNop())
	defer client.Close()
	require.NoError(t, client.Connect(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.QueryOrders(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_SendWithoutConnect(t *testing.T) {
	client := NewClient(Config{URL: "ws://localhost:1"}, zerologger.NewNop())

	_, err := client.QueryOrders(context.Background())
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_CloseIsFinal(t *testing.T) {
	client, _ := newTestClient(t)

	require.NoError(t, client.Close())
	assert.False(t, client.IsConnected())
	assert.ErrorIs(t, client.Close(), ErrAlreadyClosed)
	assert.ErrorIs(t, client.Connect(context.Background()), ErrAlreadyClosed)
}
