// Package host implements the gateway client for the trading host. It
// exposes push subscriptions per topic and the order.query command over a
// single websocket connection.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/StudioSol/set"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/raykavin/tradesharer/pkg/core"
	"github.com/raykavin/tradesharer/pkg/logger"
)

// Topics published by the gateway
const (
	TopicTrades = "trade.update"
	TopicOrders = "order.update"
)

const commandQueryOrders = "order.query"

// Wire operations
const (
	opSubscribe = "subscribe"
	opCommand   = "command"
	opEvent     = "event"
	opResponse  = "response"
)

var (
	ErrNotConnected  = errors.New("gateway connection is not established")
	ErrAlreadyClosed = errors.New("client is closed")
)

// envelope is the frame exchanged with the gateway in both directions
type envelope struct {
	ID      string          `json:"id,omitempty"`
	Op      string          `json:"op"`
	Topic   string          `json:"topic,omitempty"`
	Command string          `json:"command,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Config holds the gateway connection settings
type Config struct {
	URL              string        // Gateway websocket endpoint
	AppID            string        // Application identifier sent on connect
	HandshakeTimeout time.Duration // Dial timeout, defaults to 10s
	BufferSize       int           // Event channel capacity, defaults to 100
}

// Client is a reconnecting websocket client implementing core.Host
type Client struct {
	cfg Config
	log logger.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn

	// Subscribed topics, in subscription order, replayed on reconnect
	topics *set.LinkedHashSetString

	trades chan core.TradeEvent
	orders chan core.OrderRecord
	errs   chan error

	pendingMu sync.Mutex
	pending   map[string]chan envelope

	mu        sync.RWMutex
	connected bool
	closed    bool
}

// NewClient creates a gateway client. Connect must be called before any
// subscription yields events.
func NewClient(cfg Config, log logger.Logger) *Client {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 100
	}

	return &Client{
		cfg:     cfg,
		log:     log,
		topics:  set.NewLinkedHashSetString(),
		trades:  make(chan core.TradeEvent, cfg.BufferSize),
		orders:  make(chan core.OrderRecord, cfg.BufferSize),
		errs:    make(chan error, cfg.BufferSize),
		pending: make(map[string]chan envelope),
	}
}

// Connect establishes the websocket connection and replays any topic
// subscriptions made before the connection (or lost on a reconnect).
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	header := http.Header{}
	header.Set("Accept", "application/json")
	if c.cfg.AppID != "" {
		header.Set("X-App-Id", c.cfg.AppID)
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("failed to dial gateway: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop(conn)

	for topic := range c.topics.Iter() {
		if err := c.sendSubscribe(topic); err != nil {
			c.log.WithError(err).WithField("topic", topic).Error("failed to resubscribe")
		}
	}

	c.log.WithField("url", c.cfg.URL).Info("connected to gateway")
	return nil
}

// IsConnected returns the current connection state
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// TradesSubscription implements core.Host
func (c *Client) TradesSubscription(ctx context.Context) (chan core.TradeEvent, chan error) {
	c.subscribe(TopicTrades)
	return c.trades, c.errs
}

// OrdersSubscription implements core.Host
func (c *Client) OrdersSubscription(ctx context.Context) (chan core.OrderRecord, chan error) {
	c.subscribe(TopicOrders)
	return c.orders, c.errs
}

// QueryOrders implements core.Host. It issues an order.query command and
// waits for the correlated response.
func (c *Client) QueryOrders(ctx context.Context) ([]core.OrderRecord, error) {
	id := uuid.NewString()
	reply := make(chan envelope, 1)

	c.pendingMu.Lock()
	c.pending[id] = reply
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.send(envelope{ID: id, Op: opCommand, Command: commandQueryOrders}); err != nil {
		return nil, err
	}

	select {
	case env := <-reply:
		if env.Error != "" {
			return nil, fmt.Errorf("order query rejected: %s", env.Error)
		}

		var payload struct {
			Data []core.OrderRecord `json:"data"`
		}
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, fmt.Errorf("failed to decode order query response: %w", err)
		}
		return payload.Data, nil

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts the client down for good. No reconnection afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrAlreadyClosed
	}
	c.closed = true
	c.connected = false

	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) subscribe(topic string) {
	if err := c.sendSubscribe(topic); err != nil {
		c.log.WithError(err).WithField("topic", topic).Error("failed to subscribe")
	}
	c.topics.Add(topic)
}

func (c *Client) sendSubscribe(topic string) error {
	return c.send(envelope{ID: uuid.NewString(), Op: opSubscribe, Topic: topic})
}

func (c *Client) send(env envelope) error {
	c.mu.RLock()
	conn, connected := c.conn, c.connected
	c.mu.RUnlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop routes incoming frames until the connection drops, then hands
// over to the reconnect loop.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.connected = false
			closed := c.closed
			c.mu.Unlock()

			if closed {
				return
			}

			c.reportError(fmt.Errorf("gateway connection lost: %w", err))
			go c.reconnect()
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.log.WithError(err).Warn("dropping malformed gateway frame")
			continue
		}

		c.route(env)
	}
}

func (c *Client) route(env envelope) {
	switch env.Op {
	case opEvent:
		c.routeEvent(env)

	case opResponse:
		c.pendingMu.Lock()
		reply, ok := c.pending[env.ID]
		c.pendingMu.Unlock()

		if !ok {
			c.log.WithField("id", env.ID).Debug("dropping unmatched response")
			return
		}
		reply <- env

	default:
		c.log.WithField("op", env.Op).Debug("ignoring unknown gateway op")
	}
}

func (c *Client) routeEvent(env envelope) {
	switch env.Topic {
	case TopicTrades:
		var event core.TradeEvent
		if err := json.Unmarshal(env.Data, &event); err != nil {
			c.log.WithError(err).Warn("dropping malformed trade event")
			return
		}
		select {
		case c.trades <- event:
		default:
			c.log.Warn("trade channel full, dropping event")
		}

	case TopicOrders:
		var order core.OrderRecord
		if err := json.Unmarshal(env.Data, &order); err != nil {
			c.log.WithError(err).Warn("dropping malformed order event")
			return
		}
		select {
		case c.orders <- order:
		default:
			c.log.Warn("order channel full, dropping event")
		}

	default:
		c.log.WithField("topic", env.Topic).Debug("ignoring event for unknown topic")
	}
}

func (c *Client) reportError(err error) {
	select {
	case c.errs <- err:
	default:
	}
}

// reconnect re-dials with exponential backoff until it succeeds or the
// client is closed. Topic subscriptions are replayed by Connect.
func (c *Client) reconnect() {
	b := &backoff.Backoff{
		Min:    time.Second,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	for {
		c.mu.RLock()
		closed := c.closed
		c.mu.RUnlock()
		if closed {
			return
		}

		wait := b.Duration()
		c.log.WithField("wait", wait.String()).Warn("reconnecting to gateway")
		time.Sleep(wait)

		if err := c.Connect(context.Background()); err != nil {
			if errors.Is(err, ErrAlreadyClosed) {
				return
			}
			c.log.WithError(err).Error("reconnect attempt failed")
			continue
		}
		return
	}
}
