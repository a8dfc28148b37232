package service

import (
	"context"
	"time"

	"trade_engine/internal/models"
	"trade_engine/internal/modules/config"
	health "trade_engine/internal/modules/health/service"
	"trade_engine/internal/runtime"
	"trade_engine/pkg/logger"

	"github.com/gorilla/websocket"
)

// TickSink consumes normalized ticks (the worker pool queue).
type TickSink interface {
	Enqueue(ctx context.Context, tick models.Tick)
}

type ServiceNotifier interface {
	SendService(ctx context.Context, format string, args ...any)
}

const (
	reconnectBackoff = time.Second
	// connections are recycled so shard composition catches up with the
	// active set; resharding never mutates a live subscription
	maxConnAge = 15 * time.Minute
)

// Client — the socket fan-in. It keeps one long-lived connection per shard
// of up to MaxStreamsPerWS symbols, subscribed to base-resolution kline
// streams, and pushes decoded ticks onto the shared queue.
type Client struct {
	cfg    *config.Config
	reg    *runtime.Registry
	sink   TickSink
	n      ServiceNotifier
	health *health.State

	wsDialer *websocket.Dialer
}

func NewClient(cfg *config.Config, reg *runtime.Registry, sink TickSink, n ServiceNotifier, hs *health.State) *Client {
	return &Client{
		cfg:      cfg,
		reg:      reg,
		sink:     sink,
		n:        n,
		health:   hs,
		wsDialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Start launches one goroutine per potential shard. A shard goroutine
// re-reads its slice of the active set on every (re)connect cycle, so
// admissions and removals take effect at the next reconnect.
func (c *Client) Start(ctx context.Context) {
	perConn := c.cfg.Regulator.MaxStreamsPerWS
	if perConn <= 0 {
		perConn = 5
	}
	shards := (c.cfg.Regulator.MaxSymbols + perConn - 1) / perConn

	if c.n != nil {
		c.n.SendService(ctx, "[MARKET] fan-in started: up to %d connections, %d streams each", shards, perConn)
	}
	for i := 0; i < shards; i++ {
		go c.runShard(ctx, i, perConn)
	}
}

func (c *Client) runShard(ctx context.Context, index, perConn int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		symbols := shardOf(c.reg.ActiveSymbols(), index, perConn)
		if len(symbols) == 0 {
			time.Sleep(reconnectBackoff)
			continue
		}

		// read loop returns on error or connection age; either way the
		// shard reconnects with a fresh symbol slice after a fixed backoff
		c.runConnection(ctx, index, symbols)

		select {
		case <-ctx.Done():
			return
		default:
			time.Sleep(reconnectBackoff)
		}
	}
}

func (c *Client) runConnection(ctx context.Context, index int, symbols []string) {
	conn, _, err := c.wsDialer.Dial(c.cfg.FeedURL, nil)
	if err != nil {
		logger.Error("[WS] shard %d dial: %v", index, err)
		return
	}
	defer func() { _ = conn.Close() }()
	if c.health != nil {
		c.health.ConnOpened()
		defer c.health.ConnClosed()
	}

	if err := conn.WriteJSON(subscribeMessage(symbols, index)); err != nil {
		logger.Error("[WS] shard %d subscribe: %v", index, err)
		return
	}
	logger.Info("[WS] shard %d connected: %d symbols", index, len(symbols))

	deadline := time.Now().Add(maxConnAge)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if time.Now().After(deadline) {
			logger.Info("[WS] shard %d recycling connection", index)
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(time.Minute))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Error("[WS] shard %d read: %v", index, err)
			return
		}

		tick, ok := decodeKlineEvent(msg)
		if !ok {
			// undecodable frame: drop and continue
			continue
		}
		if c.health != nil {
			c.health.TouchTick(tick.ReceivedAt)
		}
		c.sink.Enqueue(ctx, tick)
	}
}

// shardOf returns slice index of the sorted active set, perConn at a time.
func shardOf(symbols []string, index, perConn int) []string {
	lo := index * perConn
	if lo >= len(symbols) {
		return nil
	}
	hi := lo + perConn
	if hi > len(symbols) {
		hi = len(symbols)
	}
	return symbols[lo:hi]
}
