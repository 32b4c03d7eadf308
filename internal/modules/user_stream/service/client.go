package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/config"
	healthsvc "github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/health/service"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/pkg/metrics"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// ListenKeySource is the slice of the exchange client the stream needs.
type ListenKeySource interface {
	CreateListenKey(ctx context.Context) (string, error)
	KeepAliveListenKey(ctx context.Context) error
}

// keepalive must beat the server-side 60min listenKey expiry
const (
	keepAliveInterval = 30 * time.Minute
	reconnectDelay    = time.Second
)

// errListenKeyExpired tears down the current session; Run dials a fresh
// listenKey on the next pass.
var errListenKeyExpired = errors.New("listenKey expired")

// Client keeps the private user-data stream alive and feeds the Mirror.
// Reconnection is unconditional and indefinite: the mirror is a convenience
// layer, not a safety-critical path.
type Client struct {
	cfg    *config.Config
	keys   ListenKeySource
	mirror *Mirror
	status *healthsvc.State

	dialer *websocket.Dialer
}

func NewStreamClient(cfg *config.Config, keys ListenKeySource, mirror *Mirror, status *healthsvc.State) *Client {
	return &Client{
		cfg:    cfg,
		keys:   keys,
		mirror: mirror,
		status: status,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Run blocks until ctx is done, reconnecting on every close or error.
func (c *Client) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.runOnce(ctx); err != nil {
			log.Printf("[WS] user stream error: %v", err)
		}

		metrics.StreamReconnects.Inc()
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	key, err := c.keys.CreateListenKey(ctx)
	if err != nil {
		return err
	}

	url := c.cfg.StreamURL + "/" + key
	log.Printf("[WS] user stream connect")
	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	c.status.SetStreamConnected(true)
	defer c.status.SetStreamConnected(false)

	// out-of-band keepalive, independent of message traffic
	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		t := time.NewTicker(keepAliveInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopPing:
				return
			case <-t.C:
				if err := c.keys.KeepAliveListenKey(ctx); err != nil {
					log.Printf("[WS] listenKey keepalive: %v", err)
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := c.dispatch(msg); err != nil {
			return err
		}
	}
}

// dispatch routes one stream frame. A non-nil error means the session is no
// longer usable and the connection must be re-established.
func (c *Client) dispatch(msg []byte) error {
	var frame streamFrame
	if err := sonic.Unmarshal(msg, &frame); err != nil {
		return nil
	}
	c.status.TouchEvent(time.Now())

	switch frame.Event {
	case eventAccountUpdate:
		if frame.Account != nil {
			c.mirror.ApplyAccountUpdate(frame.Account.positions(frame.Time))
		}
	case eventOrderTradeUpdate:
		if frame.Order != nil {
			c.mirror.ApplyOrderUpdate(frame.Order.toOrder(frame.Time))
		}
	case eventListenKeyExpired:
		log.Printf("[WS] listenKey expired, forcing reconnect")
		return errListenKeyExpired
	}
	return nil
}
