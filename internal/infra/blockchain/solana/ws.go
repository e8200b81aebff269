package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gabapcia/solcustody/internal/chain"
	"github.com/gabapcia/solcustody/internal/pkg/logger"
	"github.com/gabapcia/solcustody/internal/pkg/sol"

	"github.com/gorilla/websocket"
)

var (
	// ErrSubscriberClosed is returned when the WebSocket client has been closed.
	ErrSubscriberClosed = errors.New("subscriber closed")

	// ErrConnectionLost is returned to requests in flight when the socket drops.
	ErrConnectionLost = errors.New("websocket connection lost")
)

// wsConfig tunes the WebSocket connection.
type wsConfig struct {
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	pingInterval     time.Duration
	pongWait         time.Duration
	bufferSize       int
}

func defaultWSConfig() wsConfig {
	return wsConfig{
		handshakeTimeout: 10 * time.Second,
		writeTimeout:     10 * time.Second,
		pingInterval:     30 * time.Second,
		pongWait:         60 * time.Second,
		bufferSize:       256,
	}
}

type wsRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// wsMessage covers responses ({id, result|error}) and notifications ({method, params}).
type wsMessage struct {
	ID     *uint64         `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Method string `json:"method"`
	Params *struct {
		Subscription uint64          `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params"`
}

type wsResponse struct {
	result json.RawMessage
	err    error
}

// subscriber receives the notifications of one subscription. deliver must not
// block and close is called exactly once when the subscription ends.
type subscriber struct {
	deliver func(subID uint64, data json.RawMessage)
	close   func()
}

// pendingRequest waits for the response to one request. For subscribe requests
// sub is registered under the returned subscription id by the read loop, so no
// notification can arrive before its subscriber exists.
type pendingRequest struct {
	response chan wsResponse
	sub      *subscriber
}

// wsClient multiplexes Solana PubSub subscriptions over one connection. It does
// not reconnect: when the socket drops every subscription channel is closed and
// the next subscribe dials again.
type wsClient struct {
	endpoint string
	cfg      wsConfig

	connMu sync.Mutex // guards conn and serializes writes
	conn   *websocket.Conn

	requestID atomic.Uint64

	pendingMu sync.Mutex
	pending   map[uint64]*pendingRequest

	subsMu sync.Mutex
	subs   map[uint64]*subscriber

	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup
}

func newWSClient(endpoint string, cfg wsConfig) *wsClient {
	return &wsClient{
		endpoint: endpoint,
		cfg:      cfg,
		pending:  make(map[uint64]*pendingRequest),
		subs:     make(map[uint64]*subscriber),
		done:     make(chan struct{}),
	}
}

// ensureConnected dials the endpoint when there is no live connection.
// Must be called with connMu held.
func (c *wsClient) ensureConnected(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(c.cfg.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.pongWait))
	})

	c.conn = conn
	stop := make(chan struct{})

	c.wg.Add(2)
	go c.readLoop(conn, stop)
	go c.pingLoop(conn, stop)

	return nil
}

// request sends method and waits for its response. A non-nil sub turns the
// request into a subscription; when ctx ends first, the subscription is
// cancelled as soon as the server confirms it.
func (c *wsClient) request(ctx context.Context, method string, params []any, sub *subscriber) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, ErrSubscriberClosed
	}

	id := c.requestID.Add(1)
	p := &pendingRequest{response: make(chan wsResponse, 1), sub: sub}

	c.pendingMu.Lock()
	c.pending[id] = p
	c.pendingMu.Unlock()

	forget := func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}

	c.connMu.Lock()
	if err := c.ensureConnected(ctx); err != nil {
		c.connMu.Unlock()
		forget()
		return nil, err
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.writeTimeout))
	err := c.conn.WriteJSON(wsRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	c.connMu.Unlock()

	if err != nil {
		forget()
		return nil, fmt.Errorf("write %s: %w", method, err)
	}

	select {
	case res := <-p.response:
		return res.result, res.err
	case <-ctx.Done():
		if sub == nil {
			forget()
		} else {
			go c.cancelLateSubscription(p, strings.TrimSuffix(method, "Subscribe")+"Unsubscribe")
		}
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrSubscriberClosed
	}
}

// cancelLateSubscription waits for the response of a subscribe request whose
// caller gave up and cancels the subscription the server opened anyway.
func (c *wsClient) cancelLateSubscription(p *pendingRequest, unsubscribeMethod string) {
	var res wsResponse
	select {
	case res = <-p.response:
	case <-c.done:
		return
	}

	if res.err != nil {
		return
	}

	var subID uint64
	if err := json.Unmarshal(res.result, &subID); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.writeTimeout)
	defer cancel()

	if err := c.unsubscribe(ctx, unsubscribeMethod, subID); err != nil {
		logger.Warn(ctx, "failed to cancel abandoned subscription",
			"subscription.id", subID,
			"error", err,
		)
	}
}

// subscribe opens a subscription delivering to sub and returns its id.
func (c *wsClient) subscribe(ctx context.Context, sub *subscriber, method string, params ...any) (uint64, error) {
	raw, err := c.request(ctx, method, params, sub)
	if err != nil {
		return 0, err
	}

	var id uint64
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, fmt.Errorf("decode subscription id: %w", err)
	}

	return id, nil
}

// unsubscribe ends the local subscriber of id and cancels it on the server.
func (c *wsClient) unsubscribe(ctx context.Context, method string, id uint64) error {
	c.subsMu.Lock()
	sub, ok := c.subs[id]
	if ok {
		delete(c.subs, id)
		sub.close()
	}
	c.subsMu.Unlock()

	if !ok {
		return nil
	}

	_, err := c.request(ctx, method, []any{id}, nil)
	return err
}

// Close shuts the connection down and closes every subscription channel.
func (c *wsClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.cfg.writeTimeout))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	return nil
}

// readLoop dispatches responses and notifications until conn fails.
func (c *wsClient) readLoop(conn *websocket.Conn, stop chan struct{}) {
	defer c.wg.Done()
	defer close(stop)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				logger.Warn(context.Background(), "solana websocket connection lost",
					"ws.endpoint", c.endpoint,
					"error", err,
				)
			}
			c.drop(conn)
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn(context.Background(), "discarding malformed websocket message", "error", err)
			continue
		}

		switch {
		case msg.ID != nil:
			c.handleResponse(*msg.ID, msg)
		case msg.Params != nil:
			c.handleNotification(msg.Params.Subscription, msg.Params.Result)
		}
	}
}

func (c *wsClient) handleResponse(id uint64, msg wsMessage) {
	c.pendingMu.Lock()
	p, ok := c.pending[id]
	delete(c.pending, id)
	c.pendingMu.Unlock()

	if !ok {
		return
	}

	if msg.Error != nil {
		p.response <- wsResponse{err: fmt.Errorf("[%d] - %s", msg.Error.Code, msg.Error.Message)}
		return
	}

	if p.sub != nil {
		var subID uint64
		if err := json.Unmarshal(msg.Result, &subID); err == nil {
			c.subsMu.Lock()
			c.subs[subID] = p.sub
			c.subsMu.Unlock()
		}
	}

	p.response <- wsResponse{result: msg.Result}
}

func (c *wsClient) handleNotification(subID uint64, result json.RawMessage) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	if sub, ok := c.subs[subID]; ok {
		sub.deliver(subID, result)
	}
}

// drop forgets conn, fails in-flight requests and closes every subscription.
func (c *wsClient) drop(conn *websocket.Conn) {
	c.connMu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.connMu.Unlock()
	conn.Close()

	c.pendingMu.Lock()
	for id, p := range c.pending {
		p.response <- wsResponse{err: ErrConnectionLost}
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()

	c.subsMu.Lock()
	for id, sub := range c.subs {
		sub.close()
		delete(c.subs, id)
	}
	c.subsMu.Unlock()
}

// pingLoop keeps the connection alive until stop is closed.
func (c *wsClient) pingLoop(conn *websocket.Conn, stop chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.writeTimeout))
			c.connMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// offer hands v to ch without blocking, dropping it when the buffer is full.
func offer[T any](ch chan T, v T, subID uint64) {
	select {
	case ch <- v:
	default:
		logger.Warn(context.Background(), "subscription buffer full, dropping notification",
			"subscription.id", subID,
		)
	}
}

type logsNotification struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value struct {
		Signature string `json:"signature"`
		Err       any    `json:"err"`
	} `json:"value"`
}

type programNotification struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value struct {
		Pubkey string `json:"pubkey"`
	} `json:"value"`
}

// SubscribeLogs subscribes to transactions that mention address.
func (c *client) SubscribeLogs(ctx context.Context, address string) (*chain.LogSubscription, error) {
	events := make(chan chain.LogEvent, c.cfg.ws.bufferSize)

	sub := &subscriber{
		deliver: func(subID uint64, data json.RawMessage) {
			var n logsNotification
			if err := json.Unmarshal(data, &n); err != nil {
				logger.Warn(ctx, "discarding malformed logs notification", "error", err)
				return
			}
			offer(events, chain.LogEvent{Signature: n.Value.Signature, Slot: n.Context.Slot, Err: n.Value.Err}, subID)
		},
		close: func() { close(events) },
	}

	id, err := c.ws.subscribe(ctx, sub, "logsSubscribe",
		map[string]any{"mentions": []string{address}},
		map[string]any{"commitment": c.conn.Commitment},
	)
	if err != nil {
		return nil, err
	}

	return &chain.LogSubscription{
		Handle: chain.SubscriptionHandle{ID: id, Kind: chain.LogsSubscription},
		Events: events,
	}, nil
}

// SubscribeTokenAccounts subscribes to changes of token accounts holding mint for owner.
func (c *client) SubscribeTokenAccounts(ctx context.Context, owner, mint string) (*chain.AccountSubscription, error) {
	events := make(chan chain.AccountEvent, c.cfg.ws.bufferSize)

	sub := &subscriber{
		deliver: func(subID uint64, data json.RawMessage) {
			var n programNotification
			if err := json.Unmarshal(data, &n); err != nil {
				logger.Warn(ctx, "discarding malformed program notification", "error", err)
				return
			}
			offer(events, chain.AccountEvent{Pubkey: n.Value.Pubkey, Slot: n.Context.Slot}, subID)
		},
		close: func() { close(events) },
	}

	id, err := c.ws.subscribe(ctx, sub, "programSubscribe",
		sol.TokenProgramID.String(),
		map[string]any{
			"encoding":   "jsonParsed",
			"commitment": c.conn.Commitment,
			"filters": []any{
				map[string]any{"dataSize": sol.TokenAccountSize},
				map[string]any{"memcmp": map[string]any{"offset": 0, "bytes": mint}},
				map[string]any{"memcmp": map[string]any{"offset": 32, "bytes": owner}},
			},
		},
	)
	if err != nil {
		return nil, err
	}

	return &chain.AccountSubscription{
		Handle: chain.SubscriptionHandle{ID: id, Kind: chain.ProgramSubscription},
		Events: events,
	}, nil
}

// Unsubscribe ends the subscription identified by handle and closes its channel.
func (c *client) Unsubscribe(ctx context.Context, handle chain.SubscriptionHandle) error {
	method := "logsUnsubscribe"
	if handle.Kind == chain.ProgramSubscription {
		method = "programUnsubscribe"
	}

	return c.ws.unsubscribe(ctx, method, handle.ID)
}
