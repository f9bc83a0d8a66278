package ftx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/recws-org/recws"
	"github.com/sirupsen/logrus"

	"github.com/spooky-finn/go-ftx-bridge/config"
	"github.com/spooky-finn/go-ftx-bridge/domain"
	"github.com/spooky-finn/go-ftx-bridge/helpers"
	promclient "github.com/spooky-finn/go-ftx-bridge/infrastructure/prometheus"
)

var logger = logrus.WithField("component", "ftx")

const (
	pingInterval = 15 * time.Second
	// The exchange asks clients to drop the connection on this info code.
	serverRestartCode = 20001

	rawStreamBuffer = 64
)

type wsRequest struct {
	Op      string  `json:"op"`
	Channel Channel `json:"channel,omitempty"`
	Market  string  `json:"market,omitempty"`
}

type loginArgs struct {
	Key        string `json:"key"`
	Sign       string `json:"sign"`
	Time       int64  `json:"time"`
	Subaccount string `json:"subaccount,omitempty"`
}

type loginRequest struct {
	Op   string    `json:"op"`
	Args loginArgs `json:"args"`
}

type subscriptionEntry struct {
	ch              chan []byte
	subscriberCount int

	sendMu sync.Mutex
	closed bool
	done   chan struct{}
}

func newSubscriptionEntry() *subscriptionEntry {
	return &subscriptionEntry{
		ch:              make(chan []byte, rawStreamBuffer),
		done:            make(chan struct{}),
		subscriberCount: 1,
	}
}

// publish hands a frame to the subscriber, blocking while its buffer is
// full. It returns as soon as the entry shuts down, so the read loop
// never sends on a closed channel.
func (e *subscriptionEntry) publish(msg []byte) {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	if e.closed {
		return
	}

	select {
	case e.ch <- msg:
	case <-e.done:
	}
}

// shutdown closes the stream. Closing done first unblocks a publish
// stuck on a full buffer; taking sendMu after that guarantees no send is
// in flight when the channel closes.
func (e *subscriptionEntry) shutdown() {
	close(e.done)

	e.sendMu.Lock()
	e.closed = true
	close(e.ch)
	e.sendMu.Unlock()
}

// StreamClient owns the websocket connection. It serializes subscribe
// and unsubscribe requests, pumps raw frames to per-topic channels, and
// replays the registry's desired state after every reconnect so the
// exchange view converges back to what callers asked for.
type StreamClient struct {
	conf     *config.Config
	conn     *recws.RecConn
	registry *SubscriptionRegistry

	mu             sync.Mutex
	subscriptions  map[SubscriptionKey]*subscriptionEntry
	reconnectHooks []func()

	done chan struct{}
}

func NewStreamClient(conf *config.Config) *StreamClient {
	return &StreamClient{
		conf:          conf,
		registry:      NewSubscriptionRegistry(),
		subscriptions: make(map[SubscriptionKey]*subscriptionEntry),
		done:          make(chan struct{}),
	}
}

func (c *StreamClient) Registry() *SubscriptionRegistry {
	return c.registry
}

// OnReconnect registers a hook invoked after the connection was
// (re-)established, before the desired state is replayed. The book
// layer uses it to invalidate every live book: continuity is lost, no
// diff from the old connection may be trusted again.
func (c *StreamClient) OnReconnect(hook func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reconnectHooks = append(c.reconnectHooks, hook)
}

func (c *StreamClient) Connect() error {
	conn := &recws.RecConn{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 5 * time.Second,
		NonVerbose:       true,
		SubscribeHandler: c.onConnect,
	}

	conn.Dial(c.conf.Endpoint, nil)
	c.conn = conn

	go c.read()
	go c.pingLoop()

	return nil
}

func (c *StreamClient) Close() error {
	close(c.done)
	if c.conn != nil {
		c.conn.Close()
	}
	return nil
}

// onConnect runs on every successful dial, the first one included:
// authenticate, drop stale book state, then replay the desired
// subscription set.
func (c *StreamClient) onConnect() error {
	promclient.ReconnectCounter.Inc()

	if c.conf.Key != "" {
		if err := c.login(); err != nil {
			return err
		}
	}

	c.mu.Lock()
	hooks := append([]func(){}, c.reconnectHooks...)
	c.mu.Unlock()
	for _, hook := range hooks {
		hook()
	}

	for _, key := range c.registry.DesiredState() {
		if err := c.conn.WriteJSON(wsRequest{Op: "subscribe", Channel: key.Channel, Market: key.Market}); err != nil {
			return err
		}
		logger.Infof("replayed subscription %s %s", key.Channel, key.Market)
	}

	return nil
}

// login authenticates the socket, required for the fills and orders
// channels. Signature: hex(HMAC-SHA256(secret, "{ts_ms}websocket_login")).
func (c *StreamClient) login() error {
	ts := time.Now().UnixMilli()

	mac := hmac.New(sha256.New, []byte(c.conf.Secret))
	mac.Write([]byte(helpers.IntToString(ts) + "websocket_login"))

	return c.conn.WriteJSON(loginRequest{
		Op: "login",
		Args: loginArgs{
			Key:        c.conf.Key,
			Sign:       hex.EncodeToString(mac.Sum(nil)),
			Time:       ts,
			Subaccount: c.conf.Subaccount,
		},
	})
}

// Subscribe adds (channel, market) to the desired state and returns the
// raw frame stream for that topic. Reference counted: a topic is
// subscribed on the exchange once, no matter how often it is requested.
func (c *StreamClient) Subscribe(channel Channel, market string) (*domain.Subscription[[]byte], error) {
	key := SubscriptionKey{Channel: channel, Market: market}

	c.mu.Lock()
	entry, ok := c.subscriptions[key]
	if ok {
		entry.subscriberCount++
		c.mu.Unlock()
	} else {
		entry = newSubscriptionEntry()
		c.subscriptions[key] = entry
		c.mu.Unlock()

		c.registry.Subscribe(key)

		// When not connected yet, the desired-state replay picks the
		// topic up on dial.
		if c.conn != nil && c.conn.IsConnected() {
			req := wsRequest{Op: "subscribe", Channel: channel, Market: market}
			if config.DebugMode {
				logger.Debugf("-> %s", helpers.ToJsonString(req))
			}
			if err := c.conn.WriteJSON(req); err != nil {
				return nil, fmt.Errorf("failed to send subscribe request for %s %s: %w", channel, market, err)
			}
		}
	}

	return &domain.Subscription[[]byte]{
		Stream: entry.ch,
		Topic:  string(channel) + ":" + market,
		Unsubscribe: func() {
			c.unsubscribe(key)
		},
	}, nil
}

func (c *StreamClient) unsubscribe(key SubscriptionKey) {
	c.mu.Lock()
	entry, ok := c.subscriptions[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	entry.subscriberCount--
	if entry.subscriberCount > 0 {
		c.mu.Unlock()
		return
	}
	delete(c.subscriptions, key)
	c.mu.Unlock()

	entry.shutdown()
	c.registry.Unsubscribe(key)

	if c.conn != nil && c.conn.IsConnected() {
		if err := c.conn.WriteJSON(wsRequest{Op: "unsubscribe", Channel: key.Channel, Market: key.Market}); err != nil {
			logger.Warnf("failed to send unsubscribe request for %s %s: %s", key.Channel, key.Market, err)
		}
	}
}

func (c *StreamClient) read() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			// recws redials in the background; back off until it has.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		if config.DebugMode {
			logger.Debugf("frame: %s", msg)
		}

		c.route(msg)
	}
}

// route peeks at the envelope and hands the raw frame to the topic's
// subscriber. Control frames are consumed here; data frames without a
// subscriber are dropped.
func (c *StreamClient) route(msg []byte) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		promclient.MalformedFrameCounter.Inc()
		logger.Warnf("undecodable frame: %s", err)
		return
	}

	switch env.Type {
	case "pong":
		return
	case "subscribed":
		logger.Infof("subscription confirmed: %s %s", env.Channel, env.Market)
		return
	case "unsubscribed":
		logger.Infof("unsubscription confirmed: %s %s", env.Channel, env.Market)
		return
	case "info":
		logger.Infof("exchange info %d: %s", env.Code, env.Msg)
		if env.Code == serverRestartCode {
			c.conn.CloseAndReconnect()
		}
		return
	case "error":
		logger.Errorf("exchange error %d: %s", env.Code, env.Msg)
		return
	}

	key := SubscriptionKey{Channel: Channel(env.Channel), Market: env.Market}

	c.mu.Lock()
	entry, ok := c.subscriptions[key]
	c.mu.Unlock()

	if ok {
		entry.publish(msg)
	}
}

func (c *StreamClient) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if c.conn == nil || !c.conn.IsConnected() {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"ping"}`)); err != nil {
				logger.Warnf("ping failed: %s", err)
			}
		}
	}
}
