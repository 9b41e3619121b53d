package clobengine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	heartbeatInterval        = 30 * time.Second
	defaultReconnectInterval = 5 * time.Second
	defaultMaxReconnects     = 10
)

// Stream actions and channels
const (
	actionHeartbeat   = "HEARTBEAT"
	actionSubscribe   = "SUBSCRIBE"
	actionUnsubscribe = "UNSUBSCRIBE"

	ChannelBook      = "market.book"
	ChannelLastTrade = "market.last_trade"
)

// BookUpdate is a live order-book snapshot for one token
type BookUpdate struct {
	TokenID string          `json:"token_id"`
	Bids    []bookLevelJSON `json:"bids"`
	Asks    []bookLevelJSON `json:"asks"`
}

// LastTradeUpdate is a live trade print for one token
type LastTradeUpdate struct {
	TokenID string `json:"token_id"`
	Price   string `json:"price"`
	Side    string `json:"side"`
	Size    string `json:"size"`
}

type streamEnvelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type subscribeMessage struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
	TokenID string `json:"token_id"`
}

// StreamConfig configures the market-data stream
type StreamConfig struct {
	Endpoint          string
	ReconnectInterval time.Duration
	MaxReconnects     int

	// OnBook fires for every book snapshot; OnLastTrade for every trade
	// print. Handlers run on the read loop goroutine and must not block.
	OnBook      func(BookUpdate)
	OnLastTrade func(LastTradeUpdate)
	OnError     func(error)

	Logger *zap.Logger
}

// MarketStream keeps outcome quotes and depth fresh over a websocket
// connection, resubscribing automatically after reconnects.
type MarketStream struct {
	cfg  StreamConfig
	conn *websocket.Conn
	mu   sync.RWMutex

	connected bool
	subs      map[string]subscribeMessage
	subMu     sync.RWMutex

	ctx       context.Context
	cancel    context.CancelFunc
	reconnect int
	done      chan struct{}
}

// NewMarketStream creates a stream client; Connect must be called before
// subscribing.
func NewMarketStream(cfg StreamConfig) *MarketStream {
	if cfg.ReconnectInterval == 0 {
		cfg.ReconnectInterval = defaultReconnectInterval
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = defaultMaxReconnects
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &MarketStream{
		cfg:  cfg,
		subs: make(map[string]subscribeMessage),
		done: make(chan struct{}),
	}
}

// Connect dials the endpoint and starts the read and heartbeat loops.
func (s *MarketStream) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return nil
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial market stream: %w", err)
	}

	s.conn = conn
	s.connected = true
	s.reconnect = 0
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.done = make(chan struct{})

	// Loops are bound to this session's ctx and done so a stale goroutine
	// from before a Close/Connect cycle cannot touch the new connection.
	go s.readLoop(s.ctx, s.done)
	go s.heartbeatLoop(s.ctx)

	s.cfg.Logger.Info("market stream connected", zap.String("endpoint", s.cfg.Endpoint))
	return nil
}

// Close tears the connection down and stops reconnecting.
func (s *MarketStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}
	s.connected = false
	s.cancel()
	close(s.done)
	return s.conn.Close()
}

// SubscribeBook subscribes to live book snapshots for a token.
func (s *MarketStream) SubscribeBook(tokenID string) error {
	return s.subscribe(subscribeMessage{Action: actionSubscribe, Channel: ChannelBook, TokenID: tokenID})
}

// SubscribeLastTrade subscribes to trade prints for a token.
func (s *MarketStream) SubscribeLastTrade(tokenID string) error {
	return s.subscribe(subscribeMessage{Action: actionSubscribe, Channel: ChannelLastTrade, TokenID: tokenID})
}

// Unsubscribe drops a token's subscription on the given channel.
func (s *MarketStream) Unsubscribe(channel, tokenID string) error {
	s.subMu.Lock()
	delete(s.subs, channel+"/"+tokenID)
	s.subMu.Unlock()
	return s.send(subscribeMessage{Action: actionUnsubscribe, Channel: channel, TokenID: tokenID})
}

func (s *MarketStream) subscribe(msg subscribeMessage) error {
	s.subMu.Lock()
	s.subs[msg.Channel+"/"+msg.TokenID] = msg
	s.subMu.Unlock()
	return s.send(msg)
}

func (s *MarketStream) send(v interface{}) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.connected {
		return fmt.Errorf("market stream not connected")
	}
	return s.conn.WriteJSON(v)
}

func (s *MarketStream) readLoop(ctx context.Context, done chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				return
			default:
			}
			s.reportError(fmt.Errorf("read market stream: %w", err))
			s.tryReconnect(ctx, done)
			return
		}

		s.dispatch(raw)
	}
}

func (s *MarketStream) dispatch(raw []byte) {
	var env streamEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.reportError(fmt.Errorf("decode stream message: %w", err))
		return
	}

	switch env.Channel {
	case ChannelBook:
		if s.cfg.OnBook == nil {
			return
		}
		var update BookUpdate
		if err := json.Unmarshal(env.Data, &update); err != nil {
			s.reportError(fmt.Errorf("decode book update: %w", err))
			return
		}
		s.cfg.OnBook(update)
	case ChannelLastTrade:
		if s.cfg.OnLastTrade == nil {
			return
		}
		var update LastTradeUpdate
		if err := json.Unmarshal(env.Data, &update); err != nil {
			s.reportError(fmt.Errorf("decode trade update: %w", err))
			return
		}
		s.cfg.OnLastTrade(update)
	}
}

func (s *MarketStream) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.send(map[string]string{"action": actionHeartbeat}); err != nil {
				s.reportError(fmt.Errorf("heartbeat: %w", err))
			}
		}
	}
}

// tryReconnect re-dials with a fixed interval, restoring subscriptions once
// the connection is back.
func (s *MarketStream) tryReconnect(ctx context.Context, done chan struct{}) {
	s.mu.Lock()
	s.connected = false
	s.conn.Close()
	attempt := s.reconnect + 1
	s.reconnect = attempt
	s.mu.Unlock()

	if attempt > s.cfg.MaxReconnects {
		s.reportError(fmt.Errorf("market stream gave up after %d reconnect attempts", s.cfg.MaxReconnects))
		return
	}

	select {
	case <-done:
		return
	case <-time.After(s.cfg.ReconnectInterval):
	}

	s.mu.Lock()
	conn, _, err := websocket.DefaultDialer.Dial(s.cfg.Endpoint, nil)
	if err != nil {
		s.mu.Unlock()
		s.reportError(fmt.Errorf("reconnect market stream: %w", err))
		s.tryReconnect(ctx, done)
		return
	}
	s.conn = conn
	s.connected = true
	s.mu.Unlock()

	s.cfg.Logger.Info("market stream reconnected", zap.Int("attempt", attempt))

	// Restore every active subscription on the fresh connection.
	s.subMu.RLock()
	subs := make([]subscribeMessage, 0, len(s.subs))
	for _, msg := range s.subs {
		subs = append(subs, msg)
	}
	s.subMu.RUnlock()

	for _, msg := range subs {
		if err := s.send(msg); err != nil {
			s.reportError(fmt.Errorf("resubscribe %s/%s: %w", msg.Channel, msg.TokenID, err))
		}
	}

	go s.readLoop(ctx, done)
}

func (s *MarketStream) reportError(err error) {
	s.cfg.Logger.Warn("market stream error", zap.Error(err))
	if s.cfg.OnError != nil {
		s.cfg.OnError(err)
	}
}
