package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tradeforge/riskcore/internal/monitoring"
	"github.com/tradeforge/riskcore/internal/riskerr"
)

// State is the connection state of the feed.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateSubscribed
)

// String returns the string representation of the feed state
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateSubscribed:
		return "SUBSCRIBED"
	default:
		return "UNKNOWN"
	}
}

// ErrMaxReconnects is returned when the reconnect budget is exhausted;
// the feed stays offline until manually restarted.
var ErrMaxReconnects = errors.New("market data feed: max reconnect attempts reached")

// TickStore is the durable tick cache the feed appends to.
type TickStore interface {
	InsertTick(ctx context.Context, t Tick) error
}

// Config holds the feed connection settings.
type Config struct {
	URL     string
	Key     string
	Secret  string
	Symbols []string

	// MaxReconnectAttempts bounds reconnections after an abnormal
	// close; the counter resets after a successful connect+auth.
	MaxReconnectAttempts int

	// ReconnectBase is the backoff unit: delay = 2^attempt * base.
	ReconnectBase time.Duration

	// BufferSize is the capacity of the consumer tick queue.
	BufferSize int

	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = time.Second
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 1024
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	return c
}

// storeTimeout bounds cache writes so a slow store cannot stall the
// read loop indefinitely.
const storeTimeout = 5 * time.Second

// Feed maintains one persistent streaming connection to the price
// venue: it authenticates, subscribes, normalizes quote/trade records
// into ticks, appends them to the cache and forwards them to the
// consumer queue. One long-lived connection per process; reconnect
// attempts never overlap.
type Feed struct {
	cfg   Config
	store TickStore
	log   zerolog.Logger
	ticks chan Tick

	mu       sync.Mutex
	conn     *websocket.Conn
	state    State
	attempts int
}

// NewFeed creates a feed. The store may be nil for consumers that only
// want the in-process queue.
func NewFeed(cfg Config, store TickStore, log zerolog.Logger) *Feed {
	cfg = cfg.withDefaults()
	return &Feed{
		cfg:   cfg,
		store: store,
		log:   log.With().Str("component", "marketdata").Logger(),
		ticks: make(chan Tick, cfg.BufferSize),
	}
}

// Ticks is the bounded consumer queue. Under backpressure the oldest
// queued tick is dropped so a slow consumer never blocks the read loop.
func (f *Feed) Ticks() <-chan Tick {
	return f.ticks
}

// State returns the current connection state.
func (f *Feed) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Feed) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

// Close tears down the current connection, unblocking the read loop.
func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

// Run drives the connection until the context ends or the reconnect
// budget is exhausted. Only one reconnect attempt is in flight at a
// time; delays grow as 2^attempt * base (1s, 2s, 4s, 8s, 16s by
// default).
func (f *Feed) Run(ctx context.Context) error {
	for {
		err := f.session(ctx)
		f.setState(StateDisconnected)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			// Clean shutdown requested by the venue.
			return nil
		}
		if riskerr.CategoryOf(err) == riskerr.CategoryCredentials {
			// Reconnecting with the same bad keys cannot help.
			f.log.Error().Err(err).Msg("authentication rejected, feed stopped")
			return err
		}
		f.log.Warn().Err(err).Msg("feed connection lost")

		f.mu.Lock()
		attempt := f.attempts
		f.mu.Unlock()
		if attempt >= f.cfg.MaxReconnectAttempts {
			f.log.Error().
				Int("attempts", attempt).
				Msg("max reconnect attempts reached, feed offline until restarted")
			monitoring.RecordError("feed_reconnect_exhausted")
			return ErrMaxReconnects
		}

		delay := backoffDelay(attempt, f.cfg.ReconnectBase)
		f.mu.Lock()
		f.attempts++
		f.mu.Unlock()
		monitoring.RecordReconnect()
		f.log.Info().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// backoffDelay is the exponential reconnect delay: 2^attempt * base.
func backoffDelay(attempt int, base time.Duration) time.Duration {
	return base * time.Duration(1<<attempt)
}

// session runs one connect → authenticate → subscribe → read cycle.
func (f *Feed) session(ctx context.Context) error {
	f.setState(StateConnecting)
	dialer := websocket.Dialer{HandshakeTimeout: f.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return riskerr.Wrap(riskerr.CategoryConnection, "marketdata", "dial", "connect to venue", err)
	}
	defer conn.Close()

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	f.setState(StateAuthenticating)
	if err := f.authenticate(conn); err != nil {
		return err
	}

	// The attempt counter resets strictly after a successful
	// connect+authenticate cycle.
	f.mu.Lock()
	f.attempts = 0
	f.mu.Unlock()

	if err := f.subscribe(conn); err != nil {
		return err
	}
	f.setState(StateSubscribed)
	f.log.Info().Strs("symbols", f.cfg.Symbols).Msg("feed subscribed")

	return f.readLoop(ctx, conn)
}

// authenticate sends the auth handshake and waits for the success
// acknowledgment before anything else may be sent.
func (f *Feed) authenticate(conn *websocket.Conn) error {
	conn.SetWriteDeadline(time.Now().Add(f.cfg.WriteTimeout))
	if err := conn.WriteJSON(authRequest{Action: "auth", Key: f.cfg.Key, Secret: f.cfg.Secret}); err != nil {
		return riskerr.Wrap(riskerr.CategoryConnection, "marketdata", "auth", "send auth request", err)
	}

	deadline := time.Now().Add(f.cfg.HandshakeTimeout)
	for {
		conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			return riskerr.Wrap(riskerr.CategoryConnection, "marketdata", "auth", "read auth ack", err)
		}
		msgs, err := parseMessages(data)
		if err != nil {
			f.log.Warn().Err(err).Msg("malformed message during auth, skipping")
			continue
		}
		for _, msg := range msgs {
			switch msg.Type {
			case msgTypeSuccess:
				if msg.Msg == "authenticated" {
					return nil
				}
				// "connected" and similar progress acks; keep waiting.
			case msgTypeError:
				return riskerr.New(riskerr.CategoryCredentials, "marketdata", "auth",
					fmt.Sprintf("venue rejected auth: %s (code %d)", msg.Msg, msg.Code))
			}
		}
	}
}

func (f *Feed) subscribe(conn *websocket.Conn) error {
	conn.SetWriteDeadline(time.Now().Add(f.cfg.WriteTimeout))
	req := subscribeRequest{
		Action: "subscribe",
		Trades: f.cfg.Symbols,
		Quotes: f.cfg.Symbols,
		Bars:   f.cfg.Symbols,
	}
	if err := conn.WriteJSON(req); err != nil {
		return riskerr.Wrap(riskerr.CategoryConnection, "marketdata", "subscribe", "send subscribe request", err)
	}
	return nil
}

func (f *Feed) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return riskerr.Wrap(riskerr.CategoryConnection, "marketdata", "read", "read venue frame", err)
		}

		msgs, err := parseMessages(data)
		if err != nil {
			// Partial or malformed frames are logged and skipped, never fatal.
			monitoring.RecordError("malformed_message")
			f.log.Warn().Err(err).Msg("skipping malformed venue message")
			continue
		}

		for _, msg := range msgs {
			switch msg.Type {
			case msgTypeQuote, msgTypeTrade:
				if tick, ok := msg.tick(); ok {
					f.dispatch(ctx, tick, msg.Type)
				}
			case msgTypeError:
				monitoring.RecordError("venue_error")
				f.log.Error().
					Int("code", msg.Code).
					Str("msg", msg.Msg).
					Msg("venue error message")
			case msgTypeSuccess:
				f.log.Debug().Str("msg", msg.Msg).Msg("venue ack")
			default:
				f.log.Debug().Str("type", msg.Type).Msg("unhandled venue message type")
			}
		}
	}
}

// dispatch appends the tick to the durable cache and forwards it to
// the consumer queue, dropping the oldest queued tick when full.
func (f *Feed) dispatch(ctx context.Context, t Tick, kind string) {
	monitoring.RecordTick(t.Symbol, kind)

	if f.store != nil {
		storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
		if err := f.store.InsertTick(storeCtx, t); err != nil {
			monitoring.RecordError("tick_store")
			f.log.Warn().Err(err).Str("symbol", t.Symbol).Msg("failed to cache tick")
		}
		cancel()
	}

	select {
	case f.ticks <- t:
		return
	default:
	}

	// Queue full: drop the oldest tick to make room.
	select {
	case <-f.ticks:
	default:
	}
	select {
	case f.ticks <- t:
	default:
	}
	monitoring.RecordTickDropped()
	f.log.Debug().Str("symbol", t.Symbol).Msg("tick queue full, dropped oldest")
}
