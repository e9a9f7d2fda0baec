package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"backend-pathgreen/internal/stream"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrGaveUp       = errors.New("viewer: gave up reconnecting")
	ErrNotConnected = errors.New("viewer: not connected")
)

type ConnState string

const (
	StateConnecting   ConnState = "CONNECTING"
	StateSynced       ConnState = "SYNCED"
	StateReconnecting ConnState = "RECONNECTING"
	StateDisconnected ConnState = "DISCONNECTED"
)

type ClientConfig struct {
	URL           string
	Heartbeat     time.Duration
	Backoff       Backoff
	AlertCapacity int
	OnState       func(ConnState)
	OnEvent       func(Event)
}

// Client keeps one websocket connection to the stream endpoint alive and
// feeds every frame into its Reconciler.
type Client struct {
	cfg    ClientConfig
	dialer *websocket.Dialer
	rec    *Reconciler
	sleep  func(context.Context, time.Duration) error

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	failures int
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 30 * time.Second
	}
	cfg.Backoff = cfg.Backoff.withDefaults()
	return &Client{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		rec:    NewReconciler(cfg.AlertCapacity),
		sleep:  sleepContext,
	}
}

func (c *Client) Reconciler() *Reconciler {
	return c.rec
}

// Run connects and reconnects until ctx is done or the backoff gives up.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.failures++
		if c.cfg.Backoff.Exhausted(c.failures) {
			c.setState(StateDisconnected)
			return fmt.Errorf("%w after %d attempts: %v", ErrGaveUp, c.failures, err)
		}

		delay := c.cfg.Backoff.Delay(c.failures)
		log.Warn().Err(err).Int("attempt", c.failures).Dur("delay", delay).Msg("stream connection lost")
		c.setState(StateReconnecting)
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// Ask sends a chat query; the answer arrives as a chat_response event.
func (c *Client) Ask(query string) error {
	return c.send(stream.ClientMessage{Type: stream.TypeChat, Query: query})
}

func (c *Client) session(ctx context.Context) error {
	c.setState(StateConnecting)
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	sessionCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
		c.rec.MarkStale()
	}()

	go func() {
		<-sessionCtx.Done()
		_ = conn.Close()
	}()
	go c.pingLoop(sessionCtx)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		ev, err := c.rec.Apply(data)
		if err != nil {
			log.Warn().Err(err).Msg("frame ignored")
			continue
		}
		if ev.Type == stream.TypeInitialState {
			c.failures = 0
			c.setState(StateSynced)
		}
		if c.cfg.OnEvent != nil {
			c.cfg.OnEvent(ev)
		}
	}
}

func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.send(stream.ClientMessage{Type: stream.TypePing}); err != nil {
				return
			}
		}
	}
}

func (c *Client) send(msg stream.ClientMessage) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(msg)
}

func (c *Client) setState(s ConnState) {
	if c.cfg.OnState != nil {
		c.cfg.OnState(s)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
