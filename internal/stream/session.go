package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"backend-pathgreen/internal/chat"
	"backend-pathgreen/internal/fleet"
	"backend-pathgreen/internal/metrics"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type State int32

const (
	StateConnecting State = iota
	StateSynced
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateSynced:
		return "SYNCED"
	default:
		return "TERMINATED"
	}
}

// Conn is the subset of a websocket connection a session drives.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type Snapshotter interface {
	Snapshot() fleet.Snapshot
}

type Asker interface {
	Ask(ctx context.Context, query string, snap fleet.Snapshot) (chat.Answer, error)
}

type SessionConfig struct {
	HeartbeatInterval time.Duration
	TimeoutMultiple   int
	ChatTimeout       time.Duration
	WriteTimeout      time.Duration
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		HeartbeatInterval: 30 * time.Second,
		TimeoutMultiple:   3,
		ChatTimeout:       15 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

func (c SessionConfig) readTimeout() time.Duration {
	multiple := c.TimeoutMultiple
	if multiple <= 0 {
		multiple = 1
	}
	return c.HeartbeatInterval * time.Duration(multiple)
}

// Session runs the protocol for one viewer connection. The writer goroutine is
// the only one that writes to conn once the initial state has been sent.
type Session struct {
	id      string
	conn    Conn
	hub     *Hub
	store   Snapshotter
	asker   Asker
	cfg     SessionConfig
	client  *Client
	control chan []byte
	state   atomic.Int32
	chats   sync.WaitGroup
	closer  sync.Once
	log     zerolog.Logger

	// baseline is the version of the last initial_state sent. Writer only.
	baseline uint64
}

func NewSession(id string, conn Conn, hub *Hub, store Snapshotter, asker Asker, cfg SessionConfig) *Session {
	return &Session{
		id:      id,
		conn:    conn,
		hub:     hub,
		store:   store,
		asker:   asker,
		cfg:     cfg,
		control: make(chan []byte, 16),
		log:     log.With().Str("session_id", id).Logger(),
	}
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Run blocks until the connection ends, the heartbeat expires or ctx is done.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer s.terminate(cancel)

	s.client = s.hub.Register(s.id)
	if err := s.sendInitialState(); err != nil {
		s.log.Debug().Err(err).Msg("initial state write failed")
		return
	}
	s.state.Store(int32(StateSynced))
	s.log.Info().Uint64("seq", s.baseline).Msg("session synced")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(ctx)
		s.closeConn()
	}()

	s.readLoop(ctx)
	cancel()
	<-writerDone
}

func (s *Session) terminate(cancel context.CancelFunc) {
	cancel()
	s.chats.Wait()
	s.hub.Unregister(s.client)
	s.closeConn()
	s.state.Store(int32(StateTerminated))
	s.log.Info().Msg("session terminated")
}

func (s *Session) closeConn() {
	s.closer.Do(func() {
		_ = s.conn.Close()
	})
}

func (s *Session) readLoop(ctx context.Context) {
	timeout := s.cfg.readTimeout()
	for {
		if timeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(timeout))
		}
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			var netErr net.Error
			switch {
			case ctx.Err() != nil:
			case errors.As(err, &netErr) && netErr.Timeout():
				s.log.Info().Dur("timeout", timeout).Msg("heartbeat timeout")
			default:
				s.log.Debug().Err(err).Msg("read ended")
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(ctx, "invalid message")
			continue
		}
		switch msg.Type {
		case TypePing:
			if pong, err := Encode(TypePong, 0, nil); err == nil {
				s.sendControl(ctx, pong.Payload)
			}
		case TypeChat:
			s.startChat(ctx, msg.Query)
		default:
			s.sendError(ctx, "unknown message type: "+msg.Type)
		}
	}
}

func (s *Session) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-s.control:
			if err := s.write(payload); err != nil {
				s.log.Debug().Err(err).Msg("write failed")
				return
			}
		case msg, ok := <-s.client.Send:
			if !ok {
				return
			}
			if s.client.NeedsResync() {
				if err := s.resync(); err != nil {
					s.log.Debug().Err(err).Msg("resync write failed")
					return
				}
			}
			if msg.Seq <= s.baseline {
				continue
			}
			if err := s.write(msg.Payload); err != nil {
				s.log.Debug().Err(err).Msg("write failed")
				return
			}
		}
	}
}

// resync discards everything queued and sends a fresh baseline.
func (s *Session) resync() error {
	for drained := false; !drained; {
		select {
		case _, ok := <-s.client.Send:
			if !ok {
				drained = true
			}
		default:
			drained = true
		}
	}
	metrics.Resyncs.Inc()
	s.log.Warn().Msg("queue overflow, resending initial state")
	return s.sendInitialState()
}

func (s *Session) sendInitialState() error {
	snap := s.store.Snapshot()
	msg, err := Encode(TypeInitialState, snap.Version, initialStateFrom(snap))
	if err != nil {
		return err
	}
	if err := s.write(msg.Payload); err != nil {
		return err
	}
	s.baseline = snap.Version
	return nil
}

func (s *Session) write(payload []byte) error {
	if s.cfg.WriteTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *Session) sendControl(ctx context.Context, payload []byte) {
	select {
	case s.control <- payload:
	case <-ctx.Done():
	}
}

func (s *Session) sendError(ctx context.Context, text string) {
	msg, err := Encode(TypeError, 0, ErrorMessage{Message: text})
	if err != nil {
		return
	}
	s.sendControl(ctx, msg.Payload)
}

func (s *Session) startChat(ctx context.Context, query string) {
	s.chats.Add(1)
	go func() {
		defer s.chats.Done()

		ans := s.answer(ctx, query)
		msg, err := Encode(TypeChatResponse, 0, ans)
		if err != nil {
			s.log.Error().Err(err).Msg("encode chat response")
			return
		}
		s.sendControl(ctx, msg.Payload)
	}()
}

func (s *Session) answer(ctx context.Context, query string) chat.Answer {
	failed := chat.Answer{
		MessageID: uuid.NewString(),
		Query:     query,
		Response:  chat.ErrorReply,
		Citations: []string{},
		Error:     true,
	}
	if s.asker == nil {
		metrics.ChatRequests.WithLabelValues("error").Inc()
		failed.Timestamp = time.Now()
		return failed
	}

	if s.cfg.ChatTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ChatTimeout)
		defer cancel()
	}

	type result struct {
		ans chat.Answer
		err error
	}
	done := make(chan result, 1)
	snap := s.store.Snapshot()
	go func() {
		ans, err := s.asker.Ask(ctx, query, snap)
		done <- result{ans: ans, err: err}
	}()

	var ans chat.Answer
	var err error
	select {
	case r := <-done:
		ans, err = r.ans, r.err
	case <-ctx.Done():
		ans, err = failed, ctx.Err()
	}

	metrics.ChatRequests.WithLabelValues(chat.Outcome(err)).Inc()
	if err != nil && !errors.Is(err, chat.ErrBlocked) {
		s.log.Warn().Err(err).Msg("chat query failed")
		ans.Error = true
		if ans.Response == "" {
			ans.Response = chat.ErrorReply
		}
	}
	if ans.MessageID == "" {
		ans.MessageID = failed.MessageID
	}
	if ans.Query == "" {
		ans.Query = query
	}
	if ans.Timestamp.IsZero() {
		ans.Timestamp = time.Now()
	}
	if ans.Citations == nil {
		ans.Citations = []string{}
	}
	return ans
}
