package ws

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// logEvery controls how often periodic emissions are logged.
const logEvery = 5

var errSessionClosing = errors.New("ws: session closing")

// normalCloseCodes are close codes that end a session without a transport fault.
var normalCloseCodes = []int{
	websocket.CloseNormalClosure,
	websocket.CloseGoingAway,
	websocket.CloseNoStatusReceived,
}

// MessageProcessor builds the frames a session sends.
type MessageProcessor interface {
	Connected() ([]byte, error)
	Next(ctx context.Context, sessionID string) ([]byte, error)
	Process(ctx context.Context, sessionID string, raw []byte) ([]byte, error)
}

// Conn is the part of *websocket.Conn a session uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// State is a session lifecycle state.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Options tune a session.
type Options struct {
	// Interval between periodic predictions.
	Interval time.Duration
	// WriteTimeout bounds every outbound write. Zero disables the deadline.
	WriteTimeout time.Duration
	// PongWait is how long the peer may stay silent. Zero disables the read deadline.
	PongWait time.Duration
	// ReadLimit caps inbound frame size. Zero leaves the library default.
	ReadLimit int64
}

// Session owns one client connection: it pushes a prediction every interval
// and answers client transactions until the connection closes.
type Session struct {
	id        string
	conn      Conn
	processor MessageProcessor
	opts      Options
	logger    *zap.Logger
	onClose   func(*Session)

	writeMu   sync.Mutex
	state     atomic.Int32
	emitted   atomic.Uint64
	closeCode atomic.Int64
	done      chan struct{}
}

// NewSession builds a session wrapper. onClose runs once the session is closed.
func NewSession(id string, conn Conn, processor MessageProcessor, opts Options, logger *zap.Logger, onClose func(*Session)) *Session {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	return &Session{
		id:        id,
		conn:      conn,
		processor: processor,
		opts:      opts,
		logger:    logger.With(zap.String("session_id", id)),
		onClose:   onClose,
		done:      make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Emitted returns how many periodic predictions were written. The value is
// final once the session is closed.
func (s *Session) Emitted() uint64 {
	return s.emitted.Load()
}

// CloseCode returns the close code observed on disconnect.
func (s *Session) CloseCode() int {
	return int(s.closeCode.Load())
}

// Done is closed when the session reaches StateClosed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Run drives the session until the connection closes, a write fails or ctx is
// cancelled. It returns only after the periodic emitter has exited and the
// connection has been released. A normal client close returns nil.
func (s *Session) Run(ctx context.Context) error {
	defer s.finish()

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Cancelling ctx must unblock the reader.
	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()

	if err := s.open(); err != nil {
		s.logger.Warn("failed to open session", zap.Error(err))
		s.state.Store(int32(StateClosing))
		return err
	}

	emitErr := make(chan error, 1)
	go func() {
		emitErr <- s.emit(ctx)
	}()

	readErr := s.receive(ctx)

	s.state.Store(int32(StateClosing))
	cancel()
	writeErr := <-emitErr

	return s.result(parent, readErr, writeErr)
}

// open sends the confirmation before anything else happens on the session.
func (s *Session) open() error {
	frame, err := s.processor.Connected()
	if err != nil {
		return err
	}
	if err := s.write(frame); err != nil {
		return err
	}
	s.state.Store(int32(StateOpen))
	s.logger.Info("websocket connection established")
	return nil
}

func (s *Session) emit(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("periodic predictions cancelled", zap.Uint64("emitted", s.emitted.Load()))
			return nil
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return nil
		}

		frame, err := s.processor.Next(ctx, s.id)
		if err != nil {
			s.logger.Error("failed to build periodic prediction", zap.Error(err))
			continue
		}

		counter := s.emitted.Load()
		if counter%logEvery == 0 {
			s.logger.Info("sending prediction", zap.Uint64("counter", counter))
		}

		if err := s.writeActive(ctx, frame); err != nil {
			if errors.Is(err, errSessionClosing) || errors.Is(err, websocket.ErrCloseSent) || ctx.Err() != nil {
				s.logger.Info("periodic predictions cancelled", zap.Uint64("emitted", counter))
				return nil
			}
			s.logger.Warn("periodic write failed", zap.Error(err))
			_ = s.conn.Close()
			return err
		}
		s.emitted.Add(1)
	}
}

func (s *Session) receive(ctx context.Context) error {
	if s.opts.ReadLimit > 0 {
		s.conn.SetReadLimit(s.opts.ReadLimit)
	}
	s.extendReadDeadline()
	s.conn.SetPongHandler(func(string) error {
		s.extendReadDeadline()
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		s.extendReadDeadline()

		response, err := s.processor.Process(ctx, s.id, message)
		if err != nil {
			s.logger.Warn("failed to process message", zap.Error(err))
			continue
		}
		if response == nil {
			continue
		}
		if err := s.write(response); err != nil {
			if errors.Is(err, websocket.ErrCloseSent) {
				// Waiting for the peer to acknowledge our close frame.
				continue
			}
			return err
		}
	}
}

// Ping sends a keepalive ping. Safe to call concurrently with Run.
func (s *Session) Ping() error {
	return s.conn.WriteControl(websocket.PingMessage, []byte("ping"), s.deadline())
}

// Shutdown asks the peer to close with the given code. The session finishes
// through its normal teardown once the peer answers or the connection drops.
func (s *Session) Shutdown(code int, text string) error {
	return s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), s.deadline())
}

// Close drops the connection, which ends Run.
func (s *Session) Close() error {
	return s.conn.Close()
}

// writeActive writes a periodic frame unless teardown has started.
func (s *Session) writeActive(ctx context.Context, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if ctx.Err() != nil {
		return errSessionClosing
	}
	return s.writeLocked(data)
}

func (s *Session) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.writeLocked(data)
}

func (s *Session) writeLocked(data []byte) error {
	if s.opts.WriteTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout)); err != nil {
			return err
		}
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) extendReadDeadline() {
	if s.opts.PongWait > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	}
}

func (s *Session) deadline() time.Time {
	timeout := s.opts.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return time.Now().Add(timeout)
}

// result classifies how the session ended and records the close code.
func (s *Session) result(parent context.Context, readErr, writeErr error) error {
	code := websocket.CloseAbnormalClosure
	var closeErr *websocket.CloseError
	if errors.As(readErr, &closeErr) {
		code = closeErr.Code
	}
	s.closeCode.Store(int64(code))
	s.logger.Info("websocket disconnected", zap.Int("code", code), zap.Uint64("emitted", s.emitted.Load()))

	switch {
	case writeErr != nil:
		return writeErr
	case websocket.IsCloseError(readErr, normalCloseCodes...):
		return nil
	case parent.Err() != nil && closeErr == nil:
		// Reader was unblocked by cancellation of the caller's context.
		return nil
	default:
		return readErr
	}
}

func (s *Session) finish() {
	_ = s.conn.Close()
	s.state.Store(int32(StateClosed))
	close(s.done)
	if s.onClose != nil {
		s.onClose(s)
	}
}
