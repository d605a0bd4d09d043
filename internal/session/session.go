package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/agent-command/subbot/internal/dispatch"
	"github.com/agent-command/subbot/internal/metrics"
	"github.com/agent-command/subbot/internal/protocol"
	"github.com/google/uuid"
)

type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateServing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateServing:
		return "serving"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Dialer opens a fresh control connection.
type Dialer func(ctx context.Context) (Conn, error)

type Options struct {
	Dial       Dialer
	Identity   Identity
	Parser     *protocol.Parser
	Dispatcher *dispatch.Dispatcher
	Logger     *slog.Logger
	Metrics    *metrics.Metrics

	// HandshakeTimeout bounds the wait for the host's reply. Zero waits forever.
	HandshakeTimeout time.Duration
	// ReceiveTimeout bounds the wait for each command. Zero waits forever.
	// Expiry is treated as a lost connection.
	ReceiveTimeout time.Duration

	// Reconnect redials after a lost connection or failed dial, never after
	// a rejected handshake or a terminate command.
	Reconnect bool
	Backoff   []time.Duration
	// MaxReconnects limits consecutive redials; zero is unlimited.
	MaxReconnects int
}

// Session is the control loop for one agent process.
type Session struct {
	opts  Options
	state atomic.Int32
}

func New(opts Options) *Session {
	if opts.Parser == nil {
		opts.Parser = protocol.NewParser(protocol.FramingCanonical, 0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if len(opts.Backoff) == 0 {
		opts.Backoff = []time.Duration{time.Second}
	}
	return &Session{opts: opts}
}

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	s.opts.Metrics.SetState(int(st))
}

// Run drives the session until a terminate command (nil), ctx cancellation
// (ctx.Err()) or a fatal error matching ErrConnect, ErrHandshakeRejected or
// ErrConnectionLost. The session is Closed when Run returns.
func (s *Session) Run(ctx context.Context) error {
	defer s.setState(StateClosed)

	failures := 0
	for {
		served, err := s.runOnce(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !s.opts.Reconnect || !retryable(err) {
			return err
		}

		if served {
			failures = 0
		}
		failures++
		if s.opts.MaxReconnects > 0 && failures > s.opts.MaxReconnects {
			return fmt.Errorf("giving up after %d reconnect attempts: %w", s.opts.MaxReconnects, err)
		}

		delay := s.opts.Backoff[min(failures, len(s.opts.Backoff))-1]
		s.opts.Logger.Warn("control channel down, reconnecting", "attempt", failures, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func retryable(err error) bool {
	return errors.Is(err, ErrConnectionLost) || errors.Is(err, ErrConnect)
}

// runOnce performs one connect/authenticate/serve cycle. served reports
// whether the handshake succeeded.
func (s *Session) runOnce(ctx context.Context) (served bool, err error) {
	s.setState(StateConnecting)
	conn, err := s.opts.Dial(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	s.setState(StateAuthenticating)
	hctx, cancel := withTimeout(ctx, s.opts.HandshakeTimeout)
	result, err := Authenticate(hctx, conn, s.opts.Identity)
	cancel()
	s.opts.Metrics.Handshake(result.String())
	if result != Authenticated {
		return false, err
	}

	s.opts.Logger.Info("connection to host established", "identity", s.opts.Identity)
	s.setState(StateServing)
	defer conn.Close()
	return true, s.serve(ctx, conn)
}

func (s *Session) serve(ctx context.Context, conn Conn) error {
	for {
		rctx, cancel := withTimeout(ctx, s.opts.ReceiveTimeout)
		msg, err := conn.ReadMessage(rctx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %w", ErrConnectionLost, err)
		}

		logger := s.opts.Logger.With("dispatch_id", uuid.NewString())

		cmd, err := s.opts.Parser.Parse(protocol.Decode(msg))
		if err != nil {
			s.opts.Metrics.CommandMalformed()
			logger.Warn("ignoring command", "error", err)
			continue
		}
		s.opts.Metrics.CommandReceived(string(cmd.Verb()))
		logger.Info("dispatching command", "command", cmd.String())

		out := s.opts.Dispatcher.Dispatch(ctx, cmd)
		if out.Err != nil {
			logger.Error("command failed", "verb", out.Verb, "sent", out.Sent, "attempts", out.Attempts, "error", out.Err)
		} else {
			logger.Debug("command done", "verb", out.Verb, "sent", out.Sent)
		}

		if out.Terminal {
			logger.Info("shutting down...")
			return nil
		}
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
