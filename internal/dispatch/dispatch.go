// Package dispatch executes parsed control commands against the chat client.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/agent-command/subbot/internal/metrics"
	"github.com/agent-command/subbot/internal/protocol"
)

var (
	// ErrResolve means the target channel or user could not be fetched.
	ErrResolve = errors.New("target resolution failed")
	// ErrSend means one or more sends to a resolved target failed.
	ErrSend = errors.New("send failed")
)

// Target is a resolved destination that text can be sent to.
type Target struct {
	// ID is the channel the chat client sends into. For users this is the
	// direct conversation channel.
	ID   string
	Name string
}

// Capabilities are the chat client operations a dispatcher may use.
type Capabilities interface {
	FetchChannel(ctx context.Context, id protocol.ChannelID) (Target, error)
	FetchUser(ctx context.Context, id protocol.UserID) (Target, error)
	Send(ctx context.Context, target Target, text string) error
	TerminateSelf(ctx context.Context) error
}

// Outcome describes one executed command.
type Outcome struct {
	Verb     protocol.Verb
	Attempts int
	Sent     int
	// Terminal tells the session loop to stop receiving.
	Terminal bool
	// Err is nil on success and otherwise matches ErrResolve or ErrSend, or
	// carries the terminate or cancellation error.
	Err error
}

func (o Outcome) OK() bool { return o.Err == nil }

type Options struct {
	// FloodInterval is the pause between repeated sends. Zero sends back to back.
	FloodInterval time.Duration
}

type Dispatcher struct {
	caps          Capabilities
	logger        *slog.Logger
	metrics       *metrics.Metrics
	floodInterval time.Duration
}

func New(caps Capabilities, logger *slog.Logger, m *metrics.Metrics, opts Options) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{
		caps:          caps,
		logger:        logger,
		metrics:       m,
		floodInterval: opts.FloodInterval,
	}
}

// Dispatch runs cmd to completion. Flood commands send sequentially; a failed
// send is recorded and the remaining repetitions still run. Cancelling ctx
// stops a flood between repetitions.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd protocol.Command) Outcome {
	out := Outcome{Verb: cmd.Verb()}

	switch c := cmd.(type) {
	case protocol.Terminate:
		out.Terminal = true
		if err := d.caps.TerminateSelf(ctx); err != nil {
			out.Err = fmt.Errorf("terminate: %w", err)
		}

	case protocol.RelayMessage:
		target, err := d.caps.FetchChannel(ctx, c.TargetChannel)
		if err != nil {
			out.Err = fmt.Errorf("%w: channel %s: %w", ErrResolve, c.TargetChannel, err)
			break
		}
		d.repeat(ctx, &out, target, 1, c.Text)

	case protocol.FloodChannel:
		target, err := d.caps.FetchChannel(ctx, c.TargetChannel)
		if err != nil {
			out.Err = fmt.Errorf("%w: channel %s: %w", ErrResolve, c.TargetChannel, err)
			break
		}
		d.repeat(ctx, &out, target, c.Count, c.Text)

	case protocol.FloodUser:
		target, err := d.caps.FetchUser(ctx, c.TargetUser)
		if err != nil {
			out.Err = fmt.Errorf("%w: user %s: %w", ErrResolve, c.TargetUser, err)
			break
		}
		d.repeat(ctx, &out, target, c.Count, c.Text)

	default:
		out.Err = fmt.Errorf("unsupported command %T", cmd)
	}

	if out.Err != nil {
		d.metrics.DispatchFailed(string(out.Verb))
	}
	return out
}

func (d *Dispatcher) repeat(ctx context.Context, out *Outcome, target Target, count int, text string) {
	var firstErr error
	failed := 0

	for i := 0; i < count; i++ {
		if i > 0 && d.floodInterval > 0 {
			if err := sleep(ctx, d.floodInterval); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		out.Attempts++
		err := d.caps.Send(ctx, target, text)
		d.metrics.SendResult(err)
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			d.logger.Warn("send failed", "target", target.ID, "iteration", i+1, "count", count, "error", err)
			continue
		}
		out.Sent++
	}

	switch {
	case failed > 0:
		out.Err = fmt.Errorf("%w: %d of %d sends to %s failed: %w", ErrSend, failed, out.Attempts, target.ID, firstErr)
	case out.Attempts < count:
		out.Err = fmt.Errorf("interrupted after %d of %d sends: %w", out.Attempts, count, ctx.Err())
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
