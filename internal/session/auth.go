// Package session owns the control channel lifecycle: connect, authenticate,
// then receive, parse and dispatch commands until terminated or disconnected.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/agent-command/subbot/internal/protocol"
)

var (
	// ErrConnect means the control endpoint could not be reached.
	ErrConnect = errors.New("connect failed")
	// ErrHandshakeRejected means the host did not acknowledge our identity.
	ErrHandshakeRejected = errors.New("handshake rejected")
	// ErrConnectionLost means the stream closed or failed while serving.
	ErrConnectionLost = errors.New("connection lost")
)

// Conn is the control connection. The session loop is its only user.
type Conn interface {
	WriteMessage(ctx context.Context, data []byte) error
	ReadMessage(ctx context.Context) ([]byte, error)
	Close() error
}

// Identity is the agent's numeric chat platform user id.
type Identity uint64

func (id Identity) String() string { return strconv.FormatUint(uint64(id), 10) }

// ParseIdentity parses a decimal snowflake.
func ParseIdentity(s string) (Identity, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid identity %q: %w", s, err)
	}
	return Identity(id), nil
}

type HandshakeResult int

const (
	Rejected HandshakeResult = iota
	Authenticated
)

func (r HandshakeResult) String() string {
	if r == Authenticated {
		return "authenticated"
	}
	return "rejected"
}

// Authenticate sends the identity and waits for exactly one reply. Anything but
// the acknowledgement token, including a failed read, rejects the handshake and
// closes conn. It never retries.
func Authenticate(ctx context.Context, conn Conn, id Identity) (HandshakeResult, error) {
	reject := func(err error) (HandshakeResult, error) {
		_ = conn.Close()
		return Rejected, fmt.Errorf("%w: %w", ErrHandshakeRejected, err)
	}

	if err := conn.WriteMessage(ctx, protocol.Encode([]string{id.String()})); err != nil {
		return reject(fmt.Errorf("send identity: %w", err))
	}

	reply, err := conn.ReadMessage(ctx)
	if err != nil {
		return reject(fmt.Errorf("await reply: %w", err))
	}
	if string(reply) != protocol.AuthSucceeded {
		return reject(fmt.Errorf("host replied %q", reply))
	}
	return Authenticated, nil
}
