// Package ws carries control channel messages over a websocket, one text
// frame per wire message.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned by operations on a closed Conn.
var ErrClosed = errors.New("connection closed")

type DialOptions struct {
	Timeout time.Duration
	Header  http.Header
}

// Conn is a single ordered connection to the host. Reads must come from one
// goroutine; writes are serialized internally.
type Conn struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to the host control endpoint.
func Dial(ctx context.Context, url string, opts DialOptions) (*Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.Timeout,
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	conn, _, err := dialer.DialContext(ctx, url, opts.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return NewConn(conn), nil
}

// NewConn wraps an established websocket. The host side of tests uses this
// with an upgraded server connection.
func NewConn(conn *websocket.Conn) *Conn {
	return &Conn{conn: conn, closed: make(chan struct{})}
}

func (c *Conn) WriteMessage(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	deadline, _ := ctx.Deadline()
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// ReadMessage blocks until the next text message arrives, ctx is done, or the
// connection fails. A read interrupted by ctx leaves the connection unusable.
func (c *Conn) ReadMessage(ctx context.Context) ([]byte, error) {
	select {
	case <-c.closed:
		return nil, ErrClosed
	default:
	}

	deadline, _ := ctx.Deadline()
	_ = c.conn.SetReadDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return nil, context.DeadlineExceeded
		}
		return nil, fmt.Errorf("read: %w", err)
	}
	return data, nil
}

// Close sends a close frame when possible and releases the socket.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}
