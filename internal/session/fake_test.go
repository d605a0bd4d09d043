package session

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/agent-command/subbot/internal/dispatch"
	"github.com/agent-command/subbot/internal/protocol"
)

// fakeConn is an in-memory control connection. Messages queued in inbound are
// returned by ReadMessage; closing inbound simulates the host hanging up.
type fakeConn struct {
	inbound chan []byte

	mu      sync.Mutex
	written []string
	reads   int
	closed  bool
}

func newFakeConn(msgs ...string) *fakeConn {
	c := &fakeConn{inbound: make(chan []byte, len(msgs)+1)}
	for _, m := range msgs {
		c.inbound <- []byte(m)
	}
	return c
}

func (c *fakeConn) hangup() *fakeConn {
	close(c.inbound)
	return c
}

func (c *fakeConn) WriteMessage(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("closed")
	}
	c.written = append(c.written, string(data))
	return nil
}

func (c *fakeConn) ReadMessage(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	c.reads++
	c.mu.Unlock()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-c.inbound:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	}
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) readCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

type fakeCaps struct {
	mu         sync.Mutex
	sends      []string
	terminated int
}

func (f *fakeCaps) FetchChannel(_ context.Context, id protocol.ChannelID) (dispatch.Target, error) {
	return dispatch.Target{ID: id.String()}, nil
}

func (f *fakeCaps) FetchUser(_ context.Context, id protocol.UserID) (dispatch.Target, error) {
	return dispatch.Target{ID: "dm-" + id.String()}, nil
}

func (f *fakeCaps) Send(_ context.Context, t dispatch.Target, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, t.ID+":"+text)
	return nil
}

func (f *fakeCaps) TerminateSelf(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated++
	return nil
}

// dialSequence hands out conns in order and counts dials.
type dialSequence struct {
	mu    sync.Mutex
	conns []*fakeConn
	dials int
}

func (d *dialSequence) dial(context.Context) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.conns) == 0 {
		return nil, errors.New("connection refused")
	}
	c := d.conns[0]
	d.conns = d.conns[1:]
	return c, nil
}
