package session

import (
	"context"
	"errors"
	"testing"

	"github.com/agent-command/subbot/internal/protocol"
)

func TestAuthenticateSucceeds(t *testing.T) {
	conn := newFakeConn(protocol.AuthSucceeded)

	result, err := Authenticate(context.Background(), conn, 967030034240012332)
	if err != nil || result != Authenticated {
		t.Fatalf("Authenticate = %v, %v", result, err)
	}
	if len(conn.written) != 1 || conn.written[0] != "967030034240012332" {
		t.Errorf("identity sent as %q", conn.written)
	}
	if conn.isClosed() {
		t.Error("connection closed after successful handshake")
	}
}

func TestAuthenticateRejects(t *testing.T) {
	tests := []struct {
		name string
		conn *fakeConn
	}{
		{"negative reply", newFakeConn("no")},
		{"empty reply", newFakeConn("")},
		{"near miss", newFakeConn("authentication succeeded ")},
		{"connection drop", newFakeConn().hangup()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Authenticate(context.Background(), tt.conn, 42)
			if result != Rejected {
				t.Fatalf("result = %v, want Rejected", result)
			}
			if !errors.Is(err, ErrHandshakeRejected) {
				t.Errorf("err = %v, want ErrHandshakeRejected", err)
			}
			if !tt.conn.isClosed() {
				t.Error("connection left open after rejection")
			}
		})
	}
}

func TestParseIdentity(t *testing.T) {
	id, err := ParseIdentity("1234")
	if err != nil || id != 1234 || id.String() != "1234" {
		t.Fatalf("ParseIdentity = %v, %v", id, err)
	}
	if _, err := ParseIdentity("me"); err == nil {
		t.Error("expected error for non numeric identity")
	}
}
