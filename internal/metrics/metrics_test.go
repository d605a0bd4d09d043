package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.CommandReceived("repeat")
	m.CommandMalformed()
	m.SendResult(nil)
	m.DispatchFailed("repeat")
	m.Handshake("rejected")
	m.SetState(2)
}

func TestCounters(t *testing.T) {
	m := New()
	m.CommandReceived("spamchannel")
	m.CommandReceived("spamchannel")
	m.SendResult(nil)
	m.SendResult(errors.New("boom"))
	m.SendResult(nil)
	m.Handshake("authenticated")

	if got := testutil.ToFloat64(m.commands.WithLabelValues("spamchannel")); got != 2 {
		t.Errorf("commands = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.sends.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok sends = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.sends.WithLabelValues("error")); got != 1 {
		t.Errorf("failed sends = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.handshakes.WithLabelValues("authenticated")); got != 1 {
		t.Errorf("handshakes = %v, want 1", got)
	}
}

func TestRouter(t *testing.T) {
	m := New()
	m.CommandMalformed()
	var serving atomic.Bool
	srv := httptest.NewServer(NewRouter(m, serving.Load))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("healthz while not serving = %d", resp.StatusCode)
	}

	serving.Store(true)
	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz while serving = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "subbot_commands_malformed_total 1") {
		t.Errorf("metrics output missing malformed counter:\n%s", body)
	}
}
