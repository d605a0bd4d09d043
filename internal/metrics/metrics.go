// Package metrics exposes subbot counters over prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "subbot"

// Metrics holds the collectors for one agent process. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	commands     *prometheus.CounterVec
	parseErrors  prometheus.Counter
	sends        *prometheus.CounterVec
	dispatchErrs *prometheus.CounterVec
	handshakes   *prometheus.CounterVec
	state        prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_received_total",
			Help:      "Control commands parsed successfully, by verb.",
		}, []string{"verb"}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_malformed_total",
			Help:      "Control messages rejected by the parser.",
		}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Chat sends performed while dispatching, by result.",
		}, []string{"result"}),
		dispatchErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_failures_total",
			Help:      "Commands that finished with a dispatch failure, by verb.",
		}, []string{"verb"}),
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_total",
			Help:      "Control channel handshakes, by result.",
		}, []string{"result"}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "Current session loop state (0 connecting, 1 authenticating, 2 serving, 3 closed).",
		}),
	}

	m.registry.MustRegister(
		m.commands,
		m.parseErrors,
		m.sends,
		m.dispatchErrs,
		m.handshakes,
		m.state,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) CommandReceived(verb string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(verb).Inc()
}

func (m *Metrics) CommandMalformed() {
	if m == nil {
		return
	}
	m.parseErrors.Inc()
}

// SendResult records one chat send.
func (m *Metrics) SendResult(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sends.WithLabelValues(result).Inc()
}

func (m *Metrics) DispatchFailed(verb string) {
	if m == nil {
		return
	}
	m.dispatchErrs.WithLabelValues(verb).Inc()
}

// Handshake records a handshake outcome ("authenticated" or "rejected").
func (m *Metrics) Handshake(result string) {
	if m == nil {
		return
	}
	m.handshakes.WithLabelValues(result).Inc()
}

func (m *Metrics) SetState(state int) {
	if m == nil {
		return
	}
	m.state.Set(float64(state))
}
