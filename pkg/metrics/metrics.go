package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics defines counters for the update state machine and its command
// source.
type Metrics interface {
	IncTransition(from, to string)
	IncSignal(signal, result string)
	IncAttempt(outcome string)
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncTransition(string, string) {}
func (Noop) IncSignal(string, string)     {}
func (Noop) IncAttempt(string)            {}

// Prom implements Metrics backed by Prometheus counters.
type Prom struct {
	transitions *prometheus.CounterVec
	signals     *prometheus.CounterVec
	attempts    *prometheus.CounterVec
}

// NewProm registers the counters with the default registry.
func NewProm(namespace string) *Prom {
	return NewPromWith(namespace, prometheus.DefaultRegisterer)
}

// NewPromWith registers the counters with reg.
func NewPromWith(namespace string, reg prometheus.Registerer) *Prom {
	p := &Prom{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "State transitions by source and destination state",
		}, []string{"from", "to"}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_total",
			Help:      "Operator signals by kind and whether they were accepted",
		}, []string{"signal", "result"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Finished update attempts by outcome",
		}, []string{"outcome"}),
	}
	reg.MustRegister(p.transitions, p.signals, p.attempts)
	return p
}

// IncTransition counts a move between two states.
func (p *Prom) IncTransition(from, to string) {
	p.transitions.WithLabelValues(from, to).Inc()
}

// IncSignal counts an operator signal by result (accepted or ignored).
func (p *Prom) IncSignal(signal, result string) {
	p.signals.WithLabelValues(signal, result).Inc()
}

// IncAttempt counts a finished attempt by outcome.
func (p *Prom) IncAttempt(outcome string) {
	p.attempts.WithLabelValues(outcome).Inc()
}

// Handler returns an HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
