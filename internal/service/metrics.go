package service

import (
	"errors"
	"time"

	"credit-ledger-bridge/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ledger call outcomes used as the "outcome" label.
const (
	outcomeOK          = "ok"
	outcomeRejected    = "rejected"
	outcomeTimeout     = "timeout"
	outcomeUnavailable = "unavailable"
	outcomeError       = "error"
)

// Metrics holds the coordinator's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	ledgerCalls     *prometheus.CounterVec
	ledgerDuration  *prometheus.HistogramVec
	transitions     *prometheus.CounterVec
	partialFailures *prometheus.CounterVec
}

// NewMetrics registers the coordinator collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ledgerCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credit_ledger",
			Name:      "ledger_calls_total",
			Help:      "Value ledger calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		ledgerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "credit_ledger",
			Name:      "ledger_call_duration_seconds",
			Help:      "Value ledger call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credit_ledger",
			Name:      "credit_transitions_total",
			Help:      "Durable credit status transitions by target status.",
		}, []string{"to"}),
		partialFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credit_ledger",
			Name:      "partial_failures_total",
			Help:      "Pipelines that stopped after an irreversible step, by stage.",
		}, []string{"stage"}),
	}
}

// observeLedger records one ledger call.
func (m *Metrics) observeLedger(op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.ledgerCalls.WithLabelValues(op, ledgerOutcome(err)).Inc()
	m.ledgerDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) transition(to domain.CreditStatus) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(to)).Inc()
}

func (m *Metrics) partial(stage domain.Stage) {
	if m == nil {
		return
	}
	m.partialFailures.WithLabelValues(string(stage)).Inc()
}

func ledgerOutcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, domain.ErrLedgerUnavailable):
		return outcomeUnavailable
	case errors.Is(err, domain.ErrLedgerTimeout):
		return outcomeTimeout
	case errors.Is(err, domain.ErrLedgerRejected),
		errors.Is(err, domain.ErrPriceMismatch),
		errors.Is(err, domain.ErrInsufficientFunds):
		return outcomeRejected
	default:
		return outcomeError
	}
}
