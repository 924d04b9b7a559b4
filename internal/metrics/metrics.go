package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSettled        = "settled"
	OutcomeAlreadySettled = "already_settled"
	OutcomeAborted        = "aborted"
	OutcomeFailed         = "failed"
)

// Registry owns the process collectors. A nil *Registry is a valid no-op.
type Registry struct {
	reg *prometheus.Registry

	settlements        *prometheus.CounterVec
	settlementDuration prometheus.Histogram
	ledgerEntries      *prometheus.CounterVec
	negativeBalances   *prometheus.CounterVec
	commissions        *prometheus.CounterVec
	eventsPublished    *prometheus.CounterVec
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kuberafi_settlements_total",
			Help: "Settlement attempts by outcome.",
		}, []string{"outcome"}),
		settlementDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kuberafi_settlement_duration_seconds",
			Help:    "Wall time of one settlement transaction including retries.",
			Buckets: prometheus.DefBuckets,
		}),
		ledgerEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kuberafi_ledger_entries_total",
			Help: "Cash ledger entries appended by reference type.",
		}, []string{"reference_type"}),
		negativeBalances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kuberafi_negative_balances_total",
			Help: "Ledger mutations that left a cash box below zero.",
		}, []string{"currency"}),
		commissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kuberafi_commissions_total",
			Help: "Commissions created by model.",
		}, []string{"model"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kuberafi_order_events_published_total",
			Help: "Order completed events handed to the queue.",
		}, []string{"source"}),
	}
	r.reg.MustRegister(
		r.settlements,
		r.settlementDuration,
		r.ledgerEntries,
		r.negativeBalances,
		r.commissions,
		r.eventsPublished,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.DefaultGatherer
	}
	return r.reg
}

func (r *Registry) Settlement(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.settlements.WithLabelValues(outcome).Inc()
	if elapsed > 0 {
		r.settlementDuration.Observe(elapsed.Seconds())
	}
}

func (r *Registry) LedgerEntry(referenceType string) {
	if r == nil {
		return
	}
	r.ledgerEntries.WithLabelValues(referenceType).Inc()
}

func (r *Registry) NegativeBalance(currency string) {
	if r == nil {
		return
	}
	r.negativeBalances.WithLabelValues(currency).Inc()
}

func (r *Registry) Commission(model string) {
	if r == nil {
		return
	}
	r.commissions.WithLabelValues(model).Inc()
}

func (r *Registry) EventPublished(source string) {
	if r == nil {
		return
	}
	r.eventsPublished.WithLabelValues(source).Inc()
}

// Counter exposes a collector for assertions in tests.
func (r *Registry) Counter(name string, label string) prometheus.Counter {
	if r == nil {
		return nil
	}
	switch name {
	case "settlements":
		return r.settlements.WithLabelValues(label)
	case "ledger_entries":
		return r.ledgerEntries.WithLabelValues(label)
	case "negative_balances":
		return r.negativeBalances.WithLabelValues(label)
	case "commissions":
		return r.commissions.WithLabelValues(label)
	case "events_published":
		return r.eventsPublished.WithLabelValues(label)
	}
	return nil
}
