// Package metrics exposes Prometheus collectors for HTTP traffic and the
// credential, claiming and billing workflows.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clinic"

// Collector methods are safe to call on a nil receiver so services can run
// without metrics in tests.
type Collector struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	CredentialsIssued prometheus.Counter
	FirstLogins       prometheus.Counter
	LoginFailures     prometheus.Counter
	ChallengesSent    *prometheus.CounterVec
	ClaimRejections   *prometheus.CounterVec
	RecordsLinked     prometheus.Counter
	PaymentsRecorded  prometheus.Counter
	PaymentsDeleted   prometheus.Counter
	BalanceRecomputes *prometheus.CounterVec
	ChallengesPruned  prometheus.Counter
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path"}),

		CredentialsIssued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "staff",
			Name:      "credentials_issued_total",
			Help:      "Staff credentials issued or regenerated.",
		}),

		FirstLogins: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "staff",
			Name:      "first_logins_total",
			Help:      "Staff accounts activated by their first login.",
		}),

		LoginFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "login_failures_total",
			Help:      "Rejected login attempts.",
		}),

		ChallengesSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "claim",
			Name:      "challenges_total",
			Help:      "One-time codes issued, by delivery result.",
		}, []string{"result"}),

		ClaimRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "claim",
			Name:      "rejections_total",
			Help:      "Failed claim steps by error code.",
		}, []string{"code"}),

		RecordsLinked: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "claim",
			Name:      "records_linked_total",
			Help:      "Clinical records linked to a self-service account.",
		}),

		PaymentsRecorded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "payments_recorded_total",
			Help:      "Payments recorded.",
		}),

		PaymentsDeleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "payments_deleted_total",
			Help:      "Payments deleted.",
		}),

		BalanceRecomputes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "balance_recomputes_total",
			Help:      "Balance recomputations by scope.",
		}, []string{"scope"}),

		ChallengesPruned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "claim",
			Name:      "challenges_pruned_total",
			Help:      "Expired or used challenges removed by the pruning job.",
		}),
	}
}

// Handler serves the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) ObserveRequest(method, path, status string, seconds float64) {
	if c == nil {
		return
	}
	c.RequestsTotal.WithLabelValues(method, path, status).Inc()
	c.RequestDuration.WithLabelValues(method, path).Observe(seconds)
}

func (c *Collector) CredentialIssued() {
	if c == nil {
		return
	}
	c.CredentialsIssued.Inc()
}

func (c *Collector) FirstLogin() {
	if c == nil {
		return
	}
	c.FirstLogins.Inc()
}

func (c *Collector) LoginFailed() {
	if c == nil {
		return
	}
	c.LoginFailures.Inc()
}

// ChallengeSent records a challenge with result "sent" or "failed".
func (c *Collector) ChallengeSent(result string) {
	if c == nil {
		return
	}
	c.ChallengesSent.WithLabelValues(result).Inc()
}

func (c *Collector) ClaimRejected(code string) {
	if c == nil {
		return
	}
	c.ClaimRejections.WithLabelValues(code).Inc()
}

func (c *Collector) RecordLinked() {
	if c == nil {
		return
	}
	c.RecordsLinked.Inc()
}

func (c *Collector) PaymentRecorded() {
	if c == nil {
		return
	}
	c.PaymentsRecorded.Inc()
}

func (c *Collector) PaymentDeleted() {
	if c == nil {
		return
	}
	c.PaymentsDeleted.Inc()
}

// BalanceRecomputed records a recompute with scope "treatment" or "patient".
func (c *Collector) BalanceRecomputed(scope string) {
	if c == nil {
		return
	}
	c.BalanceRecomputes.WithLabelValues(scope).Inc()
}

func (c *Collector) Pruned(n int64) {
	if c == nil {
		return
	}
	c.ChallengesPruned.Add(float64(n))
}
