package obs

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the billing counters and the HTTP request collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	BillSaves      *prometheus.CounterVec
	Recalculations *prometheus.CounterVec
	BillItemWrites *prometheus.CounterVec
	Requests       *prometheus.CounterVec
	RequestDur     *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg
// (prometheus.DefaultRegisterer when nil).
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		BillSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bill_saves_total",
			Help:      "Count of bill save attempts by outcome.",
		}, []string{"result"}),
		Recalculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bill_recalculations_total",
			Help:      "Count of bill total recalculations by whether the cached total changed.",
		}, []string{"result"}),
		BillItemWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bill_item_writes_total",
			Help:      "Count of bill item writes by operation.",
		}, []string{"op"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled by the server.",
		}, []string{"method", "route", "status"}),
		RequestDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency distribution in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.BillSaves, m.Recalculations, m.BillItemWrites, m.Requests, m.RequestDur)
	return m
}

func (m *Metrics) BillSaved(result string) {
	if m == nil {
		return
	}
	m.BillSaves.WithLabelValues(result).Inc()
}

func (m *Metrics) Recalculated(changed bool) {
	if m == nil {
		return
	}
	result := "unchanged"
	if changed {
		result = "updated"
	}
	m.Recalculations.WithLabelValues(result).Inc()
}

func (m *Metrics) ItemWritten(op string) {
	if m == nil {
		return
	}
	m.BillItemWrites.WithLabelValues(op).Inc()
}

// ObserveRequest records one handled HTTP request. route is the chi pattern.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDur.WithLabelValues(method, route).Observe(float64(elapsed) / float64(time.Millisecond))
}
