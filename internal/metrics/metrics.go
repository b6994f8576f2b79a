package metrics

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	resetCodes    prometheus.Counter
	emailFailures prometheus.Counter
	markedDamaged prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		resetCodes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reset_codes_issued_total",
			Help: "Password reset codes generated.",
		}),
		emailFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "email_send_failures_total",
			Help: "Reset code emails that could not be handed to the mail transport.",
		}),
		markedDamaged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assets_marked_damaged_total",
			Help: "Units recorded as damaged through mark-damaged.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.resetCodes,
		m.emailFailures,
		m.markedDamaged,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware counts requests by their chi route pattern so path ids do not
// explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}

func (m *Metrics) ResetCodeIssued() {
	if m == nil {
		return
	}
	m.resetCodes.Inc()
}

func (m *Metrics) EmailFailed() {
	if m == nil {
		return
	}
	m.emailFailures.Inc()
}

func (m *Metrics) AssetMarkedDamaged() {
	if m == nil {
		return
	}
	m.markedDamaged.Inc()
}
