package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/pkg/database"
)

const namespace = "aegis_risk"

// Section status label values
const (
	StatusOK          = "ok"
	StatusDegraded    = "degraded"
	StatusUnavailable = "unavailable"
)

// Metrics holds all Prometheus collectors of the risk service
// nil *Metrics는 no-op (METRICS_ENABLED=false)
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	SectionResults  *prometheus.CounterVec
	SectionDuration *prometheus.HistogramVec
	VaR             *prometheus.GaugeVec
	Simulations     prometheus.Gauge
	APIRequests     *prometheus.CounterVec
}

// New creates a registry with all risk collectors registered
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Analysis runs by terminal outcome",
			},
			[]string{"outcome"},
		),

		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall-clock duration of completed analysis runs",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),

		SectionResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "section_results_total",
				Help:      "Section outcomes per run (ok, degraded, unavailable)",
			},
			[]string{"section", "status"},
		),

		SectionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "section_duration_seconds",
				Help:      "Duration of each sub-engine",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"section"},
		),

		VaR: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "var_dollars",
				Help:      "Latest 1-day VaR by method and confidence",
			},
			[]string{"method", "confidence"},
		),

		Simulations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "montecarlo_simulations",
				Help:      "Simulations performed by the latest Monte Carlo run",
			},
		),

		APIRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "HTTP API requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RunsTotal,
		m.RunDuration,
		m.SectionResults,
		m.SectionDuration,
		m.VaR,
		m.Simulations,
		m.APIRequests,
	)

	return m
}

// WatchPool exposes postgres pool occupancy, read at scrape time
func (m *Metrics) WatchPool(stats func() database.PoolStats) {
	if m == nil || stats == nil {
		return
	}
	gauge := func(state string, pick func(database.PoolStats) int32) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "db_pool_connections",
				Help:        "Postgres pool connections by state",
				ConstLabels: prometheus.Labels{"state": state},
			},
			func() float64 { return float64(pick(stats())) },
		)
	}
	m.registry.MustRegister(
		gauge("total", func(s database.PoolStats) int32 { return s.TotalConns }),
		gauge("acquired", func(s database.PoolStats) int32 { return s.AcquiredConns }),
		gauge("idle", func(s database.PoolStats) int32 { return s.IdleConns }),
		gauge("max", func(s database.PoolStats) int32 { return s.MaxConns }),
	)
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun records a finished run
func (m *Metrics) ObserveRun(result *contracts.AnalysisResult) {
	if m == nil || result == nil {
		return
	}

	outcome := strings.ToLower(string(result.State))
	if result.State == contracts.StateCompleted && result.Degraded() {
		outcome = "completed_degraded"
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()

	if result.State == contracts.StateCompleted {
		m.RunDuration.Observe(float64(result.DurationMs) / 1000)
	}

	for section, st := range result.Sections {
		m.SectionResults.WithLabelValues(section.ShortName(), StatusLabel(st)).Inc()
	}

	if v := result.VaRMetrics; v != nil {
		m.setVaR("historical", v.Historical)
		m.setVaR("parametric", v.Parametric)
		if v.MonteCarlo.Available {
			m.setVaR("montecarlo", v.MonteCarlo)
			m.Simulations.Set(float64(v.MonteCarlo.Simulations))
		}
	}
}

// ObserveSuperseded records a run cancelled by a newer trigger
func (m *Metrics) ObserveSuperseded() {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues("superseded").Inc()
}

// ObserveSection records one sub-engine duration
func (m *Metrics) ObserveSection(section contracts.Section, d time.Duration) {
	if m == nil {
		return
	}
	m.SectionDuration.WithLabelValues(section.ShortName()).Observe(d.Seconds())
}

// ObserveRequest records one API request
func (m *Metrics) ObserveRequest(route string, code int) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func (m *Metrics) setVaR(method string, est contracts.VaREstimate) {
	if !est.Available {
		return
	}
	m.VaR.WithLabelValues(method, "95").Set(est.VaR95_1d)
	m.VaR.WithLabelValues(method, "99").Set(est.VaR99_1d)
}

// StatusLabel maps a section status to its label value
func StatusLabel(st contracts.Status) string {
	switch {
	case !st.Available:
		return StatusUnavailable
	case st.Degraded:
		return StatusDegraded
	default:
		return StatusOK
	}
}
