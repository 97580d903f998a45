package generation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics - счётчики генерации. Нулевой указатель допустим и ничего не пишет.
type Metrics struct {
	submissions *prometheus.CounterVec
	polls       prometheus.Counter
	duration    *prometheus.HistogramVec
	active      prometheus.Gauge
}

// NewMetrics регистрирует метрики в reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cuentee_generation_submissions_total",
			Help: "Total number of story generation submissions, partitioned by outcome.",
		}, []string{"outcome"}),
		polls: factory.NewCounter(prometheus.CounterOpts{
			Name: "cuentee_generation_polls_total",
			Help: "Total number of task status requests sent to the generation API.",
		}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cuentee_generation_duration_seconds",
			Help:    "Time from submission to a terminal status.",
			Buckets: []float64{5, 15, 30, 60, 120, 240, 480, 600},
		}, []string{"status"}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cuentee_generation_active",
			Help: "Number of generation tasks currently being polled.",
		}),
	}
}

func (m *Metrics) submitted(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) polled() {
	if m == nil {
		return
	}
	m.polls.Inc()
}

func (m *Metrics) started() {
	if m == nil {
		return
	}
	m.active.Inc()
}

func (m *Metrics) finished(status string, since time.Time) {
	if m == nil {
		return
	}
	m.active.Dec()
	m.duration.WithLabelValues(status).Observe(time.Since(since).Seconds())
}
