package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	PersonsRegistered prometheus.Counter
	DeathsScheduled   prometheus.Counter
	DeathsFinalized   *prometheus.CounterVec
	SweepFailures     prometheus.Counter
	SweepDuration     prometheus.Histogram
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics against a caller-supplied registerer so
// tests can use an isolated registry.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PersonsRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "deathnote_persons_registered_total",
			Help: "Total number of persons registered in a death note",
		}),
		DeathsScheduled: factory.NewCounter(prometheus.CounterOpts{
			Name: "deathnote_deaths_scheduled_total",
			Help: "Total number of explicit death specifications accepted",
		}),
		DeathsFinalized: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "deathnote_deaths_finalized_total",
			Help: "Total number of deaths finalized, by terminal status",
		}, []string{"status"}),
		SweepFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "deathnote_sweep_failures_total",
			Help: "Total number of finalization attempts that failed during a sweep",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "deathnote_sweep_duration_seconds",
			Help:    "Duration of scheduler sweeps",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// IncrementPersonsRegistered increments the registration counter by 1.
func (m *Metrics) IncrementPersonsRegistered() {
	m.PersonsRegistered.Inc()
}

// IncrementDeathsScheduled increments the explicit-schedule counter by 1.
func (m *Metrics) IncrementDeathsScheduled() {
	m.DeathsScheduled.Inc()
}

// IncrementDeathsFinalized increments the finalized counter for a terminal status.
func (m *Metrics) IncrementDeathsFinalized(status string) {
	m.DeathsFinalized.WithLabelValues(status).Inc()
}
