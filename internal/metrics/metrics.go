package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samvad-hq/samvad-news-ingest/internal/ingest"
)

const namespace = "ingest"

// Outcomes recorded on the provider run counter.
const (
	OutcomeStored  = "stored"
	OutcomeEmpty   = "empty"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Metrics records ingestion results as Prometheus series.
type Metrics struct {
	gatherer   prometheus.Gatherer
	fetched    *prometheus.CounterVec
	stored     *prometheus.CounterVec
	duplicates *prometheus.CounterVec
	runs       *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// New registers the ingestion series on reg. A nil reg gets a private registry.
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		gatherer: reg,
		fetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_fetched_total",
			Help:      "Articles returned by providers.",
		}, []string{"provider"}),
		stored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_stored_total",
			Help:      "New articles persisted.",
		}, []string{"provider"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_duplicate_total",
			Help:      "Articles dropped because their URL was already known.",
		}, []string{"provider"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_runs_total",
			Help:      "Provider ingestion runs by outcome.",
		}, []string{"provider", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_run_duration_seconds",
			Help:      "Wall time of one provider ingestion run.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"provider"}),
	}

	for _, c := range []prometheus.Collector{m.fetched, m.stored, m.duplicates, m.runs, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveResult implements ingest.Recorder.
func (m *Metrics) ObserveResult(res ingest.Result) {
	if m == nil {
		return
	}
	p := res.ProviderID
	m.fetched.WithLabelValues(p).Add(float64(res.Fetched))
	m.stored.WithLabelValues(p).Add(float64(res.Stored))
	m.duplicates.WithLabelValues(p).Add(float64(res.Duplicates))
	m.runs.WithLabelValues(p, outcome(res)).Inc()
	m.duration.WithLabelValues(p).Observe(res.Duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func outcome(res ingest.Result) string {
	switch {
	case res.Failed:
		return OutcomeFailed
	case res.Skipped:
		return OutcomeSkipped
	case res.Stored > 0:
		return OutcomeStored
	default:
		return OutcomeEmpty
	}
}
