package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"batchtrack/internal/errs"
	"batchtrack/internal/ports"
)

const namespace = "batchtrack"

// Recorder exports transition and feed activity as Prometheus collectors.
type Recorder struct {
	registry *prometheus.Registry

	transitions       *prometheus.CounterVec
	transitionLatency *prometheus.HistogramVec
	subscriptions     *prometheus.GaugeVec
	snapshots         *prometheus.CounterVec
}

var (
	_ ports.TransitionObserver = (*Recorder)(nil)
	_ ports.FeedObserver       = (*Recorder)(nil)
)

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Transition intents by action and outcome.",
		}, []string{"action", "outcome"}),
		transitionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transition_duration_seconds",
			Help:      "Time spent applying a transition intent.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		subscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_subscriptions",
			Help:      "Open feed subscriptions by view.",
		}, []string{"view"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_snapshots_total",
			Help:      "Snapshots delivered to subscribers by view and result.",
		}, []string{"view", "result"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.transitions,
		r.transitionLatency,
		r.subscriptions,
		r.snapshots,
	)
	return r
}

func (r *Recorder) ObserveTransition(action string, outcome errs.Kind, elapsed time.Duration) {
	label := string(outcome)
	if label == "" {
		label = "ok"
	}
	r.transitions.WithLabelValues(action, label).Inc()
	r.transitionLatency.WithLabelValues(action).Observe(elapsed.Seconds())
}

func (r *Recorder) SubscriptionOpened(view string) {
	r.subscriptions.WithLabelValues(view).Inc()
}

func (r *Recorder) SubscriptionClosed(view string) {
	r.subscriptions.WithLabelValues(view).Dec()
}

func (r *Recorder) SnapshotDelivered(view string, failed bool) {
	result := "ok"
	if failed {
		result = "error"
	}
	r.snapshots.WithLabelValues(view, result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
