// Package metrics defines and registers all custom Prometheus metrics for the
// dock kiosk API. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation (promauto) and exposed by the /metrics route.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
)

const namespace = "dock_kiosk"

// ── Geofence metrics ──────────────────────────────────────────────────────────

// SamplesIngestedTotal counts position samples by engine decision.
// Label:
//   - result: "accepted", "low_accuracy" or "invalid"
var SamplesIngestedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "samples_ingested_total",
		Help:      "Total number of position samples seen by geofence engines, by result.",
	},
	[]string{"result"},
)

// GeofenceEventsTotal counts emitted geofence events.
// Labels:
//   - kind: "enter", "exit" or "dwell"
//   - zone_kind: "site", "dock", "parking" or "custom"
var GeofenceEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "geofence_events_total",
		Help:      "Total number of geofence events emitted, by kind and zone kind.",
	},
	[]string{"kind", "zone_kind"},
)

// IngestDuration measures how long one sample takes to evaluate.
var IngestDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ingest_duration_seconds",
		Help:      "Duration of geofence evaluation for a single sample.",
		Buckets:   []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01},
	},
)

// PositionsReceivedTotal counts samples accepted by the HTTP surface.
// Label:
//   - endpoint: "single" or "batch"
var PositionsReceivedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "positions_received_total",
		Help:      "Total number of position samples queued from HTTP requests.",
	},
	[]string{"endpoint"},
)

// QueueDepth tracks the number of samples waiting in each dispatcher worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var QueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dispatcher_queue_depth",
		Help:      "Current number of samples pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// ── Workflow metrics ──────────────────────────────────────────────────────────

// TransitionsTotal counts committed booking transitions.
// Labels:
//   - from, to: booking statuses
var TransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transitions_total",
		Help:      "Total number of booking status transitions committed.",
	},
	[]string{"from", "to"},
)

// TransitionRejectionsTotal counts actions refused by the workflow.
// Labels:
//   - action: workflow action (e.g. "check in", "complete")
//   - reason: "invalid_transition", "geofence_required", "missing_guard" or "commit_failed"
var TransitionRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transition_rejections_total",
		Help:      "Total number of workflow actions rejected, by action and reason.",
	},
	[]string{"action", "reason"},
)

// Recorder feeds engine and workflow observations into the vectors above.
type Recorder struct{}

func (Recorder) SampleAccepted() { SamplesIngestedTotal.WithLabelValues("accepted").Inc() }

func (Recorder) SampleRejected(reason string) { SamplesIngestedTotal.WithLabelValues(reason).Inc() }

func (Recorder) EventEmitted(ev domain.GeofenceEvent) {
	GeofenceEventsTotal.WithLabelValues(string(ev.Kind), string(ev.ZoneKind)).Inc()
}

func (Recorder) IngestObserved(d time.Duration) { IngestDuration.Observe(d.Seconds()) }

func (Recorder) TransitionCommitted(from, to domain.BookingStatus) {
	TransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
}

func (Recorder) TransitionRejected(action string, err error) {
	TransitionRejectionsTotal.WithLabelValues(action, rejectionReason(err)).Inc()
}

// ObserveQueueDepth matches queue.DepthFunc.
func ObserveQueueDepth(worker, depth int) {
	QueueDepth.WithLabelValues(strconv.Itoa(worker)).Set(float64(depth))
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrGeofenceRequired):
		return "geofence_required"
	case errors.Is(err, domain.ErrMissingGuard):
		return "missing_guard"
	default:
		return "commit_failed"
	}
}
