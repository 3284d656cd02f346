package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	vbuild = "vbuild"

	// Reconcile metrics
	reconcileItemsTotal = "reconcile_items_total"
	stepDurationSeconds = "step_duration_seconds"
	stepFailuresTotal   = "step_failures_total"

	// Labels
	stepLabel    = "step"
	outcomeLabel = "outcome"

	OutcomeSucceeded = "succeeded"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

var reconcileItemsLabels = []string{
	stepLabel,
	outcomeLabel,
}

var stepLabels = []string{
	stepLabel,
}

// Registry holds every collector of a run. It is not the default registry so
// that a run can be written out as a textfile without the go runtime metrics.
var Registry = prometheus.NewRegistry()

/**
* Metrics definition
**/
var reconcileItemsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: vbuild,
		Name:      reconcileItemsTotal,
		Help:      "number of reconciled items by step and outcome",
	},
	reconcileItemsLabels,
)

var stepDurationSecondsMetric = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Subsystem: vbuild,
		Name:      stepDurationSeconds,
		Help:      "wall clock duration of the last execution of a step",
	},
	stepLabels,
)

var stepFailuresTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: vbuild,
		Name:      stepFailuresTotal,
		Help:      "number of steps that aborted the run",
	},
	stepLabels,
)

func AddReconcileItems(step, outcome string, count int) {
	if count == 0 {
		return
	}
	labels := prometheus.Labels{
		stepLabel:    step,
		outcomeLabel: outcome,
	}
	reconcileItemsTotalMetric.With(labels).Add(float64(count))
}

func ObserveStepDuration(step string, seconds float64) {
	stepDurationSecondsMetric.With(prometheus.Labels{stepLabel: step}).Set(seconds)
}

func IncreaseStepFailures(step string) {
	stepFailuresTotalMetric.With(prometheus.Labels{stepLabel: step}).Inc()
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	Registry.MustRegister(reconcileItemsTotalMetric)
	Registry.MustRegister(stepDurationSecondsMetric)
	Registry.MustRegister(stepFailuresTotalMetric)
}
