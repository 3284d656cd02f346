package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddReconcileItems(t *testing.T) {
	counter := reconcileItemsTotalMetric.WithLabelValues("network", OutcomeSkipped)
	before := testutil.ToFloat64(counter)

	AddReconcileItems("network", OutcomeSkipped, 3)
	AddReconcileItems("network", OutcomeSkipped, 0)

	assert.Equal(t, before+3, testutil.ToFloat64(counter))
}

func TestStepMetrics(t *testing.T) {
	ObserveStepDuration("storage", 1.5)
	IncreaseStepFailures("storage")

	assert.Equal(t, 1.5, testutil.ToFloat64(stepDurationSecondsMetric.WithLabelValues("storage")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(stepFailuresTotalMetric.WithLabelValues("storage")), 1.0)
}

func TestWriteTextfile(t *testing.T) {
	ObserveStepDuration("topology", 2)
	path := filepath.Join(t.TempDir(), "vbuild.prom")

	require.NoError(t, WriteTextfile(path))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), `vbuild_step_duration_seconds{step="topology"} 2`)
}
