package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	dto "github.com/prometheus/client_model/go"
)

func TestRecordSyncCycleLabels(t *testing.T) {
	RecordSyncCycle("save", nil)
	RecordSyncCycle("save", nil)
	RecordSyncCycle("save", errors.New("boom"))

	var metric dto.Metric
	counter, err := syncCycles.GetMetricWithLabelValues("save", "ok")
	require.NoError(t, err)
	require.NoError(t, counter.Write(&metric))
	require.GreaterOrEqual(t, metric.GetCounter().GetValue(), float64(2))

	counter, err = syncCycles.GetMetricWithLabelValues("save", "error")
	require.NoError(t, err)
	require.NoError(t, counter.Write(&metric))
	require.GreaterOrEqual(t, metric.GetCounter().GetValue(), float64(1))
}

func TestRecordWorkoutSavedIgnoresZeroTime(t *testing.T) {
	RecordWorkoutSaved(time.Unix(1700000000, 0))

	var metric dto.Metric
	require.NoError(t, lastSaveGauge.Write(&metric))
	before := metric.GetGauge().GetValue()

	RecordWorkoutSaved(time.Time{})

	require.NoError(t, lastSaveGauge.Write(&metric))
	require.Equal(t, before, metric.GetGauge().GetValue())
}
