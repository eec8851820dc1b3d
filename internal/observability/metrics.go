package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	syncCycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "sync",
		Name:      "cycles_total",
		Help:      "Read-modify-write cycles against the remote document, by operation and result.",
	}, []string{"operation", "result"})
	snapshotsApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "sync",
		Name:      "snapshots_applied_total",
		Help:      "Remote change notifications applied to the ledger cache.",
	})
	lastSaveGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fittrack",
		Subsystem: "ledger",
		Name:      "last_workout_saved_timestamp_seconds",
		Help:      "Unix timestamp of the most recent committed workout save.",
	})
	foodQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "nutrition",
		Name:      "queries_total",
		Help:      "Food search queries, by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(syncCycles, snapshotsApplied, lastSaveGauge, foodQueries)
}

// RecordSyncCycle counts one completed read-modify-write cycle.
func RecordSyncCycle(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	syncCycles.WithLabelValues(operation, result).Inc()
}

// RecordSnapshotApplied counts one ledger rebuild from a remote notification.
func RecordSnapshotApplied() {
	snapshotsApplied.Inc()
}

// RecordWorkoutSaved updates the save watermark gauge.
func RecordWorkoutSaved(ts time.Time) {
	if ts.IsZero() {
		return
	}
	lastSaveGauge.Set(float64(ts.Unix()))
}

// RecordFoodQuery counts one nutrition search.
func RecordFoodQuery(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	foodQueries.WithLabelValues(result).Inc()
}
