package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gauges
var (
	SessionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mixlab_host_session_state",
		Help: "Lifecycle state of the plugin session (0=unloaded .. 5=editor open)",
	})
	DeliveryBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mixlab_host_delivery_backlog_blocks",
		Help: "Blocks queued between the generator and the render dispatcher",
	})
	OutputPeak = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mixlab_host_output_peak",
		Help: "Absolute peak of the last rendered block per output channel",
	}, []string{"channel"})
)

// Counters
var (
	BlocksGeneratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mixlab_host_blocks_generated_total",
		Help: "Audio blocks synthesized by the generator",
	})
	BlocksProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mixlab_host_blocks_processed_total",
		Help: "Audio blocks passed to the plugin process entry point",
	})
	BlocksDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mixlab_host_blocks_dropped_total",
		Help: "Blocks discarded by a drop-oldest delivery queue",
	})
	BlockGapsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mixlab_host_block_gaps_total",
		Help: "Out-of-sequence blocks observed by the render dispatcher",
	})
	SilenceRestoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mixlab_host_silence_restored_total",
		Help: "Process calls after which the silent inputs had been written and were re-zeroed",
	})
	TimingSlipsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mixlab_host_timing_slips_total",
		Help: "Generator iterations that started after their deadline",
	})
	HostCallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mixlab_host_callbacks_total",
		Help: "Host callback invocations by capability and outcome",
	}, []string{"capability", "outcome"})
	LifecycleTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mixlab_host_lifecycle_transitions_total",
		Help: "Plugin session transitions by target state",
	}, []string{"state"})
)

// Histograms
var (
	TimingSlipMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mixlab_host_timing_slip_ms",
		Help:    "How late the generator was for a block deadline, in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100},
	})
	ProcessDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mixlab_host_process_duration_ms",
		Help:    "Wall time spent inside the plugin process call, in milliseconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
)
