package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	KernelsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kernelwriter_kernels_emitted_total",
		Help: "The total number of kernels emitted",
	}, []string{"target"})

	OpsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kernelwriter_ops_total",
		Help: "Writer operations that appended source, by operation",
	}, []string{"op"})

	SourceLines = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kernelwriter_source_lines_total",
		Help: "Body source lines appended across all writers",
	})

	ContractViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kernelwriter_contract_violations_total",
		Help: "Total number of contract violations raised by writers",
	}, []string{"op", "kind"})

	MemoryOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kernelwriter_memory_ops_total",
		Help: "Load/store operations emitted, by storage strategy",
	}, []string{"storage", "op"})

	KernelSourceBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kernelwriter_kernel_source_bytes",
		Help:    "Size of emitted kernel source",
		Buckets: prometheus.ExponentialBuckets(256, 2, 10),
	})

	KernelArguments = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kernelwriter_kernel_arguments",
		Help:    "Number of positional arguments per emitted kernel",
		Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
	})

	EmitDuration = promauto.NewSummary(prometheus.SummaryOpts{
		Name: "kernelwriter_emit_duration_seconds",
		Help: "Time from writer creation to kernel emission",
	})
)

func RecordOp(op string, lines int) {
	OpsEmitted.WithLabelValues(op).Inc()
	if lines > 0 {
		SourceLines.Add(float64(lines))
	}
}

func RecordContractViolation(op, kind string) {
	ContractViolations.WithLabelValues(op, kind).Inc()
}

func RecordMemoryOp(storage, op string) {
	MemoryOps.WithLabelValues(storage, op).Inc()
}

// RecordKernelEmitted records one finished kernel
func RecordKernelEmitted(target string, sourceBytes, arguments int, duration time.Duration) {
	KernelsEmitted.WithLabelValues(target).Inc()
	KernelSourceBytes.Observe(float64(sourceBytes))
	KernelArguments.Observe(float64(arguments))
	EmitDuration.Observe(duration.Seconds())
}
