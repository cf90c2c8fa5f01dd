// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage label values of PacketsTotal.
const (
	StageRead      = "read"
	StageWritten   = "written"
	StageRewritten = "rewritten"
	StageNonIPv4   = "non_ipv4"
	StageExtracted = "extracted"
)

var (
	// PacketsTotal counts packets per processing stage
	PacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netanon_packets_total",
			Help: "Total number of packets by processing stage",
		},
		[]string{"stage"},
	)

	// ReplacementsTotal counts distinct synthetic addresses drawn, by partition
	ReplacementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netanon_replacements_total",
			Help: "Total number of replacement addresses generated",
		},
		[]string{"partition"},
	)

	// AuditRecordsTotal counts unique audit rows emitted
	AuditRecordsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netanon_audit_records_total",
			Help: "Total number of unique audit records emitted",
		},
	)

	// RewriteErrorsTotal counts IPv4 headers that could not be re-serialized
	RewriteErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netanon_rewrite_errors_total",
			Help: "Total number of packets passed through after a failed header rewrite",
		},
	)

	// RunDurationSeconds measures wall time of a single capture run
	RunDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netanon_run_duration_seconds",
			Help:    "Duration of a capture processing run in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 16), // 10ms to ~5m
		},
		[]string{"command"},
	)

	// AuditSinkErrorsTotal counts failures to publish audit records
	AuditSinkErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netanon_audit_sink_errors_total",
			Help: "Total number of audit sink errors",
		},
		[]string{"sink"},
	)
)
