// Package metrics 采集与暴露 Prometheus 指标（抓取、归一化、过滤原因）
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// PipelineMetrics 入库与归一化流水线指标
type PipelineMetrics struct {
	registry *prometheus.Registry

	SnapshotsIngested *prometheus.CounterVec   // result: inserted/duplicate/invalid
	SourceRequests    *prometheus.CounterVec   // status: ok/error
	SourceQuota       *prometheus.GaugeVec     // kind: remaining/used
	Runs              *prometheus.CounterVec   // stage, mode, status
	RunDuration       *prometheus.HistogramVec // stage, mode
	RowsWritten       *prometheus.CounterVec   // table
	RowsSkipped       *prometheus.CounterVec   // reason
}

// New 创建独立 registry 的指标集合，附带 Go 运行时与进程指标
func New() *PipelineMetrics {
	m := &PipelineMetrics{
		registry: prometheus.NewRegistry(),
		SnapshotsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gosignals_snapshots_ingested_total",
				Help: "Raw odds snapshots offered to ingestion, by result",
			},
			[]string{"result"},
		),
		SourceRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gosignals_odds_source_requests_total",
				Help: "Requests made to the odds API",
			},
			[]string{"sport", "status"},
		),
		SourceQuota: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gosignals_odds_source_quota",
				Help: "Odds API request quota reported by the last response",
			},
			[]string{"kind"},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gosignals_pipeline_runs_total",
				Help: "Resolve and normalize runs",
			},
			[]string{"stage", "mode", "status"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gosignals_pipeline_run_duration_seconds",
				Help:    "Wall time of resolve and normalize runs",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
			},
			[]string{"stage", "mode"},
		),
		RowsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gosignals_rows_written_total",
				Help: "Rows inserted or updated by committed runs",
			},
			[]string{"table"},
		),
		RowsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gosignals_rows_skipped_total",
				Help: "Input units filtered during normalization, by reason",
			},
			[]string{"reason"},
		),
	}
	m.registry.MustRegister(
		m.SnapshotsIngested,
		m.SourceRequests,
		m.SourceQuota,
		m.Runs,
		m.RunDuration,
		m.RowsWritten,
		m.RowsSkipped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry 供 promhttp 暴露
func (m *PipelineMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordIngest 记录一次快照入库结果
func (m *PipelineMetrics) RecordIngest(result string) {
	if m == nil {
		return
	}
	m.SnapshotsIngested.WithLabelValues(result).Inc()
}

// RecordSourceRequest 记录一次数据源请求及其剩余配额（<0 表示未知）
func (m *PipelineMetrics) RecordSourceRequest(sport string, err error, remaining, used int) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.SourceRequests.WithLabelValues(sport, status).Inc()
	if remaining >= 0 {
		m.SourceQuota.WithLabelValues("remaining").Set(float64(remaining))
	}
	if used >= 0 {
		m.SourceQuota.WithLabelValues("used").Set(float64(used))
	}
}

// RecordRun 记录一次 resolve/normalize 运行
func (m *PipelineMetrics) RecordRun(stage string, dryRun bool, err error, seconds float64) {
	if m == nil {
		return
	}
	mode := "live"
	if dryRun {
		mode = "dry_run"
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Runs.WithLabelValues(stage, mode, status).Inc()
	m.RunDuration.WithLabelValues(stage, mode).Observe(seconds)
}

// RecordWritten 记录已提交的写入行数
func (m *PipelineMetrics) RecordWritten(table string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsWritten.WithLabelValues(table).Add(float64(n))
}

// RecordSkipped 按原因累加过滤数
func (m *PipelineMetrics) RecordSkipped(reasons map[string]int) {
	if m == nil {
		return
	}
	for reason, n := range reasons {
		if n > 0 {
			m.RowsSkipped.WithLabelValues(reason).Add(float64(n))
		}
	}
}
