// Registers:
//
//	#trustclaw_task_runs_total{task,outcome}
//	#trustclaw_task_skipped_total{task}
//	#trustclaw_task_duration_seconds{task}
//	#trustclaw_alerts_total{category}
//	#trustclaw_analyzer_calls_total{outcome}
//	#trustclaw_source_errors_total{source,kind}
//	#go_* and process_* system metrics
//
// The registry is served by Handler; the dashboard mounts it on /metrics.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once         sync.Once
	registry     *prometheus.Registry
	taskRuns     *prometheus.CounterVec
	taskSkipped  *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	alerts       *prometheus.CounterVec
	analyzer     *prometheus.CounterVec
	sourceErrors *prometheus.CounterVec
)

func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		taskRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustclaw_task_runs_total",
				Help: "Completed scanner task runs by outcome",
			},
			[]string{"task", "outcome"},
		)
		taskSkipped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustclaw_task_skipped_total",
				Help: "Timer fires skipped because the previous run was still in progress",
			},
			[]string{"task"},
		)
		taskDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trustclaw_task_duration_seconds",
				Help:    "Scanner task run duration",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"task"},
		)
		alerts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustclaw_alerts_total",
				Help: "Alerts handed to the notifier by category",
			},
			[]string{"category"},
		)
		analyzer = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustclaw_analyzer_calls_total",
				Help: "Language model analysis calls by outcome",
			},
			[]string{"outcome"},
		)
		sourceErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustclaw_source_errors_total",
				Help: "Data source failures by source and kind",
			},
			[]string{"source", "kind"},
		)

		registry.MustRegister(taskRuns, taskSkipped, taskDuration, alerts, analyzer, sourceErrors)
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func Registry() *prometheus.Registry {
	Init()
	return registry
}

func TaskRun(task string, d time.Duration, err error) {
	Init()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	taskRuns.WithLabelValues(task, outcome).Inc()
	taskDuration.WithLabelValues(task).Observe(d.Seconds())
}

func TaskSkipped(task string) {
	Init()
	taskSkipped.WithLabelValues(task).Inc()
}

func Alert(category string) {
	Init()
	alerts.WithLabelValues(category).Inc()
}

// AnalyzerCall records an analysis outcome: ok, transient or parse.
func AnalyzerCall(outcome string) {
	Init()
	analyzer.WithLabelValues(outcome).Inc()
}

func SourceError(source, kind string) {
	Init()
	sourceErrors.WithLabelValues(source, kind).Inc()
}
