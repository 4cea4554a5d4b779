package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"trustclaw/logger"
)

func resetMetricHandlers() {
	metricHandlersMu.Lock()
	metricHandlers = make(map[MetricHandlerID]MetricHandler)
	nextMetricHandlerID = 0
	metricHandlersMu.Unlock()
}

func TestCountersRecord(t *testing.T) {
	before := testutil.ToFloat64(taskRunsFor("token-launch", "error"))
	TaskRun("token-launch", 1500*time.Millisecond, errors.New("boom"))
	if got := testutil.ToFloat64(taskRunsFor("token-launch", "error")); got != before+1 {
		t.Fatalf("task runs = %v, want %v", got, before+1)
	}

	TaskSkipped("whale")
	Alert("NEW_TOKEN")
	AnalyzerCall("parse")
	SourceError("dexscreener", "timeout")
	if got := testutil.ToFloat64(sourceErrors.WithLabelValues("dexscreener", "timeout")); got < 1 {
		t.Fatalf("source errors not recorded")
	}
}

func taskRunsFor(task, outcome string) prometheus.Counter {
	Init()
	return taskRuns.WithLabelValues(task, outcome)
}

func TestHandlerExposesRegistry(t *testing.T) {
	Alert("WHALE")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `trustclaw_alerts_total{category="WHALE"}`) {
		t.Fatalf("alerts counter missing from exposition:\n%s", body)
	}
}

func TestRegisterMetricHandlerReturnsUniqueIDs(t *testing.T) {
	resetMetricHandlers()

	id := RegisterMetricHandler(func(Metric) {})
	if id == 0 {
		t.Fatalf("expected non-zero handler id")
	}
	second := RegisterMetricHandler(func(Metric) {})
	if second == 0 || second == id {
		t.Fatalf("expected unique handler id")
	}
	if RegisterMetricHandler(nil) != 0 {
		t.Fatalf("expected zero id for nil handler")
	}
}

func TestEmitMetricDispatchesToHandlers(t *testing.T) {
	resetMetricHandlers()

	events := make(chan Metric, 1)
	id := RegisterMetricHandler(func(m Metric) { events <- m })
	t.Cleanup(func() { UnregisterMetricHandler(id) })

	fields := logger.Fields{"run_id": "abc"}
	EmitMetric(logger.Logger(), "scheduler", "task_duration_ms", 12, "gauge", fields)

	select {
	case event := <-events:
		if event.Component != "scheduler" || event.Name != "task_duration_ms" || event.Type != "gauge" {
			t.Fatalf("unexpected event: %#v", event)
		}
		if _, ok := fields["metric"]; ok {
			t.Fatalf("original fields mutated: %v", fields)
		}
	case <-time.After(50 * time.Millisecond):
		t.Fatal("metric handler not invoked")
	}

	EmitMetric(nil, "scheduler", "", 1, "", nil)
	select {
	case <-events:
		t.Fatal("handler should not receive metrics without a name")
	case <-time.After(20 * time.Millisecond):
	}
}
