package logger

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

var (
	warnCounts  sync.Map // component -> *int64
	errorCounts sync.Map // component -> *int64
	alertCounts sync.Map // category -> *int64
	taskRuns    int64
	taskSkips   int64
)

func bump(m *sync.Map, key string) {
	v, _ := m.LoadOrStore(key, new(int64))
	atomic.AddInt64(v.(*int64), 1)
}

func snapshotCounts(m *sync.Map) map[string]int64 {
	out := map[string]int64{}
	m.Range(func(k, v any) bool {
		out[k.(string)] = atomic.LoadInt64(v.(*int64))
		return true
	})
	return out
}

func sum(counts map[string]int64) int64 {
	var total int64
	for _, v := range counts {
		total += v
	}
	return total
}

func recordWarn(component string) { bump(&warnCounts, component) }

func recordError(component string) { bump(&errorCounts, component) }

// RecordAlert counts an alert handed to the notifier.
func RecordAlert(category string) { bump(&alertCounts, category) }

// RecordTaskRun counts a completed scanner run.
func RecordTaskRun() { atomic.AddInt64(&taskRuns, 1) }

// RecordTaskSkip counts a timer fire skipped because the task was busy.
func RecordTaskSkip() { atomic.AddInt64(&taskSkips, 1) }

// StartReport logs a runtime report every interval until ctx is done and
// publishes the headline numbers to CloudWatch when it is configured.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	cpuPct := 0.0
	if samples, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(samples) > 0 {
		cpuPct = samples[0]
	}
	memMB := 0.0
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		memMB = float64(vm.Used) / 1024 / 1024
	}

	warns := snapshotCounts(&warnCounts)
	errs := snapshotCounts(&errorCounts)
	alertsSent := snapshotCounts(&alertCounts)
	runs := atomic.LoadInt64(&taskRuns)
	skips := atomic.LoadInt64(&taskSkips)

	log.WithComponent("report").WithFields(Fields{
		"goroutines":  runtime.NumGoroutine(),
		"cpu_percent": cpuPct,
		"memory_mb":   int64(memMB),
		"warns":       warns,
		"errors":      errs,
		"alerts":      alertsSent,
		"task_runs":   runs,
		"task_skips":  skips,
	}).Info("runtime report")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(memMB)},
		{MetricName: aws.String("Warnings"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(sum(warns)))},
		{MetricName: aws.String("Errors"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(sum(errs)))},
		{MetricName: aws.String("TaskRuns"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(runs))},
		{MetricName: aws.String("TaskSkips"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(skips))},
	}

	categories := make([]string, 0, len(alertsSent))
	for c := range alertsSent {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String("AlertsSent"),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{{Name: aws.String("Category"), Value: aws.String(c)}},
			Value:      aws.Float64(float64(alertsSent[c])),
		})
	}

	publishMetrics(ctx, data)
}
