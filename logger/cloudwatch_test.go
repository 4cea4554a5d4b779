package logger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type fakeCloudWatch struct {
	puts      []*cloudwatch.PutMetricDataInput
	dashboard *cloudwatch.PutDashboardInput
	err       error
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.puts = append(f.puts, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func (f *fakeCloudWatch) PutDashboard(_ context.Context, in *cloudwatch.PutDashboardInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutDashboardOutput, error) {
	f.dashboard = in
	return &cloudwatch.PutDashboardOutput{}, f.err
}

func datums(n int) []cwtypes.MetricDatum {
	out := make([]cwtypes.MetricDatum, n)
	for i := range out {
		out[i] = cwtypes.MetricDatum{MetricName: aws.String("TaskRuns"), Value: aws.Float64(float64(i))}
	}
	return out
}

func TestCloudWatchSinkBatches(t *testing.T) {
	api := &fakeCloudWatch{}
	sink := newCloudWatchSink(api, "", "")
	if sink.namespace != "TrustClaw" || sink.dashboard != "TrustClaw" {
		t.Fatalf("unexpected defaults: %+v", sink)
	}

	if err := sink.publish(context.Background(), datums(maxDatumsPerPut+3)); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if len(api.puts) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(api.puts))
	}
	if len(api.puts[1].MetricData) != 3 || aws.ToString(api.puts[0].Namespace) != "TrustClaw" {
		t.Fatalf("unexpected second batch: %+v", api.puts[1])
	}

	var nilSink *cloudWatchSink
	if err := nilSink.publish(context.Background(), datums(1)); err != nil {
		t.Fatalf("nil sink should drop data: %v", err)
	}
}

func TestCloudWatchSinkError(t *testing.T) {
	api := &fakeCloudWatch{err: errors.New("throttled")}
	if err := newCloudWatchSink(api, "ns", "dash").publish(context.Background(), datums(1)); err == nil {
		t.Fatalf("expected publish error")
	}
}

func TestDashboardBodyIsJSON(t *testing.T) {
	api := &fakeCloudWatch{}
	sink := newCloudWatchSink(api, "claw", "claw-dash")
	if err := sink.ensureDashboard(context.Background()); err != nil {
		t.Fatalf("ensureDashboard failed: %v", err)
	}
	if aws.ToString(api.dashboard.DashboardName) != "claw-dash" {
		t.Fatalf("unexpected dashboard name")
	}
	var body struct {
		Widgets []map[string]interface{} `json:"widgets"`
	}
	if err := json.Unmarshal([]byte(aws.ToString(api.dashboard.DashboardBody)), &body); err != nil {
		t.Fatalf("dashboard body is not JSON: %v", err)
	}
	if len(body.Widgets) != 2 {
		t.Fatalf("expected 2 widgets, got %d", len(body.Widgets))
	}
}

func TestPublishMetricsUsesInstalledSink(t *testing.T) {
	api := &fakeCloudWatch{}
	setCloudWatchSink(newCloudWatchSink(api, "claw", ""))
	t.Cleanup(func() { setCloudWatchSink(nil) })

	publishMetrics(context.Background(), datums(2))
	if len(api.puts) != 1 || len(api.puts[0].MetricData) != 2 {
		t.Fatalf("expected one put with 2 datums, got %+v", api.puts)
	}
}
