package logger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// cloudWatchAPI is the part of the CloudWatch client the report uses.
type cloudWatchAPI interface {
	PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
	PutDashboard(ctx context.Context, in *cloudwatch.PutDashboardInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutDashboardOutput, error)
}

// cloudWatchSink publishes runtime report numbers. A nil sink drops them.
type cloudWatchSink struct {
	api       cloudWatchAPI
	namespace string
	dashboard string
}

// PutMetricData accepts at most this many datums per call.
const maxDatumsPerPut = 1000

var (
	cwMu   sync.RWMutex
	cwSink *cloudWatchSink
)

// InitCloudWatch creates the CloudWatch client used by the runtime report
// and makes sure the scanner health dashboard exists. An empty region falls
// back to AWS_REGION. On failure publishing stays disabled and the bot keeps
// running.
func InitCloudWatch(ctx context.Context, region, namespace, dashboard string) {
	log := GetLogger().WithComponent("cloudwatch")

	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.WithError(err).Warn("failed to load AWS configuration; CloudWatch metrics disabled")
		return
	}

	sink := newCloudWatchSink(cloudwatch.NewFromConfig(cfg), namespace, dashboard)
	setCloudWatchSink(sink)
	log.WithFields(Fields{"region": region, "namespace": sink.namespace}).Info("initialized CloudWatch client")

	if err := sink.ensureDashboard(ctx); err != nil {
		log.WithError(err).Warn("failed to create CloudWatch dashboard")
	}
}

func newCloudWatchSink(api cloudWatchAPI, namespace, dashboard string) *cloudWatchSink {
	if namespace == "" {
		namespace = "TrustClaw"
	}
	if dashboard == "" {
		dashboard = namespace
	}
	return &cloudWatchSink{api: api, namespace: namespace, dashboard: dashboard}
}

func setCloudWatchSink(s *cloudWatchSink) {
	cwMu.Lock()
	cwSink = s
	cwMu.Unlock()
}

func currentCloudWatchSink() *cloudWatchSink {
	cwMu.RLock()
	defer cwMu.RUnlock()
	return cwSink
}

// publish sends data in batches. The first failing batch aborts the rest.
func (s *cloudWatchSink) publish(ctx context.Context, data []cwtypes.MetricDatum) error {
	if s == nil || len(data) == 0 {
		return nil
	}
	for start := 0; start < len(data); start += maxDatumsPerPut {
		end := min(start+maxDatumsPerPut, len(data))
		if _, err := s.api.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(s.namespace),
			MetricData: data[start:end],
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *cloudWatchSink) ensureDashboard(ctx context.Context) error {
	_, err := s.api.PutDashboard(ctx, &cloudwatch.PutDashboardInput{
		DashboardName: aws.String(s.dashboard),
		DashboardBody: aws.String(dashboardBody(s.namespace)),
	})
	return err
}

// dashboardBody lays out two widgets: scheduler health and alert volume.
func dashboardBody(namespace string) string {
	return fmt.Sprintf(`{
"widgets": [{
  "type": "metric", "x": 0, "y": 0, "width": 12, "height": 6,
  "properties": {
    "metrics": [["%[1]s","TaskRuns"],["%[1]s","TaskSkips"],["%[1]s","Errors"],["%[1]s","Warnings"]],
    "period": 300, "stat": "Maximum", "title": "TrustClaw Scanner Health"
  }
}, {
  "type": "metric", "x": 12, "y": 0, "width": 12, "height": 6,
  "properties": {
    "metrics": [["%[1]s","AlertsSent","Category","NEW_TOKEN"],["%[1]s","AlertsSent","Category","BUY"],["%[1]s","AlertsSent","Category","WATCH"],["%[1]s","AlertsSent","Category","PUMP"],["%[1]s","AlertsSent","Category","WHALE"]],
    "period": 300, "stat": "Maximum", "title": "TrustClaw Alerts"
  }
}]
}`, namespace)
}

// publishMetrics is a no-op until InitCloudWatch succeeds.
func publishMetrics(ctx context.Context, data []cwtypes.MetricDatum) {
	sink := currentCloudWatchSink()
	if sink == nil {
		return
	}
	log := GetLogger().WithComponent("cloudwatch")
	if err := sink.publish(ctx, data); err != nil {
		log.WithError(err).Warn("failed to publish CloudWatch metrics")
		return
	}

	names := make([]string, 0, len(data))
	for _, datum := range data {
		if datum.MetricName != nil {
			names = append(names, *datum.MetricName)
		}
	}
	log.WithField("metrics", strings.Join(names, ",")).Debug("published metrics to CloudWatch")
}
