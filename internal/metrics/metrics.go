// Package metrics records per-cycle outcomes of the sampling loop.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"airwatch/internal/types"
)

// CycleMetrics receives the outcome of every sampling cycle. Implementations
// never return errors; a failed emission is logged and dropped.
type CycleMetrics interface {
	RecordCycle(ctx context.Context, result types.CycleResult, duration time.Duration)
	RecordChannelFailure(ctx context.Context, channel types.Channel)
}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Compile-time assertion that CloudWatchRecorder implements CycleMetrics.
var _ CycleMetrics = (*CloudWatchRecorder)(nil)

// CloudWatchRecorder emits cycle metrics to AWS CloudWatch.
//
// Metrics emitted:
//   - CycleOutcome: Dims {Device, Result}
//   - CycleDuration: Dims {Device}, milliseconds
//   - ChannelFailure: Dims {Device, Channel}
type CloudWatchRecorder struct {
	client    CloudWatchClient
	namespace string
	device    string
	logger    *slog.Logger
}

// NewCloudWatchRecorder creates a recorder for device. An empty namespace
// falls back to types.MetricNamespace.
func NewCloudWatchRecorder(client CloudWatchClient, namespace, device string, logger *slog.Logger) *CloudWatchRecorder {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchRecorder{
		client:    client,
		namespace: namespace,
		device:    device,
		logger:    logger,
	}
}

// RecordCycle emits CycleOutcome and CycleDuration in one call.
func (m *CloudWatchRecorder) RecordCycle(ctx context.Context, result types.CycleResult, duration time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricCycleOutcome),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					m.deviceDimension(),
					{
						Name:  aws.String(types.DimResult),
						Value: aws.String(string(result)),
					},
				},
			},
			{
				MetricName: aws.String(types.MetricCycleDuration),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: []cwtypes.Dimension{m.deviceDimension()},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		types.LoggerFromContext(ctx, m.logger).WarnContext(ctx, "failed to record cycle metric",
			"error", err.Error(),
			"result", string(result),
			"duration_ms", duration.Milliseconds(),
		)
	}
}

// RecordChannelFailure emits ChannelFailure for a failed side-effect channel.
func (m *CloudWatchRecorder) RecordChannelFailure(ctx context.Context, channel types.Channel) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricChannelFailure),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					m.deviceDimension(),
					{
						Name:  aws.String(types.DimChannel),
						Value: aws.String(string(channel)),
					},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		types.LoggerFromContext(ctx, m.logger).WarnContext(ctx, "failed to record channel failure metric",
			"error", err.Error(),
			"channel", string(channel),
		)
	}
}

func (m *CloudWatchRecorder) deviceDimension() cwtypes.Dimension {
	return cwtypes.Dimension{
		Name:  aws.String(types.DimDevice),
		Value: aws.String(m.device),
	}
}

// Nop discards all metrics.
type Nop struct{}

func (Nop) RecordCycle(context.Context, types.CycleResult, time.Duration) {}
func (Nop) RecordChannelFailure(context.Context, types.Channel)           {}
