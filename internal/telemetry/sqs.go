package telemetry

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"airwatch/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSink sends each reading as one SQS message. The MessageId returned by
// SQS is the acknowledgment.
type SQSSink struct {
	client   SQSSender
	queueURL string
	device   string
	logger   *slog.Logger
}

// NewSQSSink creates an SQSSink.
func NewSQSSink(client SQSSender, queueURL, device string, logger *slog.Logger) *SQSSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQSSink{client: client, queueURL: queueURL, device: device, logger: logger}
}

// Upload implements Sink.
func (s *SQSSink) Upload(ctx context.Context, r types.Reading) error {
	body, err := encodePayload(s.device, r)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, UploadTimeout)
	defer cancel()

	out, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"device": {
				DataType:    aws.String("String"),
				StringValue: aws.String(s.device),
			},
		},
	})
	if err != nil {
		return transportFailure("SQS send failed", err).
			WithDetails(map[string]any{"queue_url": s.queueURL})
	}
	if aws.ToString(out.MessageId) == "" {
		return rejected("SQS returned no message ID")
	}

	types.LoggerFromContext(ctx, s.logger).InfoContext(ctx, "telemetry uploaded",
		"sink", SinkSQS,
		"message_id", aws.ToString(out.MessageId),
	)
	return nil
}
