package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"airwatch/internal/types"
)

// kafkaWriter is the subset of *kafka.Writer used by KafkaSink.
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter creates a synchronous writer that waits for the partition
// leader's acknowledgment.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		WriteTimeout: UploadTimeout,
	}
}

// KafkaSink writes readings as JSON keyed by device, so one device's readings
// stay ordered within a partition.
type KafkaSink struct {
	writer kafkaWriter
	device string
	logger *slog.Logger
}

// NewKafkaSink creates a KafkaSink.
func NewKafkaSink(writer kafkaWriter, device string, logger *slog.Logger) *KafkaSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaSink{writer: writer, device: device, logger: logger}
}

// Upload implements Sink.
func (s *KafkaSink) Upload(ctx context.Context, r types.Reading) error {
	payload, err := encodePayload(s.device, r)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, UploadTimeout)
	defer cancel()

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(s.device),
		Value: payload,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "cycle_id", Value: []byte(types.GetCycleID(ctx))},
		},
	})
	if err != nil {
		return transportFailure("kafka write failed", err)
	}

	types.LoggerFromContext(ctx, s.logger).InfoContext(ctx, "telemetry uploaded", "sink", SinkKafka)
	return nil
}
