// Package telemetry forwards every cycle's Reading to an external
// aggregation service. One attempt per cycle; failures are upload_* AppErrors
// that the caller logs and drops.
package telemetry

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"airwatch/internal/types"
)

// Sink kinds.
const (
	SinkThingSpeak = "thingspeak"
	SinkMQTT       = "mqtt"
	SinkKafka      = "kafka"
	SinkSQS        = "sqs"
	SinkNone       = "none"
)

// UploadTimeout bounds one upload.
const UploadTimeout = 10 * time.Second

// Sink uploads one reading.
type Sink interface {
	Upload(ctx context.Context, r types.Reading) error
}

// Payload is the message body used by the broker sinks.
type Payload struct {
	Device      string    `json:"device"`
	CO2         float64   `json:"co2"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Timestamp   time.Time `json:"timestamp"`
	DataSource  string    `json:"data_source"`
	Location    string    `json:"location,omitempty"`
}

// NewPayload builds the broker payload for r. Values are rounded to one
// decimal like the shared state record.
func NewPayload(device string, r types.Reading) Payload {
	return Payload{
		Device:      device,
		CO2:         round1(r.CO2PPM),
		Temperature: round1(r.TemperatureC),
		Humidity:    round1(r.HumidityPct),
		Timestamp:   r.CapturedAt.UTC(),
		DataSource:  r.SourceLabel,
		Location:    r.Location,
	}
}

func encodePayload(device string, r types.Reading) ([]byte, error) {
	body, err := json.Marshal(NewPayload(device, r))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode telemetry payload", err)
	}
	return body, nil
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

func transportFailure(msg string, err error) *types.AppError {
	return types.NewAppError(types.ErrCodeUploadTransportFailure, msg, err)
}

func rejected(msg string) *types.AppError {
	return types.NewAppError(types.ErrCodeUploadRejected, msg, nil)
}

// NopSink discards readings. Used when telemetry.sink is "none".
type NopSink struct{}

// Upload implements Sink.
func (NopSink) Upload(context.Context, types.Reading) error { return nil }
