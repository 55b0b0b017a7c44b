package telemetry

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"airwatch/internal/external"
	"airwatch/internal/types"
)

// thingSpeakBase is the default ThingSpeak API base URL.
const thingSpeakBase = "https://api.thingspeak.com"

// ThingSpeakConfig configures a ThingSpeakSink.
type ThingSpeakConfig struct {
	// APIKey is the channel write key.
	APIKey  string
	BaseURL string
	// HTTPClient defaults to a client with UploadTimeout.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// ThingSpeakSink writes field1..field3 (co2, temperature, humidity) to a
// ThingSpeak channel. The receiver acknowledges with the new entry ID; "0"
// means the update was refused.
type ThingSpeakSink struct {
	base    *external.BaseClient
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// NewThingSpeakSink creates a ThingSpeakSink.
func NewThingSpeakSink(cfg ThingSpeakConfig) *ThingSpeakSink {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = thingSpeakBase
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: UploadTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ThingSpeakSink{
		base:    external.NewBaseClient(httpClient, "thingspeak", "Airwatch/1.0"),
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// Upload implements Sink.
func (s *ThingSpeakSink) Upload(ctx context.Context, r types.Reading) error {
	q := url.Values{}
	q.Set("api_key", s.apiKey)
	q.Set("field1", strconv.FormatFloat(r.CO2PPM, 'f', 1, 64))
	q.Set("field2", strconv.FormatFloat(r.TemperatureC, 'f', 1, 64))
	q.Set("field3", strconv.FormatFloat(r.HumidityPct, 'f', 1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/update?"+q.Encode(), nil)
	if err != nil {
		return transportFailure("failed to build ThingSpeak request", err)
	}

	resp, err := s.base.Do(req)
	if err != nil {
		return transportFailure("ThingSpeak request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return transportFailure("failed to read ThingSpeak acknowledgment", err)
	}

	if resp.StatusCode != http.StatusOK {
		return rejected("ThingSpeak returned " + strconv.Itoa(resp.StatusCode)).
			WithDetails(map[string]any{"status": resp.StatusCode})
	}

	entryID := strings.TrimSpace(string(body))
	if entryID == "" || entryID == "0" {
		return rejected("ThingSpeak refused the update").
			WithDetails(map[string]any{"ack": entryID})
	}

	types.LoggerFromContext(ctx, s.logger).InfoContext(ctx, "telemetry uploaded",
		"sink", SinkThingSpeak,
		"entry_id", entryID,
	)
	return nil
}
