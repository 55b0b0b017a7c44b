package source

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"airwatch/internal/external"
	"airwatch/internal/types"
)

// FetchTimeout bounds one provider fetch, including the secondary
// air-quality call some providers need.
const FetchTimeout = 10 * time.Second

// Observation is the provider-neutral result of one weather fetch.
type Observation struct {
	TemperatureC float64
	HumidityPct  float64
	// AQIIndex is nil when the provider returned no air-quality data.
	AQIIndex *int
	// CO is the carbon monoxide concentration in µg/m³, 0 when unknown.
	CO float64
}

// WeatherProvider adapts one upstream weather API. Fetch failures are
// AppErrors with acquisition_* codes.
type WeatherProvider interface {
	// Name is the provenance label recorded on readings.
	Name() string
	Fetch(ctx context.Context) (Observation, error)
}

// LiveWeatherConfig configures a LiveWeatherSource.
type LiveWeatherConfig struct {
	// Location is the human label recorded on readings ("City, CC").
	Location string
	Timeout  time.Duration
	Clock    types.Clock
	Logger   *slog.Logger
}

// LiveWeatherSource acquires readings from a WeatherProvider and derives the
// CO2-equivalent from the air-quality data.
type LiveWeatherSource struct {
	provider WeatherProvider
	location string
	timeout  time.Duration
	clock    types.Clock
	logger   *slog.Logger
}

// NewLiveWeatherSource creates a LiveWeatherSource around provider.
func NewLiveWeatherSource(provider WeatherProvider, cfg LiveWeatherConfig) *LiveWeatherSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = FetchTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = types.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &LiveWeatherSource{
		provider: provider,
		location: cfg.Location,
		timeout:  cfg.Timeout,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}
}

// Acquire fetches one observation within the configured timeout.
func (s *LiveWeatherSource) Acquire(ctx context.Context) (types.Reading, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	obs, err := s.provider.Fetch(fetchCtx)
	if err != nil {
		return types.Reading{}, err
	}

	co2 := CO2Equivalent(obs.AQIIndex, obs.CO)
	logger := types.LoggerFromContext(ctx, s.logger)
	logger.DebugContext(ctx, "weather observation fetched",
		"provider", s.provider.Name(),
		"temperature_c", obs.TemperatureC,
		"humidity_pct", obs.HumidityPct,
		"aqi_present", obs.AQIIndex != nil,
		"co2_equivalent", co2,
	)

	return types.Reading{
		CO2PPM:       co2,
		TemperatureC: obs.TemperatureC,
		HumidityPct:  obs.HumidityPct,
		CapturedAt:   s.clock.Now(),
		SourceLabel:  s.provider.Name(),
		Location:     s.location,
	}, nil
}

// translateUpstream converts a BaseClient failure into an acquisition error.
func translateUpstream(provider string, err error) *types.AppError {
	if types.CodeOf(err) == types.ErrCodeUpstreamTimeout {
		return acquisitionError(types.ErrCodeAcquisitionTimeout, provider+" request timed out", err)
	}
	appErr := acquisitionError(types.ErrCodeAcquisitionTransport, provider+" request failed", err)
	if status := external.StatusOf(err); status != 0 {
		return appErr.WithDetails(map[string]any{"status": status})
	}
	return appErr
}

// statusError reports a non-success status that BaseClient passed through.
// A 403 usually means the API key is wrong or not yet activated.
func statusError(ctx context.Context, logger *slog.Logger, provider string, resp *http.Response) *types.AppError {
	if resp.StatusCode == http.StatusForbidden {
		logger.WarnContext(ctx, "weather provider refused the API key; check that it is valid and activated",
			"provider", provider,
		)
	}
	return acquisitionError(types.ErrCodeAcquisitionTransport,
		provider+" returned "+http.StatusText(resp.StatusCode), nil).
		WithDetails(map[string]any{"status": resp.StatusCode})
}

// newProviderClient builds the BaseClient shared by a provider adapter.
func newProviderClient(httpClient *http.Client, name string) *external.BaseClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: FetchTimeout}
	}
	return external.NewBaseClient(httpClient, name, userAgent)
}

const userAgent = "Airwatch/1.0"
