package source

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"airwatch/internal/external"
	"airwatch/internal/types"
)

// weatherAPIBase is the default WeatherAPI.com base URL.
const weatherAPIBase = "https://api.weatherapi.com/v1"

// WeatherAPIName labels readings from WeatherAPI.com.
const WeatherAPIName = "WeatherAPI.com"

// ProviderConfig holds the settings shared by the weather adapters.
type ProviderConfig struct {
	APIKey      string
	City        string
	CountryCode string
	// BaseURL overrides the provider endpoint; defaults to the public API.
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func (c ProviderConfig) query() string {
	if c.CountryCode == "" {
		return c.City
	}
	return c.City + "," + c.CountryCode
}

func (c ProviderConfig) baseURL(def string) string {
	if c.BaseURL == "" {
		return def
	}
	return strings.TrimSuffix(c.BaseURL, "/")
}

type weatherAPIResponse struct {
	Current *struct {
		TempC      *float64 `json:"temp_c"`
		Humidity   *float64 `json:"humidity"`
		AirQuality *struct {
			CO         float64 `json:"co"`
			USEPAIndex *int    `json:"us-epa-index"`
		} `json:"air_quality"`
	} `json:"current"`
}

// WeatherAPIProvider fetches current conditions with air quality from
// WeatherAPI.com in a single call.
type WeatherAPIProvider struct {
	base    *external.BaseClient
	cfg     ProviderConfig
	baseURL string
	logger  *slog.Logger
}

// NewWeatherAPIProvider creates a WeatherAPIProvider.
func NewWeatherAPIProvider(cfg ProviderConfig) *WeatherAPIProvider {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WeatherAPIProvider{
		base:    newProviderClient(cfg.HTTPClient, "weatherapi"),
		cfg:     cfg,
		baseURL: cfg.baseURL(weatherAPIBase),
		logger:  logger,
	}
}

// Name implements WeatherProvider.
func (p *WeatherAPIProvider) Name() string { return WeatherAPIName }

// Fetch implements WeatherProvider.
func (p *WeatherAPIProvider) Fetch(ctx context.Context) (Observation, error) {
	q := url.Values{}
	q.Set("key", p.cfg.APIKey)
	q.Set("q", p.cfg.query())
	q.Set("aqi", "yes")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/current.json?"+q.Encode(), nil)
	if err != nil {
		return Observation{}, acquisitionError(types.ErrCodeAcquisitionTransport, "failed to build WeatherAPI.com request", err)
	}

	resp, err := p.base.Do(req)
	if err != nil {
		return Observation{}, translateUpstream(WeatherAPIName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Observation{}, statusError(ctx, types.LoggerFromContext(ctx, p.logger), WeatherAPIName, resp)
	}

	var body weatherAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Observation{}, acquisitionError(types.ErrCodeAcquisitionMalformedResponse,
			"failed to decode WeatherAPI.com response", err)
	}
	if body.Current == nil || body.Current.TempC == nil || body.Current.Humidity == nil {
		return Observation{}, acquisitionError(types.ErrCodeAcquisitionMalformedResponse,
			"WeatherAPI.com response is missing current.temp_c or current.humidity", nil)
	}

	obs := Observation{
		TemperatureC: *body.Current.TempC,
		HumidityPct:  *body.Current.Humidity,
	}
	if aq := body.Current.AirQuality; aq != nil {
		index := 1
		if aq.USEPAIndex != nil {
			index = *aq.USEPAIndex
		}
		obs.AQIIndex = &index
		obs.CO = aq.CO
	}
	return obs, nil
}
