package source

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"airwatch/internal/external"
	"airwatch/internal/types"
)

// openWeatherMapBase is the default OpenWeatherMap base URL.
const openWeatherMapBase = "https://api.openweathermap.org/data/2.5"

// OpenWeatherMapName labels readings from OpenWeatherMap.
const OpenWeatherMapName = "OpenWeatherMap"

type owmWeatherResponse struct {
	Coord *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Main *struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
}

type owmAirPollutionResponse struct {
	List []struct {
		Main struct {
			AQI int `json:"aqi"`
		} `json:"main"`
		Components struct {
			CO float64 `json:"co"`
		} `json:"components"`
	} `json:"list"`
}

// OpenWeatherMapProvider fetches current weather, then air pollution for the
// returned coordinates. The air-pollution call is optional: when it fails the
// observation carries no air-quality data.
type OpenWeatherMapProvider struct {
	base    *external.BaseClient
	cfg     ProviderConfig
	baseURL string
	logger  *slog.Logger
}

// NewOpenWeatherMapProvider creates an OpenWeatherMapProvider.
func NewOpenWeatherMapProvider(cfg ProviderConfig) *OpenWeatherMapProvider {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenWeatherMapProvider{
		base:    newProviderClient(cfg.HTTPClient, "openweathermap"),
		cfg:     cfg,
		baseURL: cfg.baseURL(openWeatherMapBase),
		logger:  logger,
	}
}

// Name implements WeatherProvider.
func (p *OpenWeatherMapProvider) Name() string { return OpenWeatherMapName }

// Fetch implements WeatherProvider.
func (p *OpenWeatherMapProvider) Fetch(ctx context.Context) (Observation, error) {
	logger := types.LoggerFromContext(ctx, p.logger)

	q := url.Values{}
	q.Set("q", p.cfg.query())
	q.Set("appid", p.cfg.APIKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/weather?"+q.Encode(), nil)
	if err != nil {
		return Observation{}, acquisitionError(types.ErrCodeAcquisitionTransport, "failed to build OpenWeatherMap request", err)
	}

	resp, err := p.base.Do(req)
	if err != nil {
		return Observation{}, translateUpstream(OpenWeatherMapName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Observation{}, statusError(ctx, logger, OpenWeatherMapName, resp)
	}

	var weather owmWeatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&weather); err != nil {
		return Observation{}, acquisitionError(types.ErrCodeAcquisitionMalformedResponse,
			"failed to decode OpenWeatherMap weather response", err)
	}
	if weather.Main == nil || weather.Main.Temp == nil || weather.Main.Humidity == nil || weather.Coord == nil {
		return Observation{}, acquisitionError(types.ErrCodeAcquisitionMalformedResponse,
			"OpenWeatherMap response is missing main.temp, main.humidity or coord", nil)
	}

	obs := Observation{
		TemperatureC: *weather.Main.Temp,
		HumidityPct:  *weather.Main.Humidity,
	}

	index, co, err := p.fetchAirPollution(ctx, weather.Coord.Lat, weather.Coord.Lon)
	if err != nil {
		logger.WarnContext(ctx, "air pollution lookup failed, using baseline CO2-equivalent",
			"provider", OpenWeatherMapName,
			"error", err,
		)
		return obs, nil
	}
	obs.AQIIndex = &index
	obs.CO = co
	return obs, nil
}

func (p *OpenWeatherMapProvider) fetchAirPollution(ctx context.Context, lat, lon float64) (int, float64, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("appid", p.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/air_pollution?"+q.Encode(), nil)
	if err != nil {
		return 0, 0, err
	}

	resp, err := p.base.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, acquisitionError(types.ErrCodeAcquisitionTransport,
			"air pollution returned "+http.StatusText(resp.StatusCode), nil)
	}

	var body owmAirPollutionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, 0, err
	}
	if len(body.List) == 0 {
		return 0, 0, acquisitionError(types.ErrCodeAcquisitionMalformedResponse, "air pollution list is empty", nil)
	}
	return body.List[0].Main.AQI, body.List[0].Components.CO, nil
}
