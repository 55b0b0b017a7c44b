package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"airwatch/internal/types"
)

// DefaultUpdateInterval applies when update_interval is absent or zero.
const DefaultUpdateInterval = 15 * time.Second

// Data source kinds.
const (
	SourceWeather = "weather"
	SourceCSV     = "csv"
)

// Settings is the device settings file. Field names mirror the keys operators
// already use in config.json; YAML files use the same keys.
type Settings struct {
	DeviceName string `json:"device_name" yaml:"device_name" validate:"required"`
	// APIKey is the telemetry write key.
	APIKey SecretString `json:"api_key" yaml:"api_key"`
	// UpdateInterval is the polling interval in seconds. A reloaded value
	// applies from the next sleep; zero keeps the current interval.
	UpdateInterval float64 `json:"update_interval" yaml:"update_interval" validate:"gte=0"`

	Source     string          `json:"source" yaml:"source" validate:"omitempty,oneof=weather csv"`
	DataFile   string          `json:"data_file" yaml:"data_file"`
	WeatherAPI WeatherSettings `json:"weather_api" yaml:"weather_api"`

	TemperatureLimit *float64 `json:"temperature_limit" yaml:"temperature_limit"`
	HumidityLimit    *float64 `json:"humidity_limit" yaml:"humidity_limit"`
	CO2Limit         *float64 `json:"co2_limit" yaml:"co2_limit" validate:"omitempty,gt=0"`

	Email     EmailSettings     `json:"email" yaml:"email"`
	Telemetry TelemetrySettings `json:"telemetry" yaml:"telemetry"`
	State     StateSettings     `json:"state" yaml:"state"`
	Metrics   MetricsSettings   `json:"metrics" yaml:"metrics"`
}

// WeatherSettings selects and parameterizes the live weather provider.
type WeatherSettings struct {
	Provider    string       `json:"provider" yaml:"provider" validate:"omitempty,oneof=weatherapi openweathermap"`
	APIKey      SecretString `json:"api_key" yaml:"api_key"`
	City        string       `json:"city" yaml:"city"`
	CountryCode string       `json:"country_code" yaml:"country_code"`
	// BaseURL overrides the provider endpoint; used by tests and proxies.
	BaseURL string `json:"base_url" yaml:"base_url" validate:"omitempty,url"`
}

// EmailSettings controls alert delivery. Transport settings are re-read every
// cycle together with the thresholds.
type EmailSettings struct {
	Enabled    bool         `json:"enabled" yaml:"enabled"`
	Provider   string       `json:"provider" yaml:"provider" validate:"omitempty,oneof=smtp ses"`
	SMTPServer string       `json:"smtp_server" yaml:"smtp_server"`
	SMTPPort   int          `json:"smtp_port" yaml:"smtp_port" validate:"gte=0,lte=65535"`
	UseTLS     bool         `json:"use_tls" yaml:"use_tls"`
	Username   string       `json:"username" yaml:"username"`
	Password   SecretString `json:"password" yaml:"password"`
	FromAddr   string       `json:"from_addr" yaml:"from_addr" validate:"omitempty,email"`
	// ToAddr may hold several comma-separated recipients.
	ToAddr string `json:"to_addr" yaml:"to_addr"`
}

// Recipients splits ToAddr into trimmed, non-empty addresses.
func (e EmailSettings) Recipients() []string {
	var out []string
	for _, part := range strings.Split(e.ToAddr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// TelemetrySettings selects the telemetry sink.
type TelemetrySettings struct {
	Sink         string   `json:"sink" yaml:"sink" validate:"omitempty,oneof=thingspeak mqtt kafka sqs none"`
	BaseURL      string   `json:"base_url" yaml:"base_url" validate:"omitempty,url"`
	MQTTBroker   string   `json:"mqtt_broker" yaml:"mqtt_broker"`
	MQTTTopic    string   `json:"mqtt_topic" yaml:"mqtt_topic"`
	KafkaBrokers []string `json:"kafka_brokers" yaml:"kafka_brokers"`
	KafkaTopic   string   `json:"kafka_topic" yaml:"kafka_topic"`
	SQSQueueURL  string   `json:"sqs_queue_url" yaml:"sqs_queue_url" validate:"omitempty,url"`
}

// StateSettings selects where the shared state record and CSV cursor live.
type StateSettings struct {
	Backend   string `json:"backend" yaml:"backend" validate:"omitempty,oneof=file redis postgres"`
	RedisAddr string `json:"redis_addr" yaml:"redis_addr"`
	RedisKey  string `json:"redis_key" yaml:"redis_key"`
}

// MetricsSettings toggles CloudWatch cycle metrics.
type MetricsSettings struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// SourceKind resolves the configured data source. Without an explicit source,
// a configured data_file selects the CSV source.
func (s *Settings) SourceKind() string {
	if s.Source != "" {
		return s.Source
	}
	if s.DataFile != "" {
		return SourceCSV
	}
	return SourceWeather
}

// Interval returns the polling interval.
func (s *Settings) Interval() time.Duration {
	if s.UpdateInterval <= 0 {
		return DefaultUpdateInterval
	}
	return time.Duration(s.UpdateInterval * float64(time.Second))
}

// Thresholds returns the current limits; co2 defaults to types.DefaultCO2Limit.
func (s *Settings) Thresholds() types.Thresholds {
	return types.NewThresholds(s.CO2Limit, s.TemperatureLimit, s.HumidityLimit)
}

// Location is the human label of the configured place.
func (s *Settings) Location() string {
	if s.SourceKind() == SourceCSV {
		return filepath.Base(s.DataFile)
	}
	if s.WeatherAPI.CountryCode == "" {
		return s.WeatherAPI.City
	}
	return s.WeatherAPI.City + ", " + s.WeatherAPI.CountryCode
}

// validate runs struct tags, then the cross-field rules tags cannot express.
func (s *Settings) validate(v *validator.Validate) error {
	if err := v.Struct(s); err != nil {
		return err
	}

	switch s.SourceKind() {
	case SourceCSV:
		if s.DataFile == "" {
			return fmt.Errorf("data_file is required for the csv source")
		}
	case SourceWeather:
		if s.WeatherAPI.APIKey.IsZero() {
			return fmt.Errorf("weather_api.api_key is required for the weather source")
		}
		if s.WeatherAPI.City == "" {
			return fmt.Errorf("weather_api.city is required for the weather source")
		}
	}

	if s.Email.Enabled {
		if len(s.Email.Recipients()) == 0 || s.Email.FromAddr == "" {
			return fmt.Errorf("email.from_addr and email.to_addr are required when email is enabled")
		}
		if s.Email.Provider != "ses" && s.Email.SMTPServer == "" {
			return fmt.Errorf("email.smtp_server is required for smtp delivery")
		}
	}
	return nil
}

// SettingsLoader reads the settings file and keeps the last good copy.
type SettingsLoader struct {
	path     string
	secrets  SecretsConfig
	validate *validator.Validate
	logger   *slog.Logger
	readFile func(string) ([]byte, error)

	mu   sync.Mutex
	last *Settings
}

// NewSettingsLoader creates a loader for path. Non-empty secrets override the
// values found in the file.
func NewSettingsLoader(path string, secrets SecretsConfig, logger *slog.Logger) *SettingsLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsLoader{
		path:     path,
		secrets:  secrets,
		validate: validator.New(),
		logger:   logger,
		readFile: os.ReadFile,
	}
}

// Path returns the settings file location.
func (l *SettingsLoader) Path() string {
	return l.path
}

// Load reads, decodes and validates the settings file. A successful load
// becomes the fallback returned by Current.
func (l *SettingsLoader) Load() (*Settings, error) {
	raw, err := l.readFile(l.path)
	if err != nil {
		return nil, &ConfigError{
			Type:    ErrRead,
			Message: fmt.Sprintf("failed to read settings file %s", l.path),
			Err:     err,
		}
	}

	s, err := decodeSettings(l.path, raw)
	if err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: fmt.Sprintf("failed to decode settings file %s", l.path),
			Err:     err,
		}
	}

	l.applySecrets(s)

	if err := s.validate(l.validate); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "settings validation failed",
			Err:     err,
		}
	}

	l.mu.Lock()
	l.last = s
	l.mu.Unlock()

	return s, nil
}

// Current re-reads the settings file. When the file cannot be loaded, the
// last good settings are returned and the failure is logged; nil is returned
// only if no load has ever succeeded.
func (l *SettingsLoader) Current(ctx context.Context) *Settings {
	s, err := l.Load()
	if err == nil {
		return s
	}

	l.mu.Lock()
	last := l.last
	l.mu.Unlock()

	l.logger.WarnContext(ctx, "settings reload failed, keeping previous settings",
		"path", l.path,
		"error", err,
		"have_previous", last != nil,
	)
	return last
}

func (l *SettingsLoader) applySecrets(s *Settings) {
	if !l.secrets.WeatherAPIKey.IsZero() {
		s.WeatherAPI.APIKey = l.secrets.WeatherAPIKey
	}
	if !l.secrets.TelemetryAPIKey.IsZero() {
		s.APIKey = l.secrets.TelemetryAPIKey
	}
	if !l.secrets.SMTPPassword.IsZero() {
		s.Email.Password = l.secrets.SMTPPassword
	}
}

// decodeSettings picks YAML for .yaml/.yml files and JSON otherwise.
func decodeSettings(path string, raw []byte) (*Settings, error) {
	var s Settings
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		if err := dec.Decode(&s); err != nil {
			return nil, err
		}
	}
	return &s, nil
}
