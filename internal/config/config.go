// Package config defines the configuration of an airwatch process.
//
// Two layers exist. The process Config is loaded once at startup and is
// immutable thereafter; values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// The device Settings file is re-read at the start of every sampling cycle so
// that thresholds and alert settings can change without a restart.
package config

import (
	"airwatch/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the process-level configuration. Sub-components receive only the
// specific values they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// SettingsPath is the device settings file; the -config flag overrides it.
	SettingsPath string `envconfig:"AIRWATCH_CONFIG" default:"config.json" validate:"required"`
	StatePath    string `envconfig:"STATE_PATH" default:"current_state.json" validate:"required"`
	CursorPath   string `envconfig:"CURSOR_PATH" default:"row_tracker.txt" validate:"required"`

	AWS       AWSConfig
	Secrets   SecretsConfig
	Dashboard DashboardConfig
	Metrics   MetricsConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// AWSConfig holds regional configuration for SES, SQS, SSM and CloudWatch.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// SecretsConfig holds secrets that, when set, override the matching values in
// the settings file. Each may be resolved from SSM via a _SSM_PARAM variable.
type SecretsConfig struct {
	WeatherAPIKey   SecretString `envconfig:"WEATHER_API_KEY"`
	TelemetryAPIKey SecretString `envconfig:"TELEMETRY_API_KEY"`
	SMTPPassword    SecretString `envconfig:"SMTP_PASSWORD"`
	RedisPassword   SecretString `envconfig:"REDIS_PASSWORD"`
	DatabaseURL     SecretString `envconfig:"DATABASE_URL"`
}

// DashboardConfig configures the read-only dashboard process.
type DashboardConfig struct {
	Port string `envconfig:"PORT" default:"5002"`
}

// MetricsConfig holds CloudWatch settings.
type MetricsConfig struct {
	Namespace string `envconfig:"METRIC_NAMESPACE" default:"Airwatch"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variables or the
	// settings file into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
	// ErrRead indicates the settings file could not be read.
	ErrRead ConfigErrorType = "READ_FAILED"
)
