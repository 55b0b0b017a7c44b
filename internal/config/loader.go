// loader.go implements the process configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone so persisted timestamps never drift.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. If APP_ENV != "local", resolve _SSM_PARAM variables via the
//     SecretProvider and inject the resolved values into the environment.
//  4. Use envconfig to process struct tags and populate the Config struct.
//  5. Populate BuildInfo from linker-injected variables.
//  6. Validate the struct using go-playground/validator.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by the loaders.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ssmParamSuffix identifies SSM pointer variables. WEATHER_API_KEY_SSM_PARAM
// points to the SSM path holding WEATHER_API_KEY.
const ssmParamSuffix = "_SSM_PARAM"

// localEnv is the APP_ENV value that bypasses SSM resolution.
const localEnv = "local"

type envLookup func(key string) (string, bool)

type envSet func(key, value string) error

type environ func() []string

// loaderDeps holds the injectable dependencies for the loader, enabling
// testing without mutating global state.
type loaderDeps struct {
	lookupEnv  envLookup
	setEnv     envSet
	environ    environ
	loadDotenv func() error
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv:  os.LookupEnv,
		setEnv:     os.Setenv,
		environ:    os.Environ,
		loadDotenv: func() error { return godotenv.Load() },
	}
}

// LoadConfig loads and validates the process configuration.
//
// The provider is the SecretProvider used for SSM resolution. It may be nil
// when APP_ENV is "local" or when no _SSM_PARAM variables are present.
func LoadConfig(provider SecretProvider) (*Config, error) {
	return loadConfigWithDeps(provider, defaultDeps())
}

func loadConfigWithDeps(provider SecretProvider, deps loaderDeps) (*Config, error) {
	time.Local = time.UTC

	// godotenv does NOT override existing environment variables.
	if deps.loadDotenv != nil {
		_ = deps.loadDotenv()
	}

	appEnv, _ := deps.lookupEnv("APP_ENV")
	if appEnv != "" && appEnv != localEnv {
		if err := resolveSSMParams(provider, deps); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	return &cfg, nil
}

// resolveSSMParams scans the environment for variables ending in _SSM_PARAM,
// fetches the corresponding secret values via the SecretProvider, and injects
// them back into the environment so that envconfig can process them.
//
// A target variable that is already set is left alone, which respects the
// priority chain OS Environment > Dotenv > SSM.
func resolveSSMParams(provider SecretProvider, deps loaderDeps) error {
	ssmPathToTarget := make(map[string]string)
	var ssmPaths []string

	for _, envEntry := range deps.environ() {
		eqIdx := strings.IndexByte(envEntry, '=')
		if eqIdx < 0 {
			continue
		}
		key := envEntry[:eqIdx]
		if !strings.HasSuffix(key, ssmParamSuffix) {
			continue
		}

		target := strings.TrimSuffix(key, ssmParamSuffix)
		if _, exists := deps.lookupEnv(target); exists {
			continue
		}

		ssmPath := envEntry[eqIdx+1:]
		if ssmPath == "" {
			continue
		}
		ssmPathToTarget[ssmPath] = target
		ssmPaths = append(ssmPaths, ssmPath)
	}

	if len(ssmPaths) == 0 {
		return nil
	}

	if provider == nil {
		targets := make([]string, 0, len(ssmPaths))
		for _, p := range ssmPaths {
			targets = append(targets, ssmPathToTarget[p])
		}
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SecretProvider is required for non-local environments (need to resolve: %s)", strings.Join(targets, ", ")),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, ssmPaths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(ssmPaths)),
			Err:     err,
		}
	}

	var missing []string
	for _, p := range ssmPaths {
		value, ok := resolved[p]
		if !ok {
			missing = append(missing, ssmPathToTarget[p])
			continue
		}
		if err := deps.setEnv(ssmPathToTarget[p], value); err != nil {
			return &ConfigError{
				Type:    ErrSSMResolution,
				Message: fmt.Sprintf("failed to set resolved value for %s", ssmPathToTarget[p]),
				Err:     err,
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SSM parameters not found for: %s", strings.Join(missing, ", ")),
		}
	}

	return nil
}
