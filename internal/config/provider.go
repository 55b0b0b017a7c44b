package config

import (
	"context"
	"os"
)

// SecretProvider resolves secret values by key. The SSM implementation is
// used outside local development; EnvVarProvider serves tests and local runs.
type SecretProvider interface {
	// GetParametersBatch returns key -> plaintext value for every key it could
	// resolve. Keys it cannot find are omitted from the map.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}

// EnvVarProvider resolves keys as OS environment variable names.
type EnvVarProvider struct{}

// NewEnvVarProvider creates a new EnvVarProvider.
func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{}
}

// GetParametersBatch looks each key up with os.LookupEnv. Missing keys are
// silently omitted.
func (p *EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if val, ok := os.LookupEnv(key); ok {
			result[key] = val
		}
	}
	return result, nil
}
