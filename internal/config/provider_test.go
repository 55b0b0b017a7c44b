package config

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSSMClient struct {
	calls   [][]string
	invalid []string
	err     error
}

func (m *mockSSMClient) GetParameters(_ context.Context, params *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	m.calls = append(m.calls, params.Names)
	if m.err != nil {
		return nil, m.err
	}
	out := &ssm.GetParametersOutput{InvalidParameters: m.invalid}
	for _, name := range params.Names {
		out.Parameters = append(out.Parameters, ssmtypes.Parameter{
			Name:  aws.String(name),
			Value: aws.String("value-of-" + name),
		})
	}
	return out, nil
}

func TestEnvVarProvider(t *testing.T) {
	t.Setenv("AIRWATCH_TEST_SECRET_A", "alpha")

	result, err := NewEnvVarProvider().GetParametersBatch(context.Background(),
		[]string{"AIRWATCH_TEST_SECRET_A", "AIRWATCH_TEST_NOT_SET_XYZ"})

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"AIRWATCH_TEST_SECRET_A": "alpha"}, result)
}

func TestSSMProvider_Batches(t *testing.T) {
	client := &mockSSMClient{}
	provider := newSSMProviderWithClient(client)

	keys := make([]string, 23)
	for i := range keys {
		keys[i] = fmt.Sprintf("/prod/airwatch/p%d", i)
	}

	result, err := provider.GetParametersBatch(context.Background(), keys)

	require.NoError(t, err)
	assert.Len(t, result, 23)
	require.Len(t, client.calls, 3)
	assert.Len(t, client.calls[0], 10)
	assert.Len(t, client.calls[2], 3)
	assert.Equal(t, "value-of-/prod/airwatch/p7", result["/prod/airwatch/p7"])
}

func TestSSMProvider_EmptyKeys(t *testing.T) {
	client := &mockSSMClient{}
	result, err := newSSMProviderWithClient(client).GetParametersBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Empty(t, client.calls)
}

func TestSSMProvider_InvalidParameters(t *testing.T) {
	client := &mockSSMClient{invalid: []string{"/prod/airwatch/missing"}}

	_, err := newSSMProviderWithClient(client).GetParametersBatch(context.Background(), []string{"/prod/airwatch/missing"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSSMProvider_ClientError(t *testing.T) {
	boom := errors.New("access denied")
	client := &mockSSMClient{err: boom}

	_, err := newSSMProviderWithClient(client).GetParametersBatch(context.Background(), []string{"/a"})

	require.ErrorIs(t, err, boom)
}

func TestSSMProvider_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := &mockSSMClient{}

	_, err := newSSMProviderWithClient(client).GetParametersBatch(ctx, []string{"/a"})

	require.Error(t, err)
	assert.Empty(t, client.calls)
}
