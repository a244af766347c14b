package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	provider, err := NewProvider("cysec")
	require.NoError(t, err)
	assert.NotNil(t, provider.meterProvider)
	assert.NotNil(t, provider.exporter)
	assert.NotNil(t, provider.registry)
}

func TestNewProviderEmptyNamespace(t *testing.T) {
	provider, err := NewProvider("")
	require.NoError(t, err)
	assert.NotNil(t, provider)
}

func TestProviderTwoProvidersDoNotShareARegistry(t *testing.T) {
	a, err := NewProvider("a")
	require.NoError(t, err)
	b, err := NewProvider("b")
	require.NoError(t, err)
	assert.NotSame(t, a.registry, b.registry)
}

func TestProviderMeterProvider(t *testing.T) {
	provider, err := NewProvider("cysec")
	require.NoError(t, err)
	assert.NotNil(t, provider.MeterProvider())
}

func TestProviderHandler(t *testing.T) {
	provider, err := NewProvider("cysec")
	require.NoError(t, err)
	assert.NotNil(t, provider.Handler())
}

func TestProviderShutdown(t *testing.T) {
	provider, err := NewProvider("cysec")
	require.NoError(t, err)
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestProviderShutdownNilMeterProvider(t *testing.T) {
	provider := &Provider{meterProvider: nil}
	assert.NoError(t, provider.Shutdown(context.Background()))
}
