package commands

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cysec-io/cysec/internal/app"
)

func TestRunMetricsExposesPrometheusFormat(t *testing.T) {
	container := app.NewContainer(testConfig(t))

	cache, err := container.Cache()
	require.NoError(t, err)
	cache.Get(t.Context(), "absent")

	provider, err := container.MetricsProvider()
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	provider.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "cysec_operations_total")

	var out bytes.Buffer
	require.NoError(t, RunMetrics(t.Context(), container, &out, false))
	assert.Contains(t, out.String(), "misses=1")
	assert.Contains(t, out.String(), "cysec_operations_total")
}

func TestRunMetricsJSONMode(t *testing.T) {
	container := app.NewContainer(testConfig(t))

	cache, err := container.Cache()
	require.NoError(t, err)
	cache.Get(t.Context(), "absent")

	var out bytes.Buffer
	require.NoError(t, RunMetrics(t.Context(), container, &out, true))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Contains(t, decoded, "cache")
	assert.Contains(t, decoded, "prometheus")
}
