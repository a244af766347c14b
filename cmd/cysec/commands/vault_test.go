package commands

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cysec-io/cysec/internal/app"
	"github.com/cysec-io/cysec/internal/config"
)

// testConfig returns a config backed by a real on-disk vault file under a
// fresh temp directory, so that separate Container instances created
// within the same test (one per command, matching how the CLI actually
// runs) see each other's writes.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:  t.TempDir(),
		LogLevel: "error",
		MasterKeys: map[string][]byte{
			"test-key": make([]byte, 32),
		},
		ActiveMasterKeyID: "test-key",
		NonceWindow:       time.Minute,
		CacheTTL:          time.Hour,
	}
}

func TestRunGetMissingKeyIsNotFound(t *testing.T) {
	container := app.NewContainer(testConfig(t))
	var out bytes.Buffer

	err := RunGet(t.Context(), container, &out, false, "hunter2", "absent")
	assert.Error(t, err)
}

func TestRunPutGetDeleteSameContainer(t *testing.T) {
	cfg := testConfig(t)

	container := app.NewContainer(cfg)
	var out bytes.Buffer
	require.NoError(t, RunPut(t.Context(), container, &out, true, "hunter2", "api-key", "abc123"))

	container2 := app.NewContainer(cfg)
	out.Reset()
	require.NoError(t, RunGet(t.Context(), container2, &out, true, "hunter2", "api-key"))
	assert.Contains(t, out.String(), "abc123")

	container3 := app.NewContainer(cfg)
	out.Reset()
	require.NoError(t, RunDelete(t.Context(), container3, &out, true, "hunter2", "api-key"))

	container4 := app.NewContainer(cfg)
	out.Reset()
	err := RunGet(t.Context(), container4, &out, true, "hunter2", "api-key")
	assert.Error(t, err)
}

func TestRunListReturnsStoredKeys(t *testing.T) {
	cfg := testConfig(t)

	container := app.NewContainer(cfg)
	var out bytes.Buffer
	require.NoError(t, RunPut(t.Context(), container, &out, false, "hunter2", "alpha", "1"))

	container2 := app.NewContainer(cfg)
	out.Reset()
	require.NoError(t, RunList(t.Context(), container2, &out, false, "hunter2", ""))
	assert.Contains(t, out.String(), "alpha")
}
