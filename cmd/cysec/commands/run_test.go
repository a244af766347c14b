package commands

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cysec-io/cysec/internal/app"
)

func TestRunRunInjectsStoredValuesAsEnvironment(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX shell command")
	}
	cfg := testConfig(t)

	container := app.NewContainer(cfg)
	var setupOut bytes.Buffer
	require.NoError(t, RunPut(t.Context(), container, &setupOut, false, "hunter2", "GREETING", "hello-vault"))

	container2 := app.NewContainer(cfg)
	var stdout, stderr bytes.Buffer
	exitCode, err := RunRun(t.Context(), container2, &stdout, &stderr, "hunter2", "", []string{"sh", "-c", "echo $GREETING"})
	require.NoError(t, err)
	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "hello-vault")
}

func TestRunRunRequiresACommand(t *testing.T) {
	container := app.NewContainer(testConfig(t))
	var stdout, stderr bytes.Buffer

	_, err := RunRun(t.Context(), container, &stdout, &stderr, "hunter2", "", nil)
	assert.Error(t, err)
}
