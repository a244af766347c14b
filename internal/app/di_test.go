package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cysec-io/cysec/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:            t.TempDir(),
		DBConnectionString: "file::memory:?cache=shared",
		LogLevel:           "info",
		MasterKeys: map[string][]byte{
			"test-key": make([]byte, 32),
		},
		ActiveMasterKeyID: "test-key",
		NonceWindow:       time.Minute,
		CacheTTL:          time.Hour,
	}
}

func TestNewContainerExposesConfig(t *testing.T) {
	cfg := testConfig(t)
	container := NewContainer(cfg)
	assert.Same(t, cfg, container.Config())
}

func TestContainerStoreAndVaultAreUsable(t *testing.T) {
	container := NewContainer(testConfig(t))

	vault, err := container.Vault()
	require.NoError(t, err)

	token, err := vault.Unlock(t.Context(), "correct horse battery staple")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestContainerMasterKeyChainLoadsFromConfig(t *testing.T) {
	container := NewContainer(testConfig(t))

	chain, err := container.MasterKeyChain()
	require.NoError(t, err)
	assert.Equal(t, "test-key", chain.ActiveMasterKeyID())
}

func TestContainerKeyManagerGeneratesKey(t *testing.T) {
	container := NewContainer(testConfig(t))

	keyMgr, err := container.KeyManager()
	require.NoError(t, err)

	key, err := keyMgr.Generate(t.Context(), 256, "test-ns", 1)
	require.NoError(t, err)
	defer key.Close()
	assert.Equal(t, 256, key.SizeBits)
}

func TestContainerArmorBuildsKeyPair(t *testing.T) {
	container := NewContainer(testConfig(t))

	a, err := container.Armor()
	require.NoError(t, err)
	assert.NotNil(t, a)
}

func TestContainerNonceManagerMintsNonce(t *testing.T) {
	container := NewContainer(testConfig(t))

	mgr, err := container.NonceManager()
	require.NoError(t, err)

	n, err := mgr.Generate()
	require.NoError(t, err)
	assert.NotEmpty(t, n.Encoded)
}

func TestContainerShutdownIsIdempotent(t *testing.T) {
	container := NewContainer(testConfig(t))
	_, err := container.Store()
	require.NoError(t, err)

	require.NoError(t, container.Shutdown(t.Context()))
	require.NoError(t, container.Shutdown(t.Context()))
}

func TestContainerMasterKeyChainRejectsShortKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.MasterKeys = map[string][]byte{"bad": []byte("short")}
	cfg.ActiveMasterKeyID = "bad"
	container := NewContainer(cfg)

	_, err := container.MasterKeyChain()
	assert.Error(t, err)
}
