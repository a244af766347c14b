package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "load default configuration",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "sqlite", cfg.DBDriver)
				assert.Equal(t, "", cfg.DBConnectionString)
				assert.Equal(t, "info", cfg.LogLevel)
				assert.Empty(t, cfg.MasterKeys)
				assert.Equal(t, "", cfg.ActiveMasterKeyID)
				assert.Equal(t, "", cfg.Passphrase)
				assert.Equal(t, "", cfg.VaultJWT)
				assert.Equal(t, uint32(3), cfg.Argon2Time)
				assert.Equal(t, uint32(65536), cfg.Argon2Memory)
				assert.Equal(t, uint8(4), cfg.Argon2Threads)
				assert.Equal(t, 1*time.Hour, cfg.SessionTokenTTL)
				assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
				assert.Equal(t, 30*time.Second, cfg.CacheSweepInterval)
				assert.Equal(t, 5*time.Minute, cfg.NonceWindow)
				assert.Equal(t, 30*time.Second, cfg.NonceSweepInterval)
				assert.Equal(t, 8, cfg.WorkerPoolSize)
				assert.Equal(t, 5*time.Second, cfg.WorkerInterval)
				assert.Equal(t, 10, cfg.WorkerBatchSize)
				assert.Equal(t, 3, cfg.WorkerMaxRetries)
				assert.Equal(t, 1*time.Minute, cfg.WorkerRetryInterval)
			},
		},
		{
			name: "load custom database configuration",
			envVars: map[string]string{
				"DB_DRIVER":            "sqlite",
				"DB_CONNECTION_STRING": "/tmp/cysec-test/vault.db",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "sqlite", cfg.DBDriver)
				assert.Equal(t, "/tmp/cysec-test/vault.db", cfg.DBConnectionString)
				assert.Equal(t, "/tmp/cysec-test/vault.db", cfg.VaultPath())
			},
		},
		{
			name: "load custom log level",
			envVars: map[string]string{
				"LOG_LEVEL": "debug",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.LogLevel)
			},
		},
		{
			name: "load master key chain",
			envVars: map[string]string{
				"CYSEC_MASTER_KEYS":          "k1=" + testB64 + ",k2=" + testB64,
				"CYSEC_ACTIVE_MASTER_KEY_ID": "k2",
			},
			validate: func(t *testing.T, cfg *Config) {
				require.Len(t, cfg.MasterKeys, 2)
				assert.Equal(t, testKeyBytes, cfg.MasterKeys["k1"])
				assert.Equal(t, testKeyBytes, cfg.MasterKeys["k2"])
				assert.Equal(t, "k2", cfg.ActiveMasterKeyID)
			},
		},
		{
			name: "malformed master key entries are skipped",
			envVars: map[string]string{
				"CYSEC_MASTER_KEYS": "missing-equals,=novalue,noid=," + "ok=" + testB64,
			},
			validate: func(t *testing.T, cfg *Config) {
				require.Len(t, cfg.MasterKeys, 1)
				assert.Equal(t, testKeyBytes, cfg.MasterKeys["ok"])
			},
		},
		{
			name: "load vault unlock configuration",
			envVars: map[string]string{
				"CYSEC_PASSPHRASE": "correct horse battery staple",
				"VAULT_JWT":        "eyJhbGciOiJIUzI1NiJ9.e30.sig",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "correct horse battery staple", cfg.Passphrase)
				assert.Equal(t, "eyJhbGciOiJIUzI1NiJ9.e30.sig", cfg.VaultJWT)
			},
		},
		{
			name: "load custom argon2 configuration",
			envVars: map[string]string{
				"CYSEC_ARGON2_TIME":       "5",
				"CYSEC_ARGON2_MEMORY_KB":  "131072",
				"CYSEC_ARGON2_THREADS":    "2",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, uint32(5), cfg.Argon2Time)
				assert.Equal(t, uint32(131072), cfg.Argon2Memory)
				assert.Equal(t, uint8(2), cfg.Argon2Threads)
			},
		},
		{
			name: "load custom cache and nonce intervals",
			envVars: map[string]string{
				"CYSEC_CACHE_TTL":            "10",
				"CYSEC_CACHE_SWEEP_INTERVAL": "1",
				"CYSEC_NONCE_WINDOW":         "1",
				"CYSEC_NONCE_SWEEP_INTERVAL": "2",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
				assert.Equal(t, 1*time.Second, cfg.CacheSweepInterval)
				assert.Equal(t, 1*time.Minute, cfg.NonceWindow)
				assert.Equal(t, 2*time.Second, cfg.NonceSweepInterval)
			},
		},
		{
			name: "load custom data and keystore directories",
			envVars: map[string]string{
				"CYSEC_DATA_DIR":     "/tmp/cysec-data",
				"CYSEC_KEYSTORE_DIR": "/tmp/cysec-keys",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/tmp/cysec-data", cfg.DataDir)
				assert.Equal(t, "/tmp/cysec-keys", cfg.KeyStorePath())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			// Set test environment variables
			for key, value := range tt.envVars {
				err := os.Setenv(key, value)
				require.NoError(t, err)
			}

			// Load configuration
			cfg := Load()

			// Validate
			tt.validate(t, cfg)
		})
	}
}

var (
	testKeyBytes = []byte("0123456789abcdef0123456789abcdef")
	testB64      = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="
)

func TestVaultPathFallsBackToDataDir(t *testing.T) {
	cfg := &Config{DataDir: "/tmp/cysec-fallback"}
	assert.Equal(t, filepath.Join("/tmp/cysec-fallback", "vault.db"), cfg.VaultPath())
}

func TestKeyStorePathFallsBackToDataDir(t *testing.T) {
	cfg := &Config{DataDir: "/tmp/cysec-fallback"}
	assert.Equal(t, filepath.Join("/tmp/cysec-fallback", "keys"), cfg.KeyStorePath())
}

func TestLoadDotEnv(t *testing.T) {
	// Create a temporary directory structure
	tmpDir, err := os.MkdirTemp("", "config_test")
	require.NoError(t, err)
	defer func() {
		_ = os.RemoveAll(tmpDir)
	}()

	// Create a .env file in the temp root
	err = os.WriteFile(filepath.Join(tmpDir, ".env"), []byte("TEST_ENV_VAR=found"), 0600)
	require.NoError(t, err)

	// Create a child directory
	childDir := filepath.Join(tmpDir, "child", "grandchild")
	err = os.MkdirAll(childDir, 0700)
	require.NoError(t, err)

	// Change working directory to childDir
	oldCwd, err := os.Getwd()
	require.NoError(t, err)
	defer func() {
		_ = os.Chdir(oldCwd)
	}()

	err = os.Chdir(childDir)
	require.NoError(t, err)

	// Load .env
	loadDotEnv()

	// Verify the env var was loaded
	assert.Equal(t, "found", os.Getenv("TEST_ENV_VAR"))
	err = os.Unsetenv("TEST_ENV_VAR")
	require.NoError(t, err)
}
