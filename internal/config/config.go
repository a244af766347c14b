// Package config provides application configuration management through environment variables.
package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Data directory. The vault database and KLM file-store keys live under
	// here unless DBConnectionString or KeyStoreDir overrides them; the
	// armor KEM keypair always does. The passphrase salt is a row in the
	// vault database.
	DataDir string

	// Database configuration. DBDriver is read from DB_DRIVER but nothing
	// consults it: the container always opens SQLite. DBConnectionString,
	// when set, is opened in place of the vault file under DataDir (the
	// container tests use it for an in-memory database).
	DBDriver           string
	DBConnectionString string

	// Logging
	LogLevel string

	// Master key chain. CYSEC_MASTER_KEYS is "id1=base64key1,id2=base64key2";
	// CYSEC_ACTIVE_MASTER_KEY_ID selects which entry new wraps use.
	MasterKeys        map[string][]byte
	ActiveMasterKeyID string

	// Vault unlock. CYSEC_PASSPHRASE unlocks the ESV session key. VAULT_JWT
	// is accepted for parity with tools that pass a pre-issued session
	// token, but each CLI invocation mints a fresh signer on Unlock, so a
	// token from another process can never verify here; every command
	// unlocks with the passphrase directly instead of reading this field.
	Passphrase string
	VaultJWT   string

	// Argon2id cost parameters, read from CYSEC_ARGON2_*. The vault derives
	// its session key with its own fixed parameters and does not read these
	// fields.
	Argon2Time    uint32
	Argon2Memory  uint32
	Argon2Threads uint8

	// KLM file-store directory.
	KeyStoreDir string

	// Session token lifetime, read from CYSEC_SESSION_TOKEN_TTL. The vault
	// issues its tokens with its own fixed lifetime and does not read this
	// field.
	SessionTokenTTL time.Duration

	// Cache (C7) configuration.
	CacheTTL           time.Duration
	CacheSweepInterval time.Duration

	// Nonce manager (C8) configuration.
	NonceWindow        time.Duration
	NonceSweepInterval time.Duration

	// Worker pool (§5) configuration.
	WorkerPoolSize int

	// Worker configuration (TTL sweeps, token-revocation sweeps, etc.)
	WorkerInterval      time.Duration
	WorkerBatchSize     int
	WorkerMaxRetries    int
	WorkerRetryInterval time.Duration
}

// Load loads configuration from environment variables.
// It first attempts to load a .env file by searching recursively from the current directory
// up to the root directory. If no .env file is found, it continues with existing environment variables.
func Load() *Config {
	// Try to load .env file recursively
	loadDotEnv()

	return &Config{
		DataDir: env.GetString("CYSEC_DATA_DIR", defaultDataDir()),

		DBDriver:           env.GetString("DB_DRIVER", "sqlite"),
		DBConnectionString: env.GetString("DB_CONNECTION_STRING", ""),

		LogLevel: env.GetString("LOG_LEVEL", "info"),

		MasterKeys:        parseMasterKeys(env.GetString("CYSEC_MASTER_KEYS", "")),
		ActiveMasterKeyID: env.GetString("CYSEC_ACTIVE_MASTER_KEY_ID", ""),

		Passphrase: env.GetString("CYSEC_PASSPHRASE", ""),
		VaultJWT:   env.GetString("VAULT_JWT", ""),

		Argon2Time:    uint32(env.GetInt("CYSEC_ARGON2_TIME", 3)),
		Argon2Memory:  uint32(env.GetInt("CYSEC_ARGON2_MEMORY_KB", 65536)),
		Argon2Threads: uint8(env.GetInt("CYSEC_ARGON2_THREADS", 4)),

		KeyStoreDir: env.GetString("CYSEC_KEYSTORE_DIR", ""),

		SessionTokenTTL: env.GetDuration("CYSEC_SESSION_TOKEN_TTL", 1, time.Hour),

		CacheTTL:           env.GetDuration("CYSEC_CACHE_TTL", 5, time.Minute),
		CacheSweepInterval: env.GetDuration("CYSEC_CACHE_SWEEP_INTERVAL", 30, time.Second),

		NonceWindow:        env.GetDuration("CYSEC_NONCE_WINDOW", 5, time.Minute),
		NonceSweepInterval: env.GetDuration("CYSEC_NONCE_SWEEP_INTERVAL", 30, time.Second),

		WorkerPoolSize: env.GetInt("CYSEC_WORKER_POOL_SIZE", 8),

		WorkerInterval:      env.GetDuration("WORKER_INTERVAL", 5, time.Second),
		WorkerBatchSize:     env.GetInt("WORKER_BATCH_SIZE", 10),
		WorkerMaxRetries:    env.GetInt("WORKER_MAX_RETRIES", 3),
		WorkerRetryInterval: env.GetDuration("WORKER_RETRY_INTERVAL", 1, time.Minute),
	}
}

// VaultPath returns what the container opens as the ESV database:
// DBConnectionString when set, otherwise vault.db under DataDir.
func (c *Config) VaultPath() string {
	if c.DBConnectionString != "" {
		return c.DBConnectionString
	}
	return filepath.Join(c.DataDir, "vault.db")
}

// KeyStorePath returns the directory KLM's file-store backend uses, falling
// back to a subdirectory of DataDir when KeyStoreDir is unset.
func (c *Config) KeyStorePath() string {
	if c.KeyStoreDir != "" {
		return c.KeyStoreDir
	}
	return filepath.Join(c.DataDir, "keys")
}

// ArmorPath returns DataDir/vault.armor. The "save" command does not use
// it: save armors the vault database file at VaultPath in place.
func (c *Config) ArmorPath() string {
	return filepath.Join(c.DataDir, "vault.armor")
}

// ArmorKeyDir returns the directory the armor container's long-lived KEM
// keypair is stored under.
func (c *Config) ArmorKeyDir() string {
	return filepath.Join(c.DataDir, "armor")
}

// defaultDataDir resolves "$XDG_DATA_HOME/cysec", falling back to
// "~/.local/share/cysec" when XDG_DATA_HOME is unset, matching the XDG base
// directory convention.
func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "cysec")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".cysec")
	}
	return filepath.Join(home, ".local", "share", "cysec")
}

// parseMasterKeys parses "id1=base64key1,id2=base64key2" into a chain map.
// Malformed entries (missing "=", invalid base64) are skipped; callers that
// need strict validation should use klm's own loader, which reports errors.
func parseMasterKeys(raw string) map[string][]byte {
	keys := make(map[string][]byte)
	if raw == "" {
		return keys
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		id, b64, ok := strings.Cut(pair, "=")
		if !ok || id == "" || b64 == "" {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			continue
		}
		keys[id] = decoded
	}
	return keys
}

// loadDotEnv searches for a .env file recursively from the current directory
// up to the root directory and loads it if found.
func loadDotEnv() {
	// Get current working directory
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	// Search for .env file recursively up the directory tree
	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			// .env file found, load it
			_ = godotenv.Load(envPath)
			return
		}

		// Move to parent directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root directory
			break
		}
		dir = parent
	}
}
