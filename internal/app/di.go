// Package app provides the dependency injection container for assembling
// the cysec CLI's components.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/cysec-io/cysec/internal/config"
	"github.com/cysec-io/cysec/internal/esv/armor"
	"github.com/cysec-io/cysec/internal/esv/cache"
	"github.com/cysec-io/cysec/internal/esv/nonce"
	"github.com/cysec-io/cysec/internal/esv/storage"
	"github.com/cysec-io/cysec/internal/esv/vaultcrypto"
	"github.com/cysec-io/cysec/internal/klm/domain"
	"github.com/cysec-io/cysec/internal/klm/filestore"
	"github.com/cysec-io/cysec/internal/klm/service"
	"github.com/cysec-io/cysec/internal/metrics"
	"github.com/cysec-io/cysec/internal/pqc"
)

// Container holds all application dependencies and provides methods to
// access them, following the lazy-initialization pattern: each component
// is created on first access and cached for the Container's lifetime.
type Container struct {
	config *config.Config

	logger *slog.Logger
	db     *gorm.DB

	store     *storage.Store
	vault     *vaultcrypto.Vault
	masterKey *domain.MasterKeyChain
	keyStore  service.Store
	keyMgr    *service.KeyManager
	armorKeys *armor.FileKeyPairStore
	armor     *armor.Armor
	cacheMgr  *cache.Cache
	nonceMgr  *nonce.Manager

	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	loggerInit    sync.Once
	dbInit        sync.Once
	storeInit     sync.Once
	masterKeyInit sync.Once
	keyStoreInit  sync.Once
	keyMgrInit    sync.Once
	vaultInit     sync.Once
	armorInit     sync.Once
	cacheInit     sync.Once
	nonceInit     sync.Once
	metricsInit   sync.Once
	businessInit  sync.Once
	initErrors    sync.Map
}

// NewContainer creates a dependency injection container over cfg.
func NewContainer(cfg *config.Config) *Container {
	return &Container{config: cfg}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured structured logger, built on first access.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the GORM handle over the vault's SQLite database.
func (c *Container) DB() (*gorm.DB, error) {
	return memoize(&c.dbInit, &c.initErrors, "db", func() (*gorm.DB, error) {
		db, err := gorm.Open(sqlite.Open(c.config.VaultPath()), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to open vault database: %w", err)
		}
		return db, nil
	}, func() *gorm.DB { return c.db }, func(v *gorm.DB) { c.db = v })
}

// Store returns the ESV storage backend (C4) over the vault database.
func (c *Container) Store() (*storage.Store, error) {
	return memoize(&c.storeInit, &c.initErrors, "store", func() (*storage.Store, error) {
		db, err := c.DB()
		if err != nil {
			return nil, err
		}
		return storage.New(db)
	}, func() *storage.Store { return c.store }, func(v *storage.Store) { c.store = v })
}

// Vault returns the ESV crypto layer (C5) session wrapper over Store. Like
// every component here it is memoized, and for Vault that matters: its session state
// (established by Unlock) must be visible to every later caller within the
// same Container — including the cache's write-through persist hook, which
// has no token of its own and relies on Vault.CurrentToken.
func (c *Container) Vault() (*vaultcrypto.Vault, error) {
	return memoize(&c.vaultInit, &c.initErrors, "vault", func() (*vaultcrypto.Vault, error) {
		store, err := c.Store()
		if err != nil {
			return nil, err
		}
		return vaultcrypto.New(store), nil
	}, func() *vaultcrypto.Vault { return c.vault }, func(v *vaultcrypto.Vault) { c.vault = v })
}

// MasterKeyChain returns the KLM master key chain, loaded from
// CYSEC_MASTER_KEYS/CYSEC_ACTIVE_MASTER_KEY_ID.
func (c *Container) MasterKeyChain() (*domain.MasterKeyChain, error) {
	return memoize(&c.masterKeyInit, &c.initErrors, "masterKeyChain", func() (*domain.MasterKeyChain, error) {
		return domain.LoadMasterKeyChainFromEnv(c.config.MasterKeys, c.config.ActiveMasterKeyID)
	}, func() *domain.MasterKeyChain { return c.masterKey }, func(v *domain.MasterKeyChain) { c.masterKey = v })
}

// KeyStore returns the KLM Store backend (file store; the default and
// only backend this build wires a CLI path to).
func (c *Container) KeyStore() (service.Store, error) {
	return memoize(&c.keyStoreInit, &c.initErrors, "keyStore", func() (service.Store, error) {
		return filestore.New(c.config.KeyStorePath())
	}, func() service.Store { return c.keyStore }, func(v service.Store) { c.keyStore = v })
}

// KeyManager returns the KLM key manager (C2), wrapping KeyStore under the
// active master key.
func (c *Container) KeyManager() (*service.KeyManager, error) {
	return memoize(&c.keyMgrInit, &c.initErrors, "keyManager", func() (*service.KeyManager, error) {
		store, err := c.KeyStore()
		if err != nil {
			return nil, err
		}
		chain, err := c.MasterKeyChain()
		if err != nil {
			return nil, err
		}
		active, ok := chain.Active()
		if !ok {
			return nil, fmt.Errorf("no active master key in chain")
		}
		return service.New(store, active), nil
	}, func() *service.KeyManager { return c.keyMgr }, func(v *service.KeyManager) { c.keyMgr = v })
}

// Armor returns the ESV armor (C6) container codec, backed by a
// file-persisted ML-KEM-768 keypair.
func (c *Container) Armor() (*armor.Armor, error) {
	return memoize(&c.armorInit, &c.initErrors, "armor", func() (*armor.Armor, error) {
		keys, err := c.armorKeyPairStore()
		if err != nil {
			return nil, err
		}
		return armor.New(keys, pqc.MLKEM768()), nil
	}, func() *armor.Armor { return c.armor }, func(v *armor.Armor) { c.armor = v })
}

func (c *Container) armorKeyPairStore() (*armor.FileKeyPairStore, error) {
	if c.armorKeys != nil {
		return c.armorKeys, nil
	}
	keys, err := armor.NewFileKeyPairStore(c.config.ArmorKeyDir(), pqc.MLKEM768())
	if err != nil {
		return nil, err
	}
	c.armorKeys = keys
	return keys, nil
}

// Cache returns the ESV cache (C7), write-through onto Store.
func (c *Container) Cache() (*cache.Cache, error) {
	return memoize(&c.cacheInit, &c.initErrors, "cache", func() (*cache.Cache, error) {
		bm, err := c.BusinessMetrics()
		if err != nil {
			return nil, err
		}
		return cache.New(1024, c.config.CacheTTL, cache.WriteThrough, c.cachePersist, bm), nil
	}, func() *cache.Cache { return c.cacheMgr }, func(v *cache.Cache) { c.cacheMgr = v })
}

// MetricsProvider returns the OpenTelemetry meter provider backing
// Prometheus export, shared by every metrics consumer in the Container.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	return memoize(&c.metricsInit, &c.initErrors, "metricsProvider", func() (*metrics.Provider, error) {
		return metrics.NewProvider("cysec")
	}, func() *metrics.Provider { return c.metricsProvider }, func(v *metrics.Provider) { c.metricsProvider = v })
}

// BusinessMetrics returns the cache/vault operation counters recorded
// through MetricsProvider. Falls back to a no-op implementation if the
// Prometheus exporter cannot be initialized, so metrics failures never
// block vault operations.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	return memoize(&c.businessInit, &c.initErrors, "businessMetrics", func() (metrics.BusinessMetrics, error) {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.Logger().Warn("metrics provider unavailable, using no-op business metrics", slog.Any("error", err))
			return metrics.NewNoOpBusinessMetrics(), nil
		}
		bm, err := metrics.NewBusinessMetrics(provider.MeterProvider(), "cysec")
		if err != nil {
			return nil, err
		}
		return bm, nil
	}, func() metrics.BusinessMetrics { return c.businessMetrics }, func(v metrics.BusinessMetrics) { c.businessMetrics = v })
}

// cachePersist backs the cache's write-through/write-back path. It reuses
// whichever Vault session the calling command already established via
// Unlock: the cache has no token of its own, and a vault JWT minted by a
// different process could never verify here (each Unlock mints a fresh
// signer key), so CurrentToken is the only source that can work.
func (c *Container) cachePersist(ctx context.Context, key, value string) error {
	vault, err := c.Vault()
	if err != nil {
		return err
	}
	token, err := vault.CurrentToken()
	if err != nil {
		return err
	}
	return vault.Put(ctx, token, key, value, "", nil)
}

// NonceManager returns the nonce manager (C8), keyed off the active
// master key so nonce forgery requires the same key material as the
// vault itself.
func (c *Container) NonceManager() (*nonce.Manager, error) {
	return memoize(&c.nonceInit, &c.initErrors, "nonceManager", func() (*nonce.Manager, error) {
		chain, err := c.MasterKeyChain()
		if err != nil {
			return nil, err
		}
		active, ok := chain.Active()
		if !ok {
			return nil, fmt.Errorf("no active master key in chain")
		}
		return nonce.New(active.Key, c.config.NonceWindow), nil
	}, func() *nonce.Manager { return c.nonceMgr }, func(v *nonce.Manager) { c.nonceMgr = v })
}

// Shutdown releases every initialized resource.
func (c *Container) Shutdown(ctx context.Context) error {
	if c.masterKey != nil {
		c.masterKey.Close()
	}
	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("metrics provider shutdown: %w", err)
		}
	}
	if c.db != nil {
		if sqlDB, err := c.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				return fmt.Errorf("database close: %w", err)
			}
		}
	}
	return nil
}

func (c *Container) initLogger() *slog.Logger {
	var level slog.Level
	switch c.config.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// memoize runs build exactly once (guarded by once), caching its result via
// set/get and recording any error under key so every subsequent caller
// observes the same outcome without re-running build.
func memoize[T any](once *sync.Once, errs *sync.Map, key string, build func() (T, error), get func() T, set func(T)) (T, error) {
	once.Do(func() {
		v, err := build()
		if err != nil {
			errs.Store(key, err)
			return
		}
		set(v)
	})
	if v, ok := errs.Load(key); ok {
		var zero T
		return zero, v.(error)
	}
	return get(), nil
}
