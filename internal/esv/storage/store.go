package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	cyerrors "github.com/cysec-io/cysec/internal/errors"
)

// Store implements the entries table operations: put, get, delete,
// put_if_absent, put_all, find, list.
type Store struct {
	db  *gorm.DB
	txm *TxManager
}

// New opens a Store over an already-connected *gorm.DB, migrating the
// entries table if it is missing.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, wrapGormErr(err)
	}
	return &Store{db: db, txm: NewTxManager(db)}, nil
}

// TxManager returns the store's transaction manager, so callers (e.g. the
// crypto layer's passphrase rotation) can wrap multiple store calls in one
// transaction.
func (s *Store) TxManager() *TxManager {
	return s.txm
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return txFromContext(ctx, s.db).WithContext(ctx)
}

// Put upserts key=value, refreshing updated_at and expires_at (computed
// from ttl, if given) while preserving created_at across updates.
func (s *Store) Put(ctx context.Context, key, value, namespace string, ttl *time.Duration) error {
	return putEntry(s.conn(ctx), key, value, namespace, ttl)
}

func putEntry(db *gorm.DB, key, value, namespace string, ttl *time.Duration) error {
	now := time.Now().UTC()
	var expiresAt *time.Time
	if ttl != nil {
		t := now.Add(*ttl)
		expiresAt = &t
	}

	var existing Entry
	err := db.Where("key = ?", key).First(&existing).Error
	switch {
	case err == nil:
		return wrapGormErr(db.Model(&Entry{}).Where("key = ?", key).Updates(map[string]any{
			"value":      value,
			"namespace":  namespace,
			"updated_at": now,
			"expires_at": expiresAt,
		}).Error)
	case errors.Is(err, gorm.ErrRecordNotFound):
		entry := Entry{Key: key, Value: value, Namespace: namespace, CreatedAt: now, UpdatedAt: now, ExpiresAt: expiresAt}
		return wrapGormErr(db.Create(&entry).Error)
	default:
		return wrapGormErr(err)
	}
}

// Get returns the value stored under key, or ok=false if the row is
// absent or has expired.
func (s *Store) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	var entry Entry
	err = s.conn(ctx).Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapGormErr(err)
	}
	if entry.expired(time.Now().UTC()) {
		return "", false, nil
	}
	return entry.Value, true, nil
}

// Delete removes key, reporting whether a row was actually removed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	res := s.conn(ctx).Where("key = ?", key).Delete(&Entry{})
	if res.Error != nil {
		return false, wrapGormErr(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// PutIfAbsent inserts key=value only if key is not already present,
// reporting whether the insert happened. Implemented as a SELECT then
// INSERT inside one transaction.
func (s *Store) PutIfAbsent(ctx context.Context, key, value, namespace string) (inserted bool, err error) {
	txErr := s.txm.WithTx(ctx, func(ctx context.Context) error {
		db := s.conn(ctx)
		var existing Entry
		err := db.Where("key = ?", key).First(&existing).Error
		if err == nil {
			inserted = false
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		now := time.Now().UTC()
		if err := db.Create(&Entry{Key: key, Value: value, Namespace: namespace, CreatedAt: now, UpdatedAt: now}).Error; err != nil {
			return err
		}
		inserted = true
		return nil
	})
	if txErr != nil {
		return false, wrapGormErr(txErr)
	}
	return inserted, nil
}

// Pair is a single key/value entry, used by PutAll and Find.
type Pair struct {
	Key   string
	Value string
}

// PutAll upserts every pair within a single transaction; all-or-nothing.
func (s *Store) PutAll(ctx context.Context, pairs []Pair, namespace string) error {
	err := s.txm.WithTx(ctx, func(ctx context.Context) error {
		db := s.conn(ctx)
		for _, p := range pairs {
			if err := putEntry(db, p.Key, p.Value, namespace, nil); err != nil {
				return err
			}
		}
		return nil
	})
	return wrapGormErr(err)
}

// Find returns every non-expired (key, value) pair whose key matches
// pattern, a substring match unless pattern contains glob metacharacters
// ('*' or '?'), in which case it is translated to a SQL LIKE pattern.
// Matching is on key only, never on value.
func (s *Store) Find(ctx context.Context, pattern string) ([]Pair, error) {
	like := toLikePattern(pattern)
	var entries []Entry
	if err := s.conn(ctx).Where("key LIKE ? ESCAPE '\\'", like).Find(&entries).Error; err != nil {
		return nil, wrapGormErr(err)
	}
	now := time.Now().UTC()
	pairs := make([]Pair, 0, len(entries))
	for _, e := range entries {
		if e.expired(now) {
			continue
		}
		pairs = append(pairs, Pair{Key: e.Key, Value: e.Value})
	}
	return pairs, nil
}

// List returns every non-expired key, restricted to namespace if it is
// non-empty.
func (s *Store) List(ctx context.Context, namespace string) ([]string, error) {
	q := s.conn(ctx).Model(&Entry{})
	if namespace != "" {
		q = q.Where("namespace = ?", namespace)
	}
	var entries []Entry
	if err := q.Find(&entries).Error; err != nil {
		return nil, wrapGormErr(err)
	}
	now := time.Now().UTC()
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.expired(now) {
			continue
		}
		keys = append(keys, e.Key)
	}
	return keys, nil
}

// toLikePattern converts a glob-ish pattern into a SQL LIKE pattern,
// escaping LIKE metacharacters already present in the input. If pattern
// carries no glob metacharacters it is treated as a plain substring match.
func toLikePattern(pattern string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(pattern)
	if strings.ContainsAny(pattern, "*?") {
		escaped = strings.ReplaceAll(escaped, "*", "%")
		escaped = strings.ReplaceAll(escaped, "?", "_")
		return escaped
	}
	return "%" + escaped + "%"
}

// wrapGormErr maps GORM/SQLite errors onto the core error kinds.
func wrapGormErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return cyerrors.Wrap(cyerrors.ErrNotFound, err.Error())
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "locked") || strings.Contains(msg, "busy") || strings.Contains(msg, "constraint") {
		return cyerrors.Wrap(cyerrors.ErrConflict, err.Error())
	}
	return cyerrors.Wrap(cyerrors.ErrProvider, err.Error())
}
