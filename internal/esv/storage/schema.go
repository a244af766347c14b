// Package storage implements the vault's storage backend: a single
// "entries" table over GORM and a pure-Go SQLite driver, with transaction
// support and a background TTL sweeper.
package storage

import "time"

// VaultSaltKey is the well-known row holding the base64 session-key salt.
// It lives in the same entries table as ordinary values.
const VaultSaltKey = "__vault_salt__"

// Entry is the GORM model for a single vault row.
type Entry struct {
	Key       string `gorm:"primaryKey;size:512;column:key"`
	Value     string `gorm:"type:text;column:value"`
	Namespace string `gorm:"size:255;column:namespace;index"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
	ExpiresAt *time.Time `gorm:"column:expires_at;index"`
}

// TableName pins the GORM table name to "entries".
func (Entry) TableName() string {
	return "entries"
}

// expired reports whether e has passed its expiry relative to now.
func (e Entry) expired(now time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}
