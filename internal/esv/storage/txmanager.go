package storage

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"
)

// txCtxKey carries an in-flight *gorm.DB transaction through a context.
type txCtxKey struct{}

// TxManager runs callback-scoped transactions (WithTx) and longer-lived,
// explicitly-managed ones (Begin/Commit/Rollback) over the same *gorm.DB.
type TxManager struct {
	db *gorm.DB

	mu     sync.Mutex
	nextID uint64
	active map[uint64]*Transaction
}

// NewTxManager builds a TxManager over db.
func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db, active: make(map[uint64]*Transaction)}
}

// WithTx runs fn inside a transaction, committing on a nil return and
// rolling back otherwise. fn's ctx carries the transaction so store calls
// it makes through Store methods join the same transaction.
func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txCtxKey{}, tx))
	})
}

// Transaction is an explicitly-managed transaction tracked in the manager's
// active set by a monotonically increasing ID.
type Transaction struct {
	ID        uint64
	tx        *gorm.DB
	startedAt time.Time
}

// Context returns a context carrying this transaction, for passing to
// Store methods.
func (t *Transaction) Context(ctx context.Context) context.Context {
	return context.WithValue(ctx, txCtxKey{}, t.tx)
}

// Begin starts a new transaction and registers it in the active set.
func (m *TxManager) Begin(ctx context.Context) (*Transaction, error) {
	tx := m.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, wrapGormErr(tx.Error)
	}

	m.mu.Lock()
	m.nextID++
	txn := &Transaction{ID: m.nextID, tx: tx, startedAt: time.Now()}
	m.active[txn.ID] = txn
	m.mu.Unlock()
	return txn, nil
}

// Commit commits txn and removes it from the active set.
func (m *TxManager) Commit(txn *Transaction) error {
	m.forget(txn.ID)
	return wrapGormErr(txn.tx.Commit().Error)
}

// Rollback aborts txn and removes it from the active set.
func (m *TxManager) Rollback(txn *Transaction) error {
	m.forget(txn.ID)
	return wrapGormErr(txn.tx.Rollback().Error)
}

func (m *TxManager) forget(id uint64) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
}

// SweepStale rolls back and forgets every active transaction older than
// maxAge, returning the count swept, as opportunistic cleanup of
// abandoned transactions.
func (m *TxManager) SweepStale(maxAge time.Duration) int {
	now := time.Now()
	m.mu.Lock()
	var stale []*Transaction
	for id, txn := range m.active {
		if now.Sub(txn.startedAt) > maxAge {
			stale = append(stale, txn)
			delete(m.active, id)
		}
	}
	m.mu.Unlock()

	for _, txn := range stale {
		_ = txn.tx.Rollback()
	}
	return len(stale)
}

// txFromContext returns the transaction carried by ctx, or fallback if
// none is present.
func txFromContext(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txCtxKey{}).(*gorm.DB); ok {
		return tx
	}
	return fallback
}
