// Package memory is an in-process implementation of the repositories. Row locks are
// held from the first ...ForUpdate read until Commit or Rollback, and writes made in a
// transaction become visible only on Commit, so it serializes concurrent read-modify-write
// cycles the same way SELECT ... FOR UPDATE does in PostgreSQL.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/iho/leaveledger/internal/domain"
	"github.com/iho/leaveledger/internal/usecase"
)

// ErrForeignTransaction is returned when a repository gets a transaction it did not create.
var ErrForeignTransaction = errors.New("memory: transaction was not started by this store")

// ErrTxClosed is returned when a finished transaction is used again.
var ErrTxClosed = errors.New("memory: transaction already committed or rolled back")

type pairKey struct {
	employeeID string
	categoryID string
}

// Store holds all entities of one in-process ledger.
type Store struct {
	mu            sync.RWMutex
	categories    map[string]*domain.LeaveCategory
	rows          map[string]*domain.LedgerRow
	rowByPair     map[pairKey]string
	applications  map[string]*domain.LeaveApplication
	notifications map[string]*domain.Notification

	locks lockSet
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		categories:    make(map[string]*domain.LeaveCategory),
		rows:          make(map[string]*domain.LedgerRow),
		rowByPair:     make(map[pairKey]string),
		applications:  make(map[string]*domain.LeaveApplication),
		notifications: make(map[string]*domain.Notification),
		locks:         lockSet{locks: make(map[string]*keyLock)},
	}
}

// Begin implements usecase.TransactionManager.
func (s *Store) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{
		store:       s,
		held:        make(map[string]bool),
		rows:        make(map[string]*domain.LedgerRow),
		apps:        make(map[string]*domain.LeaveApplication),
		deletedApps: make(map[string]bool),
	}, nil
}

// Tx is a memory store transaction.
type Tx struct {
	store *Store
	held  map[string]bool
	order []string

	rows        map[string]*domain.LedgerRow
	apps        map[string]*domain.LeaveApplication
	deletedApps map[string]bool
	done        bool
}

// Commit applies the staged writes and releases every lock held by the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxClosed
	}
	t.done = true
	defer t.releaseAll()

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, row := range t.rows {
		stored := cloneRow(row)
		if prev, ok := s.rows[id]; ok {
			stored.Version = prev.Version + 1
		} else {
			stored.Version = 1
		}
		s.rows[id] = stored
		s.rowByPair[pairKey{row.EmployeeID, row.CategoryID}] = id
	}

	for id, app := range t.apps {
		s.applications[id] = cloneApplication(app)
	}
	for id := range t.deletedApps {
		delete(s.applications, id)
	}

	return nil
}

// Rollback discards staged writes and releases locks. It is a no-op after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.releaseAll()
	return nil
}

func (t *Tx) lock(ctx context.Context, key string) error {
	if t.done {
		return ErrTxClosed
	}
	if t.held[key] {
		return nil
	}
	if err := t.store.locks.acquire(ctx, key); err != nil {
		return err
	}
	t.held[key] = true
	t.order = append(t.order, key)
	return nil
}

func (t *Tx) releaseAll() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.store.locks.release(t.order[i])
	}
	t.order = nil
	t.held = map[string]bool{}
}

func txFrom(tx usecase.Transaction, s *Store) (*Tx, error) {
	mtx, ok := tx.(*Tx)
	if !ok || mtx.store != s {
		return nil, ErrForeignTransaction
	}
	if mtx.done {
		return nil, ErrTxClosed
	}
	return mtx, nil
}

// lockSet is a set of named locks that can be waited on with a context.
// A key's entry lives only while some transaction holds or waits for it.
type lockSet struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func (l *lockSet) ref(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	k, ok := l.locks[key]
	if !ok {
		k = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = k
	}
	k.refs++
	return k
}

func (l *lockSet) unref(key string, k *keyLock) {
	k.refs--
	if k.refs == 0 {
		delete(l.locks, key)
	}
}

func (l *lockSet) acquire(ctx context.Context, key string) error {
	k := l.ref(key)
	select {
	case k.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		l.unref(key, k)
		l.mu.Unlock()
		return ctx.Err()
	}
}

func (l *lockSet) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k, ok := l.locks[key]
	if !ok {
		return
	}
	<-k.ch
	l.unref(key, k)
}

func (l *lockSet) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func rowLockKey(id string) string { return "row:" + id }

func pairLockKey(employeeID, categoryID string) string {
	return "pair:" + employeeID + "/" + categoryID
}

func appLockKey(id string) string { return "app:" + id }

func cloneRow(r *domain.LedgerRow) *domain.LedgerRow {
	c := *r
	return &c
}

func cloneApplication(a *domain.LeaveApplication) *domain.LeaveApplication {
	c := *a
	return &c
}

func cloneCategory(c *domain.LeaveCategory) *domain.LeaveCategory {
	cp := *c
	return &cp
}

func cloneNotification(n *domain.Notification) *domain.Notification {
	c := *n
	return &c
}
