package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/leaveledger/internal/domain"
	"github.com/iho/leaveledger/internal/usecase"
)

func seedRow(t *testing.T, s *Store, id string, balance int64) *domain.LedgerRow {
	t.Helper()

	row := &domain.LedgerRow{
		ID:         id,
		EmployeeID: "emp-" + id,
		CategoryID: "cat-1",
		Balance:    decimal.NewFromInt(balance),
	}

	repo := NewLedgerRepository(s)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	created, err := repo.CreateMissing(ctx, tx, row)
	require.NoError(t, err)
	require.True(t, created)
	require.NoError(t, tx.Commit(ctx))
	return row
}

func TestStore_CommitAppliesStagedWrites(t *testing.T) {
	s := NewStore()
	repo := NewLedgerRepository(s)
	ctx := context.Background()
	seedRow(t, s, "r1", 10)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	row, err := repo.GetByIDForUpdate(ctx, tx, "r1")
	require.NoError(t, err)
	row.Balance = decimal.NewFromInt(7)
	require.NoError(t, repo.Update(ctx, tx, row))

	// Not visible before commit.
	committed, err := repo.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, committed.Balance.Equal(decimal.NewFromInt(10)))

	require.NoError(t, tx.Commit(ctx))

	committed, err = repo.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, committed.Balance.Equal(decimal.NewFromInt(7)))
	assert.Equal(t, int64(2), committed.Version)
}

func TestStore_RollbackDiscardsWrites(t *testing.T) {
	s := NewStore()
	repo := NewLedgerRepository(s)
	ctx := context.Background()
	seedRow(t, s, "r1", 10)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	row, err := repo.GetByIDForUpdate(ctx, tx, "r1")
	require.NoError(t, err)
	row.Balance = decimal.Zero
	require.NoError(t, repo.Update(ctx, tx, row))
	require.NoError(t, tx.Rollback(ctx))

	committed, err := repo.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, committed.Balance.Equal(decimal.NewFromInt(10)))

	// The lock was released.
	tx2, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = repo.GetByIDForUpdate(ctx, tx2, "r1")
	require.NoError(t, err)
	require.NoError(t, tx2.Rollback(ctx))
}

func TestStore_LockWaitHonoursContext(t *testing.T) {
	s := NewStore()
	repo := NewLedgerRepository(s)
	seedRow(t, s, "r1", 10)

	holder, err := s.Begin(context.Background())
	require.NoError(t, err)
	_, err = repo.GetByIDForUpdate(context.Background(), holder, "r1")
	require.NoError(t, err)
	defer holder.Rollback(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	waiter, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = repo.GetByIDForUpdate(ctx, waiter, "r1")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestStore_LocksAreDroppedOnceUnused(t *testing.T) {
	s := NewStore()
	repo := NewLedgerRepository(s)
	ctx := context.Background()
	for _, id := range []string{"r1", "r2", "r3"} {
		seedRow(t, s, id, 10)
	}

	for _, id := range []string{"r1", "r2", "r3"} {
		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		_, err = repo.GetByIDForUpdate(ctx, tx, id)
		require.NoError(t, err)
		require.NoError(t, tx.Commit(ctx))
	}
	assert.Equal(t, 0, s.locks.size())

	holder, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = repo.GetByIDForUpdate(ctx, holder, "r1")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	waiter, err := s.Begin(waitCtx)
	require.NoError(t, err)
	_, err = repo.GetByIDForUpdate(waitCtx, waiter, "r1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	_ = waiter.Rollback(ctx)

	assert.Equal(t, 1, s.locks.size())
	require.NoError(t, holder.Rollback(ctx))
	assert.Equal(t, 0, s.locks.size())

	again, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = repo.GetByIDForUpdate(ctx, again, "r1")
	require.NoError(t, err)
	require.NoError(t, again.Rollback(ctx))
	assert.Equal(t, 0, s.locks.size())
}

func TestStore_ConcurrentReadModifyWriteIsSerialized(t *testing.T) {
	s := NewStore()
	repo := NewLedgerRepository(s)
	seedRow(t, s, "r1", 0)

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := context.Background()
			tx, err := s.Begin(ctx)
			if err != nil {
				t.Error(err)
				return
			}
			defer tx.Rollback(ctx)

			row, err := repo.GetByIDForUpdate(ctx, tx, "r1")
			if err != nil {
				t.Error(err)
				return
			}
			row.Balance = row.Balance.Add(decimal.NewFromInt(1))
			if err := repo.Update(ctx, tx, row); err != nil {
				t.Error(err)
				return
			}
			if err := tx.Commit(ctx); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	row, err := repo.GetByID(context.Background(), "r1")
	require.NoError(t, err)
	assert.True(t, row.Balance.Equal(decimal.NewFromInt(workers)), "got %s", row.Balance)
	assert.Equal(t, int64(workers+1), row.Version)
}

func TestLedgerRepository_CreateMissingIsIdempotent(t *testing.T) {
	s := NewStore()
	repo := NewLedgerRepository(s)
	ctx := context.Background()
	seedRow(t, s, "r1", 10)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	created, err := repo.CreateMissing(ctx, tx, &domain.LedgerRow{
		ID: "r2", EmployeeID: "emp-r1", CategoryID: "cat-1", Balance: decimal.NewFromInt(99),
	})
	require.NoError(t, err)
	assert.False(t, created)
	require.NoError(t, tx.Commit(ctx))

	count, err := repo.CountByCategory(ctx, "cat-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	row, err := repo.GetByEmployeeAndCategory(ctx, "emp-r1", "cat-1")
	require.NoError(t, err)
	assert.Equal(t, "r1", row.ID)
}

func TestLedgerRepository_ListWithExcess(t *testing.T) {
	s := NewStore()
	repo := NewLedgerRepository(s)
	ctx := context.Background()
	seedRow(t, s, "r1", 10)
	seedRow(t, s, "r2", 10)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	row, err := repo.GetByIDForUpdate(ctx, tx, "r2")
	require.NoError(t, err)
	row.ExcessDays = decimal.NewFromInt(3)
	require.NoError(t, repo.Update(ctx, tx, row))
	require.NoError(t, tx.Commit(ctx))

	ids, err := repo.ListWithExcess(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r2"}, ids)
}

func TestStore_RejectsForeignAndClosedTransactions(t *testing.T) {
	s := NewStore()
	other := NewStore()
	repo := NewLedgerRepository(s)
	ctx := context.Background()
	seedRow(t, s, "r1", 1)

	foreign, err := other.Begin(ctx)
	require.NoError(t, err)
	_, err = repo.GetByIDForUpdate(ctx, foreign, "r1")
	assert.ErrorIs(t, err, ErrForeignTransaction)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	_, err = repo.GetByIDForUpdate(ctx, tx, "r1")
	assert.ErrorIs(t, err, ErrTxClosed)
	assert.ErrorIs(t, tx.Commit(ctx), ErrTxClosed)
	assert.NoError(t, tx.Rollback(ctx))
}

func TestApplicationRepository_DeleteAndList(t *testing.T) {
	s := NewStore()
	repo := NewApplicationRepository(s)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	for i, id := range []string{"a1", "a2", "a3"} {
		require.NoError(t, repo.Create(ctx, tx, &domain.LeaveApplication{
			ID:         id,
			EmployeeID: "emp-1",
			CategoryID: "cat-1",
			Status:     domain.ApplicationStatusPending,
			StartDate:  now.AddDate(0, 0, i),
			CreatedAt:  now.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, tx.Commit(ctx))

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, tx, "a2"))
	require.NoError(t, tx.Commit(ctx))

	_, err = repo.GetByID(ctx, "a2")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	apps, err := repo.List(ctx, usecase.ApplicationFilter{EmployeeID: "emp-1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, "a3", apps[0].ID)

	count, err := repo.CountByCategory(ctx, "cat-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNotificationRepository_ReadFlow(t *testing.T) {
	s := NewStore()
	repo := NewNotificationRepository(s)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Notification{ID: "n1", UserID: "u1", Message: "hi", CreatedAt: time.Now()}))
	require.NoError(t, repo.Create(ctx, &domain.Notification{ID: "n2", UserID: "u1", Message: "there", CreatedAt: time.Now()}))

	unread, err := repo.CountUnread(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	require.NoError(t, repo.MarkRead(ctx, "n1"))

	list, err := repo.ListByUser(ctx, "u1", true, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "n2", list[0].ID)

	assert.ErrorIs(t, repo.MarkRead(ctx, "missing"), domain.ErrNotificationNotFound)
}

func TestCategoryRepository_UniqueName(t *testing.T) {
	s := NewStore()
	repo := NewCategoryRepository(s)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.LeaveCategory{ID: "c1", Name: "Annual"}))
	assert.ErrorIs(t, repo.Create(ctx, &domain.LeaveCategory{ID: "c2", Name: "Annual"}), domain.ErrCategoryNameTaken)

	c, err := repo.GetByName(ctx, "Annual")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)

	require.NoError(t, repo.Delete(ctx, "c1"))
	_, err = repo.GetByID(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrCategoryNotFound)
}
