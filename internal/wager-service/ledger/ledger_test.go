package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/gridbet-engine/internal/wager-service/ledger"
	"github.com/radieske/gridbet-engine/internal/wager-service/repo"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestAdjustBalance(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemory()
	store.Seed("w1", d(100))
	var results []string
	l := ledger.New(store, zap.NewNop(), ledger.Hooks{OnAdjust: func(r string) { results = append(results, r) }})

	res, err := l.AdjustBalance(ctx, "w1", d(-30), "wager_placed", "bet-1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.PreviousBalance.Equal(d(100)))
	assert.True(t, res.NewBalance.Equal(d(70)))

	res, err = l.AdjustBalance(ctx, "w1", d(-71), "wager_placed", "bet-2")
	assert.ErrorIs(t, err, repo.ErrInsufficientFunds)
	assert.False(t, res.Success)
	assert.True(t, res.NewBalance.Equal(d(70)))

	_, err = l.AdjustBalance(ctx, "ghost", d(1), "deposit", "")
	assert.ErrorIs(t, err, repo.ErrNotFound)

	assert.Equal(t, []string{"ok", "insufficient", "error"}, results)

	audit := store.Audit()
	require.Len(t, audit, 1)
	assert.Equal(t, "balance_adjusted", audit[0].Action)
	assert.Equal(t, "100", audit[0].PreviousValue)
	assert.Equal(t, "70", audit[0].NewValue)
	assert.Equal(t, "bet-1", audit[0].RelatedID)
}

func TestAdjustBalance_AuditFailureDoesNotFail(t *testing.T) {
	store := repo.NewMemory()
	store.Seed("w1", d(10))
	store.AuditErr = errors.New("disk full")
	failures := 0
	l := ledger.New(store, zap.NewNop(), ledger.Hooks{OnAuditFailure: func() { failures++ }})

	res, err := l.AdjustBalance(context.Background(), "w1", d(5), "deposit", "")
	require.NoError(t, err)
	assert.True(t, res.NewBalance.Equal(d(15)))
	assert.Equal(t, 1, failures)
}

func TestAdjustBalance_ConcurrentNonNegative(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemory()
	store.Seed("w1", d(50))
	l := ledger.New(store, zap.NewNop(), ledger.Hooks{})

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = l.AdjustBalance(ctx, "w1", d(-3), "debit", "")
		}()
		go func() {
			defer wg.Done()
			_, _ = l.AdjustBalance(ctx, "w1", d(1), "credit", "")
		}()
	}
	wg.Wait()

	acc, err := store.GetAccount(ctx, "w1")
	require.NoError(t, err)
	assert.False(t, acc.Balance.IsNegative())

	// saldo final = inicial + soma dos ajustes aplicados
	var sum decimal.Decimal
	for _, e := range store.Audit() {
		prev, _ := decimal.NewFromString(e.PreviousValue)
		next, _ := decimal.NewFromString(e.NewValue)
		sum = sum.Add(next.Sub(prev))
	}
	assert.True(t, acc.Balance.Equal(d(50).Add(sum)), "balance %s sum %s", acc.Balance, sum)
}

func TestRecordResult(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemory()
	store.Seed("w1", d(0))
	l := ledger.New(store, zap.NewNop(), ledger.Hooks{})

	require.NoError(t, l.RecordResult(ctx, "w1", d(10), d(50), true))
	// winAmount ignorado em derrota
	require.NoError(t, l.RecordResult(ctx, "w1", d(5), d(99), false))

	acc, err := store.GetAccount(ctx, "w1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, acc.TotalBets)
	assert.True(t, acc.TotalWon.Equal(d(50)))
	assert.True(t, acc.TotalLost.Equal(d(5)))
	assert.True(t, acc.BiggestWin.Equal(d(50)))

	assert.ErrorIs(t, l.RecordResult(ctx, "ghost", d(1), d(0), false), repo.ErrNotFound)
}
