package repo_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/gridbet-engine/internal/wager-service/repo"
)

func TestMemory_IncrementBalanceFloor(t *testing.T) {
	ctx := context.Background()
	m := repo.NewMemory()
	m.Seed("w1", decimal.NewFromInt(10))

	prev, next, err := m.IncrementBalance(ctx, "w1", decimal.NewFromInt(-4))
	require.NoError(t, err)
	assert.True(t, prev.Equal(decimal.NewFromInt(10)))
	assert.True(t, next.Equal(decimal.NewFromInt(6)))

	prev, next, err = m.IncrementBalance(ctx, "w1", decimal.NewFromInt(-7))
	assert.ErrorIs(t, err, repo.ErrInsufficientFunds)
	assert.True(t, prev.Equal(next))
	assert.True(t, next.Equal(decimal.NewFromInt(6)))

	_, _, err = m.IncrementBalance(ctx, "ghost", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestMemory_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	m := repo.NewMemory()
	m.Seed("w1", decimal.NewFromInt(100))

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := m.IncrementBalance(ctx, "w1", decimal.NewFromInt(-7)); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	acc, err := m.GetAccount(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 14, ok)
	assert.True(t, acc.Balance.Equal(decimal.NewFromInt(2)), acc.Balance.String())
}

func TestMemory_TransitionOnlyFromPending(t *testing.T) {
	ctx := context.Background()
	m := repo.NewMemory()
	require.NoError(t, m.InsertWager(ctx, repo.Wager{ID: "a", Status: repo.StatusPending}))
	assert.ErrorIs(t, m.InsertWager(ctx, repo.Wager{ID: "a"}), repo.ErrDuplicate)

	won := repo.Resolution{Status: repo.StatusWon, ActualWin: decimal.NewFromInt(5), ResolvedAt: time.Now()}
	changed, err := m.TransitionWager(ctx, "a", won)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = m.TransitionWager(ctx, "a", repo.Resolution{Status: repo.StatusLost})
	require.NoError(t, err)
	assert.False(t, changed)

	w, err := m.GetWager(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, repo.StatusWon, w.Status)
	assert.True(t, w.ActualWin.Equal(decimal.NewFromInt(5)))
	require.NotNil(t, w.ResolvedAt)
}

func TestMemory_ListPendingByAge(t *testing.T) {
	ctx := context.Background()
	m := repo.NewMemory()
	now := time.Now()
	require.NoError(t, m.InsertWager(ctx, repo.Wager{ID: "old", Status: repo.StatusPending, CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, m.InsertWager(ctx, repo.Wager{ID: "new", Status: repo.StatusPending, CreatedAt: now}))
	require.NoError(t, m.InsertWager(ctx, repo.Wager{ID: "done", Status: repo.StatusLost, CreatedAt: now.Add(-time.Hour)}))

	stale, err := m.ListPending(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "old", stale[0].ID)

	all, err := m.ListPending(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMemory_StatsAreIncremental(t *testing.T) {
	ctx := context.Background()
	m := repo.NewMemory()
	m.Seed("w1", decimal.Zero)

	require.NoError(t, m.IncrementStats(ctx, "w1", repo.StatsDelta{BetAmount: decimal.NewFromInt(10), WinAmount: decimal.NewFromInt(50), IsWin: true}))
	require.NoError(t, m.IncrementStats(ctx, "w1", repo.StatsDelta{BetAmount: decimal.NewFromInt(4)}))
	require.NoError(t, m.IncrementStats(ctx, "w1", repo.StatsDelta{BetAmount: decimal.NewFromInt(2), WinAmount: decimal.NewFromInt(20), IsWin: true}))

	acc, err := m.GetAccount(ctx, "w1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, acc.TotalBets)
	assert.EqualValues(t, 2, acc.TotalWins)
	assert.EqualValues(t, 1, acc.TotalLosses)
	assert.True(t, acc.TotalWagered.Equal(decimal.NewFromInt(16)))
	assert.True(t, acc.TotalWon.Equal(decimal.NewFromInt(70)))
	assert.True(t, acc.TotalLost.Equal(decimal.NewFromInt(4)))
	assert.True(t, acc.BiggestWin.Equal(decimal.NewFromInt(50)))
}
