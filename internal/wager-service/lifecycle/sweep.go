package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/gridbet-engine/internal/wager-service/repo"
	"github.com/radieske/gridbet-engine/pkg/contracts/events"
)

type SweepResult struct {
	RefundedCount int
	TotalRefunded decimal.Decimal
	TotalPending  int
	Errors        []string
}

// CancelStalePending cancela e reembolsa apostas pending mais velhas que maxAge
// (zero = todas). Erros por aposta são acumulados sem abortar a varredura.
func (m *Manager) CancelStalePending(ctx context.Context, maxAge time.Duration) (SweepResult, error) {
	if maxAge < 0 {
		return SweepResult{}, fmt.Errorf("%w: maxAge must be >= 0", ErrInvalidInput)
	}
	now := m.now().UTC()
	var cutoff time.Time
	if maxAge > 0 {
		cutoff = now.Add(-maxAge)
	}

	pending, err := m.store.ListPending(ctx, cutoff)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list pending: %w", err)
	}

	out := SweepResult{TotalRefunded: decimal.Zero, TotalPending: len(pending)}
	crit := context.WithoutCancel(ctx)
	for _, w := range pending {
		if err := m.cancelOne(crit, w, now); err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", w.ID, err))
			continue
		}
		out.RefundedCount++
		out.TotalRefunded = out.TotalRefunded.Add(w.Amount)
	}

	m.log.Info("stale pending sweep finished",
		zap.Duration("max_age", maxAge),
		zap.Int("pending", out.TotalPending),
		zap.Int("refunded", out.RefundedCount),
		zap.String("total_refunded", out.TotalRefunded.String()),
		zap.Int("errors", len(out.Errors)))
	return out, nil
}

func (m *Manager) cancelOne(ctx context.Context, w repo.Wager, now time.Time) error {
	changed, err := m.store.TransitionWager(ctx, w.ID, repo.Resolution{
		Status:     repo.StatusCancelled,
		ActualWin:  decimal.Zero,
		ResolvedAt: now.Truncate(time.Microsecond),
	})
	if err != nil {
		return fmt.Errorf("transition: %w", err)
	}
	if !changed {
		return errors.New("already resolved")
	}

	if _, err := m.ledger.AdjustBalance(ctx, w.WalletAddress, w.Amount, "wager_refund", w.ID); err != nil {
		m.log.Error("wager cancelled but refund failed",
			zap.String("wager_id", w.ID), zap.String("wallet", w.WalletAddress), zap.Error(err))
		return fmt.Errorf("refund: %w", err)
	}
	m.ledger.Audit(ctx, repo.AuditEntry{
		WalletAddress: w.WalletAddress,
		Action:        "wager_cancelled",
		Description:   "stale pending wager refunded",
		PreviousValue: string(repo.StatusPending),
		NewValue:      string(repo.StatusCancelled),
		RelatedID:     w.ID,
	})
	if m.hooks.OnCancelled != nil {
		m.hooks.OnCancelled()
	}
	m.publish(ctx, "wager_cancelled", func(ctx context.Context) error {
		return m.pub.PublishWagerCancelled(ctx, events.WagerCancelled{
			WagerID:       w.ID,
			WalletAddress: w.WalletAddress,
			Refunded:      w.Amount.String(),
			Reason:        "stale",
			Ts:            now,
		})
	})
	return nil
}
