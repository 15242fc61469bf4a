// Package ledger é o único caminho para mudar saldo e estatísticas de conta.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/gridbet-engine/internal/wager-service/repo"
)

// Store é o subconjunto do document store que o ledger usa
type Store interface {
	repo.AccountStore
	repo.AuditStore
}

// Hooks conecta métricas sem acoplar o pacote ao Prometheus
type Hooks struct {
	OnAdjust       func(result string) // ok | insufficient | error
	OnAuditFailure func()
}

// Result é o resultado de um ajuste. Em saldo insuficiente Success é false
// e NewBalance traz o saldo atual inalterado.
type Result struct {
	Success         bool
	PreviousBalance decimal.Decimal
	NewBalance      decimal.Decimal
}

type Ledger struct {
	store Store
	log   *zap.Logger
	hooks Hooks
}

func New(store Store, log *zap.Logger, hooks Hooks) *Ledger {
	return &Ledger{store: store, log: log, hooks: hooks}
}

// AdjustBalance aplica delta com piso em zero. relatedID vai para a auditoria.
// Saldo insuficiente volta Result{Success:false} junto com repo.ErrInsufficientFunds.
func (l *Ledger) AdjustBalance(ctx context.Context, wallet string, delta decimal.Decimal, reason, relatedID string) (Result, error) {
	prev, next, err := l.store.IncrementBalance(ctx, wallet, delta)
	switch {
	case errors.Is(err, repo.ErrInsufficientFunds):
		l.hook("insufficient")
		l.log.Info("insufficient balance",
			zap.String("wallet", wallet),
			zap.String("delta", delta.String()),
			zap.String("balance", next.String()),
			zap.String("reason", reason))
		return Result{PreviousBalance: prev, NewBalance: next}, err
	case err != nil:
		l.hook("error")
		return Result{}, fmt.Errorf("adjust balance %s: %w", wallet, err)
	}

	l.hook("ok")
	l.Audit(ctx, repo.AuditEntry{
		WalletAddress: wallet,
		Action:        "balance_adjusted",
		Description:   reason,
		PreviousValue: prev.String(),
		NewValue:      next.String(),
		RelatedID:     relatedID,
	})
	return Result{Success: true, PreviousBalance: prev, NewBalance: next}, nil
}

// RecordResult incrementa as estatísticas da conta para uma aposta liquidada
func (l *Ledger) RecordResult(ctx context.Context, wallet string, betAmount, winAmount decimal.Decimal, isWin bool) error {
	d := repo.StatsDelta{BetAmount: betAmount, IsWin: isWin}
	if isWin {
		d.WinAmount = winAmount
	}
	if err := l.store.IncrementStats(ctx, wallet, d); err != nil {
		return fmt.Errorf("record result %s: %w", wallet, err)
	}
	return nil
}

// Audit grava a entrada em modo best-effort: falha é logada e contada,
// nunca propagada para a operação que originou o registro.
func (l *Ledger) Audit(ctx context.Context, e repo.AuditEntry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := l.store.AppendAudit(actx, e); err != nil {
		if l.hooks.OnAuditFailure != nil {
			l.hooks.OnAuditFailure()
		}
		l.log.Error("audit write failed",
			zap.String("action", e.Action),
			zap.String("wallet", e.WalletAddress),
			zap.String("related_id", e.RelatedID),
			zap.Error(err))
	}
}

func (l *Ledger) hook(result string) {
	if l.hooks.OnAdjust != nil {
		l.hooks.OnAdjust(result)
	}
}
