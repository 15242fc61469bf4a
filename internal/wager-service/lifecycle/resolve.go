package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/gridbet-engine/internal/wager-service/repo"
	"github.com/radieske/gridbet-engine/pkg/contracts/events"
)

type ResolveRequest struct {
	WalletAddress   string
	WagerID         string
	PriceRangeMin   *float64
	PriceRangeMax   *float64
	PriceAtCrossing *float64 // entrada legada de ponto único
	ClientHint      string   // só vai para o log
}

// Outcome é o resultado de uma resolução. Numa repetição AlreadyResolved
// é true e Wager é o registro terminal gravado na primeira resolução.
type Outcome struct {
	Wager           repo.Wager
	NewBalance      decimal.Decimal
	IsWin           bool
	AlreadyResolved bool
	RangeAccepted   bool
}

// ResolutionRange decide a faixa de preço usada para resolver. A faixa do
// cliente só vale se for positiva, ordenada, com largura <= maxWidth e centro
// a no máximo maxDrift do preço do servidor; senão vale o ponto [server, server].
func ResolutionRange(serverPrice float64, clientMin, clientMax *float64, maxWidth, maxDrift float64) (lo, hi float64, accepted bool) {
	if clientMin == nil || clientMax == nil {
		return serverPrice, serverPrice, false
	}
	a, b := *clientMin, *clientMax
	if !finite(a) || !finite(b) || a <= 0 || b <= 0 || a > b {
		return serverPrice, serverPrice, false
	}
	center := (a + b) / 2
	if b-a > maxWidth || math.Abs(center-serverPrice) > maxDrift {
		return serverPrice, serverPrice, false
	}
	return a, b, true
}

// Touches aplica a regra de toque: vence se [lo, hi] intercepta a faixa da aposta.
// Aposta sem limites gravados nunca vence.
func Touches(w repo.Wager, lo, hi float64) bool {
	if !w.HasBounds() {
		return false
	}
	return lo <= *w.WinPriceMax && hi >= *w.WinPriceMin
}

func (m *Manager) ResolveWager(ctx context.Context, req ResolveRequest) (Outcome, error) {
	w, err := m.GetWager(ctx, req.WalletAddress, req.WagerID)
	if err != nil {
		return Outcome{}, err
	}
	if w.Status.Terminal() {
		return m.alreadyResolved(ctx, w)
	}

	price, err := m.oracle.GetPrice(ctx)
	if err != nil {
		return Outcome{}, err
	}

	rangeMin, rangeMax := req.PriceRangeMin, req.PriceRangeMax
	if (rangeMin == nil || rangeMax == nil) && req.PriceAtCrossing != nil {
		rangeMin, rangeMax = req.PriceAtCrossing, req.PriceAtCrossing
	}
	lo, hi, accepted := ResolutionRange(price.Price, rangeMin, rangeMax, m.grid.MaxRangeWidth, m.grid.MaxCenterDrift)
	if rangeMin != nil && !accepted {
		m.log.Info("client price range discarded",
			zap.String("wager_id", w.ID),
			zap.Float64("server_price", price.Price),
			zap.Float64p("client_min", rangeMin),
			zap.Float64p("client_max", rangeMax))
	}
	if req.ClientHint != "" {
		m.log.Debug("client hint", zap.String("wager_id", w.ID), zap.String("hint", req.ClientHint))
	}

	win := Touches(w, lo, hi)
	res := repo.Resolution{
		Status:            repo.StatusLost,
		ActualWin:         decimal.Zero,
		PriceAtResolution: (lo + hi) / 2,
		ResolvedAt:        m.now().UTC().Truncate(time.Microsecond),
	}
	if win {
		res.Status = repo.StatusWon
		res.ActualWin = w.PotentialWin
	}

	// daqui em diante não há cancelamento: transição e crédito andam juntos
	crit := context.WithoutCancel(ctx)
	changed, err := m.store.TransitionWager(crit, w.ID, res)
	if err != nil {
		return Outcome{}, fmt.Errorf("transition wager: %w", err)
	}
	if !changed {
		// outra chamada resolveu primeiro
		current, err := m.store.GetWager(crit, w.ID)
		if err != nil {
			return Outcome{}, fmt.Errorf("reload wager: %w", err)
		}
		return m.alreadyResolved(crit, current)
	}

	var balance decimal.Decimal
	if win {
		credit, err := m.ledger.AdjustBalance(crit, w.WalletAddress, w.PotentialWin, "wager_won", w.ID)
		if err != nil {
			m.log.Error("wager marked won but credit failed",
				zap.String("wager_id", w.ID), zap.String("wallet", w.WalletAddress),
				zap.String("amount", w.PotentialWin.String()), zap.Error(err))
			m.ledger.Audit(crit, repo.AuditEntry{
				WalletAddress: w.WalletAddress,
				Action:        "wager_credit_failed",
				Description:   "credit of potential win failed after transition to won",
				NewValue:      w.PotentialWin.String(),
				RelatedID:     w.ID,
			})
			return Outcome{}, fmt.Errorf("credit winnings for %s: %w", w.ID, err)
		}
		balance = credit.NewBalance
	} else if acc, err := m.store.GetAccount(crit, w.WalletAddress); err == nil {
		balance = acc.Balance
	}

	if err := m.ledger.RecordResult(crit, w.WalletAddress, w.Amount, w.PotentialWin, win); err != nil {
		m.log.Error("record result failed", zap.String("wager_id", w.ID), zap.Error(err))
	}
	m.ledger.Audit(crit, repo.AuditEntry{
		WalletAddress: w.WalletAddress,
		Action:        "wager_resolved",
		Description:   fmt.Sprintf("price_at_resolution=%.6f range=[%.6f,%.6f]", res.PriceAtResolution, lo, hi),
		PreviousValue: string(repo.StatusPending),
		NewValue:      string(res.Status),
		RelatedID:     w.ID,
	})

	// devolve o registro como gravado para repetições serem idênticas
	stored, err := m.store.GetWager(crit, w.ID)
	if err != nil {
		m.log.Warn("reload resolved wager failed", zap.String("wager_id", w.ID), zap.Error(err))
		at := res.ResolvedAt
		stored = w
		stored.Status, stored.ActualWin, stored.PriceAtResolution, stored.ResolvedAt =
			res.Status, res.ActualWin, res.PriceAtResolution, &at
	}

	m.log.Info("wager resolved",
		zap.String("wager_id", w.ID),
		zap.String("status", string(res.Status)),
		zap.Float64("server_price", price.Price),
		zap.Bool("client_range", accepted),
		zap.Bool("stale_price", price.Stale))
	if m.hooks.OnResolved != nil {
		m.hooks.OnResolved(string(res.Status))
	}
	m.publish(crit, "wager_resolved", func(ctx context.Context) error {
		return m.pub.PublishWagerResolved(ctx, events.WagerResolved{
			WagerID:           w.ID,
			WalletAddress:     w.WalletAddress,
			Status:            string(res.Status),
			ActualWin:         res.ActualWin.String(),
			PriceAtResolution: res.PriceAtResolution,
			Ts:                res.ResolvedAt,
		})
	})

	return Outcome{Wager: stored, NewBalance: balance, IsWin: win, RangeAccepted: accepted}, nil
}

func (m *Manager) alreadyResolved(ctx context.Context, w repo.Wager) (Outcome, error) {
	out := Outcome{Wager: w, IsWin: w.Status == repo.StatusWon, AlreadyResolved: true}
	acc, err := m.store.GetAccount(ctx, w.WalletAddress)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return Outcome{}, fmt.Errorf("load account: %w", err)
	}
	out.NewBalance = acc.Balance
	return out, nil
}
