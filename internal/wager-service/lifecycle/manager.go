// Package lifecycle orquestra colocação, resolução e cancelamento de apostas.
// Preço vem sempre do oráculo; dados do cliente são só dicas limitadas.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/gridbet-engine/internal/price-oracle/oracle"
	"github.com/radieske/gridbet-engine/internal/shared/config"
	"github.com/radieske/gridbet-engine/internal/wager-service/ledger"
	"github.com/radieske/gridbet-engine/internal/wager-service/odds"
	"github.com/radieske/gridbet-engine/internal/wager-service/repo"
	"github.com/radieske/gridbet-engine/pkg/contracts/events"
)

// PriceOracle é o que o manager precisa do oráculo
type PriceOracle interface {
	GetPrice(ctx context.Context) (oracle.PriceData, error)
}

// Publisher recebe os eventos de transição. Falha é logada, nunca propagada.
type Publisher interface {
	PublishWagerPlaced(ctx context.Context, e events.WagerPlaced) error
	PublishWagerResolved(ctx context.Context, e events.WagerResolved) error
	PublishWagerCancelled(ctx context.Context, e events.WagerCancelled) error
}

type Hooks struct {
	OnPlaced    func()
	OnResolved  func(status string)
	OnCancelled func()
}

type Deps struct {
	Store         repo.Store
	Ledger        *ledger.Ledger
	Oracle        PriceOracle
	Signer        *odds.Signer // nil = cotações assinadas não são verificadas
	Grid          config.GridConfig
	RequireSigned bool
	Publisher     Publisher // opcional
	Log           *zap.Logger
	Hooks         Hooks
	Now           func() time.Time
}

type Manager struct {
	store         repo.Store
	ledger        *ledger.Ledger
	oracle        PriceOracle
	signer        *odds.Signer
	grid          config.GridConfig
	requireSigned bool
	pub           Publisher
	log           *zap.Logger
	hooks         Hooks
	now           func() time.Time
}

func New(d Deps) *Manager {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Manager{
		store:         d.Store,
		ledger:        d.Ledger,
		oracle:        d.Oracle,
		signer:        d.Signer,
		grid:          d.Grid,
		requireSigned: d.RequireSigned,
		pub:           d.Publisher,
		log:           d.Log,
		hooks:         d.Hooks,
		now:           d.Now,
	}
}

// PlaceRequest são os dados de colocação. BasePrice, CellSize e PriceAtBet
// vêm do cliente e são conferidos contra o servidor.
type PlaceRequest struct {
	WalletAddress string
	SessionID     string
	Amount        decimal.Decimal
	Multiplier    float64
	ColumnID      string
	YIndex        int
	BasePrice     float64
	CellSize      float64
	PriceAtBet    float64
	Quote         *odds.Quote
}

type PlaceResult struct {
	Wager      repo.Wager
	NewBalance decimal.Decimal
}

// WinBounds traduz os limites verticais da célula yIndex em faixa de preço.
// yIndex cresce para baixo: a célula 0 fica logo abaixo do preço base.
func WinBounds(basePrice, cellSize, priceScale float64, yIndex int) (lo, hi float64) {
	hi = basePrice - float64(yIndex)*cellSize/priceScale
	lo = basePrice - float64(yIndex+1)*cellSize/priceScale
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi
}

// PriceIndex é o yIndex da célula que contém price, na grade ancorada em basePrice
func PriceIndex(basePrice, price, cellSize, priceScale float64) int {
	return int(math.Floor((basePrice - price) * priceScale / cellSize))
}

// multiplierSlack absorve o arredondamento em duas casas da cotação
const multiplierSlack = 0.01 + 1e-9

func (m *Manager) PlaceWager(ctx context.Context, req PlaceRequest) (PlaceResult, error) {
	if req.WalletAddress == "" {
		return PlaceResult{}, ErrUnauthorized
	}
	acc, err := m.store.GetAccount(ctx, req.WalletAddress)
	if errors.Is(err, repo.ErrNotFound) {
		return PlaceResult{}, fmt.Errorf("%w: no account for wallet", ErrUnauthorized)
	}
	if err != nil {
		return PlaceResult{}, fmt.Errorf("load account: %w", err)
	}
	if acc.Status != repo.AccountActive {
		return PlaceResult{}, ErrAccountSuspended
	}

	if err := m.validateStake(req); err != nil {
		return PlaceResult{}, err
	}
	if acc.Balance.LessThan(req.Amount) {
		return PlaceResult{}, &InsufficientFundsError{Balance: acc.Balance}
	}

	price, err := m.oracle.GetPrice(ctx)
	if err != nil {
		return PlaceResult{}, err
	}
	if err := m.validateHints(req, price.Price); err != nil {
		return PlaceResult{}, err
	}
	if err := m.validateOdds(req, price.Price); err != nil {
		return PlaceResult{}, err
	}

	// a partir do débito a operação não é mais cancelável
	crit := context.WithoutCancel(ctx)
	now := m.now().UTC().Truncate(time.Microsecond)
	lo, hi := WinBounds(req.BasePrice, m.grid.CellSize, m.grid.PriceScale, req.YIndex)
	w := repo.Wager{
		ID:            uuid.NewString(),
		WalletAddress: req.WalletAddress,
		SessionID:     req.SessionID,
		Amount:        req.Amount,
		Multiplier:    req.Multiplier,
		PotentialWin:  req.Amount.Mul(decimal.NewFromFloat(req.Multiplier)).Round(8),
		ColumnID:      req.ColumnID,
		YIndex:        req.YIndex,
		PriceAtBet:    price.Price,
		WinPriceMin:   &lo,
		WinPriceMax:   &hi,
		Status:        repo.StatusPending,
		CreatedAt:     now,
	}

	debit, err := m.ledger.AdjustBalance(crit, w.WalletAddress, w.Amount.Neg(), "wager_placed", w.ID)
	if errors.Is(err, repo.ErrInsufficientFunds) {
		return PlaceResult{}, &InsufficientFundsError{Balance: debit.NewBalance}
	}
	if err != nil {
		return PlaceResult{}, err
	}

	if err := m.store.InsertWager(crit, w); err != nil {
		m.log.Error("persist wager failed, reverting debit",
			zap.String("wager_id", w.ID), zap.String("wallet", w.WalletAddress), zap.Error(err))
		if _, rerr := m.ledger.AdjustBalance(crit, w.WalletAddress, w.Amount, "wager_place_rollback", w.ID); rerr != nil {
			m.log.Error("debit reversal failed", zap.String("wager_id", w.ID), zap.Error(rerr))
		}
		return PlaceResult{}, fmt.Errorf("persist wager: %w", err)
	}

	desc := fmt.Sprintf("amount=%s multiplier=%.2f potential_win=%s", w.Amount, w.Multiplier, w.PotentialWin)
	m.ledger.Audit(crit, repo.AuditEntry{
		WalletAddress: w.WalletAddress,
		Action:        "wager_placed",
		Description:   desc,
		NewValue:      string(repo.StatusPending),
		RelatedID:     w.ID,
	})
	m.log.Info("wager placed",
		zap.String("wager_id", w.ID),
		zap.String("wallet", w.WalletAddress),
		zap.String("amount", w.Amount.String()),
		zap.Float64("multiplier", w.Multiplier),
		zap.Float64("win_min", lo),
		zap.Float64("win_max", hi))
	if m.hooks.OnPlaced != nil {
		m.hooks.OnPlaced()
	}
	m.publish(crit, "wager_placed", func(ctx context.Context) error {
		return m.pub.PublishWagerPlaced(ctx, events.WagerPlaced{
			WagerID:       w.ID,
			WalletAddress: w.WalletAddress,
			SessionID:     w.SessionID,
			Amount:        w.Amount.String(),
			Multiplier:    w.Multiplier,
			PotentialWin:  w.PotentialWin.String(),
			ColumnID:      w.ColumnID,
			YIndex:        w.YIndex,
			WinPriceMin:   lo,
			WinPriceMax:   hi,
		})
	})

	return PlaceResult{Wager: w, NewBalance: debit.NewBalance}, nil
}

func (m *Manager) validateStake(req PlaceRequest) error {
	g := m.grid
	if req.Amount.LessThan(decimal.NewFromFloat(g.MinBet)) || req.Amount.GreaterThan(decimal.NewFromFloat(g.MaxBet)) {
		return fmt.Errorf("%w: %s not in [%v, %v]", ErrAmountOutOfRange, req.Amount, g.MinBet, g.MaxBet)
	}
	if !finite(req.Multiplier) || req.Multiplier < g.MinMultiplier || req.Multiplier > g.MaxMultiplier {
		return fmt.Errorf("%w: %v not in [%v, %v]", ErrMultiplierOutOfRange, req.Multiplier, g.MinMultiplier, g.MaxMultiplier)
	}
	if req.ColumnID == "" {
		return fmt.Errorf("%w: columnId is required", ErrInvalidInput)
	}

	if req.Quote == nil {
		if m.requireSigned {
			return fmt.Errorf("%w: signed odds required", ErrOddsRejected)
		}
		return nil
	}
	if m.signer == nil {
		return fmt.Errorf("%w: odds verification unavailable", ErrOddsRejected)
	}
	if err := m.signer.VerifyQuote(*req.Quote, req.Multiplier, req.YIndex); err != nil {
		return fmt.Errorf("%w: %w", ErrOddsRejected, err)
	}
	return nil
}

func (m *Manager) validateHints(req PlaceRequest, serverPrice float64) error {
	g := m.grid
	if math.Abs(req.CellSize-g.CellSize) > 1e-6 {
		return fmt.Errorf("%w: cellSize %v does not match %v", ErrInvalidInput, req.CellSize, g.CellSize)
	}
	if !finite(req.BasePrice) || req.BasePrice <= 0 ||
		!oracle.ValidateClientPrice(req.BasePrice, serverPrice, g.BasePriceTolerancePct) {
		return fmt.Errorf("%w: basePrice too far from server price", ErrInvalidInput)
	}
	if req.PriceAtBet != 0 && (!finite(req.PriceAtBet) ||
		!oracle.ValidateClientPrice(req.PriceAtBet, serverPrice, g.BasePriceTolerancePct)) {
		return fmt.Errorf("%w: priceAtBet too far from server price", ErrInvalidInput)
	}
	return nil
}

// validateOdds confere o multiplicador contra a curva no preço do servidor.
// Sem cotação o valor tem que bater com a curva. Com cotação assinada o preço
// pode ter andado uma célula durante a validade, e esse é o teto aceito.
func (m *Manager) validateOdds(req PlaceRequest, serverPrice float64) error {
	g := m.grid
	cur := PriceIndex(req.BasePrice, serverPrice, g.CellSize, g.PriceScale)
	if req.Quote == nil {
		want := odds.Quoted(g, req.YIndex, cur)
		if math.Abs(req.Multiplier-want) > multiplierSlack {
			return fmt.Errorf("%w: multiplier %.2f does not match %.2f", ErrOddsRejected, req.Multiplier, want)
		}
		return nil
	}
	dist := req.YIndex - cur
	if dist < 0 {
		dist = -dist
	}
	ceiling := odds.Quoted(g, cur+dist+1, cur)
	if req.Multiplier > ceiling+multiplierSlack {
		return fmt.Errorf("%w: multiplier %.2f above %.2f for current price", ErrOddsRejected, req.Multiplier, ceiling)
	}
	return nil
}

// GetWager devolve a aposta se pertencer à carteira
func (m *Manager) GetWager(ctx context.Context, wallet, id string) (repo.Wager, error) {
	if wallet == "" {
		return repo.Wager{}, ErrUnauthorized
	}
	w, err := m.store.GetWager(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return repo.Wager{}, ErrNotFound
	}
	if err != nil {
		return repo.Wager{}, err
	}
	if w.WalletAddress != wallet {
		return repo.Wager{}, ErrForbidden
	}
	return w, nil
}

func (m *Manager) publish(ctx context.Context, kind string, fn func(context.Context) error) {
	if m.pub == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := fn(pctx); err != nil {
		m.log.Warn("publish event failed", zap.String("event", kind), zap.Error(err))
	}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
