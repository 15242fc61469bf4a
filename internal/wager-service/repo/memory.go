package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type memAccount struct {
	mu  sync.Mutex // serializa incrementos da carteira
	acc Account
}

// Memory é um Store em processo usado em dev local e nos testes.
// Incrementos de saldo são serializados por carteira; a transição de aposta
// é um compare-and-set sob o lock do mapa.
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]*memAccount
	wagers   map[string]Wager
	audit    []AuditEntry

	// AuditErr, se setado, faz AppendAudit falhar
	AuditErr error
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		accounts: map[string]*memAccount{},
		wagers:   map[string]Wager{},
		now:      time.Now,
	}
}

// Seed cria ou sobrescreve uma conta ativa com o saldo informado
func (m *Memory) Seed(wallet string, balance decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.accounts[wallet] = &memAccount{acc: Account{
		WalletAddress: wallet,
		Balance:       balance,
		Status:        AccountActive,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) entry(wallet string) (*memAccount, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.accounts[wallet]
	return e, ok
}

func (m *Memory) GetAccount(_ context.Context, wallet string) (Account, error) {
	e, ok := m.entry(wallet)
	if !ok {
		return Account{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acc, nil
}

func (m *Memory) GetOrCreateAccount(ctx context.Context, wallet string) (Account, error) {
	m.mu.Lock()
	if _, ok := m.accounts[wallet]; !ok {
		now := m.now()
		m.accounts[wallet] = &memAccount{acc: Account{
			WalletAddress: wallet,
			Status:        AccountActive,
			Version:       1,
			CreatedAt:     now,
			UpdatedAt:     now,
		}}
	}
	m.mu.Unlock()
	return m.GetAccount(ctx, wallet)
}

func (m *Memory) SetAccountStatus(_ context.Context, wallet string, status AccountStatus) error {
	e, ok := m.entry(wallet)
	if !ok {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.acc.Status = status
	e.acc.UpdatedAt = m.now()
	return nil
}

func (m *Memory) IncrementBalance(_ context.Context, wallet string, delta decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	e, ok := m.entry(wallet)
	if !ok {
		return decimal.Zero, decimal.Zero, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.acc.Balance
	next := prev.Add(delta)
	if next.IsNegative() {
		return prev, prev, ErrInsufficientFunds
	}
	e.acc.Balance = next
	e.acc.Version++
	e.acc.UpdatedAt = m.now()
	return prev, next, nil
}

func (m *Memory) IncrementStats(_ context.Context, wallet string, d StatsDelta) error {
	e, ok := m.entry(wallet)
	if !ok {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	a := &e.acc
	a.TotalBets++
	a.TotalWagered = a.TotalWagered.Add(d.BetAmount)
	if d.IsWin {
		a.TotalWins++
		a.TotalWon = a.TotalWon.Add(d.WinAmount)
		if d.WinAmount.GreaterThan(a.BiggestWin) {
			a.BiggestWin = d.WinAmount
		}
	} else {
		a.TotalLosses++
		a.TotalLost = a.TotalLost.Add(d.BetAmount)
	}
	a.UpdatedAt = m.now()
	return nil
}

func (m *Memory) InsertWager(_ context.Context, w Wager) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.wagers[w.ID]; ok {
		return ErrDuplicate
	}
	m.wagers[w.ID] = w
	return nil
}

func (m *Memory) GetWager(_ context.Context, id string) (Wager, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.wagers[id]
	if !ok {
		return Wager{}, ErrNotFound
	}
	return w, nil
}

func (m *Memory) TransitionWager(_ context.Context, id string, r Resolution) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wagers[id]
	if !ok {
		return false, ErrNotFound
	}
	if w.Status != StatusPending {
		return false, nil
	}
	at := r.ResolvedAt
	w.Status = r.Status
	w.ActualWin = r.ActualWin
	w.PriceAtResolution = r.PriceAtResolution
	w.ResolvedAt = &at
	m.wagers[id] = w
	return true, nil
}

func (m *Memory) ListPending(_ context.Context, createdBefore time.Time) ([]Wager, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Wager
	for _, w := range m.wagers {
		if w.Status != StatusPending {
			continue
		}
		if !createdBefore.IsZero() && !w.CreatedAt.Before(createdBefore) {
			continue
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) AppendAudit(_ context.Context, e AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AuditErr != nil {
		return m.AuditErr
	}
	e.ID = int64(len(m.audit) + 1)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.now()
	}
	m.audit = append(m.audit, e)
	return nil
}

// Audit devolve uma cópia do log
func (m *Memory) Audit() []AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]AuditEntry(nil), m.audit...)
}
