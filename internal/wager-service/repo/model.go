package repo

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status é o estado de uma aposta. Só pending é não terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusWon       Status = "won"
	StatusLost      Status = "lost"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

func (s Status) Terminal() bool { return s != StatusPending }

// AccountStatus controla quem pode apostar
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
	AccountBanned    AccountStatus = "banned"
)

// Account é a conta do jogador, chaveada pelo endereço da carteira.
// Saldo muda só via incremento atômico; estatísticas só são incrementadas.
type Account struct {
	WalletAddress string
	Balance       decimal.Decimal
	TotalBets     int64
	TotalWagered  decimal.Decimal
	TotalWon      decimal.Decimal
	TotalLost     decimal.Decimal
	TotalWins     int64
	TotalLosses   int64
	BiggestWin    decimal.Decimal
	Status        AccountStatus
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Wager é o modelo persistido de uma aposta.
// WinPriceMin/WinPriceMax nulos = registro legado sem limites (resolve como derrota).
type Wager struct {
	ID                string
	WalletAddress     string
	SessionID         string
	Amount            decimal.Decimal
	Multiplier        float64
	PotentialWin      decimal.Decimal
	ColumnID          string
	YIndex            int
	PriceAtBet        float64
	WinPriceMin       *float64
	WinPriceMax       *float64
	Status            Status
	ActualWin         decimal.Decimal
	PriceAtResolution float64
	CreatedAt         time.Time
	ResolvedAt        *time.Time
}

func (w Wager) HasBounds() bool { return w.WinPriceMin != nil && w.WinPriceMax != nil }

// Resolution é a única mutação permitida sobre uma aposta pendente
type Resolution struct {
	Status            Status
	ActualWin         decimal.Decimal
	PriceAtResolution float64
	ResolvedAt        time.Time
}

// StatsDelta descreve o incremento das estatísticas agregadas de uma conta
type StatsDelta struct {
	BetAmount decimal.Decimal
	WinAmount decimal.Decimal
	IsWin     bool
}

// AuditEntry é append-only e imutável
type AuditEntry struct {
	ID            int64
	WalletAddress string
	Action        string
	Description   string
	PreviousValue string
	NewValue      string
	RelatedID     string
	CreatedAt     time.Time
}
