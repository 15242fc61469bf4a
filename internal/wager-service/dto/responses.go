package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/gridbet-engine/internal/price-oracle/oracle"
	"github.com/radieske/gridbet-engine/internal/wager-service/repo"
)

type WagerSummary struct {
	BetID             string           `json:"betId"`
	SessionID         string           `json:"sessionId,omitempty"`
	Status            string           `json:"status"`
	Amount            decimal.Decimal  `json:"amount"`
	Multiplier        float64          `json:"multiplier"`
	PotentialWin      decimal.Decimal  `json:"potentialWin"`
	ActualWin         *decimal.Decimal `json:"actualWin,omitempty"`
	ColumnID          string           `json:"columnId"`
	YIndex            int              `json:"yIndex"`
	PriceAtBet        float64          `json:"priceAtBet"`
	PriceAtResolution *float64         `json:"priceAtResolution,omitempty"`
	WinPriceMin       *float64         `json:"winPriceMin,omitempty"`
	WinPriceMax       *float64         `json:"winPriceMax,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	ResolvedAt        *time.Time       `json:"resolvedAt,omitempty"`
}

// NewWagerSummary só preenche campos de resolução quando a aposta saiu de pending
func NewWagerSummary(w repo.Wager) WagerSummary {
	s := WagerSummary{
		BetID:        w.ID,
		SessionID:    w.SessionID,
		Status:       string(w.Status),
		Amount:       w.Amount,
		Multiplier:   w.Multiplier,
		PotentialWin: w.PotentialWin,
		ColumnID:     w.ColumnID,
		YIndex:       w.YIndex,
		PriceAtBet:   w.PriceAtBet,
		WinPriceMin:  w.WinPriceMin,
		WinPriceMax:  w.WinPriceMax,
		CreatedAt:    w.CreatedAt,
		ResolvedAt:   w.ResolvedAt,
	}
	if w.Status.Terminal() {
		actual, at := w.ActualWin, w.PriceAtResolution
		s.ActualWin, s.PriceAtResolution = &actual, &at
	}
	return s
}

type PlaceWagerResponse struct {
	Wager      WagerSummary    `json:"wager"`
	NewBalance decimal.Decimal `json:"newBalance"`
}

type ResolveWagerResponse struct {
	WagerSummary
	IsWin           bool            `json:"isWin"`
	AlreadyResolved bool            `json:"alreadyResolved,omitempty"`
	NewBalance      decimal.Decimal `json:"newBalance"`
}

type AccountResponse struct {
	WalletAddress string          `json:"walletAddress"`
	Balance       decimal.Decimal `json:"balance"`
	Status        string          `json:"status"`
	TotalBets     int64           `json:"totalBets"`
	TotalWagered  decimal.Decimal `json:"totalWagered"`
	TotalWon      decimal.Decimal `json:"totalWon"`
	TotalLost     decimal.Decimal `json:"totalLost"`
	TotalWins     int64           `json:"totalWins"`
	TotalLosses   int64           `json:"totalLosses"`
	BiggestWin    decimal.Decimal `json:"biggestWin"`
}

func NewAccountResponse(a repo.Account) AccountResponse {
	return AccountResponse{
		WalletAddress: a.WalletAddress,
		Balance:       a.Balance,
		Status:        string(a.Status),
		TotalBets:     a.TotalBets,
		TotalWagered:  a.TotalWagered,
		TotalWon:      a.TotalWon,
		TotalLost:     a.TotalLost,
		TotalWins:     a.TotalWins,
		TotalLosses:   a.TotalLosses,
		BiggestWin:    a.BiggestWin,
	}
}

type PriceResponse struct {
	oracle.PriceData
	History []oracle.PricePoint `json:"history,omitempty"`
}

type SweepResponse struct {
	RefundedCount int             `json:"refundedCount"`
	TotalRefunded decimal.Decimal `json:"totalRefunded"`
	TotalPending  int             `json:"totalPending"`
	Errors        []string        `json:"errors"`
}

type AdjustBalanceResponse struct {
	Success         bool            `json:"success"`
	PreviousBalance decimal.Decimal `json:"previousBalance"`
	NewBalance      decimal.Decimal `json:"newBalance"`
}

type ErrorResponse struct {
	Error     string           `json:"error"`
	Balance   *decimal.Decimal `json:"balance,omitempty"`
	Retryable bool             `json:"retryable,omitempty"`
}
