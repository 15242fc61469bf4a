package dto

import "github.com/shopspring/decimal"

type PlaceWagerRequest struct {
	SessionID  string          `json:"sessionId"`
	Amount     decimal.Decimal `json:"amount"`
	Multiplier float64         `json:"multiplier"`
	ColumnID   string          `json:"columnId"`
	YIndex     int             `json:"yIndex"`
	BasePrice  float64         `json:"basePrice"`
	CellSize   float64         `json:"cellSize"`
	PriceAtBet float64         `json:"priceAtBet"`

	// cotação assinada (opcional, obrigatória com REQUIRE_SIGNED_ODDS)
	OddsID    string `json:"oddsId,omitempty"`
	Signature string `json:"signature,omitempty"`
	ColumnX   *int   `json:"columnX,omitempty"`
}

type ResolveWagerRequest struct {
	PriceRangeMin   *float64 `json:"priceRangeMin,omitempty"`
	PriceRangeMax   *float64 `json:"priceRangeMax,omitempty"`
	PriceAtCrossing *float64 `json:"priceAtCrossing,omitempty"` // legado
	ClientHint      string   `json:"clientHint,omitempty"`      // só debug
}

type RefundStaleRequest struct {
	MaxAgeMinutes int `json:"maxAgeMinutes"` // 0 = todas
}

type AdjustBalanceRequest struct {
	Delta  decimal.Decimal `json:"delta"`
	Reason string          `json:"reason"`
}
