package events

import "time"

// WagerPlaced é emitido após o débito e a persistência da aposta pendente.
type WagerPlaced struct {
	WagerID       string  `json:"wager_id"`
	WalletAddress string  `json:"wallet_address"`
	SessionID     string  `json:"session_id,omitempty"`
	Amount        string  `json:"amount"` // decimal em texto
	Multiplier    float64 `json:"multiplier"`
	PotentialWin  string  `json:"potential_win"`
	ColumnID      string  `json:"column_id"`
	YIndex        int     `json:"y_index"`
	WinPriceMin   float64 `json:"win_price_min"`
	WinPriceMax   float64 `json:"win_price_max"`
	TsUnixMs      int64   `json:"ts_unix_ms"`
}

// WagerResolved é emitido uma única vez, na transição pending -> won|lost.
type WagerResolved struct {
	WagerID           string    `json:"wager_id"`
	WalletAddress     string    `json:"wallet_address"`
	Status            string    `json:"status"`
	ActualWin         string    `json:"actual_win"`
	PriceAtResolution float64   `json:"price_at_resolution"`
	Ts                time.Time `json:"ts"`
}

// WagerCancelled é emitido pelo sweep administrativo após o reembolso.
type WagerCancelled struct {
	WagerID       string    `json:"wager_id"`
	WalletAddress string    `json:"wallet_address"`
	Refunded      string    `json:"refunded"`
	Reason        string    `json:"reason,omitempty"`
	Ts            time.Time `json:"ts"`
}
