package events

// Evento publicado no tópico "price_ticks" a cada tick do feed
type PriceTick struct {
	Symbol   string  `json:"symbol"`
	Price    float64 `json:"price"`
	TsUnixMs int64   `json:"ts_unix_ms"`
	Source   string  `json:"source"`
}
