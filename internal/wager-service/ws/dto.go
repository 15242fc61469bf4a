package ws

// ClientMsg é uma mensagem recebida do cliente WebSocket
type ClientMsg struct {
	Type   string `json:"type"`   // subscribe | unsubscribe | ping
	Symbol string `json:"symbol"` // requerido em subscribe/unsubscribe
}

// PriceUpdate é o envelope publicado pelo price-processor no pub/sub
type PriceUpdate struct {
	Symbol  string `json:"symbol"`
	Payload any    `json:"payload"`
}

type serverMsg struct {
	Type   string `json:"type"` // subscribed | unsubscribed | pong | error
	Symbol string `json:"symbol,omitempty"`
	Error  string `json:"error,omitempty"`
}
