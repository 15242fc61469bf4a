package stream

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/gridbet-engine/pkg/contracts/events"
)

const (
	baseDelay   = time.Second
	maxDelay    = 30 * time.Second
	growth      = 1.5
	MaxAttempts = 15
)

// ErrReconnectExhausted exige intervenção externa para religar o stream
var ErrReconnectExhausted = errors.New("price stream: reconnect attempts exhausted")

// Backoff devolve min(1s * 1.5^attempt, 30s)
func Backoff(attempt int) time.Duration {
	d := float64(baseDelay) * math.Pow(growth, float64(attempt))
	if d >= float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(d)
}

// Sink recebe cada tick válido lido do feed
type Sink func(ctx context.Context, t events.PriceTick)

// WSClient consome ticks de preço de um feed WebSocket e repassa para os sinks.
// Roda como tarefa em background; nunca é consultado no caminho das requisições.
type WSClient struct {
	URL    string      // URL do endpoint WebSocket do feed
	Symbol string      // símbolo assumido quando o feed não informa
	Log    *zap.Logger // Logger estruturado
	Sinks  []Sink

	OnReconnect func()                  // métricas
	Delay       func(int) time.Duration // nil = Backoff
	Dialer      *websocket.Dialer       // nil = websocket.DefaultDialer
}

// Run conecta e escuta até o contexto ser cancelado.
// A cada queda tenta reconectar com backoff exponencial; depois de MaxAttempts
// falhas seguidas desiste e devolve ErrReconnectExhausted.
func (c *WSClient) Run(ctx context.Context) error {
	delay := c.Delay
	if delay == nil {
		delay = Backoff
	}

	attempt := 0
	for {
		connected, err := c.connectAndListen(ctx)
		if ctx.Err() != nil {
			c.Log.Info("context canceled, stopping price stream")
			return nil
		}
		if connected {
			attempt = 0 // sessão estabelecida zera o contador
		}
		if attempt >= MaxAttempts {
			c.Log.Error("price stream gave up, requires intervention",
				zap.Int("attempts", attempt), zap.Error(err))
			return ErrReconnectExhausted
		}

		wait := delay(attempt)
		attempt++
		c.Log.Warn("price stream disconnected, reconnecting",
			zap.Error(err), zap.Int("attempt", attempt), zap.Duration("wait", wait))
		if c.OnReconnect != nil {
			c.OnReconnect()
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.Log.Info("context canceled, stopping price stream")
			return nil
		case <-timer.C:
		}
	}
}

// connectAndListen estabelece a conexão e processa mensagens até erro ou cancelamento.
// connected informa se o handshake chegou a completar.
func (c *WSClient) connectAndListen(ctx context.Context) (connected bool, err error) {
	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()
	c.Log.Info("connected to price feed", zap.String("url", c.URL))

	// ReadMessage não observa ctx: fecha a conexão no cancelamento
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || ctx.Err() != nil {
				return true, nil
			}
			return true, err
		}

		var tick events.PriceTick
		if err := json.Unmarshal(message, &tick); err != nil {
			c.Log.Warn("invalid price message", zap.Error(err))
			continue
		}
		if tick.Price <= 0 || math.IsInf(tick.Price, 0) || math.IsNaN(tick.Price) {
			continue
		}
		if tick.Symbol == "" {
			tick.Symbol = c.Symbol
		}
		if tick.TsUnixMs == 0 {
			tick.TsUnixMs = time.Now().UnixMilli()
		}

		for _, sink := range c.Sinks {
			sink(ctx, tick)
		}
	}
}
