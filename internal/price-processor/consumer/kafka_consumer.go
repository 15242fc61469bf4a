package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/gridbet-engine/pkg/contracts/events"
)

// MessageReader é o subconjunto do kafka.Reader usado pelo processor
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// TickStore guarda o último tick (Redis em produção)
type TickStore interface {
	SetLatest(ctx context.Context, t events.PriceTick) error
}

// Processor consome ticks do Kafka, atualiza o último preço e dispara o broadcast
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Processor struct {
	Log    *zap.Logger
	Reader MessageReader
	Store  TickStore

	OnConsumed   func()       // métricas (counter++)
	OnCached     func()       // métricas
	OnError      func(string) // métricas por fase
	OnAfterCache func(events.PriceTick)
	ErrorBackoff time.Duration
}

// Run inicia o loop principal de consumo e processamento das mensagens Kafka
func (p *Processor) Run(ctx context.Context) error {
	backoff := p.ErrorBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.failed("read")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		var tick events.PriceTick
		if err := json.Unmarshal(m.Value, &tick); err != nil || tick.Price <= 0 || tick.Symbol == "" {
			p.Log.Warn("invalid price tick", zap.Error(err), zap.ByteString("value", m.Value))
			p.failed("decode")
			continue
		}

		if err := p.Store.SetLatest(ctx, tick); err != nil {
			p.Log.Warn("redis set failed", zap.Error(err))
			p.failed("cache")
			continue
		}
		if p.OnCached != nil {
			p.OnCached()
		}
		if p.OnAfterCache != nil {
			p.OnAfterCache(tick)
		}
	}
}

func (p *Processor) failed(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
