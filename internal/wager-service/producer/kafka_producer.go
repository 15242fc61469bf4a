package producer

import (
	"context"
	"time"

	"github.com/radieske/gridbet-engine/internal/shared/kafka"
	"github.com/radieske/gridbet-engine/pkg/contracts/events"
	"github.com/radieske/gridbet-engine/pkg/contracts/topics"
)

// KafkaPublisher publica os eventos do ciclo de vida das apostas.
// A chave é a carteira, então os eventos de um jogador ficam ordenados.
type KafkaPublisher struct {
	Writer kafka.MessageWriter
	Topics Topics
}

type Topics struct {
	Placed    string
	Resolved  string
	Cancelled string
}

func DefaultTopics() Topics {
	return Topics{Placed: topics.WagerPlaced, Resolved: topics.WagerResolved, Cancelled: topics.WagerCancelled}
}

func NewKafkaPublisher(w kafka.MessageWriter, t Topics) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, Topics: t}
}

func (p *KafkaPublisher) PublishWagerPlaced(ctx context.Context, e events.WagerPlaced) error {
	if e.TsUnixMs == 0 {
		e.TsUnixMs = time.Now().UnixMilli()
	}
	return kafka.WriteJSON(ctx, p.Writer, p.Topics.Placed, e.WalletAddress, e)
}

func (p *KafkaPublisher) PublishWagerResolved(ctx context.Context, e events.WagerResolved) error {
	return kafka.WriteJSON(ctx, p.Writer, p.Topics.Resolved, e.WalletAddress, e)
}

func (p *KafkaPublisher) PublishWagerCancelled(ctx context.Context, e events.WagerCancelled) error {
	return kafka.WriteJSON(ctx, p.Writer, p.Topics.Cancelled, e.WalletAddress, e)
}
