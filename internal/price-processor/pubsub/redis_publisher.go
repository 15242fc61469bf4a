package pubsub

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const ChannelPriceBroadcast = "price_ticks_broadcast"

// RedisBroadcaster publica ticks para o transporte externo de fan-out
type RedisBroadcaster struct {
	r *redis.Client
}

func NewRedisBroadcaster(r *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{r: r}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.r.Publish(ctx, channel, payload).Err()
}

// Payload padrão consumido pelo transporte de fan-out
type Update struct {
	Symbol  string      `json:"symbol"`
	Payload interface{} `json:"payload"`
}
