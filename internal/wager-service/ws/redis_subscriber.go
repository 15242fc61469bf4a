package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StartRedisSubscriber escuta o canal de broadcast do price-processor e repassa
// cada atualização para o hub. Encerra junto com ctx.
func StartRedisSubscriber(ctx context.Context, r *redis.Client, channel string, hub *Hub, log *zap.Logger) {
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				Dispatch(hub, []byte(msg.Payload), log)
			}
		}
	}()
}

// Dispatch decodifica um payload do pub/sub e faz o broadcast
func Dispatch(hub *Hub, payload []byte, log *zap.Logger) {
	var upd PriceUpdate
	if err := json.Unmarshal(payload, &upd); err != nil || upd.Symbol == "" {
		log.Warn("invalid price broadcast", zap.Error(err), zap.ByteString("payload", payload))
		return
	}
	hub.Broadcast(upd)
}
