package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/gridbet-engine/pkg/contracts/events"
)

// ErrNoTick indica que não há tick registrado para o símbolo
var ErrNoTick = errors.New("no tick cached")

// RedisCache guarda o último tick de preço por símbolo no Redis
// Client: cliente Redis
// TTL: tempo de expiração do registro
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisCache cria uma instância de cache Redis com TTL configurável
func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

// key gera a chave Redis do último tick de um símbolo
func key(symbol string) string { return "price:latest:" + symbol }

// SetLatest armazena o tick; ticks mais antigos que o armazenado são ignorados
func (r *RedisCache) SetLatest(ctx context.Context, t events.PriceTick) error {
	cur, err := r.GetLatest(ctx, t.Symbol)
	if err == nil && cur.TsUnixMs > t.TsUnixMs {
		return nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, key(t.Symbol), b, r.TTL).Err()
}

// GetLatest lê o último tick do símbolo
func (r *RedisCache) GetLatest(ctx context.Context, symbol string) (events.PriceTick, error) {
	var t events.PriceTick
	b, err := r.Client.Get(ctx, key(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return t, ErrNoTick
	}
	if err != nil {
		return t, err
	}
	return t, json.Unmarshal(b, &t)
}
