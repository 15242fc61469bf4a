package source

import (
	"context"
	"fmt"
	"time"

	"github.com/radieske/gridbet-engine/pkg/contracts/events"
)

// TickReader é o que a fonte precisa do cache de ticks
type TickReader interface {
	GetLatest(ctx context.Context, symbol string) (events.PriceTick, error)
}

// RedisSource lê o último tick gravado pelo price-processor-worker
type RedisSource struct {
	ticks  TickReader
	symbol string
	maxAge time.Duration
	now    func() time.Time
}

// NewRedisSource recusa ticks mais velhos que maxAge
func NewRedisSource(ticks TickReader, symbol string, maxAge time.Duration) *RedisSource {
	return &RedisSource{ticks: ticks, symbol: symbol, maxAge: maxAge, now: time.Now}
}

func (s *RedisSource) Name() string { return "redis" }

func (s *RedisSource) Fetch(ctx context.Context) (float64, error) {
	t, err := s.ticks.GetLatest(ctx, s.symbol)
	if err != nil {
		return 0, err
	}
	if age := s.now().Sub(time.UnixMilli(t.TsUnixMs)); s.maxAge > 0 && age > s.maxAge {
		return 0, fmt.Errorf("tick too old: %s", age)
	}
	return t.Price, nil
}
