package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	pcache "github.com/radieske/gridbet-engine/internal/price-oracle/cache"
	"github.com/radieske/gridbet-engine/internal/price-processor/consumer"
	"github.com/radieske/gridbet-engine/internal/price-processor/pubsub"
	sharedcache "github.com/radieske/gridbet-engine/internal/shared/cache"
	"github.com/radieske/gridbet-engine/internal/shared/config"
	"github.com/radieske/gridbet-engine/internal/shared/kafka"
	"github.com/radieske/gridbet-engine/internal/shared/logger"
	"github.com/radieske/gridbet-engine/internal/shared/metrics"
	"github.com/radieske/gridbet-engine/pkg/contracts/events"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	redisClient, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Último tick vive pouco: preço velho não serve para liquidar aposta
	rcache := pcache.NewRedisCache(redisClient, 60*time.Second)

	reader := kafka.NewReader(cfg.Brokers(), cfg.TopicPriceTicks, "price-processor")
	defer reader.Close()

	// Métricas Prometheus para monitoramento do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "price_proc_messages_consumed_total", Help: "mensagens consumidas"})
	cached := prometheus.NewCounter(prometheus.CounterOpts{Name: "price_proc_cache_sets_total", Help: "sets no cache"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "price_proc_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, cached, errorsBy)

	broadcaster := pubsub.NewRedisBroadcaster(redisClient)
	channel := cfg.RedisPubSubChannel
	if channel == "" {
		channel = pubsub.ChannelPriceBroadcast
	}

	proc := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		Store:      rcache,
		OnConsumed: consumed.Inc,
		OnCached:   cached.Inc,
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },

		// Depois do cache, repassa o tick para o transporte de fan-out
		OnAfterCache: func(t events.PriceTick) {
			b, _ := json.Marshal(pubsub.Update{Symbol: t.Symbol, Payload: t})

			bctx, bcancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer bcancel()

			if err := broadcaster.Publish(bctx, channel, b); err != nil {
				log.Warn("price broadcast publish failed", zap.Error(err))
			}
		},
	}

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	defer metricsSrv.Close()

	log.Info("price-processor started", zap.String("topic", cfg.TopicPriceTicks))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("price-processor stopped")
}
