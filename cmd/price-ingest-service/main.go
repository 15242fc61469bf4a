package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/gridbet-engine/internal/price-oracle/publisher"
	"github.com/radieske/gridbet-engine/internal/price-oracle/stream"
	"github.com/radieske/gridbet-engine/internal/shared/config"
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

	log.Info("kafka brokers", zap.String("brokers", cfg.KafkaBrokers))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Kafka publisher do tópico de ticks
	pub, err := publisher.NewKafkaPublisher(cfg.Brokers(), cfg.TopicPriceTicks, cfg.Env, log)
	if err != nil {
		log.Fatal("kafka publisher", zap.Error(err))
	}
	defer pub.Close()

	published := prometheus.NewCounter(prometheus.CounterOpts{Name: "price_ingest_ticks_published_total", Help: "ticks publicados no Kafka"})
	failed := prometheus.NewCounter(prometheus.CounterOpts{Name: "price_ingest_publish_errors_total", Help: "falhas ao publicar tick"})
	reconnects := prometheus.NewCounter(prometheus.CounterOpts{Name: "price_stream_reconnects_total", Help: "tentativas de reconexão do stream de preço"})
	prometheus.MustRegister(published, failed, reconnects)

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, nil)
	defer metricsSrv.Close()

	ws := &stream.WSClient{
		URL:         cfg.FeedWSURL,
		Symbol:      cfg.PriceSymbol,
		Log:         log,
		OnReconnect: reconnects.Inc,
		Sinks: []stream.Sink{func(ctx context.Context, t events.PriceTick) {
			if err := pub.Publish(ctx, t); err != nil {
				failed.Inc()
				return
			}
			published.Inc()
		}},
	}

	log.Info("price-ingest started", zap.String("feed", cfg.FeedWSURL), zap.String("topic", cfg.TopicPriceTicks))
	if err := ws.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		// reconexões esgotadas: o orquestrador reinicia o processo
		log.Fatal("price stream stopped", zap.Error(err))
	}
	log.Info("price-ingest stopped")
}
