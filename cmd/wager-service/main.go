package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	pcache "github.com/radieske/gridbet-engine/internal/price-oracle/cache"
	"github.com/radieske/gridbet-engine/internal/price-oracle/oracle"
	"github.com/radieske/gridbet-engine/internal/price-oracle/source"
	"github.com/radieske/gridbet-engine/internal/price-oracle/stream"
	"github.com/radieske/gridbet-engine/internal/shared/auth"
	sharedcache "github.com/radieske/gridbet-engine/internal/shared/cache"
	"github.com/radieske/gridbet-engine/internal/shared/config"
	"github.com/radieske/gridbet-engine/internal/shared/db"
	"github.com/radieske/gridbet-engine/internal/shared/kafka"
	"github.com/radieske/gridbet-engine/internal/shared/logger"
	"github.com/radieske/gridbet-engine/internal/shared/metrics"
	whttp "github.com/radieske/gridbet-engine/internal/wager-service/http"
	"github.com/radieske/gridbet-engine/internal/wager-service/ledger"
	"github.com/radieske/gridbet-engine/internal/wager-service/lifecycle"
	"github.com/radieske/gridbet-engine/internal/wager-service/odds"
	"github.com/radieske/gridbet-engine/internal/wager-service/producer"
	"github.com/radieske/gridbet-engine/internal/wager-service/repo"
	"github.com/radieske/gridbet-engine/internal/wager-service/ws"
	"github.com/radieske/gridbet-engine/pkg/contracts/events"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	grid, err := config.LoadGrid(cfg.GridConfigPath)
	if err != nil {
		log.Fatal("grid config", zap.Error(err))
	}
	if cfg.AuthJWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	signer, err := odds.NewSigner(cfg.OddsSigningSecret, grid)
	if err != nil {
		log.Fatal("odds signer", zap.Error(err))
	}

	// Postgres
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	store := repo.NewPostgres(pg)
	if err := store.Migrate(ctx); err != nil {
		log.Fatal("postgres migrate", zap.Error(err))
	}

	// Redis é opcional: sem ele a fonte "redis" não pode estar em PRICE_SOURCES
	var (
		rdb   *redis.Client
		ticks source.TickReader
	)
	if cfg.RedisAddr != "" {
		rdb, err = sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Warn("redis unavailable, continuing without redis price source", zap.Error(err))
		} else {
			defer rdb.Close()
			ticks = pcache.NewRedisCache(rdb, time.Minute)
		}
	}

	m := metrics.NewEngine(prometheus.DefaultRegisterer)

	// Oráculo de preço
	sources, err := source.FromSpecs(cfg.PriceSources, cfg.PriceSymbol, ticks, &http.Client{Timeout: cfg.PriceFetchTimeout})
	if err != nil {
		log.Fatal("price sources", zap.Error(err))
	}
	orc := oracle.New(log, sources, oracle.Options{
		TTL:     cfg.PriceCacheTTL,
		Timeout: cfg.PriceFetchTimeout,
		Hooks: oracle.Hooks{
			OnCacheHit: m.PriceCacheHits.Inc,
			OnFetch:    func(src, result string) { m.PriceFetches.WithLabelValues(src, result).Inc() },
			OnStale:    m.PriceStale.Inc,
		},
	})
	defer orc.Close()

	// Stream em processo alimenta o cache do oráculo sem ida ao upstream
	if cfg.PriceStreamURL != "" {
		ws := &stream.WSClient{
			URL:         cfg.PriceStreamURL,
			Symbol:      cfg.PriceSymbol,
			Log:         log,
			OnReconnect: m.StreamReconnect.Inc,
			Sinks: []stream.Sink{func(_ context.Context, t events.PriceTick) {
				orc.Observe(oracle.PricePoint{Price: t.Price, Timestamp: time.UnixMilli(t.TsUnixMs), Source: "stream"})
			}},
		}
		go func() {
			if err := ws.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("price stream stopped", zap.Error(err))
			}
		}()
	}

	// Kafka writer para eventos do ciclo de vida das apostas
	writer := kafka.NewWriter(cfg.Brokers())
	defer writer.Close()
	pub := producer.NewKafkaPublisher(writer, producer.Topics{
		Placed:    cfg.TopicWagerPlaced,
		Resolved:  cfg.TopicWagerResolved,
		Cancelled: cfg.TopicWagerCancelled,
	})

	led := ledger.New(store, log, ledger.Hooks{
		OnAdjust:       func(result string) { m.LedgerAdjusts.WithLabelValues(result).Inc() },
		OnAuditFailure: m.AuditFailures.Inc,
	})
	mgr := lifecycle.New(lifecycle.Deps{
		Store:         store,
		Ledger:        led,
		Oracle:        orc,
		Signer:        signer,
		Grid:          grid,
		RequireSigned: cfg.RequireSignedOdds,
		Publisher:     pub,
		Log:           log,
		Hooks: lifecycle.Hooks{
			OnPlaced:    m.WagersPlaced.Inc,
			OnResolved:  func(status string) { m.WagersResolved.WithLabelValues(status).Inc() },
			OnCancelled: m.WagersCancelled.Inc,
		},
	})

	// Fan-out dos ticks publicados pelo price-processor
	var priceStream http.Handler
	if rdb != nil {
		hub := ws.NewHub(log, nil)
		ws.StartRedisSubscriber(ctx, rdb, cfg.RedisPubSubChannel, hub, log)
		priceStream = hub
	}

	api := whttp.NewServer(whttp.Deps{
		Log:         log,
		Manager:     mgr,
		Ledger:      led,
		Accounts:    store,
		Prices:      orc,
		Signer:      signer,
		Grid:        grid,
		Verifier:    auth.NewVerifier(cfg.AuthJWTSecret),
		PriceStream: priceStream,
	})

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, func(ctx context.Context) error {
		if err := store.Ping(ctx); err != nil {
			return err
		}
		if rdb != nil {
			return rdb.Ping(ctx).Err()
		}
		return nil
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("wager-service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("wager-service stopped")
}
