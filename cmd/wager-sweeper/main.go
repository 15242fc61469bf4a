package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"github.com/radieske/gridbet-engine/internal/shared/config"
	"github.com/radieske/gridbet-engine/internal/shared/db"
	"github.com/radieske/gridbet-engine/internal/shared/kafka"
	"github.com/radieske/gridbet-engine/internal/shared/logger"
	"github.com/radieske/gridbet-engine/internal/wager-service/ledger"
	"github.com/radieske/gridbet-engine/internal/wager-service/lifecycle"
	"github.com/radieske/gridbet-engine/internal/wager-service/producer"
	"github.com/radieske/gridbet-engine/internal/wager-service/repo"
)

func main() {
	maxAge := flag.Duration("max-age", 10*time.Minute, "cancela apostas pending mais velhas que isso (0 = todas)")
	interval := flag.Duration("interval", 0, "repete a varredura nesse intervalo (0 = executa uma vez)")
	publish := flag.Bool("publish", true, "publica wager_cancelled no Kafka")
	flag.Parse()

	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "wager-sweeper"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	store := repo.NewPostgres(pg)

	deps := lifecycle.Deps{
		Store:  store,
		Ledger: ledger.New(store, log, ledger.Hooks{}),
		Log:    log,
	}
	if *publish {
		writer := kafka.NewWriter(cfg.Brokers())
		defer writer.Close()
		deps.Publisher = producer.NewKafkaPublisher(writer, producer.Topics{
			Placed:    cfg.TopicWagerPlaced,
			Resolved:  cfg.TopicWagerResolved,
			Cancelled: cfg.TopicWagerCancelled,
		})
	}
	mgr := lifecycle.New(deps)

	run := func() bool {
		res, err := mgr.CancelStalePending(ctx, *maxAge)
		if err != nil {
			log.Error("sweep failed", zap.Error(err))
			return false
		}
		printSummary(os.Stdout, *maxAge, res)
		return len(res.Errors) == 0
	}

	if *interval <= 0 {
		if !run() {
			os.Exit(1)
		}
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		run()
		select {
		case <-ctx.Done():
			log.Info("wager-sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

func printSummary(out io.Writer, maxAge time.Duration, res lifecycle.SweepResult) {
	table := tablewriter.NewWriter(out)
	table.Header("Max age", "Pending", "Refunded", "Total refunded", "Errors")
	table.Append(
		maxAge.String(),
		strconv.Itoa(res.TotalPending),
		strconv.Itoa(res.RefundedCount),
		res.TotalRefunded.String(),
		strconv.Itoa(len(res.Errors)),
	)
	table.Render()

	if len(res.Errors) == 0 {
		return
	}
	errs := tablewriter.NewWriter(out)
	errs.Header("Wager error")
	for _, e := range res.Errors {
		errs.Append(e)
	}
	errs.Render()
}
