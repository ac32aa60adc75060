package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-voucher-orders/internal/config"
	"github.com/ariefcatur/go-voucher-orders/internal/fulfillment"
	"github.com/ariefcatur/go-voucher-orders/internal/jobs"
	kafkax "github.com/ariefcatur/go-voucher-orders/internal/kafka"
	"github.com/ariefcatur/go-voucher-orders/internal/logging"
	"github.com/ariefcatur/go-voucher-orders/internal/notify"
	"github.com/ariefcatur/go-voucher-orders/internal/orders"
	"github.com/ariefcatur/go-voucher-orders/internal/postgres"
	"github.com/ariefcatur/go-voucher-orders/internal/redeem"
	"github.com/ariefcatur/go-voucher-orders/internal/redisx"
	"github.com/ariefcatur/go-voucher-orders/internal/telemetry"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("service", cfg.ServiceName+"-fulfillment"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, cfg.ServiceName+"-fulfillment")
	if err != nil {
		logger.Fatal("telemetry", zap.Error(err))
	}

	// worker selalu butuh Postgres: ledger dan inbox dibagi dengan API
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	store := &orders.Repo{DB: db}
	inbox := &notify.Repo{DB: db}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	var mailer notify.Mailer = notify.LogMailer{Log: logger}
	if cfg.SMTP.User != "" {
		mailer = notify.NewSMTPMailer(cfg.SMTP, logger)
	}
	tmpl, err := notify.ParseTemplates()
	if err != nil {
		logger.Fatal("templates", zap.Error(err))
	}
	sink := notify.NewSink(inbox, mailer, tmpl, notify.Support{
		Email:     cfg.SupportEmail,
		WhatsApp:  cfg.SupportWhatsApp,
		PortalURL: cfg.Portal.URL,
	}, cfg.OperatorEmail, logger)
	esc := &fulfillment.Escalator{Sink: sink, Log: logger}

	portal := redeem.NewPortal(redeem.ChromeBrowser{Headless: cfg.Portal.Headless, ExecPath: cfg.Portal.ChromePath}, cfg.Portal, logger)
	worker := &fulfillment.Worker{
		Runner: &fulfillment.Runner{Redeemer: portal, Sink: sink, Ledger: store, Escalator: esc, Log: logger},
		Dedup:  redisx.Cache{RDB: rdb},
		Log:    logger,
	}

	housekeeping := &jobs.Jobs{
		Inbox:     inbox,
		Ledger:    store,
		Reporter:  sink,
		Retention: cfg.NotificationRetention,
		StaleAge:  cfg.StaleAllocationAge,
		Timeout:   5 * time.Minute,
		Log:       logger,
		Now:       time.Now,
	}
	sched, err := housekeeping.Schedule(cfg.CronLocation)
	if err != nil {
		logger.Fatal("cron", zap.Error(err))
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.FulfillmentGroup, orders.TopicFulfillmentRequested, cfg.FulfillmentWorkers, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("fulfillment consumer started",
			zap.String("group", cfg.FulfillmentGroup),
			zap.String("topic", orders.TopicFulfillmentRequested),
			zap.Int("workers", cfg.FulfillmentWorkers))
		return cons.Start(gctx, worker.HandleFulfillmentRequested)
	})
	g.Go(func() error {
		sched.Start()
		<-gctx.Done()
		// tunggu job yang sedang jalan
		<-sched.Stop().Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("fulfillment exit", zap.Error(err))
	}
	logger.Info("shutting down...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(ctx2); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}
