package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-voucher-orders/internal/config"
	"github.com/ariefcatur/go-voucher-orders/internal/fulfillment"
	"github.com/ariefcatur/go-voucher-orders/internal/httpx"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		logger.Fatal("telemetry", zap.Error(err))
	}

	// Stores
	var (
		store orders.Store
		inbox notify.Store
	)
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
		store, inbox = &orders.Repo{DB: db}, &notify.Repo{DB: db}
	default:
		logger.Warn("using in-memory store, data is lost on restart")
		store, inbox = orders.NewMemoryStore(), notify.NewMemory()
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	cache := redisx.Cache{RDB: rdb}

	// Notification sink
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

	// Dispatcher
	var (
		dispatcher fulfillment.Dispatcher
		producers  []*kafkax.Producer
	)
	switch cfg.DispatchMode {
	case config.DispatchKafka:
		p := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicFulfillmentRequested, 1024, logger)
		p.Start(ctx)
		producers = append(producers, p)
		dispatcher = fulfillment.KafkaDispatcher{Producer: p, Service: cfg.ServiceName}
	default:
		portal := redeem.NewPortal(redeem.ChromeBrowser{Headless: cfg.Portal.Headless, ExecPath: cfg.Portal.ChromePath}, cfg.Portal, logger)
		dispatcher = fulfillment.InlineDispatcher{Runner: &fulfillment.Runner{
			Redeemer: portal, Sink: sink, Ledger: store, Escalator: esc, Log: logger,
		}}
	}

	orch := fulfillment.NewOrchestrator(store, dispatcher, esc, logger)
	orch.Service = cfg.ServiceName
	orch.Cache = cache
	if len(cfg.KafkaBrokers) > 0 {
		events := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCompleted, 1024, logger)
		events.Start(ctx)
		producers = append(producers, events)
		orch.Events = events
	}

	// HTTP
	router := httpx.NewRouter(logger, map[string]httpx.Pinger{"redis": cache.Ping})
	(&httpx.OrdersHandler{Store: store, Checkout: orch, Cache: cache, Log: logger}).Register(router)
	(&httpx.NotificationsHandler{Store: inbox, Log: logger}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr),
			zap.String("dispatch", cfg.DispatchMode), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	for _, p := range producers {
		p.Close() // tutup inbox -> flush & close writer
	}
	for _, p := range producers {
		p.WaitClosed()
	}
	cancel()
	if err := shutdownTracing(ctx2); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}
