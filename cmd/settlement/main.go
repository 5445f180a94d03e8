package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/events"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/fees"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/jurisdiction"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/repository"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/server"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/service"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/settlement"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/tax"
)

func main() {
	cfg := config.Load()

	logger := logging.New("settlement-service")
	defer logger.Sync()

	logger.Info("Starting settlement-service", logging.Fields{
		"port":           cfg.Server.Port,
		"failure_policy": string(cfg.Settlement.FailurePolicy),
		"cache_ttl":      cfg.Settlement.CacheTTL.String(),
	})

	db, err := initDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", logging.Fields{"error": err.Error()})
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := repository.NewBreakerStore(
		repository.NewPostgresConfigStore(db, logging.New("config-store")),
		cfg.CircuitBreaker,
		logging.New("config-store"),
	)

	bus := repository.NewRedisInvalidationBus(cfg.Redis, logging.New("invalidation-bus"))
	defer bus.Close()

	repoOpts := repository.RateRepositoryOptions{
		TTL:          cfg.Settlement.CacheTTL,
		QueryTimeout: cfg.Settlement.QueryTimeout,
		Metrics:      m,
		Logger:       logging.New("rate-repository"),
	}
	if cfg.Features.EnableCacheBroadcast {
		repoOpts.Broadcaster = bus
	}
	rates := repository.NewRateRepository(store, repoOpts)

	if cfg.Features.EnableCacheBroadcast {
		go func() {
			if err := bus.Subscribe(ctx, rates.InvalidateLocal); err != nil && ctx.Err() == nil {
				logger.Error("Cache invalidation subscriber stopped", logging.Fields{"error": err.Error()})
			}
		}()
	}

	resolver := jurisdiction.NewResolver(rates, logging.New("jurisdiction"))

	taxCalc := tax.NewCalculator(rates, resolver, tax.Options{
		Policy:        cfg.Settlement.FailurePolicy,
		EstimatedRate: cfg.Settlement.DefaultEstimatedTaxRate,
		Metrics:       m,
		Logger:        logging.New("tax-calculator"),
	})
	feeCalc := fees.NewCalculator(rates, resolver, fees.Options{
		Policy:  cfg.Settlement.FailurePolicy,
		Metrics: m,
		Logger:  logging.New("fee-calculator"),
	})
	settlementCalc := settlement.NewCalculator(feeCalc)

	paymentClient := clients.NewHTTPPaymentClient(cfg.PaymentService, logging.New("payment-client"))

	var publisher events.Publisher
	if cfg.Features.EnableSettlementEvents {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka, logging.New("event-publisher"))
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	checkoutService := service.NewCheckoutService(taxCalc, feeCalc, logging.New("checkout"))
	payoutService := service.NewPayoutService(settlementCalc, paymentClient, publisher, cfg, m, logging.New("payouts"))

	var eventConsumer *events.KafkaConsumer
	if cfg.Features.EnableConfigEvents {
		eventConsumer = events.NewKafkaConsumer(cfg.Kafka, rates, logging.New("config-events"))
		go func() {
			if err := eventConsumer.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("Event consumer failed", logging.Fields{"error": err.Error()})
			}
		}()
	}

	readiness := map[string]handlers.ReadinessCheck{
		"database": db.PingContext,
	}
	if cfg.Features.EnableCacheBroadcast {
		readiness["redis"] = bus.Ping
	}

	h := handlers.NewHandlers(handlers.Dependencies{
		Tax:        taxCalc,
		Fees:       feeCalc,
		Settlement: settlementCalc,
		Checkout:   checkoutService,
		Payouts:    payoutService,
		Cache:      rates,
		Readiness:  readiness,
	}, cfg)

	srv := server.New(h, cfg, m)

	go func() {
		logger.Info("Server starting", logging.Fields{
			"port":                     cfg.Server.Port,
			"enable_settlement_events": cfg.Features.EnableSettlementEvents,
			"enable_cache_broadcast":   cfg.Features.EnableCacheBroadcast,
			"enable_config_events":     cfg.Features.EnableConfigEvents,
		})
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", logging.Fields{"error": err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if eventConsumer != nil {
		eventConsumer.Stop()
	}
	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", logging.Fields{"error": err.Error()})
	}

	logger.Info("Server exited")
}

func initDatabase(cfg *config.Config, logger *logging.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	// TODO(TEAM-PLATFORM): Run migrations/ automatically in development
	logger.Info("Database connected", logging.Fields{
		"host": cfg.Database.Host,
		"name": cfg.Database.Name,
	})

	return db, nil
}
