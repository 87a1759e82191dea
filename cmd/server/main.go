package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/sheikh-saqib/club-membership-ledger/internal/config"
	"github.com/sheikh-saqib/club-membership-ledger/internal/events/kafka"
	"github.com/sheikh-saqib/club-membership-ledger/internal/events/logsink"
	"github.com/sheikh-saqib/club-membership-ledger/internal/httpapi"
	interfaces "github.com/sheikh-saqib/club-membership-ledger/internal/interfaces"
	"github.com/sheikh-saqib/club-membership-ledger/internal/ledger"
	"github.com/sheikh-saqib/club-membership-ledger/internal/observability"
	"github.com/sheikh-saqib/club-membership-ledger/internal/pkg/logger"
	"github.com/sheikh-saqib/club-membership-ledger/internal/storage"
)

func main() {
	log, err := logger.New(config.GetEnv("APP_ENV", "development", nil))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load(log)
	if err != nil {
		log.Fatal("Invalid configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := observability.InitOTel(ctx, log, cfg.Otel, cfg.Env)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("Failed to flush traces", "error", err)
		}
	}()

	opener, err := storage.NewOpener(cfg.Store, log)
	if err != nil {
		log.Fatal("Failed to build store opener", "error", err)
	}

	var publisher interfaces.EventPublisher = logsink.NewPublisher(log)
	if len(cfg.Kafka.Brokers) > 0 {
		kp := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() {
			if err := kp.Close(); err != nil {
				log.Warn("Failed to close kafka publisher", "error", err)
			}
		}()
		publisher = kp
		log.Info("Publishing events to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	svc := ledger.NewLedger(opener, ledger.WithLogger(log), ledger.WithPublisher(publisher))
	if err := svc.Initialize(ctx); err != nil {
		log.Fatal("Failed to initialize ledger", "driver", cfg.Store.Driver, "error", err)
	}
	defer func() {
		if err := svc.Teardown(); err != nil {
			log.Error("Failed to tear down ledger", "error", err)
		}
	}()

	limiter := rate.NewLimiter(rate.Limit(cfg.HTTP.RateLimitPerSecond), cfg.HTTP.RateLimitBurst)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewHandler(svc, limiter, log).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server", "addr", cfg.HTTPAddr, "driver", cfg.Store.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error("Server stopped", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", "error", err)
	}
}
