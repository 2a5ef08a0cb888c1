// cmd/loan-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"loanassist/internal/api"
	"loanassist/internal/common/aws"
	"loanassist/internal/common/config"
	"loanassist/internal/common/database"
	"loanassist/internal/common/logger"
	"loanassist/internal/common/observability"
	"loanassist/internal/engine"
	"loanassist/internal/services/documents"
	"loanassist/internal/services/events"
	"loanassist/internal/services/generation"
	"loanassist/internal/services/notification"
	"loanassist/internal/services/otp"
	"loanassist/internal/services/prediction"
	"loanassist/internal/services/search"
	"loanassist/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting loan assistant server...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("loan-server")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch, optional ---
	var esClient *database.ElasticsearchClient
	if len(cfg.Database.Elasticsearch.Addresses) > 0 || cfg.Database.Elasticsearch.URL != "" {
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 5, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Warn("elasticsearch unavailable, search indexing disabled", zap.Error(err))
			esClient = nil
		} else {
			zapLog.Info("Elasticsearch connected successfully")
		}
	}

	// --- Stores ---
	applications := store.NewApplicationStore(pg.DB, log)
	conversations := store.NewConversationStore(pg.DB, log)
	documentStore := store.NewDocumentStore(pg.DB, log)

	// --- Delivery clients ---
	var sesClient *aws.SESClient
	var snsClient *aws.SNSClient
	if cfg.Notifications.Email.Enabled {
		sesClient, err = aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
	}
	if cfg.Notifications.SMS.Enabled {
		snsClient, err = aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
	}

	var ses notification.SESService
	if sesClient != nil {
		ses = sesClient
	}
	var sns notification.SNSService
	if snsClient != nil {
		sns = snsClient
	}
	notifier := notification.New(cfg.Notifications, ses, sns, log)

	// --- Collaborators ---
	var generator engine.Generator
	if cfg.APIs.GenAI.BaseURL != "" {
		generator, err = generation.New(cfg.APIs, cfg.Engine, redisClient, log)
		if err != nil {
			zapLog.Fatal("generation client failed", zap.Error(err))
		}
	} else {
		zapLog.Warn("genai base_url not set, running with templated replies only")
	}

	predictor := prediction.New(log)
	otpService := otp.New(redisClient.GetClient(), time.Duration(cfg.Engine.OTPTTL)*time.Second, log)

	publisher := events.NewRedisPublisher(redisClient, log)
	eventSinks := []events.Publisher{publisher}
	if esClient != nil {
		eventSinks = append(eventSinks, search.NewIndexer(esClient, applications, cfg.Database.Elasticsearch, log))
	}
	fanout := events.NewFanout(eventSinks...)

	chatEngine := engine.New(conversations, applications, generator, predictor, notifier, fanout, cfg.Engine, log)
	documentService := documents.New(documentStore, applications, log)

	// --- HTTP Server ---
	server := api.NewServer(chatEngine, otpService, notifier, applications, documentService, publisher, fanout, log)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.Routes(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining connections...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Loan assistant server stopped gracefully")
}
