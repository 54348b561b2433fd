// Package main запускает HTTP-сервер сервиса бронирования мест.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/ticket-booking/internal/cache"
	"github.com/mmeshcher/ticket-booking/internal/config"
	"github.com/mmeshcher/ticket-booking/internal/events"
	"github.com/mmeshcher/ticket-booking/internal/handler"
	"github.com/mmeshcher/ticket-booking/internal/metrics"
	"github.com/mmeshcher/ticket-booking/internal/middleware"
	"github.com/mmeshcher/ticket-booking/internal/repository"
	"github.com/mmeshcher/ticket-booking/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI, cfg.TxTimeout)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisCmd redis.Cmdable
	redisClient, err := cache.NewRedisClient(ctx, cfg.RedisAddr)
	if err != nil {
		sugar.Warnw("catalog cache disabled", "error", err.Error())
	}
	if redisClient != nil {
		defer redisClient.Close()
		redisCmd = redisClient
	}

	bookingMetrics := metrics.NewBookingMetrics()
	catalog := cache.NewCatalogCache(redisCmd, repo, cfg.CacheTTL, logger)

	svc := service.NewService(repo, catalog, bookingMetrics, logger)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)
	h := handler.NewHandler(svc, logger, authMiddleware, repo)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Перенос событий из outbox в RabbitMQ
	if cfg.RabbitMQURL != "" {
		publisher, err := events.NewRabbitPublisher(cfg.RabbitMQURL)
		if err != nil {
			sugar.Fatalw("rabbitmq initialization error", "error", err.Error())
		}
		defer publisher.Close()

		relay := events.NewRelay(repo, publisher, cfg.RelayInterval, bookingMetrics, logger)
		g.Go(func() error {
			return relay.Run(ctx)
		})
	} else {
		sugar.Info("RABBITMQ_URL is empty, booking events stay in outbox")
	}

	g.Go(func() error {
		sugar.Infow("starting booking server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
