package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/safar/go-bookstore/internal/api"
	"github.com/safar/go-bookstore/internal/auth"
	"github.com/safar/go-bookstore/internal/cache"
	"github.com/safar/go-bookstore/internal/checkout"
	"github.com/safar/go-bookstore/internal/config"
	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/events"
	"github.com/safar/go-bookstore/internal/payment"
	"github.com/safar/go-bookstore/internal/service"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the outbox relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log)

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("connected to database")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	books, closeCache := newBookCache(ctx, cfg.Cache, log)
	defer closeCache()

	gate, err := auth.NewGate(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	payments := payment.NewMockGateway(log)

	opts := []checkout.Option{
		checkout.WithTimeout(cfg.Checkout.Timeout),
		checkout.WithCurrency(cfg.Payment.Currency),
		checkout.WithLogger(log),
	}
	if cfg.Payment.Verify {
		opts = append(opts, checkout.WithPaymentVerification(payments))
	}
	orchestrator := checkout.NewOrchestrator(checkout.NewPostgresStore(db, cfg.Checkout.MaxRetries), opts...)

	svc := service.New(service.Deps{
		DB:       db,
		Gate:     gate,
		Books:    books,
		Checkout: orchestrator,
		Payments: payments,
		Currency: cfg.Payment.Currency,
		Log:      log,
	})

	app := api.NewApp(api.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, svc, gate, log)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Events.RabbitMQURL != "" {
		publisher, err := events.Dial(ctx, cfg.Events.RabbitMQURL, cfg.Events.Exchange, log)
		if err != nil {
			return err
		}
		defer publisher.Close()

		relay := events.NewRelay(events.NewPostgresOutbox(db), publisher, cfg.Events.BatchSize, cfg.Events.Interval, log)
		g.Go(func() error {
			if err := relay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	} else {
		log.Warn("RABBITMQ_URL not set; outbox events stay unpublished")
	}

	g.Go(func() error {
		log.WithField("port", cfg.Server.Port).Info("server starting")
		return app.Listen(":" + cfg.Server.Port)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	return g.Wait()
}

// newBookCache returns a Redis-backed cache when REDIS_URL is set and
// reachable, and the no-op cache otherwise.
func newBookCache(ctx context.Context, cfg config.CacheConfig, log *logrus.Entry) (cache.BookCache, func()) {
	if cfg.RedisURL == "" {
		return cache.Nop{}, func() {}
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.WithError(err).Warn("invalid REDIS_URL; book cache disabled")
		return cache.Nop{}, func() {}
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.WithError(err).Warn("redis unreachable; book cache disabled")
		client.Close()
		return cache.Nop{}, func() {}
	}

	log.WithField("ttl", cfg.TTL).Info("book cache enabled")
	return cache.NewRedisBookCache(client, cfg.TTL, log), func() { client.Close() }
}
