// Command server runs the referral API: HTTP transport, the referral
// service, and whichever store backend the environment selects.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"capref/internal/audit"
	"capref/internal/jwtauth"
	"capref/internal/platform/config"
	"capref/internal/platform/httpserver"
	"capref/internal/platform/logger"
	platformmetrics "capref/internal/platform/metrics"
	"capref/internal/platform/postgres"
	platformredis "capref/internal/platform/redis"
	"capref/internal/referral/handler"
	"capref/internal/referral/link"
	referralmetrics "capref/internal/referral/metrics"
	"capref/internal/referral/service"
	"capref/internal/referral/store"
	memorystore "capref/internal/referral/store/memory"
	postgresstore "capref/internal/referral/store/postgres"
	redisstore "capref/internal/referral/store/redis"
	authmw "capref/pkg/platform/middleware/auth"
	"capref/pkg/platform/middleware/request"
	"capref/pkg/platform/middleware/requesttime"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	referrals, cleanup, err := newStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initialize %s store: %w", cfg.StoreDriver, err)
	}
	defer cleanup()

	links, err := link.NewSHA256Generator(cfg.LinkBaseURL)
	if err != nil {
		return fmt.Errorf("initialize link generator: %w", err)
	}

	publisher := audit.NewChannelPublisher(log, 256)
	worker := audit.NewWorker(publisher.Inbox(), log)
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()

	svc := service.New(referrals, links,
		service.WithLogger(log),
		service.WithMetrics(referralmetrics.New()),
		service.WithAuditPublisher(publisher),
	)

	jwtService := jwtauth.NewService(cfg.JWTSigningKey, "capref")
	httpMetrics := platformmetrics.New()
	referralHandler := handler.New(svc, log)

	router := chi.NewRouter()
	router.Use(request.Recovery(log))
	router.Use(request.ID)
	router.Use(requesttime.Middleware)
	router.Use(request.Logger(log))
	router.Use(httpMetrics.Latency)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Handle("/metrics", promhttp.Handler())

	referralHandler.RegisterPublic(router)
	router.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(jwtService, log))
		referralHandler.RegisterAPI(r)
	})

	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting referral server", "addr", cfg.Addr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// newStore builds the configured store backend and returns a cleanup for
// its underlying connection, if any.
func newStore(ctx context.Context, cfg config.Server, log *slog.Logger) (store.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		return memorystore.New(), func() {}, nil

	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return postgresstore.New(db), func() {
			if err := db.Close(); err != nil {
				log.Warn("close postgres", "error", err)
			}
		}, nil

	case config.StoreRedis:
		client, err := platformredis.New(config.RedisFromEnv())
		if err != nil {
			return nil, nil, err
		}
		if client == nil {
			return nil, nil, fmt.Errorf("REDIS_URL is required when REFERRALS_STORE=redis")
		}
		return redisstore.New(client.Client), func() {
			if err := client.Close(); err != nil {
				log.Warn("close redis", "error", err)
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
