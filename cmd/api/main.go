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

	"outbound-caller/internal/auth"
	"outbound-caller/internal/calls"
	"outbound-caller/internal/config"
	"outbound-caller/internal/httpapi"
	"outbound-caller/internal/metrics"
	"outbound-caller/internal/telephony"
	"outbound-caller/pkg/logger"
	"outbound-caller/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"
)

func main() {
	if err := run(context.Background(), telephony.ConnectLiveKit); err != nil {
		slog.Error("api exited", "err", err)
		os.Exit(1)
	}
}

// run owns every resource it opens so deferred cleanup runs on each return path.
func run(ctx context.Context, connect telephony.Connector) error {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// One platform connection per process, shared by every manager.
	shared := telephony.NewShared(connect)
	manager, err := calls.NewManager(shared, calls.Options{
		TrunkID:      cfg.Calls.SIPTrunkID,
		KrispEnabled: cfg.Calls.KrispEnabled,
		Platform: telephony.Config{
			URL:       cfg.LiveKit.URL,
			APIKey:    cfg.LiveKit.APIKey,
			APISecret: cfg.LiveKit.APISecret,
		},
		AgentJoinTimeout: cfg.Calls.AgentJoinTimeout,
		Metrics:          metrics.NewCalls(reg),
	})
	if err != nil {
		return fmt.Errorf("call manager init: %w", err)
	}
	defer func() {
		if err := manager.Close(); err != nil {
			log.Error("platform close failed", "err", err)
		}
	}()

	var records calls.Repository = calls.NewMemoryRepo()
	if cfg.DatabaseEnabled() {
		db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			return fmt.Errorf("postgres init: %w", err)
		}
		defer db.Close()
		records = calls.NewPostgresRepo(db)
	}

	deps := routeDeps{
		handlers: httpapi.Handlers{Calls: manager, Records: records},
		metrics:  metrics.NewHTTP(reg),
		gatherer: reg,
	}

	if cfg.RedisEnabled() {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			return fmt.Errorf("redis init: %w", err)
		}
		defer rdb.Close()

		if cfg.Redis.MaxConcurrentCalls > 0 {
			capper, err := utils.NewConcurrencyCap(rdb, cfg.Redis.MaxConcurrentCalls, cfg.Redis.SlotTTL)
			if err != nil {
				return fmt.Errorf("concurrency cap init: %w", err)
			}
			deps.slots = httpapi.ConcurrencyLimit(capper, httpapi.ActiveCallsKey(manager.TrunkID()))
		}
	}

	if cfg.AuthEnabled() {
		authManager, err := auth.NewManager(cfg.Auth)
		if err != nil {
			return fmt.Errorf("auth init: %w", err)
		}
		deps.auth = auth.RequireScope(authManager, auth.ScopeCalls)
	}

	limiter := httpapi.NewIPRateLimiter(httpapi.RateLimitConfig{
		Rate:  rate.Limit(cfg.RateLimit.RPS),
		Burst: cfg.RateLimit.Burst,
	})
	defer limiter.Stop()
	deps.rateLimit = limiter.Middleware()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(httpapi.Metrics(deps.metrics))
	registerRoutes(r, deps)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// A placement blocks until the callee answers or every dial attempt fails.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("api listening",
			"addr", srv.Addr,
			"env", cfg.App.Env,
			"trunk_id", manager.TrunkID(),
			"krisp_enabled", manager.KrispEnabled(),
			"postgres", cfg.DatabaseEnabled(),
			"redis", cfg.RedisEnabled(),
			"auth", cfg.AuthEnabled(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}
