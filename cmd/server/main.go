package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/flowforge/ostiumgate/internal/config"
	"github.com/flowforge/ostiumgate/internal/feed"
	"github.com/flowforge/ostiumgate/internal/handler"
	"github.com/flowforge/ostiumgate/internal/middleware"
	"github.com/flowforge/ostiumgate/internal/pkg/logger"
	"github.com/flowforge/ostiumgate/internal/readiness"
	"github.com/flowforge/ostiumgate/internal/replay"
	"github.com/flowforge/ostiumgate/internal/repository"
	"github.com/flowforge/ostiumgate/internal/service"
	"github.com/flowforge/ostiumgate/internal/upstream/ostium"
)

func main() {
	logger.Init(os.Getenv("OSTIUMGATE_LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Replay guard and idempotency cache: Redis when configured, memory
	// otherwise. Both variants enforce the same admit-and-record contract.
	var (
		replayStore replay.Store
		idemStore   repository.IdempotencyStore
	)
	if cfg.Redis.Addr != "" {
		redisClient, err := repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("connected to redis", "addr", cfg.Redis.Addr)
			replayStore = replay.NewRedisStore(redisClient, cfg.FreshnessWindow(), cfg.FutureTolerance())
			idemStore = repository.NewRedisIdempotencyStore(redisClient)
		} else {
			logger.Error("redis unavailable, falling back to memory", "error", err)
		}
	}
	if replayStore == nil {
		replayStore = replay.NewGuard(cfg.FreshnessWindow(), cfg.FutureTolerance())
		idemStore = repository.NewMemoryIdempotencyStore()
	}

	// Audit persistence: Postgres when configured, JSONL file always.
	var auditRepo service.AuditRepo
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err == nil {
			logger.Info("connected to postgres")
			auditRepo = repository.NewPostgresAuditRepo(db)
		} else {
			logger.Error("postgres unavailable, audit logs will be file-only", "error", err)
		}
	}
	auditSvc, err := service.NewAuditService(cfg.Audit.Dir, auditRepo)
	if err != nil {
		log.Fatalf("Failed to initialize audit service: %v", err)
	}
	defer auditSvc.Close()

	upstreamClient, err := ostium.NewClient(cfg.Upstream)
	if err != nil {
		log.Fatalf("Failed to initialize upstream client: %v", err)
	}

	priceFeed := feed.New(cfg.Upstream.PriceFeedWSURL)
	priceFeed.Start()
	defer priceFeed.Stop()

	gate := readiness.NewGate(
		readiness.Check{Name: "hmac_secret", Probe: func(context.Context) error {
			if cfg.Auth.HMACSecret == "" {
				return fmt.Errorf("auth.hmac_secret is not configured")
			}
			return nil
		}},
		readiness.Check{Name: "delegate_key", Probe: func(context.Context) error {
			if !cfg.Upstream.Enabled {
				return nil
			}
			if _, ok := upstreamClient.DelegateAddress(); !ok {
				return fmt.Errorf("upstream.delegate_private_key is not configured")
			}
			return nil
		}},
		readiness.Check{Name: "upstream", Probe: func(ctx context.Context) error {
			if !cfg.Upstream.Enabled {
				return nil
			}
			return upstreamClient.Ping(ctx, cfg.Upstream.DefaultNetwork)
		}},
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go gate.Run(rootCtx, time.Duration(cfg.Readiness.ProbeIntervalSeconds)*time.Second)
	go auditSvc.RunRetention(rootCtx, cfg.Database.AuditRetentionDays)

	marketSvc := service.NewMarketService(upstreamClient, priceFeed)
	accountSvc := service.NewAccountService(upstreamClient)
	tradingSvc := service.NewTradingService(upstreamClient, marketSvc, idemStore)
	orderSvc := service.NewOrderService(upstreamClient, idemStore)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Metrics())
	// Audit wraps ErrorHandler so the captured status and body are the
	// rendered error envelope, not the pre-render zero values.
	r.Use(middleware.Audit(auditSvc))
	r.Use(middleware.ErrorHandler(gate))
	r.Use(middleware.Timeout(cfg.RequestTimeout()))

	r.GET("/health", handler.Health)
	r.GET("/ready", handler.Ready(gate))
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit.QPS), cfg.RateLimit.Burst)
	v1 := r.Group("/v1")
	v1.Use(middleware.HMACAuth(cfg.Auth.HMACSecret, replayStore))
	v1.Use(middleware.RateLimit(limiter))

	table := handler.Routes(
		handler.NewMarketHandler(marketSvc),
		handler.NewAccountHandler(accountSvc),
		handler.NewTradingHandler(tradingSvc),
		handler.NewOrderHandler(orderSvc),
	)
	handler.Register(v1, gate, table, cfg.Readiness.AllowDegradedReads)

	// Server timeouts sit above the per-request deadline so the handler
	// always gets to render the 504 before the connection is cut.
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.RequestTimeout() + 5*time.Second,
		WriteTimeout: cfg.RequestTimeout() + 5*time.Second,
	}

	go func() {
		logger.Info("ostiumgate started", "port", cfg.Server.Port, "network", cfg.Upstream.DefaultNetwork)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
}
