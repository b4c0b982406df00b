package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/xela07ax/spaceai-agent-portal/internal/audit"
	"github.com/xela07ax/spaceai-agent-portal/internal/connectors"
	"github.com/xela07ax/spaceai-agent-portal/internal/domain"
	"github.com/xela07ax/spaceai-agent-portal/internal/engine"
	"github.com/xela07ax/spaceai-agent-portal/internal/infra"
	"github.com/xela07ax/spaceai-agent-portal/internal/infra/auth"
	"github.com/xela07ax/spaceai-agent-portal/internal/normalize"
	"github.com/xela07ax/spaceai-agent-portal/internal/portal/handler"
	"github.com/xela07ax/spaceai-agent-portal/internal/portal/server"
	"github.com/xela07ax/spaceai-agent-portal/internal/portal/service"
	"github.com/xela07ax/spaceai-agent-portal/internal/repository/postgres"
)

func main() {
	// 1. Конфиг и логгер. До логгера падаем через stdlib log.
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	// Контекст жизни фоновых горутин: слушатель Redis и прогоны сессий
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := engine.NewMetrics(reg)

	// 3. Журнал исходов (опционально)
	var auditor audit.Auditor = audit.NopAuditor{}
	if cfg.Database.URL != "" {
		db, trail := openAudit(appCtx, cfg, logger)
		defer db.Close()
		trail.Start()
		defer trail.Stop()
		auditor = trail
	}

	// 4. Транспорт: HTTP -> Rate Limiter + Circuit Breaker -> admin API
	norm := normalize.New(domain.DefaultCatalog, logger, metrics)
	getter := engine.NewReliabilityWrapper(
		connectors.NewHTTPAdapter(cfg.Admin.BaseURL, nil),
		engine.ReliabilitySettings{
			RequestTimeout:     cfg.Admin.RequestTimeout,
			RateLimit:          cfg.Admin.RateLimit,
			RateBurst:          cfg.Admin.RateBurst,
			CBMaxRequests:      cfg.Admin.CBMaxRequests,
			CBInterval:         cfg.Admin.CBInterval,
			CBTimeout:          cfg.Admin.CBTimeout,
			CBFailureThreshold: cfg.Admin.CBFailureThreshold,
		},
		metrics, logger,
	)
	adminAPI := connectors.NewAdminAPI(getter, cfg.Admin.Routes, norm, logger)

	// 5. Core
	resolver := engine.NewResolver(adminAPI, norm, auditor, metrics, logger)
	hub := service.NewSessionHub(resolver, metrics, logger)
	portal := service.NewPortalService(resolver, domain.DefaultCatalog, hub, logger)

	// 6. Сигналы перезагрузки из Redis (опционально)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		go engine.ListenStateResilient(appCtx, rdb, logger, cfg.Redis.ReloadChannel, nil, hub.HandleSignal)
	}

	// 7. HTTP
	var validator auth.TokenValidator
	if len(cfg.Auth.PublicKey) > 0 {
		pub, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
		if err != nil {
			logger.Fatal("invalid identity public key", zap.Error(err))
		}
		validator = auth.NewIdentityValidator(pub,
			auth.WithIssuer(cfg.Auth.Issuer),
			auth.WithAudience(cfg.Auth.Audience),
			auth.WithLeeway(cfg.Auth.Leeway),
		)
	} else {
		logger.Warn("no identity public key configured, accepting " + auth.DevEmailHeader + " header")
	}

	opts := server.Options{AllowedOrigins: cfg.Server.AllowedOrigins}
	if cfg.Metrics.Enabled {
		opts.MetricsPath = cfg.Metrics.Path
		opts.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}
	portalSrv := server.NewPortalServer(
		opts,
		logger,
		validator,
		handler.NewEntitlementsHandler(portal, hub, logger),
		handler.NewCatalogHandler(portal),
	)

	srv := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     portalSrv,
		ReadTimeout: cfg.Server.ReadTimeout,
		// WriteTimeout 0 по умолчанию: SSE-поток живет долго
		WriteTimeout: cfg.Server.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return appCtx },
	}

	// 8. gRPC health для оркестратора (опционально)
	var grpcSrv *grpc.Server
	if cfg.GRPC.Addr != "" {
		grpcSrv = grpc.NewServer(grpc.UnaryInterceptor(engine.UnaryTraceInterceptor(logger)))
		hs := health.NewServer()
		healthpb.RegisterHealthServer(grpcSrv, hs)
		hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			logger.Fatal("failed to listen gRPC", zap.String("addr", cfg.GRPC.Addr), zap.Error(err))
		}
		go func() {
			logger.Info("gRPC health server started", zap.String("addr", cfg.GRPC.Addr))
			if err := grpcSrv.Serve(lis); err != nil {
				logger.Error("gRPC server stopped", zap.Error(err))
			}
		}()
	}

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("agent portal started", zap.String("addr", srv.Addr), zap.String("admin", cfg.Admin.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-stop
	logger.Info("agent portal stopping...")

	// Сначала гасим сессии: SSE-хендлеры увидят закрытые подписки и вернутся
	hub.CloseAll()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	logger.Info("agent portal exited properly")
}

func openAudit(ctx context.Context, cfg *infra.Config, logger *zap.Logger) (*sql.DB, *audit.Trail) {
	db, err := postgres.Open(cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	if err := postgres.Ping(ctx, db); err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db, "up"); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
	}

	trail := audit.NewTrail(postgres.NewAuditRepo(db), logger,
		audit.WithBatchSize(cfg.Audit.BatchSize),
		audit.WithFlushInterval(cfg.Audit.FlushInterval),
		audit.WithFlushAttempts(cfg.Audit.FlushAttempts),
	)
	return db, trail
}
