package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"kuberafi/internal/audit"
	"kuberafi/internal/cache"
	"kuberafi/internal/commission"
	"kuberafi/internal/config"
	cronrunner "kuberafi/internal/cron"
	"kuberafi/internal/db"
	"kuberafi/internal/handler"
	"kuberafi/internal/ledger"
	"kuberafi/internal/logger"
	"kuberafi/internal/metrics"
	"kuberafi/internal/orders"
	"kuberafi/internal/paymentmethod"
	"kuberafi/internal/queue"
	gormrepository "kuberafi/internal/repository/gorm"
	"kuberafi/internal/service"
	"kuberafi/internal/settlement"

	_ "kuberafi/docs"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfgPath := os.Getenv("KRF_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("KRF_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := gormrepository.New(dbConn.Gorm)
	settingsSvc := &service.SystemSettingsService{Repo: store}
	if err := settingsSvc.EnsureDefaultSwitches(ctx); err != nil {
		logger.Warn("init default system switches failed", zap.Error(err))
	}

	reg := metrics.New()
	recorder := audit.NewRecorder(logger, reg, initAuditClient(cfg.Audit, logger), 0)
	recorder.Flags = settingsSvc
	recorder.FlagKey = service.FeatureRemoteAudit
	go recorder.Run(ctx)

	ledgerSvc := ledger.NewService(store, store, settingsSvc, recorder, logger)
	coordinator := &settlement.Coordinator{
		Repo:         store,
		Ledger:       ledgerSvc,
		Selector:     &paymentmethod.Selector{Repo: store},
		Resolver:     &commission.Resolver{Repo: store, Defaults: commission.DefaultsFromConfig(cfg.Commission)},
		Audit:        recorder,
		Logger:       logger,
		MaxAttempts:  cfg.Settlement.MaxAttempts,
		RetryBackoff: cfg.Settlement.RetryBackoff,
	}

	var cacheStore cache.Store = cache.NewMemoryStore()
	var cachePinger handler.Pinger
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		rs := cache.NewRedisStore(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rs.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rs.Ping(pingCtx); err != nil {
			logger.Warn("redis unreachable, dedupe degrades to database guard", zap.Error(err))
		}
		cancel()
		cacheStore = rs
		cachePinger = rs
	}
	worker := &queue.Worker{
		Settler: coordinator,
		Dedupe: &cache.Deduper{
			Store:    cacheStore,
			TTL:      cfg.Redis.DedupeTTL,
			ClaimTTL: max(cfg.Redis.ClaimTTL, coordinator.RetryBudget()+30*time.Second),
		},
		Logger: logger,
	}

	var publisher queue.Publisher
	async := strings.EqualFold(cfg.Settlement.Mode, orders.ModeAsync)
	runWorker := async && settingsSvc.IsEnabled(ctx, service.FeatureSettlementWorker, true)
	if len(cfg.Kafka.Brokers) > 0 {
		kp := queue.NewKafkaPublisher(cfg.Kafka, logger)
		defer kp.Close()
		publisher = kp
		if runWorker {
			consumer := queue.NewKafkaConsumer(cfg.Kafka, worker.Handle, logger)
			defer consumer.Close()
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Warn("kafka consumer stopped", zap.Error(err))
				}
			}()
		}
	} else {
		cq := queue.NewChannelQueue(cfg.Settlement.QueueSize)
		cq.Logger = logger
		defer cq.Close()
		publisher = cq
		if runWorker {
			go cq.Run(ctx, cfg.Settlement.Workers, worker.Handle)
		}
	}

	lifecycle := &orders.Lifecycle{
		Repo:      store,
		Settler:   coordinator,
		Publisher: publisher,
		Mode:      cfg.Settlement.Mode,
		Metrics:   reg,
		Logger:    logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(audit.WriteMiddleware(recorder))

	healthHandler := &handler.HealthHandler{DB: store, Cache: cachePinger}
	healthHandler.Register(engine)
	metricsHandler := &handler.MetricsHandler{Registry: reg}
	metricsHandler.Register(engine)
	handler.RegisterDocs(engine)

	orderHandler := &handler.OrderHandler{Repo: store, Settlement: coordinator, Lifecycle: lifecycle}
	orderHandler.Register(engine)
	ledgerHandler := &handler.LedgerHandler{Ledger: ledgerSvc}
	ledgerHandler.Register(engine)
	commissionHandler := &handler.CommissionHandler{Service: &commission.Service{Repo: store, Logger: logger}}
	commissionHandler.Register(engine)
	pmHandler := &handler.PaymentMethodHandler{Service: &paymentmethod.Service{Repo: store, Logger: logger}}
	pmHandler.Register(engine)
	settingsHandler := &handler.SystemSettingsHandler{Settings: settingsSvc}
	settingsHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled && async {
		reconciler := &cronrunner.Reconciler{
			Orders:     lifecycle,
			Flags:      settingsSvc,
			FlagKey:    service.FeatureReconciler,
			StuckAfter: cfg.Cron.StuckAfter,
			BatchSize:  cfg.Cron.BatchSize,
			Logger:     logger,
		}
		if _, err := cronRunner.Add(cfg.Cron.Reconcile, reconciler.Run); err != nil {
			logger.Warn("cron register reconciler failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	errCh := make(chan error, 1)

	go func() {
		logger.Info("http server starting",
			zap.String("addr", cfg.Server.HTTPAddr),
			zap.String("settlement_mode", lifecycle.Mode),
			zap.Bool("kafka", len(cfg.Kafka.Brokers) > 0),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

func initAuditClient(cfg config.AuditConfig, logger *zap.Logger) *audit.Client {
	base := strings.TrimSpace(cfg.BaseURL)
	apiKey := strings.TrimSpace(cfg.APIKey)
	if base == "" || apiKey == "" {
		return nil
	}

	c := &audit.Client{BaseURL: base, APIKey: apiKey, Agent: cfg.Agent, HTTP: &http.Client{Timeout: cfg.Timeout}}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Login(ctx); err != nil {
		logger.Warn("audit login failed (remote audit disabled)", zap.Error(err))
		return nil
	}
	logger.Info("audit login ok")
	return c
}
