package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"bdpipeline/internal/activity"
	"bdpipeline/internal/auditlog"
	"bdpipeline/internal/auth"
	"bdpipeline/internal/cache"
	"bdpipeline/internal/config"
	cronrunner "bdpipeline/internal/cron"
	"bdpipeline/internal/db"
	"bdpipeline/internal/handler"
	"bdpipeline/internal/logger"
	"bdpipeline/internal/metrics"
	"bdpipeline/internal/opportunity"
	"bdpipeline/internal/probability"
	gormrepository "bdpipeline/internal/repository/gorm"
	"bdpipeline/internal/service"

	_ "bdpipeline/docs"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("BDP_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("BDP_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log, cfg.App.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	dev := strings.EqualFold(cfg.App.Env, "dev")
	dbConn, err := db.Open(cfg.DB, dev)
	if err != nil {
		log.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.AutoMigrate(dbConn); err != nil {
		log.Fatal("auto-migrate failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DB.SeedCoefficients {
		n, err := db.SeedCoefficients(ctx, dbConn)
		if err != nil {
			log.Fatal("coefficient seed failed", zap.Error(err))
		}
		if n > 0 {
			log.Info("seeded default coefficients", zap.Int("count", n))
		}
	}

	store := gormrepository.New(dbConn.Gorm)
	reg := metrics.New()

	settingsSvc := &service.SystemSettingsService{Repo: store}
	if err := settingsSvc.EnsureDefaultSwitches(ctx); err != nil {
		log.Warn("init default system switches failed", zap.Error(err))
	}

	cacheStore, closeCache, err := cache.New(cfg.Cache, log)
	if err != nil {
		log.Fatal("cache init failed", zap.Error(err))
	}
	defer func() {
		if err := closeCache(); err != nil {
			log.Warn("cache close failed", zap.Error(err))
		}
	}()

	coefficients := &probability.CachedCoefficients{
		Source:  store,
		Store:   cacheStore,
		TTL:     cfg.Cache.CoefficientTTL,
		Key:     cfg.Cache.CoefficientKey,
		Logger:  log,
		Metrics: reg,
	}
	engine := &probability.Engine{Coefficients: coefficients, Logger: log, Metrics: reg}
	coefficientSvc := &probability.CoefficientService{Repo: store, Cache: coefficients, Logger: log}
	if table, err := coefficientSvc.Warm(ctx); err != nil {
		log.Warn("coefficient warmup failed", zap.Error(err))
	} else {
		log.Info("coefficient table loaded", zap.Int("coefficients", table.Len()))
	}

	recorder := &activity.Recorder{Repo: store, Logger: log, Metrics: reg}
	forwarder := auditlog.NewForwarder(cfg.Audit, log, reg)
	if forwarder != nil {
		forwarder.Enabled = func(ctx context.Context) bool {
			return settingsSvc.IsEnabled(ctx, service.FeatureAuditForward, true)
		}
		forwarder.Start()
		recorder.Forwarder = forwarder
		log.Info("audit forwarding configured", zap.String("base_url", cfg.Audit.BaseURL))
	}

	manager := &opportunity.Manager{
		Repo:     store,
		Scorer:   engine,
		Activity: recorder,
		Logger:   log,
		Metrics:  reg,
	}
	forecastSvc := &service.ForecastService{Repo: store}
	dashboardSvc := &service.DashboardService{Repo: store, Flags: settingsSvc, Logger: log}

	if dev {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handler.RequestID())
	router.Use(handler.AccessLog(log))
	router.Use(reg.Middleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	healthHandler := &handler.HealthHandler{
		DB: dbConn.Gorm,
		Checks: map[string]handler.Check{
			"cache": func(ctx context.Context) error { return cache.Ping(ctx, cacheStore) },
		},
	}
	healthHandler.Register(router)
	handler.RegisterDocs(router)
	router.GET("/metrics", gin.WrapH(reg.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if cfg.Auth.Disabled {
		log.Warn("authentication disabled; every request runs as the anonymous admin")
	}
	jwt := auth.JWT{Secret: []byte(cfg.Auth.JWTSecret), Issuer: cfg.Auth.Issuer}
	api := router.Group("/api/v1",
		handler.RateLimit(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
		auth.Middleware(jwt, cfg.Auth.Disabled),
	)
	(&handler.OpportunityHandler{
		Repo:     store,
		Manager:  manager,
		Activity: recorder,
		Forecast: forecastSvc,
		Logger:   log,
	}).Register(api)
	(&handler.CoefficientHandler{Service: coefficientSvc, Engine: engine, Logger: log}).Register(api)
	(&handler.ForecastHandler{Service: forecastSvc, Logger: log}).Register(api)
	(&handler.DashboardHandler{Service: dashboardSvc, Logger: log}).Register(api)
	(&handler.SystemSettingsHandler{Settings: settingsSvc, Logger: log}).Register(api)

	if cfg.Cron.Enabled {
		runner := cronrunner.New(log, ctx)
		refresh := &service.CoefficientRefreshService{Coefficients: coefficientSvc, Flags: settingsSvc, Logger: log}
		if _, err := runner.Add(cfg.Cron.CoefficientRefresh, "coefficient_refresh", refresh.RunOnce); err != nil {
			log.Warn("cron register coefficient refresh failed", zap.Error(err))
		}
		runner.Start()
		defer runner.Stop()
	}

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown failed", zap.Error(err))
	}
	if err := forwarder.Close(shutdownCtx); err != nil {
		log.Warn("audit queue not drained", zap.Error(err))
	}
}
