package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/unihorario/registration-api/api/swagger"
	"github.com/unihorario/registration-api/internal/catalog"
	"github.com/unihorario/registration-api/internal/handler"
	"github.com/unihorario/registration-api/internal/middleware"
	"github.com/unihorario/registration-api/internal/notify"
	"github.com/unihorario/registration-api/internal/repository"
	"github.com/unihorario/registration-api/internal/service"
	"github.com/unihorario/registration-api/pkg/cache"
	"github.com/unihorario/registration-api/pkg/config"
	"github.com/unihorario/registration-api/pkg/database"
	"github.com/unihorario/registration-api/pkg/logger"
	corsmiddleware "github.com/unihorario/registration-api/pkg/middleware/cors"
	reqidmiddleware "github.com/unihorario/registration-api/pkg/middleware/requestid"
)

// @title Course Registration API
// @version 1.0.0
// @description Schedule recommendation, draft validation and registration service.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The catalog cache is an optimization, not a dependency.
		logr.Sugar().Warnw("redis unavailable, catalog caching disabled", "error", err)
		redisClient = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalogClient := catalog.NewClient(catalog.ClientConfig{
		Host:           cfg.Catalog.Host,
		CoursesPath:    cfg.Catalog.CoursesPath,
		RequestTimeout: cfg.Catalog.RequestTimeout,
		BreakerTimeout: cfg.Catalog.BreakerTimeout,
	}, logr)

	notifier := notify.New(notify.Config{
		URL:            cfg.Notify.URL,
		RequestTimeout: cfg.Notify.RequestTimeout,
		Workers:        cfg.Notify.Workers,
		MaxRetries:     cfg.Notify.MaxRetries,
	}, logr)
	notifier.Start(ctx)
	defer notifier.Stop()

	draftRepo := repository.NewDraftRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	tokenSvc := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)
	recommendationSvc := service.NewRecommendationService(catalogClient, cacheRepo, metricsSvc, nil, logr,
		cfg.Registration.MaxCredits, cfg.Catalog.CacheTTL)
	draftSvc := service.NewDraftService(draftRepo, scheduleRepo, catalogClient, notifier, nil, logr,
		cfg.Registration.MaxCredits)
	scheduleSvc := service.NewScheduleService(scheduleRepo, logr)

	recommendationHandler := handler.NewRecommendationHandler(recommendationSvc, metricsSvc)
	draftHandler := handler.NewDraftHandler(draftSvc, metricsSvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix, middleware.JWT(tokenSvc))
	{
		api.POST("/recommendations/schedule", recommendationHandler.Recommend)

		drafts := api.Group("/drafts")
		{
			drafts.POST("", draftHandler.Create)
			drafts.GET("", draftHandler.List)
			drafts.GET("/:id", draftHandler.Get)
			drafts.DELETE("/:id", draftHandler.Delete)
			drafts.POST("/:id/groups", draftHandler.AddGroup)
			drafts.DELETE("/:id/groups/:entryId", draftHandler.RemoveEntry)
			drafts.POST("/:id/apply", draftHandler.Apply)
			drafts.GET("/:id/export", draftHandler.Export)
		}

		schedules := api.Group("/schedules")
		{
			schedules.GET("", scheduleHandler.List)
			schedules.GET("/:id", scheduleHandler.Get)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	if err := cacheRepo.Close(); err != nil {
		logr.Sugar().Warnw("failed to close cache", "error", err)
	}
}
