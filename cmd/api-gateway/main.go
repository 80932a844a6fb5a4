package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/workhub-api/api/swagger"
	"github.com/noah-isme/workhub-api/internal/handler"
	internalmiddleware "github.com/noah-isme/workhub-api/internal/middleware"
	"github.com/noah-isme/workhub-api/internal/models"
	"github.com/noah-isme/workhub-api/internal/realtime"
	"github.com/noah-isme/workhub-api/internal/repository"
	"github.com/noah-isme/workhub-api/internal/service"
	"github.com/noah-isme/workhub-api/internal/ws"
	"github.com/noah-isme/workhub-api/pkg/cache"
	"github.com/noah-isme/workhub-api/pkg/config"
	"github.com/noah-isme/workhub-api/pkg/database"
	"github.com/noah-isme/workhub-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/workhub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/workhub-api/pkg/middleware/requestid"
	"github.com/noah-isme/workhub-api/pkg/storage"
)

// @title WorkHub Announcements API
// @version 1.0.0
// @description Announcement feed with search, reactions, read receipts and a live stream.
// @BasePath /api/v1
// @schemes http https
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Search.CacheEnabled || cfg.Realtime.Transport == config.TransportRedis {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, search cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	metricsSvc := service.NewMetricsService()

	announcementRepo := repository.NewAnnouncementRepository(db)
	reactionRepo := repository.NewReactionRepository(db)
	readRepo := repository.NewReadRepository(db)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		redisCache := repository.NewCacheRepository(redisClient, logr)
		defer redisCache.Close() //nolint:errcheck
		cacheRepo = redisCache
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Search.CacheTTL, logr, cfg.Search.CacheEnabled && cacheRepo != nil)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	feedSvc := service.NewAnnouncementFeedService(announcementRepo, metricsSvc, logr, service.FeedConfig{
		Workers:    cfg.Feed.RefreshWorkers,
		Retries:    cfg.Feed.RefreshRetries,
		RetryDelay: cfg.Feed.RefreshRetryDelay,
		Timeout:    cfg.Feed.RefreshTimeout,
	})
	feedSvc.Start(ctx)
	defer feedSvc.Stop()

	deps := service.AnnouncementServiceDeps{
		Feed:      feedSvc,
		Records:   announcementRepo,
		Reactions: reactionRepo,
		Reads:     readRepo,
		Cache:     cacheSvc,
		CacheTTL:  cfg.Search.CacheTTL,
		Validator: validator.New(),
		Logger:    logr,
	}
	if cfg.Storage.Bucket != "" && cfg.Storage.Endpoint != "" {
		presigner, err := storage.NewS3Presigner(cfg.Storage)
		if err != nil {
			logr.Warn("attachment presigning disabled", zap.Error(err))
		} else {
			deps.Presigner = presigner
		}
	}
	announcementSvc := service.NewAnnouncementService(deps)
	unsubscribeCache := announcementSvc.InvalidateOnRefresh()
	defer unsubscribeCache()

	hub := ws.NewHub(feedSvc.Snapshot, metricsSvc, logr)
	unsubscribeHub := feedSvc.Subscribe(hub.Publish)
	defer unsubscribeHub()
	go hub.Run(ctx)

	if _, err := feedSvc.Refresh(ctx); err != nil {
		logr.Warn("initial announcement load failed", zap.Error(err))
	}

	if cfg.Realtime.Enabled {
		listener, err := startListener(ctx, cfg, redisClient, feedSvc, metricsSvc, logr)
		if err != nil {
			logr.Error("realtime listener not started", zap.Error(err))
		} else {
			defer listener.Close() //nolint:errcheck
		}
	}

	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		Audience:          cfg.JWT.Audience,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))
	r.Use(internalmiddleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metricsSvc, feedSvc)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	announcementHandler := handler.NewAnnouncementHandler(announcementSvc)

	api := r.Group(cfg.APIPrefix)
	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))

	announcements := secured.Group("/announcements")
	announcements.GET("", announcementHandler.List)
	announcements.POST("/refresh", announcementHandler.Refresh)
	if cfg.WebSocket.Enabled {
		streamHandler := handler.NewStreamHandler(hub, cfg.CORS.AllowedOrigins, logr)
		announcements.GET("/stream", streamHandler.Connect)
	}
	announcements.GET("/:id", announcementHandler.Get)
	announcements.POST("/:id/reactions", announcementHandler.React)
	announcements.POST("/:id/read", announcementHandler.MarkRead)
	announcements.PUT("/:id/pin", internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleManager), announcementHandler.Pin)

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

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	stop()
}

func startListener(ctx context.Context, cfg *config.Config, redisClient *redis.Client, feedSvc *service.AnnouncementFeedService, metricsSvc *service.MetricsService, logr *zap.Logger) (*realtime.ChangeListener, error) {
	var feed realtime.Feed
	switch cfg.Realtime.Transport {
	case config.TransportRedis:
		if redisClient == nil {
			return nil, errors.New("redis transport selected but redis is unavailable")
		}
		feed = realtime.NewRedisFeed(redisClient, cfg.Realtime.ChannelPrefix, logr)
	default:
		feed = realtime.NewPostgresFeed(database.DSN(cfg.Database), cfg.Realtime.ChannelPrefix, cfg.Realtime.MinReconnect, cfg.Realtime.MaxReconnect, logr)
	}

	listener := realtime.NewChangeListener(feed, logr, metricsSvc, cfg.Realtime.Tables...)
	if err := listener.Start(ctx, feedSvc.OnChange); err != nil {
		return nil, err
	}
	logr.Info("realtime listener started", zap.String("transport", cfg.Realtime.Transport), zap.Strings("tables", listener.Tables()))
	return listener, nil
}
