package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"lesson-scheduler/internal/app"
	"lesson-scheduler/internal/config"
	"lesson-scheduler/internal/logger"
	"lesson-scheduler/internal/schedule"
	"lesson-scheduler/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	lg, err := logger.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	workStart, err := schedule.ParseTimeOfDay(cfg.WorkdayStart)
	if err != nil {
		lg.Fatal("invalid WORKDAY_START", zap.Error(err))
	}
	workEnd, err := schedule.ParseTimeOfDay(cfg.WorkdayEnd)
	if err != nil {
		lg.Fatal("invalid WORKDAY_END", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := app.OpenPool(ctx, cfg.DatabaseURL)
	if err != nil {
		lg.Fatal("failed to connect to db", zap.Error(err))
	}
	defer pool.Close()

	var cache *app.BusyCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			lg.Warn("redis unreachable, busy cache will fall through", zap.Error(err))
		}
		cache = app.NewBusyCache(rdb, cfg.BusyCacheTTL, lg.Named("cache"))
	}

	appInstance := &app.App{
		Repo:                 &app.PGStore{DB: pool},
		Cache:                cache,
		Google:               app.NewGoogleCalendarConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL),
		Logger:               lg,
		Location:             cfg.Location(),
		BusyQueryConcurrency: cfg.BusyQueryConcurrency,
		MaxOccurrences:       cfg.MaxOccurrences,
		WorkdayStart:         workStart,
		WorkdayEnd:           workEnd,
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := app.NewRouter(appInstance, app.AuthMiddleware(cfg.JWTSecret, cfg.Tokens()))

	if err := server.Run(router, cfg.Port, lg); err != nil {
		lg.Fatal("http server failed", zap.Error(err))
	}
}
