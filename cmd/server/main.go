package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/radio-slot-reservation/internal/config"
	"github.com/iliyamo/radio-slot-reservation/internal/database"
	"github.com/iliyamo/radio-slot-reservation/internal/handler"
	"github.com/iliyamo/radio-slot-reservation/internal/logger"
	"github.com/iliyamo/radio-slot-reservation/internal/metrics"
	"github.com/iliyamo/radio-slot-reservation/internal/middleware"
	"github.com/iliyamo/radio-slot-reservation/internal/queue"
	"github.com/iliyamo/radio-slot-reservation/internal/repository"
	"github.com/iliyamo/radio-slot-reservation/internal/rollup"
	"github.com/iliyamo/radio-slot-reservation/internal/router"
	"github.com/iliyamo/radio-slot-reservation/internal/service"
)

const serviceName = "radio-slot-reservation"

func main() {
	_ = godotenv.Load() // .env is optional

	cfg, err := config.Load()
	if err != nil {
		logger.New(serviceName, "info").WithError(err).Fatal("invalid configuration")
	}
	log := logger.New(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db, cfg.ReservationSeqStart); err != nil {
			log.WithError(err).Fatal("schema migration failed")
		}
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig(), log)
	if rdb != nil {
		defer rdb.Close()
	}

	seqRepo := repository.NewSequenceRepo(db, cfg.ReservationSeqStart)
	resRepo := repository.NewReservationRepo(db, seqRepo)
	chRepo := repository.NewChannelRepo(db)
	userRepo := repository.NewUserRepo(db)

	if _, err := service.EnsurePlanner(ctx, userRepo, cfg.PlannerEmail, cfg.PlannerName, cfg.PlannerPassword, cfg.BcryptCost, log); err != nil {
		log.WithError(err).Fatal("planner bootstrap failed")
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	resSvc := service.NewReservationService(resRepo, repository.NewAdvertiserRepo(db),
		service.NewAMQPPublisher(cfg.AMQPURL, log), m, log)
	rollupSvc := service.NewRollupService(rollup.NewEngine(resRepo, chRepo, chRepo, log), m, log)

	if cfg.ConsumerEnabled {
		go func() {
			err := queue.StartReservationConsumer(ctx, queue.ConsumerConfig{URL: cfg.AMQPURL, LogDir: cfg.ReservationLogDir}, log)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("reservation consumer stopped")
			}
		}()
	}

	cache := middleware.NewCache(config.LoadCacheConfig(), rdb, log)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(logger.RequestLogger(log), m.Middleware())

	router.RegisterRoutes(e, router.Deps{
		JWTSecret:    cfg.JWTSecret,
		Auth:         handler.NewAuthHandler(cfg.JWTSecret, cfg.AccessTTLMin, userRepo),
		Reservations: handler.NewReservationHandler(resSvc),
		Rollups:      handler.NewRollupHandler(rollupSvc),
		Channels:     handler.NewChannelHandler(chRepo, repository.NewAccessRepo(db), cache),
		DB:           db,
		Metrics:      m.Handler(),
		Cache:        cache,
		RateLimit:    middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
	})

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
