package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/taskminder-go-api/internal/config"
	"github.com/noah-isme/taskminder-go-api/internal/database"
	"github.com/noah-isme/taskminder-go-api/internal/handler"
	"github.com/noah-isme/taskminder-go-api/internal/middleware"
	"github.com/noah-isme/taskminder-go-api/internal/models"
	"github.com/noah-isme/taskminder-go-api/internal/repository"
	"github.com/noah-isme/taskminder-go-api/internal/router"
	"github.com/noah-isme/taskminder-go-api/internal/scheduler"
	"github.com/noah-isme/taskminder-go-api/internal/service"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := db.AutoMigrate(&models.Teacher{}, &models.Task{}, &models.Notification{}, &models.Preference{}); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	feed := repository.NewChangeFeed()
	feed.Cascade(models.Teacher{}.TableName(), models.Task{}.TableName())
	if err := feed.Attach(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to attach change feed")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	teacherRepo := repository.NewTeacherRepository(db, feed)
	taskRepo := repository.NewTaskRepository(db, feed)
	notificationRepo := repository.NewNotificationRepository(db)
	preferenceRepo := repository.NewPreferenceRepository(db, feed)

	settingsService, err := service.NewSettingsService(preferenceRepo, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise settings")
	}

	notificationService := service.NewNotificationService(notificationRepo, settingsService, redisClient, cfg.ChannelBase, natsConn, validate, logger)
	if err := notificationService.RegisterChannel(service.DeadlineChannel()); err != nil {
		logger.Fatal().Err(err).Msg("failed to register deadline channel")
	}
	notificationService.Start(ctx)

	taskService := service.NewTaskService(taskRepo, teacherRepo, logger)
	teacherService := service.NewTeacherService(teacherRepo, settingsService, validate, logger)

	var workerOpts []scheduler.WorkerOption
	if redisClient != nil {
		workerOpts = append(workerOpts, scheduler.WithDeliveryGuard(redisClient, cfg.DeliveryGuardTTL, uuid.NewString()))
	}
	worker := scheduler.NewDeliveryWorker(taskRepo, notificationService, settingsService, logger, workerOpts...)
	queue := scheduler.NewDelayedQueue(worker, logger)
	notificationScheduler := scheduler.NewScheduler(taskRepo, queue, logger)

	coordinator := service.NewTaskCoordinator(taskService, teacherService, notificationScheduler, settingsService, validate, logger)

	rearmer := scheduler.NewRearmer(notificationScheduler, logger)
	rearmer.RunAsync(scheduler.TriggerStartup)
	if err := rearmer.StartCron(cfg.RearmCron); err != nil {
		logger.Fatal().Err(err).Str("spec", cfg.RearmCron).Msg("failed to start re-arm schedule")
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to access database pool")
	}

	var jwtMiddleware fiber.Handler
	if cfg.AuthEnabled() {
		jwtMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	} else {
		logger.Warn().Msg("jwt secret not configured, api is unauthenticated")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		ErrorHandler: middleware.ErrorHandler,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSOrigins})
	router.Register(app, cfg, router.Dependencies{
		TeacherHandler:      handler.NewTeacherHandler(teacherService, taskService, coordinator, settingsService, logger),
		TaskHandler:         handler.NewTaskHandler(coordinator, taskService, validate, logger),
		SettingsHandler:     handler.NewSettingsHandler(settingsService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, cfg.StreamKeepAlive),
		SystemHandler:       handler.NewSystemHandler(rearmer, queue, logger),
		DB:                  sqlDB,
		Queue:               queue,
		JWTMiddleware:       jwtMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger, func() {
		rearmer.Stop()
		queue.Close()
		cancel()
	})
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger, cleanup func()) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	cleanup()

	logger.Info().Msg("server stopped")
}
