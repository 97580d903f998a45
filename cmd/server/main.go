package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cuentee/internal/authutils"
	"cuentee/internal/config"
	"cuentee/internal/database"
	"cuentee/internal/delivery/websocket"
	"cuentee/internal/generation"
	"cuentee/internal/handler"
	"cuentee/internal/interfaces"
	"cuentee/internal/logger"
	"cuentee/internal/messaging"
	"cuentee/internal/middleware"
	"cuentee/internal/service"
	"cuentee/internal/storage"
	"cuentee/pkg/taskmanager"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	bootLogger, _ := zap.NewProduction()
	cfg, err := config.LoadConfig(*configPath, bootLogger)
	if err != nil {
		bootLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Encoding:   cfg.Log.Encoding,
		OutputPath: cfg.Log.OutputPath,
	})
	if err != nil {
		bootLogger.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)
	log.Info("Logger initialized", zap.String("level", cfg.Log.Level))

	if err := run(cfg, log); err != nil {
		log.Fatal("Server stopped with error", zap.Error(err))
	}
	log.Info("Server exiting")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Хранилища ---
	pool, err := database.NewPool(ctx, cfg.Database, log.Named("Postgres"))
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.Database.RunMigrations {
		if err := database.ApplyMigrations(ctx, pool, log); err != nil {
			return err
		}
	}

	redisClient, err := setupRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	log.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

	storyRepo := database.NewPgStoryRepository(pool, log)
	profileRepo := database.NewPgProfileRepository(pool, log)
	generationStore := database.NewRedisGenerationStore(redisClient, log)

	// --- Внешние сервисы ---
	var publisher interfaces.StoryEventPublisher = messaging.NewNoopPublisher(log)
	if cfg.RabbitMQ.URI != "" {
		var mqConn *amqp.Connection
		mqConn, err = messaging.Dial(cfg.RabbitMQ.URI, log)
		if err != nil {
			return err
		}
		defer mqConn.Close()
		rabbitPublisher, err := messaging.NewRabbitMQStoryPublisher(mqConn, cfg.RabbitMQ.StoryGeneratedQueue, log)
		if err != nil {
			return err
		}
		defer rabbitPublisher.Close()
		publisher = rabbitPublisher
	}

	var objectStorage interfaces.ObjectStorage
	if cfg.Storage.BaseURL != "" {
		storageClient, err := storage.NewClient(cfg.Storage.BaseURL, cfg.Storage.ServiceKey, cfg.Generation.RequestTimeout, log)
		if err != nil {
			return err
		}
		objectStorage = storageClient
	} else {
		log.Warn("Storage URL not set, story images will not be removed on delete")
	}

	taskAPI, err := generation.NewClient(cfg.Generation.APIBaseURL, cfg.Generation.RequestTimeout, log)
	if err != nil {
		return err
	}

	verifier, err := authutils.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Audience, log)
	if err != nil {
		return err
	}

	// --- Фоновые компоненты ---
	wsManager := websocket.NewWebSocketManager(cfg.CORS.AllowedOrigins, log)
	go wsManager.Run(ctx)

	tasks := taskmanager.New(taskmanager.Config{MaxTasks: cfg.Generation.MaxActiveTasks}, log)
	go tasks.RunCleanup(ctx, cfg.Generation.CleanupPeriod, cfg.Generation.JobTTL)

	// --- Сервисы ---
	storyService := service.NewStoryService(storyRepo, objectStorage, cfg.Storage.Bucket, log)
	profileService := service.NewProfileService(profileRepo, log)
	creditService := service.NewCreditService(profileRepo, log)
	generationService := service.NewGenerationService(service.GenerationDeps{
		API:       taskAPI,
		Metrics:   generation.NewMetrics(prometheus.DefaultRegisterer),
		Tasks:     tasks,
		Lock:      generationStore,
		Jobs:      generationStore,
		Credits:   creditService,
		Stories:   storyService,
		Publisher: publisher,
		Notifier:  wsManager,
	}, service.GenerationSettings{
		PollInterval: cfg.Generation.PollInterval,
		MaxPolls:     cfg.Generation.MaxPolls,
		JobTTL:       cfg.Generation.JobTTL,
		LockTTL:      cfg.Generation.LockTTL(),
		DefaultTitle: cfg.Generation.DefaultTitle,
	}, log)

	// --- HTTP ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(middleware.ZapLoggingMiddlewareForGin(log))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	h := handler.NewHandler(handler.Deps{
		Stories:              storyService,
		Profiles:             profileService,
		Credits:              creditService,
		Generations:          generationService,
		Clients:              wsManager,
		Verifier:             verifier,
		InternalServiceToken: cfg.Auth.InternalServiceToken,
	}, log)
	h.RegisterRoutes(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	if err := tasks.Shutdown(shutdownCtx); err != nil {
		log.Error("Generation tasks did not stop in time", zap.Error(err))
	}
	return nil
}

func setupRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}
