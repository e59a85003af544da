package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"social-backend/internal/config"
	"social-backend/internal/handlers"
	"social-backend/internal/ratelimit"
	"social-backend/internal/repository"
	"social-backend/internal/repository/memory"
	"social-backend/internal/services"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	stores, closeStores := openStores(ctx, cfg.Database)
	defer closeStores()

	// Redis is optional; without it activity and rate limits stay on this instance
	var redisClient *redis.Client
	var limiter ratelimit.Limiter = ratelimit.NewMemory()
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ping redis")
		}
		limiter = ratelimit.NewRedis(redisClient)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis connection established")
	}

	wsHub := services.NewWSHub(redisClient)
	if err := wsHub.Subscribe(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to subscribe to activity")
	}

	// Initialize services
	s3Client, err := services.NewS3Client(ctx, cfg.AWS)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create S3 client")
	}
	media := services.NewMediaService(s3Client, cfg.AWS, cfg.Upload.MaxBytes)

	var pusher services.Pusher
	if cfg.APNs.KeyFile != "" {
		apns, err := services.NewAPNsPusher(cfg.APNs.KeyFile, cfg.APNs.KeyID, cfg.APNs.TeamID, cfg.APNs.Topic, cfg.APNs.Production)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create APNs client")
		}
		pusher = apns
	}
	notifier := services.NewActivityNotifier(wsHub, pusher, stores.Users)

	var github services.GitHubIdentity
	if cfg.GitHub.ClientID != "" {
		github = services.NewGitHubOAuth(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret)
	}

	authService := services.NewAuthService(stores.Users, github, cfg.JWT.Secret, cfg.JWT.ExpiresIn)
	userService := services.NewUserService(stores, media, notifier)
	postService := services.NewPostService(stores, media, notifier)
	mailService := services.NewMailService(stores.Users, services.NewSMTPSender(cfg.Mail), cfg.AppURL)

	// Initialize handlers
	router := handlers.NewRouter(handlers.Handlers{
		Auth:      handlers.NewAuthHandler(authService),
		User:      handlers.NewUserHandler(userService, cfg.Upload.MaxBytes),
		Post:      handlers.NewPostHandler(postService, cfg.Upload.MaxBytes),
		Mail:      handlers.NewMailHandler(mailService),
		WebSocket: handlers.NewWebSocketHandler(wsHub, authService),
	}, authService, handlers.RouterConfig{
		RequestTimeout: cfg.Server.RequestTimeout,
		Limiter:        limiter,
		AuthPerMinute:  cfg.RateLimit.AuthPerMinute,
		MailPerMinute:  cfg.RateLimit.MailPerMinute,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	stop()

	log.Info().Msg("Server exited")
}

// openStores connects the configured store and returns a function releasing it
func openStores(ctx context.Context, cfg config.DatabaseConfig) (services.Stores, func()) {
	if cfg.Driver == "memory" {
		log.Warn().Msg("Using in-memory store, data is lost on restart")
		store := memory.New()
		return services.Stores{
			Users:    store.Users(),
			Posts:    store.Posts(),
			Comments: store.Comments(),
			Tx:       store,
		}, func() {}
	}

	db, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	// Test database connection
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	if cfg.Migrate {
		if err := repository.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply schema")
		}
		log.Info().Msg("Database schema applied")
	}

	return services.Stores{
		Users:    repository.NewUserRepository(db),
		Posts:    repository.NewPostRepository(db),
		Comments: repository.NewCommentRepository(db),
		Tx:       repository.NewTxManager(db),
	}, db.Close
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
