// main.go
package main

import (
	"context"
	"log"

	"member-onboarding/cmd"
	"member-onboarding/internal/data/entity"
	"member-onboarding/internal/data/repository"
	"member-onboarding/internal/usecase"
	"member-onboarding/internal/wire"
	"member-onboarding/pkg/database"
	"member-onboarding/pkg/mailer"
	"member-onboarding/pkg/ratelimit"
	"member-onboarding/pkg/storage"
	"member-onboarding/pkg/utils"

	"go.uber.org/zap"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.String("db_driver", config.Database.Driver),
		zap.Bool("debug", config.App.Debug),
	)

	ctx := context.Background()

	// Initialize all repositories
	var repos *repository.Repository
	switch config.Database.Driver {
	case "memory":
		regions := make([]entity.Region, 0, len(config.Database.SeedRegions))
		for i, name := range config.Database.SeedRegions {
			regions = append(regions, entity.Region{ID: int64(i + 1), Name: name})
		}
		repos = repository.NewMemoryRepository(logger, regions...)
		logger.Warn("Using in-memory storage; data is lost on restart")

	default:
		db, err := database.InitDB(config.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		logger.Info("Database connected successfully")

		if config.Database.AutoMigrate {
			if err := database.Migrate(ctx, db, logger); err != nil {
				logger.Fatal("Failed to migrate database", zap.Error(err))
			}
		}
		repos = repository.NewRepository(db, logger)
	}

	// Rate-limit state
	var limits ratelimit.Store = ratelimit.NewMemoryStore()
	if config.Redis.Addr != "" {
		client, err := database.InitRedis(config.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer client.Close()
		limits = ratelimit.NewRedisStore(client)
		logger.Info("Redis connected successfully")
	} else {
		logger.Warn("REDIS_ADDR not set; rate limits are kept per process")
	}

	// Email delivery
	var sender usecase.EmailSender = mailer.NewLogSender(config.App.BaseURL, logger)
	if config.Email.Host != "" {
		smtp, err := mailer.NewSMTPSender(config.Email, config.App.BaseURL, logger)
		if err != nil {
			logger.Fatal("Failed to init SMTP sender", zap.Error(err))
		}
		sender = smtp
	} else {
		logger.Warn("SMTP_HOST not set; emails are written to the log")
	}

	files, err := storage.NewFileStore(config.Upload, logger)
	if err != nil {
		logger.Fatal("Failed to init file storage", zap.Error(err))
	}

	audit := usecase.NewAuditSink(repos.Audit, logger)
	deps := usecase.Dependencies{
		Mailer: sender,
		Files:  files,
		Limits: limits,
		Audit:  audit,
	}

	if _, err := usecase.BootstrapAdmin(ctx, repos, config, deps, logger); err != nil {
		logger.Fatal("Failed to bootstrap admin account", zap.Error(err))
	}

	// Wire all dependencies
	app := wire.Wiring(repos, config, deps, logger)

	// Start server
	logger.Info("Starting HTTP server", zap.String("port", config.App.Port))

	if err := cmd.APIServer(app.Router, config.App, audit, logger); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
	}
}
