package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/prepstack-ai/prepstack-engine/pkg/auth"
	"github.com/prepstack-ai/prepstack-engine/pkg/config"
	"github.com/prepstack-ai/prepstack-engine/pkg/database"
	"github.com/prepstack-ai/prepstack-engine/pkg/handlers"
	"github.com/prepstack-ai/prepstack-engine/pkg/llm"
	"github.com/prepstack-ai/prepstack-engine/pkg/logging"
	"github.com/prepstack-ai/prepstack-engine/pkg/repositories"
	"github.com/prepstack-ai/prepstack-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("ai_model", cfg.AI.Model))

	ctx := context.Background()

	// Migrations run over database/sql; the pgx pool handles request traffic.
	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = migrationDB.Close()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisClient == nil {
		logger.Info("Redis not configured, spec cache disabled")
	}

	// Repositories
	specRepo := repositories.NewSpecRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	boardRepo := repositories.NewBoardRepository(db)
	turnRepo := repositories.NewTurnRepository(db)
	attemptRepo := repositories.NewAttemptRepository(db)

	// Services
	specService := services.NewSpecService(specRepo, redisClient,
		time.Duration(cfg.Redis.SpecCacheTTLMin)*time.Minute, logger)

	if cfg.SpecSeedDir != "" {
		if _, err := specService.SeedFromDir(ctx, cfg.SpecSeedDir); err != nil {
			logger.Fatal("Failed to seed design specs", zap.Error(err))
		}
	}

	factory := llm.NewFactory(&cfg.AI, logger)
	coachService := services.NewCoachService(
		sessionRepo, boardRepo, turnRepo, attemptRepo,
		specService, factory, &cfg.AI, logger)

	// Auth
	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		logger.Fatal("Failed to create JWKS client", zap.Error(err))
	}
	defer jwksClient.Close()
	authMiddleware := auth.NewMiddleware(jwksClient, logger)

	// Handlers
	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, db, logger).RegisterRoutes(mux)
	handlers.NewCoachHandler(coachService, logger).RegisterRoutes(mux, authMiddleware)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting prepstack-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))

	if cfg.TLSCertPath != "" {
		err = http.ListenAndServeTLS(addr, cfg.TLSCertPath, cfg.TLSKeyPath, mux)
	} else {
		err = http.ListenAndServe(addr, mux)
	}
	if err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
