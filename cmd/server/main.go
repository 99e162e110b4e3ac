package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/KevinKickass/ParamBridge/internal/auth"
	"github.com/KevinKickass/ParamBridge/internal/config"
	"github.com/KevinKickass/ParamBridge/internal/storage"
	"github.com/KevinKickass/ParamBridge/internal/system"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	dev := flag.Bool("dev", false, "human-readable debug logging")
	issueToken := flag.String("issue-token", "", "print an access token for subject:role and exit")
	flag.Parse()

	logger, err := newLogger(*dev)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Config loaded successfully", zap.String("path", *configPath))

	if *issueToken != "" {
		token, err := mintToken(cfg, *issueToken)
		if err != nil {
			logger.Fatal("Failed to issue token", zap.Error(err))
		}
		fmt.Println(token)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *storage.PostgresClient
	if cfg.Database.Enabled {
		db, err = storage.NewPostgresClient(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		logger.Info("Database connected successfully")
	}

	lifecycle, err := system.NewLifecycleManager(db, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build system", zap.Error(err))
	}

	if err := lifecycle.Start(ctx); err != nil {
		logger.Fatal("Failed to start system", zap.Error(err))
	}

	logger.Info("ParamBridge started successfully")

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := lifecycle.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("ParamBridge stopped successfully")
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// mintToken issues a token for "subject:role", e.g. "ops:operator".
func mintToken(cfg *config.Config, spec string) (string, error) {
	subject, role, ok := strings.Cut(spec, ":")
	if !ok || subject == "" {
		return "", fmt.Errorf("expected subject:role, got %q", spec)
	}

	h := auth.NewJWTHandler(cfg.Auth.GetJWTSecret(), cfg.Auth.AccessTokenTTL, cfg.Auth.Issuer)
	return h.GenerateAccessToken(subject, auth.Role(role))
}
