package main

import (
	"log"

	"go.uber.org/zap"

	"github.com/mochiquin/safehome/cmd"
	"github.com/mochiquin/safehome/internal/data/repository"
	"github.com/mochiquin/safehome/internal/wire"
	"github.com/mochiquin/safehome/pkg/crypto"
	"github.com/mochiquin/safehome/pkg/database"
	"github.com/mochiquin/safehome/pkg/utils"
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
		zap.Bool("debug", config.App.Debug),
	)

	// Derive the PII envelope key; refuses weak KDF settings.
	envelope, err := crypto.NewEnvelope(crypto.Config{
		Secret:     config.Crypto.Secret,
		Salt:       config.Crypto.Salt,
		Iterations: config.Crypto.Iterations,
	})
	if err != nil {
		logger.Fatal("Failed to initialize PII envelope", zap.Error(err))
	}

	// Connect to database
	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Database connected successfully")

	// Initialize all repositories
	repos := repository.NewRepository(db, logger)

	// Wire all dependencies
	app := wire.Wiring(repos, config, envelope, logger)

	if err := cmd.APIServer(app.Router, config.App.Port, logger); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}
}
