package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/raailabs/raai/internal/config"
	"github.com/raailabs/raai/internal/logging"
	"github.com/raailabs/raai/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Printf("Could not load %s: %v. Using defaults", cfgPath, err)
		cfg = config.Default()
	}
	cfg.ApplyEnv()

	logger := logging.New(cfg.Server.LogLevel)
	defer logger.Sync()

	srv, err := server.NewServer(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatalw("failed to initialize server", "error", err)
	}
	defer srv.Store.Close()

	r := srv.SetupRouter()
	logger.Infow("starting server", "addr", cfg.Server.Addr)
	if err := r.Run(cfg.Server.Addr); err != nil {
		logger.Fatalw("server exited", "error", err)
	}
}
