// migrate applies the embedded schema migrations to the configured database.
package main

import (
	"flag"
	"log"

	"tenantauth-backend/internal/config"
	"tenantauth-backend/internal/db"
	"tenantauth-backend/internal/logger"
)

func main() {
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)

	logger.Info("Running migrations", "direction", *direction, "database", cfg.Database.Database)
	if err := db.Run(cfg.GetDatabaseConnectionString(), *direction); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	logger.Info("Migrations complete")
}
