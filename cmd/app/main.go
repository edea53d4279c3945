package main

import (
	"flag"
	"log"
	"os"

	"github.com/Habtu32/brent-oil-change-point-analysis/internal/di"
	"github.com/Habtu32/brent-oil-change-point-analysis/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s prices=%s", cfg.Environment, cfg.Data.PricesCSV)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
