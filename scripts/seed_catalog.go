package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"leasemarket/internal/config"
	"leasemarket/internal/database"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		catalogPath = flag.String("catalog", "configs/catalog.yaml", "path to catalog.yaml")
		dbPath      = flag.String("db", "./data/leases.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*catalogPath)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	var catalog config.CatalogConfig
	if err = yaml.Unmarshal(data, &catalog); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}
	if len(catalog.Requesters) == 0 && len(catalog.Resources) == 0 {
		return fmt.Errorf("no requesters or resources in yaml")
	}
	if err := config.ValidateCatalog(catalog); err != nil {
		return err
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.SeedCatalog(ctx, catalog.Requesters, catalog.Resources); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}

	logger.Info().
		Int("requesters", len(catalog.Requesters)).
		Int("resources", len(catalog.Resources)).
		Str("db", *dbPath).
		Msg("catalog seeded")
	return nil
}
