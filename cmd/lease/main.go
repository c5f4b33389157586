// Command lease evaluates a single lease request against the SQLite store.
//
//	lease -requester 1 -resource 1 -from "2017-01-01 00:00" -to "2017-01-01 03:00" [-save]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"leasemarket/internal/config"
	"leasemarket/internal/database"
	"leasemarket/internal/lease"
	"leasemarket/internal/logging"
	"leasemarket/internal/models"
	"leasemarket/internal/repository"
	"leasemarket/internal/service"
)

// exitRejected отличает отказ от ошибки запуска.
const exitRejected = 2

func main() {
	rejected, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if rejected {
		os.Exit(exitRejected)
	}
}

func run() (bool, error) {
	var (
		configPath  = flag.String("config", "configs/config.yaml", "path to config.yaml")
		dbPath      = flag.String("db", "", "path to sqlite db (overrides config)")
		requesterID = flag.Int64("requester", 0, "requester id")
		resourceID  = flag.Int64("resource", 0, "resource id")
		from        = flag.String("from", "", "start time, e.g. \"2017-01-01 00:00\"")
		to          = flag.String("to", "", "end time, e.g. \"2017-01-01 03:00\"")
		save        = flag.Bool("save", false, "store the contract when granted")
	)
	flag.Parse()

	if *requesterID <= 0 || *resourceID <= 0 || *from == "" || *to == "" {
		flag.Usage()
		return false, errors.New("requester, resource, from and to are required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return false, fmt.Errorf("load config: %w", err)
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if cfg.Database.Path == "" {
		return false, errors.New("database path is not set")
	}

	// в stdout идет только JSON ответа
	if cfg.Logging.Output == "" || cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return false, fmt.Errorf("init logger: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
	if err != nil {
		return false, fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	req := models.LeaseRequest{
		RequesterID: *requesterID,
		ResourceID:  *resourceID,
		TimeFrom:    *from,
		TimeTo:      *to,
	}

	var resp *models.LeaseResponse
	if *save {
		svc := service.NewLeaseService(db, repository.NewMemoryResourceLocker(), nil,
			cfg.Lease.MaxDailyHours, cfg.Lease.LockTimeout(), logging.Component(logger, "lease-service"))
		resp, err = svc.Lease(ctx, req)
	} else {
		op := lease.NewOperation(db, db, db,
			lease.WithMaxDailyHours(cfg.Lease.MaxDailyHours),
			lease.WithLogger(logging.Component(logger, "lease")))
		resp, err = op.Run(ctx, req)
	}
	if err != nil {
		return false, err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return false, fmt.Errorf("encode response: %w", err)
	}
	return !resp.OK(), nil
}
