package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"leasemarket/internal/domain"
	"leasemarket/internal/models"
)

const (
	upsertRequesterQuery = `
        INSERT INTO requesters (id, name, is_vip, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            is_vip = excluded.is_vip,
            updated_at = excluded.updated_at
    `
	upsertResourceQuery = `
        INSERT INTO resources (id, name, hourly_rate, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            hourly_rate = excluded.hourly_rate,
            updated_at = excluded.updated_at
    `
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// UpsertRequester создает или обновляет арендатора
func (db *DB) UpsertRequester(ctx context.Context, req *models.Requester) error {
	return upsertRequester(ctx, db.db, req, time.Now())
}

// UpsertResource создает или обновляет ресурс
func (db *DB) UpsertResource(ctx context.Context, res *models.Resource) error {
	return upsertResource(ctx, db.db, res, time.Now())
}

// SeedCatalog upserts every requester and resource in a single transaction.
func (db *DB) SeedCatalog(ctx context.Context, requesters []models.Requester, resources []models.Resource) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	for i := range requesters {
		if err := upsertRequester(ctx, tx, &requesters[i], now); err != nil {
			return err
		}
	}
	for i := range resources {
		if err := upsertResource(ctx, tx, &resources[i], now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	db.logger.Info().Int("requesters", len(requesters)).Int("resources", len(resources)).Msg("Catalog seeded")
	return nil
}

func upsertRequester(ctx context.Context, ex execer, req *models.Requester, now time.Time) error {
	if _, err := ex.ExecContext(ctx, upsertRequesterQuery, req.ID, req.Name, req.IsVIP, now, now); err != nil {
		return fmt.Errorf("upsert requester %d: %w", req.ID, err)
	}
	return nil
}

func upsertResource(ctx context.Context, ex execer, res *models.Resource, now time.Time) error {
	if _, err := ex.ExecContext(ctx, upsertResourceQuery, res.ID, res.Name, res.HourlyRate, now, now); err != nil {
		return fmt.Errorf("upsert resource %d: %w", res.ID, err)
	}
	return nil
}

func (db *DB) GetRequester(ctx context.Context, id int64) (*models.Requester, error) {
	row := db.db.QueryRowContext(ctx, `SELECT id, name, is_vip FROM requesters WHERE id = ?`, id)
	req, err := scanRequester(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("requester %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get requester %d: %w", id, err)
	}
	return req, nil
}

func (db *DB) GetResource(ctx context.Context, id int64) (*models.Resource, error) {
	row := db.db.QueryRowContext(ctx, `SELECT id, name, hourly_rate FROM resources WHERE id = ?`, id)
	res, err := scanResource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resource %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get resource %d: %w", id, err)
	}
	return res, nil
}

// ListResources возвращает все ресурсы по возрастанию ID
func (db *DB) ListResources(ctx context.Context) ([]models.Resource, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT id, name, hourly_rate FROM resources ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var resources []models.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, *res)
	}
	return resources, rows.Err()
}

func scanRequester(row rowScanner) (*models.Requester, error) {
	var req models.Requester
	if err := row.Scan(&req.ID, &req.Name, &req.IsVIP); err != nil {
		return nil, err
	}
	return &req, nil
}

func scanResource(row rowScanner) (*models.Resource, error) {
	var res models.Resource
	if err := row.Scan(&res.ID, &res.Name, &res.HourlyRate); err != nil {
		return nil, err
	}
	return &res, nil
}
