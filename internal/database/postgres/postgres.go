// Package postgres is the PostgreSQL driver for contract storage, selected with
// database.driver: postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leasemarket/internal/domain"
	"leasemarket/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS requesters (
        id BIGINT PRIMARY KEY,
        name TEXT NOT NULL,
        is_vip BOOLEAN NOT NULL DEFAULT FALSE,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE TABLE IF NOT EXISTS resources (
        id BIGINT PRIMARY KEY,
        name TEXT NOT NULL,
        hourly_rate DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (hourly_rate >= 0),
        created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE TABLE IF NOT EXISTS contracts (
        id BIGSERIAL PRIMARY KEY,
        requester_id BIGINT NOT NULL REFERENCES requesters(id),
        resource_id BIGINT NOT NULL REFERENCES resources(id),
        price DOUBLE PRECISION NOT NULL,
        created_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS contract_hours (
        contract_id BIGINT NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
        resource_id BIGINT NOT NULL,
        slot BIGINT NOT NULL,
        day TEXT NOT NULL,
        PRIMARY KEY (contract_id, slot)
    )`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_resource_id ON contracts(resource_id)`,
	`CREATE INDEX IF NOT EXISTS idx_contract_hours_resource_day ON contract_hours(resource_id, day)`,
	`CREATE INDEX IF NOT EXISTS idx_contract_hours_resource_slot ON contract_hours(resource_id, slot)`,
}

// Repository implements domain.Repository on a pgx pool.
type Repository struct {
	pool   *pgxpool.Pool
	logger *zerolog.Logger
}

// New connects, pings and migrates.
func New(ctx context.Context, dsn string, logger *zerolog.Logger) (*Repository, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	r := &Repository{pool: pool, logger: logger}
	if err := r.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info().Str("host", cfg.ConnConfig.Host).Str("database", cfg.ConnConfig.Database).Msg("Postgres initialized")
	return r, nil
}

func (r *Repository) migrate(ctx context.Context) error {
	for _, q := range schema {
		if _, err := r.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close закрывает пул; ошибка оставлена для совместимости с io.Closer.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

const (
	upsertRequester = `
        INSERT INTO requesters (id, name, is_vip) VALUES ($1, $2, $3)
        ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, is_vip = EXCLUDED.is_vip, updated_at = now()`
	upsertResource = `
        INSERT INTO resources (id, name, hourly_rate) VALUES ($1, $2, $3)
        ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, hourly_rate = EXCLUDED.hourly_rate, updated_at = now()`
)

// SeedCatalog upserts the whole catalog in a single transaction.
func (r *Repository) SeedCatalog(ctx context.Context, requesters []models.Requester, resources []models.Resource) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, q := range requesters {
			batch.Queue(upsertRequester, q.ID, q.Name, q.IsVIP)
		}
		for _, s := range resources {
			batch.Queue(upsertResource, s.ID, s.Name, s.HourlyRate)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		r.logger.Info().Int("requesters", len(requesters)).Int("resources", len(resources)).Msg("Catalog seeded")
		return nil
	})
}

func (r *Repository) GetRequester(ctx context.Context, id int64) (*models.Requester, error) {
	var q models.Requester
	err := r.pool.QueryRow(ctx, `SELECT id, name, is_vip FROM requesters WHERE id = $1`, id).
		Scan(&q.ID, &q.Name, &q.IsVIP)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("requester %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *Repository) GetResource(ctx context.Context, id int64) (*models.Resource, error) {
	var s models.Resource
	err := r.pool.QueryRow(ctx, `SELECT id, name, hourly_rate FROM resources WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.HourlyRate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("resource %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) ListResources(ctx context.Context) ([]models.Resource, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, hourly_rate FROM resources ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Resource, error) {
		var s models.Resource
		err := row.Scan(&s.ID, &s.Name, &s.HourlyRate)
		return s, err
	})
}

// GetForResource returns every contract with at least one hour in the day range,
// each with its full set of hours.
func (r *Repository) GetForResource(ctx context.Context, resourceID int64, dayFrom, dayTo string) ([]models.Contract, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT c.id, c.price, c.created_at,
               q.id, q.name, q.is_vip,
               s.id, s.name, s.hourly_rate,
               array_agg(h.slot ORDER BY h.slot)
        FROM contracts c
        JOIN requesters q ON q.id = c.requester_id
        JOIN resources s ON s.id = c.resource_id
        JOIN contract_hours h ON h.contract_id = c.id
        WHERE c.id IN (
            SELECT contract_id FROM contract_hours
            WHERE resource_id = $1 AND day BETWEEN $2 AND $3
        )
        GROUP BY c.id, q.id, s.id
        ORDER BY c.id`,
		resourceID, dayFrom, dayTo)
	if err != nil {
		return nil, fmt.Errorf("query contracts: %w", err)
	}

	contracts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Contract, error) {
		var (
			c     models.Contract
			slots []int64
		)
		err := row.Scan(
			&c.ID, &c.Price, &c.CreatedAt,
			&c.Requester.ID, &c.Requester.Name, &c.Requester.IsVIP,
			&c.Resource.ID, &c.Resource.Name, &c.Resource.HourlyRate,
			&slots,
		)
		c.Hours = make([]models.HourSlot, len(slots))
		for i, s := range slots {
			c.Hours[i] = models.HourSlot(s)
		}
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan contracts: %w", err)
	}
	if len(contracts) == 0 {
		return nil, nil
	}
	return contracts, nil
}

// SaveContract locks the resource row so concurrent writers of the same resource
// are serialized, re-checks the hours with the privilege rule and inserts.
func (r *Repository) SaveContract(ctx context.Context, contract *models.Contract) error {
	if contract == nil {
		return errors.New("contract is nil")
	}
	if len(contract.Hours) == 0 {
		return errors.New("contract has no hours")
	}

	slots := make([]int64, len(contract.Hours))
	for i, h := range contract.Hours {
		slots[i] = int64(h)
	}
	createdAt := contract.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var id int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var locked int64
		err := tx.QueryRow(ctx, `SELECT id FROM resources WHERE id = $1 FOR UPDATE`, contract.Resource.ID).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("resource %d: %w", contract.Resource.ID, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock resource: %w", err)
		}

		var busy int64
		err = tx.QueryRow(ctx, `
            SELECT h.slot
            FROM contract_hours h
            JOIN contracts c ON c.id = h.contract_id
            JOIN requesters q ON q.id = c.requester_id
            WHERE h.resource_id = $1
            AND h.slot = ANY($2)
            AND (NOT $3 OR q.is_vip)
            ORDER BY h.slot
            LIMIT 1`,
			contract.Resource.ID, slots, contract.Requester.IsVIP).Scan(&busy)
		switch {
		case err == nil:
			return fmt.Errorf("resource %d at %s: %w", contract.Resource.ID, models.HourSlot(busy), domain.ErrConflict)
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("check busy hours: %w", err)
		}

		if err := tx.QueryRow(ctx, `
            INSERT INTO contracts (requester_id, resource_id, price, created_at)
            VALUES ($1, $2, $3, $4) RETURNING id`,
			contract.Requester.ID, contract.Resource.ID, contract.Price, createdAt).Scan(&id); err != nil {
			return fmt.Errorf("insert contract: %w", err)
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"contract_hours"},
			[]string{"contract_id", "resource_id", "slot", "day"},
			pgx.CopyFromSlice(len(contract.Hours), func(i int) ([]any, error) {
				h := contract.Hours[i]
				return []any{id, contract.Resource.ID, int64(h), h.Day()}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("insert contract hours: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	contract.ID = id
	contract.CreatedAt = createdAt
	r.logger.Debug().
		Int64("contract_id", id).
		Int64("resource_id", contract.Resource.ID).
		Int("hours", len(contract.Hours)).
		Msg("Contract saved")
	return nil
}

var _ domain.Repository = (*Repository)(nil)
