package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB is the SQLite-backed repository of requesters, resources and contracts.
type DB struct {
	db     *sql.DB
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	dsn := path
	if path != ":memory:" {
		// Создаем директорию для БД, если её нет
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = "file:" + path + "?_busy_timeout=5000&_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Один писатель: SQLite всё равно сериализует запись, а ":memory:" живёт в одном соединении.
	db.SetMaxOpenConns(1)

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return &DB{db: db, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS requesters (
            id INTEGER PRIMARY KEY,
            name TEXT NOT NULL,
            is_vip BOOLEAN NOT NULL DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS resources (
            id INTEGER PRIMARY KEY,
            name TEXT NOT NULL,
            hourly_rate REAL NOT NULL DEFAULT 0 CHECK (hourly_rate >= 0),
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS contracts (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            requester_id INTEGER NOT NULL REFERENCES requesters(id),
            resource_id INTEGER NOT NULL REFERENCES resources(id),
            price REAL NOT NULL,
            created_at DATETIME NOT NULL
        )`,
		// Одна строка на каждый арендованный час
		`CREATE TABLE IF NOT EXISTS contract_hours (
            contract_id INTEGER NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
            resource_id INTEGER NOT NULL,
            slot INTEGER NOT NULL,
            day TEXT NOT NULL,
            PRIMARY KEY (contract_id, slot)
        )`,

		`CREATE INDEX IF NOT EXISTS idx_contracts_resource_id ON contracts(resource_id)`,
		`CREATE INDEX IF NOT EXISTS idx_contract_hours_resource_day ON contract_hours(resource_id, day)`,
		`CREATE INDEX IF NOT EXISTS idx_contract_hours_resource_slot ON contract_hours(resource_id, slot)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}
