package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leasemarket/internal/domain"
	"leasemarket/internal/models"
)

const contractColumns = `
        c.id, c.price, c.created_at,
        r.id, r.name, r.is_vip,
        s.id, s.name, s.hourly_rate`

// GetForResource возвращает договоры ресурса, у которых есть хотя бы один час в диапазоне дней.
// Часы договора возвращаются полностью, а не только попавшие в диапазон.
func (db *DB) GetForResource(ctx context.Context, resourceID int64, dayFrom, dayTo string) ([]models.Contract, error) {
	matching := `SELECT DISTINCT contract_id FROM contract_hours WHERE resource_id = ? AND day BETWEEN ? AND ?`

	rows, err := db.db.QueryContext(ctx, `
        SELECT `+contractColumns+`
        FROM contracts c
        JOIN requesters r ON r.id = c.requester_id
        JOIN resources s ON s.id = c.resource_id
        WHERE c.id IN (`+matching+`)
        ORDER BY c.id`,
		resourceID, dayFrom, dayTo)
	if err != nil {
		return nil, fmt.Errorf("query contracts: %w", err)
	}

	var contracts []models.Contract
	byID := make(map[int64]int)
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		byID[c.ID] = len(contracts)
		contracts = append(contracts, *c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(contracts) == 0 {
		return nil, nil
	}

	hourRows, err := db.db.QueryContext(ctx, `
        SELECT contract_id, slot FROM contract_hours
        WHERE contract_id IN (`+matching+`)
        ORDER BY contract_id, slot`,
		resourceID, dayFrom, dayTo)
	if err != nil {
		return nil, fmt.Errorf("query contract hours: %w", err)
	}
	defer hourRows.Close()

	for hourRows.Next() {
		var contractID int64
		var slot models.HourSlot
		if err := hourRows.Scan(&contractID, &slot); err != nil {
			return nil, err
		}
		if i, ok := byID[contractID]; ok {
			contracts[i].Hours = append(contracts[i].Hours, slot)
		}
	}
	return contracts, hourRows.Err()
}

// SaveContract сохраняет договор в транзакции. Перед вставкой часы проверяются повторно
// по тому же правилу приоритета, что и при расчете: занятый час блокирует обычного
// арендатора всегда, а VIP-арендатора только если владелец тоже VIP.
func (db *DB) SaveContract(ctx context.Context, contract *models.Contract) error {
	if contract == nil {
		return errors.New("contract is nil")
	}
	if len(contract.Hours) == 0 {
		return errors.New("contract has no hours")
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	first, last := contract.Hours[0], contract.Hours[0]
	wanted := make(map[models.HourSlot]struct{}, len(contract.Hours))
	for _, h := range contract.Hours {
		wanted[h] = struct{}{}
		first = min(first, h)
		last = max(last, h)
	}

	rows, err := tx.QueryContext(ctx, `
        SELECT h.slot
        FROM contract_hours h
        JOIN contracts c ON c.id = h.contract_id
        JOIN requesters r ON r.id = c.requester_id
        WHERE h.resource_id = ?
        AND h.slot BETWEEN ? AND ?
        AND (? = 0 OR r.is_vip = 1)
        ORDER BY h.slot`,
		contract.Resource.ID, first, last, contract.Requester.IsVIP)
	if err != nil {
		return fmt.Errorf("check busy hours: %w", err)
	}
	var busy *models.HourSlot
	for rows.Next() {
		var slot models.HourSlot
		if err := rows.Scan(&slot); err != nil {
			rows.Close()
			return err
		}
		if _, ok := wanted[slot]; ok {
			busy = &slot
			break
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if busy != nil {
		return fmt.Errorf("resource %d at %s: %w", contract.Resource.ID, *busy, domain.ErrConflict)
	}

	createdAt := contract.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	result, err := tx.ExecContext(ctx, `
        INSERT INTO contracts (requester_id, resource_id, price, created_at)
        VALUES (?, ?, ?, ?)`,
		contract.Requester.ID, contract.Resource.ID, contract.Price, createdAt)
	if err != nil {
		return fmt.Errorf("insert contract: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO contract_hours (contract_id, resource_id, slot, day) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, h := range contract.Hours {
		if _, err := stmt.ExecContext(ctx, id, contract.Resource.ID, h, h.Day()); err != nil {
			return fmt.Errorf("insert contract hour %s: %w", h, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	contract.ID = id
	contract.CreatedAt = createdAt
	db.logger.Debug().
		Int64("contract_id", id).
		Int64("resource_id", contract.Resource.ID).
		Int("hours", len(contract.Hours)).
		Msg("Contract saved")
	return nil
}

func scanContract(row rowScanner) (*models.Contract, error) {
	var c models.Contract
	err := row.Scan(
		&c.ID,
		&c.Price,
		&c.CreatedAt,
		&c.Requester.ID,
		&c.Requester.Name,
		&c.Requester.IsVIP,
		&c.Resource.ID,
		&c.Resource.Name,
		&c.Resource.HourlyRate,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
