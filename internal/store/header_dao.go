package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xxxsen/romvault/internal/model"
)

const (
	selectHeaderBySystemSQL = `SELECT id, system_id, name, version, operation FROM headers WHERE system_id = ?`
	insertHeaderSQL         = `INSERT INTO headers (system_id, name, version, operation) VALUES (?, ?, ?, ?)`
	updateHeaderSQL         = `UPDATE headers SET name = ?, version = ?, operation = ? WHERE id = ?`
	deleteHeaderRulesSQL    = `DELETE FROM header_rules WHERE header_id = ?`
	insertHeaderRuleSQL     = `INSERT INTO header_rules (header_id, start_byte, length, hex_pattern) VALUES (?, ?, ?, ?)`
	selectHeaderRulesSQL    = `SELECT start_byte, length, hex_pattern FROM header_rules WHERE header_id = ?`
)

// HeaderDAO persists the per-System Header definition used to detect and
// strip platform header prefixes before hashing (spec.md §3 "Header").
type HeaderDAO struct {
	db *sql.DB
}

// Upsert stores a Header and replaces its rule set wholesale — header
// definitions are small and loaded from embedded templates, so a
// replace-all on update is simpler than diffing rule rows.
func (dao *HeaderDAO) Upsert(ctx context.Context, h model.Header) (int64, error) {
	tx, err := dao.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin header upsert: %v", ErrIO, err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT id FROM headers WHERE system_id = ?`, h.SystemID)
	var id int64
	switch err := row.Scan(&id); {
	case err == sql.ErrNoRows:
		res, err := tx.ExecContext(ctx, insertHeaderSQL, h.SystemID, h.Name, h.Version, string(h.Operation))
		if err != nil {
			return 0, fmt.Errorf("%w: insert header: %v", ErrIO, err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("%w: header id: %v", ErrIO, err)
		}
	case err != nil:
		return 0, fmt.Errorf("%w: lookup header: %v", ErrIO, err)
	default:
		if _, err := tx.ExecContext(ctx, updateHeaderSQL, h.Name, h.Version, string(h.Operation), id); err != nil {
			return 0, fmt.Errorf("%w: update header: %v", ErrIO, err)
		}
	}

	if _, err := tx.ExecContext(ctx, deleteHeaderRulesSQL, id); err != nil {
		return 0, fmt.Errorf("%w: clear header rules: %v", ErrIO, err)
	}
	for _, r := range h.Rules {
		if _, err := tx.ExecContext(ctx, insertHeaderRuleSQL, id, r.StartByte, r.Length, r.HexPattern); err != nil {
			return 0, fmt.Errorf("%w: insert header rule: %v", ErrIO, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit header upsert: %v", ErrIO, err)
	}
	return id, nil
}

// GetBySystem returns the Header definition for systemID, or ErrNotFound
// if the system has none (most systems don't).
func (dao *HeaderDAO) GetBySystem(ctx context.Context, systemID int64) (model.Header, error) {
	row := dao.db.QueryRowContext(ctx, selectHeaderBySystemSQL, systemID)
	var h model.Header
	var op string
	err := row.Scan(&h.ID, &h.SystemID, &h.Name, &h.Version, &op)
	if err == sql.ErrNoRows {
		return model.Header{}, fmt.Errorf("%w: header for system %d", ErrNotFound, systemID)
	}
	if err != nil {
		return model.Header{}, fmt.Errorf("%w: scan header: %v", ErrIO, err)
	}
	h.Operation = model.HeaderOperation(op)

	rows, err := dao.db.QueryContext(ctx, selectHeaderRulesSQL, h.ID)
	if err != nil {
		return model.Header{}, fmt.Errorf("%w: load header rules: %v", ErrIO, err)
	}
	defer rows.Close()
	for rows.Next() {
		var r model.HeaderRule
		if err := rows.Scan(&r.StartByte, &r.Length, &r.HexPattern); err != nil {
			return model.Header{}, fmt.Errorf("%w: scan header rule: %v", ErrIO, err)
		}
		h.Rules = append(h.Rules, r)
	}
	return h, rows.Err()
}
