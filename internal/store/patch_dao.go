package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xxxsen/romvault/internal/model"
)

const (
	insertPatchSQL        = `INSERT INTO patches (rom_id, idx, romfile_id) VALUES (?, ?, ?)`
	selectPatchesByRomSQL = `SELECT id, rom_id, idx, romfile_id FROM patches WHERE rom_id = ? ORDER BY idx`
	deletePatchSQL        = `DELETE FROM patches WHERE id = ?`
)

// PatchDAO persists the Patch entity (spec.md §3 "Patch" — an ordered xdelta
// BPS/UPS/IPS overlay applied on top of a Rom's base bytes).
type PatchDAO struct {
	db *sql.DB
}

// Insert records a new Patch; patches are immutable once created, a new
// Patch with the next Index is added instead of updating one in place.
func (dao *PatchDAO) Insert(ctx context.Context, p model.Patch) (int64, error) {
	res, err := dao.db.ExecContext(ctx, insertPatchSQL, p.RomID, p.Index, p.RomfileID)
	if err != nil {
		return 0, fmt.Errorf("%w: insert patch: %v", ErrIO, err)
	}
	return res.LastInsertId()
}

// ListByRom returns a Rom's patch chain in application order.
func (dao *PatchDAO) ListByRom(ctx context.Context, romID int64) ([]model.Patch, error) {
	rows, err := dao.db.QueryContext(ctx, selectPatchesByRomSQL, romID)
	if err != nil {
		return nil, fmt.Errorf("%w: list patches: %v", ErrIO, err)
	}
	defer rows.Close()

	var out []model.Patch
	for rows.Next() {
		var p model.Patch
		if err := rows.Scan(&p.ID, &p.RomID, &p.Index, &p.RomfileID); err != nil {
			return nil, fmt.Errorf("%w: scan patch: %v", ErrIO, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Delete removes a Patch row; the caller is responsible for the
// corresponding Romfile/filesystem cleanup.
func (dao *PatchDAO) Delete(ctx context.Context, id int64) error {
	if _, err := dao.db.ExecContext(ctx, deletePatchSQL, id); err != nil {
		return fmt.Errorf("%w: delete patch: %v", ErrIO, err)
	}
	return nil
}
