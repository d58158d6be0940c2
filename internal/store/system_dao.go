package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xxxsen/romvault/internal/model"
)

const (
	selectSystemByNameSQL = `SELECT id FROM systems WHERE name = ?`
	insertSystemSQL       = `INSERT INTO systems (name, custom_name, description, version, arcade, merging, completion, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	updateSystemSQL       = `UPDATE systems SET description = ?, version = ?, arcade = ?, updated_at = ? WHERE id = ?`
	selectSystemByIDSQL   = `SELECT id, name, custom_name, description, version, arcade, merging, completion, created_at, updated_at FROM systems WHERE id = ?`
	selectAllSystemsSQL   = `SELECT id, name, custom_name, description, version, arcade, merging, completion, created_at, updated_at FROM systems ORDER BY name`
	updateSystemMergingSQL    = `UPDATE systems SET merging = ? WHERE id = ?`
	updateSystemCompletionSQL = `UPDATE systems SET completion = ? WHERE id = ?`
	updateSystemCustomNameSQL = `UPDATE systems SET custom_name = ? WHERE id = ?`
)

// SystemDAO persists the System entity (spec.md §3/§4.1).
type SystemDAO struct {
	db *sql.DB
}

// Upsert inserts a System keyed by dat-declared Name, or refreshes the
// mutable description/version/arcade fields on an existing row. Modeled on
// the teacher's MetaDAO.Upsert select-then-insert-or-update shape, adapted
// to key on Name instead of a content hash.
//
// On an existing row whose stored Version differs from sys.Version, the
// update is skipped unless force is true — spec.md §4.1 "on version
// collision, keeps existing unless force flag set". Rows with no stored
// version yet (empty string) or an identical version always update, since
// there's nothing to collide with.
func (dao *SystemDAO) Upsert(ctx context.Context, sys model.System, force bool) (int64, error) {
	row := dao.db.QueryRowContext(ctx, selectSystemByNameSQL, sys.Name)
	var id int64
	err := row.Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		now := time.Now()
		res, err := dao.db.ExecContext(ctx, insertSystemSQL,
			sys.Name, sys.CustomName, sys.Description, sys.Version, boolToInt(sys.Arcade),
			string(sys.Merging), string(sys.Completion), now.Unix(), now.Unix())
		if err != nil {
			return 0, fmt.Errorf("%w: insert system %s: %v", ErrIO, sys.Name, err)
		}
		return res.LastInsertId()
	case err != nil:
		return 0, fmt.Errorf("%w: lookup system %s: %v", ErrIO, sys.Name, err)
	default:
		existing, err := dao.GetByID(ctx, id)
		if err != nil {
			return 0, err
		}
		if existing.Version != "" && sys.Version != "" && existing.Version != sys.Version && !force {
			return id, nil
		}
		if _, err := dao.db.ExecContext(ctx, updateSystemSQL, sys.Description, sys.Version, boolToInt(sys.Arcade), time.Now().Unix(), id); err != nil {
			return 0, fmt.Errorf("%w: update system %s: %v", ErrIO, sys.Name, err)
		}
		return id, nil
	}
}

// GetByID fetches a System by its primary key.
func (dao *SystemDAO) GetByID(ctx context.Context, id int64) (model.System, error) {
	row := dao.db.QueryRowContext(ctx, selectSystemByIDSQL, id)
	return scanSystem(row)
}

// List returns every System in name order.
func (dao *SystemDAO) List(ctx context.Context) ([]model.System, error) {
	rows, err := dao.db.QueryContext(ctx, selectAllSystemsSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: list systems: %v", ErrIO, err)
	}
	defer rows.Close()

	var out []model.System
	for rows.Next() {
		sys, err := scanSystemRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sys)
	}
	return out, rows.Err()
}

// SetMerging updates a System's merging policy (spec.md §6 config -s).
func (dao *SystemDAO) SetMerging(ctx context.Context, id int64, merging model.MergingStrategy) error {
	_, err := dao.db.ExecContext(ctx, updateSystemMergingSQL, string(merging), id)
	if err != nil {
		return fmt.Errorf("%w: set merging: %v", ErrIO, err)
	}
	return nil
}

// SetCustomName renames a System's display name without touching its
// dat-declared Name (spec.md §4.7 DisplayName).
func (dao *SystemDAO) SetCustomName(ctx context.Context, id int64, customName string) error {
	_, err := dao.db.ExecContext(ctx, updateSystemCustomNameSQL, customName, id)
	if err != nil {
		return fmt.Errorf("%w: set custom name: %v", ErrIO, err)
	}
	return nil
}

// Delete removes a System and, via ON DELETE CASCADE, every Game/Rom it
// owns; Romfiles themselves are untouched (spec.md §6 "purge-systems" —
// the catalog's bookkeeping goes away, the files on disk are a separate,
// caller-driven cleanup step).
func (dao *SystemDAO) Delete(ctx context.Context, id int64) error {
	_, err := dao.db.ExecContext(ctx, `DELETE FROM systems WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: delete system: %v", ErrIO, err)
	}
	return nil
}

// RefreshCompletion recomputes and stores the cached completion level for a
// System from its Games' completion states (spec.md §4.1 "completion caching").
func (dao *SystemDAO) RefreshCompletion(ctx context.Context, id int64) error {
	row := dao.db.QueryRowContext(ctx, `
		SELECT
			SUM(CASE WHEN completion = 'complete' THEN 1 ELSE 0 END),
			COUNT(1)
		FROM games WHERE system_id = ?`, id)
	var complete, total int
	if err := row.Scan(&complete, &total); err != nil {
		return fmt.Errorf("%w: refresh completion: %v", ErrIO, err)
	}
	level := model.CompletionNone
	switch {
	case total == 0:
		level = model.CompletionNone
	case complete == total:
		level = model.CompletionComplete
	case complete > 0:
		level = model.CompletionPartial
	}
	_, err := dao.db.ExecContext(ctx, updateSystemCompletionSQL, string(level), id)
	if err != nil {
		return fmt.Errorf("%w: store completion: %v", ErrIO, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSystem(row rowScanner) (model.System, error) {
	var (
		sys              model.System
		arcade           int
		createdAt, updatedAt int64
	)
	err := row.Scan(&sys.ID, &sys.Name, &sys.CustomName, &sys.Description, &sys.Version,
		&arcade, &sys.Merging, &sys.Completion, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return model.System{}, fmt.Errorf("%w: system", ErrNotFound)
	}
	if err != nil {
		return model.System{}, fmt.Errorf("%w: scan system: %v", ErrIO, err)
	}
	sys.Arcade = arcade != 0
	sys.CreatedAt = time.Unix(createdAt, 0).UTC()
	sys.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return sys, nil
}

func scanSystemRow(rows *sql.Rows) (model.System, error) {
	return scanSystem(rows)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
