package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/romvault/internal/model"
)

const (
	selectRomByNameSQL = `SELECT id FROM roms WHERE game_id = ? AND name = ?`
	insertRomSQL       = `INSERT INTO roms (game_id, name, size, crc32, md5, sha1, status, parent_id, bios) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	updateRomSQL       = `UPDATE roms SET size = ?, crc32 = ?, md5 = ?, sha1 = ?, status = ?, parent_id = ?, bios = ? WHERE id = ?`
	selectRomByIDSQL   = `SELECT id, game_id, name, size, crc32, md5, sha1, status, parent_id, bios, romfile_id, chd_parent_id FROM roms WHERE id = ?`
	updateRomRomfileSQL = `UPDATE roms SET romfile_id = ? WHERE id = ?`
	updateRomChdParentSQL = `UPDATE roms SET chd_parent_id = ? WHERE id = ?`
	selectMissingRomsSQL = `SELECT r.id, r.game_id, r.name, r.size, r.crc32, r.md5, r.sha1, r.status, r.parent_id, r.bios, r.romfile_id, r.chd_parent_id
		FROM roms r WHERE r.romfile_id IS NULL`
	selectMissingRomsBySystemSQL = `SELECT r.id, r.game_id, r.name, r.size, r.crc32, r.md5, r.sha1, r.status, r.parent_id, r.bios, r.romfile_id, r.chd_parent_id
		FROM roms r JOIN games g ON g.id = r.game_id WHERE g.system_id = ? AND r.romfile_id IS NULL`
)

// RomDAO persists the Rom entity and implements find_roms_by_hashes and
// attach_romfile (spec.md §4.1).
type RomDAO struct {
	db *sql.DB
}

// Upsert inserts or refreshes a Rom keyed by (GameID, Name).
func (dao *RomDAO) Upsert(ctx context.Context, tx *sql.Tx, r model.Rom) (int64, error) {
	exec := dao.execer(tx)
	row := exec.QueryRowContext(ctx, selectRomByNameSQL, r.GameID, r.Name)
	var id int64
	err := row.Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		res, err := exec.ExecContext(ctx, insertRomSQL, r.GameID, r.Name, r.Size, r.CRC32, r.MD5, r.SHA1,
			string(r.Status), r.ParentID, boolToInt(r.Bios))
		if err != nil {
			return 0, fmt.Errorf("%w: insert rom %s: %v", ErrIO, r.Name, err)
		}
		return res.LastInsertId()
	case err != nil:
		return 0, fmt.Errorf("%w: lookup rom %s: %v", ErrIO, r.Name, err)
	default:
		if _, err := exec.ExecContext(ctx, updateRomSQL, r.Size, r.CRC32, r.MD5, r.SHA1, string(r.Status), r.ParentID, boolToInt(r.Bios), id); err != nil {
			return 0, fmt.Errorf("%w: update rom %s: %v", ErrIO, r.Name, err)
		}
		return id, nil
	}
}

// GetByID fetches a Rom by its primary key.
func (dao *RomDAO) GetByID(ctx context.Context, id int64) (model.Rom, error) {
	row := dao.db.QueryRowContext(ctx, selectRomByIDSQL, id)
	return scanRom(row)
}

// FindByHashes resolves candidate Roms matching any of the supplied
// digest fields, building the WHERE clause dynamically with
// didi/gendry/builder the way the teacher's hash_cache_dao.go composes
// inserts/updates — here for a multi-optional-field SELECT instead. A
// nil digest field is omitted from the predicate entirely (spec.md §4.5
// "match by size+digest tuple with unknown fields left unconstrained").
//
// size is never added to the SQL predicate itself: roms.size is
// nullable (a dat can declare only a digest, e.g. a CHD's data-SHA1),
// and `size = ?` is false against NULL, so a nullable declared size
// would otherwise exclude an exact digest match. Instead size is
// applied as a post-filter that treats a NULL stored size as a wildcard
// (spec.md §4.3 "size matches or size is null in dat").
func (dao *RomDAO) FindByHashes(ctx context.Context, size *int64, crc32, md5, sha1 *string) ([]model.Rom, error) {
	where := map[string]interface{}{}
	if crc32 != nil {
		where["crc32"] = *crc32
	}
	if md5 != nil {
		where["md5"] = *md5
	}
	if sha1 != nil {
		where["sha1"] = *sha1
	}
	if len(where) == 0 {
		return nil, fmt.Errorf("%w: find_roms_by_hashes requires at least one field", ErrFatal)
	}
	cols := []string{"id", "game_id", "name", "size", "crc32", "md5", "sha1", "status", "parent_id", "bios", "romfile_id", "chd_parent_id"}

	query, args, err := builder.BuildSelect("roms", where, cols)
	if err != nil {
		return nil, fmt.Errorf("%w: build hash query: %v", ErrIO, err)
	}
	rows, err := dao.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query roms by hash: %v", ErrIO, err)
	}
	defer rows.Close()

	var out []model.Rom
	for rows.Next() {
		r, err := scanRom(rows)
		if err != nil {
			return nil, err
		}
		if size != nil && r.Size != nil && *r.Size != *size {
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FindByName resolves every Rom across every System sharing the exact dat
// name, used by import-patches to locate a patch's target when the patch
// file itself carries no System context (spec.md §6 import-patches).
func (dao *RomDAO) FindByName(ctx context.Context, name string) ([]model.Rom, error) {
	rows, err := dao.db.QueryContext(ctx, `SELECT id, game_id, name, size, crc32, md5, sha1, status, parent_id, bios, romfile_id, chd_parent_id FROM roms WHERE name = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("%w: find roms by name: %v", ErrIO, err)
	}
	defer rows.Close()

	var out []model.Rom
	for rows.Next() {
		r, err := scanRom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AttachRomfile links romID to romfileID, the final step of import/matching
// once a file's bytes have been verified against the Rom's declared digest.
func (dao *RomDAO) AttachRomfile(ctx context.Context, tx *sql.Tx, romID, romfileID int64) error {
	exec := dao.execer(tx)
	if _, err := exec.ExecContext(ctx, updateRomRomfileSQL, romfileID, romID); err != nil {
		return fmt.Errorf("%w: attach romfile: %v", ErrIO, err)
	}
	return nil
}

// SetChdParent links romID's CHD to parentRomID's — or clears the link when
// parentRomID is nil — spec.md §4.8 "additional discs are compressed with
// the first disc as parent; the parent-child link is stored on the Rom".
func (dao *RomDAO) SetChdParent(ctx context.Context, romID int64, parentRomID *int64) error {
	if _, err := dao.db.ExecContext(ctx, updateRomChdParentSQL, parentRomID, romID); err != nil {
		return fmt.Errorf("%w: set chd parent: %v", ErrIO, err)
	}
	return nil
}

// Detach clears a Rom's romfile link, used when a file is deleted or moved
// out from under a catalog entry.
func (dao *RomDAO) Detach(ctx context.Context, romID int64) error {
	_, err := dao.db.ExecContext(ctx, updateRomRomfileSQL, nil, romID)
	if err != nil {
		return fmt.Errorf("%w: detach romfile: %v", ErrIO, err)
	}
	return nil
}

// Missing returns every Rom with no attached Romfile, optionally scoped to
// one System (spec.md §4.1 "missing()").
func (dao *RomDAO) Missing(ctx context.Context, systemID *int64) ([]model.Rom, error) {
	var rows *sql.Rows
	var err error
	if systemID != nil {
		rows, err = dao.db.QueryContext(ctx, selectMissingRomsBySystemSQL, *systemID)
	} else {
		rows, err = dao.db.QueryContext(ctx, selectMissingRomsSQL)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: missing roms: %v", ErrIO, err)
	}
	defer rows.Close()

	var out []model.Rom
	for rows.Next() {
		r, err := scanRom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListByGame returns every Rom belonging to a Game.
func (dao *RomDAO) ListByGame(ctx context.Context, gameID int64) ([]model.Rom, error) {
	rows, err := dao.db.QueryContext(ctx, `SELECT id, game_id, name, size, crc32, md5, sha1, status, parent_id, bios, romfile_id, chd_parent_id FROM roms WHERE game_id = ? ORDER BY name`, gameID)
	if err != nil {
		return nil, fmt.Errorf("%w: list roms: %v", ErrIO, err)
	}
	defer rows.Close()

	var out []model.Rom
	for rows.Next() {
		r, err := scanRom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (dao *RomDAO) execer(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return dao.db
}

func scanRom(row rowScanner) (model.Rom, error) {
	var r model.Rom
	var status string
	err := row.Scan(&r.ID, &r.GameID, &r.Name, &r.Size, &r.CRC32, &r.MD5, &r.SHA1, &status, &r.ParentID, &r.Bios, &r.RomfileID, &r.ChdParentID)
	if err == sql.ErrNoRows {
		return model.Rom{}, fmt.Errorf("%w: rom", ErrNotFound)
	}
	if err != nil {
		return model.Rom{}, fmt.Errorf("%w: scan rom: %v", ErrIO, err)
	}
	r.Status = model.RomStatus(status)
	return r, nil
}
