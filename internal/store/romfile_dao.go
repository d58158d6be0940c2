package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/xxxsen/romvault/internal/model"
)

const (
	selectRomfileByPathSQL = `SELECT id FROM romfiles WHERE path = ?`
	insertRomfileSQL       = `INSERT INTO romfiles (path, size, kind) VALUES (?, ?, ?)`
	updateRomfileSQL       = `UPDATE romfiles SET size = ? WHERE id = ?`
	updateRomfilePathSQL   = `UPDATE romfiles SET path = ? WHERE id = ?`
	selectRomfileByIDSQL   = `SELECT id, path, size, kind FROM romfiles WHERE id = ?`
	selectOrphanRomfilesSQL = `SELECT rf.id, rf.path, rf.size, rf.kind FROM romfiles rf
		LEFT JOIN roms r ON r.romfile_id = rf.id
		LEFT JOIN patches p ON p.romfile_id = rf.id
		LEFT JOIN playlists pl ON pl.romfile_id = rf.id
		WHERE r.id IS NULL AND p.id IS NULL AND pl.id IS NULL`
	selectAllRomfilePathsSQL = `SELECT path FROM romfiles`
)

// RomfileDAO persists the Romfile entity and implements orphans() and
// foreign(paths) (spec.md §4.1).
type RomfileDAO struct {
	db *sql.DB
}

// Upsert inserts or refreshes a Romfile keyed by its path.
func (dao *RomfileDAO) Upsert(ctx context.Context, tx *sql.Tx, rf model.Romfile) (int64, error) {
	exec := dao.execer(tx)
	row := exec.QueryRowContext(ctx, selectRomfileByPathSQL, rf.Path)
	var id int64
	err := row.Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		res, err := exec.ExecContext(ctx, insertRomfileSQL, rf.Path, rf.Size, string(rf.Kind))
		if err != nil {
			return 0, fmt.Errorf("%w: insert romfile %s: %v", ErrIO, rf.Path, err)
		}
		return res.LastInsertId()
	case err != nil:
		return 0, fmt.Errorf("%w: lookup romfile %s: %v", ErrIO, rf.Path, err)
	default:
		if _, err := exec.ExecContext(ctx, updateRomfileSQL, rf.Size, id); err != nil {
			return 0, fmt.Errorf("%w: update romfile %s: %v", ErrIO, rf.Path, err)
		}
		return id, nil
	}
}

// Rename updates a Romfile's path after a Mover (C7) relocation, keeping
// the catalog's path column in lockstep with the filesystem.
func (dao *RomfileDAO) Rename(ctx context.Context, id int64, newPath string) error {
	_, err := dao.db.ExecContext(ctx, updateRomfilePathSQL, newPath, id)
	if err != nil {
		return fmt.Errorf("%w: rename romfile: %v", ErrIO, err)
	}
	return nil
}

// GetByID fetches a Romfile by its primary key.
func (dao *RomfileDAO) GetByID(ctx context.Context, id int64) (model.Romfile, error) {
	row := dao.db.QueryRowContext(ctx, selectRomfileByIDSQL, id)
	return scanRomfile(row)
}

// IsReferenced reports whether any Rom, Patch or Playlist still points at
// romfileID — the check the Converter runs before trashing a superseded
// Romfile, spec.md §4.8 "trash the previous Romfile if no longer
// referenced".
func (dao *RomfileDAO) IsReferenced(ctx context.Context, romfileID int64) (bool, error) {
	row := dao.db.QueryRowContext(ctx, `SELECT EXISTS(
		SELECT 1 FROM roms WHERE romfile_id = ?
		UNION SELECT 1 FROM patches WHERE romfile_id = ?
		UNION SELECT 1 FROM playlists WHERE romfile_id = ?
	)`, romfileID, romfileID, romfileID)
	var exists int
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("%w: check romfile referenced: %v", ErrIO, err)
	}
	return exists == 1, nil
}

// Delete removes a Romfile row (its catalog bookkeeping, not the file
// itself — callers in C7 delete the filesystem entry separately).
func (dao *RomfileDAO) Delete(ctx context.Context, id int64) error {
	_, err := dao.db.ExecContext(ctx, `DELETE FROM romfiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: delete romfile: %v", ErrIO, err)
	}
	return nil
}

// Orphans returns every Romfile with no Rom, Patch or Playlist pointing to
// it — a file the catalog still tracks but nothing references anymore
// (spec.md §4.1 "orphans()").
func (dao *RomfileDAO) Orphans(ctx context.Context) ([]model.Romfile, error) {
	rows, err := dao.db.QueryContext(ctx, selectOrphanRomfilesSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: orphan romfiles: %v", ErrIO, err)
	}
	defer rows.Close()

	var out []model.Romfile
	for rows.Next() {
		rf, err := scanRomfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rf)
	}
	return out, rows.Err()
}

// Foreign returns every path in pathsOnDisk that the catalog does not know
// about at all (spec.md §4.1 "foreign(paths_on_disk)" — files present in
// ROM_DIRECTORY with no Romfile row, the inverse of Missing roms).
func (dao *RomfileDAO) Foreign(ctx context.Context, pathsOnDisk []string) ([]string, error) {
	if len(pathsOnDisk) == 0 {
		return nil, nil
	}
	rows, err := dao.db.QueryContext(ctx, selectAllRomfilePathsSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: list romfile paths: %v", ErrIO, err)
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("%w: scan romfile path: %v", ErrIO, err)
		}
		known[normalizePath(p)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var foreign []string
	for _, p := range pathsOnDisk {
		if _, ok := known[normalizePath(p)]; !ok {
			foreign = append(foreign, p)
		}
	}
	return foreign, nil
}

func (dao *RomfileDAO) execer(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return dao.db
}

func scanRomfile(row rowScanner) (model.Romfile, error) {
	var rf model.Romfile
	var kind string
	err := row.Scan(&rf.ID, &rf.Path, &rf.Size, &kind)
	if err == sql.ErrNoRows {
		return model.Romfile{}, fmt.Errorf("%w: romfile", ErrNotFound)
	}
	if err != nil {
		return model.Romfile{}, fmt.Errorf("%w: scan romfile: %v", ErrIO, err)
	}
	rf.Kind = model.RomfileKind(kind)
	return rf, nil
}

// normalizePath makes path comparison POSIX-stable regardless of the
// separator the caller walked the filesystem with (spec.md §3 "Romfile
// path is relative to ROM_DIRECTORY, POSIX-normalized").
func normalizePath(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
