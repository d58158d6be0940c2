// Package store is the Catalog Store (C1): the single source of truth for
// Systems, Games, Roms, Romfiles, Headers, Patches, Playlists and
// Settings. It owns the one writable connection pool to the embedded SQL
// engine and exposes per-entity DAO methods; WithTx runs a caller's
// multi-step write inside one top-level transaction, while a DAO method
// called without a transaction runs on the pool directly (spec.md §4.1,
// §5 "C1 writes are serialized by a single writer; reads may be
// concurrent").
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	// modernc.org/sqlite is a pure-Go driver — the same engine the teacher
	// already carries as an indirect dependency, promoted to direct here
	// because the Catalog Store is the one component that opens it.
	_ "modernc.org/sqlite"
)

// Store wraps the database connection pool and exposes the per-entity DAOs
// as embedded helpers so callers write store.Systems.Upsert(...) etc.
type Store struct {
	db *sql.DB

	Systems   *SystemDAO
	Games     *GameDAO
	Roms      *RomDAO
	Romfiles  *RomfileDAO
	Headers   *HeaderDAO
	Patches   *PatchDAO
	Playlists *PlaylistDAO
	Settings  *SettingDAO
}

// Open creates (if needed) and opens the catalog database at path, applies
// pending migrations, and returns a ready Store. A multi-reader/single-
// writer workload is approximated by capping write concurrency at the
// driver level: SQLite itself serializes writers, we just avoid piling up
// waiting connections.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := ensureParentDir(path); err != nil {
		return nil, fmt.Errorf("%w: prepare db dir: %v", ErrIO, err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
	}
	db.SetMaxOpenConns(8)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping %s: %v", ErrIO, path, err)
	}

	if err := applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrMigration, err)
	}

	s := &Store{db: db}
	s.Systems = &SystemDAO{db: db}
	s.Games = &GameDAO{db: db}
	s.Roms = &RomDAO{db: db}
	s.Romfiles = &RomfileDAO{db: db}
	s.Headers = &HeaderDAO{db: db}
	s.Patches = &PatchDAO{db: db}
	s.Playlists = &PlaylistDAO{db: db}
	s.Settings = &SettingDAO{db: db}

	logutil.GetLogger(ctx).Info("catalog store opened", zap.String("path", path))
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the raw handle for callers (e.g. the webapi Postgres mirror)
// that need to stream the full catalog out; no writes should happen
// through it outside a WithTx block.
func (s *Store) DB() *sql.DB { return s.db }

// WithTx runs fn inside one top-level transaction (spec.md §4.1 "Every
// user-visible operation runs inside one top-level transaction; on abort,
// the on-disk file system is untouched"). Modeled on the teacher's
// db.OnTransation(ctx, func(ctx, tx) error {...}) closure shape.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", ErrIO, err)
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx: %v", ErrIO, err)
	}
	return nil
}

func ensureParentDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
