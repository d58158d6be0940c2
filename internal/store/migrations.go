package store

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one forward-only schema step (spec.md §4.1). All but
// 0009 are plain CREATE TABLE/INDEX IF NOT EXISTS — the teacher's
// db.go used the same `IF NOT EXISTS` idempotence for its single table;
// here we just have many more of them.
type migration struct {
	name string
	sql  []string
}

var migrations = []migration{
	{
		name: "0001_schema_version",
		sql: []string{
			`CREATE TABLE IF NOT EXISTS schema_migrations (
				name TEXT PRIMARY KEY,
				applied_at INTEGER NOT NULL
			)`,
		},
	},
	{
		name: "0002_systems",
		sql: []string{
			`CREATE TABLE IF NOT EXISTS systems (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				custom_name TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				version TEXT NOT NULL DEFAULT '',
				arcade INTEGER NOT NULL DEFAULT 0,
				merging TEXT NOT NULL DEFAULT 'split',
				completion TEXT NOT NULL DEFAULT 'none',
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_systems_name ON systems(name)`,
		},
	},
	{
		name: "0003_games",
		sql: []string{
			`CREATE TABLE IF NOT EXISTS games (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				system_id INTEGER NOT NULL REFERENCES systems(id) ON DELETE CASCADE,
				name TEXT NOT NULL,
				parent_id INTEGER REFERENCES games(id) ON DELETE SET NULL,
				bios_id INTEGER REFERENCES games(id) ON DELETE SET NULL,
				regions TEXT NOT NULL DEFAULT '',
				languages TEXT NOT NULL DEFAULT '',
				flags TEXT NOT NULL DEFAULT '',
				revision TEXT NOT NULL DEFAULT '',
				disc_index INTEGER NOT NULL DEFAULT 0,
				completion TEXT NOT NULL DEFAULT 'none',
				sorting TEXT NOT NULL DEFAULT 'ignored'
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_games_system_name ON games(system_id, name)`,
			`CREATE INDEX IF NOT EXISTS idx_games_completion_sorting ON games(completion, sorting)`,
			`CREATE INDEX IF NOT EXISTS idx_games_parent ON games(parent_id)`,
		},
	},
	{
		name: "0004_romfiles",
		sql: []string{
			`CREATE TABLE IF NOT EXISTS romfiles (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				path TEXT NOT NULL,
				size INTEGER NOT NULL DEFAULT 0,
				kind TEXT NOT NULL DEFAULT 'rom'
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_romfiles_path ON romfiles(path)`,
		},
	},
	{
		name: "0005_roms",
		sql: []string{
			`CREATE TABLE IF NOT EXISTS roms (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				game_id INTEGER NOT NULL REFERENCES games(id) ON DELETE CASCADE,
				name TEXT NOT NULL,
				size INTEGER,
				crc32 TEXT,
				md5 TEXT,
				sha1 TEXT,
				status TEXT NOT NULL DEFAULT 'good',
				parent_id INTEGER REFERENCES roms(id) ON DELETE SET NULL,
				bios INTEGER NOT NULL DEFAULT 0,
				romfile_id INTEGER REFERENCES romfiles(id) ON DELETE SET NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_roms_game_name ON roms(game_id, name)`,
			`CREATE INDEX IF NOT EXISTS idx_roms_size_crc ON roms(size, crc32)`,
			`CREATE INDEX IF NOT EXISTS idx_roms_size_sha1 ON roms(size, sha1)`,
			`CREATE INDEX IF NOT EXISTS idx_roms_size_md5 ON roms(size, md5)`,
			`CREATE INDEX IF NOT EXISTS idx_roms_romfile ON roms(romfile_id)`,
		},
	},
	{
		name: "0006_headers",
		sql: []string{
			`CREATE TABLE IF NOT EXISTS headers (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				system_id INTEGER NOT NULL REFERENCES systems(id) ON DELETE CASCADE,
				name TEXT NOT NULL,
				version TEXT NOT NULL DEFAULT '',
				operation TEXT NOT NULL DEFAULT 'skip'
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_headers_system ON headers(system_id)`,
			`CREATE TABLE IF NOT EXISTS header_rules (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				header_id INTEGER NOT NULL REFERENCES headers(id) ON DELETE CASCADE,
				start_byte INTEGER NOT NULL,
				length INTEGER NOT NULL,
				hex_pattern TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_header_rules_header ON header_rules(header_id)`,
		},
	},
	{
		name: "0007_patches_playlists",
		sql: []string{
			`CREATE TABLE IF NOT EXISTS patches (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				rom_id INTEGER NOT NULL REFERENCES roms(id) ON DELETE CASCADE,
				idx INTEGER NOT NULL DEFAULT 0,
				romfile_id INTEGER NOT NULL REFERENCES romfiles(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_patches_rom ON patches(rom_id, idx)`,
			`CREATE TABLE IF NOT EXISTS playlists (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				romfile_id INTEGER NOT NULL REFERENCES romfiles(id) ON DELETE CASCADE
			)`,
			`CREATE TABLE IF NOT EXISTS playlist_games (
				playlist_id INTEGER NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
				game_id INTEGER NOT NULL REFERENCES games(id) ON DELETE CASCADE,
				PRIMARY KEY (playlist_id, game_id)
			)`,
		},
	},
	{
		name: "0008_settings",
		sql: []string{
			`CREATE TABLE IF NOT EXISTS settings (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL DEFAULT ''
			)`,
		},
	},
	{
		// Forward-only addition for the Converter's CHD parent sharing
		// (spec.md §4.8 "the parent-child link is stored on the Rom"); SQLite
		// has no ALTER TABLE ... IF NOT EXISTS, so this migration name is the
		// idempotency guard instead of the statement itself.
		name: "0009_roms_chd_parent",
		sql: []string{
			`ALTER TABLE roms ADD COLUMN chd_parent_id INTEGER REFERENCES roms(id) ON DELETE SET NULL`,
		},
	},
}

// applyMigrations runs every migration not yet recorded in
// schema_migrations, in order. Each migration's statements and its
// schema_migrations record commit in one transaction, so a migration
// that fails part-way is rolled back and re-run whole on the next open.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("bootstrap migrations table: %w", err)
	}

	for _, m := range migrations {
		var applied int
		row := db.QueryRowContext(ctx, `SELECT COUNT(1) FROM schema_migrations WHERE name = ?`, m.name)
		if err := row.Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", m.name, err)
		}
		if applied > 0 {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.name, err)
		}
		for _, stmt := range m.sql {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("apply migration %s: %w", m.name, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name, applied_at) VALUES (?, strftime('%s','now'))`, m.name); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.name, err)
		}
	}
	return nil
}
