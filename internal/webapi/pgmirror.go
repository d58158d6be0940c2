package webapi

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/xxxsen/romvault/internal/model"
)

// PgMirror replicates read-mostly Catalog Store rows into Postgres so the
// optional HTTP/GraphQL UI can run list queries without contending with
// the single-writer SQLite catalog (spec.md §5 "C1 writes are serialized
// by a single writer"). Grounded on internal/db/retrom_meta_dao.go's
// upsert-with-xmax pattern: one ON CONFLICT upsert per row, RETURNING
// whether the row was freshly inserted.
type PgMirror struct {
	db *sql.DB
}

// NewPgMirror opens a PostgreSQL connection at dsn and ensures the mirror
// tables exist.
func NewPgMirror(ctx context.Context, dsn string) (*PgMirror, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("webapi: open postgres mirror: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("webapi: ping postgres mirror: %w", err)
	}
	m := &PgMirror{db: db}
	if err := m.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

// Close releases the underlying connection.
func (m *PgMirror) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

const createSystemsMirrorSQL = `
CREATE TABLE IF NOT EXISTS systems_mirror (
	id bigint PRIMARY KEY,
	name text NOT NULL,
	display_name text NOT NULL,
	arcade boolean NOT NULL,
	completion text NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`

const createGamesMirrorSQL = `
CREATE TABLE IF NOT EXISTS games_mirror (
	id bigint PRIMARY KEY,
	system_id bigint NOT NULL,
	name text NOT NULL,
	parent_id bigint,
	regions text[],
	updated_at timestamptz NOT NULL DEFAULT now()
)`

func (m *PgMirror) ensureSchema(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, createSystemsMirrorSQL); err != nil {
		return fmt.Errorf("webapi: create systems_mirror: %w", err)
	}
	if _, err := m.db.ExecContext(ctx, createGamesMirrorSQL); err != nil {
		return fmt.Errorf("webapi: create games_mirror: %w", err)
	}
	return nil
}

const upsertSystemMirrorSQL = `
INSERT INTO systems_mirror (id, name, display_name, arcade, completion, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	display_name = EXCLUDED.display_name,
	arcade = EXCLUDED.arcade,
	completion = EXCLUDED.completion,
	updated_at = now()
RETURNING (xmax = 0)`

// UpsertSystem mirrors one System row, returning true when the row was
// freshly inserted rather than updated.
func (m *PgMirror) UpsertSystem(ctx context.Context, sys model.System) (bool, error) {
	var inserted bool
	err := m.db.QueryRowContext(ctx, upsertSystemMirrorSQL,
		sys.ID, sys.Name, sys.DisplayName(), sys.Arcade, string(sys.Completion),
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("webapi: mirror system %d: %w", sys.ID, err)
	}
	return inserted, nil
}

const upsertGameMirrorSQL = `
INSERT INTO games_mirror (id, system_id, name, parent_id, regions, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (id) DO UPDATE SET
	system_id = EXCLUDED.system_id,
	name = EXCLUDED.name,
	parent_id = EXCLUDED.parent_id,
	regions = EXCLUDED.regions,
	updated_at = now()
RETURNING (xmax = 0)`

// UpsertGame mirrors one Game row.
func (m *PgMirror) UpsertGame(ctx context.Context, g model.Game) (bool, error) {
	var parentID sql.NullInt64
	if g.ParentID != nil {
		parentID = sql.NullInt64{Int64: *g.ParentID, Valid: true}
	}
	var inserted bool
	err := m.db.QueryRowContext(ctx, upsertGameMirrorSQL,
		g.ID, g.SystemID, g.Name, parentID, pq.Array(g.Regions),
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("webapi: mirror game %d: %w", g.ID, err)
	}
	return inserted, nil
}

// SyncAll replicates every System and its Games into Postgres, the full
// resync the server subcommand runs once on startup.
func (m *PgMirror) SyncAll(ctx context.Context, svc *Service) error {
	systems, err := svc.ListSystems(ctx)
	if err != nil {
		return err
	}
	for _, sys := range systems {
		if _, err := m.UpsertSystem(ctx, sys); err != nil {
			return err
		}
		games, err := svc.ListGames(ctx, sys.ID)
		if err != nil {
			return err
		}
		for _, g := range games {
			if _, err := m.UpsertGame(ctx, g); err != nil {
				return err
			}
		}
	}
	return nil
}
