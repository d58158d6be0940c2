package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/xxxsen/romvault/internal/model"
)

const (
	selectGameByNameSQL = `SELECT id FROM games WHERE system_id = ? AND name = ?`
	insertGameSQL       = `INSERT INTO games (system_id, name, parent_id, bios_id, regions, languages, flags, revision, disc_index, completion, sorting) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	updateGameSQL       = `UPDATE games SET parent_id = ?, bios_id = ?, regions = ?, languages = ?, flags = ?, revision = ?, disc_index = ? WHERE id = ?`
	selectGameByIDSQL   = `SELECT id, system_id, name, parent_id, bios_id, regions, languages, flags, revision, disc_index, completion, sorting FROM games WHERE id = ?`
	selectGamesBySystemSQL = `SELECT id, system_id, name, parent_id, bios_id, regions, languages, flags, revision, disc_index, completion, sorting FROM games WHERE system_id = ? ORDER BY name`
	deleteGamesMissingFromSetPrefix = `DELETE FROM games WHERE system_id = ? AND name NOT IN (`
	updateGameCompletionSQL = `UPDATE games SET completion = ?, sorting = ? WHERE id = ?`
)

// GameDAO persists the Game entity and implements sync_games (spec.md §4.1).
type GameDAO struct {
	db *sql.DB
}

// Upsert inserts or refreshes a Game keyed by (SystemID, Name).
func (dao *GameDAO) Upsert(ctx context.Context, tx *sql.Tx, g model.Game) (int64, error) {
	exec := dao.execer(tx)
	row := exec.QueryRowContext(ctx, selectGameByNameSQL, g.SystemID, g.Name)
	var id int64
	err := row.Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		res, err := exec.ExecContext(ctx, insertGameSQL, g.SystemID, g.Name, g.ParentID, g.BiosID,
			joinList(g.Regions), joinList(g.Languages), joinList(g.Flags), g.Revision, g.DiscIndex,
			string(model.CompletionNone), string(model.SortingIgnored))
		if err != nil {
			return 0, fmt.Errorf("%w: insert game %s: %v", ErrIO, g.Name, err)
		}
		return res.LastInsertId()
	case err != nil:
		return 0, fmt.Errorf("%w: lookup game %s: %v", ErrIO, g.Name, err)
	default:
		if _, err := exec.ExecContext(ctx, updateGameSQL, g.ParentID, g.BiosID,
			joinList(g.Regions), joinList(g.Languages), joinList(g.Flags), g.Revision, g.DiscIndex, id); err != nil {
			return 0, fmt.Errorf("%w: update game %s: %v", ErrIO, g.Name, err)
		}
		return id, nil
	}
}

// SyncGames upserts every game in games, then deletes any Game belonging to
// systemID that was not present in games (a dat re-import dropped it), all
// inside one transaction per spec.md §4.1 "sync_games(system, games_iter)".
func (dao *GameDAO) SyncGames(ctx context.Context, tx *sql.Tx, systemID int64, games []model.Game) ([]int64, error) {
	ids := make([]int64, 0, len(games))
	names := make([]string, 0, len(games))
	for _, g := range games {
		g.SystemID = systemID
		id, err := dao.Upsert(ctx, tx, g)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
		names = append(names, g.Name)
	}

	if len(names) == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM games WHERE system_id = ?`, systemID); err != nil {
			return nil, fmt.Errorf("%w: clear games for system %d: %v", ErrIO, systemID, err)
		}
		return ids, nil
	}

	placeholders := make([]string, len(names))
	args := make([]interface{}, 0, len(names)+1)
	args = append(args, systemID)
	for i, n := range names {
		placeholders[i] = "?"
		args = append(args, n)
	}
	stmt := deleteGamesMissingFromSetPrefix + strings.Join(placeholders, ",") + ")"
	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return nil, fmt.Errorf("%w: prune stale games: %v", ErrIO, err)
	}
	return ids, nil
}

// GetByID fetches a Game by its primary key.
func (dao *GameDAO) GetByID(ctx context.Context, id int64) (model.Game, error) {
	row := dao.db.QueryRowContext(ctx, selectGameByIDSQL, id)
	return scanGame(row)
}

// GetByName fetches a Game by (SystemID, Name) — used by the Matcher's
// arcade special case, which resolves a Game from an archive's own
// filename rather than from a Rom digest (spec.md §4.5 step 5).
func (dao *GameDAO) GetByName(ctx context.Context, systemID int64, name string) (model.Game, error) {
	row := dao.db.QueryRowContext(ctx, `SELECT id FROM games WHERE system_id = ? AND name = ?`, systemID, name)
	var id int64
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return model.Game{}, fmt.Errorf("%w: game %s", ErrNotFound, name)
		}
		return model.Game{}, fmt.Errorf("%w: lookup game %s: %v", ErrIO, name, err)
	}
	return dao.GetByID(ctx, id)
}

// ListBySystem returns every Game belonging to systemID, name-ordered.
func (dao *GameDAO) ListBySystem(ctx context.Context, systemID int64) ([]model.Game, error) {
	rows, err := dao.db.QueryContext(ctx, selectGamesBySystemSQL, systemID)
	if err != nil {
		return nil, fmt.Errorf("%w: list games: %v", ErrIO, err)
	}
	defer rows.Close()

	var out []model.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// SetCompletion updates a Game's cached completion/sorting bucket, used by
// the Matcher/Elector after a batch operation (spec.md §4.6).
func (dao *GameDAO) SetCompletion(ctx context.Context, id int64, completion model.CompletionLevel, sorting model.SortingState) error {
	_, err := dao.db.ExecContext(ctx, updateGameCompletionSQL, string(completion), string(sorting), id)
	if err != nil {
		return fmt.Errorf("%w: set game completion: %v", ErrIO, err)
	}
	return nil
}

func (dao *GameDAO) execer(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return dao.db
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting DAO methods run
// either inside a caller-supplied transaction or standalone.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func scanGame(row rowScanner) (model.Game, error) {
	var (
		g                         model.Game
		regions, languages, flags string
	)
	err := row.Scan(&g.ID, &g.SystemID, &g.Name, &g.ParentID, &g.BiosID, &regions, &languages, &flags,
		&g.Revision, &g.DiscIndex, &g.Completion, &g.Sorting)
	if err == sql.ErrNoRows {
		return model.Game{}, fmt.Errorf("%w: game", ErrNotFound)
	}
	if err != nil {
		return model.Game{}, fmt.Errorf("%w: scan game: %v", ErrIO, err)
	}
	g.Regions = splitList(regions)
	g.Languages = splitList(languages)
	g.Flags = splitList(flags)
	return g, nil
}

func joinList(vals []string) string { return strings.Join(vals, "|") }

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "|")
}
