package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xxxsen/romvault/internal/model"
)

const (
	insertPlaylistSQL      = `INSERT INTO playlists (romfile_id) VALUES (?)`
	insertPlaylistGameSQL  = `INSERT INTO playlist_games (playlist_id, game_id) VALUES (?, ?)`
	selectPlaylistGamesSQL = `SELECT game_id FROM playlist_games WHERE playlist_id = ? ORDER BY game_id`
	deletePlaylistSQL      = `DELETE FROM playlists WHERE id = ?`
	selectPlaylistsSQL     = `SELECT id, romfile_id FROM playlists ORDER BY id`
)

// PlaylistDAO persists the Playlist entity: a generated M3U Romfile plus
// the ordered Game group it groups (spec.md §3 "Playlist", multi-disc
// generate-playlists operation).
type PlaylistDAO struct {
	db *sql.DB
}

// Insert records a new Playlist and its Game membership in one transaction.
func (dao *PlaylistDAO) Insert(ctx context.Context, p model.Playlist) (int64, error) {
	tx, err := dao.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin playlist insert: %v", ErrIO, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, insertPlaylistSQL, p.RomfileID)
	if err != nil {
		return 0, fmt.Errorf("%w: insert playlist: %v", ErrIO, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: playlist id: %v", ErrIO, err)
	}
	for _, gid := range p.GameIDs {
		if _, err := tx.ExecContext(ctx, insertPlaylistGameSQL, id, gid); err != nil {
			return 0, fmt.Errorf("%w: insert playlist game: %v", ErrIO, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit playlist insert: %v", ErrIO, err)
	}
	return id, nil
}

// GetGameIDs returns the ordered Game membership of a Playlist.
func (dao *PlaylistDAO) GetGameIDs(ctx context.Context, playlistID int64) ([]int64, error) {
	rows, err := dao.db.QueryContext(ctx, selectPlaylistGamesSQL, playlistID)
	if err != nil {
		return nil, fmt.Errorf("%w: list playlist games: %v", ErrIO, err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var gid int64
		if err := rows.Scan(&gid); err != nil {
			return nil, fmt.Errorf("%w: scan playlist game: %v", ErrIO, err)
		}
		out = append(out, gid)
	}
	return out, rows.Err()
}

// Delete removes a Playlist and its membership rows (cascades via FK).
func (dao *PlaylistDAO) Delete(ctx context.Context, id int64) error {
	if _, err := dao.db.ExecContext(ctx, deletePlaylistSQL, id); err != nil {
		return fmt.Errorf("%w: delete playlist: %v", ErrIO, err)
	}
	return nil
}

// ListAll returns every Playlist with its Game membership populated, used
// by generate-playlists to tear down and recompute the whole set on each
// run (spec.md §3 "Playlists are regenerated deterministically from Rom
// content").
func (dao *PlaylistDAO) ListAll(ctx context.Context) ([]model.Playlist, error) {
	rows, err := dao.db.QueryContext(ctx, selectPlaylistsSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: list playlists: %v", ErrIO, err)
	}
	defer rows.Close()

	var out []model.Playlist
	for rows.Next() {
		var p model.Playlist
		if err := rows.Scan(&p.ID, &p.RomfileID); err != nil {
			return nil, fmt.Errorf("%w: scan playlist: %v", ErrIO, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		ids, err := dao.GetGameIDs(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].GameIDs = ids
	}
	return out, nil
}
