package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/romvault/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(context.Background(), filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFindByHashesMatchesNullSizeRom(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	sysID, err := s.Systems.Upsert(ctx, model.System{Name: "Test System"}, false)
	require.NoError(t, err)
	gameID, err := s.Games.Upsert(ctx, nil, model.Game{SystemID: sysID, Name: "Test Game"})
	require.NoError(t, err)

	sha1 := "a9993e364706816aba3e25717850c26c9cd0d89"
	_, err = s.Roms.Upsert(ctx, nil, model.Rom{GameID: gameID, Name: "test.bin", SHA1: &sha1})
	require.NoError(t, err)

	size := int64(3)
	roms, err := s.Roms.FindByHashes(ctx, &size, nil, nil, &sha1)
	require.NoError(t, err)
	require.Len(t, roms, 1)
	assert.Equal(t, "test.bin", roms[0].Name)
	assert.Nil(t, roms[0].Size)
}

func TestFindByHashesRejectsMismatchedNonNullSize(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	sysID, err := s.Systems.Upsert(ctx, model.System{Name: "Test System"}, false)
	require.NoError(t, err)
	gameID, err := s.Games.Upsert(ctx, nil, model.Game{SystemID: sysID, Name: "Test Game"})
	require.NoError(t, err)

	declaredSize := int64(99)
	sha1 := "a9993e364706816aba3e25717850c26c9cd0d89"
	_, err = s.Roms.Upsert(ctx, nil, model.Rom{GameID: gameID, Name: "test.bin", Size: &declaredSize, SHA1: &sha1})
	require.NoError(t, err)

	size := int64(3)
	roms, err := s.Roms.FindByHashes(ctx, &size, nil, nil, &sha1)
	require.NoError(t, err)
	assert.Empty(t, roms)
}
