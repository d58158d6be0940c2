package matcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/romvault/internal/model"
	"github.com/xxxsen/romvault/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(context.Background(), filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedGame(t *testing.T, s *store.Store, systemName, gameName string, rom model.Rom) (model.System, model.Game) {
	t.Helper()
	ctx := context.Background()

	sysID, err := s.Systems.Upsert(ctx, model.System{Name: systemName}, false)
	require.NoError(t, err)
	sys, err := s.Systems.GetByID(ctx, sysID)
	require.NoError(t, err)

	id, err := s.Games.Upsert(ctx, nil, model.Game{SystemID: sysID, Name: gameName})
	require.NoError(t, err)
	game, err := s.Games.GetByID(ctx, id)
	require.NoError(t, err)

	rom.GameID = id
	_, err = s.Roms.Upsert(ctx, nil, rom)
	require.NoError(t, err)

	return sys, game
}

func writeTempFile(t *testing.T, content []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "rom.bin")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestMatchBindsBySHA1(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	size := int64(3)
	sha1 := "a9993e364706816aba3e25717850c26c9cd0d89d"
	seedGame(t, s, "Test System", "Test Game", model.Rom{Name: "test.bin", Size: &size, SHA1: &sha1})

	path := writeTempFile(t, []byte("abc"))

	m := &Matcher{Store: s, Unattended: true, ChunkKB: 1}
	report, err := m.Match(context.Background(), []string{path}, nil)
	require.NoError(t, err)

	require.Len(t, report.Bindings, 1)
	assert.Equal(t, "Test Game", report.Bindings[0].GameName)
	assert.Equal(t, "test.bin", report.Bindings[0].RomName)
	assert.Empty(t, report.Residuals)
}

func TestMatchNoCandidateGoesToResiduals(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	size := int64(3)
	sha1 := "0000000000000000000000000000000000000000"
	seedGame(t, s, "Test System", "Test Game", model.Rom{Name: "test.bin", Size: &size, SHA1: &sha1})

	path := writeTempFile(t, []byte("abc"))

	m := &Matcher{Store: s, Unattended: true, ChunkKB: 1}
	report, err := m.Match(context.Background(), []string{path}, nil)
	require.NoError(t, err)

	assert.Empty(t, report.Bindings)
	require.Len(t, report.Residuals, 1)
}

func TestMatchBindsWhenDeclaredSizeIsNull(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	sha1 := "a9993e364706816aba3e25717850c26c9cd0d89d"
	seedGame(t, s, "Test System", "Test Game", model.Rom{Name: "test.bin", SHA1: &sha1})

	path := writeTempFile(t, []byte("abc"))

	m := &Matcher{Store: s, Unattended: true, ChunkKB: 1}
	report, err := m.Match(context.Background(), []string{path}, nil)
	require.NoError(t, err)

	require.Len(t, report.Bindings, 1)
	assert.Equal(t, "test.bin", report.Bindings[0].RomName)
	assert.Empty(t, report.Residuals)
}

func TestSimilarityExactMatchIsOne(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 1.0, similarity("Super Mario Bros", "super mario bros"))
	assert.Greater(t, similarity("Super Mario Bros", "Super Mario World"), similarity("Super Mario Bros", "Tetris"))
}
