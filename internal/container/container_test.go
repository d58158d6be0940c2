package container

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenZipEntries(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	zipPath := filepath.Join(dir, "game.zip")
	writeTestZip(t, zipPath, map[string]string{"game.bin": "abc"})

	src, kind, err := Open(nil, zipPath, nil, nil)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, KindZip, kind)
	entries := src.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "game.bin", entries[0].LogicalName)
	assert.EqualValues(t, 3, *entries[0].Size)
}

func TestOpenRawFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "game.bin")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	src, kind, err := Open(nil, path, nil, nil)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, KindRaw, kind)
	entries := src.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "game.bin", entries[0].LogicalName)
}

func TestOpenJBFolder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "PS3_GAME"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PS3_GAME", "PARAM.SFO"), []byte("abc"), 0o644))

	src, kind, err := Open(nil, dir, nil, nil)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, KindJBFolder, kind)
	entries := src.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "PS3_GAME/PARAM.SFO", entries[0].LogicalName)
}

func TestArenaScopeCleansUp(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	arena, err := NewArena(root)
	require.NoError(t, err)

	dir, cleanup, err := arena.Scope()
	require.NoError(t, err)
	_, statErr := os.Stat(dir)
	require.NoError(t, statErr)

	cleanup()
	_, statErr = os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func writeTestZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}
