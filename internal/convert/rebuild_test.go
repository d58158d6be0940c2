package convert

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/romvault/internal/container"
)

func TestWriteZipAddsRawEntriesUnderLogicalName(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "mslug.bin")
	require.NoError(t, os.WriteFile(srcPath, []byte("rom-bytes"), 0o644))

	arena, err := container.NewArena(filepath.Join(dir, "tmp"))
	require.NoError(t, err)

	r := &Rebuilder{RootDir: dir, Arena: arena}

	out, err := os.Create(filepath.Join(dir, "out.zip"))
	require.NoError(t, err)
	zw := zip.NewWriter(out)

	require.NoError(t, r.addEntry(context.Background(), zw, srcPath, "mslug.p1"))
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())

	zr, err := zip.OpenReader(filepath.Join(dir, "out.zip"))
	require.NoError(t, err)
	defer zr.Close()

	require.Len(t, zr.File, 1)
	assert.Equal(t, "mslug.p1", zr.File[0].Name)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "rom-bytes", string(got))
}
