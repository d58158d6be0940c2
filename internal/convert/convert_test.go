package convert

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/romvault/internal/model"
)

func TestSwapExtReplacesExtensionOnBasename(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Game.chd", swapExt("/roms/snes/Game.iso", ".chd"))
	assert.Equal(t, "Game.zip", swapExt("Game.nes", ".zip"))
}

func TestPublishFileRenamesIntoPlaceAndOverwritesExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	require.NoError(t, os.WriteFile(src, []byte("new-bytes"), 0o644))

	dst := filepath.Join(dir, "dst.bin")
	require.NoError(t, os.WriteFile(dst, []byte("stale-bytes"), 0o644))

	require.NoError(t, publishFile(src, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new-bytes", string(got))

	_, err = os.Stat(dst + ".tmp")
	assert.True(t, os.IsNotExist(err), "tmp file should be cleaned up")
}

func TestConvertRejectsNoOpConversion(t *testing.T) {
	t.Parallel()

	c := &Converter{RootDir: t.TempDir()}
	rom := model.Rom{Name: "Game"}
	rf := model.Romfile{Path: "snes/Game.chd"}
	_, err := c.Convert(t.Context(), rom, rf, Options{Target: FormatCHD})
	assert.ErrorIs(t, err, ErrNoOpConversion)
}

func TestConvertRejectsIncompatibleEquivalenceClass(t *testing.T) {
	t.Parallel()

	c := &Converter{RootDir: t.TempDir()}
	rom := model.Rom{Name: "Game"}
	rf := model.Romfile{Path: "snes/Game.chd"}
	_, err := c.Convert(t.Context(), rom, rf, Options{Target: FormatZip})
	assert.ErrorIs(t, err, ErrIncompatibleFormat)
}
