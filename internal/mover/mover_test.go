package mover

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/romvault/internal/model"
)

func TestPlanProducesRenameOnlyMove(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "SNES"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "SNES", "game.sfc"), []byte("data"), 0o644))

	m := &Mover{RootDir: root, Settings: Settings{ChunkKB: 64}}
	system := model.System{Name: "SNES"}
	placements := []Placement{
		{
			Rom:     model.Rom{ID: 1},
			Romfile: model.Romfile{ID: 1, Path: "SNES/game.sfc"},
			Bucket:  BucketOneG1R,
		},
	}

	moves := m.Plan(system, placements)
	require.Len(t, moves, 1)
	assert.Equal(t, filepath.Join(root, "SNES", "game.sfc"), moves[0].From)
	assert.Equal(t, filepath.Join(root, "SNES", "1G1R", "game.sfc"), moves[0].To)
}

func TestPlanSkipsAlreadyPlacedFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	m := &Mover{RootDir: root}
	system := model.System{Name: "SNES"}
	placements := []Placement{
		{
			Rom:     model.Rom{ID: 1},
			Romfile: model.Romfile{ID: 1, Path: "SNES/game.sfc"},
			Bucket:  BucketDefault,
		},
	}

	moves := m.Plan(system, placements)
	assert.Empty(t, moves)
}

func TestBucketDirSuppressesOneG1RForArcade(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1G1R", bucketDir(BucketOneG1R, false))
	assert.Equal(t, "", bucketDir(BucketOneG1R, true))
	assert.Equal(t, "Trash", bucketDir(BucketTrash, false))
	assert.Equal(t, "", bucketDir(BucketDefault, false))
}

func TestLetterBucketLatinAndDigits(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "S", letterBucket("Super Metroid"))
	assert.Equal(t, "#", letterBucket("7th Saga"))
	assert.Equal(t, "#", letterBucket(""))
}

func TestLetterBucketTransliteratesNonLatin(t *testing.T) {
	t.Parallel()

	// The leading character transliterates to a pinyin initial rather
	// than collapsing into the "#" bucket.
	bucket := letterBucket("龙珠")
	assert.Equal(t, "L", bucket)
}

func TestDeriveSystemDirFoldsSubsystemGroup(t *testing.T) {
	t.Parallel()

	system := model.System{Name: "Sega - Mega Drive"}
	assert.Equal(t, "Mega Drive", deriveSystemDir(system, true))
	assert.Equal(t, "Sega - Mega Drive", deriveSystemDir(system, false))
}

func TestExecuteRenamesSameDevice(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	srcDir := filepath.Join(root, "SNES")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	src := filepath.Join(srcDir, "game.sfc")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	dst := filepath.Join(root, "SNES", "1G1R", "game.sfc")
	moves := []Move{{From: src, To: dst}}

	m := &Mover{RootDir: root, Settings: Settings{ChunkKB: 64}}
	moves, err := m.Execute(context.Background(), moves)
	require.NoError(t, err)
	assert.True(t, moves[0].Executed)
	assert.False(t, moves[0].CrossDevice)
	_, err = os.Stat(dst)
	assert.NoError(t, err)
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}

func TestScanForeignReportsUnknownFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	systemDir := filepath.Join(root, "SNES")
	require.NoError(t, os.MkdirAll(systemDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(systemDir, "known.sfc"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(systemDir, "leftover.txt"), []byte("b"), 0o644))

	known := map[string]bool{"SNES/known.sfc": true}
	foreign, err := ScanForeign(root, systemDir, known)
	require.NoError(t, err)
	assert.Equal(t, []string{"SNES/leftover.txt"}, foreign)
}

func TestDeleteForeignRemovesListedFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "leftover.txt"), []byte("b"), 0o644))

	deleted, err := DeleteForeign(root, []string{"leftover.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"leftover.txt"}, deleted)
	_, err = os.Stat(filepath.Join(root, "leftover.txt"))
	assert.True(t, os.IsNotExist(err))
}
