package mover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/xxxsen/romvault/internal/hashengine"
)

// Execute performs every planned Move in order, mutating each Move's
// CrossDevice/Executed fields in place and returning the same slice. It
// stops and returns an error on the first failure, leaving earlier moves
// executed and later ones untouched — matching NormalizeCommand.Run's
// fail-fast behavior.
func (m *Mover) Execute(ctx context.Context, moves []Move) ([]Move, error) {
	for i := range moves {
		if err := ctx.Err(); err != nil {
			return moves, err
		}
		if err := m.executeOne(ctx, &moves[i]); err != nil {
			return moves, fmt.Errorf("mover: move %s -> %s: %w", moves[i].From, moves[i].To, err)
		}
	}
	return moves, nil
}

func (m *Mover) executeOne(ctx context.Context, mv *Move) error {
	if err := os.MkdirAll(filepath.Dir(mv.To), 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", filepath.Dir(mv.To), err)
	}

	err := os.Rename(mv.From, mv.To)
	if err == nil {
		mv.Executed = true
		return nil
	}
	if !isCrossDevice(err) {
		return err
	}

	mv.CrossDevice = true
	if err := m.copyVerifyDelete(ctx, mv); err != nil {
		return err
	}
	mv.Executed = true
	return nil
}

// isCrossDevice reports whether err is the os.Rename failure Linux raises
// when source and destination live on different filesystems (EXDEV),
// spec.md §4.7 "falls back to copy+verify+delete across devices".
func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return false
	}
	return errors.Is(linkErr.Err, syscall.EXDEV)
}

// copyVerifyDelete copies mv.From to mv.To via a .tmp-suffixed sibling
// (NormalizeCommand.maybeUnzip's copy-then-rename pattern), verifies the
// destination's SHA1 against the source before trusting it, then removes
// the source. It never deletes From unless the digest check passed.
func (m *Mover) copyVerifyDelete(ctx context.Context, mv *Move) error {
	srcDigest, err := hashengine.HashFile(ctx, mv.From, m.Settings.ChunkKB)
	if err != nil {
		return fmt.Errorf("hash source: %w", err)
	}

	if err := copyFile(mv.From, mv.To); err != nil {
		return fmt.Errorf("copy: %w", err)
	}

	dstDigest, err := hashengine.HashFile(ctx, mv.To, m.Settings.ChunkKB)
	if err != nil {
		os.Remove(mv.To)
		return fmt.Errorf("hash destination: %w", err)
	}
	if dstDigest.SHA1 != srcDigest.SHA1 {
		os.Remove(mv.To)
		return fmt.Errorf("%w: %s", ErrVerifyMismatch, mv.To)
	}

	if err := os.Remove(mv.From); err != nil {
		return fmt.Errorf("remove source %s: %w", mv.From, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("copy %s -> %s: %w", src, tmp, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}

	if _, err := os.Stat(dst); err == nil {
		if err := os.Remove(dst); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("remove existing %s: %w", dst, err)
		}
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s -> %s: %w", tmp, dst, err)
	}
	return nil
}
