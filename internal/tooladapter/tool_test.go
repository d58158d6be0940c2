package tooladapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeFindsToolOnPath(t *testing.T) {
	t.Parallel()

	tool := New("sh", "", "sh")
	info, err := tool.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sh", info.Name)
	assert.NotEmpty(t, info.Path)
}

func TestProbeReportsNotInstalled(t *testing.T) {
	t.Parallel()

	tool := New("nope", "", "definitely-not-a-real-binary-xyz")
	_, err := tool.Probe(context.Background())
	assert.ErrorIs(t, err, ErrNotInstalled)
}

func TestProbeCachesResolution(t *testing.T) {
	t.Parallel()

	tool := New("sh", "", "sh")
	first, err := tool.Probe(context.Background())
	require.NoError(t, err)
	second, err := tool.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Path, second.Path)
}

func TestRunCapturesStdoutAndExitCode(t *testing.T) {
	t.Parallel()

	tool := New("sh", "", "sh")
	result, err := tool.Run(context.Background(), []string{"-c", "echo hello"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Code)
	assert.Contains(t, string(result.Stdout), "hello")
}

func TestRunReportsNonZeroExit(t *testing.T) {
	t.Parallel()

	tool := New("sh", "", "sh")
	result, err := tool.Run(context.Background(), []string{"-c", "exit 3"}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, 3, result.Code)
}

func TestRunCanceledByContext(t *testing.T) {
	t.Parallel()

	tool := New("sh", "", "sh")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tool.Run(ctx, []string{"-c", "sleep 1"}, nil, nil)
	assert.Error(t, err)
}

func TestSemaphoreCapsConcurrency(t *testing.T) {
	t.Parallel()

	sem := NewSemaphore(1)
	ctx := context.Background()
	require.NoError(t, sem.Acquire(ctx))
	defer sem.Release()

	acquired := make(chan struct{})
	go func() {
		sem.Acquire(ctx)
		close(acquired)
		sem.Release()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should not have proceeded while first slot is held")
	default:
	}
}
