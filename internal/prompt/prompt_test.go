package prompt

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChooseOneFailsUnattendedByDefault(t *testing.T) {
	t.Parallel()

	a := New(strings.NewReader(""), &bytes.Buffer{}, true, PolicyFail)
	_, err := a.ChooseOne(context.Background(), "pick one", []string{"a", "b"})
	assert.ErrorIs(t, err, ErrUnattended)
}

func TestChooseOnePolicyFirstPicksFirstOption(t *testing.T) {
	t.Parallel()

	a := New(strings.NewReader(""), &bytes.Buffer{}, true, PolicyFirst)
	idx, err := a.ChooseOne(context.Background(), "pick one", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
}

func TestConfirmUnattendedUsesFallbackPolicy(t *testing.T) {
	t.Parallel()

	failAdapter := New(strings.NewReader(""), &bytes.Buffer{}, true, PolicyFail)
	_, err := failAdapter.Confirm(context.Background(), "proceed?", true)
	assert.ErrorIs(t, err, ErrUnattended)

	firstAdapter := New(strings.NewReader(""), &bytes.Buffer{}, true, PolicyFirst)
	ok, err := firstAdapter.Confirm(context.Background(), "proceed?", true)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInputUnattendedReturnsDefault(t *testing.T) {
	t.Parallel()

	a := New(strings.NewReader(""), &bytes.Buffer{}, true, PolicyFirst)
	got, err := a.Input(context.Background(), "name?", "fallback-value")
	require.NoError(t, err)
	assert.Equal(t, "fallback-value", got)
}
