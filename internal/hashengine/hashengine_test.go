package hashengine

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/romvault/internal/model"
)

func TestHashReaderKnownVector(t *testing.T) {
	t.Parallel()

	digest, err := HashReader(context.Background(), bytes.NewReader([]byte("abc")), 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, digest.Size)
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", digest.MD5)
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89", digest.SHA1)
	assert.Equal(t, "352441c2", digest.CRC32)
}

func TestHashReaderCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := HashReader(ctx, bytes.NewReader(make([]byte, 1024)), 1)
	assert.ErrorIs(t, err, ErrCanceled)
}

func TestHashWithHeaderStripsMatchedPrefix(t *testing.T) {
	t.Parallel()

	header := &model.Header{
		Operation: model.HeaderOpSkip,
		Rules: []model.HeaderRule{
			{StartByte: 0, Length: 4, HexPattern: "4e45531a"},
		},
	}
	payload := append([]byte{0x4e, 0x45, 0x53, 0x1a}, []byte("abc")...)

	result, err := HashWithHeader(context.Background(), bytes.NewReader(payload), header, 1)
	require.NoError(t, err)
	require.NotNil(t, result.Headered)
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", result.Headered.SHA1)
	assert.NotEqual(t, result.Headered.SHA1, result.Headerless.SHA1)
}

func TestHashWithHeaderVerticalInterleave2Word(t *testing.T) {
	t.Parallel()

	header := &model.Header{
		Operation: model.HeaderOpVerticalInterleave2Word,
		Rules: []model.HeaderRule{
			{StartByte: 0, Length: 4, HexPattern: "4e45531a"},
		},
	}
	payload := append([]byte{0x4e, 0x45, 0x53, 0x1a}, []byte("abcd")...)

	result, err := HashWithHeader(context.Background(), bytes.NewReader(payload), header, 1)
	require.NoError(t, err)
	require.NotNil(t, result.Headered)

	want, err := HashReader(context.Background(), bytes.NewReader([]byte("badc")), 1)
	require.NoError(t, err)
	assert.Equal(t, want.SHA1, result.Headered.SHA1)
	assert.NotEqual(t, result.Headerless.SHA1, result.Headered.SHA1)
}

func TestHashWithHeaderBitswap(t *testing.T) {
	t.Parallel()

	header := &model.Header{
		Operation: model.HeaderOpBitswap,
		Rules: []model.HeaderRule{
			{StartByte: 0, Length: 4, HexPattern: "4e45531a"},
		},
	}
	payload := append([]byte{0x4e, 0x45, 0x53, 0x1a}, []byte{0x41, 0x80}...)

	result, err := HashWithHeader(context.Background(), bytes.NewReader(payload), header, 1)
	require.NoError(t, err)
	require.NotNil(t, result.Headered)

	want, err := HashReader(context.Background(), bytes.NewReader([]byte{0x82, 0x01}), 1)
	require.NoError(t, err)
	assert.Equal(t, want.SHA1, result.Headered.SHA1)
}

func TestHashWithHeaderNoMatchReturnsHeaderlessOnly(t *testing.T) {
	t.Parallel()

	header := &model.Header{
		Rules: []model.HeaderRule{
			{StartByte: 0, Length: 4, HexPattern: "deadbeef"},
		},
	}
	result, err := HashWithHeader(context.Background(), bytes.NewReader([]byte("abc")), header, 1)
	require.NoError(t, err)
	assert.Nil(t, result.Headered)
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89", result.Headerless.SHA1)
}
