package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFromExtNormalizesCaseAndDot(t *testing.T) {
	t.Parallel()

	assert.Equal(t, FormatCHD, FormatFromExt(".CHD"))
	assert.Equal(t, FormatCHD, FormatFromExt("chd"))
	assert.Equal(t, FormatRaw, FormatFromExt(".nes"))
	assert.Equal(t, FormatRaw, FormatFromExt(""))
}

func TestSameClassAcceptsWithinClass(t *testing.T) {
	t.Parallel()

	assert.True(t, SameClass(FormatRaw, Format7z))
	assert.True(t, SameClass(FormatZip, FormatRaw))
	assert.True(t, SameClass(FormatCue, FormatCHD))
	assert.True(t, SameClass(FormatISO, FormatCSO))
	assert.True(t, SameClass(FormatISO, FormatNSZ))
}

func TestSameClassRejectsAcrossClass(t *testing.T) {
	t.Parallel()

	assert.False(t, SameClass(FormatRaw, FormatCHD))
	assert.False(t, SameClass(FormatZip, FormatISO))
	assert.False(t, SameClass(FormatCue, FormatCSO))
}

func TestLossyMarksOnlyDeclaredLossyFormats(t *testing.T) {
	t.Parallel()

	assert.True(t, Lossy(FormatWBFS))
	assert.True(t, Lossy(FormatNSZ))
	assert.False(t, Lossy(FormatCHD))
	assert.False(t, Lossy(FormatISO))
	assert.False(t, Lossy(FormatRaw))
}
