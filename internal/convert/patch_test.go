package convert

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatchApplierRejectsUnknownExtension(t *testing.T) {
	t.Parallel()

	p := &PatchApplier{}
	err := p.Apply(context.Background(), "base.bin", "patch.unknown", "out.bin")
	assert.Error(t, err)
}
