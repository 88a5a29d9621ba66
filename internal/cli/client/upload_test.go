package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-ai/recall/internal/domain"
)

func TestEmbedModeValue_AcceptsKnownModes(t *testing.T) {
	for _, s := range []string{"balanced", "user_focused", "minimal", "full"} {
		mode := domain.EmbedModeBalanced
		v := &embedModeValue{mode: &mode}
		require.NoError(t, v.Set(s))
		assert.Equal(t, s, v.String())
	}
}

func TestEmbedModeValue_RejectsUnknownMode(t *testing.T) {
	mode := domain.EmbedModeBalanced
	v := &embedModeValue{mode: &mode}

	err := v.Set("verbose")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verbose")
	assert.Equal(t, domain.EmbedModeBalanced, mode)
}

func TestUploadCmd_RequiresCollectionArg(t *testing.T) {
	cmd := UploadCmd()
	cmd.SetArgs([]string{})
	assert.Error(t, cmd.Execute())
}
