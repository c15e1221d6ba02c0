package mock

import (
	"context"
	"testing"

	"github.com/BaSui01/collectorflow/providers"
	"github.com/BaSui01/collectorflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsWhenDisabled(t *testing.T) {
	t.Parallel()

	_, err := New(providers.MockConfig{}, types.CollectorClaude)
	assert.Equal(t, types.ErrConfigurationMissing, types.GetErrorCode(err))
}

func TestCollect_Deterministic(t *testing.T) {
	t.Parallel()

	p, err := New(providers.MockConfig{Enabled: true}, types.CollectorClaude)
	require.NoError(t, err)

	req := &providers.AnswerRequest{Prompt: "q"}
	first, err := p.Collect(context.Background(), req)
	require.NoError(t, err)
	second, err := p.Collect(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, true, first.Metadata[providers.MetaMock])
}
