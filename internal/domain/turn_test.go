package domain

import (
	"testing"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTurnRejectsEmptyText(t *testing.T) {
	_, err := NewTurn(RoleUser, "")
	require.Error(t, err)
	assert.True(t, errdefs.IsInvalidArgument(err))
}

func TestNewTurnRejectsUnknownRole(t *testing.T) {
	_, err := NewTurn(Role("system"), "hello")
	require.Error(t, err)
	assert.True(t, errdefs.IsInvalidArgument(err))
}

func TestTranscriptPreservesOrderAndCopies(t *testing.T) {
	var tr Transcript
	first, err := NewTurn(RoleUser, "hi")
	require.NoError(t, err)
	second, err := NewTurn(RoleAssistant, "hello there")
	require.NoError(t, err)

	tr.Append(first)
	tr.Append(second)

	turns := tr.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, RoleAssistant, turns[1].Role)

	turns[0].Text = "mutated"
	assert.Equal(t, "hi", tr.Turns()[0].Text)
}
