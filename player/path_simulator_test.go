package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePath(t *testing.T) {
	ps := NewPathSimulator(quizStory())

	assert.Empty(t, ps.ValidatePath([]string{"Hall", "Left", "Hall", "Right"}))

	errs := ps.ValidatePath([]string{"Hall", "Ghost"})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Ghost")

	errs = ps.ValidatePath([]string{"Right", "Hall"})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "no direct link")
}

func TestSimulatePath(t *testing.T) {
	ps := NewPathSimulator(quizStory())
	result := ps.SimulatePath([]string{"Hall", "Right"})
	require.True(t, result.Success)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, 1, result.Steps[0].Questions)
	assert.Equal(t, 1, result.TotalWarnings, "Hall links to a missing page")

	failed := ps.SimulatePath([]string{"Right", "Left"})
	assert.False(t, failed.Success)
	assert.NotEmpty(t, failed.Errors)
}

func TestSuggestPaths(t *testing.T) {
	ps := NewPathSimulator(quizStory())

	paths := ps.SuggestPaths("hall", 3)
	require.NotEmpty(t, paths)
	assert.LessOrEqual(t, len(paths), maxSuggestedPaths)
	assert.Contains(t, paths, []string{"Hall", "Right"})
	assert.Contains(t, paths, []string{"Hall", "Left", "Hall"})

	assert.Empty(t, ps.SuggestPaths("Ghost", 3))
	assert.Empty(t, ps.SuggestPaths("Hall", 0))
}
