package voice

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyforge/types"
)

func TestAssignUniqueVoices(t *testing.T) {
	a := NewAssigner(rand.New(rand.NewSource(1)))

	speakers := []types.Speaker{
		{ID: 1, VisualDescription: "a knight", Gender: "male"},
		{ID: 2, VisualDescription: "a queen", Gender: "female"},
		{ID: 3, VisualDescription: "a jester", Gender: "male"},
	}
	cast, err := a.Assign(speakers)
	require.NoError(t, err)
	require.Len(t, cast, 3)

	seen := map[string]bool{}
	for i, c := range cast {
		assert.Equal(t, speakers[i].ID, c.ID)
		assert.Equal(t, speakers[i].VisualDescription, c.VisualDescription)
		assert.False(t, seen[c.Voice], "voice %q assigned twice", c.Voice)
		seen[c.Voice] = true
	}
}

func TestAssignFiltersByGender(t *testing.T) {
	a := NewAssigner(rand.New(rand.NewSource(7)))
	a.male = []string{"Baldur"}
	a.female = []string{"Daisy"}

	cast, err := a.Assign([]types.Speaker{
		{ID: 1, Gender: "male"},
		{ID: 2, Gender: "Female"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Baldur", cast[0].Voice)
	assert.Equal(t, "Daisy", cast[1].Voice)
}

func TestAssignUnknownGenderUsesCombinedPool(t *testing.T) {
	a := NewAssigner(rand.New(rand.NewSource(7)))
	a.male = []string{"Baldur"}
	a.female = []string{"Daisy"}

	cast, err := a.Assign([]types.Speaker{
		{ID: 1, Gender: "robot"},
		{ID: 2, Gender: "robot"},
	})
	require.NoError(t, err)
	assert.NotEqual(t, cast[0].Voice, cast[1].Voice)
}

func TestAssignPoolExhausted(t *testing.T) {
	a := NewAssigner(rand.New(rand.NewSource(7)))
	a.male = []string{"Baldur"}

	_, err := a.Assign([]types.Speaker{
		{ID: 1, Gender: "male"},
		{ID: 2, Gender: "male"},
	})
	require.ErrorIs(t, err, types.ErrVoicePoolExhausted)
	assert.Contains(t, err.Error(), "speaker 2")
}

func TestAssignVoicesReusableAcrossCalls(t *testing.T) {
	a := NewAssigner(rand.New(rand.NewSource(7)))
	a.male = []string{"Baldur"}

	for i := 0; i < 3; i++ {
		cast, err := a.Assign([]types.Speaker{{ID: 1, Gender: "male"}})
		require.NoError(t, err)
		assert.Equal(t, "Baldur", cast[0].Voice)
	}
}
