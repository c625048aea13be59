package voice

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"storyforge/types"
)

// Assigner maps script speakers to concrete voices. Voices are unique within
// one script but freely reused across independent requests: the used set lives
// on the call, never on the assigner.
type Assigner struct {
	rng    *rand.Rand
	male   []string
	female []string
}

// NewAssigner builds an assigner over the studio voice pools. A nil rng gets
// a time-seeded one; tests pass a fixed seed instead.
func NewAssigner(rng *rand.Rand) *Assigner {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Assigner{rng: rng, male: malePool, female: femalePool}
}

// Assign picks a distinct random voice for every speaker, filtering the pool
// by the speaker's declared gender. An unrecognized gender falls back to the
// combined pool. Fails with ErrVoicePoolExhausted when a speaker has no
// unused voice left to draw from.
func (a *Assigner) Assign(speakers []types.Speaker) ([]types.Character, error) {
	used := make(map[string]bool, len(speakers))
	cast := make([]types.Character, 0, len(speakers))

	for _, sp := range speakers {
		candidates := a.available(sp.Gender, used)
		if len(candidates) == 0 {
			return nil, fmt.Errorf("no unused %s voice left for speaker %d: %w",
				strings.ToLower(sp.Gender), sp.ID, types.ErrVoicePoolExhausted)
		}
		voice := candidates[a.rng.Intn(len(candidates))]
		used[voice] = true
		cast = append(cast, types.Character{
			ID:                sp.ID,
			Voice:             voice,
			VisualDescription: sp.VisualDescription,
		})
	}
	return cast, nil
}

func (a *Assigner) available(gender string, used map[string]bool) []string {
	var pool []string
	switch strings.ToLower(gender) {
	case "male":
		pool = a.male
	case "female":
		pool = a.female
	default:
		pool = append(append([]string{}, a.male...), a.female...)
	}

	candidates := make([]string, 0, len(pool))
	for _, v := range pool {
		if !used[v] {
			candidates = append(candidates, v)
		}
	}
	return candidates
}
