package script

import (
	"fmt"
	"regexp"
	"strings"

	"storyforge/types"
)

var placeholderRe = regexp.MustCompile(`\{(\d+)\}`)

// SpeakerDescriptions indexes speaker visual descriptions by id.
func SpeakerDescriptions(speakers []types.Speaker) map[int]string {
	out := make(map[int]string, len(speakers))
	for _, sp := range speakers {
		out[sp.ID] = sp.VisualDescription
	}
	return out
}

// CharacterDescriptions indexes cast visual descriptions by id.
func CharacterDescriptions(cast []types.Character) map[int]string {
	out := make(map[int]string, len(cast))
	for _, c := range cast {
		out[c.ID] = c.VisualDescription
	}
	return out
}

// Substitute replaces every {id} placeholder with the matching description.
// Unknown ids are left in place; UnresolvedPlaceholders reports them.
func Substitute(text string, descriptions map[int]string) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(token string) string {
		var id int
		fmt.Sscanf(token, "{%d}", &id)
		if desc, ok := descriptions[id]; ok {
			return desc
		}
		return token
	})
}

// UnresolvedPlaceholders returns the placeholder tokens in text that match no
// known description, in order of appearance.
func UnresolvedPlaceholders(text string, descriptions map[int]string) []string {
	var unresolved []string
	for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
		var id int
		fmt.Sscanf(m[1], "%d", &id)
		if _, ok := descriptions[id]; !ok {
			unresolved = append(unresolved, m[0])
		}
	}
	return unresolved
}

// ComposeImagePrompt builds the final prompt sent to the image service for one
// frame: the substituted frame description plus the script-wide theme and
// setting. The validator enforces a word ceiling on exactly this composition.
func ComposeImagePrompt(substitutedDesc string, s *types.Script) string {
	return fmt.Sprintf("HD picture of %s in the style of %s. background setting: %s",
		substitutedDesc, s.ThemeVisuals, s.SettingDescription)
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
