package script

import (
	"fmt"
	"sort"
	"strings"

	"storyforge/config"
	"storyforge/types"
)

// Violation names one constraint breach: the field at fault, the frame indices
// involved, and the corrective action the model should take.
type Violation struct {
	Field   string
	Frames  []int
	Message string
}

func (v Violation) String() string {
	if len(v.Frames) == 0 {
		return fmt.Sprintf("Problem: %s", v.Message)
	}
	idx := make([]string, len(v.Frames))
	for i, f := range v.Frames {
		idx[i] = fmt.Sprintf("%d", f)
	}
	return fmt.Sprintf("Problem: %s. Frame indices with issue: %s", v.Message, strings.Join(idx, ", "))
}

// Validator computes constraint violations for a candidate script. It is a
// pure check: no side effects, no mutation of the candidate.
//
// Only the first violation category present is reported per pass, in a fixed
// priority order. Feeding the model one problem class at a time keeps the
// correction prompt small and converges faster than listing every class at once.
type Validator struct {
	MinFrames       int
	MaxFrames       int
	DialogMaxChars  int
	PromptWordLimit int
}

// NewValidator builds a validator from script config.
func NewValidator(cfg config.ScriptConfig) *Validator {
	return &Validator{
		MinFrames:       cfg.MinFrames,
		MaxFrames:       cfg.MaxFrames,
		DialogMaxChars:  cfg.DialogMaxChars,
		PromptWordLimit: cfg.PromptWordLimit,
	}
}

// Validate returns the violations for s, empty when the script is usable.
func (v *Validator) Validate(s *types.Script) []Violation {
	if out := v.structural(s); len(out) > 0 {
		return out
	}

	descriptions := SpeakerDescriptions(s.Speakers)

	var unresolvedFrames []int
	var emptyDialogFrames []int
	var dialogExceededFrames []int
	var promptExceededFrames []int
	var badEmotionFrames []int

	for i, frame := range s.Frames {
		if len(UnresolvedPlaceholders(frame.VisualDescription, descriptions)) > 0 {
			unresolvedFrames = append(unresolvedFrames, i)
		}

		switch n := len(frame.Dialog); {
		case n == 0:
			emptyDialogFrames = append(emptyDialogFrames, i)
		case n > v.DialogMaxChars:
			dialogExceededFrames = append(dialogExceededFrames, i)
		}

		finalPrompt := ComposeImagePrompt(Substitute(frame.VisualDescription, descriptions), s)
		if WordCount(finalPrompt) > v.PromptWordLimit {
			promptExceededFrames = append(promptExceededFrames, i)
		}

		if !types.ValidEmotion(frame.Emotion) {
			badEmotionFrames = append(badEmotionFrames, i)
		}
	}

	switch {
	case len(unresolvedFrames) > 0:
		return []Violation{{
			Field:   "frames.visualDescription",
			Frames:  unresolvedFrames,
			Message: "visual descriptions reference {id} placeholders with no matching speaker; every placeholder must use an id from the speakers array",
		}}
	case len(emptyDialogFrames) > 0:
		return []Violation{{
			Field:   "frames.dialog",
			Frames:  emptyDialogFrames,
			Message: "no frame dialog (at least one word required, add an interjection)",
		}}
	case len(dialogExceededFrames) > 0:
		return []Violation{{
			Field:   "frames.dialog",
			Frames:  dialogExceededFrames,
			Message: fmt.Sprintf("frame dialog exceeding %d characters (make it more concise)", v.DialogMaxChars),
		}}
	case len(promptExceededFrames) > 0:
		return []Violation{{
			Field:   "frames.visualDescription",
			Frames:  promptExceededFrames,
			Message: fmt.Sprintf("combined descriptions (themeVisuals, settingDescription, frame.visualDescription with speaker substitutions applied) over %d words. Making settingDescription and themeVisuals more concise helps as they appear in every frame; removing excess character references from frame.visualDescription greatly shortens a frame and should be done for frames referencing more than 2 characters. If you remove a character reference, replace it with a shortened form of that character's visual description", v.PromptWordLimit),
		}}
	case len(badEmotionFrames) > 0:
		return []Violation{{
			Field:   "frames.emotion",
			Frames:  badEmotionFrames,
			Message: fmt.Sprintf("emotion must be one of: %s", strings.Join(types.Emotions, ", ")),
		}}
	}

	return nil
}

// structural rejects scripts whose shape is unusable before any per-frame
// content checks run.
func (v *Validator) structural(s *types.Script) []Violation {
	if len(s.Speakers) == 0 {
		return []Violation{{
			Field:   "speakers",
			Message: "speakers array must not be empty",
		}}
	}

	seen := map[int]bool{}
	for _, sp := range s.Speakers {
		if seen[sp.ID] {
			return []Violation{{
				Field:   "speakers.id",
				Message: fmt.Sprintf("speaker id %d appears more than once; ids must be unique", sp.ID),
			}}
		}
		seen[sp.ID] = true
	}

	if len(s.Frames) < v.MinFrames || len(s.Frames) > v.MaxFrames {
		return []Violation{{
			Field:   "frames",
			Message: fmt.Sprintf("storyboard must contain between %d and %d frames, got %d", v.MinFrames, v.MaxFrames, len(s.Frames)),
		}}
	}

	var orphanFrames []int
	for i, frame := range s.Frames {
		if !seen[frame.SpeakerID] {
			orphanFrames = append(orphanFrames, i)
		}
	}
	if len(orphanFrames) > 0 {
		sort.Ints(orphanFrames)
		return []Violation{{
			Field:   "frames.speakerId",
			Frames:  orphanFrames,
			Message: "speakerId does not match any speaker in the speakers array",
		}}
	}

	return nil
}
