package types

// Script is the full structured storyboard for one movie, produced by the
// language model and immutable once it passes validation. The repair loop
// replaces a rejected candidate wholesale rather than patching it.
type Script struct {
	Name               string    `json:"name"`
	SettingDescription string    `json:"settingDescription"`
	ThemeVisuals       string    `json:"themeVisuals"`
	NegativePrompt     string    `json:"negativePrompt"`
	Speakers           []Speaker `json:"speakers"`
	Frames             []Frame   `json:"frames"`
}

// Speaker is a script-level identity. Frames reference speakers by ID, both
// through Frame.SpeakerID and through {id} placeholders in visual descriptions.
type Speaker struct {
	ID                int    `json:"id"`
	VisualDescription string `json:"visualDescription"`
	Gender            string `json:"gender"` // "male" | "female"
}

// Frame is one beat of the scene: a speaker, a line of dialog, and a visual
// description that may embed {id} placeholders.
type Frame struct {
	SpeakerID         int    `json:"speakerId"`
	Dialog            string `json:"dialog"`
	Emotion           string `json:"emotion"`
	VisualDescription string `json:"visualDescription"`
}

// Emotions is the closed set of delivery emotions the speech backend accepts.
var Emotions = []string{"Neutral", "Happy", "Sad", "Surprise", "Angry", "Dull"}

// ValidEmotion reports whether e is a member of the closed emotion set.
// The empty string is allowed: emotion is optional on a frame.
func ValidEmotion(e string) bool {
	if e == "" {
		return true
	}
	for _, known := range Emotions {
		if e == known {
			return true
		}
	}
	return false
}

// SpeakerByID looks up a speaker in the script.
func (s *Script) SpeakerByID(id int) (Speaker, bool) {
	for _, sp := range s.Speakers {
		if sp.ID == id {
			return sp, true
		}
	}
	return Speaker{}, false
}

// Dialogs returns every frame's dialog line in frame order.
func (s *Script) Dialogs() []string {
	out := make([]string, len(s.Frames))
	for i, f := range s.Frames {
		out[i] = f.Dialog
	}
	return out
}

// Character is the runtime identity derived from a Speaker: the same visual
// description bound to a concrete synthesized voice. Lives for one pipeline run.
type Character struct {
	ID                int
	Voice             string
	VisualDescription string
}

// ArtifactKind distinguishes the two per-frame media outputs.
type ArtifactKind string

const (
	ArtifactImage ArtifactKind = "image"
	ArtifactAudio ArtifactKind = "audio"
)

// MediaArtifact is one generated file. FrameIndex carries the correlation to
// the source frame explicitly; assembly rejects any set of artifacts whose
// indices are not a contiguous run from zero.
type MediaArtifact struct {
	FrameIndex int
	Kind       ArtifactKind
	Path       string
}

// Transcript pairs a frame's dialog with the measured duration of its
// synthesized audio, in seconds.
type Transcript struct {
	Duration float64
	Text     string
}
