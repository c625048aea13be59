package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"storyforge/audio"
	"storyforge/script"
	"storyforge/types"
	"storyforge/visuals"
)

// ImageGenerator produces one frame image and returns its local path.
type ImageGenerator interface {
	Generate(ctx context.Context, req visuals.Request) (string, error)
}

// SpeechSynthesizer renders one dialog line and returns its local path.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, req audio.Request) (string, error)
}

// Scheduler fans a validated script out to the media services: one image and
// one audio clip per frame, all in flight at once.
type Scheduler struct {
	Images ImageGenerator
	Speech SpeechSynthesizer
	Log    *logrus.Logger
}

// NewScheduler wires the media backends into a scheduler.
func NewScheduler(images ImageGenerator, speech SpeechSynthesizer, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Scheduler{Images: images, Speech: speech, Log: logger}
}

// Synthesize generates every frame's image and audio concurrently, writing
// artifacts into dir. Results land at their launch index, so both slices come
// back in frame order no matter which request finishes first. The first
// failure cancels everything still in flight.
func (s *Scheduler) Synthesize(ctx context.Context, scr *types.Script, cast []types.Character, dir string) ([]types.MediaArtifact, []types.MediaArtifact, error) {
	descriptions := script.CharacterDescriptions(cast)
	voices := make(map[int]string, len(cast))
	for _, c := range cast {
		voices[c.ID] = c.Voice
	}

	images := make([]types.MediaArtifact, len(scr.Frames))
	audios := make([]types.MediaArtifact, len(scr.Frames))

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for i, frame := range scr.Frames {
		i, frame := i, frame

		g.Go(func() error {
			prompt := script.ComposeImagePrompt(script.Substitute(frame.VisualDescription, descriptions), scr)
			path, err := s.Images.Generate(ctx, visuals.Request{
				Prompt:         prompt,
				NegativePrompt: scr.NegativePrompt,
				Frame:          i,
				Dir:            dir,
			})
			if err != nil {
				return err
			}
			images[i] = types.MediaArtifact{FrameIndex: i, Kind: types.ArtifactImage, Path: path}
			return nil
		})

		g.Go(func() error {
			voice, ok := voices[frame.SpeakerID]
			if !ok {
				return fmt.Errorf("frame %d references speaker %d with no assigned voice", i, frame.SpeakerID)
			}
			path, err := s.Speech.Synthesize(ctx, audio.Request{
				Text:    frame.Dialog,
				Voice:   voice,
				Emotion: frame.Emotion,
				Index:   i,
				Dir:     dir,
			})
			if err != nil {
				return err
			}
			audios[i] = types.MediaArtifact{FrameIndex: i, Kind: types.ArtifactAudio, Path: path}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	s.Log.WithField("stage", "fanout").Infof("%d frames rendered in %.2fs", len(scr.Frames), time.Since(start).Seconds())
	return images, audios, nil
}
