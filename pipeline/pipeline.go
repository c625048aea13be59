package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"storyforge/subtitles"
	"storyforge/types"
	"storyforge/workspace"
)

// ScriptGenerator turns a user prompt into a validated script.
type ScriptGenerator interface {
	Generate(ctx context.Context, prompt string) (*types.Script, error)
}

// VoiceAssigner binds each script speaker to a distinct studio voice.
type VoiceAssigner interface {
	Assign(speakers []types.Speaker) ([]types.Character, error)
}

// VideoAssembler muxes the media artifacts and subtitles into the final MP4.
type VideoAssembler interface {
	Assemble(ctx context.Context, images, audios []types.MediaArtifact, srtPath, outPath string) error
}

// Pipeline runs a prompt end to end: script, cast, concurrent media fan-out,
// subtitle timeline, assembly.
type Pipeline struct {
	Generator ScriptGenerator
	Assigner  VoiceAssigner
	Scheduler *Scheduler
	Prober    subtitles.Prober
	Assembler VideoAssembler
	TempRoot  string
	Log       *logrus.Logger
}

// Result is one finished run. The caller streams VideoPath back to the client
// and then calls Workspace.Cleanup.
type Result struct {
	Script       *types.Script
	VideoPath    string
	SubtitlePath string
	Workspace    *workspace.Workspace
}

// Run executes the full pipeline for one prompt. On error the scratch
// workspace is already cleaned up; on success cleanup is the caller's job,
// after the video has been sent.
func (p *Pipeline) Run(ctx context.Context, prompt string) (*Result, error) {
	start := time.Now()

	scr, err := p.Generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	p.Log.WithField("stage", "pipeline").Infof("script %q validated: %d speakers, %d frames",
		scr.Name, len(scr.Speakers), len(scr.Frames))

	cast, err := p.Assigner.Assign(scr.Speakers)
	if err != nil {
		return nil, err
	}

	ws, err := workspace.New(p.TempRoot, p.Log)
	if err != nil {
		return nil, err
	}

	images, audios, err := p.Scheduler.Synthesize(ctx, scr, cast, ws.Dir)
	if err != nil {
		ws.Cleanup()
		return nil, err
	}

	transcripts, err := subtitles.BuildTranscripts(ctx, p.Prober, audios, scr.Dialogs())
	if err != nil {
		ws.Cleanup()
		return nil, err
	}

	srtPath := ws.Path("subtitles.srt")
	if err := subtitles.WriteSRT(transcripts, srtPath); err != nil {
		ws.Cleanup()
		return nil, err
	}

	videoPath := ws.Path(sanitizeName(scr.Name) + ".mp4")
	if err := p.Assembler.Assemble(ctx, images, audios, srtPath, videoPath); err != nil {
		ws.Cleanup()
		return nil, err
	}

	p.Log.WithField("stage", "pipeline").Infof("movie %q finished in %.2fs", scr.Name, time.Since(start).Seconds())
	return &Result{Script: scr, VideoPath: videoPath, SubtitlePath: srtPath, Workspace: ws}, nil
}

// sanitizeName makes a script title safe as a filename.
func sanitizeName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ' || r == '-' || r == '_':
			return '-'
		default:
			return -1
		}
	}, strings.TrimSpace(name))
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		return fmt.Sprintf("movie-%d", time.Now().Unix())
	}
	return cleaned
}
