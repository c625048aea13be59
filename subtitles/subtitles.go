package subtitles

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"

	"storyforge/types"
)

// Prober reports the playable duration of a media file in seconds, measured
// from the container itself, never estimated from text length.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// FFProbe shells out to ffprobe for container durations.
type FFProbe struct {
	Bin string
}

// Duration queries format=duration on the file.
func (p *FFProbe) Duration(ctx context.Context, path string) (float64, error) {
	bin := p.Bin
	if bin == "" {
		bin = "ffprobe"
	}
	out, err := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	var dur float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &dur); err != nil {
		return 0, fmt.Errorf("parse ffprobe output %q: %w", strings.TrimSpace(string(out)), err)
	}
	return dur, nil
}

// BuildTranscripts probes every audio artifact concurrently and zips the
// measured durations with the dialog lines in frame order.
func BuildTranscripts(ctx context.Context, prober Prober, audios []types.MediaArtifact, dialogs []string) ([]types.Transcript, error) {
	if len(audios) != len(dialogs) {
		return nil, fmt.Errorf("transcript build: %d audio clips but %d dialog lines", len(audios), len(dialogs))
	}

	transcripts := make([]types.Transcript, len(audios))
	g, ctx := errgroup.WithContext(ctx)
	for i, artifact := range audios {
		i, artifact := i, artifact
		g.Go(func() error {
			dur, err := prober.Duration(ctx, artifact.Path)
			if err != nil {
				return err
			}
			transcripts[i] = types.Transcript{Duration: dur, Text: dialogs[i]}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return transcripts, nil
}

// WriteSRT serialises the transcripts as SRT cues. Cue i starts exactly where
// cue i-1 ended, so the cumulative end time equals the total audio duration.
func WriteSRT(transcripts []types.Transcript, outPath string) error {
	var sb strings.Builder
	start := 0.0
	for i, t := range transcripts {
		end := start + t.Duration
		fmt.Fprintf(&sb, "%d\n", i+1)
		fmt.Fprintf(&sb, "%s --> %s\n", FormatTimestamp(start), FormatTimestamp(end))
		fmt.Fprintf(&sb, "%s\n\n", t.Text)
		start = end
	}
	return os.WriteFile(outPath, []byte(sb.String()), 0o644)
}

// FormatTimestamp renders seconds as the SRT HH:MM:SS,mmm form. Rounding
// happens once on the total millisecond count, so inputs like 7.35 that have
// no exact float64 form still land on the intended millisecond.
func FormatTimestamp(seconds float64) string {
	totalMillis := int(math.Round(seconds * 1000))
	hours := totalMillis / 3600000
	minutes := (totalMillis % 3600000) / 60000
	secs := (totalMillis % 60000) / 1000
	millis := totalMillis % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}
