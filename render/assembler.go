package render

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"

	"storyforge/types"
)

// Runner invokes the ffmpeg binary. Injected so tests can capture the argv
// without spawning a process.
type Runner func(ctx context.Context, bin string, args []string) error

func execRunner(ctx context.Context, bin string, args []string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	var output strings.Builder
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(output.String()))
	}
	return nil
}

// Assembler muxes per-frame image/audio pairs plus a subtitle track into one
// MP4 through a single ffmpeg filter graph.
type Assembler struct {
	Bin       string
	FrameSize int
	Run       Runner
	Log       *logrus.Logger
}

// NewAssembler builds an assembler with the real ffmpeg runner.
func NewAssembler(bin string, frameSize int, logger *logrus.Logger) *Assembler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Assembler{Bin: bin, FrameSize: frameSize, Run: execRunner, Log: logger}
}

// Assemble produces outPath from the artifact sets. Any count mismatch or
// index gap fails before ffmpeg is ever invoked; a muxer failure is fatal and
// not retried.
func (a *Assembler) Assemble(ctx context.Context, images, audios []types.MediaArtifact, srtPath, outPath string) error {
	if len(images) != len(audios) {
		return &types.AssemblyError{Err: fmt.Errorf("artifact count mismatch: %d images, %d audios", len(images), len(audios))}
	}
	if len(images) == 0 {
		return &types.AssemblyError{Err: fmt.Errorf("no frames to assemble")}
	}
	if err := checkContiguous(images); err != nil {
		return &types.AssemblyError{Err: fmt.Errorf("image artifacts: %w", err)}
	}
	if err := checkContiguous(audios); err != nil {
		return &types.AssemblyError{Err: fmt.Errorf("audio artifacts: %w", err)}
	}

	args := []string{"-y"}
	for i := range images {
		args = append(args, "-i", images[i].Path, "-i", audios[i].Path)
	}
	args = append(args,
		"-filter_complex", BuildFilterGraph(len(images), a.FrameSize, srtPath),
		"-map", "[finalv]",
		"-map", "[outa]",
		"-c:v", "libx264",
		"-profile:v", "high",
		"-pix_fmt", "yuv420p",
		"-c:s", "mov_text",
		"-metadata:s:s:0", "language=eng",
		outPath,
	)

	a.Log.WithField("stage", "render").Infof("assembling %d frames into %s", len(images), outPath)
	if err := a.Run(ctx, a.Bin, args); err != nil {
		return &types.AssemblyError{Err: err}
	}
	return nil
}

// checkContiguous verifies the artifact indices are exactly 0..N-1 in order,
// the guard that keeps frame/image/audio correlation honest.
func checkContiguous(artifacts []types.MediaArtifact) error {
	for i, art := range artifacts {
		if art.FrameIndex != i {
			return fmt.Errorf("frame index %d found at position %d, want a contiguous run from 0", art.FrameIndex, i)
		}
	}
	return nil
}

// BuildFilterGraph emits the complex filter for n frame pairs: every image is
// scaled to a square and PTS-reset, every audio clip is PTS-reset, the pairs
// are concatenated in frame order, and the subtitles are burned into the
// video stream last. Inputs interleave as image=2i, audio=2i+1.
func BuildFilterGraph(n, frameSize int, srtPath string) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "[%d:v]scale=%d:%d,setpts=PTS-STARTPTS[v%d];", 2*i, frameSize, frameSize, i)
		fmt.Fprintf(&sb, "[%d:a]asetpts=PTS-STARTPTS[a%d];", 2*i+1, i)
	}
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "[v%d][a%d]", i, i)
	}
	fmt.Fprintf(&sb, "concat=n=%d:v=1:a=1[outv][outa];", n)
	fmt.Fprintf(&sb, "[outv]subtitles=%s[finalv]", subtitleFilterPath(srtPath))
	return sb.String()
}

// subtitleFilterPath makes the SRT reference safe inside a filter string. On
// Windows the muxer rejects absolute drive-letter paths, so the path becomes
// relative with forward slashes; colons are escaped everywhere.
func subtitleFilterPath(srtPath string) string {
	p := srtPath
	if runtime.GOOS == "windows" {
		if rel, err := filepath.Rel(".", srtPath); err == nil {
			p = rel
		}
		p = strings.ReplaceAll(p, "\\", "/")
	}
	return strings.ReplaceAll(p, ":", "\\:")
}
