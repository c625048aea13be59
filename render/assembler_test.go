package render

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyforge/types"
)

type capturedRun struct {
	bin  string
	args []string
}

func captureRunner(calls *[]capturedRun, err error) Runner {
	return func(_ context.Context, bin string, args []string) error {
		*calls = append(*calls, capturedRun{bin: bin, args: args})
		return err
	}
}

func artifacts(kind types.ArtifactKind, paths ...string) []types.MediaArtifact {
	out := make([]types.MediaArtifact, len(paths))
	for i, p := range paths {
		out[i] = types.MediaArtifact{FrameIndex: i, Kind: kind, Path: p}
	}
	return out
}

func TestAssembleBuildsFFmpegInvocation(t *testing.T) {
	var calls []capturedRun
	a := NewAssembler("ffmpeg", 512, nil)
	a.Run = captureRunner(&calls, nil)

	images := artifacts(types.ArtifactImage, "f0.png", "f1.png")
	audios := artifacts(types.ArtifactAudio, "a0.wav", "a1.wav")
	require.NoError(t, a.Assemble(context.Background(), images, audios, "subs.srt", "out.mp4"))

	require.Len(t, calls, 1)
	assert.Equal(t, "ffmpeg", calls[0].bin)
	assert.Equal(t, []string{
		"-y",
		"-i", "f0.png", "-i", "a0.wav",
		"-i", "f1.png", "-i", "a1.wav",
		"-filter_complex", BuildFilterGraph(2, 512, "subs.srt"),
		"-map", "[finalv]",
		"-map", "[outa]",
		"-c:v", "libx264",
		"-profile:v", "high",
		"-pix_fmt", "yuv420p",
		"-c:s", "mov_text",
		"-metadata:s:s:0", "language=eng",
		"out.mp4",
	}, calls[0].args)
}

func TestBuildFilterGraphTwoFrames(t *testing.T) {
	got := BuildFilterGraph(2, 512, "subs.srt")
	want := "[0:v]scale=512:512,setpts=PTS-STARTPTS[v0];" +
		"[1:a]asetpts=PTS-STARTPTS[a0];" +
		"[2:v]scale=512:512,setpts=PTS-STARTPTS[v1];" +
		"[3:a]asetpts=PTS-STARTPTS[a1];" +
		"[v0][a0][v1][a1]concat=n=2:v=1:a=1[outv][outa];" +
		"[outv]subtitles=subs.srt[finalv]"
	assert.Equal(t, want, got)
}

func TestAssembleCountMismatchFailsBeforeRunning(t *testing.T) {
	var calls []capturedRun
	a := NewAssembler("ffmpeg", 512, nil)
	a.Run = captureRunner(&calls, nil)

	images := artifacts(types.ArtifactImage, "f0.png", "f1.png", "f2.png", "f3.png", "f4.png")
	audios := artifacts(types.ArtifactAudio, "a0.wav", "a1.wav", "a2.wav", "a3.wav", "a4.wav", "a5.wav")

	err := a.Assemble(context.Background(), images, audios, "subs.srt", "out.mp4")
	var asmErr *types.AssemblyError
	require.ErrorAs(t, err, &asmErr)
	assert.Empty(t, calls, "ffmpeg must not run on mismatched artifact sets")
}

func TestAssembleRejectsNonContiguousIndices(t *testing.T) {
	var calls []capturedRun
	a := NewAssembler("ffmpeg", 512, nil)
	a.Run = captureRunner(&calls, nil)

	images := artifacts(types.ArtifactImage, "f0.png", "f1.png")
	images[1].FrameIndex = 5
	audios := artifacts(types.ArtifactAudio, "a0.wav", "a1.wav")

	err := a.Assemble(context.Background(), images, audios, "subs.srt", "out.mp4")
	var asmErr *types.AssemblyError
	require.ErrorAs(t, err, &asmErr)
	assert.Contains(t, err.Error(), "contiguous")
	assert.Empty(t, calls)
}

func TestAssembleWrapsRunnerFailure(t *testing.T) {
	var calls []capturedRun
	a := NewAssembler("ffmpeg", 512, nil)
	a.Run = captureRunner(&calls, errors.New("exit status 1"))

	images := artifacts(types.ArtifactImage, "f0.png")
	audios := artifacts(types.ArtifactAudio, "a0.wav")

	err := a.Assemble(context.Background(), images, audios, "subs.srt", "out.mp4")
	var asmErr *types.AssemblyError
	require.ErrorAs(t, err, &asmErr)
	require.Len(t, calls, 1)
}
