package types

import (
	"errors"
	"fmt"
	"strings"
)

// Service identifies which remote collaborator an upstream failure came from,
// so the boundary layer can message the right subsystem.
type Service string

const (
	ServiceLLM    Service = "llm"
	ServiceSpeech Service = "speech"
	ServiceImage  Service = "image"
)

// ErrVoicePoolExhausted is returned when a script needs more unique voices
// than the applicable pool can provide.
var ErrVoicePoolExhausted = errors.New("voice pool exhausted")

// GenerationError means no candidate script passed validation within the
// retry budget. The request can simply be retried.
type GenerationError struct {
	Attempts   int
	Violations []string
}

func (e *GenerationError) Error() string {
	if len(e.Violations) == 0 {
		return fmt.Sprintf("script generation failed after %d attempts", e.Attempts)
	}
	return fmt.Sprintf("script generation failed after %d attempts; last violations: %s",
		e.Attempts, strings.Join(e.Violations, "; "))
}

// UpstreamError wraps a failed remote call. Frame is the frame index the call
// was issued for, or -1 when the call was not frame-scoped.
type UpstreamError struct {
	Service Service
	Frame   int
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Frame >= 0 {
		return fmt.Sprintf("%s service failed for frame %d: %v", e.Service, e.Frame, e.Err)
	}
	return fmt.Sprintf("%s service failed: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// AssemblyError means local media muxing failed. Fatal: it indicates a bug or
// a corrupt intermediate artifact, and is never retried.
type AssemblyError struct {
	Err error
}

func (e *AssemblyError) Error() string { return fmt.Sprintf("video assembly failed: %v", e.Err) }

func (e *AssemblyError) Unwrap() error { return e.Err }
