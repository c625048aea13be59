package audio

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"storyforge/types"
)

// EndpointPicker chooses which synthesis backend receives the next request.
// The picker belongs to the client, so two clients never interfere.
type EndpointPicker interface {
	Next() string
}

type roundRobin struct {
	mu        sync.Mutex
	endpoints []string
	idx       int
}

// NewRoundRobin rotates through the configured backend endpoints. Safe for
// concurrent use. With no endpoints configured, Next returns the empty string
// and every request fails with a speech upstream error instead of a panic.
func NewRoundRobin(endpoints []string) EndpointPicker {
	return &roundRobin{endpoints: endpoints}
}

func (r *roundRobin) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.endpoints) == 0 {
		return ""
	}
	ep := r.endpoints[r.idx]
	r.idx = (r.idx + 1) % len(r.endpoints)
	return ep
}

// SpeakerParams are the per-voice conditioning tensors the backend needs to
// synthesize with a given studio voice.
type SpeakerParams struct {
	Embedding  []float64   `json:"speaker_embedding"`
	CondLatent [][]float64 `json:"gpt_cond_latent"`
}

// Request describes one line of speech to synthesize.
type Request struct {
	Text    string
	Voice   string
	Emotion string
	Index   int
	Dir     string
}

// Client talks to a set of XTTS-style speech backends. The studio speaker
// catalog is fetched explicitly via Refresh rather than at package load, so
// construction order is visible and tests can skip the network entirely.
type Client struct {
	httpClient *http.Client
	picker     EndpointPicker
	language   string
	log        *logrus.Logger

	mu       sync.RWMutex
	speakers map[string]SpeakerParams
}

// NewClient builds a speech client over the given backend endpoints.
func NewClient(endpoints []string, language string, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		picker:     NewRoundRobin(endpoints),
		language:   language,
		log:        logger,
	}
}

// Refresh fetches the studio speaker catalog from a backend and replaces the
// client's copy. Call at startup and whenever the backend voice set changes.
func (c *Client) Refresh(ctx context.Context) error {
	endpoint := c.picker.Next()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/studio_speakers", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &types.UpstreamError{Service: types.ServiceSpeech, Frame: -1, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &types.UpstreamError{Service: types.ServiceSpeech, Frame: -1,
			Err: fmt.Errorf("studio_speakers returned HTTP %d", resp.StatusCode)}
	}

	speakers := map[string]SpeakerParams{}
	if err := json.NewDecoder(resp.Body).Decode(&speakers); err != nil {
		return &types.UpstreamError{Service: types.ServiceSpeech, Frame: -1,
			Err: fmt.Errorf("decode speaker catalog: %w", err)}
	}

	c.mu.Lock()
	c.speakers = speakers
	c.mu.Unlock()
	c.log.WithField("stage", "audio").Infof("speaker catalog refreshed: %d voices", len(speakers))
	return nil
}

// VoiceCount reports how many voices the current catalog holds.
func (c *Client) VoiceCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.speakers)
}

type ttsRequest struct {
	SpeakerEmbedding []float64   `json:"speaker_embedding"`
	GPTCondLatent    [][]float64 `json:"gpt_cond_latent"`
	Text             string      `json:"text"`
	Language         string      `json:"language"`
	Emotion          string      `json:"emotion,omitempty"`
}

// Synthesize renders one dialog line to a WAV file named audio-<index>.wav in
// the request directory and returns its path.
func (c *Client) Synthesize(ctx context.Context, req Request) (string, error) {
	c.mu.RLock()
	params, ok := c.speakers[req.Voice]
	c.mu.RUnlock()
	if !ok {
		return "", &types.UpstreamError{Service: types.ServiceSpeech, Frame: req.Index,
			Err: fmt.Errorf("voice %q not in speaker catalog (catalog stale? call Refresh)", req.Voice)}
	}

	payload, err := json.Marshal(ttsRequest{
		SpeakerEmbedding: params.Embedding,
		GPTCondLatent:    params.CondLatent,
		Text:             stripSpecialChars(req.Text),
		Language:         c.language,
		Emotion:          req.Emotion,
	})
	if err != nil {
		return "", err
	}

	endpoint := c.picker.Next()
	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/tts", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &types.UpstreamError{Service: types.ServiceSpeech, Frame: req.Index, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &types.UpstreamError{Service: types.ServiceSpeech, Frame: req.Index,
			Err: fmt.Errorf("tts returned HTTP %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &types.UpstreamError{Service: types.ServiceSpeech, Frame: req.Index, Err: err}
	}

	// The backend replies with the WAV bytes base64-encoded as a bare string,
	// optionally quoted as JSON.
	encoded := strings.Trim(strings.TrimSpace(string(body)), `"`)
	wav, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", &types.UpstreamError{Service: types.ServiceSpeech, Frame: req.Index,
			Err: fmt.Errorf("decode audio payload: %w", err)}
	}

	outPath := filepath.Join(req.Dir, fmt.Sprintf("audio-%d.wav", req.Index))
	if err := os.WriteFile(outPath, wav, 0o644); err != nil {
		return "", err
	}

	c.log.WithField("stage", "audio").Debugf("frame %d synthesized in %.2fs via %s", req.Index, time.Since(start).Seconds(), endpoint)
	return outPath, nil
}

// stripSpecialChars removes punctuation the synthesis backend chokes on.
func stripSpecialChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '¿' || r == '¡' {
			return -1
		}
		return r
	}, s)
}
