package visuals

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"storyforge/config"
	"storyforge/types"
)

// Request describes one frame image to generate.
type Request struct {
	Prompt         string
	NegativePrompt string
	Frame          int
	Dir            string
}

// Generator produces one frame image and returns its local path.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// DiffusionClient drives a local diffusion sidecar: POST the prompt to
// /generate, then download the finished image from /download/<id>.
type DiffusionClient struct {
	baseURL    string
	httpClient *http.Client
	scale      float64
	steps      int
	seedFn     func() int64
	log        *logrus.Logger
}

// NewDiffusionClient builds a client for the sidecar at baseURL.
func NewDiffusionClient(baseURL string, cfg config.ImageConfig, logger *logrus.Logger) *DiffusionClient {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &DiffusionClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 180 * time.Second},
		scale:      cfg.Scale,
		steps:      cfg.Steps,
		seedFn:     func() int64 { return rand.Int63() },
		log:        logger,
	}
}

type generateRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	Scale          float64 `json:"scale"`
	Steps          int     `json:"steps"`
	Seed           int64   `json:"seed"`
}

type generateResponse struct {
	DownloadID string `json:"download_id"`
}

// Generate renders one frame and saves it under the request directory. The
// artifact keeps the filename hint from the download's Content-Disposition
// header, prefixed with the frame index so concurrent frames never collide.
func (c *DiffusionClient) Generate(ctx context.Context, req Request) (string, error) {
	seed := c.seedFn()
	payload, err := json.Marshal(generateRequest{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Scale:          c.scale,
		Steps:          c.steps,
		Seed:           seed,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &types.UpstreamError{Service: types.ServiceImage, Frame: req.Frame, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &types.UpstreamError{Service: types.ServiceImage, Frame: req.Frame,
			Err: fmt.Errorf("generate returned HTTP %d", resp.StatusCode)}
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", &types.UpstreamError{Service: types.ServiceImage, Frame: req.Frame,
			Err: fmt.Errorf("decode generate response: %w", err)}
	}

	return c.download(ctx, req, genResp.DownloadID)
}

func (c *DiffusionClient) download(ctx context.Context, req Request, downloadID string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/download/"+downloadID, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &types.UpstreamError{Service: types.ServiceImage, Frame: req.Frame, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &types.UpstreamError{Service: types.ServiceImage, Frame: req.Frame,
			Err: fmt.Errorf("download returned HTTP %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &types.UpstreamError{Service: types.ServiceImage, Frame: req.Frame, Err: err}
	}

	name := filenameHint(resp.Header.Get("Content-Disposition"))
	if name == "" {
		name = "frame.png"
	}
	// The hint is remote input; strip any directory components so it cannot
	// point outside the workspace.
	outPath := filepath.Join(req.Dir, fmt.Sprintf("frame-%03d-%s", req.Frame, filepath.Base(name)))
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return "", err
	}

	c.log.WithField("stage", "visuals").Debugf("frame %d image saved: %s", req.Frame, outPath)
	return outPath, nil
}

// filenameHint extracts the filename from a Content-Disposition header.
func filenameHint(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}
