package visuals

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	openai "github.com/sashabaranov/go-openai"

	"storyforge/types"
)

// OpenAIClient generates frames with DALL-E for deployments without a local
// diffusion sidecar. Negative prompts are not supported by the API, so they
// are folded into the prompt as an avoid-instruction.
type OpenAIClient struct {
	api *openai.Client
}

// NewOpenAIClient builds a DALL-E backed generator from OPENAI_API_KEY.
func NewOpenAIClient() *OpenAIClient {
	cc := openai.DefaultConfig(os.Getenv("OPENAI_API_KEY"))
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		cc.BaseURL = base
	}
	return &OpenAIClient{api: openai.NewClientWithConfig(cc)}
}

// Generate renders one frame and saves it as frame-<index>.png.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	prompt := req.Prompt
	if req.NegativePrompt != "" {
		prompt = fmt.Sprintf("%s. Avoid: %s", prompt, req.NegativePrompt)
	}

	resp, err := c.api.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		N:              1,
		Size:           openai.CreateImageSize512x512,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return "", &types.UpstreamError{Service: types.ServiceImage, Frame: req.Frame, Err: err}
	}
	if len(resp.Data) == 0 {
		return "", &types.UpstreamError{Service: types.ServiceImage, Frame: req.Frame,
			Err: errors.New("no image returned")}
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return "", &types.UpstreamError{Service: types.ServiceImage, Frame: req.Frame,
			Err: fmt.Errorf("decode image payload: %w", err)}
	}

	outPath := filepath.Join(req.Dir, fmt.Sprintf("frame-%03d.png", req.Frame))
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return "", err
	}
	return outPath, nil
}
