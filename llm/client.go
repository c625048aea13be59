package llm

import (
	"context"
	"errors"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"storyforge/config"
	"storyforge/types"
)

// Message roles mirror the chat API without tying callers to the vendor SDK.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of conversation history.
type Message struct {
	Role    string
	Content string
}

// Completer is the LLM collaborator contract: send a conversation, get the
// model's next message back as raw text. Test doubles implement this.
type Completer interface {
	Complete(ctx context.Context, history []Message) (string, error)
}

// Client drives the OpenAI-compatible chat completion API.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
}

// New builds a client from script config plus OPENAI_API_KEY / OPENAI_BASE_URL.
func New(cfg config.ScriptConfig) *Client {
	cc := openai.DefaultConfig(os.Getenv("OPENAI_API_KEY"))
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		cc.BaseURL = base
	}
	return &Client{
		api:         openai.NewClientWithConfig(cc),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
}

// Complete sends the accumulated history and returns the assistant reply.
// Transport and API failures surface as LLM upstream errors.
func (c *Client) Complete(ctx context.Context, history []Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", &types.UpstreamError{Service: types.ServiceLLM, Frame: -1, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &types.UpstreamError{Service: types.ServiceLLM, Frame: -1, Err: errors.New("no choices returned")}
	}
	return resp.Choices[0].Message.Content, nil
}

const upscalerPrompt = `Given a basic prompt, upscale it into a visually engaging description for an image generation model, focusing on key elements and impactful details while avoiding excessive verbosity. The description should be concise yet impressive, capturing the essence of the scene. Limit your response to a maximum of 70 words. If you feel anything is inappropriate in the prompt, rephrase it so it adheres to your content policy. Here is the prompt: `

// UpscalePrompt expands a terse user prompt into a diffusion-ready one.
func (c *Client) UpscalePrompt(ctx context.Context, prompt string) (string, error) {
	out, err := c.Complete(ctx, []Message{{Role: RoleUser, Content: upscalerPrompt + strings.TrimSpace(prompt)}})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
