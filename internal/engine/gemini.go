package engine

import (
	"context"
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

// GeminiEngine is a remote engine option for boxes without the local model.
// It satisfies the same single-instance discipline even though the remote
// API would tolerate concurrency; the Manager serializes regardless.
type GeminiEngine struct {
	cli   *genai.Client
	model string
}

func NewGeminiEngine(ctx context.Context, model string) (*GeminiEngine, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("model name is required")
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return &GeminiEngine{cli: cli, model: model}, nil
}

func (g *GeminiEngine) Name() string { return "gemini:" + g.model }

// Load is a no-op; the remote model is always resident.
func (g *GeminiEngine) Load(ctx context.Context) error { return nil }

func (g *GeminiEngine) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.Temperature > 0 {
		t := float32(opts.Temperature)
		cfg.Temperature = &t
	}
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		cfg,
	)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from %s", g.Name())
	}
	return strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text), nil
}

func (g *GeminiEngine) Close() error { return nil }
