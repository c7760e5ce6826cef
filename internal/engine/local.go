package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// LocalConfig configures the local inference server client.
type LocalConfig struct {
	// BaseURL of an OpenAI-compatible completion server hosting the model
	// (vLLM, llama-server), e.g. http://127.0.0.1:8080.
	BaseURL string
	Model   string

	// LoadTimeout bounds the initial model load probe. The load can take
	// minutes on first use while the server maps model weights.
	LoadTimeout time.Duration

	// RPS/Burst optionally pace requests; zero disables pacing.
	RPS   float64
	Burst int
}

// LocalEngine talks to a single-instance local inference server over HTTP.
// It is the default engine: the summarization model runs on the same box
// and must only ever be loaded once.
type LocalEngine struct {
	baseURL string
	model   string
	loadTO  time.Duration
	client  *http.Client
	limiter *rate.Limiter
}

func NewLocalEngine(cfg LocalConfig) (*LocalEngine, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("model name is required")
	}
	loadTO := cfg.LoadTimeout
	if loadTO <= 0 {
		loadTO = 10 * time.Minute
	}
	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	return &LocalEngine{
		baseURL: base,
		model:   cfg.Model,
		loadTO:  loadTO,
		client:  &http.Client{},
		limiter: limiter,
	}, nil
}

func (e *LocalEngine) Name() string { return "local:" + e.model }

// Load probes the server until the model reports healthy. Out-of-memory
// responses surface as permanent ErrResourceExhausted.
func (e *LocalEngine) Load(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.loadTO)
	defer cancel()

	var lastErr error
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
		if err != nil {
			return err
		}
		resp, err := e.client.Do(req)
		if err == nil {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			_ = resp.Body.Close()
			switch resp.StatusCode {
			case http.StatusOK:
				return nil
			case http.StatusInsufficientStorage:
				return NewPermanentError(fmt.Errorf("%w: %s", ErrResourceExhausted, strings.TrimSpace(string(body))))
			default:
				lastErr = fmt.Errorf("health %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			}
		} else {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("model never became healthy: %w (last: %v)", ctx.Err(), lastErr)
		case <-time.After(2 * time.Second):
		}
	}
}

type completionRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (e *LocalEngine) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 512
	}
	payload, err := json.Marshal(completionRequest{
		Model:       e.model,
		Prompt:      formatInstruct(prompt),
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<22))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusInsufficientStorage || resp.StatusCode == http.StatusServiceUnavailable {
		return "", NewPermanentError(fmt.Errorf("%w: status %d", ErrResourceExhausted, resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out completionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("completion error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return strings.TrimSpace(out.Choices[0].Text), nil
}

func (e *LocalEngine) Close() error { return nil }

// formatInstruct wraps the prompt for instruction-tuned models.
func formatInstruct(prompt string) string {
	return "<|user|>\n" + prompt + "\n<|assistant|>\n"
}
