// Package extract turns fetched pages into records via a language-model
// extraction call. The model is an opaque collaborator: it either yields
// structured fields or fails, and every failure degrades to a fallback
// record rather than an error.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/IshaanNene/GrazeGoat/internal/config"
)

// LLM providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderCustom = "custom"
)

// LLMClient communicates with the extraction model.
type LLMClient struct {
	cfg    config.LLMConfig
	client *http.Client
	logger *slog.Logger
}

// NewLLMClient creates a new LLM client.
func NewLLMClient(cfg config.LLMConfig, logger *slog.Logger) *LLMClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &LLMClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With("component", "llm_client"),
	}
}

// Generate sends a prompt to the LLM and returns the raw response text.
func (c *LLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	switch c.cfg.Provider {
	case ProviderOllama:
		return c.generateOllama(ctx, prompt)
	case ProviderOpenAI:
		return c.generateOpenAI(ctx, prompt)
	case ProviderCustom:
		return c.generateCustom(ctx, prompt)
	default:
		return "", fmt.Errorf("unsupported LLM provider: %s", c.cfg.Provider)
	}
}

// Ping sends a trivial prompt to verify the model endpoint is reachable.
func (c *LLMClient) Ping(ctx context.Context) error {
	_, err := c.Generate(ctx, "Reply with the single word: ok")
	return err
}

func (c *LLMClient) generateOllama(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":  c.cfg.Model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": c.cfg.Temperature,
			"num_predict": c.cfg.MaxTokens,
		},
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.Endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	return result.Response, nil
}

// generateOpenAI speaks the chat/completions shape, which also covers
// OpenAI-compatible hosts like Groq when the endpoint points there.
func (c *LLMClient) generateOpenAI(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens":  c.cfg.MaxTokens,
		"temperature": c.cfg.Temperature,
	}

	body, _ := json.Marshal(payload)
	endpoint := c.cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in openai response")
	}
	return result.Choices[0].Message.Content, nil
}

func (c *LLMClient) generateCustom(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"prompt": prompt,
		"model":  c.cfg.Model,
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(respBody), nil
}

// extractJSON tries to find a JSON object in the LLM response, tolerating
// surrounding prose and code fences.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return "{}"
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return "{}"
}

// extractJSONArray tries to find a JSON array in the LLM response.
func extractJSONArray(s string) string {
	start := strings.Index(s, "[")
	if start < 0 {
		return "[]"
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return "[]"
}

// parseObjects decodes the model's response into field maps. A JSON array
// yields many (possibly zero), a bare object yields one.
func parseObjects(s string) ([]map[string]any, error) {
	if strings.Contains(s, "[") {
		var objs []map[string]any
		if err := json.Unmarshal([]byte(extractJSONArray(s)), &objs); err == nil {
			return objs, nil
		}
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(extractJSON(s)), &obj); err != nil {
		return nil, fmt.Errorf("no JSON object in response: %w", err)
	}
	if len(obj) == 0 {
		return nil, fmt.Errorf("empty JSON object in response")
	}
	return []map[string]any{obj}, nil
}

// resultFlagged reports whether an extraction result carries the wrapper's
// error flag set to true. A false flag is dropped silently during mapping.
func resultFlagged(obj map[string]any) bool {
	v, ok := obj["error"]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}
