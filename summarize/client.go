package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config configures the HTTP summarization client (OpenAI-compatible
// chat/completions endpoint: vLLM, Ollama, OpenAI itself).
type Config struct {
	// Endpoint is the base URL of the service. Empty disables summarization.
	Endpoint string `yaml:"endpoint"`

	// APIKey is sent as a bearer token when non-empty.
	APIKey string `yaml:"api_key"`

	// Model is the model name. Default: "gpt-4o-mini".
	Model string `yaml:"model"`

	// Temperature for generation. Default 0: deterministic summaries.
	Temperature float64 `yaml:"temperature"`

	// Timeout bounds a single call. Default: 90s. This is the only latency
	// bound on summarization; request handling blocks until the call returns.
	Timeout time.Duration `yaml:"timeout"`
}

const systemPrompt = "You are a clinical documentation assistant. " +
	"Summarize the clinical text provided by the user into a short, factual digest " +
	"for a treating physician. Preserve vital signs, medications, dosages and " +
	"diagnoses exactly as written. Do not invent findings."

// Client calls an OpenAI-compatible chat/completions API.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient creates an HTTP-backed Summarizer from cfg.
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &Client{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := c.cfg.Endpoint + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP POST %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, url, string(respBody))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in response from %s", url)
	}
	return result.Choices[0].Message.Content, nil
}
