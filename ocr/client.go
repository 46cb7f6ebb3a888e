package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config configures the HTTP OCR client.
type Config struct {
	// Endpoint is the base URL of the OCR service. Empty disables OCR.
	Endpoint string `yaml:"endpoint"`

	// Timeout bounds a single recognition call. Default: 60s.
	Timeout time.Duration `yaml:"timeout"`
}

// Client calls an OCR service over HTTP.
type Client struct {
	endpoint string
	client   *http.Client
}

// NewClient creates an HTTP-backed Engine from cfg.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

// recognizeRequest is the JSON body sent to /v1/ocr.
type recognizeRequest struct {
	Image    string `json:"image"` // base64-encoded
	Language string `json:"language"`
	PageSeg  string `json:"page_seg_mode"`
}

// recognizeResponse is the JSON response from /v1/ocr.
type recognizeResponse struct {
	Text string `json:"text"`
}

func (c *Client) Recognize(ctx context.Context, image []byte) (string, error) {
	body, err := json.Marshal(recognizeRequest{
		Image:    base64.StdEncoding.EncodeToString(image),
		Language: "eng",
		PageSeg:  "auto",
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := c.endpoint + "/v1/ocr"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP POST %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, url, string(respBody))
	}

	var result recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return result.Text, nil
}
