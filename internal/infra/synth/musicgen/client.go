package musicgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	domain "github.com/bryanwahyu/sonifier/internal/domain/sonify"
	"github.com/bryanwahyu/sonifier/internal/infra/audio"
)

// Client talks to a MusicGen inference server that answers POST /generate
// with a WAV body.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a MusicGen client. Generation of 30s clips on CPU is slow,
// so the HTTP timeout is generous; callers bound each call with a context.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Minute},
	}
}

// generateRequest is the /generate request body.
type generateRequest struct {
	Prompt   string `json:"prompt"`
	Mood     string `json:"mood,omitempty"`
	Duration int    `json:"duration"`
}

// errorResponse is returned by the server on non-2xx statuses.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// Synthesize implements domain.Synthesizer.
func (c *Client) Synthesize(ctx context.Context, req domain.GenerationRequest) (domain.Audio, error) {
	body, err := json.Marshal(generateRequest{
		Prompt:   req.Prompt,
		Mood:     req.Mood,
		Duration: req.DurationSeconds,
	})
	if err != nil {
		return domain.Audio{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return domain.Audio{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/wav")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return domain.Audio{}, fmt.Errorf("musicgen request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := readError(resp.Body)
		if isExhausted(resp.StatusCode, msg) {
			return domain.Audio{}, fmt.Errorf("%w: musicgen status %d: %s", domain.ErrResourceExhausted, resp.StatusCode, msg)
		}
		return domain.Audio{}, fmt.Errorf("musicgen status %d: %s", resp.StatusCode, msg)
	}

	samples, rate, err := audio.DecodeWAV(resp.Body)
	if err != nil {
		return domain.Audio{}, fmt.Errorf("decode musicgen audio: %w", err)
	}
	return domain.Audio{Samples: samples, SampleRate: rate}, nil
}

// Available checks if the inference server is reachable.
func (c *Client) Available(ctx context.Context) bool {
	return c.Check(ctx) == nil
}

// Check implements the health checker used by /health.
func (c *Client) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("musicgen health status %d", resp.StatusCode)
	}
	return nil
}

func readError(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	var e errorResponse
	if json.Unmarshal(raw, &e) == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Detail != "" {
			return e.Detail
		}
	}
	return strings.TrimSpace(string(raw))
}

func isExhausted(status int, msg string) bool {
	switch status {
	case http.StatusServiceUnavailable, http.StatusInsufficientStorage, http.StatusTooManyRequests:
		return true
	}
	return IsOutOfMemory(msg)
}

// IsOutOfMemory reports whether a backend message describes memory exhaustion.
func IsOutOfMemory(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "out of memory") || strings.Contains(m, "cuda oom") || strings.Contains(m, "outofmemoryerror")
}
