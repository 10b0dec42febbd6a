package ollama

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

	"github.com/google/uuid"

	"paperalchemist/internal/common"
)

// Client is a thin wrapper over the Ollama HTTP API shared by the quality,
// metadata and embedding providers. Every call carries a context deadline;
// a stalled model must not stall the pipeline.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	probeTimeout time.Duration
	logger       *slog.Logger
}

func NewClient(baseURL string, probeTimeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{},
		probeTimeout: probeTimeout,
		logger:       logger,
	}
}

// Available probes the /api/tags endpoint with a short timeout.
func (c *Client) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("ollama.probe.failed", "error", err)
		return false
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	return resp.StatusCode == http.StatusOK
}

// GenerateRequest is the /api/generate payload.
type GenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Images  []string       `json:"images,omitempty"` // base64-encoded
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate runs a non-streaming completion and returns the raw response text.
func (c *Client) Generate(ctx context.Context, req GenerateRequest, timeout time.Duration) (string, error) {
	req.Stream = false
	raw, err := c.postJSON(ctx, "/api/generate", req, timeout)
	if err != nil {
		return "", err
	}
	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", common.ParseFailure("ollama generate", err)
	}
	return strings.TrimSpace(out.Response), nil
}

type embeddingsRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingsResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embeddings returns the model's vector for one prompt.
func (c *Client) Embeddings(ctx context.Context, model, prompt string, timeout time.Duration) ([]float32, error) {
	raw, err := c.postJSON(ctx, "/api/embeddings", embeddingsRequest{Model: model, Prompt: prompt}, timeout)
	if err != nil {
		return nil, err
	}
	var out embeddingsResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, common.ParseFailure("ollama embeddings", err)
	}
	if len(out.Embedding) == 0 {
		return nil, common.ParseFailure("ollama embeddings", fmt.Errorf("empty embedding in response"))
	}
	return out.Embedding, nil
}

// postJSON sends a JSON request and returns the raw response body.
func (c *Client) postJSON(ctx context.Context, path string, body any, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	reqID := uuid.New().String()
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		c.logger.Error("ollama.http.encode_error", "req_id", reqID, "error", err)
		return nil, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bs))
	if err != nil {
		c.logger.Error("ollama.http.build_request_error", "req_id", reqID, "error", err)
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("ollama.http.request", "req_id", reqID, "path", path, "content_length", len(bs))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("ollama.http.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, common.Unavailable("ollama", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("ollama.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)

	c.logger.Debug("ollama.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return raw, common.Unavailable("ollama", fmt.Errorf("non-2xx status: %d", resp.StatusCode))
	}
	return raw, nil
}

// ExtractJSONObject pulls the first {...} block out of a model response.
// Models wrap their JSON in prose often enough that this is load-bearing.
func ExtractJSONObject(s string) ([]byte, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return nil, false
	}
	return []byte(s[start : end+1]), true
}
