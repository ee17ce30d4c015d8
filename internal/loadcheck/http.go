package loadcheck

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/audiomatch/internal/domain/model"
)

// Submission outcomes.
const (
	outcomeSuccess  = "success"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Health performs GET /healthz.
func (c *HTTPClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// Recommend posts one request. The response is nil unless the outcome is success.
func (c *HTTPClient) Recommend(ctx context.Context, body model.RecommendationRequest) (*model.Response, string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, outcomeFailed, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/recommendations", bytes.NewReader(payload))
	if err != nil {
		return nil, outcomeFailed, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, outcomeFailed, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, outcomeFailed, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var out model.Response
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, outcomeFailed, fmt.Errorf("decode response: %w", err)
		}
		return &out, outcomeSuccess, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, outcomeRejected, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	default:
		return nil, outcomeFailed, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
}
