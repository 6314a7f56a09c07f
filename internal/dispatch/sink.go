package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/project-tktt/request-relay/internal/domain"
)

// maxResponseBytes bounds how much of a sink reply is read
const maxResponseBytes = 1 << 20

// Sink accepts one record per call and reports whether it was taken.
type Sink interface {
	Submit(ctx context.Context, rec domain.JobRecord) (bool, error)
}

// SubmitResponse is the body returned by the collection endpoint
type SubmitResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HTTPSink posts records as JSON to the collection endpoint
type HTTPSink struct {
	client   *http.Client
	endpoint string
}

// NewHTTPSink creates a sink for endpoint. A zero timeout leaves requests
// unbounded apart from ctx.
func NewHTTPSink(endpoint string, timeout time.Duration) *HTTPSink {
	return &HTTPSink{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
	}
}

func (s *HTTPSink) Submit(ctx context.Context, rec domain.JobRecord) (bool, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("marshal record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return false, fmt.Errorf("read body: %w", err)
	}

	var out SubmitResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return false, fmt.Errorf("parse response (status %d): %w", resp.StatusCode, err)
	}

	if !out.Success {
		if out.Error != "" {
			return false, fmt.Errorf("rejected (status %d): %s", resp.StatusCode, out.Error)
		}
		return false, nil
	}
	return true, nil
}
