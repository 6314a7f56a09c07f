package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Status is the reply of the collector's status endpoint
type Status struct {
	Success bool `json:"success"`
	Total   int  `json:"total"`
}

// StatusClient checks whether the collector is reachable and how many
// records it holds
type StatusClient struct {
	client   *http.Client
	endpoint string
}

func NewStatusClient(endpoint string, timeout time.Duration) *StatusClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StatusClient{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
	}
}

// Check fetches the status. A reply with success=false is returned as is;
// transport and decoding problems are errors.
func (c *StatusClient) Check(ctx context.Context) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return Status{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	var st Status
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&st); err != nil {
		return Status{}, fmt.Errorf("parse status: %w", err)
	}
	return st, nil
}

// Describe renders a status check for the terminal.
func Describe(st Status, err error) string {
	switch {
	case err != nil:
		return "Cannot reach dashboard"
	case !st.Success:
		return "API error"
	default:
		return fmt.Sprintf("Connected • %d jobs in dashboard", st.Total)
	}
}
