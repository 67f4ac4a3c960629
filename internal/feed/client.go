package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client pulls feed snapshots over HTTP with a bounded request timeout.
type Client struct {
	http *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		http: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads and decodes one snapshot. Rows are stamped with the
// source URL and partner id before returning.
func (c *Client) Fetch(ctx context.Context, url string, partnerID int) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed: unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}

	snapshot, err := DecodeSnapshot(body)
	if err != nil {
		return nil, err
	}
	snapshot.Stamp(url, partnerID)
	return snapshot, nil
}

// DecodeSnapshot parses a raw snapshot payload. Used by both the HTTP
// client and the MQTT push path.
func DecodeSnapshot(raw []byte) (*Snapshot, error) {
	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("decode feed snapshot: %w", err)
	}
	return &snapshot, nil
}
