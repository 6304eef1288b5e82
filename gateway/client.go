// Package gateway is the read-only client of the remote announcement
// service.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tranvh2/marquee/rotation"
)

// ScreenSchedule is the remote on/off window for the display output.
type ScreenSchedule struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// DisplaySettings is the singleton settings record owned by the
// remote service. refresh_interval is in minutes; the poller clamps
// it to a floor of one.
type DisplaySettings struct {
	RefreshInterval int            `json:"refresh_interval"`
	Schedule        ScreenSchedule `json:"screen_schedule"`
}

// Client queries the remote data gateway. Safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Announcements fetches the active announcement list. Ordering and
// filtering happen at the gateway; callers still run the result
// through rotation.Normalize before using it.
func (c *Client) Announcements(ctx context.Context) ([]rotation.Announcement, error) {
	var items []rotation.Announcement
	if err := c.get(ctx, "/api/announcements?active=true", &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Settings fetches the singleton display settings record.
func (c *Client) Settings(ctx context.Context) (*DisplaySettings, error) {
	var settings DisplaySettings
	if err := c.get(ctx, "/api/settings", &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, truncate(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func truncate(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
