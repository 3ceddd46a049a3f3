// Package sheets posts submission records to a spreadsheet webhook (an
// Apps Script style endpoint that appends one row per call).
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Row is the record shape the webhook expects.
type Row struct {
	Ref         string `json:"ref"`
	When        string `json:"when"`
	ClientName  string `json:"clientName"`
	ClientEmail string `json:"clientEmail"`
	ClientPhone string `json:"clientPhone"`
	ReturnType  string `json:"returnType"`
	Dependents  string `json:"dependents"`
	FileCount   int    `json:"fileCount"`
}

// Client posts rows to a configured webhook URL. A zero-value URL disables
// posting entirely.
type Client struct {
	url    string
	client *http.Client
}

// New constructs a Client; url may be empty.
func New(url string) *Client {
	return &Client{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled reports whether a webhook URL is configured.
func (c *Client) Enabled() bool {
	return c.url != ""
}

// Append posts one row.
func (c *Client) Append(ctx context.Context, row Row) error {
	if c.url == "" {
		return nil
	}
	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal sheet row: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sheet request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post sheet row: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("post sheet row: unexpected status %d", resp.StatusCode)
	}
	return nil
}
