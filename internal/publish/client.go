// Package publish ships build manifests to a key-value store over HTTP.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dgallion1/docuwrite/internal/annotate"
)

// Client stores documents in a pathstore-style HTTP API: PUT /kv/{key} with
// a JSON node body and bearer authentication.
type Client struct {
	baseURL    string
	apiKey     string
	prefix     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		prefix:  "docuwrite/builds",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NodeRequest is the body for PUT /kv/{key}.
type NodeRequest struct {
	Value     any    `json:"value"`
	MergeMode string `json:"merge_mode,omitempty"`
	Source    string `json:"source,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// ManifestKey is the key a build's manifest is stored under.
func (c *Client) ManifestKey(jobID string) string {
	return c.prefix + "/" + jobID + "/manifest"
}

// Publish stores m under ManifestKey(jobID).
func (c *Client) Publish(ctx context.Context, jobID string, m *annotate.Manifest) error {
	return c.PutNode(ctx, c.ManifestKey(jobID), NodeRequest{
		Value:  m,
		Source: "docuwrite:" + jobID,
	})
}

// PutNode stores or updates a node at the given key.
func (c *Client) PutNode(ctx context.Context, key string, req NodeRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal node: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/kv/"+key, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("put node: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("put node %s: status %d: %s", key, resp.StatusCode, string(respBody))
	}
	return nil
}
