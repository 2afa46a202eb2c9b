// internal/client/client.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"

	"mcp-health-profile/internal/profile"
)

// Client calls tools on a running health profile server.
type Client struct {
	httpClient *http.Client
	serverURL  string
	apiKey     string
}

func New(serverURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
	}
}

// Profile asks the server to load the profile and returns the labels.
func (c *Client) Profile(ctx context.Context) (profile.Labels, error) {
	var labels profile.Labels
	text, err := c.CallTool(ctx, "get_profile", nil)
	if err != nil {
		return labels, err
	}
	if err := json.Unmarshal([]byte(text), &labels); err != nil {
		return labels, fmt.Errorf("failed to decode profile: %w", err)
	}
	return labels, nil
}

// SaveResult is what the save tools report back.
type SaveResult struct {
	Saved    bool           `json:"saved"`
	Quantity string         `json:"quantity"`
	Labels   profile.Labels `json:"labels"`
}

// Save calls save_height, save_weight or save_water. A nil value keeps the
// server's default.
func (c *Client) Save(ctx context.Context, metric string, value *float64, unit string) (*SaveResult, error) {
	args := map[string]interface{}{}
	if value != nil {
		args["value"] = *value
	}
	if unit != "" {
		args["unit"] = unit
	}

	text, err := c.CallTool(ctx, "save_"+metric, args)
	if err != nil {
		return nil, err
	}

	var result SaveResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("failed to decode save result: %w", err)
	}
	return &result, nil
}

// CallTool posts a tool call and returns the text of the first content item.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	request := protocol.CallToolRequest{
		Name:      name,
		Arguments: args,
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/mcp", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("request failed with status %d and couldn't read body: %v", resp.StatusCode, err)
		}
		return "", fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	// Content is decoded loosely; only text items are expected.
	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	for _, content := range result.Content {
		if content.Type == "text" {
			return content.Text, nil
		}
	}

	return "", fmt.Errorf("unexpected response format")
}
