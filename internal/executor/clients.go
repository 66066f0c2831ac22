package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pulsemetrics/engage-engine/internal/interaction"
	"github.com/pulsemetrics/engage-engine/internal/prefetch"
)

// HTTPPlatformClient talks to the platform gateway, which owns the
// per-platform API credentials and quirks
type HTTPPlatformClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPPlatformClient returns a PlatformClient backed by the platform
// gateway at baseURL
func NewHTTPPlatformClient(baseURL string, apiKey string, timeout time.Duration) *HTTPPlatformClient {
	return &HTTPPlatformClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type platformActionRequest struct {
	InteractionID string `json:"interactionId"`
	Platform      string `json:"platform"`
	ChannelID     string `json:"channelId,omitempty"`
	Mode          string `json:"mode,omitempty"`
	Message       string `json:"message,omitempty"`
}

func (c *HTTPPlatformClient) post(ctx context.Context, path string, request platformActionRequest) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("couldn't marshal the platform request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("platform call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("platform call returned status %d", resp.StatusCode)
	}
	return nil
}

// Moderate implements the PlatformClient interface
func (c *HTTPPlatformClient) Moderate(ctx context.Context, inter interaction.Interaction, mode string) error {
	return c.post(ctx, "/v1/moderations", platformActionRequest{
		InteractionID: inter.ID, Platform: inter.Platform, ChannelID: inter.ChannelID, Mode: mode,
	})
}

// Archive implements the PlatformClient interface
func (c *HTTPPlatformClient) Archive(ctx context.Context, inter interaction.Interaction) error {
	return c.post(ctx, "/v1/archives", platformActionRequest{
		InteractionID: inter.ID, Platform: inter.Platform, ChannelID: inter.ChannelID,
	})
}

// Respond implements the PlatformClient interface
func (c *HTTPPlatformClient) Respond(ctx context.Context, inter interaction.Interaction, message string) error {
	return c.post(ctx, "/v1/replies", platformActionRequest{
		InteractionID: inter.ID, Platform: inter.Platform, ChannelID: inter.ChannelID, Message: message,
	})
}

// BatchFetch implements the prefetch Prefetcher interface: the platform
// gateway exposes bulk author/channel metadata lookups
func (c *HTTPPlatformClient) BatchFetch(ctx context.Context, ids []string) (map[string]prefetch.Metadata, error) {
	body, err := json.Marshal(map[string][]string{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("couldn't marshal the metadata request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/metadata:batchGet", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata call returned status %d", resp.StatusCode)
	}

	var metadata map[string]prefetch.Metadata
	if err := json.NewDecoder(resp.Body).Decode(&metadata); err != nil {
		return nil, fmt.Errorf("couldn't decode the metadata response: %w", err)
	}
	return metadata, nil
}

// HTTPResponder generates reply drafts through the AI gateway
type HTTPResponder struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPResponder returns a Responder backed by the AI gateway at baseURL
func NewHTTPResponder(baseURL string, apiKey string, timeout time.Duration) *HTTPResponder {
	return &HTTPResponder{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type replyRequest struct {
	InteractionID string `json:"interactionId"`
	Platform      string `json:"platform"`
	Text          string `json:"text"`
	AuthorName    string `json:"authorName,omitempty"`
	Instructions  string `json:"instructions,omitempty"`
}

type replyResponse struct {
	Reply string `json:"reply"`
}

// GenerateReply implements the Responder interface
func (r *HTTPResponder) GenerateReply(ctx context.Context, inter interaction.Interaction, instructions string) (string, error) {
	body, err := json.Marshal(replyRequest{
		InteractionID: inter.ID,
		Platform:      inter.Platform,
		Text:          inter.Text,
		AuthorName:    inter.AuthorName,
		Instructions:  instructions,
	})
	if err != nil {
		return "", fmt.Errorf("couldn't marshal the reply request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/replies", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("reply generation failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reply generation returned status %d", resp.StatusCode)
	}

	var reply replyResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("couldn't decode the reply response: %w", err)
	}
	return reply.Reply, nil
}
