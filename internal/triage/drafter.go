package triage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/trigonal/intake/internal/domain"
)

const (
	anthropicAPI = "https://api.anthropic.com/v1/messages"

	// DefaultModel is used when no model is configured
	DefaultModel = "claude-sonnet-4-20250514"
)

// Drafter asks the Anthropic API for a tailored recommendation
type Drafter struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewDrafter creates a Drafter; it fails when apiKey is empty
func NewDrafter(apiKey, model string) (*Drafter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}
	if model == "" {
		model = DefaultModel
	}

	return &Drafter{
		apiKey:   apiKey,
		model:    model,
		endpoint: anthropicAPI,
		client:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Draft returns a short recommendation for the architect picking up inq
func (d *Drafter) Draft(ctx context.Context, inq domain.Inquiry) (string, error) {
	resp, err := d.callAPI(ctx, buildPrompt(inq))
	if err != nil {
		return "", fmt.Errorf("api call: %w", err)
	}

	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("empty recommendation")
	}
	return text, nil
}

func buildPrompt(inq domain.Inquiry) string {
	var sb strings.Builder

	sb.WriteString("You are a senior health-IT integration architect triaging an inbound consultation brief.\n\n")
	sb.WriteString("Organization: ")
	sb.WriteString(inq.Identity.Organization)
	sb.WriteString("\n")

	sb.WriteString("Domains:\n")
	for _, k := range inq.Domains {
		sb.WriteString("- ")
		sb.WriteString(string(k))
		sb.WriteString("\n")
	}
	if len(inq.Features) > 0 {
		sb.WriteString("Requested features: ")
		sb.WriteString(strings.Join(inq.Features, ", "))
		sb.WriteString("\n")
	}
	sb.WriteString("Scale: ")
	sb.WriteString(string(inq.Scale))
	sb.WriteString("\nTimeline: ")
	sb.WriteString(string(inq.Timeline))
	sb.WriteString("\n\n")

	sb.WriteString(`Write a two or three sentence internal recommendation for the architect
who will answer this brief: the approach to propose and the first engagement
step given the timeline. Plain text only, no headings or lists.`)

	return sb.String()
}

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (d *Drafter) callAPI(ctx context.Context, prompt string) (string, error) {
	reqBody := apiRequest{
		Model:     d.model,
		MaxTokens: 400,
		Messages: []apiMessage{
			{Role: "user", Content: prompt},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", d.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("api error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	if apiResp.Error != nil {
		return "", fmt.Errorf("api error: %s", apiResp.Error.Message)
	}

	for _, c := range apiResp.Content {
		if c.Type == "text" {
			return c.Text, nil
		}
	}
	return "", fmt.Errorf("empty response")
}
