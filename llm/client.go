// Package llm provides the text-completion client used for routing
// decisions. The only production implementation targets Azure OpenAI
// chat completions.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client produces a text completion for a system instruction and a user
// message.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

const (
	// DefaultAPIVersion is the default Azure OpenAI API version.
	DefaultAPIVersion = "2024-08-01-preview"

	// DefaultTimeout is the default HTTP timeout for completion calls.
	DefaultTimeout = 60 * time.Second

	defaultMaxTokens   = 2000
	defaultTemperature = 0.7
)

// AzureOpenAIConfig configures an Azure OpenAI completion client.
type AzureOpenAIConfig struct {
	Endpoint   string        // e.g. https://myresource.openai.azure.com
	APIKey     string        // API key or bearer token
	Deployment string        // Azure deployment name
	APIVersion string        // optional, defaults to DefaultAPIVersion
	Timeout    time.Duration // optional, defaults to DefaultTimeout
	HTTPClient *http.Client  // optional, for testing
}

// AzureOpenAI implements Client against the Azure OpenAI chat completions
// API.
type AzureOpenAI struct {
	endpoint   string
	apiKey     string
	deployment string
	apiVersion string
	useBearer  bool
	httpClient *http.Client
}

// NewAzureOpenAI creates an Azure OpenAI completion client. Endpoints under
// cognitiveservices.azure.com authenticate with a Bearer token; everything
// else uses the api-key header.
func NewAzureOpenAI(cfg AzureOpenAIConfig) (*AzureOpenAI, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("azure openai endpoint is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("azure openai api key is required")
	}
	if cfg.Deployment == "" {
		return nil, fmt.Errorf("azure openai deployment name is required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &AzureOpenAI{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		deployment: cfg.Deployment,
		apiVersion: cfg.APIVersion,
		useBearer:  strings.Contains(strings.ToLower(cfg.Endpoint), ".cognitiveservices.azure.com"),
		httpClient: httpClient,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends a chat completion request and returns the first choice's
// content.
func (c *AzureOpenAI) Complete(ctx context.Context, system, user string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	payload, err := json.Marshal(chatRequest{
		Messages:    messages,
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.endpoint, c.deployment, c.apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.useBearer {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	} else {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion request returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("completion error %s: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
