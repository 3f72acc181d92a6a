package providers

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

const defaultHTTPTimeout = 60 * time.Second

// OpenRouterClient talks to the OpenRouter chat completions endpoint.
type OpenRouterClient struct {
	apiBase    string
	apiKey     string
	httpClient *http.Client
}

// NewOpenRouterClient builds a client for the given API base and key.
// timeout zero means the default.
func NewOpenRouterClient(apiBase, apiKey string, timeout time.Duration) (*OpenRouterClient, error) {
	apiBase = strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if apiBase == "" {
		return nil, fmt.Errorf("openrouter API base not configured")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("openrouter API key not configured")
	}
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &OpenRouterClient{
		apiBase:    apiBase,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *OpenRouterClient) Complete(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	if c == nil {
		return "", fmt.Errorf("openrouter client not initialized")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return "", fmt.Errorf("model is required")
	}

	requestBody := map[string]interface{}{
		"model":    opts.Model,
		"messages": messages,
	}
	if opts.MaxTokens > 0 {
		requestBody["max_tokens"] = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		requestBody["temperature"] = opts.Temperature
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("marshal openrouter request: %w", err)
	}

	endpoint := c.apiBase + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create openrouter request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send openrouter request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read openrouter response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("openrouter: %w", ErrRateLimited)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("openrouter API request failed: status=%d error=%s", resp.StatusCode, extractAPIError(body))
	}

	content, err := parseChatCompletionsResponse(body)
	if err != nil {
		return "", fmt.Errorf("parse openrouter response: %w", err)
	}
	return content, nil
}

func parseChatCompletionsResponse(body []byte) (string, error) {
	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content interface{} `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage *UsageInfo `json:"usage"`
	}
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return "", err
	}

	if len(apiResponse.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	content := strings.TrimSpace(flattenMessageContent(apiResponse.Choices[0].Message.Content))
	if content == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}

func flattenMessageContent(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return v
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if text, ok := m["text"].(string); ok {
				parts = append(parts, text)
				continue
			}
			if content, ok := m["content"].(string); ok {
				parts = append(parts, content)
			}
		}
		return strings.Join(parts, "")
	default:
		return ""
	}
}

func extractAPIError(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "empty response body"
	}

	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Error.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			return msg
		}
	}

	if len(trimmed) > 2000 {
		return trimmed[:2000] + "..."
	}
	return trimmed
}
