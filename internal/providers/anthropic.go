package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// AnthropicProvider calls the Messages API of Anthropic or a compatible
// gateway.
type AnthropicProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewAnthropicProvider(model, baseURL string) *AnthropicProvider {
	if strings.TrimSpace(model) == "" {
		model = "claude-3-5-sonnet-latest"
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.anthropic.com/v1"
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(baseURL, "/v1") {
		baseURL += "/v1"
	}
	return &AnthropicProvider{
		apiKey:  firstEnv(anthropicKeys...),
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{},
	}
}

var anthropicKeys = []string{"ANTHROPIC_API_KEY", "ANTHROPIC_AUTH_TOKEN"}

func (a *AnthropicProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "anthropic", Model: a.model}
	if a.apiKey == "" {
		return GenerateResponse{}, info, unavailable("anthropic", "missing one of environment variables: %s", strings.Join(anthropicKeys, ", "))
	}
	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	payload, err := json.Marshal(anthropicRequest{
		Model:       a.model,
		MaxTokens:   maxTokensOr(req.MaxTokens),
		System:      req.SystemPrompt,
		Temperature: req.Temperature,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return GenerateResponse{}, info, callFailed("anthropic", fmt.Errorf("marshal request: %w", err))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return GenerateResponse{}, info, callFailed("anthropic", fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return GenerateResponse{}, info, callFailed("anthropic", fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return GenerateResponse{}, info, callFailed("anthropic", fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}
	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return GenerateResponse{}, info, callFailed("anthropic", fmt.Errorf("decode response: %w", err))
	}
	if parsed.Error != nil {
		return GenerateResponse{}, info, callFailed("anthropic", fmt.Errorf("api error %s: %s", parsed.Error.Type, parsed.Error.Message))
	}
	chunks := make([]string, 0, len(parsed.Content))
	for _, c := range parsed.Content {
		if c.Type == "text" && c.Text != "" {
			chunks = append(chunks, c.Text)
		}
	}
	text := strings.TrimSpace(strings.Join(chunks, "\n"))
	if text == "" {
		return GenerateResponse{}, info, callFailed("anthropic", fmt.Errorf("response did not include text content"))
	}
	return GenerateResponse{Text: text}, info, nil
}

func maxTokensOr(n int) int {
	if n <= 0 {
		return 4096
	}
	return n
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
