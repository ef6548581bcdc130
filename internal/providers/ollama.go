package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OllamaProvider generates text with a local Ollama server.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllamaProvider(alias, model, baseURL string) *OllamaProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   resolveOllamaModel(alias, model),
		client:  &http.Client{},
	}
}

// resolveOllamaModel lets the backend selector name a model directly,
// e.g. ollama:qwen2.5:14b.
func resolveOllamaModel(alias, model string) string {
	alias = strings.TrimSpace(alias)
	if alias != "" {
		return alias
	}
	if strings.TrimSpace(model) != "" {
		return model
	}
	return "qwen2.5:14b"
}

func (o *OllamaProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "ollama", Model: o.model}
	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	payload, _ := json.Marshal(map[string]any{
		"model":  o.model,
		"prompt": req.Prompt,
		"system": req.SystemPrompt,
		"stream": false,
		"options": map[string]any{
			"temperature": req.Temperature,
			"num_predict": maxTokensOr(req.MaxTokens),
		},
	})
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(payload))
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return GenerateResponse{}, info, unavailable("ollama", "request to %s failed: %v", o.baseURL, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return GenerateResponse{}, info, callFailed("ollama", fmt.Errorf("generate error %d: %s", resp.StatusCode, string(body)))
	}
	var parsed struct {
		Response string `json:"response"`
		Error    string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return GenerateResponse{}, info, callFailed("ollama", fmt.Errorf("decode response: %w", err))
	}
	if parsed.Error != "" {
		return GenerateResponse{}, info, callFailed("ollama", fmt.Errorf("%s", parsed.Error))
	}
	text := strings.TrimSpace(parsed.Response)
	if text == "" {
		return GenerateResponse{}, info, callFailed("ollama", fmt.Errorf("empty response"))
	}
	return GenerateResponse{Text: text}, info, nil
}
