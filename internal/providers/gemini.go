package providers

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider generates text through the Gemini API.
type GeminiProvider struct {
	apiKey string
	model  string
}

var geminiKeys = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}

func NewGeminiProvider(model string) *GeminiProvider {
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiProvider{apiKey: firstEnv(geminiKeys...), model: model}
}

func (g *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "gemini", Model: g.model}
	if g.apiKey == "" {
		return GenerateResponse{}, info, unavailable("gemini", "missing one of environment variables: %s", strings.Join(geminiKeys, ", "))
	}
	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: g.apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return GenerateResponse{}, info, unavailable("gemini", "create client: %v", err)
	}
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: int32(maxTokensOr(req.MaxTokens)),
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return GenerateResponse{}, info, callFailed("gemini", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return GenerateResponse{}, info, callFailed("gemini", fmt.Errorf("response did not include text content"))
	}
	return GenerateResponse{Text: text}, info, nil
}
