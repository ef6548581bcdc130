package providers

import (
	"context"
	"fmt"
	"os"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider uses the official SDK against OpenAI or any
// OpenAI-compatible base URL.
type OpenAIProvider struct {
	keyName string
	apiKey  string
	model   string
	opts    []option.RequestOption
}

func NewOpenAIProvider(keyName, model, baseURL string) *OpenAIProvider {
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	apiKey := resolveKey("OPENAI_API_KEY", "PATENTFLOW_OPENAI_KEY_", keyName)
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{keyName: keyName, apiKey: apiKey, model: model, opts: opts}
}

func (o *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "openai", Model: o.model, Key: o.keyName}
	if o.apiKey == "" {
		return GenerateResponse{}, info, unavailable("openai", "openai key missing for alias %q: set OPENAI_API_KEY", o.keyName)
	}
	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	client := openai.NewClient(o.opts...)
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(req.SystemPrompt))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    msgs,
		MaxTokens:   openai.Int(int64(maxTokensOr(req.MaxTokens))),
		Temperature: openai.Float(req.Temperature),
	})
	if err != nil {
		return GenerateResponse{}, info, callFailed("openai", err)
	}
	if len(resp.Choices) == 0 {
		return GenerateResponse{}, info, callFailed("openai", fmt.Errorf("response did not include choices"))
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return GenerateResponse{}, info, callFailed("openai", fmt.Errorf("response did not include text content"))
	}
	return GenerateResponse{Text: text}, info, nil
}

// resolveKey prefers <aliasPrefix><ALIAS> and falls back to the primary env key.
func resolveKey(primary, aliasPrefix, alias string) string {
	if alias != "" {
		if v := strings.TrimSpace(os.Getenv(aliasPrefix + sanitizeEnvToken(alias))); v != "" {
			return v
		}
	}
	return strings.TrimSpace(os.Getenv(primary))
}

func sanitizeEnvToken(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, ".", "_")
	s = strings.ReplaceAll(s, "/", "_")
	return s
}
