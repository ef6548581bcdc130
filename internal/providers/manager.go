package providers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"patentflow/internal/config"
)

type NamedLLMProvider struct {
	Ref      ProviderRef
	Provider LLMProvider
}

// Manager builds model backends from configuration. A backend selector is a
// provider list such as "anthropic", "openai:deepseek" or "openai|ollama".
type Manager struct {
	cfg config.Config
}

func NewManager(cfg config.Config) *Manager {
	return &Manager{cfg: cfg}
}

// Provider resolves a backend selector. Multiple entries become a failover
// chain that prefers real backends over mock.
func (m *Manager) Provider(backend string) (LLMProvider, error) {
	refs := ParseProviderList(backend)
	named := make([]NamedLLMProvider, 0, len(refs))
	for _, ref := range refs {
		p, err := m.buildProvider(ref)
		if err != nil {
			return nil, err
		}
		named = append(named, NamedLLMProvider{Ref: ref, Provider: p})
	}
	if len(named) == 1 {
		return named[0].Provider, nil
	}
	return &Failover{providers: named}, nil
}

// Ready reports whether at least one backend of the selector has its
// credentials configured. The returned error carries a setup hint.
func (m *Manager) Ready(backend string) error {
	refs := ParseProviderList(backend)
	hints := make([]string, 0, len(refs))
	for _, ref := range refs {
		if _, err := m.buildProvider(ref); err != nil {
			hints = append(hints, err.Error())
			continue
		}
		missing := missingEnvKeys(ref)
		if len(missing) == 0 {
			return nil
		}
		hints = append(hints, setupHint(ref.Name, missing))
	}
	return &ModelError{Kind: ErrModelUnavailable, Provider: backend, Err: errors.New(strings.Join(hints, "; "))}
}

// Label is a human-readable backend description for progress logs.
func Label(name string) string {
	switch strings.ToLower(name) {
	case "anthropic":
		return "Anthropic-compatible API"
	case "openai":
		return "OpenAI-compatible API"
	case "gemini":
		return "Gemini API"
	case "groq":
		return "Groq API"
	case "ollama":
		return "local Ollama"
	case "mock":
		return "deterministic mock"
	default:
		return name
	}
}

func (m *Manager) buildProvider(ref ProviderRef) (LLMProvider, error) {
	switch strings.ToLower(ref.Name) {
	case "mock":
		return NewMockProvider(), nil
	case "anthropic":
		return NewAnthropicProvider(m.cfg.AnthropicModel, m.cfg.AnthropicBaseURL), nil
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias, m.cfg.OpenAIModel, m.cfg.OpenAIBaseURL), nil
	case "gemini":
		return NewGeminiProvider(m.cfg.GeminiModel), nil
	case "groq":
		return NewGroqProvider(ref.KeyAlias, m.cfg.GroqModel), nil
	case "ollama":
		return NewOllamaProvider(ref.KeyAlias, m.cfg.OllamaModel, m.cfg.OllamaBaseURL), nil
	default:
		return nil, unavailable(ref.Name, "unsupported backend %q: supported anthropic, gemini, groq, mock, ollama, openai", ref.Name)
	}
}

func missingEnvKeys(ref ProviderRef) []string {
	var keys []string
	switch strings.ToLower(ref.Name) {
	case "anthropic":
		keys = anthropicKeys
	case "openai":
		keys = []string{"OPENAI_API_KEY"}
		if ref.KeyAlias != "" {
			keys = append([]string{"PATENTFLOW_OPENAI_KEY_" + sanitizeEnvToken(ref.KeyAlias)}, keys...)
		}
	case "gemini":
		keys = geminiKeys
	case "groq":
		keys = []string{"GROQ_API_KEY"}
		if ref.KeyAlias != "" {
			keys = append([]string{"PATENTFLOW_GROQ_KEY_" + sanitizeEnvToken(ref.KeyAlias)}, keys...)
		}
	default:
		return nil
	}
	for _, k := range keys {
		if strings.TrimSpace(os.Getenv(k)) != "" {
			return nil
		}
	}
	return keys
}

func setupHint(name string, missing []string) string {
	if len(missing) == 1 {
		return fmt.Sprintf("%s: missing environment variable: %s", name, missing[0])
	}
	return fmt.Sprintf("%s: missing one of environment variables: %s", name, strings.Join(missing, ", "))
}

// Failover tries each provider in preferred order and returns the first
// success.
type Failover struct {
	providers []NamedLLMProvider
}

func (f *Failover) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	var errs []error
	var last ProviderInfo
	for _, i := range f.PreferredOrder() {
		resp, info, err := f.providers[i].Provider.Generate(ctx, req)
		if err == nil {
			return resp, info, nil
		}
		last = info
		errs = append(errs, fmt.Errorf("%s: %w", f.providers[i].Ref.Raw, err))
		if ctx.Err() != nil {
			break
		}
	}
	return GenerateResponse{}, last, errors.Join(errs...)
}

func (f *Failover) PreferredOrder() []int {
	return preferredOrder(len(f.providers), func(i int) string { return strings.ToLower(f.providers[i].Ref.Name) })
}

func preferredOrder(n int, nameAt func(i int) string) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if nameAt(i) != "mock" {
			out = append(out, i)
		}
	}
	for i := 0; i < n; i++ {
		if nameAt(i) == "mock" {
			out = append(out, i)
		}
	}
	return out
}
