package stages

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"patentflow/internal/providers"
	"patentflow/internal/workspace"
)

// scriptedModel answers every call through reply and records the requests.
type scriptedModel struct {
	mu       sync.Mutex
	calls    []providers.GenerateRequest
	inFlight int
	peak     int
	delay    time.Duration
	reply    func(req providers.GenerateRequest) (string, error)
}

func (m *scriptedModel) Generate(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.inFlight++
	if m.inFlight > m.peak {
		m.peak = m.inFlight
	}
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	text, err := m.reply(req)
	return providers.GenerateResponse{Text: text}, providers.ProviderInfo{Name: "scripted"}, err
}

func (m *scriptedModel) ops() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int{}
	for _, c := range m.calls {
		out[c.Operation]++
	}
	return out
}

func newRunContext(t *testing.T, model providers.LLMProvider) *RunContext {
	t.Helper()
	store, err := workspace.Create(workspace.RunRoot(t.TempDir(), "test"))
	require.NoError(t, err)
	return &RunContext{
		RunID:   "test",
		Backend: "scripted",
		Store:   store,
		Model:   model,
		Options: DefaultOptions(),
		Now:     func() time.Time { return time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC) },
	}
}
