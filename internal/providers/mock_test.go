package providers

import (
	"context"

	"chatbridge/internal/core"
)

// mockProvider is a scripted core.Provider.
type mockProvider struct {
	name    string
	model   string
	answer  string
	err     error
	deltas  []core.Delta
	lastReq *core.ChatRequest
}

func (m *mockProvider) Name() string  { return m.name }
func (m *mockProvider) Model() string { return m.model }

func (m *mockProvider) Chat(_ context.Context, req *core.ChatRequest) (string, error) {
	m.lastReq = req
	if m.err != nil {
		return "", m.err
	}
	return m.answer, nil
}

func (m *mockProvider) StreamChat(ctx context.Context, req *core.ChatRequest) <-chan core.Delta {
	m.lastReq = req
	out := make(chan core.Delta)
	go func() {
		defer close(out)
		for _, d := range m.deltas {
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
