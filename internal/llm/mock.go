package llm

import "context"

const (
	// MockPrefix marks replies produced by the echo mock.
	MockPrefix = "[mock-llm] "
	// MockEchoLimit is how many runes of the prompt the mock echoes back.
	MockEchoLimit = 200
)

// Mock echoes the head of the prompt. It never fails and never touches the network.
type Mock struct {
	Limit int
}

// NewMock creates an echo mock with the default limit.
func NewMock() *Mock {
	return &Mock{Limit: MockEchoLimit}
}

// Generate implements Client.
func (m *Mock) Generate(_ context.Context, prompt string) (string, error) {
	limit := m.Limit
	if limit <= 0 {
		limit = MockEchoLimit
	}
	return echo(prompt, limit), nil
}

// MockEcho is the reply the default mock gives for prompt.
func MockEcho(prompt string) string {
	return echo(prompt, MockEchoLimit)
}

func echo(prompt string, limit int) string {
	runes := []rune(prompt)
	if len(runes) > limit {
		runes = runes[:limit]
	}
	return MockPrefix + string(runes)
}
