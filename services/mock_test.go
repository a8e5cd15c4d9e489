package services

import (
	"context"
	"strings"

	"github.com/stretchr/testify/mock"

	"deal_scout/llm"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// promptContains matches a request whose last message contains s.
func promptContains(s string) any {
	return mock.MatchedBy(func(req llm.Request) bool {
		if len(req.Messages) == 0 {
			return false
		}
		return strings.Contains(req.Messages[len(req.Messages)-1].Content, s)
	})
}
