package research

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// --- Searcher Mock ---

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	args := m.Called(ctx, query, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]SearchResult), args.Error(1)
}

// --- Summarizer Mock ---

type mockSummarizer struct {
	mock.Mock
}

func (m *mockSummarizer) Complete(ctx context.Context, system, user string) (string, error) {
	args := m.Called(ctx, system, user)
	return args.String(0), args.Error(1)
}
