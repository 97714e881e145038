package research

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carloslaurellineves/websearch-agent/internal/model"
	"github.com/carloslaurellineves/websearch-agent/internal/resilience"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func fastRetry(attempts int) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}
}

func newTestAgent(s Searcher, m Summarizer, attempts int, opts ...Option) *Agent {
	base := []Option{
		WithRetry(fastRetry(attempts)),
		WithClock(func() time.Time { return fixedNow }),
	}
	return NewAgent(s, m, attempts, append(base, opts...)...)
}

var office = model.SoftwareRecord{Name: "Microsoft Office", Version: "2021", OriginalStatus: model.StatusYes}

var officeResults = []SearchResult{
	{Title: "Microsoft 365 for business", URL: "https://www.microsoft.com/business", Snippet: "Commercial use requires a license."},
}

const officeAnswer = `{"status_licenciamento": "Sim", "nivel_confianca": 95, "fontes": ["Microsoft"], "links": ["https://www.microsoft.com/business"], "resumo": "Requer licença comercial."}`

func TestResearch_Success(t *testing.T) {
	s := new(mockSearcher)
	m := new(mockSummarizer)
	s.On("Search", mock.Anything, "Microsoft Office 2021 licenciamento corporativo comercial", defaultTopK).
		Return(officeResults, nil)
	m.On("Complete", mock.Anything, SystemPrompt, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "Nome: Microsoft Office") && strings.Contains(p, "https://www.microsoft.com/business")
	})).Return(officeAnswer, nil)

	v := newTestAgent(s, m, 3).Research(context.Background(), office)

	assert.Equal(t, model.StatusYes, v.VerifiedStatus)
	assert.Equal(t, 95, v.Confidence)
	assert.Equal(t, office, v.Record)
	assert.Equal(t, fixedNow, v.SearchedAt)
	assert.Equal(t, []string{"Microsoft"}, v.Sources)
	assert.Equal(t, "Requer licença comercial.", v.Summary)
	s.AssertExpectations(t)
	m.AssertExpectations(t)
}

func TestResearch_RetriesTransientSearchFailure(t *testing.T) {
	s := new(mockSearcher)
	m := new(mockSummarizer)
	s.On("Search", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset")).Once()
	s.On("Search", mock.Anything, mock.Anything, mock.Anything).
		Return(officeResults, nil).Once()
	m.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(officeAnswer, nil)

	v := newTestAgent(s, m, 3).Research(context.Background(), office)

	assert.Equal(t, model.StatusYes, v.VerifiedStatus)
	s.AssertNumberOfCalls(t, "Search", 2)
}

func TestResearch_SearchExhaustedSkipsModel(t *testing.T) {
	s := new(mockSearcher)
	m := new(mockSummarizer)
	s.On("Search", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("search backend down"))

	v := newTestAgent(s, m, 3).Research(context.Background(), office)

	assert.Equal(t, model.StatusError, v.VerifiedStatus)
	assert.Equal(t, 0, v.Confidence)
	assert.True(t, strings.HasPrefix(v.Summary, ErrorPrefix))
	assert.Contains(t, v.Summary, "search backend down")
	assert.Empty(t, v.Sources)
	assert.Empty(t, v.Links)
	s.AssertNumberOfCalls(t, "Search", 3)
	m.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func TestResearch_PermanentModelErrorNotRetried(t *testing.T) {
	s := new(mockSearcher)
	m := new(mockSummarizer)
	s.On("Search", mock.Anything, mock.Anything, mock.Anything).Return(officeResults, nil)
	m.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("", resilience.Permanent(errors.New("llm: unexpected status 401")))

	v := newTestAgent(s, m, 3).Research(context.Background(), office)

	assert.Equal(t, model.StatusError, v.VerifiedStatus)
	assert.Contains(t, v.Summary, "401")
	m.AssertNumberOfCalls(t, "Complete", 1)
}

func TestResearch_ModelRetriedUpToLimit(t *testing.T) {
	s := new(mockSearcher)
	m := new(mockSummarizer)
	s.On("Search", mock.Anything, mock.Anything, mock.Anything).Return(officeResults, nil)
	m.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("llm: unexpected status 503"))

	v := newTestAgent(s, m, 2).Research(context.Background(), office)

	assert.Equal(t, model.StatusError, v.VerifiedStatus)
	assert.Contains(t, v.Summary, "gave up after 2 attempts")
	s.AssertNumberOfCalls(t, "Search", 1)
	m.AssertNumberOfCalls(t, "Complete", 2)
}

func TestResearch_NullAnswerRetried(t *testing.T) {
	s := new(mockSearcher)
	m := new(mockSummarizer)
	s.On("Search", mock.Anything, mock.Anything, mock.Anything).Return(officeResults, nil)
	m.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("null", nil).Once()
	m.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(officeAnswer, nil).Once()

	v := newTestAgent(s, m, 3).Research(context.Background(), office)

	assert.Equal(t, model.StatusYes, v.VerifiedStatus)
	assert.Equal(t, 95, v.Confidence)
	m.AssertNumberOfCalls(t, "Complete", 2)
}

func TestResearch_NullAnswerExhaustedIsError(t *testing.T) {
	s := new(mockSearcher)
	m := new(mockSummarizer)
	s.On("Search", mock.Anything, mock.Anything, mock.Anything).Return(officeResults, nil)
	m.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("```json\nnull\n```", nil)

	v := newTestAgent(s, m, 2).Research(context.Background(), office)

	assert.Equal(t, model.StatusError, v.VerifiedStatus)
	assert.Equal(t, 0, v.Confidence)
	assert.Contains(t, v.Summary, "llm: null answer")
	m.AssertNumberOfCalls(t, "Complete", 2)
}

type slowSummarizer struct{}

func (slowSummarizer) Complete(ctx context.Context, _, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestResearch_TimeoutBecomesErrorVerdict(t *testing.T) {
	s := new(mockSearcher)
	s.On("Search", mock.Anything, mock.Anything, mock.Anything).Return(officeResults, nil)

	a := newTestAgent(s, slowSummarizer{}, 2, WithTimeout(20*time.Millisecond))
	v := a.Research(context.Background(), office)

	assert.Equal(t, model.StatusError, v.VerifiedStatus)
	assert.Contains(t, v.Summary, "research: timed out")
}

type panickingSearcher struct{}

func (panickingSearcher) Search(context.Context, string, int) ([]SearchResult, error) {
	panic("index out of range")
}

func TestResearch_RecoversFromPanic(t *testing.T) {
	m := new(mockSummarizer)

	v := newTestAgent(panickingSearcher{}, m, 1).Research(context.Background(), office)

	assert.Equal(t, model.StatusError, v.VerifiedStatus)
	assert.Equal(t, ErrorPrefix+"panic: index out of range", v.Summary)
	assert.Equal(t, fixedNow, v.SearchedAt)
}

func TestResearch_UnparseableAnswerFallsBack(t *testing.T) {
	s := new(mockSearcher)
	m := new(mockSummarizer)
	s.On("Search", mock.Anything, mock.Anything, mock.Anything).Return([]SearchResult{}, nil)
	m.On("Complete", mock.Anything, mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "Nenhum resultado")
	})).Return("O software requer licença. Veja https://example.com/eula", nil)

	v := newTestAgent(s, m, 1).Research(context.Background(), office)

	assert.Equal(t, model.StatusYes, v.VerifiedStatus)
	assert.Equal(t, manualConfidence, v.Confidence)
	assert.Equal(t, []string{"https://example.com/eula"}, v.Links)
}

func TestResearch_CustomTopK(t *testing.T) {
	s := new(mockSearcher)
	m := new(mockSummarizer)
	s.On("Search", mock.Anything, mock.Anything, 8).Return(officeResults, nil)
	m.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(officeAnswer, nil)

	newTestAgent(s, m, 1, WithTopK(8)).Research(context.Background(), office)

	s.AssertExpectations(t)
}

func TestClassify(t *testing.T) {
	wrapped := eris.Wrap(context.DeadlineExceeded, "llm: send request")
	timeout := Classify("llm", &resilience.ExhaustedError{Attempts: 3, Err: wrapped})
	assert.True(t, eris.Is(timeout, ErrResearchTimeout))
	assert.False(t, eris.Is(timeout, ErrResearch))
	assert.Contains(t, timeout.Error(), "llm: ")

	other := Classify("search", errors.New("boom"))
	require.True(t, eris.Is(other, ErrResearch))
	assert.Contains(t, other.Error(), "search: boom")
}
