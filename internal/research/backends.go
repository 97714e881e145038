package research

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/carloslaurellineves/websearch-agent/internal/resilience"
	"github.com/carloslaurellineves/websearch-agent/pkg/anthropic"
	"github.com/carloslaurellineves/websearch-agent/pkg/duckduckgo"
	"github.com/carloslaurellineves/websearch-agent/pkg/jina"
	"github.com/carloslaurellineves/websearch-agent/pkg/llm"
)

// SearchResult is one web search hit handed to the model.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// Searcher runs a web search and returns at most topK results.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]SearchResult, error)
}

// Summarizer sends a system and user prompt to a language model and returns
// the raw text answer.
type Summarizer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// classifyStatus marks client errors that retrying cannot fix as permanent.
func classifyStatus(code int, err error) error {
	if code >= 400 && code < 500 && !resilience.IsTransientHTTPStatus(code) {
		return resilience.Permanent(err)
	}
	return err
}

type duckDuckGoSearcher struct {
	client duckduckgo.Client
}

// NewDuckDuckGoSearcher adapts the keyless DuckDuckGo client.
func NewDuckDuckGoSearcher(c duckduckgo.Client) Searcher {
	return &duckDuckGoSearcher{client: c}
}

func (s *duckDuckGoSearcher) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	hits, err := s.client.Search(ctx, query, topK)
	if err != nil {
		var se *duckduckgo.StatusError
		if errors.As(err, &se) {
			return nil, classifyStatus(se.StatusCode, err)
		}
		return nil, err
	}
	out := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, SearchResult{Title: h.Title, URL: h.URL, Snippet: h.Snippet})
	}
	return out, nil
}

type jinaSearcher struct {
	client jina.Client
}

// NewJinaSearcher adapts the Jina AI search client.
func NewJinaSearcher(c jina.Client) Searcher {
	return &jinaSearcher{client: c}
}

func (s *jinaSearcher) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	resp, err := s.client.Search(ctx, query)
	if err != nil {
		var se *jina.StatusError
		if errors.As(err, &se) {
			return nil, classifyStatus(se.StatusCode, err)
		}
		return nil, err
	}
	out := make([]SearchResult, 0, len(resp.Data))
	for _, r := range resp.Data {
		if topK > 0 && len(out) >= topK {
			break
		}
		snippet := r.Description
		if snippet == "" {
			snippet = r.Content
		}
		out = append(out, SearchResult{Title: r.Title, URL: r.URL, Snippet: snippet})
	}
	return out, nil
}

type gatewaySummarizer struct {
	client    llm.Client
	model     string
	maxTokens int
}

// NewGatewaySummarizer adapts an OpenAI-compatible gateway client.
func NewGatewaySummarizer(c llm.Client, model string, maxTokens int) Summarizer {
	return &gatewaySummarizer{client: c, model: model, maxTokens: maxTokens}
}

func (s *gatewaySummarizer) Complete(ctx context.Context, system, user string) (string, error) {
	temp := 0.0
	req := llm.ChatCompletionRequest{
		Model: s.model,
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: &temp,
	}
	if s.maxTokens > 0 {
		req.MaxTokens = &s.maxTokens
	}

	resp, err := s.client.ChatCompletion(ctx, req)
	if err != nil {
		var apiErr *llm.APIError
		if errors.As(err, &apiErr) {
			return "", classifyStatus(apiErr.StatusCode, err)
		}
		return "", err
	}

	text, err := resp.Text()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", eris.New("llm: empty answer")
	}
	return text, nil
}

type anthropicSummarizer struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropicSummarizer adapts the Anthropic Messages client.
func NewAnthropicSummarizer(c anthropic.Client, model string, maxTokens int) Summarizer {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &anthropicSummarizer{client: c, model: model, maxTokens: maxTokens}
}

func (s *anthropicSummarizer) Complete(ctx context.Context, system, user string) (string, error) {
	temp := 0.0
	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       s.model,
		MaxTokens:   int64(s.maxTokens),
		System:      system,
		Messages:    []anthropic.Message{{Role: "user", Content: user}},
		Temperature: &temp,
	})
	if err != nil {
		if code := anthropic.StatusCode(err); code != 0 && code != http.StatusOK {
			return "", classifyStatus(code, err)
		}
		return "", err
	}

	resp.Usage.LogCost(s.model, firstLine(user))

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", eris.New("anthropic: empty answer")
	}
	return text, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
