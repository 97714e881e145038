// Package research verifies the licensing requirement of a single software
// entry by combining a web search with a language model.
package research

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/carloslaurellineves/websearch-agent/internal/model"
	"github.com/carloslaurellineves/websearch-agent/internal/resilience"
)

var (
	// ErrResearch is the cause recorded when a record could not be researched.
	ErrResearch = eris.New("research: failed")
	// ErrResearchTimeout is the cause recorded when the last attempt of a
	// step ran past the per-request timeout.
	ErrResearchTimeout = eris.New("research: timed out")
)

// ErrorPrefix starts the summary of every failed verdict.
const ErrorPrefix = "Erro na pesquisa: "

const (
	defaultTopK    = 5
	defaultTimeout = 60 * time.Second
)

// Agent researches software records one at a time.
type Agent struct {
	searcher   Searcher
	summarizer Summarizer
	retry      resilience.RetryConfig
	timeout    time.Duration
	topK       int
	now        func() time.Time
}

// Option configures an Agent.
type Option func(*Agent)

// WithRetry replaces the retry policy applied to each step.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(a *Agent) { a.retry = cfg }
}

// WithTimeout sets the deadline of a single search or model attempt.
func WithTimeout(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithTopK sets how many search results reach the prompt.
func WithTopK(k int) Option {
	return func(a *Agent) {
		if k > 0 {
			a.topK = k
		}
	}
}

// WithClock overrides the time source used for SearchedAt.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// NewAgent creates an Agent that tries each step up to maxRetries times.
func NewAgent(s Searcher, m Summarizer, maxRetries int, opts ...Option) *Agent {
	a := &Agent{
		searcher:   s,
		summarizer: m,
		retry:      resilience.WithAttempts(maxRetries),
		timeout:    defaultTimeout,
		topK:       defaultTopK,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Research returns the verdict for rec. It never fails: search, model and
// parsing problems, and panics, all become a verdict with StatusError.
func (a *Agent) Research(ctx context.Context, rec model.SoftwareRecord) (v model.LicenseVerdict) {
	startedAt := a.now()
	log := zap.L().With(
		zap.String("software", rec.Name),
		zap.String("version", rec.Version),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("research: recovered from panic", zap.Any("panic", r))
			v = model.ErrorVerdict(rec, startedAt, ErrorPrefix+fmt.Sprintf("panic: %v", r))
		}
	}()

	query := BuildQuery(rec)
	log.Debug("research: searching", zap.String("query", query))

	results, err := resilience.DoVal(ctx, a.stepRetry("search"), func(ctx context.Context) ([]SearchResult, error) {
		actx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		return a.searcher.Search(actx, query, a.topK)
	})
	if err != nil {
		return a.fail(log, rec, startedAt, "search", err)
	}

	prompt := BuildUserPrompt(rec, results)
	raw, err := resilience.DoVal(ctx, a.stepRetry("llm"), func(ctx context.Context) (string, error) {
		actx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		answer, err := a.summarizer.Complete(actx, SystemPrompt, prompt)
		if err == nil && nullAnswer(answer) {
			return "", eris.New("llm: null answer")
		}
		return answer, err
	})
	if err != nil {
		return a.fail(log, rec, startedAt, "llm", err)
	}

	v = ParseVerdict(raw, rec, startedAt)
	log.Info("research: verdict",
		zap.String("status", v.VerifiedStatus.Label()),
		zap.Int("confidence", v.Confidence),
		zap.Int("results", len(results)),
		zap.Duration("elapsed", a.now().Sub(startedAt)),
	)
	return v
}

func (a *Agent) stepRetry(step string) resilience.RetryConfig {
	cfg := a.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("research", step)
	}
	return cfg
}

func (a *Agent) fail(log *zap.Logger, rec model.SoftwareRecord, at time.Time, step string, err error) model.LicenseVerdict {
	cause := Classify(step, err)
	log.Warn("research: failed", zap.String("step", step), zap.Error(cause))
	return model.ErrorVerdict(rec, at, ErrorPrefix+cause.Error())
}

// Classify wraps a step failure in ErrResearchTimeout when it was caused by
// an expired deadline, and in ErrResearch otherwise.
func Classify(step string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return eris.Wrapf(ErrResearchTimeout, "%s: %v", step, err)
	}
	return eris.Wrapf(ErrResearch, "%s: %v", step, err)
}
