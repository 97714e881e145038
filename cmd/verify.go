package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/carloslaurellineves/websearch-agent/internal/config"
	"github.com/carloslaurellineves/websearch-agent/internal/pipeline"
	"github.com/carloslaurellineves/websearch-agent/internal/research"
	"github.com/carloslaurellineves/websearch-agent/internal/resilience"
	"github.com/carloslaurellineves/websearch-agent/internal/sharepoint"
	"github.com/carloslaurellineves/websearch-agent/internal/sheet"
	"github.com/carloslaurellineves/websearch-agent/pkg/anthropic"
	"github.com/carloslaurellineves/websearch-agent/pkg/duckduckgo"
	"github.com/carloslaurellineves/websearch-agent/pkg/jina"
	"github.com/carloslaurellineves/websearch-agent/pkg/llm"
)

const defaultAnthropicModel = "claude-haiku-4-5-20251001"

func runVerification(ctx context.Context, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	st, err := initStore(ctx)
	if err != nil {
		zap.L().Warn("history store unavailable, continuing without it", zap.Error(err))
		st = nil
	}
	if st != nil {
		defer st.Close() //nolint:errcheck
	}

	agent, err := buildAgent(cfg)
	if err != nil {
		return err
	}

	spClient := sharepoint.NewClient(cfg.SharePoint,
		sharepoint.WithRetry(retryPolicy(cfg)),
		sharepoint.WithTimeout(cfg.Timeout()),
	)

	p := pipeline.New(cfg, spClient, agent, sheet.NewWriter(cfg.ConfidenceThreshold),
		pipeline.WithStore(st),
	)

	res, err := p.Run(ctx)
	if res != nil {
		printSummary(out, res)
	}
	return err
}

func buildAgent(c *config.Config) (*research.Agent, error) {
	searcher, err := buildSearcher(c)
	if err != nil {
		return nil, err
	}
	summarizer, err := buildSummarizer(c)
	if err != nil {
		return nil, err
	}
	return research.NewAgent(searcher, summarizer, c.MaxRetries,
		research.WithRetry(retryPolicy(c)),
		research.WithTimeout(c.Timeout()),
		research.WithTopK(c.Search.TopK),
	), nil
}

func buildSearcher(c *config.Config) (research.Searcher, error) {
	switch c.Search.Provider {
	case config.SearchDuckDuckGo:
		var opts []duckduckgo.Option
		if c.Search.BaseURL != "" {
			opts = append(opts, duckduckgo.WithBaseURL(c.Search.BaseURL))
		}
		return research.NewDuckDuckGoSearcher(duckduckgo.NewClient(opts...)), nil
	case config.SearchJina:
		var opts []jina.Option
		if c.Search.BaseURL != "" {
			opts = append(opts, jina.WithSearchBaseURL(c.Search.BaseURL))
		}
		return research.NewJinaSearcher(jina.NewClient(c.Search.JinaKey, opts...)), nil
	default:
		return nil, eris.Errorf("unknown search provider %q", c.Search.Provider)
	}
}

func buildSummarizer(c *config.Config) (research.Summarizer, error) {
	switch c.LLM.Provider {
	case config.ProviderGateway:
		client := llm.NewClient(c.LLM.BaseURL, c.LLM.APIKey, llm.WithModel(c.LLM.Model))
		return research.NewGatewaySummarizer(client, c.LLM.Model, c.LLM.MaxTokens), nil
	case config.ProviderAnthropic:
		var opts []anthropic.Option
		if c.LLM.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(c.LLM.BaseURL))
		}
		return research.NewAnthropicSummarizer(anthropic.NewClient(c.LLM.AnthropicKey, opts...), anthropicModel(c.LLM.Model), c.LLM.MaxTokens), nil
	default:
		return nil, eris.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
}

// retryPolicy applies MAX_RETRIES to the default 2s, 4s, 8s schedule.
func retryPolicy(c *config.Config) resilience.RetryConfig {
	return resilience.WithAttempts(c.MaxRetries)
}

// anthropicModel falls back to Haiku when LLM_MODEL still names a gateway model.
func anthropicModel(m string) string {
	if strings.HasPrefix(m, "claude-") {
		return m
	}
	return defaultAnthropicModel
}

func printSummary(out io.Writer, res *pipeline.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", res.State)
	if res.RunID != "" {
		_, _ = fmt.Fprintf(w, "Run:\t%s\n", res.RunID)
	}
	_, _ = fmt.Fprintf(w, "Total:\t%d\n", res.Stats.Total)
	_, _ = fmt.Fprintf(w, "Processed:\t%d\n", res.Stats.Processed)
	_, _ = fmt.Fprintf(w, "Sim:\t%d\n", res.Stats.Yes)
	_, _ = fmt.Fprintf(w, "Não:\t%d\n", res.Stats.No)
	_, _ = fmt.Fprintf(w, "Erro:\t%d\n", res.Stats.Errors)
	_, _ = fmt.Fprintf(w, "Confidence high/medium/low:\t%d/%d/%d\n", res.Stats.High, res.Stats.Medium, res.Stats.Low)
	_, _ = fmt.Fprintf(w, "Elapsed:\t%s\n", res.Elapsed.Round(time.Second))
	if res.State == pipeline.StateDone {
		_, _ = fmt.Fprintf(w, "Output:\t%s\n", res.OutputPath)
	}
	_ = w.Flush()
}
