// Package duckduckgo performs keyless web searches against the DuckDuckGo
// HTML endpoint.
package duckduckgo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL   = "https://html.duckduckgo.com"
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Client searches the web.
type Client interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Result is a single organic search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// StatusError is returned for unexpected HTTP status codes.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("duckduckgo: unexpected status %d", e.StatusCode)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the search host (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a DuckDuckGo HTML search client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search returns up to limit results for query. Sponsored results are
// skipped. A limit <= 0 returns every result on the first page.
func (c *httpClient) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	form := url.Values{"q": {query}, "kl": {"br-pt"}}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/html/?"+form.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "duckduckgo: create request")
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "duckduckgo: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "duckduckgo: parse html")
	}

	return parseResults(doc, limit), nil
}

func parseResults(doc *goquery.Document, limit int) []Result {
	var results []Result
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("result--ad") {
			return true
		}

		link := s.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		target := resolveLink(href)
		if target == "" {
			return true
		}

		results = append(results, Result{
			Title:   collapse(link.Text()),
			URL:     target,
			Snippet: collapse(s.Find(".result__snippet").First().Text()),
		})
		return limit <= 0 || len(results) < limit
	})
	return results
}

// resolveLink unwraps DuckDuckGo redirect links ("//duckduckgo.com/l/?uddg=...").
func resolveLink(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		return href
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
