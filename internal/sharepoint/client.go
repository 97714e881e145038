// Package sharepoint authenticates against a SharePoint site and downloads
// the inventory workbook from a document library.
package sharepoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/carloslaurellineves/websearch-agent/internal/config"
	"github.com/carloslaurellineves/websearch-agent/internal/resilience"
)

// Sentinel errors. Both are fatal for a run.
var (
	ErrAuthentication = eris.New("sharepoint: authentication failed")
	ErrDownload       = eris.New("sharepoint: download failed")
)

// maxBodyPreview bounds the response text included in error messages.
const maxBodyPreview = 200

// Option configures the SharePoint client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRetry overrides the retry policy for authentication and download.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithTimeout bounds each individual HTTP attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// Client talks to the SharePoint REST API. It must be authenticated before
// downloading; a Client is not safe for concurrent Authenticate calls.
type Client struct {
	cfg     config.SharePointConfig
	http    *http.Client
	retry   resilience.RetryConfig
	timeout time.Duration

	// authed is the client used after a successful Authenticate. For basic
	// auth it is http itself and credentials are set per request.
	authed *http.Client
}

// NewClient creates a SharePoint client for the configured site.
func NewClient(cfg config.SharePointConfig, opts ...Option) *Client {
	c := &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry:   resilience.DefaultRetryConfig(),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticated reports whether Authenticate has succeeded.
func (c *Client) Authenticated() bool {
	return c.authed != nil
}

// Authenticate establishes credentials and probes the site. Every failure,
// rejected credentials included, is retried up to the configured attempts.
func (c *Client) Authenticate(ctx context.Context) error {
	log := zap.L().With(zap.String("site", c.cfg.SiteURL()), zap.String("auth_mode", c.cfg.AuthMode))

	retry := c.retry
	retry.OnRetry = resilience.RetryLogger("sharepoint", "authenticate")
	retry.ShouldRetry = retryAlways

	hc, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*http.Client, error) {
		hc, err := c.credentials(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.probe(ctx, hc); err != nil {
			return nil, err
		}
		return hc, nil
	})
	if err != nil {
		log.Error("sharepoint: authentication failed", zap.Error(err))
		return eris.Wrapf(ErrAuthentication, "%s: %v", c.cfg.SiteURL(), err)
	}

	c.authed = hc
	log.Info("sharepoint: authenticated")
	return nil
}

func retryAlways(error) bool { return true }

// credentials returns the HTTP client that carries the configured identity.
func (c *Client) credentials(ctx context.Context) (*http.Client, error) {
	if c.cfg.AuthMode != config.AuthOAuth2 {
		return c.http, nil
	}

	conf := &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: c.cfg.TokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
	if c.cfg.Scope != "" {
		conf.Scopes = strings.Fields(c.cfg.Scope)
	}

	tctx, cancel := context.WithTimeout(context.WithValue(ctx, oauth2.HTTPClient, c.http), c.timeout)
	defer cancel()

	tok, err := conf.PasswordCredentialsToken(tctx, c.cfg.Username, c.cfg.Password)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && !resilience.IsTransientHTTPStatus(re.Response.StatusCode) {
			return nil, eris.Wrapf(err, "token request rejected (status %d)", re.Response.StatusCode)
		}
		return nil, eris.Wrap(err, "token request")
	}

	// The returned client outlives ctx, so it is bound to a background context.
	base := context.WithValue(context.Background(), oauth2.HTTPClient, c.http)
	return conf.Client(base, tok), nil
}

func (c *Client) probe(ctx context.Context, hc *http.Client) error {
	_, err := c.get(ctx, hc, c.cfg.SiteURL()+"/_api/web")
	return err
}

// Download returns the content of file in the document library lib.
func (c *Client) Download(ctx context.Context, lib, file string) ([]byte, error) {
	if c.authed == nil {
		return nil, eris.Wrap(ErrAuthentication, "download requested before authentication")
	}

	log := zap.L().With(zap.String("library", lib), zap.String("file", file))
	target := FileURL(c.cfg.SiteURL(), lib, file)

	retry := c.retry
	retry.OnRetry = resilience.RetryLogger("sharepoint", "download")

	data, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, c.authed, target)
	})
	if err != nil {
		log.Error("sharepoint: download failed", zap.Error(err))
		return nil, eris.Wrapf(ErrDownload, "%s/%s: %v", lib, file, err)
	}

	log.Info("sharepoint: file downloaded", zap.Int("bytes", len(data)))
	return data, nil
}

// DownloadFile downloads the configured inventory workbook.
func (c *Client) DownloadFile(ctx context.Context) ([]byte, error) {
	return c.Download(ctx, c.cfg.Library, c.cfg.File)
}

// Fetch authenticates and downloads the configured workbook.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	if err := c.Authenticate(ctx); err != nil {
		return nil, err
	}
	return c.DownloadFile(ctx)
}

// get performs one bounded GET. Non-transient HTTP failures are marked
// permanent so the retry loop stops.
func (c *Client) get(ctx context.Context, hc *http.Client, target string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, resilience.Permanent(eris.Wrap(err, "create request"))
	}
	req.Header.Set("Accept", "application/json;odata=verbose")
	if c.cfg.AuthMode != config.AuthOAuth2 {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read response body")
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("unexpected status %d: %s", resp.StatusCode, preview(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, statusErr
		}
		return nil, resilience.Permanent(statusErr)
	}
	return body, nil
}

// FileURL builds the REST URL of a file in the root folder of a library.
func FileURL(siteURL, lib, file string) string {
	return fmt.Sprintf("%s/_api/web/lists/GetByTitle('%s')/RootFolder/Files('%s')/$value",
		strings.TrimRight(siteURL, "/"), odataLiteral(lib), odataLiteral(file))
}

// odataLiteral escapes s for use inside a quoted OData string in a path.
func odataLiteral(s string) string {
	return url.PathEscape(strings.ReplaceAll(s, "'", "''"))
}

func preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxBodyPreview {
		return s[:maxBodyPreview] + "..."
	}
	return s
}
