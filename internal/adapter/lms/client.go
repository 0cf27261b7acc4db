package lms

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jgivc/lmsexport/internal/common"
	"github.com/jgivc/lmsexport/internal/config"
	"github.com/jgivc/lmsexport/internal/entity"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	apiPrefix = "/api/v1"

	// Error bodies are drained up to this size so the connection can be reused.
	maxDrainSize = 4 << 10
)

// Client talks to one LMS instance on behalf of one caller.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	cfg     *config.LMSConfig
	log     *slog.Logger
}

func NewClient(creds *entity.Credentials, cfg *config.LMSConfig, log *slog.Logger) (*Client, error) {
	if !creds.Valid() {
		return nil, common.ErrMissingCredentials
	}

	base, err := normalizeBaseURL(creds.BaseURL)
	if err != nil {
		return nil, err
	}

	// Only the response headers are bounded; file bodies may take as long as they need.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Timeout

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.Token, TokenType: "Bearer"})

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		base: base,
		http: &http.Client{Transport: &hostAuthTransport{
			host:  base.Host,
			auth:  &oauth2.Transport{Source: ts, Base: transport},
			plain: transport,
		}},
		limiter: rate.NewLimiter(limit, burst),
		cfg:     cfg,
		log:     log.With(slog.String("item", "LMSClient"), slog.String("host", base.Host)),
	}, nil
}

// hostAuthTransport adds the token only to requests for the LMS host. File urls redirect
// to storage hosts that must not see it.
type hostAuthTransport struct {
	host  string
	auth  http.RoundTripper
	plain http.RoundTripper
}

func (t *hostAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if strings.EqualFold(req.URL.Host, t.host) {
		return t.auth.RoundTrip(req)
	}

	return t.plain.RoundTrip(req)
}

func normalizeBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidURL, err)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w %q: must be absolute http(s) url", common.ErrInvalidURL, raw)
	}

	u.Path = strings.TrimRight(u.Path, "/")
	if !strings.HasSuffix(u.Path, apiPrefix) {
		u.Path += apiPrefix
	}

	u.RawQuery = ""
	u.Fragment = ""

	return u, nil
}

func (c *Client) endpoint(q url.Values, segments ...string) string {
	u := *c.base
	for _, s := range segments {
		u.Path += "/" + s
	}

	if q != nil {
		u.RawQuery = q.Encode()
	}

	return u.String()
}

func (c *Client) perPage(q url.Values) url.Values {
	if q == nil {
		q = url.Values{}
	}

	q.Set("per_page", strconv.Itoa(c.cfg.PerPage))

	return q
}

func (c *Client) do(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot get %s: %w", redact(rawURL), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainSize))
		resp.Body.Close()

		c.log.Debug("Upstream error", slog.String("url", redact(rawURL)), slog.Int("status", resp.StatusCode))

		return nil, &common.HTTPError{StatusCode: resp.StatusCode, URL: redact(rawURL)}
	}

	return resp, nil
}

func getOne[T any](ctx context.Context, c *Client, rawURL string) (*T, error) {
	resp, err := c.do(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	items, err := decodePage[T](resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cannot decode %s: %w", redact(rawURL), err)
	}

	if len(items) != 1 {
		return nil, fmt.Errorf("unexpected response from %s: %d objects", redact(rawURL), len(items))
	}

	return &items[0], nil
}

// Open streams the body of rawURL. The caller must close it.
func (c *Client) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	return resp.Body, nil
}

// redact drops the query string, file urls carry signed verifiers there.
func redact(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}

	return rawURL
}
