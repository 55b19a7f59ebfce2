// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package easynews talks to the Easynews members site: solr-search for
// results and dl-nzb for manifests.
package easynews

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"

	"github.com/autobrr/nzbridge/internal/records"
	"github.com/autobrr/nzbridge/internal/selection"
)

const (
	DefaultBaseURL = "https://members.easynews.com"
	DefaultPerPage = 250

	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) EasynewsClient/1.0"
	acceptHeader     = "application/json, text/javascript, */*; q=0.9"

	searchPath    = "/2.0/search/solr-search/"
	selectionPath = "/2.0/api/dl-nzb"
	homePath      = "/2.0/"

	// loginCheckQuery is a cheap authenticated search used to validate credentials.
	loginCheckQuery = "fly=2&gps=test&sb=1&pno=1&pby=1&u=1&chxu=1&chxgx=1&st=basic&s1=dtime&s1d=-&sS=3&vv=1&fty%5B%5D=VIDEO"

	maxResponseBytes int64 = 64 << 20

	retryAttempts = 6 // first try plus five retries
	retryDelay    = 500 * time.Millisecond
)

// Upstream is what the feed needs from the members site.
type Upstream interface {
	Search(ctx context.Context, query string, opts SearchOptions) (records.RawResultSet, error)
	PostSelection(ctx context.Context, payload selection.Payload) ([]byte, error)
}

// SearchOptions tunes one solr-search call. Zero values use the defaults.
type SearchOptions struct {
	Page      int
	PerPage   int
	SortField string
	SortDir   string
	SafeOff   bool
}

// RelevanceSearch is the option set used for feed searches.
func RelevanceSearch(perPage int) SearchOptions {
	return SearchOptions{Page: 1, PerPage: perPage, SortField: "relevance", SortDir: "-"}
}

// RequestObserver receives the outcome of every upstream round trip.
type RequestObserver interface {
	ObserveUpstream(op string, statusCode int, elapsed time.Duration)
}

// Config holds connection settings for a Client.
type Config struct {
	BaseURL   string
	Username  string
	Password  string
	Timeout   time.Duration
	UserAgent string
	Observer  RequestObserver

	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	username   string
	password   string
	userAgent  string
	httpClient *http.Client
	observer   RequestObserver
	log        zerolog.Logger

	retryDelay time.Duration
}

// NewClient builds a client with its own cookie jar.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		username:  cfg.Username,
		password:  cfg.Password,
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Jar:       jar,
			Transport: cfg.Transport,
		},
		observer:   cfg.Observer,
		log:        log.With().Str("module", "easynews").Logger(),
		retryDelay: retryDelay,
	}, nil
}

// Login primes the session cookies and validates the credentials with a cheap
// search. It returns ErrUnauthorized when the upstream answers 401 or 403.
func (c *Client) Login(ctx context.Context) error {
	if _, err := c.get(ctx, "home", c.baseURL+homePath); err != nil && !isStatus(err) {
		return fmt.Errorf("prime session: %w", err)
	}

	_, err := c.get(ctx, "login", c.baseURL+searchPath+"?"+loginCheckQuery)
	if err == nil {
		return nil
	}
	if upErr, ok := asUpstreamError(err); ok {
		if upErr.Unauthorized() {
			return fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		// Other client errors do not say anything about the credentials.
		if upErr.StatusCode < http.StatusInternalServerError {
			return nil
		}
	}
	return err
}

// Search runs a VIDEO-only solr-search query and decodes the result set.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) (records.RawResultSet, error) {
	body, err := c.get(ctx, "search", c.baseURL+searchPath+"?"+searchQuery(query, opts))
	if err != nil {
		return records.RawResultSet{}, err
	}

	set, err := records.DecodeResultSet(body)
	if err != nil {
		return records.RawResultSet{}, fmt.Errorf("easynews search: %w", err)
	}

	c.log.Debug().Str("query", query).Int("records", len(set.Records)).Msg("search completed")
	return set, nil
}

// PostSelection submits the selection form and returns the manifest bytes as
// received. POSTs are never retried.
func (c *Client) PostSelection(ctx context.Context, payload selection.Payload) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+selectionPath, strings.NewReader(payload.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build selection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req, "selection")
}

func (c *Client) get(ctx context.Context, op, rawURL string) ([]byte, error) {
	var body []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
			if err != nil {
				return fmt.Errorf("build %s request: %w", op, err)
			}
			b, err := c.do(req, op)
			if err != nil {
				return err
			}
			body = b
			return nil
		},
		retry.Context(ctx),
		retry.RetryIf(isRetryable),
		retry.Attempts(retryAttempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.log.Debug().Err(err).Str("op", op).Uint("attempt", n+1).Msg("retrying upstream request")
		}),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", acceptHeader)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(op, 0, start)
		return nil, fmt.Errorf("easynews %s request failed: %w", op, err)
	}
	defer resp.Body.Close()
	c.observe(op, resp.StatusCode, start)

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Op: op}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read easynews %s body: %w", op, err)
	}
	if int64(len(data)) > maxResponseBytes {
		return nil, fmt.Errorf("easynews %s response exceeded %d bytes", op, maxResponseBytes)
	}
	return data, nil
}

func (c *Client) observe(op string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveUpstream(op, status, time.Since(start))
	}
}

// searchQuery builds the solr-search query string in the order the members
// site sends it. fty[] is always VIDEO.
func searchQuery(query string, opts SearchOptions) string {
	if opts.Page <= 0 {
		opts.Page = 1
	}
	if opts.PerPage <= 0 {
		opts.PerPage = DefaultPerPage
	}
	safeOff := "0"
	if opts.SafeOff {
		safeOff = "1"
	}

	params := [][2]string{
		{"fly", "2"},
		{"sb", "1"},
		{"pno", strconv.Itoa(opts.Page)},
		{"pby", strconv.Itoa(opts.PerPage)},
		{"u", "1"},
		{"chxu", "1"},
		{"chxgx", "1"},
		{"st", "basic"},
		{"gps", query},
		{"vv", "1"},
		{"safeO", safeOff},
	}
	if opts.SortField != "" {
		dir := opts.SortDir
		if dir == "" {
			dir = "-"
		}
		params = append(params, [2]string{"s1", opts.SortField}, [2]string{"s1d", dir})
	}

	var b strings.Builder
	for _, kv := range params {
		b.WriteString(kv[0])
		b.WriteByte('=')
		b.WriteString(escape(kv[1]))
		b.WriteByte('&')
	}
	b.WriteString("fty%5B%5D=VIDEO")
	return b.String()
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func asUpstreamError(err error) (*UpstreamError, bool) {
	var upErr *UpstreamError
	ok := errors.As(err, &upErr)
	return upErr, ok
}

func isStatus(err error) bool {
	_, ok := asUpstreamError(err)
	return ok
}
