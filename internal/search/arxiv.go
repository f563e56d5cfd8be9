// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search fetches recent papers from the arXiv API. It builds the
// search_query expression from keywords, categories and a date window,
// pages through results and normalizes Atom entries into types.Paper.
package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/arxiv-notifier/internal/httputil"
	"github.com/pdiddy/arxiv-notifier/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// RateLimitDelay is the pause after every successful API call. Tests set
// it to zero.
var RateLimitDelay = 3 * time.Second

// MaxTotalResults caps the number of papers collected by GetRecent.
const MaxTotalResults = 500

const defaultPageSize = 50

// SearchParams describes one page request.
type SearchParams struct {
	Keywords   []string
	Categories []string
	Since      time.Time
	MaxResults int
	Start      int
}

// Client queries the arXiv API.
type Client struct {
	HTTP      *http.Client
	UserAgent string
	Operator  Operator
	PageSize  int
	Attempts  int
	Log       zerolog.Logger

	// Retry decides which HTTP statuses are retried; nil means
	// httputil.RetryAnyStatus.
	Retry httputil.RetryPolicy

	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

// NewClient builds a Client from the shared HTTP settings and the arXiv
// search settings.
func NewClient(httpCfg types.HTTPConfig, cfg types.ArxivConfig, log zerolog.Logger) (*Client, error) {
	op, err := ParseOperator(cfg.KeywordOperator)
	if err != nil {
		return nil, err
	}
	return &Client{
		HTTP:      &http.Client{Timeout: httpCfg.Timeout},
		UserAgent: httpCfg.UserAgent,
		Operator:  op,
		PageSize:  cfg.MaxResults,
		Log:       log.With().Str("component", "arxiv").Logger(),
	}, nil
}

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Search fetches one page. Transport and HTTP failures are retried; when
// retries are exhausted the error is logged and an empty page is returned.
func (c *Client) Search(ctx context.Context, p SearchParams) []types.Paper {
	papers, err := c.SearchPage(ctx, p)
	if err != nil {
		c.Log.Error().Err(err).Int("start", p.Start).Msg("arXiv search failed")
		return nil
	}
	return papers
}

// SearchPage fetches one page and returns any failure to the caller.
func (c *Client) SearchPage(ctx context.Context, p SearchParams) ([]types.Paper, error) {
	maxResults := p.MaxResults
	if maxResults <= 0 {
		maxResults = defaultPageSize
	}

	query := BuildQuery(Query{
		Keywords:   p.Keywords,
		Operator:   c.Operator,
		Categories: p.Categories,
		Since:      p.Since,
	}, c.now())

	v := url.Values{}
	v.Set("search_query", query)
	v.Set("start", strconv.Itoa(p.Start))
	v.Set("max_results", strconv.Itoa(maxResults))
	v.Set("sortBy", "submittedDate")
	v.Set("sortOrder", "descending")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arxivAPIBase+"?"+v.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	c.Log.Debug().Str("query", query).Int("start", p.Start).Int("max_results", maxResults).Msg("querying arXiv")

	retry := c.Retry
	if retry == nil {
		retry = httputil.RetryAnyStatus
	}
	resp, err := httputil.DoWithRetryPolicy(ctx, c.HTTP, req, c.Attempts, retry, c.Log)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	papers, err := ParseFeed(resp.Body, c.Log)
	if err != nil {
		return nil, err
	}
	c.Log.Info().Int("count", len(papers)).Msg("found papers")

	// A cancelled wait still returns the page already fetched.
	_ = sleep(ctx, RateLimitDelay)
	return papers, nil
}

// Ping runs a one-result query to verify the API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.SearchPage(ctx, SearchParams{Keywords: []string{"test"}, MaxResults: 1})
	return err
}

// GetRecent collects papers submitted or updated within the last daysBack
// days. It pages while pages come back full and stops at MaxTotalResults.
func (c *Client) GetRecent(ctx context.Context, daysBack int, keywords, categories []string) []types.Paper {
	pageSize := c.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	since := c.now().UTC().AddDate(0, 0, -daysBack)

	var all []types.Paper
	for start := 0; ; start += pageSize {
		page := c.Search(ctx, SearchParams{
			Keywords:   keywords,
			Categories: categories,
			Since:      since,
			MaxResults: pageSize,
			Start:      start,
		})
		if len(page) == 0 {
			break
		}
		all = append(all, page...)

		if len(page) < pageSize {
			break
		}
		if len(all) >= MaxTotalResults {
			c.Log.Warn().Int("limit", MaxTotalResults).Msg("reached maximum paper limit, truncating")
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	filtered := all[:0]
	for _, p := range all {
		if !p.PublishedAt.Before(since) || !p.UpdatedAt.Before(since) {
			filtered = append(filtered, p)
		}
	}
	c.Log.Info().Int("count", len(filtered)).Int("days_back", daysBack).Msg("retrieved recent papers")
	return filtered
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
