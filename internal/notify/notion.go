// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pdiddy/arxiv-notifier/internal/httputil"
	"github.com/pdiddy/arxiv-notifier/pkg/types"
)

// notionAPIBase is the Notion REST root. Declared as a var so tests can
// substitute an httptest server.
var notionAPIBase = "https://api.notion.com/v1"

const (
	notionVersion      = "2022-06-28"
	notionTextLimit    = 2000
	notionMaxAuthors   = 10
	notionMaxTags      = 5
	notionRequestsPerS = 3
)

// DefaultSummaryProperty names the database column that holds the
// generated summary when none is configured.
const DefaultSummaryProperty = "Japanese Summary"

// baseProperties is the database schema every page relies on, apart from
// the configurable summary column.
var baseProperties = map[string]string{
	"Title":             "title",
	"Authors":           "rich_text",
	"Abstract":          "rich_text",
	"Project Relevance": "rich_text",
	"Categories":        "multi_select",
	"Published Date":    "date",
	"Updated Date":      "date",
	"arXiv ID":          "rich_text",
	"arXiv URL":         "url",
	"PDF URL":           "url",
}

// Notion adds one page per paper to a Notion database.
type Notion struct {
	apiKey     string
	databaseID string
	client     *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger

	summaryProperty string
	ensured         bool
}

// NewNotion builds a Notion sink limited to three requests per second.
func NewNotion(cfg types.NotionConfig, httpCfg types.HTTPConfig, log zerolog.Logger) *Notion {
	summary := cfg.SummaryProperty
	if summary == "" {
		summary = DefaultSummaryProperty
	}
	return &Notion{
		apiKey:          cfg.APIKey,
		databaseID:      cfg.DatabaseID,
		client:          &http.Client{Timeout: httpCfg.Timeout},
		limiter:         rate.NewLimiter(rate.Limit(notionRequestsPerS), 1),
		log:             log.With().Str("component", "notion").Logger(),
		summaryProperty: summary,
	}
}

// Name identifies the sink.
func (n *Notion) Name() string { return "notion" }

// AddPaper creates a database page for p. The first call also adds any
// missing database properties.
func (n *Notion) AddPaper(ctx context.Context, p types.Paper, a types.Annotations) error {
	if !n.ensured {
		if err := n.ensureProperties(ctx); err != nil {
			return fmt.Errorf("ensuring Notion database properties: %w", err)
		}
		n.ensured = true
	}

	page := map[string]any{
		"parent":     map[string]string{"database_id": n.databaseID},
		"properties": pageProperties(p, a, n.summaryProperty),
	}
	if err := n.do(ctx, http.MethodPost, "/pages", page, nil); err != nil {
		return fmt.Errorf("adding %s to Notion: %w", p.ID, err)
	}
	n.log.Info().Str("paper", p.ID).Str("title", p.Title).Msg("added paper")
	return nil
}

// Ping retrieves the database to verify the key and database id.
func (n *Notion) Ping(ctx context.Context) error {
	return n.do(ctx, http.MethodGet, "/databases/"+n.databaseID, nil, nil)
}

type notionDatabase struct {
	Properties map[string]json.RawMessage `json:"properties"`
}

// requiredProperties returns the full schema including the summary column.
func (n *Notion) requiredProperties() map[string]string {
	props := make(map[string]string, len(baseProperties)+1)
	for name, kind := range baseProperties {
		props[name] = kind
	}
	props[n.summaryProperty] = "rich_text"
	return props
}

func (n *Notion) ensureProperties(ctx context.Context) error {
	var db notionDatabase
	if err := n.do(ctx, http.MethodGet, "/databases/"+n.databaseID, nil, &db); err != nil {
		return err
	}

	missing := make(map[string]any)
	for name, kind := range n.requiredProperties() {
		if _, ok := db.Properties[name]; ok {
			continue
		}
		missing[name] = map[string]any{kind: map[string]any{}}
	}
	if len(missing) == 0 {
		n.log.Debug().Msg("all required properties exist")
		return nil
	}

	names := make([]string, 0, len(missing))
	for name := range missing {
		names = append(names, name)
	}
	sort.Strings(names)
	n.log.Info().Strs("properties", names).Msg("adding missing database properties")

	return n.do(ctx, http.MethodPatch, "/databases/"+n.databaseID, map[string]any{"properties": missing}, nil)
}

func (n *Notion) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshalling request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, notionAPIBase+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+n.apiKey)
	req.Header.Set("Notion-Version", notionVersion)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httputil.DoWithRetry(ctx, n.client, req, 0, n.log)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func richText(s string) map[string]any {
	if r := []rune(s); len(r) > notionTextLimit {
		s = string(r[:notionTextLimit-3]) + "..."
	}
	return map[string]any{"rich_text": []any{map[string]any{"text": map[string]string{"content": s}}}}
}

func pageProperties(p types.Paper, a types.Annotations, summaryProperty string) map[string]any {
	tags := make([]map[string]string, 0, notionMaxTags)
	for i, c := range p.Categories {
		if i == notionMaxTags {
			break
		}
		tags = append(tags, map[string]string{"name": c})
	}

	props := map[string]any{
		"Title": map[string]any{
			"title": []any{map[string]any{"text": map[string]string{"content": p.Title}}},
		},
		"Authors":        richText(p.FormattedAuthors(notionMaxAuthors)),
		"Abstract":       richText(p.Abstract),
		"Categories":     map[string]any{"multi_select": tags},
		"Published Date": map[string]any{"date": map[string]string{"start": p.PublishedAt.UTC().Format(time.RFC3339)}},
		"Updated Date":   map[string]any{"date": map[string]string{"start": p.UpdatedAt.UTC().Format(time.RFC3339)}},
		"arXiv ID":       richText(p.ID),
		"arXiv URL":      map[string]string{"url": p.DetailURL},
		"PDF URL":        map[string]string{"url": p.PDFURL},
	}
	if a.Summary != "" {
		props[summaryProperty] = richText(a.Summary)
	}
	if a.Relevance != "" {
		props["Project Relevance"] = richText(a.Relevance)
	}
	return props
}
