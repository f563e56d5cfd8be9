// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package notify delivers papers to external sinks: a Slack incoming
// webhook (chat) and a Notion database (document store). Each client
// carries its own rate limiter and uses the shared retry policy.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pdiddy/arxiv-notifier/internal/httputil"
	"github.com/pdiddy/arxiv-notifier/pkg/types"
)

const (
	slackAbstractLimit = 500
	slackHeaderLimit   = 150
	slackAuthorsShown  = 3

	// PingText is posted by the connection test.
	PingText = "🔧 arXiv Notifier connection test successful!"
)

type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type slackElement struct {
	Type  string    `json:"type"`
	Text  slackText `json:"text"`
	URL   string    `json:"url,omitempty"`
	Style string    `json:"style,omitempty"`
}

type slackBlock struct {
	Type     string         `json:"type"`
	Text     *slackText     `json:"text,omitempty"`
	Fields   []slackText    `json:"fields,omitempty"`
	Elements []slackElement `json:"elements,omitempty"`
}

type slackPayload struct {
	Text      string       `json:"text,omitempty"`
	Blocks    []slackBlock `json:"blocks,omitempty"`
	Channel   string       `json:"channel,omitempty"`
	Username  string       `json:"username,omitempty"`
	IconEmoji string       `json:"icon_emoji,omitempty"`
}

// Slack posts Block Kit messages to an incoming webhook.
type Slack struct {
	webhookURL string
	channel    string
	username   string
	iconEmoji  string
	client     *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewSlack builds a Slack sink limited to one request per second.
func NewSlack(cfg types.SlackConfig, httpCfg types.HTTPConfig, log zerolog.Logger) *Slack {
	return &Slack{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		username:   cfg.Username,
		iconEmoji:  cfg.IconEmoji,
		client:     &http.Client{Timeout: httpCfg.Timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		log:        log.With().Str("component", "slack").Logger(),
	}
}

// Name identifies the sink.
func (s *Slack) Name() string { return "slack" }

// PostPaper posts one paper message. Empty annotations are omitted.
func (s *Slack) PostPaper(ctx context.Context, p types.Paper, a types.Annotations) error {
	if err := s.send(ctx, s.envelope(slackPayload{Blocks: paperBlocks(p, a)})); err != nil {
		return fmt.Errorf("posting %s to Slack: %w", p.ID, err)
	}
	s.log.Info().Str("paper", p.ID).Str("title", p.Title).Msg("posted paper")
	return nil
}

// PostSummary posts the cycle overview with per-category counts. It is a
// no-op for an empty batch.
func (s *Slack) PostSummary(ctx context.Context, papers []types.Paper) error {
	if len(papers) == 0 {
		return nil
	}
	if err := s.send(ctx, s.envelope(slackPayload{Blocks: []slackBlock{
		{Type: "section", Text: &slackText{Type: "mrkdwn", Text: SummaryText(papers)}},
		{Type: "divider"},
	}})); err != nil {
		return fmt.Errorf("posting summary to Slack: %w", err)
	}
	s.log.Info().Int("papers", len(papers)).Msg("posted summary")
	return nil
}

// Ping posts a short test message.
func (s *Slack) Ping(ctx context.Context) error {
	return s.send(ctx, s.envelope(slackPayload{Text: PingText}))
}

func (s *Slack) envelope(p slackPayload) slackPayload {
	p.Channel = s.channel
	p.Username = s.username
	p.IconEmoji = s.iconEmoji
	return p
}

func (s *Slack) send(ctx context.Context, payload slackPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling payload: %w", err)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httputil.DoWithRetry(ctx, s.client, req, 0, s.log)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// SummaryText renders the overview message: total count and primary
// category counts, largest first.
func SummaryText(papers []types.Paper) string {
	counts := make(map[string]int)
	for _, p := range papers {
		counts[p.PrimaryCategory()]++
	}
	cats := make([]string, 0, len(counts))
	for c := range counts {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool {
		if counts[cats[i]] != counts[cats[j]] {
			return counts[cats[i]] > counts[cats[j]]
		}
		return cats[i] < cats[j]
	})

	var b strings.Builder
	b.WriteString("📊 *Today's arXiv Summary*\n")
	fmt.Fprintf(&b, "Found *%d* new papers\n\n", len(papers))
	b.WriteString("*By Category:*\n")
	for _, c := range cats {
		fmt.Fprintf(&b, "• %s: %d papers\n", c, counts[c])
	}
	return b.String()
}

func paperBlocks(p types.Paper, a types.Annotations) []slackBlock {
	abstract := p.Abstract
	if r := []rune(abstract); len(r) > slackAbstractLimit {
		abstract = string(r[:slackAbstractLimit]) + "..."
	}

	title := "📄 " + p.Title
	if r := []rune(title); len(r) > slackHeaderLimit {
		title = string(r[:slackHeaderLimit-3]) + "..."
	}

	blocks := []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: title, Emoji: true}},
		{Type: "section", Fields: []slackText{
			{Type: "mrkdwn", Text: "*Authors:*\n" + p.FormattedAuthors(slackAuthorsShown)},
			{Type: "mrkdwn", Text: "*Category:*\n" + p.PrimaryCategory()},
		}},
		{Type: "section", Text: &slackText{Type: "mrkdwn", Text: "*Abstract:*\n" + abstract}},
	}
	if a.Summary != "" {
		blocks = append(blocks, slackBlock{Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: "*Summary:*\n" + a.Summary}})
	}
	if a.Relevance != "" {
		blocks = append(blocks, slackBlock{Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: "*Project Relevance:*\n" + a.Relevance}})
	}
	blocks = append(blocks,
		slackBlock{Type: "section", Fields: []slackText{
			{Type: "mrkdwn", Text: "*Published:*\n" + p.PublishedAt.UTC().Format("2006-01-02")},
			{Type: "mrkdwn", Text: "*arXiv ID:*\n" + p.ID},
		}},
		slackBlock{Type: "actions", Elements: []slackElement{
			{Type: "button", Text: slackText{Type: "plain_text", Text: "View on arXiv", Emoji: true}, URL: p.DetailURL, Style: "primary"},
			{Type: "button", Text: slackText{Type: "plain_text", Text: "Download PDF", Emoji: true}, URL: p.PDFURL},
		}},
		slackBlock{Type: "divider"},
	)
	return blocks
}
