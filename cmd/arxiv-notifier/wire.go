// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pdiddy/arxiv-notifier/internal/annotate"
	"github.com/pdiddy/arxiv-notifier/internal/config"
	"github.com/pdiddy/arxiv-notifier/internal/ledger"
	"github.com/pdiddy/arxiv-notifier/internal/notify"
	"github.com/pdiddy/arxiv-notifier/internal/observability"
	"github.com/pdiddy/arxiv-notifier/internal/pipeline"
	"github.com/pdiddy/arxiv-notifier/internal/search"
	"github.com/pdiddy/arxiv-notifier/pkg/types"
)

// app holds the collaborators built from one configuration.
type app struct {
	store   *ledger.Store
	proc    *pipeline.Processor
	metrics *observability.Metrics
}

// buildApp constructs every client once and injects them into the
// processor. Sinks and annotators that are not configured stay nil.
func buildApp(cfg types.Config, log zerolog.Logger) (*app, error) {
	store, err := ledger.Open(cfg.Database.Path, log)
	if err != nil {
		return nil, err
	}

	fetcher, err := search.NewClient(cfg.HTTP, cfg.Arxiv, log)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("building arXiv client: %w", err)
	}

	deps := pipeline.Deps{
		Store:   store,
		Fetcher: fetcher,
		Metrics: observability.NewMetrics(),
	}
	if cfg.Slack.Enabled() {
		deps.Chat = notify.NewSlack(cfg.Slack, cfg.HTTP, log)
	} else {
		log.Info().Msg("slack webhook not configured; chat delivery disabled")
	}
	if cfg.Notion.Enabled() {
		deps.Docs = notify.NewNotion(cfg.Notion, cfg.HTTP, log)
	} else {
		log.Info().Msg("notion credentials not configured; document delivery disabled")
	}

	if cfg.AI.APIKey != "" {
		llm := annotate.NewOpenAIClient(cfg.AI, cfg.HTTP.Timeout, log)
		deps.Summarizer = annotate.NewSummarizer(llm, cfg.AI.SummaryLanguage, log)
		if config.RelevanceActive(cfg) {
			rel, err := annotate.NewRelevance(llm, cfg.Relevance.OverviewFile, cfg.AI.SummaryLanguage, log)
			if err != nil {
				log.Warn().Err(err).Msg("project relevance disabled")
			} else {
				deps.Relevance = rel
			}
		}
	}

	proc, err := pipeline.New(deps, pipeline.Options{
		DaysBack:    cfg.Arxiv.DaysBack,
		Keywords:    cfg.Arxiv.Keywords,
		Categories:  cfg.Arxiv.Categories,
		CleanupDays: cfg.Database.CleanupDays,
	}, log)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{store: store, proc: proc, metrics: deps.Metrics}, nil
}

// Close releases the ledger database.
func (a *app) Close() error {
	return a.store.Close()
}
