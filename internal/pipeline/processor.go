// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs one notification cycle: fetch recent papers,
// drop the ones already in the ledger, record the rest, deliver them to
// the chat and document sinks and purge old ledger rows.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/arxiv-notifier/internal/annotate"
	"github.com/pdiddy/arxiv-notifier/internal/ledger"
	"github.com/pdiddy/arxiv-notifier/internal/observability"
	"github.com/pdiddy/arxiv-notifier/pkg/types"
)

// DefaultChatLimit is the number of papers posted individually to chat
// per cycle.
const DefaultChatLimit = 10

// Fetcher returns recent papers. Failures are absorbed by the fetcher and
// surface as a short or empty result.
type Fetcher interface {
	GetRecent(ctx context.Context, daysBack int, keywords, categories []string) []types.Paper
}

// ChatSink posts papers as chat messages.
type ChatSink interface {
	Name() string
	PostSummary(ctx context.Context, papers []types.Paper) error
	PostPaper(ctx context.Context, p types.Paper, a types.Annotations) error
}

// DocSink stores papers as documents.
type DocSink interface {
	Name() string
	AddPaper(ctx context.Context, p types.Paper, a types.Annotations) error
}

// Options controls what a cycle fetches and how long ledger rows live.
type Options struct {
	DaysBack    int
	Keywords    []string
	Categories  []string
	CleanupDays int

	// ChatLimit caps individual chat posts; zero means DefaultChatLimit.
	ChatLimit int
}

// Deps are the collaborators of a Processor. Store and Fetcher are
// required; a nil sink or annotator disables that step.
type Deps struct {
	Store      *ledger.Store
	Fetcher    Fetcher
	Chat       ChatSink
	Docs       DocSink
	Summarizer annotate.Annotator
	Relevance  annotate.Annotator
	Metrics    *observability.Metrics
}

// Processor runs notification cycles.
type Processor struct {
	deps Deps
	opts Options
	log  zerolog.Logger

	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

// New builds a Processor.
func New(deps Deps, opts Options, log zerolog.Logger) (*Processor, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("pipeline: ledger store is required")
	}
	if deps.Fetcher == nil {
		return nil, fmt.Errorf("pipeline: fetcher is required")
	}
	if opts.ChatLimit <= 0 {
		opts.ChatLimit = DefaultChatLimit
	}
	return &Processor{
		deps: deps,
		opts: opts,
		log:  log.With().Str("component", "pipeline").Logger(),
	}, nil
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// RunCycle executes one cycle. Cancelling ctx does not interrupt a cycle
// already in progress.
func (p *Processor) RunCycle(ctx context.Context) types.CycleResult {
	ctx = context.WithoutCancel(ctx)
	start := p.now()

	var res types.CycleResult
	if err := p.runCycle(ctx, &res); err != nil {
		p.log.Error().Err(err).Msg("cycle aborted")
		res.Errors = append(res.Errors, err.Error())
	}

	end := p.now()
	res.Elapsed = end.Sub(start)
	p.deps.Metrics.RecordCycle(res, end)

	p.log.Info().
		Int("fetched", res.Fetched).
		Int("new", res.New).
		Int("chat", res.PostedToChat).
		Int("docs", res.PostedToDocStore).
		Int("purged", res.Purged).
		Float64("elapsed_seconds", res.ElapsedSeconds()).
		Msg("cycle completed")
	if res.HasErrors() {
		p.log.Warn().Strs("errors", res.Errors).Msg("cycle finished with errors")
	}
	return res
}

func (p *Processor) runCycle(ctx context.Context, res *types.CycleResult) error {
	papers := p.deps.Fetcher.GetRecent(ctx, p.opts.DaysBack, p.opts.Keywords, p.opts.Categories)
	res.Fetched = len(papers)
	if len(papers) == 0 {
		p.log.Info().Msg("no papers found")
		return nil
	}

	return p.deps.Store.WithSession(ctx, func(s *ledger.Session) error {
		fresh, err := s.FilterUnprocessed(papers)
		if err != nil {
			return fmt.Errorf("filtering processed papers: %w", err)
		}
		res.New = len(fresh)
		if len(fresh) == 0 {
			p.log.Info().Msg("no new papers to process")
			return nil
		}

		for _, paper := range fresh {
			if _, err := s.Upsert(paper, false, false); err != nil {
				return fmt.Errorf("recording %s: %w", paper.ID, err)
			}
		}
		if err := s.Checkpoint(); err != nil {
			return fmt.Errorf("committing new papers: %w", err)
		}

		notes := newAnnotationCache(p)

		if p.deps.Chat != nil {
			report, err := p.deliverChat(ctx, s, fresh, notes, res)
			if err != nil {
				return err
			}
			res.PostedToChat = len(report.Succeeded())
			if n := len(report.Failed()); n > 0 {
				res.Errors = append(res.Errors, fmt.Sprintf("Failed to post %d papers to Slack", n))
			}
			if err := s.Checkpoint(); err != nil {
				return fmt.Errorf("committing chat status: %w", err)
			}
		}

		if p.deps.Docs != nil {
			report, err := p.deliverDocs(ctx, s, fresh, notes)
			if err != nil {
				return err
			}
			res.PostedToDocStore = len(report.Succeeded())
			if n := len(report.Failed()); n > 0 {
				res.Errors = append(res.Errors, fmt.Sprintf("Failed to add %d papers to Notion", n))
			}
			if err := s.Checkpoint(); err != nil {
				return fmt.Errorf("committing document status: %w", err)
			}
		}
		res.Warnings = append(res.Warnings, notes.warnings...)

		purged, err := s.PurgeOlderThan(p.opts.CleanupDays)
		if err != nil {
			return fmt.Errorf("purging old records: %w", err)
		}
		res.Purged = purged
		if purged > 0 {
			p.log.Info().Int("deleted", purged).Msg("cleaned up old records")
		}
		return nil
	})
}

// deliverChat posts the cycle summary and then up to ChatLimit papers.
// The returned error is a ledger failure; sink failures are per item.
func (p *Processor) deliverChat(ctx context.Context, s *ledger.Session, papers []types.Paper, notes *annotationCache, res *types.CycleResult) (types.DeliveryReport, error) {
	sink := p.deps.Chat
	report := types.DeliveryReport{Sink: sink.Name()}
	log := p.log.With().Str("sink", sink.Name()).Logger()

	log.Info().Int("papers", len(papers)).Msg("posting papers")
	if err := sink.PostSummary(ctx, papers); err != nil {
		log.Warn().Err(err).Msg("summary message failed")
		res.Warnings = append(res.Warnings, fmt.Sprintf("summary message to %s failed: %v", sink.Name(), err))
	}

	batch := papers
	if len(batch) > p.opts.ChatLimit {
		report.Truncated = len(batch) - p.opts.ChatLimit
		batch = batch[:p.opts.ChatLimit]
		log.Warn().Int("limit", p.opts.ChatLimit).Int("total", len(papers)).Msg("limiting individual posts")
	}

	for _, paper := range batch {
		a := notes.get(ctx, paper)
		err := sink.PostPaper(ctx, paper, a)
		report.Items = append(report.Items, types.ItemResult{PaperID: paper.ID, Err: err})
		p.deps.Metrics.RecordDelivery(sink.Name(), err == nil)
		if err != nil {
			log.Error().Err(err).Str("paper", paper.ID).Msg("post failed")
			continue
		}

		update := types.StatusUpdate{PostedToChat: boolPtr(true)}
		if a.Relevance != "" {
			update.RelevanceNote = &a.Relevance
		}
		if _, err := s.UpdateStatus(paper.ID, update); err != nil {
			return report, fmt.Errorf("updating chat status of %s: %w", paper.ID, err)
		}
	}

	log.Info().Int("success", len(report.Succeeded())).Int("failed", len(report.Failed())).Msg("batch posting completed")
	return report, nil
}

// deliverDocs adds every paper to the document sink.
func (p *Processor) deliverDocs(ctx context.Context, s *ledger.Session, papers []types.Paper, notes *annotationCache) (types.DeliveryReport, error) {
	sink := p.deps.Docs
	report := types.DeliveryReport{Sink: sink.Name()}
	log := p.log.With().Str("sink", sink.Name()).Logger()

	log.Info().Int("papers", len(papers)).Msg("adding papers")
	for _, paper := range papers {
		err := sink.AddPaper(ctx, paper, notes.get(ctx, paper))
		report.Items = append(report.Items, types.ItemResult{PaperID: paper.ID, Err: err})
		p.deps.Metrics.RecordDelivery(sink.Name(), err == nil)
		if err != nil {
			log.Error().Err(err).Str("paper", paper.ID).Msg("add failed")
			continue
		}
		if _, err := s.UpdateStatus(paper.ID, types.StatusUpdate{PostedToDocStore: boolPtr(true)}); err != nil {
			return report, fmt.Errorf("updating document status of %s: %w", paper.ID, err)
		}
	}

	log.Info().Int("success", len(report.Succeeded())).Int("failed", len(report.Failed())).Msg("batch adding completed")
	return report, nil
}

func boolPtr(b bool) *bool { return &b }
