// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"strconv"
	"time"

	"github.com/pdiddy/arxiv-notifier/internal/annotate"
	"github.com/pdiddy/arxiv-notifier/internal/ledger"
	"github.com/pdiddy/arxiv-notifier/pkg/types"
)

// Pinger is implemented by collaborators that can verify their
// credentials and endpoint without side effects on user data.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckStatus is the outcome of one connection probe.
type CheckStatus string

const (
	CheckOK      CheckStatus = "ok"
	CheckFailed  CheckStatus = "failed"
	CheckSkipped CheckStatus = "skipped"
)

// Check reports one probed service.
type Check struct {
	Service string
	Status  CheckStatus
	Err     error
	Detail  string
}

// probePaper is annotated to exercise the summarizer and relevance
// annotator.
var probePaper = types.NewPaper("test.00001", "Test Paper for Connection Check",
	"This is a test abstract to verify the connection to the language model service.",
	[]string{"Test Author"}, []string{"cs.AI"},
	time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Time{})

// CheckConnections probes the search source, the ledger, both sinks and
// both annotators in that order. Services that are not configured are
// reported as skipped.
func (p *Processor) CheckConnections(ctx context.Context) []Check {
	var checks []Check

	checks = append(checks, p.ping(ctx, "arxiv", p.deps.Fetcher))

	dbCheck := Check{Service: "database", Status: CheckOK}
	err := p.deps.Store.WithSession(ctx, func(s *ledger.Session) error {
		stats, err := s.Stats()
		if err == nil {
			dbCheck.Detail = strconv.Itoa(stats.Total) + " papers"
		}
		return err
	})
	if err != nil {
		dbCheck.Status, dbCheck.Err = CheckFailed, err
	}
	checks = append(checks, dbCheck)

	checks = append(checks, p.ping(ctx, "slack", p.deps.Chat), p.ping(ctx, "notion", p.deps.Docs))

	checks = append(checks,
		p.probeAnnotator(ctx, "summarizer", p.deps.Summarizer),
		p.probeAnnotator(ctx, "relevance", p.deps.Relevance))

	for _, c := range checks {
		ev := p.log.Info()
		if c.Status == CheckFailed {
			ev = p.log.Error().Err(c.Err)
		}
		ev.Str("service", c.Service).Str("status", string(c.Status)).Msg("connection test")
	}
	return checks
}

func (p *Processor) ping(ctx context.Context, service string, target any) Check {
	pinger, ok := target.(Pinger)
	if !ok {
		return Check{Service: service, Status: CheckSkipped, Detail: "not configured"}
	}
	if err := pinger.Ping(ctx); err != nil {
		return Check{Service: service, Status: CheckFailed, Err: err}
	}
	return Check{Service: service, Status: CheckOK}
}

func (p *Processor) probeAnnotator(ctx context.Context, service string, a annotate.Annotator) Check {
	if a == nil {
		return Check{Service: service, Status: CheckSkipped, Detail: "not configured"}
	}
	text, err := safeAnnotate(ctx, a, probePaper)
	if err != nil {
		return Check{Service: service, Status: CheckFailed, Err: err}
	}
	return Check{Service: service, Status: CheckOK, Detail: text}
}

// AllOK reports whether no check failed.
func AllOK(checks []Check) bool {
	for _, c := range checks {
		if c.Status == CheckFailed {
			return false
		}
	}
	return true
}
