// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/arxiv-notifier/internal/annotate"
	"github.com/pdiddy/arxiv-notifier/internal/ledger"
	"github.com/pdiddy/arxiv-notifier/internal/observability"
	"github.com/pdiddy/arxiv-notifier/pkg/types"
)

var published = time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)

func testPaper(id string) types.Paper {
	return types.NewPaper(id, "Paper "+id, "Abstract of "+id, []string{"Author"}, []string{"cs.LG"}, published, time.Time{})
}

func papers(n int) []types.Paper {
	out := make([]types.Paper, n)
	for i := range out {
		out[i] = testPaper(fmt.Sprintf("2403.%05d", i+1))
	}
	return out
}

type fakeFetcher struct {
	papers  []types.Paper
	calls   int
	pingErr error
}

func (f *fakeFetcher) GetRecent(_ context.Context, _ int, _, _ []string) []types.Paper {
	f.calls++
	return f.papers
}

func (f *fakeFetcher) Ping(context.Context) error { return f.pingErr }

type fakeChat struct {
	summaries [][]types.Paper
	posted    []string
	notes     map[string]types.Annotations
	failIDs   map[string]bool
	pingErr   error
}

func (c *fakeChat) Name() string { return "slack" }

func (c *fakeChat) PostSummary(_ context.Context, ps []types.Paper) error {
	c.summaries = append(c.summaries, ps)
	return nil
}

func (c *fakeChat) PostPaper(_ context.Context, p types.Paper, a types.Annotations) error {
	if c.failIDs[p.ID] {
		return errors.New("webhook rejected")
	}
	c.posted = append(c.posted, p.ID)
	if c.notes == nil {
		c.notes = make(map[string]types.Annotations)
	}
	c.notes[p.ID] = a
	return nil
}

func (c *fakeChat) Ping(context.Context) error { return c.pingErr }

type fakeDocs struct {
	added []string
	notes map[string]types.Annotations
	fail  bool
}

func (d *fakeDocs) Name() string { return "notion" }

func (d *fakeDocs) AddPaper(_ context.Context, p types.Paper, a types.Annotations) error {
	if d.fail {
		return errors.New("notion unavailable")
	}
	d.added = append(d.added, p.ID)
	if d.notes == nil {
		d.notes = make(map[string]types.Annotations)
	}
	d.notes[p.ID] = a
	return nil
}

type fakeAnnotator struct {
	name  string
	calls int
	fn    func(types.Paper) (string, error)
}

func (a *fakeAnnotator) Name() string { return a.name }

func (a *fakeAnnotator) Annotate(_ context.Context, p types.Paper) (string, error) {
	a.calls++
	return a.fn(p)
}

func openStore(t *testing.T) *ledger.Store {
	t.Helper()
	s, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newProcessor(t *testing.T, deps Deps) *Processor {
	t.Helper()
	if deps.Store == nil {
		deps.Store = openStore(t)
	}
	p, err := New(deps, Options{DaysBack: 7, CleanupDays: 90}, zerolog.Nop())
	require.NoError(t, err)
	return p
}

func entry(t *testing.T, s *ledger.Store, id string) types.LedgerEntry {
	t.Helper()
	var e types.LedgerEntry
	require.NoError(t, s.WithSession(context.Background(), func(sess *ledger.Session) error {
		got, ok, err := sess.Get(id)
		require.True(t, ok, "ledger row for %s", id)
		e = got
		return err
	}))
	return e
}

func TestNew_RequiresStoreAndFetcher(t *testing.T) {
	_, err := New(Deps{Fetcher: &fakeFetcher{}}, Options{}, zerolog.Nop())
	assert.Error(t, err)
	_, err = New(Deps{Store: openStore(t)}, Options{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestRunCycle_ChatCapAndAllDocs(t *testing.T) {
	store := openStore(t)
	fetcher := &fakeFetcher{papers: papers(15)}
	chat := &fakeChat{}
	docs := &fakeDocs{}
	summarizer := &fakeAnnotator{name: "summarizer", fn: func(p types.Paper) (string, error) {
		return "summary of " + p.ID, nil
	}}
	metrics := observability.NewMetrics()

	p := newProcessor(t, Deps{Store: store, Fetcher: fetcher, Chat: chat, Docs: docs, Summarizer: summarizer, Metrics: metrics})
	res := p.RunCycle(context.Background())

	assert.Empty(t, res.Errors)
	assert.Equal(t, 15, res.Fetched)
	assert.Equal(t, 15, res.New)
	assert.Equal(t, 10, res.PostedToChat)
	assert.Equal(t, 15, res.PostedToDocStore)

	require.Len(t, chat.summaries, 1)
	assert.Len(t, chat.summaries[0], 15, "summary counts every new paper")
	assert.Len(t, chat.posted, 10)
	assert.Len(t, docs.added, 15)
	assert.Equal(t, 15, summarizer.calls, "each paper is annotated once")
	assert.Equal(t, "summary of 2403.00003", chat.notes["2403.00003"].Summary)
	assert.Equal(t, "summary of 2403.00003", docs.notes["2403.00003"].Summary)

	first := entry(t, store, "2403.00001")
	assert.True(t, first.PostedToChat)
	assert.True(t, first.PostedToDocStore)
	last := entry(t, store, "2403.00015")
	assert.False(t, last.PostedToChat)
	assert.True(t, last.PostedToDocStore)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CyclesTotal))
	assert.Equal(t, 10.0, testutil.ToFloat64(metrics.Deliveries.WithLabelValues("slack", "ok")))
	assert.Equal(t, 15.0, testutil.ToFloat64(metrics.Deliveries.WithLabelValues("notion", "ok")))
}

func TestRunCycle_SecondRunFindsNothingNew(t *testing.T) {
	fetcher := &fakeFetcher{papers: papers(3)}
	chat := &fakeChat{}
	p := newProcessor(t, Deps{Fetcher: fetcher, Chat: chat})

	first := p.RunCycle(context.Background())
	assert.Equal(t, 3, first.New)

	second := p.RunCycle(context.Background())
	assert.Equal(t, 3, second.Fetched)
	assert.Equal(t, 0, second.New)
	assert.Empty(t, second.Errors)
	assert.Len(t, chat.summaries, 1, "no summary for an empty batch")
	assert.Len(t, chat.posted, 3)
}

func TestRunCycle_RevisedPaperIsDeliveredAgain(t *testing.T) {
	fetcher := &fakeFetcher{papers: []types.Paper{testPaper("2301.00001v1")}}
	chat := &fakeChat{}
	p := newProcessor(t, Deps{Fetcher: fetcher, Chat: chat})

	first := p.RunCycle(context.Background())
	assert.Equal(t, 1, first.New)

	fetcher.papers = []types.Paper{testPaper("2301.00001v1"), testPaper("2301.00001v2")}
	second := p.RunCycle(context.Background())
	assert.Equal(t, 2, second.Fetched)
	assert.Equal(t, 1, second.New)
	assert.Equal(t, []string{"2301.00001v1", "2301.00001v2"}, chat.posted)
}

func TestRunCycle_EmptyFetch(t *testing.T) {
	chat := &fakeChat{}
	docs := &fakeDocs{}
	p := newProcessor(t, Deps{Fetcher: &fakeFetcher{}, Chat: chat, Docs: docs})

	res := p.RunCycle(context.Background())
	assert.Equal(t, types.CycleResult{Elapsed: res.Elapsed}, res)
	assert.Empty(t, chat.summaries)
	assert.Empty(t, docs.added)
}

func TestRunCycle_SentinelRelevanceLeavesNoteEmpty(t *testing.T) {
	overview := filepath.Join(t.TempDir(), "overview.md")
	require.NoError(t, os.WriteFile(overview, []byte("A ranking service for papers."), 0o644))

	llm := completerFunc(func(user string) string {
		if strings.Contains(user, "2403.00001") {
			return "NOT APPLICABLE"
		}
		return "Useful for ranking."
	})
	relevance, err := annotate.NewRelevance(llm, overview, "English", zerolog.Nop())
	require.NoError(t, err)

	store := openStore(t)
	chat := &fakeChat{}
	p := newProcessor(t, Deps{Store: store, Fetcher: &fakeFetcher{papers: papers(2)}, Chat: chat, Relevance: relevance})
	res := p.RunCycle(context.Background())
	require.Empty(t, res.Errors)

	off := entry(t, store, "2403.00001")
	assert.True(t, off.PostedToChat)
	assert.Nil(t, off.RelevanceNote)
	assert.Empty(t, chat.notes["2403.00001"].Relevance)

	on := entry(t, store, "2403.00002")
	require.NotNil(t, on.RelevanceNote)
	assert.Equal(t, "Useful for ranking.", *on.RelevanceNote)
}

// completerFunc answers every prompt with reply(user).
type completerFunc func(user string) string

func (f completerFunc) Complete(_ context.Context, _, user string, _ annotate.CompletionOptions) (string, error) {
	return f(user), nil
}

func TestRunCycle_SinkFailuresAreRecordedPerItem(t *testing.T) {
	store := openStore(t)
	chat := &fakeChat{failIDs: map[string]bool{"2403.00002": true}}
	docs := &fakeDocs{fail: true}
	p := newProcessor(t, Deps{Store: store, Fetcher: &fakeFetcher{papers: papers(3)}, Chat: chat, Docs: docs})

	res := p.RunCycle(context.Background())
	assert.Equal(t, 2, res.PostedToChat)
	assert.Equal(t, 0, res.PostedToDocStore)
	assert.Equal(t, []string{
		"Failed to post 1 papers to Slack",
		"Failed to add 3 papers to Notion",
	}, res.Errors)
	assert.Equal(t, []string{"2403.00001", "2403.00003"}, chat.posted)

	failed := entry(t, store, "2403.00002")
	assert.False(t, failed.PostedToChat)
	assert.False(t, failed.PostedToDocStore)
	assert.True(t, entry(t, store, "2403.00003").PostedToChat)
}

func TestRunCycle_AnnotatorFailuresBecomeWarnings(t *testing.T) {
	summarizer := &fakeAnnotator{name: "summarizer", fn: func(p types.Paper) (string, error) {
		if p.ID == "2403.00001" {
			panic("model exploded")
		}
		return "", errors.New("rate limited")
	}}
	chat := &fakeChat{}
	docs := &fakeDocs{}
	metrics := observability.NewMetrics()
	p := newProcessor(t, Deps{Fetcher: &fakeFetcher{papers: papers(2)}, Chat: chat, Docs: docs, Summarizer: summarizer, Metrics: metrics})

	res := p.RunCycle(context.Background())
	assert.Empty(t, res.Errors)
	assert.Equal(t, 2, res.PostedToChat)
	assert.Equal(t, 2, res.PostedToDocStore)
	require.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[0], "panic: model exploded")
	assert.Contains(t, res.Warnings[1], "rate limited")
	assert.Equal(t, 2, summarizer.calls)
	assert.Empty(t, docs.notes["2403.00001"].Summary)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.AnnotationFailures.WithLabelValues("summarizer")))
}

func TestRunCycle_LedgerErrorAbortsCycle(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Close())
	chat := &fakeChat{}
	p := newProcessor(t, Deps{Store: store, Fetcher: &fakeFetcher{papers: papers(2)}, Chat: chat})

	res := p.RunCycle(context.Background())
	assert.Equal(t, 2, res.Fetched)
	require.Len(t, res.Errors, 1)
	assert.Empty(t, chat.posted)
}

func TestRunCycle_IgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	docs := &fakeDocs{}
	p := newProcessor(t, Deps{Fetcher: &fakeFetcher{papers: papers(2)}, Docs: docs})
	res := p.RunCycle(ctx)
	assert.Empty(t, res.Errors)
	assert.Len(t, docs.added, 2)
}

func TestRunCycle_PurgesOldRows(t *testing.T) {
	store := openStore(t)
	old := time.Now().AddDate(0, 0, -100)
	store.Now = func() time.Time { return old }
	require.NoError(t, store.WithSession(context.Background(), func(s *ledger.Session) error {
		_, err := s.Upsert(testPaper("2301.00001"), true, true)
		return err
	}))
	store.Now = nil

	p := newProcessor(t, Deps{Store: store, Fetcher: &fakeFetcher{papers: papers(1)}})
	res := p.RunCycle(context.Background())
	assert.Equal(t, 1, res.Purged)
}

func TestCheckConnections(t *testing.T) {
	summarizer := &fakeAnnotator{name: "summarizer", fn: func(types.Paper) (string, error) {
		return "", errors.New("invalid api key")
	}}
	p := newProcessor(t, Deps{
		Fetcher:    &fakeFetcher{},
		Chat:       &fakeChat{},
		Summarizer: summarizer,
	})

	checks := p.CheckConnections(context.Background())
	got := make(map[string]CheckStatus)
	for _, c := range checks {
		got[c.Service] = c.Status
	}
	assert.Equal(t, map[string]CheckStatus{
		"arxiv":      CheckOK,
		"database":   CheckOK,
		"slack":      CheckOK,
		"notion":     CheckSkipped,
		"summarizer": CheckFailed,
		"relevance":  CheckSkipped,
	}, got)
	assert.Equal(t, "arxiv", checks[0].Service)
	assert.Equal(t, "0 papers", checks[1].Detail)
	assert.False(t, AllOK(checks))
}

func TestCheckConnections_PingFailure(t *testing.T) {
	p := newProcessor(t, Deps{Fetcher: &fakeFetcher{pingErr: errors.New("timeout")}})
	checks := p.CheckConnections(context.Background())
	assert.Equal(t, CheckFailed, checks[0].Status)
	assert.EqualError(t, checks[0].Err, "timeout")
}
