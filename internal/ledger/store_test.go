// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/arxiv-notifier/pkg/types"
)

var baseTime = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

// clock is a settable time source for the store.
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func openTestStore(t *testing.T) (*Store, *clock) {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	c := &clock{t: baseTime}
	s.Now = c.now
	return s, c
}

func paper(id string) types.Paper {
	return types.NewPaper(id, "Title "+id, "Abstract", []string{"A"}, []string{"cs.LG"},
		baseTime.AddDate(0, 0, -1), time.Time{})
}

func inSession(t *testing.T, s *Store, fn func(*Session) error) {
	t.Helper()
	require.NoError(t, s.WithSession(context.Background(), fn))
}

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }

func TestUpsert_CreatesRow(t *testing.T) {
	s, _ := openTestStore(t)

	inSession(t, s, func(sess *Session) error {
		e, err := sess.Upsert(paper("2403.00001"), false, false)
		require.NoError(t, err)
		assert.Equal(t, "2403.00001", e.PaperID)
		assert.Equal(t, "Title 2403.00001", e.Title)
		assert.Equal(t, baseTime.AddDate(0, 0, -1), e.PublishedAt)
		assert.Equal(t, baseTime, e.ProcessedAt)
		assert.False(t, e.PostedToChat)
		assert.False(t, e.PostedToDocStore)
		assert.Nil(t, e.RelevanceNote)

		ok, err := sess.Exists("2403.00001")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = sess.Exists("2403.99999")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
}

func TestUpsert_ORMergesFlags(t *testing.T) {
	s, c := openTestStore(t)
	p := paper("2403.00001")

	inSession(t, s, func(sess *Session) error {
		_, err := sess.Upsert(p, true, false)
		require.NoError(t, err)

		c.t = baseTime.Add(time.Hour)
		renamed := p
		renamed.Title = "Changed"
		e, err := sess.Upsert(renamed, false, true)
		require.NoError(t, err)

		assert.True(t, e.PostedToChat, "true is never reset by an upsert")
		assert.True(t, e.PostedToDocStore)
		assert.Equal(t, "Title 2403.00001", e.Title, "title is not overwritten")
		assert.Equal(t, baseTime.Add(time.Hour), e.ProcessedAt)
		return nil
	})
}

func TestUpsert_ProcessedAtNonDecreasing(t *testing.T) {
	s, c := openTestStore(t)
	p := paper("2403.00001")

	inSession(t, s, func(sess *Session) error {
		_, err := sess.Upsert(p, false, false)
		require.NoError(t, err)

		c.t = baseTime.Add(-time.Hour)
		e, err := sess.Upsert(p, false, false)
		require.NoError(t, err)
		assert.Equal(t, baseTime, e.ProcessedAt)
		return nil
	})
}

func TestUpdateStatus(t *testing.T) {
	s, c := openTestStore(t)

	inSession(t, s, func(sess *Session) error {
		_, err := sess.Upsert(paper("2403.00001"), false, false)
		require.NoError(t, err)

		c.t = baseTime.Add(time.Minute)
		ok, err := sess.UpdateStatus("2403.00001", types.StatusUpdate{
			PostedToChat:  boolPtr(true),
			RelevanceNote: strPtr("useful for retrieval"),
		})
		require.NoError(t, err)
		assert.True(t, ok)

		e, found, err := sess.Get("2403.00001")
		require.NoError(t, err)
		require.True(t, found)
		assert.True(t, e.PostedToChat)
		assert.False(t, e.PostedToDocStore, "nil field left unchanged")
		require.NotNil(t, e.RelevanceNote)
		assert.Equal(t, "useful for retrieval", *e.RelevanceNote)
		assert.Equal(t, baseTime.Add(time.Minute), e.ProcessedAt)

		ok, err = sess.UpdateStatus("missing", types.StatusUpdate{PostedToChat: boolPtr(true)})
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
}

func TestFilterUnprocessed(t *testing.T) {
	s, _ := openTestStore(t)
	papers := []types.Paper{paper("a"), paper("b"), paper("c"), paper("d")}

	inSession(t, s, func(sess *Session) error {
		_, err := sess.Upsert(papers[1], false, false)
		require.NoError(t, err)
		_, err = sess.Upsert(papers[3], false, false)
		require.NoError(t, err)

		out, err := sess.FilterUnprocessed(papers)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, "a", out[0].ID)
		assert.Equal(t, "c", out[1].ID)

		// Recording the result makes a second pass empty.
		for _, p := range out {
			_, err := sess.Upsert(p, false, false)
			require.NoError(t, err)
		}
		again, err := sess.FilterUnprocessed(papers)
		require.NoError(t, err)
		assert.Empty(t, again)
		return nil
	})
}

func TestFilterUnprocessed_Idempotent(t *testing.T) {
	s, _ := openTestStore(t)
	papers := []types.Paper{paper("a"), paper("b")}

	inSession(t, s, func(sess *Session) error {
		_, err := sess.Upsert(papers[0], false, false)
		require.NoError(t, err)

		first, err := sess.FilterUnprocessed(papers)
		require.NoError(t, err)
		second, err := sess.FilterUnprocessed(first)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		return nil
	})
}

func TestFilterUnprocessed_ManyIDs(t *testing.T) {
	s, _ := openTestStore(t)

	var papers []types.Paper
	for i := 0; i < 2*lookupChunk+10; i++ {
		papers = append(papers, paper(fmt.Sprintf("2403.%05d", i)))
	}

	inSession(t, s, func(sess *Session) error {
		_, err := sess.Upsert(papers[len(papers)-1], false, false)
		require.NoError(t, err)

		out, err := sess.FilterUnprocessed(papers)
		require.NoError(t, err)
		assert.Len(t, out, len(papers)-1)
		return nil
	})
}

func TestPurgeOlderThan_Boundary(t *testing.T) {
	s, c := openTestStore(t)

	inSession(t, s, func(sess *Session) error {
		// Row processed exactly at the cutoff.
		c.t = baseTime.AddDate(0, 0, -90)
		_, err := sess.Upsert(paper("edge"), false, false)
		require.NoError(t, err)

		// Row processed one microsecond before the cutoff.
		c.t = baseTime.AddDate(0, 0, -90).Add(-time.Microsecond)
		_, err = sess.Upsert(paper("old"), false, false)
		require.NoError(t, err)

		c.t = baseTime
		_, err = sess.Upsert(paper("new"), false, false)
		require.NoError(t, err)

		n, err := sess.PurgeOlderThan(90)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		for id, want := range map[string]bool{"edge": true, "old": false, "new": true} {
			ok, err := sess.Exists(id)
			require.NoError(t, err)
			assert.Equal(t, want, ok, id)
		}
		return nil
	})
}

func TestStats(t *testing.T) {
	s, c := openTestStore(t)

	inSession(t, s, func(sess *Session) error {
		st, err := sess.Stats()
		require.NoError(t, err)
		assert.Equal(t, types.LedgerStats{}, st)

		c.t = baseTime.AddDate(0, 0, -10)
		_, err = sess.Upsert(paper("a"), true, false)
		require.NoError(t, err)
		c.t = baseTime
		_, err = sess.Upsert(paper("b"), true, true)
		require.NoError(t, err)

		st, err = sess.Stats()
		require.NoError(t, err)
		assert.Equal(t, types.LedgerStats{Total: 2, PostedToChat: 2, PostedToDocStore: 1, Recent7Days: 1}, st)
		return nil
	})
}

func TestRecentAndRemove(t *testing.T) {
	s, c := openTestStore(t)

	inSession(t, s, func(sess *Session) error {
		for i, id := range []string{"a", "b", "c"} {
			c.t = baseTime.Add(time.Duration(i) * time.Minute)
			_, err := sess.Upsert(paper(id), false, false)
			require.NoError(t, err)
		}

		recent, err := sess.Recent(2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, "c", recent[0].PaperID)
		assert.Equal(t, "b", recent[1].PaperID)

		ok, err := sess.Remove("b")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = sess.Remove("b")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
}

func TestRevisionsAreSeparateRows(t *testing.T) {
	s, _ := openTestStore(t)

	inSession(t, s, func(sess *Session) error {
		_, err := sess.Upsert(paper("2301.00001v1"), true, true)
		require.NoError(t, err)

		fresh, err := sess.FilterUnprocessed([]types.Paper{paper("2301.00001v1"), paper("2301.00001v2")})
		require.NoError(t, err)
		require.Len(t, fresh, 1)
		assert.Equal(t, "2301.00001v2", fresh[0].ID)
		return nil
	})
}

func TestRemoveAllVersions(t *testing.T) {
	s, _ := openTestStore(t)

	inSession(t, s, func(sess *Session) error {
		for _, id := range []string{"2301.00001v1", "2301.00001v2", "2301.000011v1", "2301.00002v1"} {
			_, err := sess.Upsert(paper(id), false, false)
			require.NoError(t, err)
		}

		n, err := sess.RemoveAllVersions("2301.00001")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		for id, want := range map[string]bool{
			"2301.00001v1":  false,
			"2301.00001v2":  false,
			"2301.000011v1": true,
			"2301.00002v1":  true,
		} {
			ok, err := sess.Exists(id)
			require.NoError(t, err)
			assert.Equal(t, want, ok, id)
		}
		return nil
	})
}

func TestWithSession_RollbackOnError(t *testing.T) {
	s, _ := openTestStore(t)
	boom := errors.New("boom")

	err := s.WithSession(context.Background(), func(sess *Session) error {
		_, err := sess.Upsert(paper("a"), false, false)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	inSession(t, s, func(sess *Session) error {
		ok, err := sess.Exists("a")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
}

func TestWithSession_RollbackOnPanic(t *testing.T) {
	s, _ := openTestStore(t)

	assert.Panics(t, func() {
		_ = s.WithSession(context.Background(), func(sess *Session) error {
			_, _ = sess.Upsert(paper("a"), false, false)
			panic("boom")
		})
	})

	inSession(t, s, func(sess *Session) error {
		ok, err := sess.Exists("a")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
}

func TestCheckpoint_SurvivesLaterRollback(t *testing.T) {
	s, _ := openTestStore(t)
	boom := errors.New("boom")

	err := s.WithSession(context.Background(), func(sess *Session) error {
		_, err := sess.Upsert(paper("kept"), false, false)
		require.NoError(t, err)
		require.NoError(t, sess.Checkpoint())
		_, err = sess.Upsert(paper("lost"), false, false)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	inSession(t, s, func(sess *Session) error {
		kept, err := sess.Exists("kept")
		require.NoError(t, err)
		lost, err := sess.Exists("lost")
		require.NoError(t, err)
		assert.True(t, kept)
		assert.False(t, lost)
		return nil
	})
}

func TestOpen_MigratesLegacySchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE processed_papers (
		paper_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		published_at TEXT NOT NULL,
		processed_at TEXT NOT NULL,
		posted_to_chat BOOLEAN NOT NULL DEFAULT 0,
		posted_to_doc_store BOOLEAN NOT NULL DEFAULT 0
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO processed_papers VALUES ('old', 'Old', ?, ?, 1, 0)`,
		formatTime(baseTime), formatTime(baseTime))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	inSession(t, s, func(sess *Session) error {
		e, ok, err := sess.Get("old")
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, e.PostedToChat)
		assert.Nil(t, e.RelevanceNote)

		ok, err = sess.UpdateStatus("old", types.StatusUpdate{RelevanceNote: strPtr("note")})
		require.NoError(t, err)
		assert.True(t, ok)
		return nil
	})
}

func TestReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	inSession(t, s, func(sess *Session) error {
		_, err := sess.Upsert(paper("a"), false, false)
		return err
	})
	require.NoError(t, s.Close())

	require.NoError(t, Reset(path, zerolog.Nop()))

	s, err = Open(path, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()
	inSession(t, s, func(sess *Session) error {
		st, err := sess.Stats()
		require.NoError(t, err)
		assert.Equal(t, 0, st.Total)
		return nil
	})
}
