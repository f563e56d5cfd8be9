// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/pdiddy/arxiv-notifier/pkg/types"
)

// lookupChunk bounds the number of ids bound into a single IN clause,
// below SQLite's host parameter limit.
const lookupChunk = 900

var entryColumns = []string{
	"paper_id", "title", "published_at", "processed_at",
	"posted_to_chat", "posted_to_doc_store", "relevance_note",
}

// Session is a unit of work on the ledger. It is only valid inside the
// WithSession callback that created it.
type Session struct {
	store *Store
	ctx   context.Context
	tx    *sql.Tx
}

// Checkpoint commits the work done so far and continues in a fresh
// transaction.
func (s *Session) Checkpoint() error {
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("committing checkpoint: %w", err)
	}
	tx, err := s.store.db.BeginTx(s.ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	s.tx = tx
	return nil
}

func (s *Session) exec(b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building statement: %w", err)
	}
	return s.tx.ExecContext(s.ctx, query, args...)
}

func (s *Session) query(b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	return s.tx.QueryContext(s.ctx, query, args...)
}

// Exists reports whether a row for id is present.
func (s *Session) Exists(id string) (bool, error) {
	query, args, err := sq.Select("1").From(table).Where(sq.Eq{"paper_id": id}).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("building query: %w", err)
	}
	var one int
	err = s.tx.QueryRowContext(s.ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking paper %s: %w", id, err)
	}
	return true, nil
}

// Upsert records p as processed. On conflict the delivery flags are
// OR-merged with the stored ones, processed_at is refreshed and the
// stored title and published_at are kept.
func (s *Session) Upsert(p types.Paper, postedToChat, postedToDocStore bool) (types.LedgerEntry, error) {
	now := formatTime(s.store.now())
	ins := sq.Insert(table).
		Columns("paper_id", "title", "published_at", "processed_at", "posted_to_chat", "posted_to_doc_store").
		Values(p.ID, p.Title, formatTime(p.PublishedAt), now, postedToChat, postedToDocStore).
		Suffix(`ON CONFLICT(paper_id) DO UPDATE SET
			posted_to_chat = posted_to_chat OR excluded.posted_to_chat,
			posted_to_doc_store = posted_to_doc_store OR excluded.posted_to_doc_store,
			processed_at = MAX(processed_at, excluded.processed_at)`)

	if _, err := s.exec(ins); err != nil {
		return types.LedgerEntry{}, fmt.Errorf("upserting paper %s: %w", p.ID, err)
	}
	s.store.log.Debug().Str("paper", p.ID).Msg("recorded paper")

	entry, ok, err := s.Get(p.ID)
	if err != nil {
		return types.LedgerEntry{}, err
	}
	if !ok {
		return types.LedgerEntry{}, fmt.Errorf("paper %s missing after upsert", p.ID)
	}
	return entry, nil
}

// UpdateStatus applies a partial update to the row for id and refreshes
// processed_at. It returns false when no row exists.
func (s *Session) UpdateStatus(id string, u types.StatusUpdate) (bool, error) {
	now := formatTime(s.store.now())
	upd := sq.Update(table).
		Set("processed_at", sq.Expr("MAX(processed_at, ?)", now)).
		Where(sq.Eq{"paper_id": id})
	if u.PostedToChat != nil {
		upd = upd.Set("posted_to_chat", *u.PostedToChat)
	}
	if u.PostedToDocStore != nil {
		upd = upd.Set("posted_to_doc_store", *u.PostedToDocStore)
	}
	if u.RelevanceNote != nil {
		upd = upd.Set("relevance_note", *u.RelevanceNote)
	}

	res, err := s.exec(upd)
	if err != nil {
		return false, fmt.Errorf("updating paper %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("updating paper %s: %w", id, err)
	}
	if n == 0 {
		s.store.log.Warn().Str("paper", id).Msg("paper not found in ledger")
		return false, nil
	}
	return true, nil
}

// FilterUnprocessed returns the papers that have no ledger row, in input
// order.
func (s *Session) FilterUnprocessed(papers []types.Paper) ([]types.Paper, error) {
	if len(papers) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	for start := 0; start < len(papers); start += lookupChunk {
		end := min(start+lookupChunk, len(papers))
		ids := make([]string, 0, end-start)
		for _, p := range papers[start:end] {
			ids = append(ids, p.ID)
		}

		rows, err := s.query(sq.Select("paper_id").From(table).Where(sq.Eq{"paper_id": ids}))
		if err != nil {
			return nil, fmt.Errorf("looking up processed papers: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning paper id: %w", err)
			}
			seen[id] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterating paper ids: %w", err)
		}
		rows.Close()
	}

	var out []types.Paper
	for _, p := range papers {
		if !seen[p.ID] {
			out = append(out, p)
		}
	}
	s.store.log.Info().Int("total", len(papers)).Int("unprocessed", len(out)).
		Int("processed", len(papers)-len(out)).Msg("filtered papers")
	return out, nil
}

// PurgeOlderThan deletes rows whose processed_at is strictly before
// now minus days, returning the number deleted.
func (s *Session) PurgeOlderThan(days int) (int, error) {
	cutoff := formatTime(s.store.now().AddDate(0, 0, -days))
	res, err := s.exec(sq.Delete(table).Where(sq.Lt{"processed_at": cutoff}))
	if err != nil {
		return 0, fmt.Errorf("purging ledger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purging ledger: %w", err)
	}
	if n > 0 {
		s.store.log.Info().Int64("deleted", n).Int("days", days).Msg("purged old records")
	}
	return int(n), nil
}

// Stats counts all rows, delivered rows per sink and rows processed in
// the last seven days.
func (s *Session) Stats() (types.LedgerStats, error) {
	recent := formatTime(s.store.now().AddDate(0, 0, -7))
	query, args, err := sq.Select(
		"COUNT(*)",
		"COALESCE(SUM(posted_to_chat), 0)",
		"COALESCE(SUM(posted_to_doc_store), 0)",
	).Column(sq.Expr("COALESCE(SUM(CASE WHEN processed_at >= ? THEN 1 ELSE 0 END), 0)", recent)).
		From(table).ToSql()
	if err != nil {
		return types.LedgerStats{}, fmt.Errorf("building query: %w", err)
	}

	var st types.LedgerStats
	if err := s.tx.QueryRowContext(s.ctx, query, args...).
		Scan(&st.Total, &st.PostedToChat, &st.PostedToDocStore, &st.Recent7Days); err != nil {
		return types.LedgerStats{}, fmt.Errorf("reading ledger stats: %w", err)
	}
	return st, nil
}

// Get returns the row for id, with ok false when absent.
func (s *Session) Get(id string) (types.LedgerEntry, bool, error) {
	rows, err := s.query(sq.Select(entryColumns...).From(table).Where(sq.Eq{"paper_id": id}))
	if err != nil {
		return types.LedgerEntry{}, false, fmt.Errorf("reading paper %s: %w", id, err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return types.LedgerEntry{}, false, err
	}
	if len(entries) == 0 {
		return types.LedgerEntry{}, false, nil
	}
	return entries[0], true, nil
}

// Remove deletes the row for id, reporting whether it existed.
func (s *Session) Remove(id string) (bool, error) {
	res, err := s.exec(sq.Delete(table).Where(sq.Eq{"paper_id": id}))
	if err != nil {
		return false, fmt.Errorf("removing paper %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("removing paper %s: %w", id, err)
	}
	return n > 0, nil
}

// RemoveAllVersions deletes the row for base and every versioned row
// ("<base>v1", "<base>v2", ...), returning the number deleted.
func (s *Session) RemoveAllVersions(base string) (int, error) {
	res, err := s.exec(sq.Delete(table).Where(sq.Or{
		sq.Eq{"paper_id": base},
		sq.Like{"paper_id": base + "v%"},
	}))
	if err != nil {
		return 0, fmt.Errorf("removing versions of %s: %w", base, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("removing versions of %s: %w", base, err)
	}
	return int(n), nil
}

// Recent returns up to limit rows, most recently processed first.
func (s *Session) Recent(limit int) ([]types.LedgerEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.query(sq.Select(entryColumns...).From(table).
		OrderBy("processed_at DESC", "paper_id").Limit(uint64(limit)))
	if err != nil {
		return nil, fmt.Errorf("listing recent papers: %w", err)
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]types.LedgerEntry, error) {
	defer rows.Close()

	var out []types.LedgerEntry
	for rows.Next() {
		var (
			e                    types.LedgerEntry
			published, processed string
			note                 sql.NullString
		)
		if err := rows.Scan(&e.PaperID, &e.Title, &published, &processed,
			&e.PostedToChat, &e.PostedToDocStore, &note); err != nil {
			return nil, fmt.Errorf("scanning ledger row: %w", err)
		}

		var err error
		if e.PublishedAt, err = parseTime(published); err != nil {
			return nil, err
		}
		if e.ProcessedAt, err = parseTime(processed); err != nil {
			return nil, err
		}
		if note.Valid {
			n := note.String
			e.RelevanceNote = &n
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ledger rows: %w", err)
	}
	return out, nil
}
