// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed/atom"
	"github.com/rs/zerolog"

	"github.com/pdiddy/arxiv-notifier/pkg/types"
)

// errMalformed marks an entry that lacks a required field.
var errMalformed = errors.New("malformed entry")

// ParseFeed decodes an arXiv Atom response into papers. Entries missing an
// id, title, author, abstract or a parseable published date are skipped
// and logged. An API error entry is returned as an error.
func ParseFeed(r io.Reader, log zerolog.Logger) ([]types.Paper, error) {
	feed, err := (&atom.Parser{}).Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing arXiv feed: %w", err)
	}

	papers := make([]types.Paper, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		if strings.Contains(e.ID, "/api/errors") {
			return nil, fmt.Errorf("arXiv API error: %s", collapse(e.Summary))
		}
		p, err := entryToPaper(e)
		if err != nil {
			log.Warn().Err(err).Str("entry", e.ID).Msg("skipping arXiv entry")
			continue
		}
		papers = append(papers, p)
	}
	return papers, nil
}

func entryToPaper(e *atom.Entry) (types.Paper, error) {
	id := ExtractID(e.ID)
	if id == "" {
		return types.Paper{}, fmt.Errorf("%w: missing id", errMalformed)
	}

	title := collapse(e.Title)
	if title == "" {
		return types.Paper{}, fmt.Errorf("%w: missing title", errMalformed)
	}

	var authors []string
	for _, a := range e.Authors {
		if a == nil {
			continue
		}
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}
	if len(authors) == 0 {
		return types.Paper{}, fmt.Errorf("%w: no authors", errMalformed)
	}

	abstract := collapse(e.Summary)
	if abstract == "" {
		return types.Paper{}, fmt.Errorf("%w: missing abstract", errMalformed)
	}

	published, ok := entryTime(e.PublishedParsed, e.Published)
	if !ok {
		return types.Paper{}, fmt.Errorf("%w: missing published date", errMalformed)
	}
	updated, _ := entryTime(e.UpdatedParsed, e.Updated)

	var categories []string
	for _, c := range e.Categories {
		if c != nil && c.Term != "" {
			categories = append(categories, c.Term)
		}
	}

	return types.NewPaper(id, title, abstract, authors, categories, published, updated), nil
}

// entryTime prefers the parser's parsed value and falls back to RFC 3339.
func entryTime(parsed *time.Time, raw string) (time.Time, bool) {
	if parsed != nil && !parsed.IsZero() {
		return parsed.UTC(), true
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// collapse trims s and folds internal whitespace runs to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ExtractID pulls the arXiv ID, including any version suffix, from an
// entry <id> URL (e.g. "http://arxiv.org/abs/2301.07041v2" → "2301.07041v2").
// Ids without an /abs/ segment fall back to the last path element.
func ExtractID(idURL string) string {
	idURL = strings.TrimSpace(idURL)
	if idURL == "" {
		return ""
	}
	if idx := strings.Index(idURL, "/abs/"); idx >= 0 {
		return idURL[idx+len("/abs/"):]
	}
	return idURL[strings.LastIndex(idURL, "/")+1:]
}

// StripVersion removes a trailing version suffix ("v1", "v2") from an id.
func StripVersion(id string) string {
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			return id[:vIdx]
		}
	}
	return id
}
