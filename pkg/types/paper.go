// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the arxiv-notifier
// pipeline: papers fetched from arXiv, ledger rows, cycle results and the
// process configuration.
package types

import (
	"fmt"
	"strings"
	"time"
)

const (
	arxivAbsBase = "https://arxiv.org/abs/"
	arxivPDFBase = "https://arxiv.org/pdf/"
)

// Paper holds the normalized metadata of one arXiv entry. Two papers with
// the same ID denote the same underlying item.
type Paper struct {
	// ID is the arXiv identifier including its version (e.g. "2301.07041v2").
	// Each revision is a distinct item.
	ID string `json:"id" yaml:"id"`

	// Title is the paper title with internal whitespace collapsed.
	Title string `json:"title" yaml:"title"`

	// Authors lists display names in source order. Never empty.
	Authors []string `json:"authors" yaml:"authors"`

	// Abstract is the paper abstract with internal whitespace collapsed.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Categories lists taxonomy tags (e.g. "cs.LG") in source order.
	Categories []string `json:"categories" yaml:"categories"`

	// PublishedAt is the first submission time.
	PublishedAt time.Time `json:"published_at" yaml:"published_at"`

	// UpdatedAt is the latest revision time; equals PublishedAt when the
	// source omits it.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`

	PDFURL    string `json:"pdf_url" yaml:"pdf_url"`
	DetailURL string `json:"detail_url" yaml:"detail_url"`
}

// NewPaper builds a Paper and derives its URLs from id.
func NewPaper(id, title, abstract string, authors, categories []string, published, updated time.Time) Paper {
	if updated.IsZero() {
		updated = published
	}
	return Paper{
		ID:          id,
		Title:       title,
		Authors:     authors,
		Abstract:    abstract,
		Categories:  categories,
		PublishedAt: published,
		UpdatedAt:   updated,
		PDFURL:      PDFURL(id),
		DetailURL:   DetailURL(id),
	}
}

// PDFURL returns the PDF download URL for an arXiv id.
func PDFURL(id string) string { return arxivPDFBase + id + ".pdf" }

// DetailURL returns the abstract page URL for an arXiv id.
func DetailURL(id string) string { return arxivAbsBase + id }

// FormattedAuthors joins up to max author names and summarizes the rest,
// e.g. "A, B, C and 4 others".
func (p Paper) FormattedAuthors(max int) string {
	if max <= 0 || len(p.Authors) <= max {
		return strings.Join(p.Authors, ", ")
	}
	return fmt.Sprintf("%s and %d others", strings.Join(p.Authors[:max], ", "), len(p.Authors)-max)
}

// PrimaryCategory returns the first category, or "Unknown" when there is none.
func (p Paper) PrimaryCategory() string {
	if len(p.Categories) == 0 {
		return "Unknown"
	}
	return p.Categories[0]
}

// Annotations holds the optional enrichment text produced for a paper.
// Empty strings mean the annotation was not produced.
type Annotations struct {
	Summary   string `json:"summary,omitempty" yaml:"summary,omitempty"`
	Relevance string `json:"relevance,omitempty" yaml:"relevance,omitempty"`
}
