// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// LedgerEntry is one row of the processed_papers table.
type LedgerEntry struct {
	PaperID          string    `json:"paper_id" yaml:"paper_id"`
	Title            string    `json:"title" yaml:"title"`
	PublishedAt      time.Time `json:"published_at" yaml:"published_at"`
	ProcessedAt      time.Time `json:"processed_at" yaml:"processed_at"`
	PostedToChat     bool      `json:"posted_to_chat" yaml:"posted_to_chat"`
	PostedToDocStore bool      `json:"posted_to_doc_store" yaml:"posted_to_doc_store"`

	// RelevanceNote is nil when no relevance annotation was recorded.
	RelevanceNote *string `json:"relevance_note,omitempty" yaml:"relevance_note,omitempty"`
}

// LedgerStats summarizes the ledger contents.
type LedgerStats struct {
	Total            int `json:"total" yaml:"total"`
	PostedToChat     int `json:"posted_to_chat" yaml:"posted_to_chat"`
	PostedToDocStore int `json:"posted_to_doc_store" yaml:"posted_to_doc_store"`
	Recent7Days      int `json:"recent_7day" yaml:"recent_7day"`
}

// StatusUpdate is a partial update of a ledger row. Nil fields are left
// unchanged.
type StatusUpdate struct {
	PostedToChat     *bool
	PostedToDocStore *bool
	RelevanceNote    *string
}
