// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ItemResult records the outcome of delivering one paper to one sink.
type ItemResult struct {
	PaperID string
	Err     error
}

// OK reports whether the delivery succeeded.
func (r ItemResult) OK() bool { return r.Err == nil }

// DeliveryReport collects per-item results for one sink within a cycle.
type DeliveryReport struct {
	Sink  string
	Items []ItemResult
	// Truncated counts papers that were not attempted because of a cap.
	Truncated int
}

// Succeeded returns the ids of papers delivered successfully.
func (r DeliveryReport) Succeeded() []string {
	var ids []string
	for _, it := range r.Items {
		if it.OK() {
			ids = append(ids, it.PaperID)
		}
	}
	return ids
}

// Failed returns the failed item results.
func (r DeliveryReport) Failed() []ItemResult {
	var failed []ItemResult
	for _, it := range r.Items {
		if !it.OK() {
			failed = append(failed, it)
		}
	}
	return failed
}

// CycleResult summarizes one fetch, dedup, record, deliver and purge pass.
type CycleResult struct {
	Fetched          int           `json:"fetched" yaml:"fetched"`
	New              int           `json:"new" yaml:"new"`
	PostedToChat     int           `json:"posted_to_chat" yaml:"posted_to_chat"`
	PostedToDocStore int           `json:"posted_to_doc_store" yaml:"posted_to_doc_store"`
	Purged           int           `json:"purged" yaml:"purged"`
	Errors           []string      `json:"errors" yaml:"errors"`
	Warnings         []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Elapsed          time.Duration `json:"elapsed" yaml:"elapsed"`
}

// ElapsedSeconds returns the cycle duration in seconds.
func (r CycleResult) ElapsedSeconds() float64 { return r.Elapsed.Seconds() }

// HasErrors reports whether any error was recorded during the cycle.
func (r CycleResult) HasErrors() bool { return len(r.Errors) > 0 }
