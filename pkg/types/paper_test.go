// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPaper_DerivesURLs(t *testing.T) {
	pub := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	p := NewPaper("2301.07041", "T", "A", []string{"X"}, nil, pub, time.Time{})

	assert.Equal(t, "https://arxiv.org/pdf/2301.07041.pdf", p.PDFURL)
	assert.Equal(t, "https://arxiv.org/abs/2301.07041", p.DetailURL)
	assert.Equal(t, pub, p.UpdatedAt, "updated defaults to published")
}

func TestFormattedAuthors(t *testing.T) {
	p := Paper{Authors: []string{"A", "B", "C", "D", "E"}}
	tests := []struct {
		max  int
		want string
	}{
		{3, "A, B, C and 2 others"},
		{5, "A, B, C, D, E"},
		{10, "A, B, C, D, E"},
		{0, "A, B, C, D, E"},
	}
	for _, tt := range tests {
		if got := p.FormattedAuthors(tt.max); got != tt.want {
			t.Errorf("FormattedAuthors(%d) = %q, want %q", tt.max, got, tt.want)
		}
	}
}

func TestPrimaryCategory(t *testing.T) {
	assert.Equal(t, "Unknown", Paper{}.PrimaryCategory())
	assert.Equal(t, "cs.LG", Paper{Categories: []string{"cs.LG", "cs.AI"}}.PrimaryCategory())
}

func TestDeliveryReport(t *testing.T) {
	r := DeliveryReport{Sink: "slack", Items: []ItemResult{
		{PaperID: "a"},
		{PaperID: "b", Err: errors.New("boom")},
		{PaperID: "c"},
	}}
	assert.Equal(t, []string{"a", "c"}, r.Succeeded())
	failed := r.Failed()
	assert.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].PaperID)
}

func TestCycleResult_ElapsedSeconds(t *testing.T) {
	r := CycleResult{Elapsed: 1500 * time.Millisecond}
	assert.InDelta(t, 1.5, r.ElapsedSeconds(), 1e-9)
	assert.False(t, r.HasErrors())
	r.Errors = append(r.Errors, "x")
	assert.True(t, r.HasErrors())
}
