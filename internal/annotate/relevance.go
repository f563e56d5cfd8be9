// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package annotate

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/arxiv-notifier/pkg/types"
)

const relevanceMaxTokens = 200

// notApplicable is the reply the model is asked to give for unrelated
// papers.
const notApplicable = "NOT APPLICABLE"

// lowRelevanceIndicators mark a reply as "no useful connection".
var lowRelevanceIndicators = []string{
	notApplicable,
	"関連性低",
	"関連性が低い",
	"直接的な関連性はない",
	"プロジェクトには適用困難",
	"活用は困難",
}

// Relevance comments on how a paper could serve the project described in
// an overview document.
type Relevance struct {
	llm      Completer
	overview string
	language string
	log      zerolog.Logger
}

// NewRelevance loads the project overview from overviewFile.
func NewRelevance(llm Completer, overviewFile, language string, log zerolog.Logger) (*Relevance, error) {
	data, err := os.ReadFile(overviewFile)
	if err != nil {
		return nil, fmt.Errorf("reading project overview: %w", err)
	}
	overview := strings.TrimSpace(string(data))
	if overview == "" {
		return nil, fmt.Errorf("project overview %s is empty", overviewFile)
	}
	if language == "" {
		language = DefaultSummaryLanguage
	}
	log = log.With().Str("component", "relevance").Logger()
	log.Info().Str("file", overviewFile).Msg("loaded project overview")
	return &Relevance{llm: llm, overview: overview, language: language, log: log}, nil
}

// Name identifies the annotator in logs and warnings.
func (r *Relevance) Name() string { return "relevance" }

// Annotate returns a one-line suggestion, or "" when the model judges the
// paper unrelated to the project.
func (r *Relevance) Annotate(ctx context.Context, p types.Paper) (string, error) {
	prompt := fmt.Sprintf(`Using the project overview and paper below, comment in one line in %s on how this paper could be used or applied in the project.

[Project overview]
%s

[Paper]
Title: %s
Authors: %s
Categories: %s
Abstract: %s

[Output format]
- High relevance: a concrete suggestion in at most 50 characters.
- Low relevance: reply only "%s".

Comment:`, r.language, r.overview, p.Title, p.FormattedAuthors(3), strings.Join(p.Categories, ", "), p.Abstract, notApplicable)

	comment, err := r.llm.Complete(ctx,
		"You evaluate research papers for a specific software project.",
		prompt,
		CompletionOptions{MaxTokens: relevanceMaxTokens, Temperature: 0.3})
	if err != nil {
		return "", fmt.Errorf("evaluating relevance of %s: %w", p.ID, err)
	}

	if IsLowRelevance(comment) {
		r.log.Debug().Str("paper", p.ID).Msg("paper not relevant to project")
		return "", nil
	}
	return comment, nil
}

// IsLowRelevance reports whether comment is a "not applicable" reply.
func IsLowRelevance(comment string) bool {
	upper := strings.ToUpper(comment)
	for _, ind := range lowRelevanceIndicators {
		if strings.Contains(upper, ind) {
			return true
		}
	}
	return strings.TrimSpace(comment) == ""
}
