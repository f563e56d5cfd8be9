// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package annotate

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pdiddy/arxiv-notifier/pkg/types"
)

const (
	summaryMaxTokens = 400
	summaryMaxRunes  = 250
	summaryKeepRunes = 197

	// DefaultSummaryLanguage is used when no language is configured.
	DefaultSummaryLanguage = "Japanese"
)

// Summarizer produces a short native-language summary of a paper.
type Summarizer struct {
	llm      Completer
	language string
	log      zerolog.Logger
}

// NewSummarizer returns a Summarizer writing in language.
func NewSummarizer(llm Completer, language string, log zerolog.Logger) *Summarizer {
	if language == "" {
		language = DefaultSummaryLanguage
	}
	return &Summarizer{
		llm:      llm,
		language: language,
		log:      log.With().Str("component", "summarizer").Logger(),
	}
}

// Name identifies the annotator in logs and warnings.
func (s *Summarizer) Name() string { return "summarizer" }

// Annotate generates the summary, truncating replies that run well past
// the requested length.
func (s *Summarizer) Annotate(ctx context.Context, p types.Paper) (string, error) {
	system := fmt.Sprintf(`You are an expert in machine learning and AI research.
Read the English abstract of a paper and summarize it concisely in %s.
1. Keep it to about 200 characters.
2. Cover the goal, the method and the main result.
3. Render technical terms naturally in %s.
4. Make it easy to read.
5. Include key numeric results when there are any.`, s.language, s.language)

	user := fmt.Sprintf(`Summarize the following paper in %s in about 200 characters.

Title: %s
Category: %s
Abstract: %s

Summary:`, s.language, p.Title, p.PrimaryCategory(), p.Abstract)

	summary, err := s.llm.Complete(ctx, system, user, CompletionOptions{
		MaxTokens:   summaryMaxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("summarizing %s: %w", p.ID, err)
	}

	summary = truncateRunes(summary, summaryMaxRunes, summaryKeepRunes)
	s.log.Debug().Str("paper", p.ID).Int("chars", len([]rune(summary))).Msg("generated summary")
	return summary, nil
}

// truncateRunes cuts s to keep runes plus "..." when it exceeds limit runes.
func truncateRunes(s string, limit, keep int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:keep]) + "..."
}
