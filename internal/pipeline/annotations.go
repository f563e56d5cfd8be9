// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"

	"github.com/pdiddy/arxiv-notifier/internal/annotate"
	"github.com/pdiddy/arxiv-notifier/pkg/types"
)

// annotationCache computes annotations at most once per paper within a
// cycle so both sinks see the same text.
type annotationCache struct {
	p        *Processor
	done     map[string]types.Annotations
	warnings []string
}

func newAnnotationCache(p *Processor) *annotationCache {
	return &annotationCache{p: p, done: make(map[string]types.Annotations)}
}

func (c *annotationCache) get(ctx context.Context, paper types.Paper) types.Annotations {
	if a, ok := c.done[paper.ID]; ok {
		return a
	}
	a := types.Annotations{
		Summary:   c.run(ctx, c.p.deps.Summarizer, paper),
		Relevance: c.run(ctx, c.p.deps.Relevance, paper),
	}
	c.done[paper.ID] = a
	return a
}

// run calls one annotator. Errors and panics yield an empty annotation
// and a warning.
func (c *annotationCache) run(ctx context.Context, a annotate.Annotator, paper types.Paper) string {
	if a == nil {
		return ""
	}
	text, err := safeAnnotate(ctx, a, paper)
	if err != nil {
		c.p.log.Warn().Err(err).Str("annotator", a.Name()).Str("paper", paper.ID).Msg("annotation failed")
		c.p.deps.Metrics.RecordAnnotationFailure(a.Name())
		c.warnings = append(c.warnings, fmt.Sprintf("%s failed for %s: %v", a.Name(), paper.ID, err))
		return ""
	}
	return text
}

func safeAnnotate(ctx context.Context, a annotate.Annotator, paper types.Paper) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return a.Annotate(ctx, paper)
}
