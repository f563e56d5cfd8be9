// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Operator joins plain keywords in a query.
type Operator string

const (
	OperatorAnd Operator = "AND"
	OperatorOr  Operator = "OR"
)

// ParseOperator accepts "and" or "or" in any case.
func ParseOperator(s string) (Operator, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AND":
		return OperatorAnd, nil
	case "OR":
		return OperatorOr, nil
	}
	return "", fmt.Errorf("invalid keyword operator %q: must be AND or OR", s)
}

// Query holds the structured search criteria.
type Query struct {
	Keywords   []string
	Operator   Operator
	Categories []string
	Since      time.Time
}

// compoundMarkers flag a single keyword as a boolean expression.
var compoundMarkers = []string{" AND ", " OR ", "(", ")"}

// wordOrParen matches a run of word characters or a single parenthesis.
var wordOrParen = regexp.MustCompile(`[\p{L}\p{N}_]+|[()]`)

const dateLayout = "20060102"

// BuildQuery renders q as an arXiv search_query expression. Clauses for
// keywords, categories and date range are joined with AND; an empty query
// becomes "all:*". The date range runs from q.Since to now, both in UTC.
func BuildQuery(q Query, now time.Time) string {
	var parts []string

	if kw := keywordClause(q.Keywords, q.Operator); kw != "" {
		parts = append(parts, kw)
	}

	if len(q.Categories) > 0 {
		cats := make([]string, 0, len(q.Categories))
		for _, c := range q.Categories {
			cats = append(cats, "cat:"+c)
		}
		parts = append(parts, "("+strings.Join(cats, " OR ")+")")
	}

	if !q.Since.IsZero() {
		parts = append(parts, fmt.Sprintf("submittedDate:[%s TO %s]",
			q.Since.UTC().Format(dateLayout), now.UTC().Format(dateLayout)))
	}

	if len(parts) == 0 {
		return "all:*"
	}
	return strings.Join(parts, " AND ")
}

// keywordClause builds the keyword part of a query, or "" when there is
// nothing to match.
func keywordClause(keywords []string, op Operator) string {
	if len(keywords) == 0 {
		return ""
	}

	if len(keywords) == 1 && isCompound(keywords[0]) {
		return "(" + compoundExpression(keywords[0]) + ")"
	}

	var terms []string
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		terms = append(terms, `all:"`+kw+`"`)
	}
	if len(terms) == 0 {
		return ""
	}

	sep := " OR "
	if op == OperatorAnd {
		sep = " AND "
	}
	return "(" + strings.Join(terms, sep) + ")"
}

func isCompound(kw string) bool {
	upper := strings.ToUpper(kw)
	for _, m := range compoundMarkers {
		if strings.Contains(upper, m) {
			return true
		}
	}
	return false
}

// compoundExpression quotes every word of a boolean expression as an
// all-fields term. AND/OR are upper-cased and all other characters are
// kept verbatim. Quoted phrases are not recognised; each word inside
// quotes is wrapped on its own.
func compoundExpression(expr string) string {
	return wordOrParen.ReplaceAllStringFunc(expr, func(tok string) string {
		switch up := strings.ToUpper(tok); {
		case up == "AND" || up == "OR":
			return up
		case tok == "(" || tok == ")":
			return tok
		default:
			return `all:"` + tok + `"`
		}
	})
}
