package search

import (
	"slices"
	"strings"

	"github.com/poiesic/placefinder/core"
)

// DefaultMinScore is the score below which results are dropped.
const DefaultMinScore = 15

// MaxScore is the score of a perfect match and of every item for an empty query.
const MaxScore = 100

// Relevance weights.
const (
	nameFullMatch    = 50
	nameTokenMatch   = 20
	typeFullMatch    = 30
	typeTokenMatch   = 15
	primaryTypeMatch = 25
	categoryMatch    = 20
	descriptionMatch = 10
)

// Scorable is anything that exposes text fields for scoring.
type Scorable interface {
	Searchable() core.Searchable
}

// Scored pairs an item with its relevance score.
type Scored[T any] struct {
	Item  T
	Score int
}

// Score rates how well s matches query on a 0-100 scale. Matching ignores
// case, and underscores in type tags count as spaces.
func Score(s core.Searchable, query string) int {
	q := normalizeText(query)
	if q == "" {
		return MaxScore
	}
	tokens := queryTokens(q)

	score := 0
	name := normalizeText(s.Name)
	if strings.Contains(name, q) {
		score += nameFullMatch
	} else {
		for _, token := range tokens {
			if strings.Contains(name, token) {
				score += nameTokenMatch
			}
		}
	}

	types := make([]string, len(s.Types))
	for i, t := range s.Types {
		types[i] = normalizeText(t)
	}
	if anyContains(types, q) {
		score += typeFullMatch
	} else {
		for _, token := range tokens {
			if anyContains(types, token) {
				score += typeTokenMatch
			}
		}
	}

	if strings.Contains(normalizeText(s.PrimaryType), q) {
		score += primaryTypeMatch
	}
	if strings.Contains(normalizeText(s.Category), q) {
		score += categoryMatch
	}
	if strings.Contains(normalizeText(s.Description), q) {
		score += descriptionMatch
	}

	return min(score, MaxScore)
}

// FilterAndSort scores items, drops those below minScore and sorts the rest
// by descending score. Items with equal scores keep their input order.
func FilterAndSort[T Scorable](items []T, query string, minScore int) []Scored[T] {
	scored := make([]Scored[T], 0, len(items))
	for _, item := range items {
		score := Score(item.Searchable(), query)
		if score < minScore {
			continue
		}
		scored = append(scored, Scored[T]{Item: item, Score: score})
	}

	slices.SortStableFunc(scored, func(a, b Scored[T]) int {
		return b.Score - a.Score
	})
	return scored
}
