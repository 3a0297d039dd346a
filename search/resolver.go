// Package search turns the single free-text lookup box into a query over
// equipment. A term may be an identifier, a printed scan code or a fragment of
// the description or brand; the caller does not need to know which.
package search

import (
	"strings"

	"github.com/google/uuid"
)

type Field string

const (
	FieldID          Field = "id"
	FieldScanCode    Field = "scan_code"
	FieldDescription Field = "description"
	FieldBrand       Field = "brand"
)

type Match int

const (
	// MatchExact compares the column to the value as-is.
	MatchExact Match = iota
	// MatchContains is a case-insensitive substring match; Value is lowercased.
	MatchContains
)

type Predicate struct {
	Field Field
	Match Match
	Value string
}

// Query is a disjunction of predicates. Exact predicates take precedence: when
// any of them matches, the substring predicates are not consulted.
type Query struct {
	Term       string
	Predicates []Predicate
	// Status optionally narrows the result to one stored status.
	Status string
}

func (q Query) Empty() bool { return len(q.Predicates) == 0 }

func (q Query) Exact() []Predicate { return q.filter(MatchExact) }

func (q Query) Contains() []Predicate { return q.filter(MatchContains) }

func (q Query) filter(m Match) []Predicate {
	var out []Predicate
	for _, p := range q.Predicates {
		if p.Match == m {
			out = append(out, p)
		}
	}
	return out
}

// Resolve builds the query for term. Sub-predicates whose precondition does not
// hold are left out rather than evaluated as a non-match: a term that is not
// identifier-shaped never produces an id predicate.
func Resolve(term string) Query {
	term = strings.TrimSpace(term)
	q := Query{Term: term}
	if term == "" {
		return q
	}

	if id, err := uuid.Parse(term); err == nil {
		q.Predicates = append(q.Predicates, Predicate{Field: FieldID, Match: MatchExact, Value: id.String()})
	}
	q.Predicates = append(q.Predicates,
		Predicate{Field: FieldScanCode, Match: MatchExact, Value: term},
		Predicate{Field: FieldDescription, Match: MatchContains, Value: strings.ToLower(term)},
		Predicate{Field: FieldBrand, Match: MatchContains, Value: strings.ToLower(term)},
	)
	return q
}

// WithStatus returns a copy of q restricted to status (ignored when blank).
func (q Query) WithStatus(status string) Query {
	q.Status = strings.TrimSpace(status)
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikePattern wraps v for a `LIKE ? ESCAPE '\'` comparison.
func LikePattern(v string) string {
	return "%" + likeEscaper.Replace(v) + "%"
}
