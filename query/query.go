// Package query provides the minimal filter surface the mapping engine
// needs: equality, membership and existence predicates over stored field
// names. It is deliberately not a query language; backends either evaluate
// filters client-side with Matches or translate them to SQL.
package query

import (
	"fmt"
	"math"
	"strings"

	"github.com/lib/pq"
)

// Op is a predicate operator
type Op int

const (
	// OpEq matches documents whose field equals the value
	OpEq Op = iota
	// OpIn matches documents whose field equals any of the values
	OpIn
	// OpExists matches documents that carry the field at all
	OpExists
)

// String returns the string representation of the operator
func (o Op) String() string {
	switch o {
	case OpEq:
		return "eq"
	case OpIn:
		return "in"
	case OpExists:
		return "exists"
	default:
		return "unknown"
	}
}

// Predicate is one condition on a stored field
type Predicate struct {
	Field string
	Op    Op
	Value any
}

// Filter is a conjunction of predicates. A nil or empty Filter matches
// every document.
type Filter []Predicate

// Eq starts a filter with an equality predicate
func Eq(field string, value any) Filter {
	return Filter{{Field: field, Op: OpEq, Value: value}}
}

// In starts a filter with a membership predicate
func In(field string, values ...any) Filter {
	return Filter{{Field: field, Op: OpIn, Value: values}}
}

// Exists starts a filter with an existence predicate
func Exists(field string) Filter {
	return Filter{{Field: field, Op: OpExists}}
}

// Eq appends an equality predicate
func (f Filter) Eq(field string, value any) Filter {
	return append(f, Predicate{Field: field, Op: OpEq, Value: value})
}

// In appends a membership predicate
func (f Filter) In(field string, values ...any) Filter {
	return append(f, Predicate{Field: field, Op: OpIn, Value: values})
}

// Exists appends an existence predicate
func (f Filter) Exists(field string) Filter {
	return append(f, Predicate{Field: field, Op: OpExists})
}

// Matches evaluates the filter against a raw document. Scalar comparison is
// done on canonical text values so that numeric identities survive a JSON
// round-trip (int64(7) and float64(7) compare equal).
func (f Filter) Matches(doc map[string]any) bool {
	for _, p := range f {
		v, present := doc[p.Field]
		switch p.Op {
		case OpEq:
			if !present || textValue(v) != textValue(p.Value) {
				return false
			}
		case OpIn:
			if !present {
				return false
			}
			values, ok := p.Value.([]any)
			if !ok {
				return false
			}
			found := false
			for _, candidate := range values {
				if textValue(v) == textValue(candidate) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case OpExists:
			if !present {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// SQL translates the filter into a PostgreSQL WHERE fragment over a JSONB
// column, with placeholders numbered from startArg. An empty filter yields
// an empty fragment.
func (f Filter) SQL(column string, startArg int) (string, []any) {
	if len(f) == 0 {
		return "", nil
	}

	var (
		clauses []string
		args    []any
		n       = startArg
	)
	for _, p := range f {
		switch p.Op {
		case OpEq:
			clauses = append(clauses, fmt.Sprintf("%s->>'%s' = $%d", column, p.Field, n))
			args = append(args, textValue(p.Value))
			n++
		case OpIn:
			values, _ := p.Value.([]any)
			texts := make([]string, 0, len(values))
			for _, v := range values {
				texts = append(texts, textValue(v))
			}
			clauses = append(clauses, fmt.Sprintf("%s->>'%s' = ANY($%d)", column, p.Field, n))
			args = append(args, pq.Array(texts))
			n++
		case OpExists:
			clauses = append(clauses, fmt.Sprintf("(%s -> '%s') IS NOT NULL", column, p.Field))
		}
	}
	return strings.Join(clauses, " AND "), args
}

// textValue renders a scalar in canonical text form, collapsing the
// integer/float distinction JSON decoding introduces.
func textValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%v", x)
	case []byte:
		return string(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
