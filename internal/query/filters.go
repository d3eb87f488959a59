package query

import (
	sq "github.com/Masterminds/squirrel"
)

type (
	// Transform converts a filter's raw value into its query-ready form
	// before any predicate is compiled. A nil Transform keeps the raw value
	// unchanged.
	Transform interface {
		isTransform()
	}

	// TransformFunc is a caller-supplied transform. Returning nil marks the
	// value as absent so the filter is skipped.
	TransformFunc func(raw any) any

	arrayParseTransform struct{}
)

// ArrayParse parses a delimited string (or passes an existing slice through)
// into a homogeneous value list, for use with the InList strategy.
var ArrayParse Transform = arrayParseTransform{}

func (arrayParseTransform) isTransform() {}
func (TransformFunc) isTransform()       {}

type (
	// Strategy selects how a normalized filter value becomes predicates on
	// the query builder. A nil Strategy means plain equality.
	Strategy interface {
		isStrategy()
	}

	// StrategyFunc fully delegates predicate emission to the caller. It
	// receives the live builder, the filter's own normalized value, and all
	// normalized values for cross-field logic.
	StrategyFunc func(builder sq.SelectBuilder, value any, values map[string]any) (sq.SelectBuilder, error)

	withinRangeStrategy  struct{}
	inListStrategy       struct{}
	jsonSupersetStrategy struct{}
)

var (
	// WithinRange compiles a scalar into an equality predicate and a Range
	// value into zero to four comparison predicates.
	WithinRange Strategy = withinRangeStrategy{}

	// InList compiles the normalized value list into an IN predicate.
	InList Strategy = inListStrategy{}

	// JSONSuperset compiles a jsonb containment predicate testing that the
	// column structurally contains the filter's raw value. The raw value is
	// used directly; transform and default do not apply to the predicate.
	JSONSuperset Strategy = jsonSupersetStrategy{}
)

func (withinRangeStrategy) isStrategy()  {}
func (inListStrategy) isStrategy()       {}
func (jsonSupersetStrategy) isStrategy() {}
func (StrategyFunc) isStrategy()         {}

type (
	// FieldFilter describes one declarative query constraint: the column (or
	// SQL expression) it targets, the caller-supplied raw value, and how that
	// value is normalized and compiled.
	FieldFilter struct {
		Column    string
		Raw       any
		Default   any
		Min       any
		Transform Transform
		Strategy  Strategy
	}

	// Filters maps filter names to their descriptors. Predicates are
	// conjunctive, so iteration order does not affect correctness; the
	// engine still iterates in sorted key order to keep generated SQL
	// deterministic.
	Filters map[string]FieldFilter
)

func (f FieldFilter) customStrategy() (StrategyFunc, bool) {
	fn, ok := f.Strategy.(StrategyFunc)

	return fn, ok
}

// Validate checks filter descriptors for configuration mistakes. Every
// non-custom strategy needs a column or expression to compile against.
func (f Filters) Validate() error {
	for _, name := range sortedKeys(f) {
		spec := f[name]
		if _, custom := spec.customStrategy(); custom {
			continue
		}

		if spec.Column == "" {
			return newConfigError("filter %q has no column and no custom strategy", name)
		}
	}

	return nil
}
