package query

import (
	"encoding/json"

	sq "github.com/Masterminds/squirrel"
)

// ApplyFilters compiles every active filter into conjunctive predicates on
// the builder. A filter is active when its normalized value is non-nil;
// inactive filters emit nothing.
func ApplyFilters(builder sq.SelectBuilder, filters Filters, values map[string]any) (sq.SelectBuilder, error) {
	for _, name := range sortedKeys(filters) {
		spec := filters[name]

		value := values[name]
		if value == nil {
			continue
		}

		var err error

		builder, err = applyFilter(builder, name, spec, value, values)
		if err != nil {
			return builder, err
		}
	}

	return builder, nil
}

func applyFilter(
	builder sq.SelectBuilder,
	name string,
	spec FieldFilter,
	value any,
	values map[string]any,
) (sq.SelectBuilder, error) {
	switch strategy := spec.Strategy.(type) {
	case nil:
		return builder.Where(sq.Eq{spec.Column: value}), nil

	case withinRangeStrategy:
		return applyRangeFilter(builder, name, spec, value)

	case inListStrategy:
		return builder.Where(sq.Eq{spec.Column: toValueList(value)}), nil

	case jsonSupersetStrategy:
		encoded, err := json.Marshal(spec.Raw)
		if err != nil {
			return builder, newConfigError("filter %q: cannot encode containment value: %v", name, err)
		}

		return builder.Where(sq.Expr(spec.Column+" @> ?::jsonb", string(encoded))), nil

	case StrategyFunc:
		return strategy(builder, value, values)

	default:
		return builder, newConfigError("filter %q has an unknown strategy", name)
	}
}

func applyRangeFilter(builder sq.SelectBuilder, name string, spec FieldFilter, value any) (sq.SelectBuilder, error) {
	r, isRange, err := asRange(name, value)
	if err != nil {
		return builder, err
	}

	if !isRange {
		if spec.Min != nil {
			if _, err := enforceMin(name, Range{Gte: value}, spec.Min); err != nil {
				return builder, err
			}
		}

		return builder.Where(sq.Eq{spec.Column: value}), nil
	}

	r, err = enforceMin(name, r, spec.Min)
	if err != nil {
		return builder, err
	}

	// Only truthy bounds are emitted: a bound of 0, "" or false is treated
	// as unset. Known quirk carried over from the original engine; callers
	// rely on it to disable a bound.
	if truthy(r.Gt) {
		builder = builder.Where(sq.Gt{spec.Column: r.Gt})
	}

	if truthy(r.Gte) {
		builder = builder.Where(sq.GtOrEq{spec.Column: r.Gte})
	}

	if truthy(r.Lt) {
		builder = builder.Where(sq.Lt{spec.Column: r.Lt})
	}

	if truthy(r.Lte) {
		builder = builder.Where(sq.LtOrEq{spec.Column: r.Lte})
	}

	return builder, nil
}

func toValueList(value any) []any {
	switch v := value.(type) {
	case []any:
		return v

	case []string:
		values := make([]any, len(v))
		for i, s := range v {
			values[i] = s
		}

		return values

	default:
		return []any{value}
	}
}
