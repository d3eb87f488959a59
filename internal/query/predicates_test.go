package query_test

import (
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/architeacher/registry/internal/query"
	"github.com/stretchr/testify/require"
)

func compileFilters(t *testing.T, filters query.Filters) (string, []any) {
	t.Helper()

	values, err := query.Normalize(filters)
	require.NoError(t, err)

	builder := query.StatementBuilder.Select("*").From("events")
	builder, err = query.ApplyFilters(builder, filters, values)
	require.NoError(t, err)

	sql, args, err := builder.ToSql()
	require.NoError(t, err)

	return sql, args
}

func TestApplyFilters_Equality(t *testing.T) {
	t.Parallel()

	sql, args := compileFilters(t, query.Filters{
		"tenantId": {Column: "tenant_id", Raw: "acme"},
	})

	require.Contains(t, sql, "tenant_id = $1")
	require.Equal(t, []any{"acme"}, args)
}

func TestApplyFilters_AbsentFilterEmitsNoPredicate(t *testing.T) {
	t.Parallel()

	sql, args := compileFilters(t, query.Filters{
		"tenantId": {Column: "tenant_id", Raw: "acme"},
		"actor":    {Column: "actor"},
	})

	require.NotContains(t, sql, "actor")
	require.Equal(t, []any{"acme"}, args)
}

func TestApplyFilters_InList(t *testing.T) {
	t.Parallel()

	sql, args := compileFilters(t, query.Filters{
		"type": {Column: "event_type", Raw: "created,updated", Transform: query.ArrayParse, Strategy: query.InList},
	})

	require.Contains(t, sql, "event_type IN ($1,$2)")
	require.Equal(t, []any{"created", "updated"}, args)
}

func TestApplyFilters_JSONSuperset(t *testing.T) {
	t.Parallel()

	sql, args := compileFilters(t, query.Filters{
		"payload": {
			Column:   "payload",
			Raw:      map[string]any{"source": "api"},
			Strategy: query.JSONSuperset,
		},
	})

	require.Contains(t, sql, "payload @> $1::jsonb")
	require.Equal(t, []any{`{"source":"api"}`}, args)
}

func TestApplyFilters_RangeBounds(t *testing.T) {
	t.Parallel()

	sql, args := compileFilters(t, query.Filters{
		"score": {Column: "score", Raw: query.Range{Gt: 5, Lte: 10}, Strategy: query.WithinRange},
	})

	require.Contains(t, sql, "score > $1")
	require.Contains(t, sql, "score <= $2")
	require.Equal(t, []any{5, 10}, args)
}

func TestApplyFilters_RangeScalarIsEquality(t *testing.T) {
	t.Parallel()

	sql, args := compileFilters(t, query.Filters{
		"score": {Column: "score", Raw: 7, Strategy: query.WithinRange},
	})

	require.Contains(t, sql, "score = $1")
	require.Equal(t, []any{7}, args)
}

func TestApplyFilters_RangeFromMap(t *testing.T) {
	t.Parallel()

	sql, args := compileFilters(t, query.Filters{
		"score": {
			Column:   "score",
			Raw:      map[string]any{"gte": 5, "lt": 10},
			Strategy: query.WithinRange,
		},
	})

	require.Contains(t, sql, "score >= $1")
	require.Contains(t, sql, "score < $2")
	require.Equal(t, []any{5, 10}, args)
}

func TestApplyFilters_RangeRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	filters := query.Filters{
		"score": {
			Column:   "score",
			Raw:      map[string]any{"gte": 5, "around": 7},
			Strategy: query.WithinRange,
		},
	}

	values, err := query.Normalize(filters)
	require.NoError(t, err)

	builder := query.StatementBuilder.Select("*").From("events")
	_, err = query.ApplyFilters(builder, filters, values)

	var validationErr *query.ValidationError

	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "score", validationErr.Field)
}

// A zero bound is treated as unset and never reaches the query.
func TestApplyFilters_ZeroBoundIsDropped(t *testing.T) {
	t.Parallel()

	sql, args := compileFilters(t, query.Filters{
		"score": {Column: "score", Raw: query.Range{Gt: 0, Lt: 10}, Strategy: query.WithinRange},
	})

	require.NotContains(t, sql, "score > $")
	require.Contains(t, sql, "score < $1")
	require.Equal(t, []any{10}, args)
}

func TestApplyFilters_MinInjectsLowerBound(t *testing.T) {
	t.Parallel()

	sql, args := compileFilters(t, query.Filters{
		"score": {Column: "score", Raw: query.Range{Lt: 50}, Strategy: query.WithinRange, Min: 10},
	})

	require.Contains(t, sql, "score >= $1")
	require.Contains(t, sql, "score < $2")
	require.Equal(t, []any{10, 50}, args)
}

func TestApplyFilters_MinRejectsLowerValue(t *testing.T) {
	t.Parallel()

	filters := query.Filters{
		"score": {Column: "score", Raw: query.Range{Gte: 5}, Strategy: query.WithinRange, Min: 10},
	}

	values, err := query.Normalize(filters)
	require.NoError(t, err)

	builder := query.StatementBuilder.Select("*").From("events")
	_, err = query.ApplyFilters(builder, filters, values)

	require.Error(t, err)
	require.Contains(t, err.Error(), "value cannot be lower than 10")
}

func TestApplyFilters_MinKeepsCallerValueUntouched(t *testing.T) {
	t.Parallel()

	raw := query.Range{Lt: 50}
	filters := query.Filters{
		"score": {Column: "score", Raw: raw, Strategy: query.WithinRange, Min: 10},
	}

	values, err := query.Normalize(filters)
	require.NoError(t, err)

	builder := query.StatementBuilder.Select("*").From("events")
	_, err = query.ApplyFilters(builder, filters, values)

	require.NoError(t, err)
	require.Equal(t, query.Range{Lt: 50}, raw)
	require.Equal(t, query.Range{Lt: 50}, values["score"])
}

func TestApplyFilters_CustomStrategy(t *testing.T) {
	t.Parallel()

	search := query.StrategyFunc(func(builder sq.SelectBuilder, value any, values map[string]any) (sq.SelectBuilder, error) {
		require.Equal(t, "acme", values["tenantId"])

		return builder.Where(sq.Expr("search_vector @@ plainto_tsquery(?)", value)), nil
	})

	sql, args := compileFilters(t, query.Filters{
		"tenantId": {Column: "tenant_id", Raw: "acme"},
		"search":   {Raw: "invoice", Strategy: search},
	})

	require.Contains(t, sql, "search_vector @@ plainto_tsquery($1)")
	require.Contains(t, sql, "tenant_id = $2")
	require.Equal(t, []any{"invoice", "acme"}, args)
}

func TestFiltersValidate_RequiresColumnWithoutCustomStrategy(t *testing.T) {
	t.Parallel()

	err := query.Filters{
		"broken": {Raw: "value"},
	}.Validate()

	var configErr *query.ConfigError

	require.ErrorAs(t, err, &configErr)
	require.Contains(t, configErr.Message, `"broken"`)
}
