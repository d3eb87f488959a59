package query

import (
	"context"
	"errors"
	"math"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/sync/errgroup"
)

const defaultAvgPrecision = 2

// pgInvalidTextRepresentation is raised when a non-numeric value is cast to
// numeric inside the aggregation subquery.
const pgInvalidTextRepresentation = "22P02"

type (
	// AggregateQuery describes a grouped aggregation over a table. GroupBy
	// and Field are attribute paths compiled through SQLExpression; Field is
	// optional and enables avg/sum/min/max over its numeric cast.
	AggregateQuery struct {
		Table        string
		GroupBy      string
		Field        string
		AvgPrecision int
		Filters      Filters
		Order        OrderConfig
		Page         PageConfig
	}

	// AggregateRow is one group of an aggregation result. The numeric
	// operator fields are nil, never absent, when no field was aggregated or
	// the group contributed no numeric rows.
	AggregateRow struct {
		GroupBy      string   `json:"groupBy"`
		GroupByValue any      `json:"groupByValue"`
		Count        int64    `json:"count"`
		Avg          *float64 `json:"avg"`
		Sum          *float64 `json:"sum"`
		Min          *float64 `json:"min"`
		Max          *float64 `json:"max"`
	}

	// AggregatePage is one page of aggregation rows with its page metadata.
	AggregatePage struct {
		PageInfo
		Rows []AggregateRow `json:"results"`
	}

	aggregateScanRow struct {
		GroupValue any      `db:"group_value"`
		RowCount   int64    `db:"row_count"`
		Avg        *float64 `db:"avg_value"`
		Sum        *float64 `db:"sum_value"`
		Min        *float64 `db:"min_value"`
		Max        *float64 `db:"max_value"`
	}
)

// Aggregate builds and runs a grouped aggregation: an inner subquery selects
// the grouping expression, a row count and, when Field is set, avg/sum/min/
// max of the field cast to numeric; the outer query drops null grouping keys,
// orders and paginates. Page count and page fetch run concurrently.
func (e *Engine) Aggregate(ctx context.Context, q AggregateQuery) (*AggregatePage, error) {
	if err := q.Order.validate(); err != nil {
		return nil, err
	}

	if err := q.Page.validate(); err != nil {
		return nil, err
	}

	if err := q.Filters.Validate(); err != nil {
		return nil, err
	}

	if q.Field != "" && q.Field == q.GroupBy {
		return nil, newUnprocessableError("field %q cannot be used as both grouping key and aggregated field", q.Field)
	}

	values, err := Normalize(q.Filters)
	if err != nil {
		return nil, err
	}

	groupExpr := SQLExpression(q.GroupBy)

	inner := StatementBuilder.
		Select(groupExpr+" AS group_value", "COUNT(*) AS row_count").
		From(q.Table)

	if q.Field != "" {
		cast := "(" + SQLExpression(q.Field) + ")::numeric"
		inner = inner.Columns(
			"AVG("+cast+") AS avg_value",
			"SUM("+cast+") AS sum_value",
			"MIN("+cast+") AS min_value",
			"MAX("+cast+") AS max_value",
		)
	}

	inner, err = ApplyFilters(inner, q.Filters, values)
	if err != nil {
		return nil, err
	}

	inner = inner.GroupBy(groupExpr)

	outer := StatementBuilder.
		Select("*").
		FromSelect(inner, "grouped").
		Where("group_value IS NOT NULL").
		OrderBy(q.Order.clause())

	paged := outer.Offset(q.Page.offset()).Limit(uint64(q.Page.PerPage))

	var (
		total    int
		scanRows []aggregateScanRow
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		var countErr error
		total, countErr = e.countRows(groupCtx, outer)

		return countErr
	})

	group.Go(func() error {
		return e.selectInto(groupCtx, paged, &scanRows)
	})

	if err := group.Wait(); err != nil {
		if isNonNumericCastError(err) {
			return nil, newUnprocessableError("non-numeric value found for field %s", q.Field)
		}

		return nil, err
	}

	precision := q.AvgPrecision
	if precision == 0 {
		precision = defaultAvgPrecision
	}

	rows := make([]AggregateRow, 0, len(scanRows))
	for _, row := range scanRows {
		rows = append(rows, AggregateRow{
			GroupBy:      q.GroupBy,
			GroupByValue: row.GroupValue,
			Count:        row.RowCount,
			Avg:          roundPtr(row.Avg, precision),
			Sum:          row.Sum,
			Min:          row.Min,
			Max:          row.Max,
		})
	}

	return &AggregatePage{
		PageInfo: q.Page.info(total),
		Rows:     rows,
	}, nil
}

func roundPtr(v *float64, precision int) *float64 {
	if v == nil {
		return nil
	}

	factor := math.Pow10(precision)
	rounded := math.Round(*v*factor) / factor

	return &rounded
}

func isNonNumericCastError(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == pgInvalidTextRepresentation
}
