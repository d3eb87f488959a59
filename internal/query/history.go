package query

import (
	"context"
	"time"
)

type (
	// BucketUnit is the grouping granularity of a history query.
	BucketUnit string

	// AggregateView describes a precomputed rolling-aggregate table for one
	// bucket unit: where it lives, which column holds the bucket timestamp
	// and which holds the per-bucket count.
	AggregateView struct {
		Table        string
		BucketColumn string
		CountColumn  string
	}

	// HistoryQuery describes a time-bucketed count over a table. TimeFilter
	// names the filter keyed on the time dimension and TimeColumn the raw
	// timestamp column; SecondaryFilter optionally names one more filter the
	// rolling-aggregate views can still serve.
	HistoryQuery struct {
		Table           string
		TimeFilter      string
		TimeColumn      string
		SecondaryFilter string
		Views           map[BucketUnit]AggregateView
		RetentionLimit  time.Time
		GroupBy         BucketUnit
		Filters         Filters
		Order           OrderConfig
		Page            PageConfig
	}

	// HistoryBucket is one time bucket and the number of rows in it.
	HistoryBucket struct {
		Bucket time.Time `db:"bucket" json:"bucket"`
		Count  int64     `db:"count" json:"count"`
	}

	// HistoryPage is one page of history buckets with its page metadata.
	HistoryPage struct {
		PageInfo
		Unit    BucketUnit      `json:"groupBy"`
		Buckets []HistoryBucket `json:"results"`
	}
)

const (
	BucketHour  BucketUnit = "hour"
	BucketDay   BucketUnit = "day"
	BucketMonth BucketUnit = "month"

	defaultTimeFilter = "createdDate"
	defaultTimeColumn = "created_timestamp"
)

func (u BucketUnit) valid() bool {
	switch u {
	case BucketHour, BucketDay, BucketMonth:
		return true
	default:
		return false
	}
}

// width returns the bucket interval. The bucketing primitive has no month
// unit, so a month is approximated as 30 days.
func (u BucketUnit) width() string {
	switch u {
	case BucketHour:
		return "1 hour"
	case BucketMonth:
		return "30 days"
	default:
		return "1 day"
	}
}

func bucketExpr(unit BucketUnit, column string) string {
	return "time_bucket('" + unit.width() + "', " + column + ")"
}

// History counts rows per time bucket. When a rolling-aggregate view exists
// for the requested unit and only the time and secondary filters carry
// values, the view is read instead of the raw table. Queries whose time range
// reaches past RetentionLimit while non-time filters are active are refused.
//
// Pagination slices the fully fetched ordered bucket list in memory; bucket
// cardinality is bounded by the retention window.
func (e *Engine) History(ctx context.Context, q HistoryQuery) (*HistoryPage, error) {
	if !q.GroupBy.valid() {
		return nil, newConfigError("history groupBy must be one of hour, day, month; got %q", q.GroupBy)
	}

	if q.TimeFilter == "" {
		q.TimeFilter = defaultTimeFilter
	}

	if q.TimeColumn == "" {
		q.TimeColumn = defaultTimeColumn
	}

	if err := q.Order.validate(); err != nil {
		return nil, err
	}

	if err := q.Page.validate(); err != nil {
		return nil, err
	}

	if err := q.Filters.Validate(); err != nil {
		return nil, err
	}

	values, err := Normalize(q.Filters)
	if err != nil {
		return nil, err
	}

	hasNonTimeFilter := false
	for name, value := range values {
		if name != q.TimeFilter && name != q.SecondaryFilter && value != nil {
			hasNonTimeFilter = true

			break
		}
	}

	if hasNonTimeFilter {
		if err := e.checkRetention(q, values); err != nil {
			return nil, err
		}
	}

	view, hasView := q.Views[q.GroupBy]
	useView := hasView && !hasNonTimeFilter

	builder := StatementBuilder.Select()

	if useView {
		filters := Filters{}

		if spec, ok := q.Filters[q.TimeFilter]; ok {
			spec.Column = view.BucketColumn
			filters[q.TimeFilter] = spec
		}

		if q.SecondaryFilter != "" {
			if spec, ok := q.Filters[q.SecondaryFilter]; ok {
				filters[q.SecondaryFilter] = spec
			}
		}

		builder = builder.Column(view.BucketColumn + " AS bucket").From(view.Table)

		// The view keeps one row per bucket and secondary dimension; a
		// secondary filter can still match several of them.
		if q.SecondaryFilter != "" {
			builder = builder.Column("SUM(" + view.CountColumn + ") AS count")
		} else {
			builder = builder.Column(view.CountColumn + " AS count")
		}

		builder, err = ApplyFilters(builder, filters, values)
		if err != nil {
			return nil, err
		}

		if q.SecondaryFilter != "" {
			builder = builder.GroupBy(view.BucketColumn)
		}
	} else {
		expr := bucketExpr(q.GroupBy, q.TimeColumn)

		builder = builder.
			Columns(expr+" AS bucket", "COUNT(*) AS count").
			From(q.Table)

		builder, err = ApplyFilters(builder, q.Filters, values)
		if err != nil {
			return nil, err
		}

		builder = builder.GroupBy(expr)
	}

	builder = builder.OrderBy(q.Order.clause())

	e.logger.Debug().
		Str("table", q.Table).
		Str("group_by", string(q.GroupBy)).
		Bool("continuous_aggregate", useView).
		Msg("planned history query")

	var buckets []HistoryBucket
	if err := e.selectInto(ctx, builder, &buckets); err != nil {
		return nil, err
	}

	start := (q.Page.Page - 1) * q.Page.PerPage
	end := start + q.Page.PerPage

	if start > len(buckets) {
		start = len(buckets)
	}

	if end > len(buckets) {
		end = len(buckets)
	}

	return &HistoryPage{
		PageInfo: q.Page.info(len(buckets)),
		Unit:     q.GroupBy,
		Buckets:  buckets[start:end],
	}, nil
}

// checkRetention refuses wide-filter history queries whose time range starts
// before the retention limit; only the time and secondary filters are indexed
// that far back.
func (e *Engine) checkRetention(q HistoryQuery, values map[string]any) error {
	if q.RetentionLimit.IsZero() {
		return nil
	}

	value := values[q.TimeFilter]
	if value == nil {
		return nil
	}

	bound := value

	r, isRange, err := asRange(q.TimeFilter, value)
	if err != nil {
		return err
	}

	if isRange {
		lower, ok := lowerBound(r)
		if !ok {
			return nil
		}

		bound = lower
	}

	boundTime, ok := asBoundTime(bound)
	if !ok {
		return nil
	}

	if boundTime.Before(q.RetentionLimit) {
		return newRetentionError("all filters disabled before %s", q.RetentionLimit.Format(time.RFC3339))
	}

	return nil
}

func asBoundTime(v any) (time.Time, bool) {
	switch b := v.(type) {
	case time.Time:
		return b, true

	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, b); err == nil {
				return t, true
			}
		}

		return time.Time{}, false

	default:
		return time.Time{}, false
	}
}
