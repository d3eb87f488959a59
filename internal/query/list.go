package query

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"golang.org/x/sync/errgroup"
)

type (
	// BeforeQueryFunc runs after filters are applied and before ordering and
	// pagination. Callers use it to add joins or extra predicates the engine
	// knows nothing about.
	BeforeQueryFunc func(builder sq.SelectBuilder, values map[string]any) (sq.SelectBuilder, error)

	// ListQuery describes a flat list retrieval. A nil Page disables
	// pagination and returns the full ordered result set.
	ListQuery struct {
		Builder     sq.SelectBuilder
		Filters     Filters
		Order       OrderConfig
		Page        *PageConfig
		BeforeQuery BeforeQueryFunc
	}
)

// List applies filters, ordering and pagination to the base builder and scans
// the results into dst, a pointer to a slice. When pagination is active the
// row count and the page fetch run concurrently and the returned PageInfo
// describes the full result set; without pagination the PageInfo is nil.
//
// All configuration and shape validation happens before any query is issued.
func (e *Engine) List(ctx context.Context, q ListQuery, dst any) (*PageInfo, error) {
	if err := q.Order.validate(); err != nil {
		return nil, err
	}

	if q.Page != nil {
		if err := q.Page.validate(); err != nil {
			return nil, err
		}
	}

	if err := q.Filters.Validate(); err != nil {
		return nil, err
	}

	values, err := Normalize(q.Filters)
	if err != nil {
		return nil, err
	}

	builder, err := ApplyFilters(q.Builder, q.Filters, values)
	if err != nil {
		return nil, err
	}

	if q.BeforeQuery != nil {
		builder, err = q.BeforeQuery(builder, values)
		if err != nil {
			return nil, err
		}
	}

	builder = builder.OrderBy(q.Order.clause())

	if q.Page == nil {
		return nil, e.selectInto(ctx, builder, dst)
	}

	paged := builder.Offset(q.Page.offset()).Limit(uint64(q.Page.PerPage))

	var total int

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		var countErr error
		total, countErr = e.countRows(groupCtx, builder)

		return countErr
	})

	group.Go(func() error {
		return e.selectInto(groupCtx, paged, dst)
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}

	info := q.Page.info(total)

	return &info, nil
}
