package query

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/architeacher/registry/pkg/logger"
	"github.com/jackc/pgx/v5"
)

// StatementBuilder is the shared squirrel builder with Postgres placeholders.
// Callers seed their base selects from it so the engine and the repositories
// produce compatible SQL.
var StatementBuilder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type (
	// Querier is the slice of pool operations the engine needs.
	// pgxpool.Pool and pgxmock both satisfy it.
	Querier interface {
		Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	}

	// Engine turns declarative filter, order and pagination descriptions
	// into executed relational queries. It holds no request state; one
	// instance serves concurrent callers.
	Engine struct {
		pool    Querier
		scanner Scanner
		logger  logger.Logger
	}
)

// NewEngine creates an Engine on the given pool and row scanner.
func NewEngine(pool Querier, scanner Scanner, log logger.Logger) *Engine {
	return &Engine{
		pool:    pool,
		scanner: scanner,
		logger:  log,
	}
}

type (
	// OrderConfig names the column to order by and the direction, both
	// required.
	OrderConfig struct {
		OrderBy string
		Order   string
	}

	// PageConfig selects one page of results. Both values are one-based.
	PageConfig struct {
		Page    int
		PerPage int
	}

	// PageInfo carries the pagination metadata of a completed list query.
	PageInfo struct {
		NbResults int `json:"nbResults"`
		NbPages   int `json:"nbPages"`
		Page      int `json:"page"`
		PerPage   int `json:"nbResultsPerPage"`
	}
)

func (o OrderConfig) validate() error {
	if o.OrderBy == "" {
		return newValidationError("orderConfig", "orderBy is required")
	}

	switch strings.ToUpper(o.Order) {
	case string(sortAsc), string(sortDesc):
		return nil
	default:
		return newValidationError("orderConfig", "order must be asc or desc")
	}
}

func (o OrderConfig) clause() string {
	return fmt.Sprintf("%s %s", o.OrderBy, strings.ToUpper(o.Order))
}

type sortDirection string

const (
	sortAsc  sortDirection = "ASC"
	sortDesc sortDirection = "DESC"
)

func (p PageConfig) validate() error {
	if p.Page < 1 {
		return newValidationError("paginationConfig", "page must be at least 1")
	}

	if p.PerPage < 1 {
		return newValidationError("paginationConfig", "nbResultsPerPage must be at least 1")
	}

	return nil
}

func (p PageConfig) info(total int) PageInfo {
	nbPages := total / p.PerPage
	if total%p.PerPage != 0 {
		nbPages++
	}

	return PageInfo{
		NbResults: total,
		NbPages:   nbPages,
		Page:      p.Page,
		PerPage:   p.PerPage,
	}
}

func (p PageConfig) offset() uint64 {
	return uint64((p.Page - 1) * p.PerPage)
}

// countRows wraps a fully filtered builder in a derived subquery and counts
// its rows, ignoring any limit or offset applied afterwards to the original.
func (e *Engine) countRows(ctx context.Context, builder sq.SelectBuilder) (int, error) {
	counted := StatementBuilder.Select("COUNT(*)").FromSelect(builder, "counted")

	sql, args, err := counted.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	rows, err := e.pool.Query(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDatabaseQuery, err)
	}
	defer rows.Close()

	var total int64
	if err := e.scanner.ScanOne(&total, rows); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDatabaseQuery, err)
	}

	return int(total), nil
}

// selectInto executes the builder and scans all rows into dst, a pointer to
// a slice.
func (e *Engine) selectInto(ctx context.Context, builder sq.SelectBuilder, dst any) error {
	sql, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := e.pool.Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseQuery, err)
	}
	defer rows.Close()

	if err := e.scanner.ScanAll(dst, rows); err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseQuery, err)
	}

	return nil
}
