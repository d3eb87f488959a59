package repos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/architeacher/registry/internal/config"
	"github.com/architeacher/registry/internal/domain/model"
	"github.com/architeacher/registry/internal/query"
	"github.com/architeacher/registry/pkg/logger"
	"github.com/google/uuid"
)

const eventsTable = "events"

const (
	defaultPage    = 1
	defaultPerPage = 20
)

var eventColumns = map[string]string{
	"createdDate": "created_date",
	"tenantId":    "tenant_id",
	"type":        "event_type",
	"actor":       "actor",
}

// Rolling aggregates maintained alongside the raw events table. There is no
// month view; month buckets always compute from the raw table.
var activityViews = map[query.BucketUnit]query.AggregateView{
	query.BucketHour: {Table: "events_activity_1h", BucketColumn: "bucket", CountColumn: "events_count"},
	query.BucketDay:  {Table: "events_activity_1d", BucketColumn: "bucket", CountColumn: "events_count"},
}

type (
	// EventsRepository reads tenant audit events through the query engine.
	EventsRepository struct {
		engine    *query.Engine
		retention config.Retention
		logger    logger.Logger
		now       func() time.Time
	}

	eventRow struct {
		ID        string         `db:"id"`
		TenantID  string         `db:"tenant_id"`
		Type      string         `db:"event_type"`
		Actor     string         `db:"actor"`
		Payload   map[string]any `db:"payload"`
		CreatedAt time.Time      `db:"created_date"`
	}
)

// NewEventsRepository creates an EventsRepository on the given engine.
func NewEventsRepository(engine *query.Engine, retention config.Retention, log logger.Logger) *EventsRepository {
	return &EventsRepository{
		engine:    engine,
		retention: retention,
		logger:    log,
		now:       time.Now,
	}
}

// List returns one page of a tenant's events, newest first unless the filter
// sorts otherwise.
func (r *EventsRepository) List(ctx context.Context, filter model.EventFilter) ([]*model.Event, *query.PageInfo, error) {
	if filter.TenantID == "" {
		return nil, nil, model.ErrMissingTenant
	}

	base := query.StatementBuilder.
		Select("id", "tenant_id", "event_type", "actor", "payload", "created_date").
		From(eventsTable)

	page := pageConfig(filter)

	var rows []eventRow

	info, err := r.engine.List(ctx, query.ListQuery{
		Builder: base,
		Filters: r.filters(filter, nil),
		Order:   orderFromSort(filter.Sort),
		Page:    &page,
	}, &rows)
	if err != nil {
		return nil, nil, err
	}

	events := make([]*model.Event, 0, len(rows))
	for index := range rows {
		event, err := convertRowToEvent(rows[index])
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", model.ErrDatabaseQuery, err)
		}

		events = append(events, event)
	}

	return events, info, nil
}

// CountByType groups a tenant's events by type, largest groups first.
func (r *EventsRepository) CountByType(ctx context.Context, filter model.EventFilter) (*query.AggregatePage, error) {
	if filter.TenantID == "" {
		return nil, model.ErrMissingTenant
	}

	return r.engine.Aggregate(ctx, query.AggregateQuery{
		Table:   eventsTable,
		GroupBy: "event_type",
		Filters: r.filters(filter, nil),
		Order:   query.OrderConfig{OrderBy: "row_count", Order: "desc"},
		Page:    pageConfig(filter),
	})
}

// AggregatePayloadField aggregates a numeric payload attribute (dotted path
// into the jsonb payload) per event type.
func (r *EventsRepository) AggregatePayloadField(
	ctx context.Context,
	filter model.EventFilter,
	field string,
) (*query.AggregatePage, error) {
	if filter.TenantID == "" {
		return nil, model.ErrMissingTenant
	}

	return r.engine.Aggregate(ctx, query.AggregateQuery{
		Table:   eventsTable,
		GroupBy: "event_type",
		Field:   field,
		Filters: r.filters(filter, nil),
		Order:   query.OrderConfig{OrderBy: "group_value", Order: "asc"},
		Page:    pageConfig(filter),
	})
}

// Activity counts a tenant's events per time bucket. Hour and day buckets can
// be served from the rolling-aggregate views when only time and tenant
// filters are set.
func (r *EventsRepository) Activity(
	ctx context.Context,
	filter model.EventFilter,
	unit query.BucketUnit,
) (*query.HistoryPage, error) {
	if filter.TenantID == "" {
		return nil, model.ErrMissingTenant
	}

	retentionLimit := r.retention.LimitDate(r.now().UTC())

	return r.engine.History(ctx, query.HistoryQuery{
		Table:           eventsTable,
		TimeFilter:      "createdDate",
		TimeColumn:      "created_date",
		SecondaryFilter: "tenantId",
		Views:           activityViews,
		RetentionLimit:  retentionLimit,
		GroupBy:         unit,
		Filters:         r.filters(filter, retentionLimit),
		Order:           query.OrderConfig{OrderBy: "bucket", Order: "asc"},
		Page:            pageConfig(filter),
	})
}

// filters maps an EventFilter onto the engine's descriptors. A non-zero
// retention limit becomes the minimum bound of the time range.
func (r *EventsRepository) filters(filter model.EventFilter, retentionLimit any) query.Filters {
	var tenantRaw, actorRaw, typesRaw, payloadRaw, timeRaw any

	if filter.TenantID != "" {
		tenantRaw = filter.TenantID
	}

	if filter.Actor != "" {
		actorRaw = filter.Actor
	}

	if len(filter.Types) > 0 {
		typesRaw = filter.Types
	}

	if len(filter.Payload) > 0 {
		payloadRaw = filter.Payload
	}

	timeRange := query.Range{}
	if !filter.From.IsZero() {
		timeRange.Gte = filter.From
	}

	if !filter.To.IsZero() {
		timeRange.Lte = filter.To
	}

	if timeRange != (query.Range{}) {
		timeRaw = timeRange
	}

	var minBound any
	if limit, ok := retentionLimit.(time.Time); ok && !limit.IsZero() {
		minBound = limit
	}

	return query.Filters{
		"tenantId":    {Column: "tenant_id", Raw: tenantRaw},
		"actor":       {Column: "actor", Raw: actorRaw},
		"type":        {Column: "event_type", Raw: typesRaw, Transform: query.ArrayParse, Strategy: query.InList},
		"payload":     {Column: "payload", Raw: payloadRaw, Strategy: query.JSONSuperset},
		"createdDate": {Column: "created_date", Raw: timeRaw, Strategy: query.WithinRange, Min: minBound},
	}
}

func pageConfig(filter model.EventFilter) query.PageConfig {
	page := query.PageConfig{Page: defaultPage, PerPage: defaultPerPage}

	if filter.Page > 0 {
		page.Page = filter.Page
	}

	if filter.PerPage > 0 {
		page.PerPage = filter.PerPage
	}

	return page
}

func orderFromSort(sort string) query.OrderConfig {
	if sort == "" {
		sort = "-createdDate"
	}

	direction := "asc"
	if strings.HasPrefix(sort, "-") {
		direction = "desc"
		sort = sort[1:]
	}

	column, ok := eventColumns[sort]
	if !ok {
		column = "created_date"
	}

	return query.OrderConfig{OrderBy: column, Order: direction}
}

func convertRowToEvent(row eventRow) (*model.Event, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse event ID: %w", err)
	}

	return &model.Event{
		ID:        id,
		TenantID:  row.TenantID,
		Type:      row.Type,
		Actor:     row.Actor,
		Payload:   row.Payload,
		CreatedAt: row.CreatedAt,
	}, nil
}
