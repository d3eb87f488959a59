package repos_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/architeacher/registry/internal/adapters/repos"
	"github.com/architeacher/registry/internal/config"
	"github.com/architeacher/registry/internal/domain/model"
	"github.com/architeacher/registry/internal/query"
	"github.com/architeacher/registry/pkg/logger"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func runRepoTest(
	t *testing.T,
	setupMock func(pgxmock.PgxPoolIface),
	testFn func(*testing.T, *repos.EventsRepository),
) {
	t.Helper()
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.MatchExpectationsInOrder(false)

	setupMock(mock)

	log := logger.NewTestLogger()
	engine := query.NewEngine(mock, query.NewPgxScanner(), log)
	repo := repos.NewEventsRepository(engine, config.Retention{Window: 90 * 24 * time.Hour}, log)

	testFn(t, repo)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventsRepository_ListRequiresTenant(t *testing.T) {
	runRepoTest(t,
		func(pgxmock.PgxPoolIface) {},
		func(t *testing.T, repo *repos.EventsRepository) {
			_, _, err := repo.List(context.Background(), model.EventFilter{})

			require.ErrorIs(t, err, model.ErrMissingTenant)
		},
	)
}

func TestEventsRepository_List(t *testing.T) {
	eventID := uuid.New()
	createdAt := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	baseSQL := `SELECT id, tenant_id, event_type, actor, payload, created_date ` +
		`FROM events WHERE tenant_id = $1 ORDER BY created_date DESC`

	runRepoTest(t,
		func(mock pgxmock.PgxPoolIface) {
			mock.ExpectQuery(regexp.QuoteMeta(
				`SELECT COUNT(*) FROM (`+baseSQL+`) AS counted`,
			)).
				WithArgs("acme").
				WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))

			mock.ExpectQuery(regexp.QuoteMeta(
				baseSQL+` LIMIT 20 OFFSET 0`,
			)).
				WithArgs("acme").
				WillReturnRows(pgxmock.NewRows(
					[]string{"id", "tenant_id", "event_type", "actor", "payload", "created_date"},
				).AddRow(
					eventID.String(), "acme", "document.created", "alice",
					map[string]any{"source": "api"}, createdAt,
				))
		},
		func(t *testing.T, repo *repos.EventsRepository) {
			events, info, err := repo.List(context.Background(), model.EventFilter{TenantID: "acme"})

			require.NoError(t, err)
			require.Equal(t, 1, info.NbResults)
			require.Len(t, events, 1)
			require.Equal(t, eventID, events[0].ID)
			require.Equal(t, "document.created", events[0].Type)
			require.Equal(t, map[string]any{"source": "api"}, events[0].Payload)
		},
	)
}

func TestEventsRepository_ListAppliesFilters(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	filteredSQL := `SELECT id, tenant_id, event_type, actor, payload, created_date FROM events ` +
		`WHERE actor = $1 AND created_date >= $2 AND payload @> $3::jsonb ` +
		`AND tenant_id = $4 AND event_type IN ($5,$6) ORDER BY created_date DESC`

	runRepoTest(t,
		func(mock pgxmock.PgxPoolIface) {
			mock.ExpectQuery(regexp.QuoteMeta(
				`SELECT COUNT(*) FROM (`+filteredSQL+`) AS counted`,
			)).
				WithArgs("alice", from, `{"source":"api"}`, "acme", "document.created", "document.deleted").
				WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))

			mock.ExpectQuery(regexp.QuoteMeta(
				filteredSQL+` LIMIT 20 OFFSET 0`,
			)).
				WithArgs("alice", from, `{"source":"api"}`, "acme", "document.created", "document.deleted").
				WillReturnRows(pgxmock.NewRows(
					[]string{"id", "tenant_id", "event_type", "actor", "payload", "created_date"},
				))
		},
		func(t *testing.T, repo *repos.EventsRepository) {
			events, info, err := repo.List(context.Background(), model.EventFilter{
				TenantID: "acme",
				Types:    []string{"document.created", "document.deleted"},
				Actor:    "alice",
				Payload:  map[string]any{"source": "api"},
				From:     from,
			})

			require.NoError(t, err)
			require.Equal(t, 0, info.NbResults)
			require.Empty(t, events)
		},
	)
}

func TestEventsRepository_CountByType(t *testing.T) {
	innerSQL := `SELECT event_type AS group_value, COUNT(*) AS row_count FROM events ` +
		`WHERE tenant_id = $1 GROUP BY event_type`
	outerSQL := `SELECT * FROM (` + innerSQL + `) AS grouped WHERE group_value IS NOT NULL ORDER BY row_count DESC`

	runRepoTest(t,
		func(mock pgxmock.PgxPoolIface) {
			mock.ExpectQuery(regexp.QuoteMeta(
				`SELECT COUNT(*) FROM (`+outerSQL+`) AS counted`,
			)).
				WithArgs("acme").
				WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))

			mock.ExpectQuery(regexp.QuoteMeta(
				outerSQL+` LIMIT 20 OFFSET 0`,
			)).
				WithArgs("acme").
				WillReturnRows(pgxmock.NewRows([]string{"group_value", "row_count"}).
					AddRow("document.created", int64(42)))
		},
		func(t *testing.T, repo *repos.EventsRepository) {
			page, err := repo.CountByType(context.Background(), model.EventFilter{TenantID: "acme"})

			require.NoError(t, err)
			require.Len(t, page.Rows, 1)
			require.Equal(t, "event_type", page.Rows[0].GroupBy)
			require.Equal(t, "document.created", page.Rows[0].GroupByValue)
			require.Equal(t, int64(42), page.Rows[0].Count)
		},
	)
}

func TestEventsRepository_ActivityRequiresTenant(t *testing.T) {
	runRepoTest(t,
		func(pgxmock.PgxPoolIface) {},
		func(t *testing.T, repo *repos.EventsRepository) {
			_, err := repo.Activity(context.Background(), model.EventFilter{}, query.BucketDay)

			require.ErrorIs(t, err, model.ErrMissingTenant)
		},
	)
}
