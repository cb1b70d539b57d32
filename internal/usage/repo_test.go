package usage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mgallardo/edustack-backend/pkg/db/models"
	"github.com/mgallardo/edustack-backend/pkg/enums"
	"github.com/mgallardo/edustack-backend/pkg/types"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, conn.Exec(`CREATE TABLE usage_events (
		id TEXT PRIMARY KEY,
		scope_type TEXT NOT NULL,
		scope_id TEXT NOT NULL,
		metric TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		environment TEXT NOT NULL,
		occurred_at DATETIME NOT NULL,
		approx_cost_usd NUMERIC,
		provider_code TEXT,
		created_at DATETIME NOT NULL
	)`).Error)
	return conn
}

func seedEvents(t *testing.T, conn *gorm.DB, scope types.Scope, count int) []uuid.UUID {
	t.Helper()

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		event := models.UsageEvent{
			ID:          uuid.New(),
			ScopeType:   scope.Type,
			ScopeID:     scope.ID,
			Metric:      "ai_requests_per_day",
			Quantity:    1,
			Environment: enums.EnvironmentDevelopment,
			OccurredAt:  base.Add(time.Duration(i) * time.Minute),
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, conn.Create(&event).Error)
		ids = append(ids, event.ID)
	}
	return ids
}

func TestRepository_ListEventsPaginatesWithoutSkipping(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	scope := types.UserScope(uuid.New())

	inserted := seedEvents(t, conn, scope, 5)

	seen := make(map[uuid.UUID]bool)
	params := ListEventsQuery{Scope: scope, Limit: 2}
	pages := 0
	for {
		events, next, err := repo.ListEvents(ctx, params)
		require.NoError(t, err)
		for _, event := range events {
			require.False(t, seen[event.ID], "event %s returned twice", event.ID)
			seen[event.ID] = true
		}
		pages++
		if next == nil {
			break
		}
		require.Len(t, events, 2, "full page expected before the last")
		params.Cursor = next
	}

	require.Equal(t, 3, pages)
	require.Len(t, seen, len(inserted))
	for _, id := range inserted {
		require.True(t, seen[id], "event %s lost at a page boundary", id)
	}
}

func TestRepository_ListEventsFiltersMetric(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	scope := types.UserScope(uuid.New())

	seedEvents(t, conn, scope, 2)
	other := models.UsageEvent{
		ID:          uuid.New(),
		ScopeType:   scope.Type,
		ScopeID:     scope.ID,
		Metric:      "storage_mb",
		Quantity:    50,
		Environment: enums.EnvironmentDevelopment,
		OccurredAt:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		CreatedAt:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, conn.Create(&other).Error)

	metric := "storage_mb"
	events, next, err := repo.ListEvents(ctx, ListEventsQuery{Scope: scope, Metric: &metric})
	require.NoError(t, err)
	require.Nil(t, next)
	require.Len(t, events, 1)
	require.Equal(t, other.ID, events[0].ID)
}
