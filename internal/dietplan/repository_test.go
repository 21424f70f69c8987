package dietplan

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"diet-coach/internal/database"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "plans.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db.SQL)
}

func TestRepository(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	clock := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	plan := samplePlan()

	first, err := repo.Save(ctx, "client-1", "coach-a", &plan)
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	plan.Day2.Lunch.Diet = "Dal and rice"
	second, err := repo.Save(ctx, "client-1", "coach-b", &plan)
	require.NoError(t, err)

	_, err = repo.Save(ctx, "client-2", "coach-a", &plan)
	require.NoError(t, err)

	t.Run("Get", func(t *testing.T) {
		got, err := repo.Get(ctx, first.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "client-1", got.ClientID)
		assert.Equal(t, "coach-a", got.CreatedBy)
		assert.True(t, first.CreatedAt.Equal(got.CreatedAt))

		decoded, err := got.Plan()
		require.NoError(t, err)
		assert.Equal(t, "Oats", decoded.Day1.Breakfast.Diet)
	})

	t.Run("GetMissing", func(t *testing.T) {
		got, err := repo.Get(ctx, 9999)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ListByClientNewestFirst", func(t *testing.T) {
		plans, err := repo.ListByClient(ctx, "client-1")
		require.NoError(t, err)
		require.Len(t, plans, 2)
		assert.Equal(t, second.ID, plans[0].ID)
		assert.Equal(t, first.ID, plans[1].ID)

		latest, err := plans[0].Plan()
		require.NoError(t, err)
		if diff := cmp.Diff(plan, *latest); diff != "" {
			t.Errorf("stored plan mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("ListByUnknownClient", func(t *testing.T) {
		plans, err := repo.ListByClient(ctx, "nobody")
		require.NoError(t, err)
		assert.NotNil(t, plans)
		assert.Empty(t, plans)
	})
}
