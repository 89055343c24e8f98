package tracks

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/droneguard/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *DuckStore {
	t.Helper()
	store, err := NewDuckStore(filepath.Join(t.TempDir(), "tracks.duckdb"), DuckOptions{Threads: 1})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func fix(ts int64, lon, lat, alt float64) models.TimedFix {
	return models.TimedFix{Timestamp: ts, Position: models.Point3D{Lon: lon, Lat: lat, Alt: alt}}
}

func TestDuckStore_AddAndTrack(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)

	require.NoError(t, store.AddFixes(ctx, "d1", []models.TimedFix{
		fix(30, 12.3, 55.3, 30),
		fix(10, 12.1, 55.1, 10),
		fix(20, 12.2, 55.2, 20),
	}))
	require.NoError(t, store.AddFixes(ctx, "d2", []models.TimedFix{fix(15, 9, 56, 0)}))

	track, err := store.Track(ctx, "d1", 10, 20)
	require.NoError(t, err)
	require.Len(t, track, 2)
	assert.Equal(t, int64(10), track[0].Timestamp)
	assert.Equal(t, int64(20), track[1].Timestamp)
	assert.Equal(t, models.Point3D{Lon: 12.2, Lat: 55.2, Alt: 20}, track[1].Position)

	_, err = store.Track(ctx, "d1", 100, 200)
	assert.True(t, errors.Is(err, ErrNoFixes))
}

func TestDuckStore_ListRoutes(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)

	routes, err := store.ListRoutes(ctx)
	require.NoError(t, err)
	assert.Empty(t, routes)

	require.NoError(t, store.AddFixes(ctx, "b", []models.TimedFix{fix(100, 0, 0, 0), fix(160, 0, 0, 0)}))
	require.NoError(t, store.AddFixes(ctx, "a", []models.TimedFix{fix(5, 0, 0, 0)}))

	routes, err = store.ListRoutes(ctx)
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, "a", routes[0].DroneID)
	assert.Equal(t, 1, routes[0].FixCount)
	assert.Equal(t, "b", routes[1].DroneID)
	assert.Equal(t, int64(100), routes[1].StartTime)
	assert.Equal(t, int64(160), routes[1].EndTime)
	assert.Equal(t, "1m0s", routes[1].Duration)
	assert.Equal(t, 2, routes[1].FixCount)
}

func TestDuckStore_EmptyBatchIsNoop(t *testing.T) {
	store := createTestStore(t)
	assert.NoError(t, store.AddFixes(context.Background(), "d1", nil))
}

func TestDuckStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tracks.duckdb")

	store, err := NewDuckStore(path, DuckOptions{})
	require.NoError(t, err)
	require.NoError(t, store.AddFixes(ctx, "d1", []models.TimedFix{fix(1, 1, 1, 1)}))
	require.NoError(t, store.Close())

	store, err = NewDuckStore(path, DuckOptions{})
	require.NoError(t, err)
	defer store.Close()

	track, err := store.Track(ctx, "d1", 0, 10)
	require.NoError(t, err)
	assert.Len(t, track, 1)
}
