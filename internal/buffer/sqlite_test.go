package buffer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedwagon-io/wificonnector/internal/lib/logger/sl"
	"github.com/speedwagon-io/wificonnector/internal/model"
)

func newTestBuffer(t *testing.T) *SQLiteBuffer {
	t.Helper()
	buf, err := NewSQLiteBuffer(sl.Discard(), filepath.Join(t.TempDir(), "spool", "spool.db"))
	require.NoError(t, err)
	t.Cleanup(func() { buf.Close() })
	return buf
}

func TestStoreAndPendingKeepsFieldTypes(t *testing.T) {
	buf := newTestBuffer(t)
	ctx := context.Background()

	ts := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	point := model.NewPoint(model.MeasurementZone, ts).
		Tag("zoneId", "Z1").
		Int("clients", 3).
		Float("apAvailability", 100).
		Text("note", "x")

	batch := model.NewBatch(model.MeasurementZone, []model.Point{point})
	require.NoError(t, buf.Store(ctx, batch))

	count, err := buf.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	pending, err := buf.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	got := pending[0]
	assert.Equal(t, batch.ID, got.ID)
	assert.Equal(t, model.MeasurementZone, got.Measurement)
	require.Len(t, got.Points, 1)
	assert.Equal(t, point, got.Points[0])
	assert.IsType(t, int64(0), got.Points[0].Fields["clients"])
	assert.IsType(t, float64(0), got.Points[0].Fields["apAvailability"])
}

func TestDelete(t *testing.T) {
	buf := newTestBuffer(t)
	ctx := context.Background()

	first := model.NewBatch(model.MeasurementClient, nil)
	second := model.NewBatch(model.MeasurementClient, nil)
	require.NoError(t, buf.Store(ctx, first))
	require.NoError(t, buf.Store(ctx, second))

	require.NoError(t, buf.Delete(ctx, []string{first.ID}))
	require.NoError(t, buf.Delete(ctx, nil))

	pending, err := buf.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
}

func TestCleanupDropsOldBatches(t *testing.T) {
	buf := newTestBuffer(t)
	ctx := context.Background()

	old := model.NewBatch(model.MeasurementVenue, nil)
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	fresh := model.NewBatch(model.MeasurementVenue, nil)

	require.NoError(t, buf.Store(ctx, old))
	require.NoError(t, buf.Store(ctx, fresh))

	deleted, err := buf.Cleanup(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	count, err := buf.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestStoreRejectsUnknownFieldType(t *testing.T) {
	buf := newTestBuffer(t)

	p := model.NewPoint(model.MeasurementZone, time.Now())
	p.Fields["bad"] = []int{1}

	err := buf.Store(context.Background(), model.NewBatch(model.MeasurementZone, []model.Point{p}))
	assert.Error(t, err)
}

func TestPendingDropsCorruptRows(t *testing.T) {
	buf := newTestBuffer(t)
	ctx := context.Background()

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
	for _, id := range []string{"bad-1", "bad-2", "bad-3"} {
		_, err := buf.db.ExecContext(ctx,
			`INSERT INTO spool (id, measurement, point_count, points_json, created_at) VALUES (?, ?, 1, ?, ?)`,
			id, model.MeasurementZone, "{not json", old)
		require.NoError(t, err)
	}

	point := model.NewPoint(model.MeasurementZone, time.Now()).Tag("zoneId", "Z1").Int("clients", 1)
	good := model.NewBatch(model.MeasurementZone, []model.Point{point})
	require.NoError(t, buf.Store(ctx, good))

	batches, err := buf.Pending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, good.ID, batches[0].ID)

	count, err := buf.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
