package sqlite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rooftop/internal/roof"
	"github.com/banshee-data/rooftop/internal/roof/mesh"
	"github.com/banshee-data/rooftop/internal/roof/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult() *roof.Result {
	return &roof.Result{
		RunID:    uuid.New(),
		Planes:   []*model.Plane{{ID: 1}, {ID: 2}},
		RoofType: model.RoofSlanted,
		Timings:  map[string]time.Duration{"planes": 12 * time.Millisecond, "mesh": time.Millisecond},
		Faces: []mesh.FaceAttributes{
			{
				FaceID: 7, PlaneID: 1, RingID: 0, RMS: 0.012,
				Elevation:  model.Elevations{Min: 5, P50: 6.2, P70: 6.8, Max: 7.5},
				RoofType:   model.RoofSlanted,
				Area:       50,
				SlopeDeg:   26.57,
				AzimuthDeg: 270,
				PointCount: 560,
				Polygon:    orb.Polygon{{{0, 0}, {5, 0}, {5, 10}, {0, 10}, {0, 0}}},
			},
			{
				FaceID: 9, PlaneID: 2, RingID: 1, RMS: 0.011,
				RoofType: model.RoofSlanted,
				Area:     50,
				Polygon:  orb.Polygon{{{5, 0}, {10, 0}, {10, 10}, {5, 10}, {5, 0}}},
			},
		},
	}
}

func TestOpen_MigratesToLatest(t *testing.T) {
	s := openTestStore(t)
	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// reopening is a no-op
	require.NoError(t, s.MigrateUp())

	var journal string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&journal))
	assert.Equal(t, "wal", journal)
}

func TestOpen_MigrationLogGoesToDiag(t *testing.T) {
	var diag, ops bytes.Buffer
	logger := model.NewLogger("", model.LogWriters{Ops: &ops, Diag: &diag})
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	assert.Contains(t, diag.String(), "migrate: ")
	assert.Contains(t, diag.String(), "1/u")
	assert.Empty(t, ops.String())
}

func TestMigrateDown(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.MigrateDown())
	version, _, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var n int
	require.NoError(t, s.db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='reconstruction_faces'`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestInsertAndGetRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	res := sampleResult()

	run, faces, err := RunFromResult("bldg-1", res, nil, roof.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, StatusOK, run.Status)
	require.Len(t, faces, 2)
	require.NoError(t, s.InsertRun(ctx, run, faces))

	got, err := s.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "bldg-1", got.BuildingID)
	assert.Equal(t, model.RoofSlanted, got.RoofType)
	assert.Equal(t, 2, got.PlaneCount)
	assert.Equal(t, 2, got.FaceCount)
	assert.Equal(t, res.Timings, got.Timings)
	assert.True(t, run.CreatedAt.Equal(got.CreatedAt))
	assert.JSONEq(t, string(run.ConfigJSON), string(got.ConfigJSON))
	assert.Empty(t, got.ErrorKind)

	stored, err := s.ListFaces(ctx, res.RunID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, faces[0], stored[0])
	assert.Equal(t, 9, stored[1].FaceID)
	assert.Equal(t, faces[1].Polygon, stored[1].Polygon)
}

func TestGetRun_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRun(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFailedRunKeepsErrorKind(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	res := &roof.Result{RunID: uuid.New(), RoofType: model.RoofNoPlanes}
	runErr := fmt.Errorf("building 7: %w",
		model.NewStageError("planes", model.ErrNonConvergence, "no plane reached 15 inliers"))

	run, faces, err := RunFromResult("bldg-7", res, runErr, roof.DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, faces)
	require.NoError(t, s.InsertRun(ctx, run, faces))

	got, err := s.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, model.ErrNonConvergence.Error(), got.ErrorKind)
	assert.Contains(t, got.ErrorText, "no plane reached")
	assert.Nil(t, got.Timings)
}

func TestListRunsByBuilding(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		run, faces, err := RunFromResult("bldg-2", sampleResult(), nil, roof.DefaultConfig())
		require.NoError(t, err)
		run.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.InsertRun(ctx, run, faces))
		ids = append(ids, run.RunID)
	}
	other, _, err := RunFromResult("bldg-3", nil, model.ErrInsufficientPoints, roof.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, s.InsertRun(ctx, other, nil))

	runs, err := s.ListRunsByBuilding(ctx, "bldg-2")
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].RunID, "newest first")
	assert.Equal(t, ids[0], runs[2].RunID)

	runs, err = s.ListRunsByBuilding(ctx, "bldg-3")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusFailed, runs[0].Status)
	assert.Equal(t, model.ErrInsufficientPoints.Error(), runs[0].ErrorKind)
}

func TestInsertRun_DuplicateRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	run, faces, err := RunFromResult("bldg-4", sampleResult(), nil, roof.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, s.InsertRun(ctx, run, faces))
	assert.Error(t, s.InsertRun(ctx, run, faces))

	stored, err := s.ListFaces(ctx, run.RunID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestRetryOnBusy(t *testing.T) {
	calls := 0
	err := retryOnBusy(func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retryOnBusy(func() error {
		calls++
		return errors.New("constraint failed")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
