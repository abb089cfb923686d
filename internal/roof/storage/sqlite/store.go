package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/rooftop/internal/roof"
	"github.com/banshee-data/rooftop/internal/roof/model"
)

// Run statuses.
const (
	StatusOK       = "ok"
	StatusFallback = "fallback"
	StatusFailed   = "failed"
)

// ErrNotFound is returned by GetRun for an unknown run id.
var ErrNotFound = errors.New("run not found")

// Run is one reconstruction attempt for a building.
type Run struct {
	RunID      uuid.UUID
	BuildingID string
	Status     string
	// ErrorKind is the model error kind, empty on success.
	ErrorKind  string
	ErrorText  string
	RoofType   model.RoofType
	PlaneCount int
	FaceCount  int
	Unassigned int
	Timings    map[string]time.Duration
	ConfigJSON json.RawMessage
	CreatedAt  time.Time
}

// Face is one output face of a run.
type Face struct {
	RunID      uuid.UUID
	RingID     int
	FaceID     int
	PlaneID    int
	RMS        float64
	Elevation  model.Elevations
	RoofType   model.RoofType
	Area       float64
	SlopeDeg   float64
	AzimuthDeg float64
	PointCount int
	Polygon    orb.Polygon
}

// Store persists reconstruction runs.
type Store struct {
	db  *sql.DB
	log *model.Logger
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// Open opens or creates the database at path and applies pending
// migrations. log may be nil.
func Open(path string, log *model.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}
	s := &Store{db: db, log: log}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// RunFromResult turns the outcome of roof.Reconstruct into ledger rows.
// res may be nil when Reconstruct failed before any stage ran.
func RunFromResult(buildingID string, res *roof.Result, runErr error, cfg roof.Config) (Run, []Face, error) {
	run := Run{BuildingID: buildingID, Status: StatusOK, CreatedAt: time.Now().UTC()}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return Run{}, nil, fmt.Errorf("marshal config: %w", err)
	}
	run.ConfigJSON = cfgJSON

	if res == nil {
		run.RunID = uuid.New()
	} else {
		run.RunID = res.RunID
		run.RoofType = res.RoofType
		run.PlaneCount = len(res.Planes)
		run.FaceCount = len(res.Faces)
		run.Unassigned = res.Unassigned
		run.Timings = res.Timings
		if res.Fallback {
			run.Status = StatusFallback
		}
	}
	if runErr != nil {
		run.Status = StatusFailed
		run.ErrorText = runErr.Error()
		if kind := model.KindOf(runErr); kind != nil {
			run.ErrorKind = kind.Error()
		}
	}

	var faces []Face
	if res != nil && runErr == nil {
		for _, fa := range res.Faces {
			faces = append(faces, Face{
				RunID:      run.RunID,
				RingID:     fa.RingID,
				FaceID:     int(fa.FaceID),
				PlaneID:    fa.PlaneID,
				RMS:        fa.RMS,
				Elevation:  fa.Elevation,
				RoofType:   fa.RoofType,
				Area:       fa.Area,
				SlopeDeg:   fa.SlopeDeg,
				AzimuthDeg: fa.AzimuthDeg,
				PointCount: fa.PointCount,
				Polygon:    fa.Polygon,
			})
		}
	}
	return run, faces, nil
}

// InsertRun stores a run and its faces in one transaction.
func (s *Store) InsertRun(ctx context.Context, run Run, faces []Face) error {
	if run.RunID == uuid.Nil {
		run.RunID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	var timings interface{}
	if len(run.Timings) > 0 {
		b, err := json.Marshal(run.Timings)
		if err != nil {
			return fmt.Errorf("marshal timings: %w", err)
		}
		timings = string(b)
	}
	var cfg interface{}
	if len(run.ConfigJSON) > 0 {
		cfg = string(run.ConfigJSON)
	}

	return retryOnBusy(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO reconstruction_runs (
				run_id, building_id, status, error_kind, error_text, roof_type,
				plane_count, face_count, unassigned, timings_json, config_json, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID.String(), run.BuildingID, run.Status, nullString(run.ErrorKind), nullString(run.ErrorText),
			string(run.RoofType), run.PlaneCount, run.FaceCount, run.Unassigned, timings, cfg,
			run.CreatedAt.UnixNano(),
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		for _, f := range faces {
			var poly []byte
			if len(f.Polygon) > 0 {
				if poly, err = wkb.Marshal(f.Polygon); err != nil {
					return fmt.Errorf("encode face %d polygon: %w", f.RingID, err)
				}
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO reconstruction_faces (
					run_id, ring_id, face_id, plane_id, rms,
					elevation_min, elevation_p50, elevation_p70, elevation_max,
					roof_type, area, slope_deg, azimuth_deg, point_count, polygon_wkb
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				run.RunID.String(), f.RingID, f.FaceID, f.PlaneID, f.RMS,
				f.Elevation.Min, f.Elevation.P50, f.Elevation.P70, f.Elevation.Max,
				string(f.RoofType), f.Area, f.SlopeDeg, f.AzimuthDeg, f.PointCount, poly,
			); err != nil {
				return fmt.Errorf("insert face %d: %w", f.RingID, err)
			}
		}
		return tx.Commit()
	})
}

const runColumns = `run_id, building_id, status, error_kind, error_text, roof_type,
	plane_count, face_count, unassigned, timings_json, config_json, created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r                              Run
		id, roofType                   string
		errKind, errText, timings, cfg sql.NullString
		created                        int64
	)
	if err := row.Scan(&id, &r.BuildingID, &r.Status, &errKind, &errText, &roofType,
		&r.PlaneCount, &r.FaceCount, &r.Unassigned, &timings, &cfg, &created); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse run id %q: %w", id, err)
	}
	r.RunID = parsed
	r.RoofType = model.RoofType(roofType)
	r.ErrorKind, r.ErrorText = errKind.String, errText.String
	r.CreatedAt = time.Unix(0, created).UTC()
	if timings.Valid {
		if err := json.Unmarshal([]byte(timings.String), &r.Timings); err != nil {
			return nil, fmt.Errorf("parse timings: %w", err)
		}
	}
	if cfg.Valid {
		r.ConfigJSON = json.RawMessage(cfg.String)
	}
	return &r, nil
}

// GetRun returns a single run by id.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM reconstruction_runs WHERE run_id = ?`, id.String())
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

// ListRunsByBuilding returns the runs of a building, newest first.
func (s *Store) ListRunsByBuilding(ctx context.Context, buildingID string) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM reconstruction_runs
		WHERE building_id = ? ORDER BY created_at DESC`, buildingID)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListFaces returns the faces of a run ordered by ring id.
func (s *Store) ListFaces(ctx context.Context, runID uuid.UUID) ([]Face, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ring_id, face_id, plane_id, rms,
		       elevation_min, elevation_p50, elevation_p70, elevation_max,
		       roof_type, area, slope_deg, azimuth_deg, point_count, polygon_wkb
		FROM reconstruction_faces
		WHERE run_id = ?
		ORDER BY ring_id`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("query faces: %w", err)
	}
	defer rows.Close()

	var faces []Face
	for rows.Next() {
		f := Face{RunID: runID}
		var roofType string
		var poly []byte
		if err := rows.Scan(&f.RingID, &f.FaceID, &f.PlaneID, &f.RMS,
			&f.Elevation.Min, &f.Elevation.P50, &f.Elevation.P70, &f.Elevation.Max,
			&roofType, &f.Area, &f.SlopeDeg, &f.AzimuthDeg, &f.PointCount, &poly); err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		f.RoofType = model.RoofType(roofType)
		if len(poly) > 0 {
			g, err := wkb.Unmarshal(poly)
			if err != nil {
				return nil, fmt.Errorf("decode face %d polygon: %w", f.RingID, err)
			}
			p, ok := g.(orb.Polygon)
			if !ok {
				return nil, fmt.Errorf("face %d geometry is %s, not Polygon", f.RingID, g.GeoJSONType())
			}
			f.Polygon = p
		}
		faces = append(faces, f)
	}
	return faces, rows.Err()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

const (
	busyRetries = 5
	busyBackoff = 20 * time.Millisecond
)

// retryOnBusy reruns fn while SQLite reports the database as locked.
func retryOnBusy(fn func() error) error {
	var err error
	for attempt := 0; attempt < busyRetries; attempt++ {
		if err = fn(); err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(busyBackoff * time.Duration(attempt+1))
	}
	return err
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
