package tracking

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/churn-features/internal/model"
)

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id           TEXT PRIMARY KEY,
		experiment   TEXT NOT NULL,
		name         TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL DEFAULT 'running',
		started_at   TEXT NOT NULL,
		completed_at TEXT,
		deleted_at   TEXT,
		error        TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_experiment ON runs(experiment, started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_deleted ON runs(deleted_at);

	CREATE TABLE IF NOT EXISTS run_params (
		run_id TEXT NOT NULL REFERENCES runs(id),
		key    TEXT NOT NULL,
		value  TEXT NOT NULL,
		PRIMARY KEY (run_id, key)
	);

	CREATE TABLE IF NOT EXISTS run_metrics (
		run_id TEXT NOT NULL REFERENCES runs(id),
		key    TEXT NOT NULL,
		value  REAL NOT NULL,
		PRIMARY KEY (run_id, key)
	);

	CREATE TABLE IF NOT EXISTS run_artifacts (
		run_id     TEXT NOT NULL REFERENCES runs(id),
		path       TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		sha256     TEXT NOT NULL,
		logged_at  TEXT NOT NULL,
		PRIMARY KEY (run_id, path)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRun(ctx context.Context, p CreateRunParams) (*model.Run, error) {
	now := time.Now().UTC()
	id := s.newID()

	experiment := p.Experiment
	if experiment == "" {
		experiment = "default"
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, experiment, name, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, experiment, p.Name, model.RunRunning, now.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	return &model.Run{
		ID:         id,
		Experiment: experiment,
		Name:       p.Name,
		Status:     model.RunRunning,
		StartedAt:  now,
	}, nil
}

// requireActive fails when the run does not exist or was deleted.
func (s *SQLiteStore) requireActive(ctx context.Context, tx *sql.Tx, runID string) error {
	var id string
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM runs WHERE id = ? AND deleted_at IS NULL`, runID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("run not found: %s", runID)
	}
	return err
}

func (s *SQLiteStore) LogParams(ctx context.Context, runID string, params map[string]string) error {
	if len(params) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.requireActive(ctx, tx, runID); err != nil {
		return err
	}
	for k, v := range params {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO run_params (run_id, key, value) VALUES (?, ?, ?)
			 ON CONFLICT(run_id, key) DO UPDATE SET value = excluded.value`,
			runID, k, v)
		if err != nil {
			return fmt.Errorf("insert param %s: %w", k, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LogMetrics(ctx context.Context, runID string, metrics map[string]float64) error {
	if len(metrics) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.requireActive(ctx, tx, runID); err != nil {
		return err
	}
	for k, v := range metrics {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO run_metrics (run_id, key, value) VALUES (?, ?, ?)
			 ON CONFLICT(run_id, key) DO UPDATE SET value = excluded.value`,
			runID, k, v)
		if err != nil {
			return fmt.Errorf("insert metric %s: %w", k, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LogArtifact(ctx context.Context, runID, path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return fmt.Errorf("hash artifact: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.requireActive(ctx, tx, runID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO run_artifacts (run_id, path, size_bytes, sha256, logged_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, path) DO UPDATE SET size_bytes = excluded.size_bytes,
		   sha256 = excluded.sha256, logged_at = excluded.logged_at`,
		runID, abs, size, hex.EncodeToString(h.Sum(nil)), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID, errMsg string) error {
	status := model.RunCompleted
	var errPtr *string
	if errMsg != "" {
		status = model.RunFailed
		errPtr = &errMsg
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, error = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		status, time.Now().UTC().Format(timeLayout), errPtr, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

const runColumns = `id, experiment, name, status, started_at, completed_at, deleted_at, error`

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? AND deleted_at IS NULL`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadDetails(ctx, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStore) loadDetails(ctx context.Context, r *model.Run) error {
	r.Params = map[string]string{}
	r.Metrics = map[string]float64{}

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM run_params WHERE run_id = ?`, r.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return err
		}
		r.Params[k] = v
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `SELECT key, value FROM run_metrics WHERE run_id = ?`, r.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var k string
		var v float64
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return err
		}
		r.Metrics[k] = v
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT path, size_bytes, sha256, logged_at FROM run_artifacts WHERE run_id = ? ORDER BY path`, r.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var a model.Artifact
		var loggedAt string
		if err := rows.Scan(&a.Path, &a.SizeBytes, &a.SHA256, &loggedAt); err != nil {
			return err
		}
		a.LoggedAt, _ = time.Parse(timeLayout, loggedAt)
		r.Artifacts = append(r.Artifacts, a)
	}
	return rows.Err()
}

func (s *SQLiteStore) ListRuns(ctx context.Context, p ListParams) ([]model.Run, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	where := []string{"deleted_at IS NULL"}
	var args []interface{}
	if p.Experiment != "" {
		where = append(where, "experiment = ?")
		args = append(args, p.Experiment)
	}
	if p.Status != "" {
		if !model.ValidStatuses[p.Status] {
			return nil, fmt.Errorf("invalid status %q", p.Status)
		}
		where = append(where, "status = ?")
		args = append(args, p.Status)
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT %s FROM runs WHERE %s ORDER BY started_at DESC, id DESC LIMIT ?`,
		runColumns, strings.Join(where, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) RmRun(ctx context.Context, p RmParams) error {
	if p.Hard {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for _, table := range []string{"run_params", "run_metrics", "run_artifacts"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, p.ID); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, p.ID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("run not found: %s", p.ID)
		}
		return tx.Commit()
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC().Format(timeLayout), p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", p.ID)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (model.Run, error) {
	var r model.Run
	var startedAt string
	var completedAt, deletedAt, errMsg sql.NullString

	err := row.Scan(&r.ID, &r.Experiment, &r.Name, &r.Status, &startedAt, &completedAt, &deletedAt, &errMsg)
	if err != nil {
		return r, err
	}

	r.StartedAt, _ = time.Parse(timeLayout, startedAt)
	if completedAt.Valid {
		t, _ := time.Parse(timeLayout, completedAt.String)
		r.CompletedAt = &t
	}
	if deletedAt.Valid {
		t, _ := time.Parse(timeLayout, deletedAt.String)
		r.DeletedAt = &t
	}
	if errMsg.Valid {
		r.Error = errMsg.String
	}
	return r, nil
}
