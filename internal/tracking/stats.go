package tracking

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath      string            `json:"db_path"`
	DBSizeBytes int64             `json:"db_size_bytes"`
	TotalRuns   int               `json:"total_runs"`
	ActiveRuns  int               `json:"active_runs"`
	FailedRuns  int               `json:"failed_runs"`
	Artifacts   int               `json:"artifacts"`
	Experiments []ExperimentStats `json:"experiments"`
}

// ExperimentStats holds per-experiment counts.
type ExperimentStats struct {
	Experiment string  `json:"experiment"`
	Runs       int     `json:"runs"`
	BestRecall float64 `json:"best_recall"`
	LastRunAt  string  `json:"last_run_at"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	// DB file size
	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&st.TotalRuns)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE deleted_at IS NULL`).Scan(&st.ActiveRuns)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE deleted_at IS NULL AND status = 'failed'`).Scan(&st.FailedRuns)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM run_artifacts`).Scan(&st.Artifacts)

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.experiment, COUNT(*) AS cnt,
		       COALESCE(MAX(m.value), 0) AS best_recall,
		       MAX(r.started_at) AS last_run
		FROM runs r
		LEFT JOIN run_metrics m ON m.run_id = r.id AND m.key = 'recall'
		WHERE r.deleted_at IS NULL
		GROUP BY r.experiment ORDER BY cnt DESC`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var e ExperimentStats
		rows.Scan(&e.Experiment, &e.Runs, &e.BestRecall, &e.LastRunAt)
		st.Experiments = append(st.Experiments, e)
	}

	return st, nil
}
