package tracking

import (
	"context"
	"strings"

	"github.com/rcliao/churn-features/internal/model"
)

// ExportAll returns all non-deleted runs with their details, optionally
// filtered by experiment, oldest first.
func (s *SQLiteStore) ExportAll(ctx context.Context, experiment string) ([]model.Run, error) {
	where := []string{"deleted_at IS NULL"}
	args := []interface{}{}

	if experiment != "" {
		where = append(where, "experiment = ?")
		args = append(args, experiment)
	}

	query := `SELECT ` + runColumns + ` FROM runs WHERE ` + strings.Join(where, " AND ") + ` ORDER BY started_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, r)
	}
	rows.Close()

	for i := range runs {
		if err := s.loadDetails(ctx, &runs[i]); err != nil {
			return nil, err
		}
	}
	return runs, nil
}
