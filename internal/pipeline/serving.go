package pipeline

import (
	"errors"
	"log/slog"

	"github.com/rcliao/churn-features/internal/classifier"
	"github.com/rcliao/churn-features/internal/schema"
)

// ErrRemotePinned rejects a schema change while scoring remotely. The
// remote model's columns are unknown, so a new schema needs a restart.
var ErrRemotePinned = errors.New("remote scorer is pinned to its startup schema; restart to change it")

// ServingOptions locates the artifacts a long-running Predictor serves.
type ServingOptions struct {
	SchemaPath string
	ModelPath  string
	Remote     classifier.Scorer // used instead of ModelPath when set
	Target     string
	Logger     *slog.Logger
}

// OpenPredictor loads the schema and model as one pair and returns the
// Predictor together with the Holder that reloads them. Every reload
// re-reads the model and only commits when both agree; otherwise the
// previous pair keeps serving.
func OpenPredictor(opts ServingOptions) (*Predictor, *schema.Holder, error) {
	p := newPredictor(opts.Target, opts.Logger)

	check := func(s *schema.Schema) error {
		if opts.Remote != nil {
			if cur := p.Schema(); cur != nil && !cur.Equal(s) {
				return ErrRemotePinned
			}
			return p.swap(s, opts.Remote)
		}
		m, err := classifier.LoadArtifact(opts.ModelPath)
		if err != nil {
			return err
		}
		return p.swap(s, m)
	}

	hopts := []schema.HolderOption{schema.WithCheck(check)}
	if opts.Remote == nil {
		hopts = append(hopts, schema.WithCompanions(opts.ModelPath))
	}
	h, err := schema.NewHolder(opts.SchemaPath, opts.Logger, hopts...)
	if err != nil {
		return nil, nil, err
	}
	return p, h, nil
}
