package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/churn-features/internal/classifier"
	"github.com/rcliao/churn-features/internal/model"
	"github.com/rcliao/churn-features/internal/pipeline"
	"github.com/rcliao/churn-features/internal/schema"
	"github.com/rcliao/churn-features/internal/testutil"
)

type constScorer float64

func (c constScorer) PredictProba(_ context.Context, X model.Matrix) ([]float64, error) {
	out := make([]float64, len(X.Rows))
	for i := range out {
		out[i] = float64(c)
	}
	return out, nil
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s, err := schema.New([]string{"gender", "tenure", "InternetService_Fiber optic", "InternetService_No"})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), schema.FileName)
	require.NoError(t, schema.Save(s, path))

	logger := testutil.NewTestLogger(t)
	p, h, err := pipeline.OpenPredictor(pipeline.ServingOptions{
		SchemaPath: path,
		Remote:     constScorer(0.1234567),
		Target:     "Churn",
		Logger:     logger,
	})
	require.NoError(t, err)

	srv := NewServer(Config{
		Predictor: p,
		Schemas:   h,
		Logger:    logger,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func payload(t *testing.T, records ...model.Record) io.Reader {
	t.Helper()
	b, err := json.Marshal(map[string]any{"instances": records})
	require.NoError(t, err)
	return strings.NewReader(string(b))
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestPredict_OK(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/predict", "application/json",
		payload(t, testutil.TelcoRecord(), testutil.TelcoRecord()))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body predictResponse
	decode(t, resp, &body)
	assert.Equal(t, []float64{0.123457, 0.123457}, body.Predictions)
	assert.Len(t, body.RequestID, 36)
}

func TestPredict_Invalid(t *testing.T) {
	_, ts := newTestServer(t)
	r := testutil.TelcoRecord()
	r["SeniorCitizen"] = int64(3)

	resp, err := http.Post(ts.URL+"/predict", "application/json", payload(t, r))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body struct {
		OK       bool     `json:"ok"`
		Problems []string `json:"problems"`
	}
	decode(t, resp, &body)
	assert.False(t, body.OK)
	require.Len(t, body.Problems, 1)
	assert.Contains(t, body.Problems[0], "SeniorCitizen")
}

func TestPredict_EmptyInstances(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/predict", "application/json", strings.NewReader(`{"instances":[]}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()
}

func TestPredict_BadJSON(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/predict", "application/json", strings.NewReader(`{"instances":`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestSchema(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/schema")
	require.NoError(t, err)

	var body schemaResponse
	decode(t, resp, &body)
	assert.Equal(t, []string{"gender", "tenure", "InternetService_Fiber optic", "InternetService_No"}, body.Columns)
}

func TestMetrics(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/predict", "application/json", payload(t, testutil.TelcoRecord()))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(b), "churn_predict_requests_total")
	assert.Contains(t, string(b), "churn_scored_records_total")
	assert.Contains(t, string(b), "churn_schema_columns 4")
}

// flatModel scores 0.5 for any row over cols.
func flatModel(cols []string) *classifier.Logistic {
	scale := make([]float64, len(cols))
	for i := range scale {
		scale[i] = 1
	}
	return &classifier.Logistic{
		Columns: cols,
		Weights: make([]float64, len(cols)),
		Mean:    make([]float64, len(cols)),
		Scale:   scale,
	}
}

func TestMetrics_SchemaGaugeFollowsReload(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, schema.FileName)
	modelPath := filepath.Join(dir, classifier.ArtifactName)
	cols := []string{"gender", "tenure", "InternetService_Fiber optic", "InternetService_No"}
	s, err := schema.New(cols)
	require.NoError(t, err)
	require.NoError(t, schema.Save(s, schemaPath))
	require.NoError(t, flatModel(cols).Save(modelPath))

	logger := testutil.NewTestLogger(t)
	p, h, err := pipeline.OpenPredictor(pipeline.ServingOptions{
		SchemaPath: schemaPath,
		ModelPath:  modelPath,
		Target:     "Churn",
		Logger:     logger,
	})
	require.NoError(t, err)
	ts := httptest.NewServer(NewServer(Config{Predictor: p, Schemas: h, Logger: logger}).Handler())
	t.Cleanup(ts.Close)

	narrow := []string{"gender", "tenure"}
	ns, err := schema.New(narrow)
	require.NoError(t, err)
	require.NoError(t, flatModel(narrow).Save(modelPath))
	require.NoError(t, schema.Save(ns, schemaPath))
	changed, err := h.Reload()
	require.NoError(t, err)
	require.True(t, changed)

	resp, err := http.Post(ts.URL+"/predict", "application/json", payload(t, testutil.TelcoRecord()))
	require.NoError(t, err)
	var body predictResponse
	decode(t, resp, &body)
	assert.Equal(t, []float64{0.5}, body.Predictions)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(b), "churn_schema_columns 2")
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.addr = "127.0.0.1:0"
	srv.watch = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
