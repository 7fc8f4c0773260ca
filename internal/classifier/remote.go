package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rcliao/churn-features/internal/model"
)

// HTTPScorer sends aligned matrices to an external model server.
type HTTPScorer struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type scoreRequest struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

type scoreResponse struct {
	Probabilities []float64 `json:"probabilities"`
}

// NewHTTPScorer creates a scorer posting to baseURL + "/score".
func NewHTTPScorer(baseURL, apiKey string) *HTTPScorer {
	return &HTTPScorer{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPScorer) PredictProba(ctx context.Context, X model.Matrix) ([]float64, error) {
	body, _ := json.Marshal(scoreRequest{Columns: X.Columns, Rows: X.Rows})
	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scorer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("scorer error %d: %s", resp.StatusCode, string(b))
	}

	var result scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if len(result.Probabilities) != len(X.Rows) {
		return nil, fmt.Errorf("scorer returned %d probabilities for %d rows", len(result.Probabilities), len(X.Rows))
	}
	return result.Probabilities, nil
}

// NewScorerFromEnv returns a remote scorer when CHURN_SCORER_URL is set.
// CHURN_SCORER_KEY is sent as a bearer token.
func NewScorerFromEnv() Scorer {
	url := os.Getenv("CHURN_SCORER_URL")
	if url == "" {
		return nil // use the local artifact
	}
	return NewHTTPScorer(url, os.Getenv("CHURN_SCORER_KEY"))
}
