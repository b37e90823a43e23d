package risk

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/snowblind5/defi-yield-risk-analyzer/internal/model"
	"github.com/snowblind5/defi-yield-risk-analyzer/internal/storage"
)

// scoreStore is an in-memory storage.Store for calculator tests. Risk scores
// are held per pool, mirroring the replace semantics of the real store.
type scoreStore struct {
	pools       []model.Pool
	metrics     map[int64][]model.PoolMetric
	scores      map[int64][]model.RiskScore
	failReplace map[int64]bool
	summary     []model.SummaryRow
}

func newScoreStore() *scoreStore {
	return &scoreStore{
		metrics:     make(map[int64][]model.PoolMetric),
		scores:      make(map[int64][]model.RiskScore),
		failReplace: make(map[int64]bool),
	}
}

func (s *scoreStore) seedPool(id int64, externalID string, days int) {
	s.pools = append(s.pools, model.Pool{ID: id, ExternalID: externalID, Project: "p", Symbol: "S"})
	now := time.Now().UTC()
	for i := 0; i < days; i++ {
		s.metrics[id] = append(s.metrics[id], model.PoolMetric{
			PoolID: id,
			Date:   model.DayUTC(now.AddDate(0, 0, -i)),
			APY:    f64(5),
			TVLUSD: f64(2_000_000),
		})
	}
}

func (s *scoreStore) Begin(ctx context.Context) (storage.Tx, error) {
	return nil, fmt.Errorf("not supported")
}

func (s *scoreStore) ListPools(ctx context.Context) ([]model.Pool, error) {
	return s.pools, nil
}

func (s *scoreStore) PoolIDByExternalID(ctx context.Context, externalID string) (int64, bool, error) {
	for _, p := range s.pools {
		if p.ExternalID == externalID {
			return p.ID, true, nil
		}
	}
	return 0, false, nil
}

func (s *scoreStore) TouchPools(ctx context.Context, ids []string) (int, error) { return 0, nil }

func (s *scoreStore) UpsertMetric(ctx context.Context, m model.PoolMetric) error { return nil }

func (s *scoreStore) HasMetricSince(ctx context.Context, poolID int64, since time.Time) (bool, error) {
	return false, nil
}

func (s *scoreStore) MetricsSince(ctx context.Context, poolID int64, since time.Time) ([]model.PoolMetric, error) {
	var out []model.PoolMetric
	for _, m := range s.metrics[poolID] {
		if !m.Date.Before(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *scoreStore) CountMetrics(ctx context.Context, poolID int64) (int64, error) {
	return int64(len(s.metrics[poolID])), nil
}

func (s *scoreStore) ReplaceRiskScore(ctx context.Context, score model.RiskScore) error {
	if s.failReplace[score.PoolID] {
		return fmt.Errorf("injected replace failure")
	}
	s.scores[score.PoolID] = []model.RiskScore{score}
	return nil
}

func (s *scoreStore) RiskSummary(ctx context.Context) ([]model.SummaryRow, error) {
	return s.summary, nil
}

func (s *scoreStore) RiskScoreForPool(ctx context.Context, externalID string) (model.Pool, model.RiskScore, bool, error) {
	for _, p := range s.pools {
		if p.ExternalID == externalID {
			if scores := s.scores[p.ID]; len(scores) > 0 {
				return p, scores[0], true, nil
			}
		}
	}
	return model.Pool{}, model.RiskScore{}, false, nil
}

func (s *scoreStore) TableCounts(ctx context.Context) (storage.TableCounts, error) {
	return storage.TableCounts{}, nil
}

func (s *scoreStore) LatestMetricDate(ctx context.Context) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func TestLoadWindowObservationFloor(t *testing.T) {
	store := newScoreStore()
	store.seedPool(1, "six", 6)
	store.seedPool(2, "seven", 7)
	calc := NewCalculator(store, defaultRiskConfig(), nil)

	if _, err := calc.LoadWindow(context.Background(), 1, 30); err != ErrInsufficientData {
		t.Fatalf("6 observations: expected ErrInsufficientData, got %v", err)
	}

	metrics, err := calc.LoadWindow(context.Background(), 2, 30)
	if err != nil {
		t.Fatalf("7 observations: unexpected error: %v", err)
	}
	if len(metrics) != 7 {
		t.Fatalf("expected 7 metrics, got %d", len(metrics))
	}
}

func TestScoreForPoolBoundary(t *testing.T) {
	store := newScoreStore()
	store.seedPool(1, "six", 6)
	store.seedPool(2, "seven", 7)
	calc := NewCalculator(store, defaultRiskConfig(), nil)

	if _, err := calc.ScoreForPool(context.Background(), store.pools[0]); err != ErrInsufficientData {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}

	score, err := calc.ScoreForPool(context.Background(), store.pools[1])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score.PoolID != 2 || score.APYMean30d != 5 || score.StabilityScore != 100 {
		t.Fatalf("score mismatch: %+v", score)
	}
	if score.CompositeScore < 0 || score.CompositeScore > 100 {
		t.Fatalf("composite out of bounds: %f", score.CompositeScore)
	}
}

func TestRecomputeAll(t *testing.T) {
	store := newScoreStore()
	store.seedPool(1, "scored", 30)
	store.seedPool(2, "thin", 6)
	store.seedPool(3, "broken", 30)
	store.failReplace[3] = true
	calc := NewCalculator(store, defaultRiskConfig(), nil)

	stats, err := calc.RecomputeAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Processed != 3 || stats.Calculated != 1 || stats.Skipped != 1 || stats.Errors != 1 {
		t.Fatalf("stats mismatch: %+v", stats)
	}
	if len(store.scores[1]) != 1 {
		t.Fatalf("expected 1 score row for pool 1, got %d", len(store.scores[1]))
	}
	if len(store.scores[3]) != 0 {
		t.Fatalf("failed pool must be left without a score")
	}

	// Recomputing twice leaves exactly one live row per pool.
	if _, err := calc.RecomputeAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.scores[1]) != 1 {
		t.Fatalf("replace semantics violated: %d rows", len(store.scores[1]))
	}
}

func TestSummaryClassification(t *testing.T) {
	store := newScoreStore()
	store.summary = []model.SummaryRow{
		{Project: "a", CompositeScore: 12},
		{Project: "b", CompositeScore: 30},
		{Project: "c", CompositeScore: 45},
		{Project: "d", CompositeScore: 60},
		{Project: "e", CompositeScore: 88},
	}
	calc := NewCalculator(store, defaultRiskConfig(), nil)

	rows, err := calc.Summary(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"Low", "Low", "Medium", "Medium", "High"}
	for i, row := range rows {
		if row.RiskLevel != want[i] {
			t.Fatalf("row %d (%s, %.0f): level %s, want %s", i, row.Project, row.CompositeScore, row.RiskLevel, want[i])
		}
	}
}
