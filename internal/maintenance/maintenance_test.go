package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"llmrank/internal/intel"
	memstore "llmrank/internal/store/memory"
	"llmrank/internal/telemetry"
)

func seedInsights(t *testing.T, store intel.Store, domain string, scores []float64) {
	t.Helper()
	ctx := context.Background()
	_, err := store.SeedDomains(ctx, []intel.DomainRecord{{Domain: domain}})
	require.NoError(t, err)
	base := time.Now().UTC().Add(-time.Hour)
	for i, score := range scores {
		require.NoError(t, store.SaveInsight(ctx, intel.Insight{
			ID:           insightName(domain, i),
			Domain:       domain,
			Category:     "technology",
			Type:         intel.InsightTypeCompetitiveAnalysis,
			Content:      "insight body",
			QualityScore: score,
			SourceModel:  "gpt-4o",
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}
}

func insightName(domain string, i int) string {
	return "insight_" + domain + "_" + string(rune('a'+i))
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	store := memstore.New()

	_, err := New(Config{Schedule: "", KeepInsights: 10}, store, nil)
	require.ErrorContains(t, err, "schedule")

	_, err = New(Config{Schedule: "0 2 * * *", KeepInsights: 0}, store, nil)
	require.ErrorContains(t, err, "keep insights")

	_, err = New(Config{Schedule: "not a cron line", KeepInsights: 10}, store, nil)
	require.ErrorContains(t, err, "add maintenance schedule")

	_, err = New(Config{Schedule: "0 2 * * *", KeepInsights: 10}, nil, nil)
	require.ErrorContains(t, err, "store")
}

func TestRunOncePrunesAndRefreshes(t *testing.T) {
	t.Parallel()
	telemetry.Init()

	store := memstore.New()
	seedInsights(t, store, "openai.com", []float64{0.9, 0.8, 0.7})

	janitor, err := New(Config{Schedule: "0 2 * * *", KeepInsights: 2}, store, nil)
	require.NoError(t, err)
	require.NoError(t, janitor.RunOnce(context.Background()))

	insights, err := store.InsightsForDomain(context.Background(), "openai.com", 10)
	require.NoError(t, err)
	require.Len(t, insights, 2)

	record, err := store.Domain(context.Background(), "openai.com")
	require.NoError(t, err)
	require.Equal(t, 2, record.InsightsCount)
	// Survivors are the two newest insights: 0.8 and 0.7.
	require.InDelta(t, 75.0, record.Score, 1e-9)
}

func TestRunOnceReportsPruneFailure(t *testing.T) {
	t.Parallel()
	telemetry.Init()

	store := &failingStore{Store: memstore.New(), pruneErr: errors.New("table locked")}
	janitor, err := New(Config{Schedule: "0 2 * * *", KeepInsights: 2}, store, nil)
	require.NoError(t, err)

	err = janitor.RunOnce(context.Background())
	require.ErrorContains(t, err, "prune insights")
	require.ErrorContains(t, err, "table locked")
}

func TestStartStopDoesNotHang(t *testing.T) {
	t.Parallel()
	telemetry.Init()

	janitor, err := New(Config{Schedule: "0 2 * * *", KeepInsights: 2}, memstore.New(), nil)
	require.NoError(t, err)

	janitor.Start()
	done := make(chan struct{})
	go func() {
		janitor.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor stop timed out")
	}
}

type failingStore struct {
	intel.Store
	pruneErr error
}

func (s *failingStore) PruneInsights(ctx context.Context, keep int) (int64, error) {
	if s.pruneErr != nil {
		return 0, s.pruneErr
	}
	return s.Store.PruneInsights(ctx, keep)
}
