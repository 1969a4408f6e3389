package swarm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePatternDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &Pattern{Name: "fan-out", Context: "research", Confidence: 0.8}
	require.NoError(t, s.StorePattern(ctx, p))
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, defaultSuccessRate, p.SuccessRate, "unused patterns start neutral")

	got, err := s.GetPattern(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "fan-out", got.Name)
}

func TestUpdatePatternMetricsEMA(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &Pattern{Name: "fan-out", SuccessRate: 0.5, UsageCount: 1}
	require.NoError(t, s.StorePattern(ctx, p))

	// One success: 0.1*1 + 0.9*0.5 = 0.55.
	require.NoError(t, s.UpdatePatternMetrics(ctx, p.ID, true))
	got, err := s.GetPattern(ctx, p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.55, got.SuccessRate, 1e-9)
	assert.Equal(t, int64(2), got.UsageCount)
	assert.False(t, got.LastUsed.IsZero())

	// One failure: 0.1*0 + 0.9*0.55 = 0.495.
	require.NoError(t, s.UpdatePatternMetrics(ctx, p.ID, false))
	got, err = s.GetPattern(ctx, p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.495, got.SuccessRate, 1e-9)

	err = s.UpdatePatternMetrics(ctx, "missing", true)
	assert.ErrorIs(t, err, ErrPatternNotFound)
}

func TestPatternScore(t *testing.T) {
	unused := &Pattern{SuccessRate: 0.5, Confidence: 0.5}
	used := &Pattern{SuccessRate: 0.5, Confidence: 0.5, UsageCount: 1}
	assert.InDelta(t, 0.45, unused.Score(), 1e-9)
	assert.InDelta(t, 0.55, used.Score(), 1e-9, "any usage adds the usage bonus")
}

func TestFindBestPatternsRanking(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed := []*Pattern{
		{Name: "strong", Context: "research", SuccessRate: 0.9, Confidence: 0.9, UsageCount: 10},
		{Name: "middling", Context: "research", SuccessRate: 0.5, Confidence: 0.5, UsageCount: 3},
		{Name: "weak", Context: "research", SuccessRate: 0.1, Confidence: 0.2, UsageCount: 1},
		{Name: "other-domain", Context: "deployment", SuccessRate: 0.99, Confidence: 0.99, UsageCount: 5},
	}
	for _, p := range seed {
		require.NoError(t, s.StorePattern(ctx, p))
	}

	best, err := s.FindBestPatterns(ctx, "research", 2)
	require.NoError(t, err)
	require.Len(t, best, 2)
	assert.Equal(t, "strong", best[0].Name)
	assert.Equal(t, "middling", best[1].Name)

	// Empty context matches every pattern.
	all, err := s.FindBestPatterns(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "other-domain", all[0].Name)
}

func TestFindBestPatternsTieBreaksOnRecency(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := &Pattern{
		Name: "older", Context: "research",
		SuccessRate: 0.5, Confidence: 0.5, UsageCount: 1,
		LastUsed: time.Now().Add(-time.Hour),
	}
	newer := &Pattern{
		Name: "newer", Context: "research",
		SuccessRate: 0.5, Confidence: 0.5, UsageCount: 1,
		LastUsed: time.Now(),
	}
	require.NoError(t, s.StorePattern(ctx, older))
	require.NoError(t, s.StorePattern(ctx, newer))

	best, err := s.FindBestPatterns(ctx, "research", 2)
	require.NoError(t, err)
	require.Len(t, best, 2)
	assert.Equal(t, "newer", best[0].Name)
}
