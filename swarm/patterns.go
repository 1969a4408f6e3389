package swarm

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yte121/openswarm-sub013/memory"
)

// Pattern scoring weights. The success rate dominates; confidence refines,
// and any recorded usage adds a small bonus.
const (
	patternAlpha       = 0.1
	successRateWeight  = 0.7
	confidenceWeight   = 0.2
	usageWeight        = 0.1
	defaultSuccessRate = 0.5
)

func patternKey(id string) string { return "pattern:" + id }

// Score ranks a pattern for retrieval.
func (p *Pattern) Score() float64 {
	score := successRateWeight*p.SuccessRate + confidenceWeight*p.Confidence
	if p.UsageCount > 0 {
		score += usageWeight
	}
	return score
}

// StorePattern records a learned pattern. New patterns start at the neutral
// success rate when none is given.
func (s *Store) StorePattern(ctx context.Context, p *Pattern) error {
	if p == nil || p.Name == "" {
		return memory.OpError("swarm.StorePattern", "pattern", "", memory.ErrInvalidEntry)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.SuccessRate == 0 && p.UsageCount == 0 {
		p.SuccessRate = defaultSuccessRate
	}
	return s.put(ctx, patternKey(p.ID), nsPatterns, p, &memory.StoreOptions{
		AccessLevel: memory.AccessPublic,
		Tags:        []string{p.Context},
	})
}

// GetPattern returns a pattern by ID, or nil when unknown.
func (s *Store) GetPattern(ctx context.Context, id string) (*Pattern, error) {
	p := &Pattern{}
	ok, err := s.get(ctx, patternKey(id), nsPatterns, p)
	if err != nil || !ok {
		return nil, err
	}
	return p, nil
}

// UpdatePatternMetrics folds one outcome into a pattern's success rate as an
// exponential moving average and bumps its usage counters.
func (s *Store) UpdatePatternMetrics(ctx context.Context, id string, success bool) error {
	p, err := s.GetPattern(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return memory.OpError("swarm.UpdatePatternMetrics", "pattern", id, ErrPatternNotFound)
	}

	outcome := 0.0
	if success {
		outcome = 1.0
	}
	p.SuccessRate = patternAlpha*outcome + (1-patternAlpha)*p.SuccessRate
	p.UsageCount++
	p.LastUsed = time.Now()
	return s.StorePattern(ctx, p)
}

// FindBestPatterns returns the top-k patterns for a context, highest score
// first. Ties break toward the most recently used pattern. An empty context
// matches everything.
func (s *Store) FindBestPatterns(ctx context.Context, patternContext string, k int) ([]*Pattern, error) {
	entries, err := s.mgr.Query(ctx, memory.QueryFilter{Namespace: nsPatterns})
	if err != nil {
		return nil, err
	}
	patterns := decodeAll[Pattern](s, entries)

	matched := patterns[:0]
	for _, p := range patterns {
		if patternContext == "" || strings.EqualFold(p.Context, patternContext) {
			matched = append(matched, p)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		si, sj := matched[i].Score(), matched[j].Score()
		if si != sj {
			return si > sj
		}
		return matched[i].LastUsed.After(matched[j].LastUsed)
	})

	if k > 0 && len(matched) > k {
		matched = matched[:k]
	}
	return matched, nil
}
