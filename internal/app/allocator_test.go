package app_test

import (
	"fmt"
	"math/rand"
	"testing"

	"contest-service/internal/app"
	"contest-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateEqualWeightsRemainderToEasy(t *testing.T) {
	got := app.Allocate(10, domain.DifficultyDistribution{Easy: 1, Medium: 1, Hard: 1})
	assert.Equal(t, domain.DifficultyCounts{Easy: 4, Medium: 3, Hard: 3}, got)
}

func TestAllocateSumsToBudget(t *testing.T) {
	weights := []domain.DifficultyDistribution{
		{},
		{Easy: 1},
		{Hard: 5},
		{Easy: 1, Medium: 1, Hard: 1},
		{Easy: 0.5, Medium: 0.5},
		{Easy: 0.2, Medium: 0.3, Hard: 0.5},
		{Easy: 3, Medium: 1, Hard: 1},
		{Easy: -2, Medium: 1, Hard: 1},
		{Easy: 1, Medium: 2, Hard: 2},
	}
	for _, w := range weights {
		for budget := 0; budget <= 25; budget++ {
			got := app.Allocate(budget, w)
			require.Equal(t, budget, got.Total(), "budget %d weights %+v -> %+v", budget, w, got)
			require.True(t, got.Easy >= 0 && got.Medium >= 0 && got.Hard >= 0, "negative bucket for %+v", w)
		}
	}
}

func TestAllocateZeroWeightsSplitsEvenly(t *testing.T) {
	assert.Equal(t, domain.DifficultyCounts{Easy: 3, Medium: 3, Hard: 3}, app.Allocate(9, domain.DifficultyDistribution{}))
}

func TestAllocateLargestWeightTakesRemainder(t *testing.T) {
	// 7 * {0.25, 0.25, 0.5} = 1.75, 1.75, 3.5 -> 2, 2, 4 = 8, hard gives one back
	got := app.Allocate(7, domain.DifficultyDistribution{Easy: 1, Medium: 1, Hard: 2})
	assert.Equal(t, domain.DifficultyCounts{Easy: 2, Medium: 2, Hard: 3}, got)
}

func TestSelectSamplesPerBucket(t *testing.T) {
	pool := append(append(items("e", "easy", 5), items("m", "medium", 5)...), items("h", "high", 5)...)
	alloc := app.NewDifficultyAllocator(rand.New(rand.NewSource(7)))

	counts, picked := alloc.Select(6, domain.DifficultyDistribution{Easy: 1, Medium: 1, Hard: 1}, pool)
	assert.Equal(t, domain.DifficultyCounts{Easy: 2, Medium: 2, Hard: 2}, counts)
	require.Len(t, picked, 6)

	byBucket := map[string]int{}
	for _, it := range picked {
		byBucket[app.DifficultyBucket(it.Difficulty)]++
	}
	assert.Equal(t, map[string]int{"easy": 2, "medium": 2, "hard": 2}, byBucket)
	assertUnique(t, picked)
}

func TestSelectFillsShortBucketWithoutDuplicates(t *testing.T) {
	pool := append(items("e", "easy", 1), items("m", "medium", 6)...)
	pool = append(pool, pool[0]) // same question listed twice
	alloc := app.NewDifficultyAllocator(rand.New(rand.NewSource(1)))

	_, picked := alloc.Select(5, domain.DifficultyDistribution{Easy: 4, Medium: 1}, pool)
	require.Len(t, picked, 5)
	assertUnique(t, picked)
}

func TestSelectReturnsWholePoolWhenSmall(t *testing.T) {
	pool := items("q", "hard", 3)
	alloc := app.NewDifficultyAllocator(rand.New(rand.NewSource(1)))

	_, picked := alloc.Select(10, domain.DifficultyDistribution{Hard: 1}, append(pool, pool...))
	assert.Len(t, picked, 3)
	assertUnique(t, picked)
}

func TestSelectIsReproducibleForASeed(t *testing.T) {
	pool := append(items("e", "easy", 8), items("h", "hard", 8)...)
	w := domain.DifficultyDistribution{Easy: 1, Hard: 1}

	_, a := app.NewDifficultyAllocator(rand.New(rand.NewSource(42))).Select(6, w, pool)
	_, b := app.NewDifficultyAllocator(rand.New(rand.NewSource(42))).Select(6, w, pool)
	assert.Equal(t, a, b)
}

func items(prefix, difficulty string, n int) []domain.ContentItem {
	out := make([]domain.ContentItem, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.ContentItem{ID: fmt.Sprintf("%s%d", prefix, i), Difficulty: difficulty})
	}
	return out
}

func assertUnique(t *testing.T, picked []domain.ContentItem) {
	t.Helper()
	seen := map[string]bool{}
	for _, it := range picked {
		assert.False(t, seen[it.ID], "duplicate item %s", it.ID)
		seen[it.ID] = true
	}
}
