package app

import (
	"math"
	"math/rand"
	"strings"

	"contest-service/internal/domain"
)

// Allocate splits budget across easy/medium/hard in proportion to weights.
// The counts always sum to budget: the rounding remainder goes to the bucket
// with the largest weight, ties resolved easy, then medium, then hard.
func Allocate(budget int, weights domain.DifficultyDistribution) domain.DifficultyCounts {
	if budget <= 0 {
		return domain.DifficultyCounts{}
	}
	w := [3]float64{nonNegative(weights.Easy), nonNegative(weights.Medium), nonNegative(weights.Hard)}
	sum := w[0] + w[1] + w[2]
	if sum == 0 {
		w = [3]float64{1, 1, 1}
		sum = 3
	}

	var counts [3]int
	allocated := 0
	largest := 0
	for i := range w {
		counts[i] = int(math.Round(w[i] / sum * float64(budget)))
		allocated += counts[i]
		if w[i] > w[largest] {
			largest = i
		}
	}
	counts[largest] += budget - allocated

	// a negative correction on a tiny budget can overshoot; spill it in tie-break order
	for i := range counts {
		if counts[i] < 0 {
			deficit := -counts[i]
			counts[i] = 0
			for j := range counts {
				if j == i || deficit == 0 {
					continue
				}
				take := min(counts[j], deficit)
				counts[j] -= take
				deficit -= take
			}
		}
	}
	return domain.DifficultyCounts{Easy: counts[0], Medium: counts[1], Hard: counts[2]}
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}

// DifficultyAllocator samples a question set from a difficulty-tagged pool.
// The random source is explicit so identical seeds reproduce identical picks.
type DifficultyAllocator struct {
	rnd *rand.Rand
}

func NewDifficultyAllocator(rnd *rand.Rand) *DifficultyAllocator {
	return &DifficultyAllocator{rnd: rnd}
}

// Select allocates budget and draws items without replacement. Short buckets
// are topped up from unused items of any difficulty; if the pool is smaller
// than budget everything available is returned, never padded with repeats.
func (a *DifficultyAllocator) Select(budget int, weights domain.DifficultyDistribution, pool []domain.ContentItem) (domain.DifficultyCounts, []domain.ContentItem) {
	counts := Allocate(budget, weights)
	if budget <= 0 {
		return counts, nil
	}

	unique := dedupeItems(pool)
	buckets := make(map[string][]int, 3)
	for i, item := range unique {
		if b := DifficultyBucket(item.Difficulty); b != "" {
			buckets[b] = append(buckets[b], i)
		}
	}

	used := make([]bool, len(unique))
	picked := make([]domain.ContentItem, 0, budget)
	take := func(bucket string, n int) {
		idx := buckets[bucket]
		for _, p := range a.rnd.Perm(len(idx)) {
			if n == 0 {
				return
			}
			used[idx[p]] = true
			picked = append(picked, unique[idx[p]])
			n--
		}
	}
	take("easy", counts.Easy)
	take("medium", counts.Medium)
	take("hard", counts.Hard)

	if short := budget - len(picked); short > 0 {
		for _, p := range a.rnd.Perm(len(unique)) {
			if short == 0 {
				break
			}
			if used[p] {
				continue
			}
			used[p] = true
			picked = append(picked, unique[p])
			short--
		}
	}

	a.rnd.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
	return counts, picked
}

// DifficultyBucket maps a difficulty tag onto easy, medium or hard. Unknown
// tags belong to no bucket and are only used to fill shortfalls.
func DifficultyBucket(tag string) string {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "easy", "low":
		return "easy"
	case "medium":
		return "medium"
	case "hard", "high", "very_high":
		return "hard"
	}
	return ""
}

func dedupeItems(pool []domain.ContentItem) []domain.ContentItem {
	seen := make(map[string]struct{}, len(pool))
	out := make([]domain.ContentItem, 0, len(pool))
	for _, item := range pool {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	return out
}
