package observer

import (
	"fmt"
	"math/rand"

	"github.com/imishinist/mlflow-observer/internal/learner"
)

// drawSamples picks min(n, ds.Len()) distinct items uniformly at random.
func drawSamples(ds learner.Dataset, n int, rng *rand.Rand) ([]learner.Item, []int, error) {
	size := ds.Len()
	n = min(n, size)
	if n <= 0 {
		return nil, nil, nil
	}

	indices := rng.Perm(size)[:n]
	items := make([]learner.Item, 0, n)
	for _, i := range indices {
		it, err := ds.Item(i)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read validation item %d: %w", i, err)
		}
		items = append(items, it)
	}
	return items, indices, nil
}
