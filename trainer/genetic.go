package trainer

import (
	"math/rand/v2"

	"github.com/brensch/tetrai/search"
)

// RandomWeights draws every gene uniformly from [-1, 1].
func RandomWeights(rng *rand.Rand) search.Weights {
	var w search.Weights
	for i := range w {
		w[i] = rng.Float64()*2 - 1
	}
	return w
}

// Mutate perturbs each gene independently: with probability rate it gets
// Gaussian noise of standard deviation scale added.
func Mutate(w search.Weights, rate, scale float64, rng *rand.Rand) search.Weights {
	for i := range w {
		if rng.Float64() < rate {
			w[i] += rng.NormFloat64() * scale
		}
	}
	return w
}

// Crossover picks each gene from a or b with equal probability.
func Crossover(a, b search.Weights, rng *rand.Rand) search.Weights {
	var child search.Weights
	for i := range child {
		if rng.Float64() < 0.5 {
			child[i] = a[i]
		} else {
			child[i] = b[i]
		}
	}
	return child
}

// breed builds the next population from individuals sorted best first. The
// best individual is carried over unchanged.
func (t *Trainer) breed(ranked []search.Weights) []search.Weights {
	n := len(ranked)
	eliteN := max(1, n/t.cfg.EliteDivisor)
	elite := ranked[:eliteN]

	next := make([]search.Weights, 0, n)
	next = append(next, elite[0])
	for len(next) < n {
		if len(elite) >= 2 && t.rng.Float64() < t.cfg.CrossoverRate {
			a := elite[t.rng.IntN(len(elite))]
			b := elite[t.rng.IntN(len(elite))]
			child := Crossover(a, b, t.rng)
			next = append(next, Mutate(child, t.cfg.ChildMutationRate, t.cfg.ChildMutationScale, t.rng))
		} else {
			parent := elite[t.rng.IntN(len(elite))]
			next = append(next, Mutate(parent, t.cfg.MutationRate, t.cfg.MutationScale, t.rng))
		}
	}
	return next
}
