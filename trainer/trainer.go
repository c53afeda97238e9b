// Package trainer tunes search.Weights with a genetic algorithm.
//
// Each generation every individual plays a few seeded self-play episodes;
// its fitness is the mean number of lines cleared. Evaluations run in
// parallel on a bounded pool and all of them finish before the next
// population is bred from the top fifth.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/brensch/tetrai/search"
	"github.com/brensch/tetrai/selfplay"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
)

var ErrBadConfig = errors.New("bad trainer config")

type Config struct {
	Generations    int
	PopulationSize int
	// Episodes is the number of games averaged per fitness evaluation.
	Episodes int
	// MaxMoves caps every episode.
	MaxMoves    int
	Parallelism int
	// Seed drives population init, episode seeds and breeding. Zero picks a
	// random seed.
	Seed uint64

	CrossoverRate      float64
	ChildMutationRate  float64
	ChildMutationScale float64
	MutationRate       float64
	MutationScale      float64
	// EliteDivisor sets the elite to the top PopulationSize/EliteDivisor
	// individuals (at least one).
	EliteDivisor int
}

func DefaultConfig() Config {
	return Config{
		Generations:        30,
		PopulationSize:     40,
		Episodes:           3,
		MaxMoves:           800,
		Parallelism:        runtime.NumCPU(),
		CrossoverRate:      0.7,
		ChildMutationRate:  0.2,
		ChildMutationScale: 0.2,
		MutationRate:       0.25,
		MutationScale:      0.3,
		EliteDivisor:       5,
	}
}

// withDefaults fills zero-valued knobs from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Episodes <= 0 {
		c.Episodes = d.Episodes
	}
	if c.MaxMoves <= 0 {
		c.MaxMoves = d.MaxMoves
	}
	if c.Parallelism <= 0 {
		c.Parallelism = d.Parallelism
	}
	if c.CrossoverRate == 0 && c.ChildMutationRate == 0 && c.MutationRate == 0 {
		c.CrossoverRate = d.CrossoverRate
		c.ChildMutationRate = d.ChildMutationRate
		c.ChildMutationScale = d.ChildMutationScale
		c.MutationRate = d.MutationRate
		c.MutationScale = d.MutationScale
	}
	if c.EliteDivisor <= 0 {
		c.EliteDivisor = d.EliteDivisor
	}
	return c
}

// Evaluation is one individual's fitness within a generation.
type Evaluation struct {
	Individual int
	Weights    search.Weights
	Fitness    float64
	Elite      bool
}

type GenerationStats struct {
	Generation  int
	Best        float64
	Mean        float64
	Worst       float64
	BestWeights search.Weights
	Evaluations []Evaluation
	Elapsed     time.Duration
}

type Result struct {
	RunID       string
	Seed        uint64
	BestWeights search.Weights
	BestFitness float64
	Generations []GenerationStats
}

type Trainer struct {
	cfg   Config
	seed  uint64
	rng   *rand.Rand
	runID string
}

func New(cfg Config) *Trainer {
	cfg = cfg.withDefaults()
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Trainer{
		cfg:   cfg,
		seed:  seed,
		rng:   rand.New(rand.NewPCG(seed, seed>>1|1)),
		runID: ulid.Make().String(),
	}
}

func (t *Trainer) Config() Config { return t.cfg }
func (t *Trainer) RunID() string  { return t.runID }

// Run trains for the configured number of generations. Cancelling ctx stops
// the run; the best individual found so far is returned with ctx.Err().
func (t *Trainer) Run(ctx context.Context, onProgress ProgressFunc) (Result, error) {
	gens, n := t.cfg.Generations, t.cfg.PopulationSize
	if gens < 1 || n < 1 {
		return Result{}, fmt.Errorf("%w: generations=%d population=%d", ErrBadConfig, gens, n)
	}

	rep := newReporter(onProgress)
	defer rep.close()
	res := Result{RunID: t.runID, Seed: t.seed}
	total := float64(gens * n)

	pop := make([]search.Weights, n)
	for i := range pop {
		pop[i] = RandomWeights(t.rng)
	}

	for gen := 0; gen < gens; gen++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		start := time.Now()

		seeds := make([][]uint64, n)
		for i := range seeds {
			seeds[i] = make([]uint64, t.cfg.Episodes)
			for e := range seeds[i] {
				seeds[i][e] = t.rng.Uint64()
			}
		}

		fitness := make([]float64, n)
		var (
			mu        sync.Mutex
			completed int
			genBest   = math.Inf(-1)
		)
		bestSoFar := math.Inf(-1)
		if len(res.Generations) > 0 {
			bestSoFar = res.BestFitness
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(t.cfg.Parallelism)
		for i := range pop {
			g.Go(func() error {
				f, err := Fitness(gctx, pop[i], seeds[i], t.cfg.MaxMoves)
				if err != nil {
					return err
				}

				mu.Lock()
				defer mu.Unlock()
				fitness[i] = f
				completed++
				genBest = max(genBest, f)
				rep.emit(Progress{
					Kind:             ProgressIndividual,
					Generation:       gen + 1,
					Generations:      gens,
					Individual:       i + 1,
					PopulationSize:   n,
					Fitness:          f,
					BestInGeneration: genBest,
					BestOverall:      max(bestSoFar, genBest),
					Percent:          100 * float64(gen*n+completed) / total,
				})
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return res, err
		}

		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return fitness[order[a]] > fitness[order[b]] })

		ranked := make([]search.Weights, n)
		for r, idx := range order {
			ranked[r] = pop[idx]
		}

		stats := t.stats(gen+1, pop, fitness, order)
		stats.Elapsed = time.Since(start)
		if len(res.Generations) == 0 || stats.Best > res.BestFitness {
			res.BestFitness = stats.Best
			res.BestWeights = stats.BestWeights
		}
		res.Generations = append(res.Generations, stats)

		slog.Info("generation complete",
			"run_id", t.runID,
			"generation", gen+1,
			"best", stats.Best,
			"mean", stats.Mean,
			"best_overall", res.BestFitness,
			"weights", res.BestWeights,
			"elapsed", stats.Elapsed,
		)
		rep.emit(Progress{
			Kind:             ProgressGeneration,
			Generation:       gen + 1,
			Generations:      gens,
			Individual:       n,
			PopulationSize:   n,
			Fitness:          stats.Best,
			BestInGeneration: stats.Best,
			BestOverall:      res.BestFitness,
			Percent:          100 * float64((gen+1)*n) / total,
		})

		if gen < gens-1 {
			pop = t.breed(ranked)
		}
	}
	return res, nil
}

func (t *Trainer) stats(gen int, pop []search.Weights, fitness []float64, order []int) GenerationStats {
	eliteN := max(1, len(pop)/t.cfg.EliteDivisor)
	isElite := make(map[int]bool, eliteN)
	for _, idx := range order[:eliteN] {
		isElite[idx] = true
	}

	s := GenerationStats{
		Generation:  gen,
		Best:        fitness[order[0]],
		Worst:       fitness[order[len(order)-1]],
		BestWeights: pop[order[0]],
		Evaluations: make([]Evaluation, len(pop)),
	}
	sum := 0.0
	for i, w := range pop {
		sum += fitness[i]
		s.Evaluations[i] = Evaluation{Individual: i + 1, Weights: w, Fitness: fitness[i], Elite: isElite[i]}
	}
	s.Mean = sum / float64(len(pop))
	return s
}

// Fitness is the mean number of lines cleared over one episode per seed.
// Episodes end at game over, when no move exists, or at maxMoves.
func Fitness(ctx context.Context, w search.Weights, seeds []uint64, maxMoves int) (float64, error) {
	if len(seeds) == 0 {
		return 0, nil
	}
	ms := search.New(w)
	lines := 0
	for _, seed := range seeds {
		res, err := selfplay.PlayEpisode(ctx, ms, selfplay.Options{Seed: seed, MaxMoves: maxMoves})
		if err != nil {
			return 0, err
		}
		lines += res.Lines
	}
	return float64(lines) / float64(len(seeds)), nil
}

// Run trains with default settings and returns the best weights and fitness.
func Run(ctx context.Context, generations, populationSize int, onProgress ProgressFunc) (search.Weights, float64, error) {
	cfg := DefaultConfig()
	cfg.Generations = generations
	cfg.PopulationSize = populationSize
	res, err := New(cfg).Run(ctx, onProgress)
	return res.BestWeights, res.BestFitness, err
}
