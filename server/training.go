package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/brensch/tetrai/search"
	"github.com/brensch/tetrai/store"
	"github.com/brensch/tetrai/trainer"
)

var (
	errTrainingRunning = errors.New("training already running")
	errNotTraining     = errors.New("no training running")
)

// trainingJob allows one training run at a time and lets another request
// stop it.
type trainingJob struct {
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	runID   string
	started time.Time
}

func (j *trainingJob) start(parent context.Context) (context.Context, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil, errTrainingRunning
	}
	ctx, cancel := context.WithCancel(parent)
	j.running = true
	j.cancel = cancel
	j.started = time.Now()
	return ctx, nil
}

func (j *trainingJob) setRunID(id string) {
	j.mu.Lock()
	j.runID = id
	j.mu.Unlock()
}

func (j *trainingJob) finish() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		j.cancel()
	}
	j.running = false
	j.cancel = nil
}

func (j *trainingJob) stop() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return errNotTraining
	}
	j.cancel()
	return nil
}

func (j *trainingJob) status() (running bool, runID string, started time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running, j.runID, j.started
}

// train runs a trainer to completion, publishing progress on the hub. On
// success the best weights replace the live ones and are persisted.
func (s *Server) train(ctx context.Context, req TrainRequest) (trainer.Result, error) {
	ctx, err := s.job.start(ctx)
	if err != nil {
		return trainer.Result{}, err
	}
	defer s.job.finish()

	cfg := s.cfg.Trainer
	cfg.Generations = req.Generations
	cfg.PopulationSize = req.PopulationSize
	if req.Episodes > 0 {
		cfg.Episodes = req.Episodes
	}
	if req.MaxMoves > 0 {
		cfg.MaxMoves = req.MaxMoves
	}
	cfg.Seed = req.Seed

	tr := trainer.New(cfg)
	s.job.setRunID(tr.RunID())
	slog.Info("training started",
		"run_id", tr.RunID(),
		"generations", cfg.Generations,
		"population", cfg.PopulationSize,
		"episodes", tr.Config().Episodes,
		"max_moves", tr.Config().MaxMoves,
	)

	res, err := tr.Run(ctx, s.hub.Publish)
	if s.cfg.ArchiveDir != "" && len(res.Generations) > 0 {
		if path, werr := store.WriteParquetAtomic(s.cfg.ArchiveDir, store.SchemaEvaluation, trainer.EvaluationRows(res, tr.Config())); werr != nil {
			slog.Error("write evaluation archive", "err", werr)
		} else {
			slog.Info("evaluation archive written", "path", path)
		}
	}
	if err != nil {
		return res, err
	}

	s.SetWeights(res.BestWeights)
	if s.cfg.WeightsPath != "" {
		if err := store.SaveWeights(s.cfg.WeightsPath, [4]float64(res.BestWeights)); err != nil {
			return res, fmt.Errorf("save weights: %w", err)
		}
	}
	slog.Info("training finished", "run_id", res.RunID, "best", res.BestFitness, "weights", res.BestWeights)
	return res, nil
}

// SetWeights swaps the live move search.
func (s *Server) SetWeights(w search.Weights) {
	s.mu.Lock()
	s.ai = search.New(w)
	s.mu.Unlock()
}

func (s *Server) moveSearch() *search.MoveSearch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ai
}
