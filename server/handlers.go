package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/brensch/tetrai/game"
	"github.com/brensch/tetrai/search"
	"github.com/brensch/tetrai/trainer"
	"github.com/go-chi/chi/v5"
)

const suggestionCount = 3

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, InfoResponse{
		Message: "Tetris AI API",
		Version: Version,
		Endpoints: []string{
			"/suggest - Get AI suggestions",
			"/ai-move - Get best AI move",
			"/new-game - Start new game",
			"/sessions/{id}/step - Let the AI play one piece",
			"/train - Train new weights",
			"/ws/train - Training progress stream",
			"/health - Health check",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	running, _, _ := s.job.status()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "healthy",
		AILoaded: true,
		Weights:  s.moveSearch().Weights(),
		Training: running,
	})
}

// decodeBoard rebuilds a game from the request body.
func decodeBoard(r *http.Request) (*game.GameState, error) {
	var req BoardState
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("decode board state: %w", err)
	}
	return game.Restore(req, rand.Uint64())
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	state, err := decodeBoard(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	moves := s.moveSearch().TopK(state, suggestionCount)
	if len(moves) == 0 {
		writeError(w, http.StatusBadRequest, "No valid moves available")
		return
	}

	alts := make([]MoveResponse, 0, len(moves)-1)
	for _, m := range moves[1:] {
		alts = append(alts, moveResponse(m))
	}
	writeJSON(w, http.StatusOK, SuggestionResponse{
		BestMove:     moveResponse(moves[0]),
		Alternatives: alts,
		Confidence:   search.Confidence(moves),
	})
}

func (s *Server) handleAIMove(w http.ResponseWriter, r *http.Request) {
	state, err := decodeBoard(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	best, err := s.moveSearch().BestMove(state)
	if errors.Is(err, search.ErrNoLegalMoves) {
		writeError(w, http.StatusBadRequest, "No valid moves")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, AIMoveResponse{Rotation: best.Rotation, Column: best.Column, FinalY: best.FinalY})
}

func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	state := game.New()
	id := s.sessions.Create(state)
	writeJSON(w, http.StatusOK, SessionResponse{SessionID: id, State: state.Snapshot()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var snap game.Snapshot
	if !s.sessions.With(id, func(g *game.GameState) { snap = g.Snapshot() }) {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{SessionID: id, State: snap})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStepSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ms := s.moveSearch()

	var (
		resp    StepResponse
		stepErr error
	)
	found := s.sessions.With(id, func(g *game.GameState) {
		if g.Terminal() {
			stepErr = game.ErrTerminalState
			return
		}
		best, err := ms.BestMove(g)
		if err != nil {
			stepErr = err
			return
		}
		cleared, err := g.LockCurrentPiece(best.Piece)
		if err != nil {
			stepErr = err
			return
		}
		resp = StepResponse{SessionID: id, Move: moveResponse(best), LinesCleared: cleared, State: g.Snapshot()}
	})

	switch {
	case !found:
		writeError(w, http.StatusNotFound, "unknown session")
	case errors.Is(stepErr, game.ErrTerminalState), errors.Is(stepErr, search.ErrNoLegalMoves):
		writeError(w, http.StatusConflict, stepErr.Error())
	case stepErr != nil:
		writeError(w, http.StatusInternalServerError, stepErr.Error())
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	req := TrainRequest{Generations: 30, PopulationSize: 40}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("decode train request: %v", err))
			return
		}
	}
	if req.Generations < 1 || req.PopulationSize < 1 ||
		(s.cfg.MaxGenerations > 0 && req.Generations > s.cfg.MaxGenerations) ||
		(s.cfg.MaxPopulation > 0 && req.PopulationSize > s.cfg.MaxPopulation) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("generations must be in [1,%d] and population_size in [1,%d]",
			s.cfg.MaxGenerations, s.cfg.MaxPopulation))
		return
	}

	res, err := s.train(r.Context(), req)
	switch {
	case errors.Is(err, errTrainingRunning):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled):
		writeJSON(w, http.StatusOK, TrainResponse{
			Success:     false,
			RunID:       res.RunID,
			BestScore:   res.BestFitness,
			Weights:     res.BestWeights,
			Generations: len(res.Generations),
			Message:     "Training stopped; live weights unchanged",
		})
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, TrainResponse{
			Success:     true,
			RunID:       res.RunID,
			BestScore:   res.BestFitness,
			Weights:     res.BestWeights,
			Generations: len(res.Generations),
			Message:     "Training completed successfully",
		})
	}
}

func (s *Server) handleTrainStop(w http.ResponseWriter, r *http.Request) {
	if err := s.job.stop(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}

type trainStatusResponse struct {
	Running bool              `json:"running"`
	RunID   string            `json:"run_id,omitempty"`
	Started *time.Time        `json:"started,omitempty"`
	Last    *trainer.Progress `json:"last,omitempty"`
}

func (s *Server) handleTrainStatus(w http.ResponseWriter, r *http.Request) {
	running, runID, started := s.job.status()
	resp := trainStatusResponse{Running: running, RunID: runID}
	if !started.IsZero() {
		resp.Started = &started
	}
	if p, ok := s.hub.Last(); ok {
		resp.Last = &p
	}
	writeJSON(w, http.StatusOK, resp)
}
