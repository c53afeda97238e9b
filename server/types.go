package server

import (
	"github.com/brensch/tetrai/game"
	"github.com/brensch/tetrai/search"
)

// BoardState is what clients send to /suggest and /ai-move.
type BoardState = game.Snapshot

type InfoResponse struct {
	Message   string   `json:"message"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

type MoveResponse struct {
	Rotation int             `json:"rotation"`
	Column   int             `json:"column"`
	FinalY   int             `json:"final_y"`
	Score    float64         `json:"score"`
	Piece    game.PieceState `json:"piece"`
}

func moveResponse(m search.Move) MoveResponse {
	return MoveResponse{
		Rotation: m.Rotation,
		Column:   m.Column,
		FinalY:   m.FinalY,
		Score:    m.Score,
		Piece:    m.Piece.State(),
	}
}

type SuggestionResponse struct {
	BestMove     MoveResponse   `json:"best_move"`
	Alternatives []MoveResponse `json:"alternatives"`
	Confidence   string         `json:"confidence"`
}

type AIMoveResponse struct {
	Rotation int `json:"rotation"`
	Column   int `json:"column"`
	FinalY   int `json:"final_y"`
}

type SessionResponse struct {
	SessionID string        `json:"session_id"`
	State     game.Snapshot `json:"state"`
}

type StepResponse struct {
	SessionID    string        `json:"session_id"`
	Move         MoveResponse  `json:"move"`
	LinesCleared int           `json:"lines_cleared"`
	State        game.Snapshot `json:"state"`
}

type HealthResponse struct {
	Status   string         `json:"status"`
	AILoaded bool           `json:"ai_loaded"`
	Weights  search.Weights `json:"weights"`
	Training bool           `json:"training"`
}

type TrainRequest struct {
	Generations    int    `json:"generations"`
	PopulationSize int    `json:"population_size"`
	Episodes       int    `json:"episodes,omitempty"`
	MaxMoves       int    `json:"max_moves,omitempty"`
	Seed           uint64 `json:"seed,omitempty"`
}

type TrainResponse struct {
	Success     bool           `json:"success"`
	RunID       string         `json:"run_id"`
	BestScore   float64        `json:"best_score"`
	Weights     search.Weights `json:"weights"`
	Generations int            `json:"generations"`
	Message     string         `json:"message"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}
