// Package server exposes the move search, game sessions and training over
// HTTP.
//
// Routes:
//
//	GET  /                      service info
//	GET  /health                liveness and current weights
//	POST /suggest               top three moves for a board with a confidence grade
//	POST /ai-move               best move for a board
//	POST /new-game              start a server-side game session
//	GET  /sessions/{id}         session state
//	POST /sessions/{id}/step    let the AI play one piece in a session
//	DELETE /sessions/{id}       drop a session
//	POST /train                 run a training job and adopt its weights
//	POST /train/stop            stop the running job
//	GET  /train/status          job status and last progress update
//	GET  /train/events          progress as server-sent events
//	GET  /ws/train              progress over a websocket
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/brensch/tetrai/search"
	"github.com/brensch/tetrai/trainer"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const Version = "1.0.0"

type Config struct {
	Addr string
	// Weights are the initial live weights.
	Weights search.Weights
	// WeightsPath, when set, receives the weights of every completed
	// training run.
	WeightsPath string
	// ArchiveDir, when set, receives a parquet file of evaluations per run.
	ArchiveDir string
	// Trainer supplies the defaults for /train requests.
	Trainer     trainer.Config
	MaxSessions int
	// MaxGenerations and MaxPopulation bound a single /train request.
	MaxGenerations int
	MaxPopulation  int

	// ShutdownTimeout bounds the graceful shutdown in ListenAndServe.
	ShutdownTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:            ":8000",
		Weights:         search.DefaultWeights,
		Trainer:         trainer.DefaultConfig(),
		MaxSessions:     1024,
		MaxGenerations:  500,
		MaxPopulation:   500,
		ShutdownTimeout: 10 * time.Second,
	}
}

type Server struct {
	cfg Config

	mu sync.RWMutex
	ai *search.MoveSearch

	sessions *Sessions
	hub      *Hub
	job      trainingJob
}

func New(cfg Config) *Server {
	return &Server{
		cfg:      cfg,
		ai:       search.New(cfg.Weights),
		sessions: NewSessions(cfg.MaxSessions),
		hub:      NewHub(),
	}
}

func (s *Server) Hub() *Hub { return s.hub }

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Post("/suggest", s.handleSuggest)
	r.Post("/ai-move", s.handleAIMove)
	r.Post("/new-game", s.handleNewGame)

	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetSession)
		r.Delete("/", s.handleDeleteSession)
		r.Post("/step", s.handleStepSession)
	})

	r.Post("/train", s.handleTrain)
	r.Post("/train/stop", s.handleTrainStop)
	r.Get("/train/status", s.handleTrainStatus)
	r.Get("/train/events", s.serveSSE)
	r.Get("/ws/train", s.serveWS)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		_ = s.job.stop()
		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// cors allows any origin; the API is meant to sit behind a browser frontend.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
