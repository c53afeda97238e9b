package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/brensch/tetrai/game"
	"github.com/brensch/tetrai/search"
	"github.com/brensch/tetrai/store"
	"github.com/brensch/tetrai/trainer"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.WeightsPath = filepath.Join(t.TempDir(), "weights.json")
	cfg.ArchiveDir = filepath.Join(t.TempDir(), "archive")
	s := New(cfg)
	return s, s.Routes()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func emptyBoard(kind string) BoardState {
	board := make([][]int, game.Height)
	for y := range board {
		board[y] = make([]int, game.Width)
	}
	return BoardState{
		Board:         board,
		CurrentPiece:  game.PieceState{Type: kind, X: 4},
		NextPieceType: "T",
		Level:         1,
	}
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.True(t, resp.AILoaded)
	assert.Equal(t, search.DefaultWeights, resp.Weights)
	assert.False(t, resp.Training)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestIndex(t *testing.T) {
	_, h := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[InfoResponse](t, rec).Endpoints)
}

func TestSuggest(t *testing.T) {
	_, h := newTestServer(t)
	rec := do(t, h, http.MethodPost, "/suggest", emptyBoard("O"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[SuggestionResponse](t, rec)
	assert.Len(t, resp.Alternatives, 2)
	assert.Equal(t, 18, resp.BestMove.FinalY)
	assert.Equal(t, "O", resp.BestMove.Piece.Type)
	assert.GreaterOrEqual(t, resp.BestMove.Score, resp.Alternatives[0].Score)
	assert.Contains(t, []string{"high", "medium", "low"}, resp.Confidence)
}

func TestSuggestRejectsBadInput(t *testing.T) {
	_, h := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/suggest", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	short := emptyBoard("O")
	short.Board = short.Board[:10]
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/suggest", short).Code)

	bad := emptyBoard("Q")
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/suggest", bad).Code)

	blocked := emptyBoard("O")
	for x := 0; x < game.Width; x += 2 {
		blocked.Board[0][x] = 1
	}
	rec = do(t, h, http.MethodPost, "/suggest", blocked)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No valid moves")
}

func TestAIMove(t *testing.T) {
	_, h := newTestServer(t)
	rec := do(t, h, http.MethodPost, "/ai-move", emptyBoard("O"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[AIMoveResponse](t, rec)
	assert.Equal(t, AIMoveResponse{Rotation: 0, Column: 0, FinalY: 18}, resp)
}

func TestSessions(t *testing.T) {
	s, h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/new-game", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	created := decode[SessionResponse](t, rec)
	require.NotEmpty(t, created.SessionID)
	assert.Len(t, created.State.Board, game.Height)
	assert.Equal(t, 1, s.sessions.Len())

	rec = do(t, h, http.MethodPost, "/sessions/"+created.SessionID+"/step", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	step := decode[StepResponse](t, rec)
	assert.Equal(t, created.State.NextPieceType, step.State.CurrentPiece.Type)

	filled := 0
	for _, row := range step.State.Board {
		for _, v := range row {
			filled += v
		}
	}
	assert.Equal(t, 4, filled)

	rec = do(t, h, http.MethodGet, "/sessions/"+created.SessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, step.State.Board, decode[SessionResponse](t, rec).State.Board)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/sessions/"+created.SessionID, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/sessions/"+created.SessionID, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/sessions/nope/step", nil).Code)
}

func TestSessionsEvictOldest(t *testing.T) {
	ss := NewSessions(2)
	first := ss.Create(game.NewSeeded(1))
	time.Sleep(time.Millisecond)
	second := ss.Create(game.NewSeeded(2))
	time.Sleep(time.Millisecond)
	ss.Create(game.NewSeeded(3))

	assert.Equal(t, 2, ss.Len())
	assert.False(t, ss.With(first, func(*game.GameState) {}))
	assert.True(t, ss.With(second, func(*game.GameState) {}))
}

func TestTrain(t *testing.T) {
	s, h := newTestServer(t)
	updates, cancel := s.Hub().Subscribe()
	defer cancel()

	rec := do(t, h, http.MethodPost, "/train", TrainRequest{
		Generations:    2,
		PopulationSize: 3,
		Episodes:       1,
		MaxMoves:       40,
		Seed:           11,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[TrainResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Generations)
	assert.GreaterOrEqual(t, resp.BestScore, 0.0)

	saved, err := store.LoadWeights(s.cfg.WeightsPath)
	require.NoError(t, err)
	assert.Equal(t, [4]float64(resp.Weights), saved)

	health := decode[HealthResponse](t, do(t, h, http.MethodGet, "/health", nil))
	assert.Equal(t, resp.Weights, health.Weights)

	history, err := store.History(t.Context(), s.cfg.ArchiveDir)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	var kinds []trainer.ProgressKind
	for len(updates) > 0 {
		kinds = append(kinds, (<-updates).Kind)
	}
	assert.Len(t, kinds, 2*3+2)

	status := decode[trainStatusResponse](t, do(t, h, http.MethodGet, "/train/status", nil))
	assert.False(t, status.Running)
	require.NotNil(t, status.Last)
	assert.Equal(t, 100.0, status.Last.Percent)
}

func TestTrainValidation(t *testing.T) {
	_, h := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/train", TrainRequest{Generations: 0, PopulationSize: 4}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/train", TrainRequest{Generations: 1, PopulationSize: 100000}).Code)
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/train/stop", nil).Code)
}

func TestTrainRejectsConcurrentJob(t *testing.T) {
	s, h := newTestServer(t)
	_, err := s.job.start(t.Context())
	require.NoError(t, err)
	defer s.job.finish()

	rec := do(t, h, http.MethodPost, "/train", TrainRequest{Generations: 1, PopulationSize: 2})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/train/stop", nil).Code)
}

func TestHubNeverBlocks(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*4; i++ {
			hub.Publish(trainer.Progress{Generation: i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	last, ok := hub.Last()
	require.True(t, ok)
	assert.Equal(t, subscriberBuffer*4-1, last.Generation)

	cancel()
	assert.Equal(t, 0, hub.Subscribers())
}

func TestWebsocketProgress(t *testing.T) {
	s, h := newTestServer(t)
	ts := httptest.NewServer(h)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/train"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.Hub().Subscribers() == 1 }, 5*time.Second, 10*time.Millisecond)
	s.Hub().Publish(trainer.Progress{Kind: trainer.ProgressGeneration, Generation: 3, BestOverall: 12})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var got trainer.Progress
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, 3, got.Generation)
	assert.Equal(t, 12.0, got.BestOverall)
}

func TestTrainEventsSSE(t *testing.T) {
	s, h := newTestServer(t)
	ts := httptest.NewServer(h)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/train/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return s.Hub().Subscribers() == 1 }, 5*time.Second, 10*time.Millisecond)
	s.Hub().Publish(trainer.Progress{Kind: trainer.ProgressGeneration, Generation: 2, BestOverall: 7})

	lines := make(chan string, 8)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	next := func() string {
		select {
		case l, ok := <-lines:
			require.True(t, ok, "stream closed")
			return l
		case <-time.After(5 * time.Second):
			t.Fatal("no event received")
			return ""
		}
	}
	assert.Equal(t, "event: generation", next())
	data := next()
	require.True(t, strings.HasPrefix(data, "data: "), data)

	var got trainer.Progress
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(data, "data: ")), &got))
	assert.Equal(t, 2, got.Generation)
	assert.Equal(t, 7.0, got.BestOverall)
}

func TestTrainStopKeepsWeights(t *testing.T) {
	s, h := newTestServer(t)
	updates, cancel := s.Hub().Subscribe()
	defer cancel()

	body, err := json.Marshal(TrainRequest{
		Generations:    400,
		PopulationSize: 4,
		Episodes:       1,
		MaxMoves:       200,
		Seed:           21,
	})
	require.NoError(t, err)

	result := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/train", bytes.NewReader(body)))
		result <- rec
	}()

	deadline := time.After(30 * time.Second)
	for generationSeen := false; !generationSeen; {
		select {
		case p := <-updates:
			generationSeen = p.Kind == trainer.ProgressGeneration
		case <-deadline:
			t.Fatal("no generation finished")
		}
	}
	require.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/train/stop", nil).Code)

	var rec *httptest.ResponseRecorder
	select {
	case rec = <-result:
	case <-time.After(30 * time.Second):
		t.Fatal("training did not stop")
	}
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[TrainResponse](t, rec)
	assert.False(t, resp.Success)
	assert.GreaterOrEqual(t, resp.Generations, 1)
	assert.Less(t, resp.Generations, 400)

	assert.Equal(t, search.DefaultWeights, s.moveSearch().Weights())
	_, err = os.Stat(s.cfg.WeightsPath)
	assert.True(t, os.IsNotExist(err), "weights file written by a stopped run")

	history, err := store.History(context.Background(), s.cfg.ArchiveDir)
	require.NoError(t, err)
	assert.Len(t, history, resp.Generations)

	status := decode[trainStatusResponse](t, do(t, h, http.MethodGet, "/train/status", nil))
	assert.False(t, status.Running)
}
