package server

import (
	"sync"
	"time"

	"github.com/brensch/tetrai/game"
	"github.com/oklog/ulid/v2"
)

type session struct {
	mu      sync.Mutex
	state   *game.GameState
	touched time.Time
}

// Sessions holds in-memory games keyed by ULID. Each game is guarded by its
// own mutex so steps on different sessions do not contend.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*session
	max      int
}

func NewSessions(max int) *Sessions {
	return &Sessions{sessions: make(map[string]*session), max: max}
}

// Create stores a fresh game and returns its id. When the store is full the
// least recently used session is evicted.
func (s *Sessions) Create(state *game.GameState) string {
	id := ulid.Make().String()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.max > 0 && len(s.sessions) >= s.max {
		s.evictOldestLocked()
	}
	s.sessions[id] = &session{state: state, touched: time.Now()}
	return id
}

func (s *Sessions) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, sess := range s.sessions {
		if oldestID == "" || sess.touched.Before(oldest) {
			oldestID, oldest = id, sess.touched
		}
	}
	delete(s.sessions, oldestID)
}

// With runs fn with exclusive access to the session's game. It reports false
// if the id is unknown.
func (s *Sessions) With(id string, fn func(*game.GameState)) bool {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.touched = time.Now()
	fn(sess.state)
	return true
}

func (s *Sessions) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
