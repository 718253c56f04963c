package persist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/omega-realm/pokeidle/internal/models"
)

var errInjected = errors.New("injected store failure")

// MemoryStore keeps player state in process. FailLoads and FailSaves make the next
// n calls fail, for exercising retries.
type MemoryStore struct {
	mu        sync.Mutex
	states    map[int64]*models.PlayerState
	FailLoads int
	FailSaves int
	Loads     int
	Saves     int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[int64]*models.PlayerState)}
}

func (s *MemoryStore) Put(state *models.PlayerState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.Player.ID] = state.Clone()
}

func (s *MemoryStore) LoadPlayerState(_ context.Context, playerID int64) (*models.PlayerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Loads++
	if s.FailLoads > 0 {
		s.FailLoads--
		return nil, errInjected
	}
	st, ok := s.states[playerID]
	if !ok {
		return nil, fmt.Errorf("player %d: %w", playerID, models.ErrNotFound)
	}
	return st.Clone(), nil
}

func (s *MemoryStore) SavePlayerState(_ context.Context, state *models.PlayerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Saves++
	if s.FailSaves > 0 {
		s.FailSaves--
		return errInjected
	}
	s.states[state.Player.ID] = state.Clone()
	return nil
}

// CreatePlayer stores a new player, rejecting duplicate ids and usernames
func (s *MemoryStore) CreatePlayer(_ context.Context, state *models.PlayerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[state.Player.ID]; ok {
		return models.ErrPlayerExists
	}
	for _, st := range s.states {
		if st.Player.Username == state.Player.Username {
			return models.ErrUsernameTaken
		}
	}
	s.states[state.Player.ID] = state.Clone()
	return nil
}

// Snapshot returns the stored state without counting a load
func (s *MemoryStore) Snapshot(playerID int64) (*models.PlayerState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[playerID]
	if !ok {
		return nil, false
	}
	return st.Clone(), true
}

func (s *MemoryStore) SetFailSaves(n int) {
	s.mu.Lock()
	s.FailSaves = n
	s.mu.Unlock()
}

func (s *MemoryStore) SaveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Saves
}

// MemoryBacklog is an in-process Backlog
type MemoryBacklog struct {
	mu     sync.Mutex
	states map[int64]*models.PlayerState
}

func NewMemoryBacklog() *MemoryBacklog {
	return &MemoryBacklog{states: make(map[int64]*models.PlayerState)}
}

func (b *MemoryBacklog) Put(_ context.Context, state *models.PlayerState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states[state.Player.ID] = state.Clone()
	return nil
}

func (b *MemoryBacklog) Get(_ context.Context, playerID int64) (*models.PlayerState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.states[playerID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return st.Clone(), nil
}

func (b *MemoryBacklog) Delete(_ context.Context, playerID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.states, playerID)
	return nil
}

func (b *MemoryBacklog) List(_ context.Context) ([]int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]int64, 0, len(b.states))
	for id := range b.states {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
