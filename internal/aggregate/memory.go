package aggregate

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/omega-realm/pokeidle/internal/models"
)

type questState struct {
	progress int64
	done     bool
}

// MemoryBackend is a single-process Backend
type MemoryBackend struct {
	mu      sync.Mutex
	boards  map[models.LeaderboardType]map[int64]int64
	pokedex map[int64]map[int]struct{}
	names   map[int64]string
	quests  map[string]*questState
}

func NewMemoryBackend() *MemoryBackend {
	b := &MemoryBackend{
		boards:  make(map[models.LeaderboardType]map[int64]int64),
		pokedex: make(map[int64]map[int]struct{}),
		names:   make(map[int64]string),
		quests:  make(map[string]*questState),
	}
	for _, t := range models.LeaderboardTypes {
		b.boards[t] = make(map[int64]int64)
	}
	return b
}

func (b *MemoryBackend) board(t models.LeaderboardType) (map[int64]int64, error) {
	m, ok := b.boards[t]
	if !ok {
		return nil, fmt.Errorf("unknown leaderboard %q", t)
	}
	return m, nil
}

func (b *MemoryBackend) IncrScore(_ context.Context, t models.LeaderboardType, playerID, delta int64) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, err := b.board(t)
	if err != nil {
		return 0, err
	}
	m[playerID] += delta
	return m[playerID], nil
}

func (b *MemoryBackend) MaxScore(_ context.Context, t models.LeaderboardType, playerID, score int64) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, err := b.board(t)
	if err != nil {
		return 0, err
	}
	if cur, ok := m[playerID]; !ok || score > cur {
		m[playerID] = score
	}
	return m[playerID], nil
}

func (b *MemoryBackend) SetScore(_ context.Context, t models.LeaderboardType, playerID, score int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, err := b.board(t)
	if err != nil {
		return err
	}
	m[playerID] = score
	return nil
}

func (b *MemoryBackend) Score(_ context.Context, t models.LeaderboardType, playerID int64) (int64, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, err := b.board(t)
	if err != nil {
		return 0, false, err
	}
	s, ok := m[playerID]
	return s, ok, nil
}

func (b *MemoryBackend) Top(_ context.Context, t models.LeaderboardType, limit int) ([]Score, error) {
	b.mu.Lock()
	m, err := b.board(t)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	out := make([]Score, 0, len(m))
	for id, s := range m {
		out = append(out, Score{PlayerID: id, Score: s})
	}
	b.mu.Unlock()

	SortScores(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (b *MemoryBackend) DistinctAbove(_ context.Context, t models.LeaderboardType, score int64) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, err := b.board(t)
	if err != nil {
		return 0, err
	}
	seen := make(map[int64]struct{})
	for _, s := range m {
		if s > score {
			seen[s] = struct{}{}
		}
	}
	return int64(len(seen)), nil
}

func (b *MemoryBackend) Reset(_ context.Context, t models.LeaderboardType) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.board(t); err != nil {
		return err
	}
	b.boards[t] = make(map[int64]int64)
	if t == models.LeaderboardPokedex {
		b.pokedex = make(map[int64]map[int]struct{})
	}
	return nil
}

func (b *MemoryBackend) AddPokedex(_ context.Context, playerID int64, speciesIDs ...int) ([]int, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.pokedex[playerID]
	if !ok {
		set = make(map[int]struct{})
		b.pokedex[playerID] = set
	}
	var added []int
	for _, id := range speciesIDs {
		if _, ok := set[id]; ok {
			continue
		}
		set[id] = struct{}{}
		added = append(added, id)
	}
	total := int64(len(set))
	b.boards[models.LeaderboardPokedex][playerID] = total
	return added, total, nil
}

func (b *MemoryBackend) ReplacePokedex(_ context.Context, playerID int64, speciesIDs []int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := make(map[int]struct{}, len(speciesIDs))
	for _, id := range speciesIDs {
		set[id] = struct{}{}
	}
	b.pokedex[playerID] = set
	b.boards[models.LeaderboardPokedex][playerID] = int64(len(set))
	return nil
}

func (b *MemoryBackend) SetNames(_ context.Context, names map[int64]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, n := range names {
		b.names[id] = n
	}
	return nil
}

func (b *MemoryBackend) Names(_ context.Context, ids []int64) (map[int64]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[int64]string, len(ids))
	for _, id := range ids {
		if n, ok := b.names[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

func (b *MemoryBackend) IncrQuest(_ context.Context, questID string, delta, target int64) (QuestProgress, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.quests[questID]
	if !ok {
		q = &questState{}
		b.quests[questID] = q
	}
	q.progress += delta
	res := QuestProgress{Progress: q.progress}
	if !q.done && q.progress >= target {
		q.done = true
		res.CompletedNow = true
	}
	return res, nil
}

// SortScores orders by score descending, then player id ascending
func SortScores(s []Score) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Score != s[j].Score {
			return s[i].Score > s[j].Score
		}
		return s[i].PlayerID < s[j].PlayerID
	})
}

// MemoryGuildStore is a single-process GuildStore
type MemoryGuildStore struct {
	mu      sync.Mutex
	guilds  map[int64]*models.Guild
	members map[int64]int64 // player -> guild
	quests  map[string]*models.GuildQuest
}

func NewMemoryGuildStore() *MemoryGuildStore {
	return &MemoryGuildStore{
		guilds:  make(map[int64]*models.Guild),
		members: make(map[int64]int64),
		quests:  make(map[string]*models.GuildQuest),
	}
}

// PutGuild registers a guild with no members
func (s *MemoryGuildStore) PutGuild(g models.Guild) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.MemberCount = 0
	s.guilds[g.ID] = &g
}

func (s *MemoryGuildStore) GetGuild(_ context.Context, guildID int64) (*models.Guild, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guilds[guildID]
	if !ok {
		return nil, fmt.Errorf("guild %d: %w", guildID, models.ErrNotFound)
	}
	cp := *g
	return &cp, nil
}

func (s *MemoryGuildStore) AddMember(_ context.Context, guildID, playerID int64) (*models.Guild, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guilds[guildID]
	if !ok {
		return nil, fmt.Errorf("guild %d: %w", guildID, models.ErrNotFound)
	}
	if _, in := s.members[playerID]; in {
		return nil, models.ErrAlreadyInGuild
	}
	if g.MemberCount >= g.MaxMembers {
		return nil, models.ErrGuildFull
	}
	g.MemberCount++
	s.members[playerID] = guildID
	cp := *g
	return &cp, nil
}

func (s *MemoryGuildStore) RemoveMember(_ context.Context, guildID, playerID int64) (*models.Guild, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gid, in := s.members[playerID]; !in || gid != guildID {
		return nil, models.ErrNotInGuild
	}
	g := s.guilds[guildID]
	delete(s.members, playerID)
	if g.MemberCount > 0 {
		g.MemberCount--
	}
	cp := *g
	return &cp, nil
}

func (s *MemoryGuildStore) ActiveQuests(_ context.Context, guildID int64) ([]models.GuildQuest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.GuildQuest
	for _, q := range s.quests {
		if q.GuildID == guildID && q.CompletedAt == nil {
			out = append(out, *q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryGuildStore) CompleteQuest(_ context.Context, questID string, progress int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quests[questID]
	if !ok {
		return fmt.Errorf("quest %s: %w", questID, models.ErrNotFound)
	}
	if q.CompletedAt == nil {
		q.Progress = progress
		q.CompletedAt = &at
	}
	return nil
}

func (s *MemoryGuildStore) CreateQuest(_ context.Context, q models.GuildQuest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quests[q.ID]; ok {
		return fmt.Errorf("quest %s already exists", q.ID)
	}
	cp := q
	s.quests[q.ID] = &cp
	return nil
}
