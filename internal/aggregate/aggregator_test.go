package aggregate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/omega-realm/pokeidle/internal/models"
)

func newTestAggregator() (*Aggregator, *MemoryBackend, *MemoryGuildStore) {
	backend := NewMemoryBackend()
	guilds := NewMemoryGuildStore()
	return New(backend, guilds, nil), backend, guilds
}

func TestLeaderboardDenseRanks(t *testing.T) {
	ctx := context.Background()
	agg, backend, _ := newTestAggregator()
	backend.SetNames(ctx, map[int64]string{1: "ash", 2: "misty", 3: "brock", 4: "gary"})
	for id, score := range map[int64]int64{1: 10, 2: 10, 3: 7, 4: 3} {
		backend.SetScore(ctx, models.LeaderboardCatches, id, score)
	}

	entries, err := agg.Leaderboard(ctx, models.LeaderboardCatches, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	want := []struct {
		id   int64
		rank int64
	}{{1, 1}, {2, 1}, {3, 2}, {4, 3}}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, w := range want {
		if entries[i].PlayerID != w.id || entries[i].Rank != w.rank {
			t.Fatalf("entry %d: got player %d rank %d, want player %d rank %d", i, entries[i].PlayerID, entries[i].Rank, w.id, w.rank)
		}
	}
	if entries[0].Username != "ash" {
		t.Fatalf("expected names to be attached")
	}

	e, err := agg.Rank(ctx, models.LeaderboardCatches, 4)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if e.Rank != 3 {
		t.Fatalf("expected dense rank 3, got %d", e.Rank)
	}
	if _, err := agg.Rank(ctx, models.LeaderboardCatches, 99); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := agg.Leaderboard(ctx, "bogus", 10); err == nil {
		t.Fatalf("expected error for unknown board")
	}
}

func TestRecordLevelMaxMergesUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	agg, backend, _ := newTestAggregator()

	var wg sync.WaitGroup
	for level := 1; level <= 50; level++ {
		wg.Add(1)
		go func(l int) {
			defer wg.Done()
			if err := agg.RecordLevel(ctx, 1, 0, "lead", l); err != nil {
				t.Errorf("record level: %v", err)
			}
		}(level)
	}
	wg.Wait()

	score, _, _ := backend.Score(ctx, models.LeaderboardMaxLevel, 1)
	if score != 50 {
		t.Fatalf("expected max level 50, got %d", score)
	}
	agg.RecordLevel(ctx, 1, 0, "lead", 12)
	if score, _, _ = backend.Score(ctx, models.LeaderboardMaxLevel, 1); score != 50 {
		t.Fatalf("lower level must not reduce the score, got %d", score)
	}
}

func TestPokedexIsSetMerged(t *testing.T) {
	ctx := context.Background()
	agg, backend, _ := newTestAggregator()
	state := &models.PlayerState{Player: models.Player{ID: 1, Username: "ash"}, Pokedex: []int{4, 16}}
	if err := agg.Seed(ctx, state); err != nil {
		t.Fatalf("seed: %v", err)
	}
	agg.RecordPokedexEntry(ctx, 1, 0, 16)
	agg.RecordPokedexEntry(ctx, 1, 0, 19)
	agg.RecordPokedexEntry(ctx, 1, 0, 19)
	score, _, _ := backend.Score(ctx, models.LeaderboardPokedex, 1)
	if score != 3 {
		t.Fatalf("expected 3 distinct species, got %d", score)
	}
}

func TestQuestCompletesExactlyOnceUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	agg, _, guilds := newTestAggregator()
	agg.RenewQuests = false
	guilds.PutGuild(models.Guild{ID: 1, Name: "rockets", MaxMembers: 50})
	guilds.CreateQuest(ctx, models.GuildQuest{ID: "q1", GuildID: 1, Kind: models.QuestCatch, Target: 10})

	var fired atomic.Int32
	agg.OnQuestComplete = func(q models.GuildQuest) {
		if q.ID != "q1" || q.CompletedAt == nil || q.Progress < q.Target {
			t.Errorf("unexpected completion %+v", q)
		}
		fired.Add(1)
	}

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if err := agg.RecordCatch(ctx, id, 1); err != nil {
				t.Errorf("record catch: %v", err)
			}
		}(int64(i + 1))
	}
	wg.Wait()

	if got := fired.Load(); got != 1 {
		t.Fatalf("quest completion fired %d times, want 1", got)
	}
	active, _ := guilds.ActiveQuests(ctx, 1)
	if len(active) != 0 {
		t.Fatalf("completed quest should no longer be active")
	}
}

func TestQuestRenewsAfterCompletion(t *testing.T) {
	ctx := context.Background()
	agg, _, guilds := newTestAggregator()
	guilds.PutGuild(models.Guild{ID: 1, Name: "rockets", MaxMembers: 50})
	guilds.CreateQuest(ctx, models.GuildQuest{ID: "q1", GuildID: 1, Kind: models.QuestPokedex, Target: 1})

	if err := agg.RecordPokedexEntry(ctx, 1, 1, 25); err != nil {
		t.Fatalf("record: %v", err)
	}
	active, _ := guilds.ActiveQuests(ctx, 1)
	if len(active) != 1 || active[0].ID == "q1" || active[0].Target != 1 {
		t.Fatalf("expected a fresh quest instance, got %+v", active)
	}
}

func TestGuildMemberCountStaysBounded(t *testing.T) {
	ctx := context.Background()
	agg, _, guilds := newTestAggregator()
	guilds.PutGuild(models.Guild{ID: 1, Name: "small", MaxMembers: 5})

	var joined atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := agg.JoinGuild(ctx, 1, id)
			switch {
			case err == nil:
				joined.Add(1)
			case !errors.Is(err, models.ErrGuildFull):
				t.Errorf("unexpected join error: %v", err)
			}
		}(int64(i + 1))
	}
	wg.Wait()

	g, _ := guilds.GetGuild(ctx, 1)
	if joined.Load() != 5 || g.MemberCount != 5 {
		t.Fatalf("expected 5 members, joined=%d count=%d", joined.Load(), g.MemberCount)
	}
	if _, err := agg.LeaveGuild(ctx, 1, 999); !errors.Is(err, models.ErrNotInGuild) {
		t.Fatalf("expected ErrNotInGuild, got %v", err)
	}
}

func TestPublishOnlyChangedBoards(t *testing.T) {
	ctx := context.Background()
	agg, backend, _ := newTestAggregator()
	backend.SetScore(ctx, models.LeaderboardCatches, 1, 2)

	last := make(map[models.LeaderboardType][]models.LeaderboardEntry)
	var published []models.LeaderboardType
	publish := func(b models.LeaderboardType, _ []models.LeaderboardEntry) { published = append(published, b) }

	agg.publishChanged(ctx, 10, last, publish)
	if len(published) != len(models.LeaderboardTypes) {
		t.Fatalf("first pass should publish every board, got %v", published)
	}
	published = nil
	agg.publishChanged(ctx, 10, last, publish)
	if len(published) != 0 {
		t.Fatalf("unchanged boards should not publish, got %v", published)
	}
	backend.IncrScore(ctx, models.LeaderboardCatches, 1, 1)
	agg.publishChanged(ctx, 10, last, publish)
	if len(published) != 1 || published[0] != models.LeaderboardCatches {
		t.Fatalf("expected only catches to publish, got %v", published)
	}
}

func TestRebuild(t *testing.T) {
	ctx := context.Background()
	agg, backend, _ := newTestAggregator()
	backend.SetScore(ctx, models.LeaderboardCatches, 77, 1000)

	stats := []models.PlayerStats{
		{PlayerID: 1, Username: "ash", PokedexCount: 2, CatchCount: 5, MaxLevel: 30},
		{PlayerID: 2, Username: "misty", PokedexCount: 4, CatchCount: 9, MaxLevel: 20},
	}
	if err := agg.Rebuild(ctx, stats, map[int64][]int{1: {4, 5}}); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	entries, _ := agg.Leaderboard(ctx, models.LeaderboardCatches, 10)
	if len(entries) != 2 || entries[0].PlayerID != 2 || entries[0].Username != "misty" {
		t.Fatalf("unexpected rebuilt board %+v", entries)
	}
	if s, _, _ := backend.Score(ctx, models.LeaderboardPokedex, 2); s != 4 {
		t.Fatalf("expected pokedex score 4 from stats, got %d", s)
	}
	if added, _, _ := backend.AddPokedex(ctx, 1, 4); len(added) != 0 {
		t.Fatalf("rebuilt pokedex set should already hold species 4")
	}
}
