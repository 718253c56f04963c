package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/omega-realm/pokeidle/internal/aggregate"
	"github.com/omega-realm/pokeidle/internal/models"
)

const testPrefix = "test:"

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return Wrap(rdb, nil), mr
}

func TestMaxScoreKeepsHighest(t *testing.T) {
	c, _ := newTestClient(t)
	b := NewAggregateBackend(c, testPrefix)
	ctx := context.Background()

	var wg sync.WaitGroup
	for lvl := int64(1); lvl <= 40; lvl++ {
		wg.Add(1)
		go func(l int64) {
			defer wg.Done()
			if _, err := b.MaxScore(ctx, models.LeaderboardMaxLevel, 1, l); err != nil {
				t.Errorf("max score: %v", err)
			}
		}(lvl)
	}
	wg.Wait()

	if got, _ := b.MaxScore(ctx, models.LeaderboardMaxLevel, 1, 12); got != 40 {
		t.Fatalf("expected 40, got %d", got)
	}
	score, ok, err := b.Score(ctx, models.LeaderboardMaxLevel, 1)
	if err != nil || !ok || score != 40 {
		t.Fatalf("expected stored 40, got %d %v %v", score, ok, err)
	}
	if _, ok, _ := b.Score(ctx, models.LeaderboardMaxLevel, 2); ok {
		t.Fatalf("unknown player should have no score")
	}
}

func TestTopBreaksTiesByPlayerID(t *testing.T) {
	c, _ := newTestClient(t)
	b := NewAggregateBackend(c, testPrefix)
	ctx := context.Background()

	for id, score := range map[int64]int64{5: 10, 3: 10, 9: 10, 1: 20, 7: 2} {
		if err := b.SetScore(ctx, models.LeaderboardCatches, id, score); err != nil {
			t.Fatalf("set score: %v", err)
		}
	}
	top, err := b.Top(ctx, models.LeaderboardCatches, 3)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	want := []aggregate.Score{{PlayerID: 1, Score: 20}, {PlayerID: 3, Score: 10}, {PlayerID: 5, Score: 10}}
	if len(top) != len(want) {
		t.Fatalf("expected %v, got %v", want, top)
	}
	for i := range want {
		if top[i] != want[i] {
			t.Fatalf("position %d: expected %v, got %v", i, want[i], top[i])
		}
	}

	above, err := b.DistinctAbove(ctx, models.LeaderboardCatches, 2)
	if err != nil || above != 2 {
		t.Fatalf("expected 2 distinct scores above 2, got %d %v", above, err)
	}
}

func TestUnknownBoard(t *testing.T) {
	c, _ := newTestClient(t)
	b := NewAggregateBackend(c, testPrefix)
	if _, err := b.IncrScore(context.Background(), "bogus", 1, 1); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddPokedexIsSetMerged(t *testing.T) {
	c, _ := newTestClient(t)
	b := NewAggregateBackend(c, testPrefix)
	ctx := context.Background()

	added, total, err := b.AddPokedex(ctx, 1, 4, 16, 19)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if total != 3 || len(added) != 3 {
		t.Fatalf("expected 3 new entries, got %v total %d", added, total)
	}
	added, total, err = b.AddPokedex(ctx, 1, 16, 25)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if total != 4 || len(added) != 1 || added[0] != 25 {
		t.Fatalf("expected only 25 to be new, got %v total %d", added, total)
	}
	if score, _, _ := b.Score(ctx, models.LeaderboardPokedex, 1); score != 4 {
		t.Fatalf("board should mirror set size, got %d", score)
	}

	if err := b.ReplacePokedex(ctx, 1, []int{1, 1, 2}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if score, _, _ := b.Score(ctx, models.LeaderboardPokedex, 1); score != 2 {
		t.Fatalf("expected 2 after replace, got %d", score)
	}

	if err := b.Reset(ctx, models.LeaderboardPokedex); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, total, _ := b.AddPokedex(ctx, 1, 4); total != 1 {
		t.Fatalf("reset should clear the sets, total %d", total)
	}
}

func TestIncrQuestCompletesOnce(t *testing.T) {
	c, _ := newTestClient(t)
	b := NewAggregateBackend(c, testPrefix)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := b.IncrQuest(ctx, "q1", 1, 10)
			if err != nil {
				t.Errorf("incr: %v", err)
				return
			}
			if res.CompletedNow {
				mu.Lock()
				completed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if completed != 1 {
		t.Fatalf("expected exactly one completion, got %d", completed)
	}
}

func TestNames(t *testing.T) {
	c, _ := newTestClient(t)
	b := NewAggregateBackend(c, testPrefix)
	ctx := context.Background()

	if err := b.SetNames(ctx, map[int64]string{1: "red", 2: "blue"}); err != nil {
		t.Fatalf("set names: %v", err)
	}
	names, err := b.Names(ctx, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("names: %v", err)
	}
	if len(names) != 2 || names[1] != "red" || names[2] != "blue" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestAggregatorOverRedis(t *testing.T) {
	c, _ := newTestClient(t)
	agg := aggregate.New(NewAggregateBackend(c, testPrefix), aggregate.NewMemoryGuildStore(), nil)
	ctx := context.Background()

	if err := agg.Seed(ctx, &models.PlayerState{Player: models.Player{ID: 1, Username: "red", MaxLevel: 12}, Pokedex: []int{4}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := agg.Seed(ctx, &models.PlayerState{Player: models.Player{ID: 2, Username: "blue", MaxLevel: 30}, Pokedex: []int{7}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	entries, err := agg.Leaderboard(ctx, models.LeaderboardMaxLevel, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 2 || entries[0].Username != "blue" || entries[0].Rank != 1 || entries[1].Rank != 2 {
		t.Fatalf("unexpected board %+v", entries)
	}
}

func TestPresence(t *testing.T) {
	c, mr := newTestClient(t)
	p := NewPresence(c, testPrefix, time.Minute)
	ctx := context.Background()

	for _, id := range []int64{1, 2} {
		if err := p.SetOnline(ctx, id); err != nil {
			t.Fatalf("online: %v", err)
		}
	}
	if n, _ := p.Count(ctx); n != 2 {
		t.Fatalf("expected 2 online, got %d", n)
	}
	if err := p.SetOffline(ctx, 1); err != nil {
		t.Fatalf("offline: %v", err)
	}
	ids, err := p.Online(ctx)
	if err != nil || len(ids) != 1 || ids[0] != 2 {
		t.Fatalf("expected [2], got %v %v", ids, err)
	}

	mr.FastForward(2 * time.Minute)
	ids, err = p.Online(ctx)
	if err != nil || len(ids) != 0 {
		t.Fatalf("expired presence should be pruned, got %v %v", ids, err)
	}
	if n, _ := p.Count(ctx); n != 0 {
		t.Fatalf("expected pruned set, got %d", n)
	}
}

func TestBacklogRoundTrip(t *testing.T) {
	c, _ := newTestClient(t)
	b := NewBacklog(c, testPrefix)
	ctx := context.Background()

	guild := int64(7)
	state := &models.PlayerState{
		Player:  models.Player{ID: 3, Username: "green", GuildID: &guild, TickSeq: 42, Inventory: models.Inventory{PokeBalls: 4, Money: 900}},
		Party:   []models.Pokemon{{ID: "a", SpeciesID: 4, Level: 12, Experience: 1728, LastXPTick: 41}},
		Pokedex: []int{4, 19},
	}
	if err := b.Put(ctx, state); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := b.Get(ctx, 3)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Player.TickSeq != 42 || *got.Player.GuildID != 7 || got.Party[0].LastXPTick != 41 || len(got.Pokedex) != 2 {
		t.Fatalf("snapshot not preserved: %+v", got)
	}
	ids, _ := b.List(ctx)
	if len(ids) != 1 || ids[0] != 3 {
		t.Fatalf("expected [3], got %v", ids)
	}

	if err := b.Delete(ctx, 3); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := b.Get(ctx, 3); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
