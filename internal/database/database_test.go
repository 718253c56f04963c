package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/omega-realm/pokeidle/internal/game"
	"github.com/omega-realm/pokeidle/internal/models"
	"github.com/omega-realm/pokeidle/internal/refdata"
)

func TestOrderedPair(t *testing.T) {
	tests := []struct {
		a, b   int64
		lo, hi int64
	}{
		{1, 2, 1, 2},
		{9, 3, 3, 9},
		{5, 5, 5, 5},
	}
	for _, tt := range tests {
		lo, hi := orderedPair(tt.a, tt.b)
		if lo != tt.lo || hi != tt.hi {
			t.Errorf("orderedPair(%d, %d) = %d, %d", tt.a, tt.b, lo, hi)
		}
	}
}

func TestPostgresErrorCodes(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: "players_username_key"})
	fk := &pq.Error{Code: "23503"}

	if !isUniqueViolation(unique) || isForeignKeyViolation(unique) {
		t.Fatalf("wrapped unique violation not recognised")
	}
	if !isForeignKeyViolation(fk) {
		t.Fatalf("foreign key violation not recognised")
	}
	if isUniqueViolation(errors.New("boom")) || isUniqueViolation(nil) {
		t.Fatalf("plain errors are not violations")
	}
}

func TestConfigDSN(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "idle")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg := LoadConfigFromEnv()
	if cfg.MaxOpenConns != 25 {
		t.Fatalf("invalid value should fall back to default, got %d", cfg.MaxOpenConns)
	}
	want := "host=db.internal port=5432 user=pokeidle password=pokeidle_password dbname=idle sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Fatalf("dsn = %q", got)
	}
}

// openTestDB connects to POKEIDLE_TEST_DSN, skipping when it is unset
func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("POKEIDLE_TEST_DSN")
	if dsn == "" {
		t.Skip("POKEIDLE_TEST_DSN not set")
	}
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	db := &DB{DB: sqlDB, log: zap.NewNop()}
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `DROP SCHEMA public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := db.InitSchema(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	cat := refdata.Builtin()
	if err := db.SeedCatalog(ctx, cat.AllSpecies(), cat.AllZones()); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	return db
}

func newPlayer(t *testing.T, store *PlayerStore, id int64, name string) *models.PlayerState {
	t.Helper()
	species, err := refdata.Builtin().GetSpecies(context.Background(), refdata.StarterSpeciesID)
	if err != nil {
		t.Fatalf("species: %v", err)
	}
	state := &models.PlayerState{
		Player: models.Player{
			ID:            id,
			Username:      name,
			ZoneID:        refdata.ZoneRoute1,
			PreferredBall: models.BallPoke,
			Inventory:     models.Inventory{PokeBalls: 10, Money: 500},
			MaxLevel:      5,
		},
		Party:   []models.Pokemon{game.NewPokemon(fmt.Sprintf("mon-%d", id), species, 5)},
		Pokedex: []int{species.ID},
	}
	if err := store.CreatePlayer(context.Background(), state); err != nil {
		t.Fatalf("create player: %v", err)
	}
	return state
}

func TestPlayerRoundTrip(t *testing.T) {
	db := openTestDB(t)
	store := NewPlayerStore(db)
	ctx := context.Background()

	state := newPlayer(t, store, 1, "red")
	if err := store.CreatePlayer(ctx, state); !errors.Is(err, models.ErrPlayerExists) {
		t.Fatalf("expected ErrPlayerExists, got %v", err)
	}

	state.Player.TickSeq = 12
	state.Player.CatchCount = 3
	state.Party[0].Experience += 40
	state.Party[0].LastXPTick = 12
	state.Pokedex = append(state.Pokedex, 19)
	if err := store.SavePlayerState(ctx, state); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.LoadPlayerState(ctx, 1)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Player.TickSeq != 12 || got.Player.CatchCount != 3 || got.Party[0].LastXPTick != 12 || len(got.Pokedex) != 2 {
		t.Fatalf("state not preserved: %+v", got)
	}

	stale := state.Clone()
	stale.Player.TickSeq = 4
	stale.Player.CatchCount = 0
	if err := store.SavePlayerState(ctx, stale); err != nil {
		t.Fatalf("stale save: %v", err)
	}
	got, _ = store.LoadPlayerState(ctx, 1)
	if got.Player.CatchCount != 3 {
		t.Fatalf("stale snapshot overwrote newer state")
	}

	if _, err := store.LoadPlayerState(ctx, 404); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCatalogFromDatabase(t *testing.T) {
	db := openTestDB(t)
	cat := NewCatalog(db)
	ctx := context.Background()

	s, err := cat.GetSpecies(ctx, 4)
	if err != nil {
		t.Fatalf("species: %v", err)
	}
	if s.Name != "Charmander" || s.EvolvesTo == nil || *s.EvolvesTo != 5 || len(s.Types) != 1 {
		t.Fatalf("unexpected species %+v", s)
	}
	z, err := cat.GetZone(ctx, refdata.ZoneRoute1)
	if err != nil {
		t.Fatalf("zone: %v", err)
	}
	if len(z.Encounters) != 2 || z.TotalWeight() != 100 {
		t.Fatalf("unexpected zone %+v", z)
	}
	if _, err := cat.GetZone(ctx, 999); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGuildCapacityUnderConcurrentJoins(t *testing.T) {
	db := openTestDB(t)
	players := NewPlayerStore(db)
	guilds := NewGuildStore(db)
	ctx := context.Background()

	g, err := guilds.CreateGuild(ctx, "rockets", 3)
	if err != nil {
		t.Fatalf("create guild: %v", err)
	}
	for id := int64(1); id <= 10; id++ {
		newPlayer(t, players, id, fmt.Sprintf("p%d", id))
	}

	var (
		wg     sync.WaitGroup
		joined atomic.Int32
		full   atomic.Int32
	)
	for id := int64(1); id <= 10; id++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := guilds.AddMember(ctx, g.ID, id)
			switch {
			case err == nil:
				joined.Add(1)
			case errors.Is(err, models.ErrGuildFull):
				full.Add(1)
			default:
				t.Errorf("join %d: %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	if joined.Load() != 3 || full.Load() != 7 {
		t.Fatalf("expected 3 joins and 7 full, got %d and %d", joined.Load(), full.Load())
	}
	got, _ := guilds.GetGuild(ctx, g.ID)
	if got.MemberCount != 3 {
		t.Fatalf("member count %d", got.MemberCount)
	}

	if _, err := guilds.RemoveMember(ctx, g.ID, 99); !errors.Is(err, models.ErrNotInGuild) {
		t.Fatalf("expected ErrNotInGuild, got %v", err)
	}

	q := models.GuildQuest{ID: "quest-1", GuildID: g.ID, Kind: models.QuestCatch, Target: 5}
	if err := guilds.CreateQuest(ctx, q); err != nil {
		t.Fatalf("create quest: %v", err)
	}
	if err := guilds.CompleteQuest(ctx, q.ID, 5, time.Now()); err != nil {
		t.Fatalf("complete quest: %v", err)
	}
	active, err := guilds.ActiveQuests(ctx, g.ID)
	if err != nil || len(active) != 0 {
		t.Fatalf("completed quest still active: %v %v", active, err)
	}
}

func TestSocialStoreLoadGraph(t *testing.T) {
	db := openTestDB(t)
	players := NewPlayerStore(db)
	store := NewSocialStore(db)
	ctx := context.Background()
	for id := int64(1); id <= 3; id++ {
		newPlayer(t, players, id, fmt.Sprintf("p%d", id))
	}

	if err := store.AddFriendship(ctx, 2, 1); err != nil {
		t.Fatalf("friend: %v", err)
	}
	if err := store.AddFriendship(ctx, 1, 3); err != nil {
		t.Fatalf("friend: %v", err)
	}
	if err := store.AddBlock(ctx, 3, 1); err != nil {
		t.Fatalf("block: %v", err)
	}
	friends, blocks, err := store.LoadGraph(ctx)
	if err != nil {
		t.Fatalf("load graph: %v", err)
	}
	if len(friends) != 1 || friends[0] != [2]int64{1, 2} {
		t.Fatalf("unexpected friendships %v", friends)
	}
	if len(blocks) != 1 || blocks[0] != [2]int64{3, 1} {
		t.Fatalf("unexpected blocks %v", blocks)
	}
}
