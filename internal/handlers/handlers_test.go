package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/omega-realm/pokeidle/internal/aggregate"
	"github.com/omega-realm/pokeidle/internal/auth"
	"github.com/omega-realm/pokeidle/internal/middleware"
	"github.com/omega-realm/pokeidle/internal/models"
	"github.com/omega-realm/pokeidle/internal/persist"
	"github.com/omega-realm/pokeidle/internal/refdata"
)

type fakeOnline []int64

func (f fakeOnline) Online() []int64 { return f }

type fakeCounter struct {
	n   int64
	err error
}

func (f fakeCounter) Count(context.Context) (int64, error) { return f.n, f.err }

type testServer struct {
	router *chi.Mux
	tokens *auth.Manager
	store  *persist.MemoryStore
	agg    *aggregate.Aggregator
}

var testStarter = Starter{
	SpeciesID: refdata.StarterSpeciesID,
	Level:     5,
	ZoneID:    refdata.ZoneRoute1,
	Inventory: models.Inventory{PokeBalls: 10, Money: 500},
}

func newTestServer(t *testing.T, live LiveState) *testServer {
	t.Helper()
	ts := &testServer{
		tokens: auth.NewManager("test-secret", time.Hour),
		store:  persist.NewMemoryStore(),
		agg:    aggregate.New(aggregate.NewMemoryBackend(), aggregate.NewMemoryGuildStore(), nil),
	}
	boards := NewLeaderboardHandler(ts.agg, nil)
	players := NewPlayerHandler(ts.store, refdata.Builtin(), live, testStarter, nil)
	status := NewStatusHandler(fakeOnline{1, 2}, fakeCounter{n: 7}, nil,
		HealthCheck{Name: "store", Check: func(context.Context) error { return nil }})

	r := chi.NewRouter()
	r.Get("/health", status.Health)
	r.Get("/api/online", status.GetOnline)
	r.Get("/api/leaderboard", boards.GetLeaderboard)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(ts.tokens))
		r.Get("/api/leaderboard/rank", boards.GetRank)
		r.Get("/api/player", players.GetPlayer)
		r.Post("/api/player", players.CreatePlayer)
	})
	ts.router = r
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, playerID int64, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if playerID > 0 {
		token, err := ts.tokens.GenerateAccessToken(playerID, "tester")
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestLeaderboardEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx := context.Background()
	for id, name := range map[int64]string{1: "ash", 2: "misty", 3: "brock"} {
		state := &models.PlayerState{Player: models.Player{ID: id, Username: name, CatchCount: int(10 - id)}}
		if id == 2 {
			state.Player.CatchCount = 9
		}
		if err := ts.agg.Seed(ctx, state); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	rec := ts.do(t, http.MethodGet, "/api/leaderboard?type=catches&limit=2", 0, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[LeaderboardResponse](t, rec)
	if resp.Type != models.LeaderboardCatches || len(resp.Entries) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Entries[0].Rank != 1 || resp.Entries[1].Rank != 1 || resp.Entries[0].Username != "ash" {
		t.Fatalf("tied players should share rank 1: %+v", resp.Entries)
	}

	tests := []struct {
		name string
		path string
		want int
	}{
		{"unknown type", "/api/leaderboard?type=money", http.StatusBadRequest},
		{"bad limit", "/api/leaderboard?limit=zero", http.StatusBadRequest},
		{"negative limit", "/api/leaderboard?limit=-1", http.StatusBadRequest},
		{"default type", "/api/leaderboard", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := ts.do(t, http.MethodGet, tt.path, 0, ""); rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestRankRequiresAuth(t *testing.T) {
	ts := newTestServer(t, nil)
	if rec := ts.do(t, http.MethodGet, "/api/leaderboard/rank?type=catches", 0, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/leaderboard/rank?type=catches", 5, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unranked player, got %d", rec.Code)
	}

	ts.agg.Seed(context.Background(), &models.PlayerState{Player: models.Player{ID: 5, Username: "gary", CatchCount: 4}})
	rec := ts.do(t, http.MethodGet, "/api/leaderboard/rank?type=catches", 5, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if e := decode[models.LeaderboardEntry](t, rec); e.Rank != 1 || e.Score != 4 {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestCreateAndGetPlayer(t *testing.T) {
	ts := newTestServer(t, nil)

	if rec := ts.do(t, http.MethodGet, "/api/player", 9, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before creation, got %d", rec.Code)
	}

	rec := ts.do(t, http.MethodPost, "/api/player", 9, `{"username":"red"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[PlayerSuccessResponse](t, rec)
	if len(created.State.Party) != 1 || created.State.Party[0].SpeciesID != refdata.StarterSpeciesID {
		t.Fatalf("starter missing: %+v", created.State)
	}
	if created.State.Player.Inventory.PokeBalls != 10 || !created.State.HasSpecies(refdata.StarterSpeciesID) {
		t.Fatalf("unexpected starting state %+v", created.State.Player)
	}

	rec = ts.do(t, http.MethodGet, "/api/player", 9, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if got := decode[models.PlayerState](t, rec); got.Player.Username != "red" {
		t.Fatalf("unexpected player %+v", got.Player)
	}

	tests := []struct {
		name   string
		player int64
		body   string
		want   int
	}{
		{"same account", 9, `{"username":"blue"}`, http.StatusConflict},
		{"taken name", 10, `{"username":"red"}`, http.StatusConflict},
		{"short name", 10, `{"username":"ab"}`, http.StatusBadRequest},
		{"bad chars", 10, `{"username":"a b!"}`, http.StatusBadRequest},
		{"bad json", 10, `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := ts.do(t, http.MethodPost, "/api/player", tt.player, tt.body); rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGetPlayerPrefersLiveSession(t *testing.T) {
	live := func(id int64) (*models.PlayerState, bool) {
		if id != 3 {
			return nil, false
		}
		return &models.PlayerState{Player: models.Player{ID: 3, Username: "live", TickSeq: 40}}, true
	}
	ts := newTestServer(t, live)
	ts.store.Put(&models.PlayerState{Player: models.Player{ID: 3, Username: "stored", TickSeq: 10}})

	got := decode[models.PlayerState](t, ts.do(t, http.MethodGet, "/api/player", 3, ""))
	if got.Player.Username != "live" {
		t.Fatalf("expected live state, got %+v", got.Player)
	}
}

func TestStatusEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)
	got := decode[OnlineResponse](t, ts.do(t, http.MethodGet, "/api/online", 0, ""))
	if got.Local != 2 || got.Global != 7 {
		t.Fatalf("unexpected counts %+v", got)
	}

	h := NewStatusHandler(fakeOnline{1}, fakeCounter{err: errors.New("down")}, nil,
		HealthCheck{Name: "postgres", Check: func(context.Context) error { return errors.New("refused") }})
	rec := httptest.NewRecorder()
	h.GetOnline(rec, httptest.NewRequest(http.MethodGet, "/api/online", nil))
	if got := decode[OnlineResponse](t, rec); got.Global != 1 {
		t.Fatalf("presence failure should fall back to local count, got %+v", got)
	}

	rec = httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if body := decode[map[string]string](t, rec); body["postgres"] != "refused" {
		t.Fatalf("unexpected body %v", body)
	}
}
