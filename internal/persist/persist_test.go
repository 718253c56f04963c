package persist

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/omega-realm/pokeidle/internal/models"
)

func fastRetry(n int) RetryPolicy {
	return RetryPolicy{Attempts: n, Initial: time.Millisecond, Max: 2 * time.Millisecond}
}

func testState(id int64, seq uint64) *models.PlayerState {
	return &models.PlayerState{
		Player: models.Player{ID: id, Username: "ash", TickSeq: seq, Inventory: models.Inventory{PokeBalls: 5}},
		Party: []models.Pokemon{
			{ID: "p1", SpeciesID: 4, Level: 12, Experience: 1728, LastXPTick: seq, Stats: models.Stats{HP: 34}},
		},
		Pokedex: []int{4},
	}
}

func TestLoadWithRetryRecoversFromTransientFailures(t *testing.T) {
	store := NewMemoryStore()
	store.Put(testState(1, 3))
	store.FailLoads = 2

	st, err := LoadWithRetry(context.Background(), store, nil, 1, fastRetry(3))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if st.Player.TickSeq != 3 || store.Loads != 3 {
		t.Fatalf("expected third attempt to succeed, loads=%d", store.Loads)
	}
}

func TestLoadWithRetryGivesUp(t *testing.T) {
	store := NewMemoryStore()
	store.Put(testState(1, 3))
	store.FailLoads = 10

	if _, err := LoadWithRetry(context.Background(), store, nil, 1, fastRetry(3)); !errors.Is(err, ErrLoadFailed) {
		t.Fatalf("expected ErrLoadFailed, got %v", err)
	}
	if store.Loads != 3 {
		t.Fatalf("expected 3 attempts, got %d", store.Loads)
	}

	store.FailLoads = 0
	_, err := LoadWithRetry(context.Background(), store, nil, 2, fastRetry(3))
	if !errors.Is(err, ErrLoadFailed) || !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("missing player should be ErrLoadFailed wrapping ErrNotFound, got %v", err)
	}
}

func TestLoadPrefersNewerBacklog(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Put(testState(1, 3))
	backlog := NewMemoryBacklog()
	backlog.Put(ctx, testState(1, 9))

	st, err := LoadWithRetry(ctx, store, backlog, 1, fastRetry(1))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if st.Player.TickSeq != 9 {
		t.Fatalf("expected backlog snapshot, got seq %d", st.Player.TickSeq)
	}
}

func TestSaveThenReloadIsEqual(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	saver := NewSaver(store, nil, SaverConfig{Workers: 1, Retry: fastRetry(1)}, nil)

	want := testState(1, 12)
	if err := saver.SaveNow(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadWithRetry(ctx, store, nil, 1, fastRetry(1))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("reloaded state differs:\n got %+v\nwant %+v", got, want)
	}
}

func TestSaverCoalescesAndKeepsNewest(t *testing.T) {
	store := NewMemoryStore()
	saver := NewSaver(store, nil, SaverConfig{Workers: 4, Retry: fastRetry(1)}, nil)

	for seq := uint64(1); seq <= 50; seq++ {
		saver.Enqueue(testState(1, seq))
	}
	saver.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := saver.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	st, ok := store.Snapshot(1)
	if !ok || st.Player.TickSeq != 50 {
		t.Fatalf("expected newest snapshot, got %+v", st)
	}
	if store.SaveCount() != 1 {
		t.Fatalf("expected queued snapshots to coalesce into one save, got %d", store.SaveCount())
	}
	if err := saver.Enqueue(testState(1, 51)); !errors.Is(err, ErrSaverClosed) {
		t.Fatalf("expected ErrSaverClosed, got %v", err)
	}
}

func TestSaverNeverRegressesToOlderSnapshot(t *testing.T) {
	store := NewMemoryStore()
	saver := NewSaver(store, nil, SaverConfig{Workers: 2, Retry: fastRetry(1)}, nil)

	// an older snapshot queued behind a newer one
	saver.Enqueue(testState(1, 5))
	saver.Enqueue(testState(1, 3))
	saver.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	waitSaved(t, store, 1, 5)

	// an older snapshot arriving after the newer one was written
	saver.Enqueue(testState(1, 4))
	if err := saver.SaveNow(ctx, testState(1, 2)); err != nil {
		t.Fatalf("save now: %v", err)
	}
	if err := saver.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if st, _ := store.Snapshot(1); st.Player.TickSeq != 5 {
		t.Fatalf("store regressed to tick seq %d", st.Player.TickSeq)
	}
	if store.SaveCount() != 1 {
		t.Fatalf("older snapshots should not be written, got %d saves", store.SaveCount())
	}
}

func waitSaved(t *testing.T, store *MemoryStore, id int64, seq uint64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, ok := store.Snapshot(id); ok && st.Player.TickSeq == seq {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("tick seq %d never saved for player %d", seq, id)
}

func TestSaverDegradesAndRecovers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	backlog := NewMemoryBacklog()
	saver := NewSaver(store, backlog, SaverConfig{Workers: 1, Retry: fastRetry(2)}, nil)

	var mu sync.Mutex
	var degraded, recovered []int64
	saver.OnDegraded = func(id int64, _ error) { mu.Lock(); degraded = append(degraded, id); mu.Unlock() }
	saver.OnRecovered = func(id int64) { mu.Lock(); recovered = append(recovered, id); mu.Unlock() }

	store.SetFailSaves(2)
	if err := saver.SaveNow(ctx, testState(7, 4)); err == nil {
		t.Fatalf("expected save to fail")
	}
	if !saver.Degraded(7) || len(degraded) != 1 {
		t.Fatalf("expected degraded callback")
	}
	if ids, _ := backlog.List(ctx); !reflect.DeepEqual(ids, []int64{7}) {
		t.Fatalf("failed snapshot should be in the backlog, got %v", ids)
	}

	if err := saver.SaveNow(ctx, testState(7, 5)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if saver.Degraded(7) || len(recovered) != 1 {
		t.Fatalf("expected recovery")
	}
	if ids, _ := backlog.List(ctx); len(ids) != 0 {
		t.Fatalf("backlog should be cleared after recovery, got %v", ids)
	}
}

func TestReplayBacklog(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	backlog := NewMemoryBacklog()
	backlog.Put(ctx, testState(3, 8))
	saver := NewSaver(store, backlog, SaverConfig{Workers: 2, Retry: fastRetry(1)}, nil)
	saver.Start(ctx)

	n, err := saver.ReplayBacklog(ctx)
	if err != nil || n != 1 {
		t.Fatalf("replay: n=%d err=%v", n, err)
	}
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := saver.Close(cctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if st, ok := store.Snapshot(3); !ok || st.Player.TickSeq != 8 {
		t.Fatalf("backlog snapshot should be saved")
	}
	if ids, _ := backlog.List(ctx); len(ids) != 0 {
		t.Fatalf("backlog should be empty, got %v", ids)
	}
}

func TestRetryDelayIsBounded(t *testing.T) {
	p := RetryPolicy{Attempts: 5, Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond}
	want := []time.Duration{10, 20, 40, 50, 50}
	for i, w := range want {
		if got := p.Delay(i); got != w*time.Millisecond {
			t.Fatalf("Delay(%d) = %v, want %v", i, got, w*time.Millisecond)
		}
	}
}
