package game

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/omega-realm/pokeidle/internal/models"
	"github.com/omega-realm/pokeidle/internal/refdata"
)

func TestExpCurveIsMonotonic(t *testing.T) {
	for level := 1; level < MaxLevel; level++ {
		if ExpForLevel(level+1) <= ExpForLevel(level) {
			t.Fatalf("exp curve not increasing at level %d", level)
		}
	}
}

func TestApplyExperienceMultipleLevelsQueuesEvolutionOnce(t *testing.T) {
	catalog := refdata.Builtin()
	species, _ := catalog.GetSpecies(context.Background(), refdata.StarterSpeciesID)
	p := NewPokemon("p1", species, 15)
	queue := NewEvolutionQueue()

	amount := ExpForLevel(17) - ExpForLevel(15)
	levelUps, pending, applied := ApplyExperience(&p, species, amount, 1, queue)
	if !applied {
		t.Fatalf("expected experience to apply")
	}
	if len(levelUps) != 2 || levelUps[0].Level != 16 || levelUps[1].Level != 17 {
		t.Fatalf("expected level ups 16 then 17, got %+v", levelUps)
	}
	if len(pending) != 1 || pending[0].TriggerLevel != 16 || pending[0].ToSpecies != *species.EvolvesTo {
		t.Fatalf("expected one pending evolution at trigger 16, got %+v", pending)
	}
	if queue.Len() != 1 {
		t.Fatalf("queue should hold one entry, got %d", queue.Len())
	}
	if p.SpeciesID != species.ID {
		t.Fatalf("species must not change before confirmation")
	}
	if p.Stats != CalcStats(species.BaseStats, 17) {
		t.Fatalf("stats should be recomputed for level 17")
	}
}

func TestApplyExperienceIsIdempotentPerTick(t *testing.T) {
	catalog := refdata.Builtin()
	species, _ := catalog.GetSpecies(context.Background(), 16)
	start := NewPokemon("p1", species, 5)

	once := start
	q1 := NewEvolutionQueue()
	ApplyExperience(&once, species, 500, 7, q1)

	twice := start
	q2 := NewEvolutionQueue()
	ApplyExperience(&twice, species, 500, 7, q2)
	if _, _, applied := ApplyExperience(&twice, species, 500, 7, q2); applied {
		t.Fatalf("replayed grant for the same tick must be ignored")
	}
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("replay changed state: %+v vs %+v", once, twice)
	}
	if _, _, applied := ApplyExperience(&twice, species, 500, 8, q2); !applied {
		t.Fatalf("a later tick should apply")
	}
}

func TestReaddingAfterCancelIsIdempotent(t *testing.T) {
	catalog := refdata.Builtin()
	species, _ := catalog.GetSpecies(context.Background(), refdata.StarterSpeciesID)
	p := NewPokemon("p1", species, 15)
	queue := NewEvolutionQueue()

	ApplyExperience(&p, species, ExpForLevel(16)-p.Experience, 1, queue)
	if err := CancelEvolution(queue, "p1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if queue.Has("p1") {
		t.Fatalf("cancel should remove the entry")
	}
	if p.SpeciesID != species.ID || p.Level != 16 {
		t.Fatalf("cancel must not mutate the pokemon: %+v", p)
	}

	_, pending, _ := ApplyExperience(&p, species, ExpForLevel(17)-p.Experience, 2, queue)
	if len(pending) != 1 || queue.Len() != 1 {
		t.Fatalf("leveling while eligible should queue again once, pending=%d queue=%d", len(pending), queue.Len())
	}
	_, pending, _ = ApplyExperience(&p, species, ExpForLevel(18)-p.Experience, 3, queue)
	if len(pending) != 0 || queue.Len() != 1 {
		t.Fatalf("already queued pokemon must not be duplicated, pending=%d queue=%d", len(pending), queue.Len())
	}
}

func TestConfirmEvolution(t *testing.T) {
	ctx := context.Background()
	catalog := refdata.Builtin()
	species, _ := catalog.GetSpecies(ctx, refdata.StarterSpeciesID)
	state := &models.PlayerState{
		Player:  models.Player{ID: 1, PokedexCount: 1},
		Party:   []models.Pokemon{NewPokemon("p1", species, 15)},
		Pokedex: []int{species.ID},
	}
	queue := NewEvolutionQueue()

	if _, err := ConfirmEvolution(ctx, catalog, state, queue, "p1"); !errors.Is(err, ErrInvalidEvolutionTarget) {
		t.Fatalf("confirm without a pending entry should fail, got %v", err)
	}
	if state.Party[0].SpeciesID != species.ID {
		t.Fatalf("pokemon must not evolve without a pending entry")
	}

	ApplyExperience(&state.Party[0], species, ExpForLevel(16)-state.Party[0].Experience, 1, queue)
	ev, err := ConfirmEvolution(ctx, catalog, state, queue, "p1")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	target, _ := catalog.GetSpecies(ctx, *species.EvolvesTo)
	if state.Party[0].SpeciesID != target.ID || ev.ToSpecies != target.ID {
		t.Fatalf("expected species %d, got %d", target.ID, state.Party[0].SpeciesID)
	}
	if state.Party[0].Stats != CalcStats(target.BaseStats, 16) {
		t.Fatalf("stats should come from the new species")
	}
	if !ev.NewPokedexEntry || state.Player.PokedexCount != 2 {
		t.Fatalf("evolution should register a new pokedex entry")
	}
	if queue.Len() != 0 {
		t.Fatalf("confirm should remove the entry")
	}
	if err := CancelEvolution(queue, "p1"); !errors.Is(err, ErrInvalidEvolutionTarget) {
		t.Fatalf("cancel of a missing entry should fail, got %v", err)
	}
}
