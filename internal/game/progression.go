package game

import (
	"context"
	"fmt"

	"github.com/omega-realm/pokeidle/internal/models"
)

// LevelUpEvent is emitted once per level gained
type LevelUpEvent struct {
	PokemonID string       `json:"pokemon_id"`
	SpeciesID int          `json:"species_id"`
	Level     int          `json:"level"`
	Stats     models.Stats `json:"stats"`
}

// PendingEvolution waits in the session queue for the player to confirm or cancel
type PendingEvolution struct {
	PokemonID    string `json:"pokemon_id"`
	FromSpecies  int    `json:"from_species"`
	ToSpecies    int    `json:"to_species"`
	TriggerLevel int    `json:"trigger_level"`
}

// EvolutionEvent reports a confirmed evolution
type EvolutionEvent struct {
	PokemonID       string       `json:"pokemon_id"`
	FromSpecies     int          `json:"from_species"`
	ToSpecies       int          `json:"to_species"`
	Level           int          `json:"level"`
	Stats           models.Stats `json:"stats"`
	NewPokedexEntry bool         `json:"new_pokedex_entry"`
}

// EvolutionQueue is an insertion-ordered set of pending evolutions keyed by Pokemon id.
// A Pokemon is in the queue at most once.
type EvolutionQueue struct {
	order   []string
	entries map[string]PendingEvolution
}

func NewEvolutionQueue() *EvolutionQueue {
	return &EvolutionQueue{entries: make(map[string]PendingEvolution)}
}

// Add inserts the entry and reports whether it was new
func (q *EvolutionQueue) Add(pe PendingEvolution) bool {
	if _, ok := q.entries[pe.PokemonID]; ok {
		return false
	}
	q.entries[pe.PokemonID] = pe
	q.order = append(q.order, pe.PokemonID)
	return true
}

func (q *EvolutionQueue) Get(pokemonID string) (PendingEvolution, bool) {
	pe, ok := q.entries[pokemonID]
	return pe, ok
}

func (q *EvolutionQueue) Has(pokemonID string) bool {
	_, ok := q.entries[pokemonID]
	return ok
}

// Remove deletes the entry and reports whether it was present
func (q *EvolutionQueue) Remove(pokemonID string) bool {
	if _, ok := q.entries[pokemonID]; !ok {
		return false
	}
	delete(q.entries, pokemonID)
	for i, id := range q.order {
		if id == pokemonID {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return true
}

func (q *EvolutionQueue) Len() int {
	return len(q.order)
}

// List returns the entries in insertion order
func (q *EvolutionQueue) List() []PendingEvolution {
	out := make([]PendingEvolution, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.entries[id])
	}
	return out
}

func (q *EvolutionQueue) Clone() *EvolutionQueue {
	out := NewEvolutionQueue()
	for _, pe := range q.List() {
		out.Add(pe)
	}
	return out
}

// ApplyExperience adds amount to the Pokemon and levels it up while its experience reaches the
// next level's threshold. Every level gained recomputes stats and emits one LevelUpEvent, in order.
// Levels at or past the species' trigger level queue a PendingEvolution; the returned slice holds only
// entries that were newly added. A grant tagged with a tick at or before the Pokemon's last applied
// tick is ignored, so replaying a tick never applies its experience twice.
func ApplyExperience(p *models.Pokemon, species *models.PokemonSpecies, amount int64, tickSeq uint64, queue *EvolutionQueue) ([]LevelUpEvent, []PendingEvolution, bool) {
	if amount <= 0 {
		return nil, nil, false
	}
	if tickSeq != 0 && tickSeq <= p.LastXPTick {
		return nil, nil, false
	}
	if tickSeq != 0 {
		p.LastXPTick = tickSeq
	}

	p.Experience += amount
	var levelUps []LevelUpEvent
	var pending []PendingEvolution
	for p.Level < MaxLevel && p.Experience >= ExpForLevel(p.Level+1) {
		p.Level++
		p.Stats = CalcStats(species.BaseStats, p.Level)
		levelUps = append(levelUps, LevelUpEvent{
			PokemonID: p.ID,
			SpeciesID: p.SpeciesID,
			Level:     p.Level,
			Stats:     p.Stats,
		})
		if species.CanEvolveAt(p.Level) {
			pe := PendingEvolution{
				PokemonID:    p.ID,
				FromSpecies:  species.ID,
				ToSpecies:    *species.EvolvesTo,
				TriggerLevel: species.EvolveLevel,
			}
			if queue.Add(pe) {
				pending = append(pending, pe)
			}
		}
	}
	return levelUps, pending, true
}

func findPokemon(state *models.PlayerState, id string) *models.Pokemon {
	for i := range state.Party {
		if state.Party[i].ID == id {
			return &state.Party[i]
		}
	}
	return nil
}

// ConfirmEvolution applies a queued evolution: the species changes, stats are recomputed from the
// new species at the current level, and the entry leaves the queue.
func ConfirmEvolution(ctx context.Context, catalog Catalog, state *models.PlayerState, queue *EvolutionQueue, pokemonID string) (EvolutionEvent, error) {
	pe, ok := queue.Get(pokemonID)
	if !ok {
		return EvolutionEvent{}, ErrInvalidEvolutionTarget
	}
	p := findPokemon(state, pokemonID)
	if p == nil || p.SpeciesID != pe.FromSpecies {
		queue.Remove(pokemonID)
		return EvolutionEvent{}, ErrInvalidEvolutionTarget
	}
	target, err := catalog.GetSpecies(ctx, pe.ToSpecies)
	if err != nil {
		return EvolutionEvent{}, fmt.Errorf("failed to load evolution target %d: %w", pe.ToSpecies, err)
	}

	p.SpeciesID = target.ID
	p.Stats = CalcStats(target.BaseStats, p.Level)
	queue.Remove(pokemonID)

	event := EvolutionEvent{
		PokemonID:   p.ID,
		FromSpecies: pe.FromSpecies,
		ToSpecies:   target.ID,
		Level:       p.Level,
		Stats:       p.Stats,
	}
	if !state.HasSpecies(target.ID) {
		state.Pokedex = append(state.Pokedex, target.ID)
		state.Player.PokedexCount++
		event.NewPokedexEntry = true
	}
	return event, nil
}

// CancelEvolution drops a queued evolution without touching the Pokemon
func CancelEvolution(queue *EvolutionQueue, pokemonID string) error {
	if !queue.Remove(pokemonID) {
		return ErrInvalidEvolutionTarget
	}
	return nil
}
