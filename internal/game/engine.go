package game

import (
	"context"
	"fmt"

	"github.com/omega-realm/pokeidle/internal/models"
)

// XPGain records experience granted to one Pokemon
type XPGain struct {
	PokemonID string `json:"pokemon_id"`
	Amount    int64  `json:"amount"`
}

// TickOutcome is everything one tick produced, in the order it happened:
// encounter, experience and level-ups, pending evolutions, then inventory.
type TickOutcome struct {
	TickSeq           uint64
	Encounter         *EncounterEvent
	XP                []XPGain
	LevelUps          []LevelUpEvent
	PendingEvolutions []PendingEvolution
	Evolutions        []EvolutionEvent
	Inventory         models.Inventory
	MoneyEarned       int64
	NewSpecies        []int
}

// Engine advances player state one tick at a time
type Engine struct {
	Catalog Catalog
	Tuning  Tuning
	Salt    uint64
}

// XPYield is the experience a win against wild pays
func (e *Engine) XPYield(wild *WildPokemon) int64 {
	div := e.Tuning.XPDivisor
	if div <= 0 {
		div = 1
	}
	xp := int64(wild.BaseExperience) * int64(wild.Level) / int64(div)
	if xp < 1 {
		xp = 1
	}
	return xp
}

func registerSpecies(state *models.PlayerState, speciesID int) bool {
	if state.HasSpecies(speciesID) {
		return false
	}
	state.Pokedex = append(state.Pokedex, speciesID)
	state.Player.PokedexCount++
	return true
}

// Tick runs one simulation step on state and queue, mutating both. Callers that need
// all-or-nothing semantics pass clones and keep them only when Tick returns without error.
func (e *Engine) Tick(ctx context.Context, state *models.PlayerState, queue *EvolutionQueue) (*TickOutcome, error) {
	seq := state.Player.TickSeq + 1
	state.Player.TickSeq = seq
	out := &TickOutcome{TickSeq: seq}

	zone, err := e.Catalog.GetZone(ctx, state.Player.ZoneID)
	if err != nil {
		return nil, fmt.Errorf("failed to load zone %d: %w", state.Player.ZoneID, err)
	}

	rng := NewTickRand(e.Salt, state.Player.ID, seq)
	enc, err := ResolveEncounter(ctx, rng, e.Catalog, state, zone, e.Tuning)
	if err != nil {
		return nil, err
	}
	out.Encounter = enc

	if enc != nil && enc.Battle.Outcome == OutcomeWin {
		lead := &state.Party[0]
		species, err := e.Catalog.GetSpecies(ctx, lead.SpeciesID)
		if err != nil {
			return nil, fmt.Errorf("failed to load lead species %d: %w", lead.SpeciesID, err)
		}
		amount := e.XPYield(&enc.Wild)
		levelUps, pending, applied := ApplyExperience(lead, species, amount, seq, queue)
		if applied {
			out.XP = append(out.XP, XPGain{PokemonID: lead.ID, Amount: amount})
		}
		out.LevelUps = levelUps
		out.PendingEvolutions = pending
		if lead.Level > state.Player.MaxLevel {
			state.Player.MaxLevel = lead.Level
		}

		out.MoneyEarned = e.Tuning.MoneyPerLevel * int64(enc.Wild.Level)
		state.Player.Inventory.Money += out.MoneyEarned
	}

	if enc != nil && enc.Caught != nil {
		if registerSpecies(state, enc.Caught.SpeciesID) {
			out.NewSpecies = append(out.NewSpecies, enc.Caught.SpeciesID)
		}
		if enc.Caught.Level > state.Player.MaxLevel {
			state.Player.MaxLevel = enc.Caught.Level
		}
	}

	if e.Tuning.AutoConfirmEvolutions {
		for _, pe := range out.PendingEvolutions {
			ev, err := ConfirmEvolution(ctx, e.Catalog, state, queue, pe.PokemonID)
			if err != nil {
				return nil, err
			}
			out.Evolutions = append(out.Evolutions, ev)
			if ev.NewPokedexEntry {
				out.NewSpecies = append(out.NewSpecies, ev.ToSpecies)
			}
		}
	}

	out.Inventory = state.Player.Inventory
	return out, nil
}
