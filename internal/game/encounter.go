package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/omega-realm/pokeidle/internal/models"
)

// Catalog serves read-only reference data
type Catalog interface {
	GetSpecies(ctx context.Context, id int) (*models.PokemonSpecies, error)
	GetZone(ctx context.Context, id int) (*models.Zone, error)
}

// WildPokemon is generated fresh for each encounter and never persisted
type WildPokemon struct {
	SpeciesID      int           `json:"species_id"`
	Name           string        `json:"name"`
	Level          int           `json:"level"`
	Types          []models.Type `json:"types"`
	Stats          models.Stats  `json:"stats"`
	HP             int           `json:"hp"`
	CatchRate      int           `json:"-"`
	BaseExperience int           `json:"-"`
}

// EncounterEvent reports one encounter: the wild Pokemon, the battle and the catch attempt
type EncounterEvent struct {
	Wild         WildPokemon     `json:"wild"`
	Battle       BattleSequence  `json:"battle"`
	Catch        *CatchResult    `json:"catch,omitempty"`
	CatchSkipped string          `json:"catch_skipped,omitempty"`
	BallsUsed    int             `json:"balls_used"`
	Caught       *models.Pokemon `json:"caught,omitempty"`
}

// CatchSkippedInsufficientBalls marks an encounter whose catch was rejected for lack of balls
const CatchSkippedInsufficientBalls = "insufficient_balls"

// SampleWild draws a wild Pokemon from the zone's weighted encounter table.
// A zone without positive weights yields nil.
func SampleWild(ctx context.Context, rng *rand.Rand, catalog Catalog, zone *models.Zone) (*WildPokemon, error) {
	total := zone.TotalWeight()
	if total <= 0 {
		return nil, nil
	}
	roll := rng.IntN(total)
	var slot models.EncounterSlot
	for _, candidate := range zone.Encounters {
		if candidate.Weight <= 0 {
			continue
		}
		if roll < candidate.Weight {
			slot = candidate
			break
		}
		roll -= candidate.Weight
	}

	level := slot.MinLevel
	if slot.MaxLevel > slot.MinLevel {
		level += rng.IntN(slot.MaxLevel - slot.MinLevel + 1)
	}
	if level < 1 {
		level = 1
	}

	species, err := catalog.GetSpecies(ctx, slot.SpeciesID)
	if err != nil {
		return nil, fmt.Errorf("failed to load wild species %d: %w", slot.SpeciesID, err)
	}
	stats := CalcStats(species.BaseStats, level)
	return &WildPokemon{
		SpeciesID:      species.ID,
		Name:           species.Name,
		Level:          level,
		Types:          species.Types,
		Stats:          stats,
		HP:             stats.HP,
		CatchRate:      species.CatchRate,
		BaseExperience: species.BaseExperience,
	}, nil
}

// ResolveEncounter rolls for an encounter, battles it with the party lead and, on a win,
// throws a ball. The state's inventory, party and catch count are updated in place.
func ResolveEncounter(ctx context.Context, rng *rand.Rand, catalog Catalog, state *models.PlayerState, zone *models.Zone, t Tuning) (*EncounterEvent, error) {
	if rng.Float64() >= t.EncounterChance {
		return nil, nil
	}
	if len(state.Party) == 0 {
		return nil, nil
	}
	wild, err := SampleWild(ctx, rng, catalog, zone)
	if err != nil || wild == nil {
		return nil, err
	}

	lead := &state.Party[0]
	leadSpecies, err := catalog.GetSpecies(ctx, lead.SpeciesID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lead species %d: %w", lead.SpeciesID, err)
	}

	player := &Combatant{SpeciesID: lead.SpeciesID, Level: lead.Level, Types: leadSpecies.Types, Stats: lead.Stats, HP: lead.Stats.HP}
	opponent := &Combatant{SpeciesID: wild.SpeciesID, Level: wild.Level, Types: wild.Types, Stats: wild.Stats, HP: wild.HP}
	battle := ResolveBattle(rng, player, opponent, t)
	wild.HP = battle.WildHP

	event := &EncounterEvent{Wild: *wild, Battle: battle}
	if battle.Outcome != OutcomeWin {
		return event, nil
	}

	ball := ChooseBall(state.Player.Inventory, state.Player.PreferredBall)
	result, err := ResolveCatch(rng, &state.Player.Inventory, ball, wild, t)
	if errors.Is(err, ErrInsufficientBalls) {
		event.CatchSkipped = CatchSkippedInsufficientBalls
		return event, nil
	}
	event.Catch = &result
	event.BallsUsed = 1
	if !result.Success {
		return event, nil
	}

	id, err := uuid.NewRandomFromReader(randReader{rng: rng})
	if err != nil {
		return nil, fmt.Errorf("failed to generate pokemon id: %w", err)
	}
	species, err := catalog.GetSpecies(ctx, wild.SpeciesID)
	if err != nil {
		return nil, fmt.Errorf("failed to load caught species %d: %w", wild.SpeciesID, err)
	}
	caught := NewPokemon(id.String(), species, wild.Level)
	caught.Slot = len(state.Party)
	state.Party = append(state.Party, caught)
	state.Player.CatchCount++
	event.Caught = &caught
	return event, nil
}
