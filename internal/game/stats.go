package game

import "github.com/omega-realm/pokeidle/internal/models"

// MaxLevel is the level cap
const MaxLevel = 100

// CalcStats derives the six stats from species base stats at a level
func CalcStats(base models.Stats, level int) models.Stats {
	calc := func(b int) int {
		return 2*b*level/100 + 5
	}
	return models.Stats{
		HP:        2*base.HP*level/100 + level + 10,
		Attack:    calc(base.Attack),
		Defense:   calc(base.Defense),
		SpAttack:  calc(base.SpAttack),
		SpDefense: calc(base.SpDefense),
		Speed:     calc(base.Speed),
	}
}

// ExpForLevel returns the total experience needed to reach level
func ExpForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	l := int64(level)
	return l * l * l
}

// NewPokemon builds a freshly obtained Pokemon at level
func NewPokemon(id string, species *models.PokemonSpecies, level int) models.Pokemon {
	return models.Pokemon{
		ID:         id,
		SpeciesID:  species.ID,
		Level:      level,
		Experience: ExpForLevel(level),
		Stats:      CalcStats(species.BaseStats, level),
	}
}
