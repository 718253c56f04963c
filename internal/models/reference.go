package models

// Type is an elemental type used by the type chart
type Type string

const (
	TypeNormal   Type = "normal"
	TypeFire     Type = "fire"
	TypeWater    Type = "water"
	TypeElectric Type = "electric"
	TypeGrass    Type = "grass"
	TypeIce      Type = "ice"
	TypeFighting Type = "fighting"
	TypePoison   Type = "poison"
	TypeGround   Type = "ground"
	TypeFlying   Type = "flying"
	TypePsychic  Type = "psychic"
	TypeBug      Type = "bug"
	TypeRock     Type = "rock"
	TypeGhost    Type = "ghost"
	TypeDragon   Type = "dragon"
	TypeDark     Type = "dark"
	TypeSteel    Type = "steel"
	TypeFairy    Type = "fairy"
)

// PokemonSpecies is read-only reference data
type PokemonSpecies struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	Types          []Type `json:"types"`
	BaseStats      Stats  `json:"base_stats"`
	BaseExperience int    `json:"base_experience"`
	CatchRate      int    `json:"catch_rate"`
	EvolvesTo      *int   `json:"evolves_to,omitempty"`
	EvolveLevel    int    `json:"evolve_level,omitempty"`
}

// CanEvolveAt reports whether a Pokemon of this species at level is eligible to evolve
func (s *PokemonSpecies) CanEvolveAt(level int) bool {
	return s.EvolvesTo != nil && s.EvolveLevel > 0 && level >= s.EvolveLevel
}

// EncounterSlot is one weighted row of a zone's encounter table
type EncounterSlot struct {
	SpeciesID int `json:"species_id"`
	MinLevel  int `json:"min_level"`
	MaxLevel  int `json:"max_level"`
	Weight    int `json:"weight"`
}

// Zone is read-only reference data describing where wild Pokemon appear
type Zone struct {
	ID         int             `json:"id"`
	Name       string          `json:"name"`
	Encounters []EncounterSlot `json:"encounters"`
}

// TotalWeight sums the weights of the encounter table
func (z *Zone) TotalWeight() int {
	total := 0
	for _, slot := range z.Encounters {
		if slot.Weight > 0 {
			total += slot.Weight
		}
	}
	return total
}

// LeaderboardType names a leaderboard ordering
type LeaderboardType string

const (
	LeaderboardPokedex  LeaderboardType = "pokedex"
	LeaderboardCatches  LeaderboardType = "catches"
	LeaderboardMaxLevel LeaderboardType = "max_level"
)

// LeaderboardTypes lists every leaderboard
var LeaderboardTypes = []LeaderboardType{LeaderboardPokedex, LeaderboardCatches, LeaderboardMaxLevel}

// IsValidLeaderboard checks if a leaderboard type is known
func IsValidLeaderboard(t LeaderboardType) bool {
	for _, known := range LeaderboardTypes {
		if known == t {
			return true
		}
	}
	return false
}

// Score returns the stat a leaderboard type orders by
func (p PlayerStats) Score(t LeaderboardType) int {
	switch t {
	case LeaderboardPokedex:
		return p.PokedexCount
	case LeaderboardCatches:
		return p.CatchCount
	case LeaderboardMaxLevel:
		return p.MaxLevel
	}
	return 0
}

// LeaderboardEntry is a derived, dense-ranked view of one player
type LeaderboardEntry struct {
	PlayerID int64  `json:"player_id"`
	Username string `json:"username"`
	Score    int64  `json:"score"`
	Rank     int64  `json:"rank"`
}
