package models

import "time"

// BallType identifies one of the ball kinds a player can throw
type BallType string

const (
	BallPoke  BallType = "pokeball"
	BallGreat BallType = "greatball"
	BallUltra BallType = "ultraball"
)

// BallTypes lists ball kinds in the order they are used as a fallback
var BallTypes = []BallType{BallPoke, BallGreat, BallUltra}

// IsValidBall checks if a ball type is known
func IsValidBall(b BallType) bool {
	for _, known := range BallTypes {
		if known == b {
			return true
		}
	}
	return false
}

// Inventory holds a player's consumables and currency
type Inventory struct {
	PokeBalls  int   `json:"pokeballs" msgpack:"pokeballs"`
	GreatBalls int   `json:"great_balls" msgpack:"great_balls"`
	UltraBalls int   `json:"ultra_balls" msgpack:"ultra_balls"`
	Money      int64 `json:"money" msgpack:"money"`
}

// Balls returns the count for a ball type
func (inv Inventory) Balls(b BallType) int {
	switch b {
	case BallPoke:
		return inv.PokeBalls
	case BallGreat:
		return inv.GreatBalls
	case BallUltra:
		return inv.UltraBalls
	}
	return 0
}

// AddBalls adjusts the count for a ball type by delta
func (inv *Inventory) AddBalls(b BallType, delta int) {
	switch b {
	case BallPoke:
		inv.PokeBalls += delta
	case BallGreat:
		inv.GreatBalls += delta
	case BallUltra:
		inv.UltraBalls += delta
	}
}

// Player represents a persisted player account and its leaderboard aggregates
type Player struct {
	ID            int64     `json:"id" msgpack:"id"`
	Username      string    `json:"username" msgpack:"username"`
	GuildID       *int64    `json:"guild_id,omitempty" msgpack:"guild_id"`
	ZoneID        int       `json:"zone_id" msgpack:"zone_id"`
	PreferredBall BallType  `json:"preferred_ball" msgpack:"preferred_ball"`
	Inventory     Inventory `json:"inventory" msgpack:"inventory"`
	PokedexCount  int       `json:"pokedex_count" msgpack:"pokedex_count"`
	CatchCount    int       `json:"catch_count" msgpack:"catch_count"`
	MaxLevel      int       `json:"max_level" msgpack:"max_level"`
	TickSeq       uint64    `json:"tick_seq" msgpack:"tick_seq"`
	CreatedAt     time.Time `json:"created_at" msgpack:"created_at"`
}

// Stats are the six core battle stats
type Stats struct {
	HP        int `json:"hp" msgpack:"hp"`
	Attack    int `json:"attack" msgpack:"attack"`
	Defense   int `json:"defense" msgpack:"defense"`
	SpAttack  int `json:"sp_attack" msgpack:"sp_attack"`
	SpDefense int `json:"sp_defense" msgpack:"sp_defense"`
	Speed     int `json:"speed" msgpack:"speed"`
}

// Pokemon represents an owned Pokemon
type Pokemon struct {
	ID         string `json:"id" msgpack:"id"`
	SpeciesID  int    `json:"species_id" msgpack:"species_id"`
	Level      int    `json:"level" msgpack:"level"`
	Experience int64  `json:"experience" msgpack:"experience"`
	Stats      Stats  `json:"stats" msgpack:"stats"`
	LastXPTick uint64 `json:"-" msgpack:"last_xp_tick"`
	Slot       int    `json:"slot" msgpack:"slot"`
}

// PlayerState is the seed data a session is built from, and the unit that is saved back
type PlayerState struct {
	Player  Player    `json:"player" msgpack:"player"`
	Party   []Pokemon `json:"party" msgpack:"party"`
	Pokedex []int     `json:"pokedex" msgpack:"pokedex"`
}

// Clone returns a deep copy of the state
func (s *PlayerState) Clone() *PlayerState {
	out := &PlayerState{Player: s.Player}
	if s.Player.GuildID != nil {
		g := *s.Player.GuildID
		out.Player.GuildID = &g
	}
	out.Party = append([]Pokemon(nil), s.Party...)
	out.Pokedex = append([]int(nil), s.Pokedex...)
	return out
}

// HasSpecies reports whether the species has been registered in the pokedex
func (s *PlayerState) HasSpecies(speciesID int) bool {
	for _, id := range s.Pokedex {
		if id == speciesID {
			return true
		}
	}
	return false
}

// Guild represents a guild and its bounded member count
type Guild struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	MemberCount int       `json:"member_count"`
	MaxMembers  int       `json:"max_members"`
	CreatedAt   time.Time `json:"created_at"`
}

// QuestKind names the counter a guild quest tracks
type QuestKind string

const (
	QuestCatch   QuestKind = "catch"
	QuestLevelUp QuestKind = "level_up"
	QuestPokedex QuestKind = "pokedex"
)

// GuildQuest is one quest instance; completion is idempotent per ID
type GuildQuest struct {
	ID          string     `json:"id"`
	GuildID     int64      `json:"guild_id"`
	Kind        QuestKind  `json:"kind"`
	Target      int64      `json:"target"`
	Progress    int64      `json:"progress"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// PlayerStats are the leaderboard aggregates of one player
type PlayerStats struct {
	PlayerID     int64  `json:"player_id"`
	Username     string `json:"username"`
	PokedexCount int    `json:"pokedex_count"`
	CatchCount   int    `json:"catch_count"`
	MaxLevel     int    `json:"max_level"`
}
