package game

import "github.com/omega-realm/pokeidle/internal/models"

// Tuning holds the policy values of the simulation. None of these are hard rules of the
// game; they are loaded from configuration.
type Tuning struct {
	// EncounterChance is the probability that a tick produces an encounter.
	EncounterChance float64
	// FleeChance is the probability, checked at the start of every round, that the wild Pokemon escapes.
	FleeChance float64
	// MaxTurns caps the number of rounds before the battle is scored on remaining HP.
	MaxTurns int
	// MovePower is the abstract power of every attack.
	MovePower int
	// BallModifiers scales the catch rate per ball type.
	BallModifiers map[models.BallType]float64
	// XPDivisor divides base experience times wild level into the XP yield.
	XPDivisor int
	// MoneyPerLevel is paid per wild level on a won battle.
	MoneyPerLevel int64
	// AutoConfirmEvolutions confirms queued evolutions at the end of the tick that queued them.
	AutoConfirmEvolutions bool
}

// DefaultTuning returns the values used when nothing is configured
func DefaultTuning() Tuning {
	return Tuning{
		EncounterChance: 0.35,
		FleeChance:      0.05,
		MaxTurns:        20,
		MovePower:       40,
		BallModifiers: map[models.BallType]float64{
			models.BallPoke:  1.0,
			models.BallGreat: 1.5,
			models.BallUltra: 2.0,
		},
		XPDivisor:     7,
		MoneyPerLevel: 10,
	}
}

// BallModifier returns the catch-rate multiplier for a ball type, defaulting to 1
func (t Tuning) BallModifier(b models.BallType) float64 {
	if m, ok := t.BallModifiers[b]; ok && m > 0 {
		return m
	}
	return 1
}
