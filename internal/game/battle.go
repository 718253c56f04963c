package game

import (
	"math/rand/v2"

	"github.com/omega-realm/pokeidle/internal/models"
)

// Side identifies which combatant acted
type Side string

const (
	SidePlayer Side = "player"
	SideWild   Side = "wild"
)

// Outcome is the result of a battle
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLose Outcome = "lose"
	OutcomeWipe Outcome = "wipe"
	OutcomeFled Outcome = "fled"
)

// Combatant is one side of a battle with its own HP counter
type Combatant struct {
	SpeciesID int
	Level     int
	Types     []models.Type
	Stats     models.Stats
	HP        int
}

func (c *Combatant) attackType() models.Type {
	if len(c.Types) == 0 {
		return models.TypeNormal
	}
	return c.Types[0]
}

// BattleTurn is one action in a battle
type BattleTurn struct {
	Turn          int     `json:"turn"`
	Attacker      Side    `json:"attacker"`
	Damage        int     `json:"damage"`
	Effectiveness float64 `json:"effectiveness"`
	DefenderHP    int     `json:"defender_hp"`
	Fled          bool    `json:"fled,omitempty"`
}

// BattleSequence is the ordered resolution of one encounter's combat
type BattleSequence struct {
	Turns    []BattleTurn `json:"turns"`
	Outcome  Outcome      `json:"outcome"`
	PlayerHP int          `json:"player_hp"`
	WildHP   int          `json:"wild_hp"`
}

// Damage computes the damage attacker deals to defender and the type multiplier applied.
// The stronger of the physical and special attack stats is used against the matching defense.
func Damage(attacker, defender *Combatant, power int) (int, float64) {
	eff := Effectiveness(attacker.attackType(), defender.Types)
	if eff == NoEffect {
		return 0, eff
	}
	atk, def := attacker.Stats.Attack, defender.Stats.Defense
	if attacker.Stats.SpAttack > atk {
		atk, def = attacker.Stats.SpAttack, defender.Stats.SpDefense
	}
	if def < 1 {
		def = 1
	}
	base := (2*attacker.Level/5+2)*power*atk/def/50 + 2
	dmg := int(float64(base) * eff)
	if dmg < 1 {
		dmg = 1
	}
	return dmg, eff
}

// ResolveBattle plays rounds until one side reaches zero HP, the wild side flees,
// or the round cap is exceeded, where remaining HP share decides win or lose. The faster side acts first; ties go to the player.
func ResolveBattle(rng *rand.Rand, player, wild *Combatant, t Tuning) BattleSequence {
	seq := BattleSequence{}
	maxTurns := t.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 1
	}

	order := []Side{SidePlayer, SideWild}
	if wild.Stats.Speed > player.Stats.Speed {
		order = []Side{SideWild, SidePlayer}
	}

	finish := func(o Outcome) BattleSequence {
		seq.Outcome = o
		seq.PlayerHP = player.HP
		seq.WildHP = wild.HP
		return seq
	}

	for round := 1; round <= maxTurns; round++ {
		if rng.Float64() < t.FleeChance {
			seq.Turns = append(seq.Turns, BattleTurn{Turn: round, Attacker: SideWild, DefenderHP: player.HP, Fled: true})
			return finish(OutcomeFled)
		}
		for _, side := range order {
			attacker, defender := player, wild
			if side == SideWild {
				attacker, defender = wild, player
			}
			dmg, eff := Damage(attacker, defender, t.MovePower)
			defender.HP -= dmg
			if defender.HP < 0 {
				defender.HP = 0
			}
			seq.Turns = append(seq.Turns, BattleTurn{
				Turn:          round,
				Attacker:      side,
				Damage:        dmg,
				Effectiveness: eff,
				DefenderHP:    defender.HP,
			})
			if defender.HP == 0 {
				if side == SidePlayer {
					return finish(OutcomeWin)
				}
				return finish(OutcomeWipe)
			}
		}
	}
	// at the cap the side holding the larger share of its HP wins; ties go to the wild side
	if hpShare(player) > hpShare(wild) {
		return finish(OutcomeWin)
	}
	return finish(OutcomeLose)
}

func hpShare(c *Combatant) float64 {
	if c.Stats.HP <= 0 {
		return 0
	}
	return float64(c.HP) / float64(c.Stats.HP)
}
