package game

import (
	"math/rand/v2"
	"testing"

	"github.com/omega-realm/pokeidle/internal/models"
)

func testRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

func TestEffectiveness(t *testing.T) {
	tests := []struct {
		attack models.Type
		defend []models.Type
		want   float64
	}{
		{models.TypeFire, []models.Type{models.TypeGrass}, 2},
		{models.TypeFire, []models.Type{models.TypeWater}, 0.5},
		{models.TypeNormal, []models.Type{models.TypeGhost}, 0},
		{models.TypeNormal, []models.Type{models.TypeNormal}, 1},
		{models.TypeElectric, []models.Type{models.TypeWater, models.TypeFlying}, 4},
		{models.TypeGrass, []models.Type{models.TypeRock, models.TypeGround}, 4},
		{models.TypeElectric, []models.Type{models.TypeRock, models.TypeGround}, 0},
		{models.TypeFire, []models.Type{models.TypeFire, models.TypeFlying}, 0.5},
	}
	for _, tc := range tests {
		if got := Effectiveness(tc.attack, tc.defend); got != tc.want {
			t.Fatalf("%s vs %v = %v, want %v", tc.attack, tc.defend, got, tc.want)
		}
	}
}

func combatant(types []models.Type, level int, speed int) *Combatant {
	stats := models.Stats{HP: 50, Attack: 30, Defense: 30, SpAttack: 20, SpDefense: 20, Speed: speed}
	return &Combatant{Level: level, Types: types, Stats: stats, HP: stats.HP}
}

func noFlee() Tuning {
	tu := DefaultTuning()
	tu.FleeChance = 0
	return tu
}

func TestResolveBattleSpeedOrdering(t *testing.T) {
	normal := []models.Type{models.TypeNormal}

	tie := ResolveBattle(testRand(1), combatant(normal, 10, 40), combatant(normal, 10, 40), noFlee())
	if tie.Turns[0].Attacker != SidePlayer {
		t.Fatalf("tie should go to player, first attacker %s", tie.Turns[0].Attacker)
	}

	slower := ResolveBattle(testRand(1), combatant(normal, 10, 30), combatant(normal, 10, 40), noFlee())
	if slower.Turns[0].Attacker != SideWild {
		t.Fatalf("faster wild should act first, got %s", slower.Turns[0].Attacker)
	}

	for i := 1; i < len(tie.Turns); i++ {
		if tie.Turns[i].Attacker == tie.Turns[i-1].Attacker {
			t.Fatalf("turns should alternate, turn %d repeats %s", i, tie.Turns[i].Attacker)
		}
	}
}

func TestResolveBattleOutcomes(t *testing.T) {
	normal := []models.Type{models.TypeNormal}

	strong := combatant(normal, 100, 100)
	strong.Stats.Attack = 300
	win := ResolveBattle(testRand(2), strong, combatant(normal, 2, 10), noFlee())
	if win.Outcome != OutcomeWin || win.WildHP != 0 {
		t.Fatalf("expected win with wild at 0 HP, got %s wild_hp=%d", win.Outcome, win.WildHP)
	}

	wild := combatant(normal, 100, 100)
	wild.Stats.Attack = 300
	wipe := ResolveBattle(testRand(3), combatant(normal, 2, 10), wild, noFlee())
	if wipe.Outcome != OutcomeWipe || wipe.PlayerHP != 0 {
		t.Fatalf("expected wipe with player at 0 HP, got %s player_hp=%d", wipe.Outcome, wipe.PlayerHP)
	}

	flee := DefaultTuning()
	flee.FleeChance = 1
	fled := ResolveBattle(testRand(4), combatant(normal, 10, 10), combatant(normal, 10, 10), flee)
	if fled.Outcome != OutcomeFled || len(fled.Turns) != 1 || !fled.Turns[0].Fled {
		t.Fatalf("expected immediate flee, got %+v", fled)
	}

	capped := noFlee()
	capped.MaxTurns = 3
	stalemate := ResolveBattle(testRand(5), combatant(normal, 10, 10), combatant([]models.Type{models.TypeGhost}, 10, 10), capped)
	if stalemate.Outcome != OutcomeLose {
		t.Fatalf("expected lose on an even turn cap, got %s", stalemate.Outcome)
	}
	if len(stalemate.Turns) != 6 {
		t.Fatalf("expected 6 turns over 3 rounds, got %d", len(stalemate.Turns))
	}
	for _, turn := range stalemate.Turns {
		if turn.Damage != 0 || turn.Effectiveness != NoEffect {
			t.Fatalf("immune matchup should deal no damage, got %+v", turn)
		}
	}

	// the wild side cannot touch a fighting/ghost lead, so the lead is ahead at the cap
	capped.MaxTurns = 1
	ahead := ResolveBattle(testRand(6), combatant([]models.Type{models.TypeFighting, models.TypeGhost}, 10, 10), combatant(normal, 10, 10), capped)
	if ahead.Outcome != OutcomeWin {
		t.Fatalf("expected win on remaining HP at the cap, got %s (player %d, wild %d)", ahead.Outcome, ahead.PlayerHP, ahead.WildHP)
	}
	if ahead.WildHP == 0 || ahead.PlayerHP != 50 {
		t.Fatalf("expected both sides standing at the cap, got player %d wild %d", ahead.PlayerHP, ahead.WildHP)
	}
}
