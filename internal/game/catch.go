package game

import (
	"math"
	"math/rand/v2"

	"github.com/omega-realm/pokeidle/internal/models"
)

// ShakeChecks is the number of shake checks a catch needs to pass
const ShakeChecks = 3

// CatchResult is the outcome of one catch attempt
type CatchResult struct {
	Ball           models.BallType `json:"ball"`
	Success        bool            `json:"success"`
	ShakeCount     int             `json:"shake_count"`
	BreakFreeShake int             `json:"break_free_shake,omitempty"`
}

// CatchChance returns the probability that all three shakes pass. It grows with the species
// catch rate, the ball modifier and the fraction of HP the wild Pokemon has lost.
func CatchChance(wild *WildPokemon, ball models.BallType, t Tuning) float64 {
	maxHP := wild.Stats.HP
	if maxHP <= 0 {
		return 0
	}
	cur := wild.HP
	if cur < 0 {
		cur = 0
	}
	a := float64(3*maxHP-2*cur) * float64(wild.CatchRate) * t.BallModifier(ball) / float64(3*maxHP)
	chance := a / 255
	return math.Max(0, math.Min(1, chance))
}

// ShakeProbability is the per-shake pass probability derived from CatchChance
func ShakeProbability(wild *WildPokemon, ball models.BallType, t Tuning) float64 {
	return math.Cbrt(CatchChance(wild, ball, t))
}

// ChooseBall returns the preferred ball when in stock, otherwise the first ball type in stock.
// When nothing is in stock the preferred ball is returned so the attempt is rejected for it.
func ChooseBall(inv models.Inventory, preferred models.BallType) models.BallType {
	if !models.IsValidBall(preferred) {
		preferred = models.BallPoke
	}
	if inv.Balls(preferred) > 0 {
		return preferred
	}
	for _, b := range models.BallTypes {
		if inv.Balls(b) > 0 {
			return b
		}
	}
	return preferred
}

// ResolveCatch consumes one ball of the chosen type and runs the shake checks.
// A zero count for the ball is rejected with ErrInsufficientBalls and nothing is consumed.
func ResolveCatch(rng *rand.Rand, inv *models.Inventory, ball models.BallType, wild *WildPokemon, t Tuning) (CatchResult, error) {
	if inv.Balls(ball) <= 0 {
		return CatchResult{Ball: ball}, ErrInsufficientBalls
	}
	inv.AddBalls(ball, -1)

	p := ShakeProbability(wild, ball, t)
	result := CatchResult{Ball: ball}
	for shake := 1; shake <= ShakeChecks; shake++ {
		result.ShakeCount = shake
		if rng.Float64() >= p {
			result.BreakFreeShake = shake
			return result, nil
		}
	}
	result.Success = true
	return result, nil
}
