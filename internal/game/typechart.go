package game

import "github.com/omega-realm/pokeidle/internal/models"

const (
	SuperEffective   = 2.0
	NotVeryEffective = 0.5
	NoEffect         = 0.0
	Neutral          = 1.0
)

type matchup struct {
	super  []models.Type
	weak   []models.Type
	immune []models.Type
}

var typeChart = map[models.Type]matchup{
	models.TypeNormal: {
		weak:   []models.Type{models.TypeRock, models.TypeSteel},
		immune: []models.Type{models.TypeGhost},
	},
	models.TypeFire: {
		super: []models.Type{models.TypeGrass, models.TypeIce, models.TypeBug, models.TypeSteel},
		weak:  []models.Type{models.TypeFire, models.TypeWater, models.TypeRock, models.TypeDragon},
	},
	models.TypeWater: {
		super: []models.Type{models.TypeFire, models.TypeGround, models.TypeRock},
		weak:  []models.Type{models.TypeWater, models.TypeGrass, models.TypeDragon},
	},
	models.TypeElectric: {
		super:  []models.Type{models.TypeWater, models.TypeFlying},
		weak:   []models.Type{models.TypeElectric, models.TypeGrass, models.TypeDragon},
		immune: []models.Type{models.TypeGround},
	},
	models.TypeGrass: {
		super: []models.Type{models.TypeWater, models.TypeGround, models.TypeRock},
		weak: []models.Type{models.TypeFire, models.TypeGrass, models.TypePoison, models.TypeFlying,
			models.TypeBug, models.TypeDragon, models.TypeSteel},
	},
	models.TypeIce: {
		super: []models.Type{models.TypeGrass, models.TypeGround, models.TypeFlying, models.TypeDragon},
		weak:  []models.Type{models.TypeFire, models.TypeWater, models.TypeIce, models.TypeSteel},
	},
	models.TypeFighting: {
		super: []models.Type{models.TypeNormal, models.TypeIce, models.TypeRock, models.TypeDark, models.TypeSteel},
		weak: []models.Type{models.TypePoison, models.TypeFlying, models.TypePsychic, models.TypeBug,
			models.TypeFairy},
		immune: []models.Type{models.TypeGhost},
	},
	models.TypePoison: {
		super:  []models.Type{models.TypeGrass, models.TypeFairy},
		weak:   []models.Type{models.TypePoison, models.TypeGround, models.TypeRock, models.TypeGhost},
		immune: []models.Type{models.TypeSteel},
	},
	models.TypeGround: {
		super:  []models.Type{models.TypeFire, models.TypeElectric, models.TypePoison, models.TypeRock, models.TypeSteel},
		weak:   []models.Type{models.TypeGrass, models.TypeBug},
		immune: []models.Type{models.TypeFlying},
	},
	models.TypeFlying: {
		super: []models.Type{models.TypeGrass, models.TypeFighting, models.TypeBug},
		weak:  []models.Type{models.TypeElectric, models.TypeRock, models.TypeSteel},
	},
	models.TypePsychic: {
		super:  []models.Type{models.TypeFighting, models.TypePoison},
		weak:   []models.Type{models.TypePsychic, models.TypeSteel},
		immune: []models.Type{models.TypeDark},
	},
	models.TypeBug: {
		super: []models.Type{models.TypeGrass, models.TypePsychic, models.TypeDark},
		weak: []models.Type{models.TypeFire, models.TypeFighting, models.TypePoison, models.TypeFlying,
			models.TypeGhost, models.TypeSteel, models.TypeFairy},
	},
	models.TypeRock: {
		super: []models.Type{models.TypeFire, models.TypeIce, models.TypeFlying, models.TypeBug},
		weak:  []models.Type{models.TypeFighting, models.TypeGround, models.TypeSteel},
	},
	models.TypeGhost: {
		super:  []models.Type{models.TypePsychic, models.TypeGhost},
		weak:   []models.Type{models.TypeDark},
		immune: []models.Type{models.TypeNormal},
	},
	models.TypeDragon: {
		super:  []models.Type{models.TypeDragon},
		weak:   []models.Type{models.TypeSteel},
		immune: []models.Type{models.TypeFairy},
	},
	models.TypeDark: {
		super: []models.Type{models.TypePsychic, models.TypeGhost},
		weak:  []models.Type{models.TypeFighting, models.TypeDark, models.TypeFairy},
	},
	models.TypeSteel: {
		super: []models.Type{models.TypeIce, models.TypeRock, models.TypeFairy},
		weak:  []models.Type{models.TypeFire, models.TypeWater, models.TypeElectric, models.TypeSteel},
	},
	models.TypeFairy: {
		super: []models.Type{models.TypeFighting, models.TypeDragon, models.TypeDark},
		weak:  []models.Type{models.TypeFire, models.TypePoison, models.TypeSteel},
	},
}

func contains(types []models.Type, t models.Type) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

// single returns the multiplier of one attacking type against one defending type
func single(attack, defend models.Type) float64 {
	m, ok := typeChart[attack]
	if !ok {
		return Neutral
	}
	switch {
	case contains(m.immune, defend):
		return NoEffect
	case contains(m.super, defend):
		return SuperEffective
	case contains(m.weak, defend):
		return NotVeryEffective
	}
	return Neutral
}

// Effectiveness multiplies the chart value across every defending type
func Effectiveness(attack models.Type, defend []models.Type) float64 {
	eff := Neutral
	for _, t := range defend {
		eff *= single(attack, t)
	}
	return eff
}
