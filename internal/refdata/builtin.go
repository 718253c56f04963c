package refdata

import "github.com/omega-realm/pokeidle/internal/models"

// Zone ID constants
const (
	ZoneRoute1         = 1
	ZoneViridianForest = 2
	ZoneMtMoon         = 3
	ZoneLavenderTower  = 4
	ZoneSafari         = 5
)

// StarterSpeciesID is the species every new player begins with
const StarterSpeciesID = 4

func evo(to int) *int {
	return &to
}

func types(t ...models.Type) []models.Type {
	return t
}

var builtinSpecies = []models.PokemonSpecies{
	{ID: 1, Name: "Bulbasaur", Types: types(models.TypeGrass, models.TypePoison), BaseStats: models.Stats{HP: 45, Attack: 49, Defense: 49, SpAttack: 65, SpDefense: 65, Speed: 45}, BaseExperience: 64, CatchRate: 45, EvolvesTo: evo(2), EvolveLevel: 16},
	{ID: 2, Name: "Ivysaur", Types: types(models.TypeGrass, models.TypePoison), BaseStats: models.Stats{HP: 60, Attack: 62, Defense: 63, SpAttack: 80, SpDefense: 80, Speed: 60}, BaseExperience: 142, CatchRate: 45, EvolvesTo: evo(3), EvolveLevel: 32},
	{ID: 3, Name: "Venusaur", Types: types(models.TypeGrass, models.TypePoison), BaseStats: models.Stats{HP: 80, Attack: 82, Defense: 83, SpAttack: 100, SpDefense: 100, Speed: 80}, BaseExperience: 236, CatchRate: 45},
	{ID: 4, Name: "Charmander", Types: types(models.TypeFire), BaseStats: models.Stats{HP: 39, Attack: 52, Defense: 43, SpAttack: 60, SpDefense: 50, Speed: 65}, BaseExperience: 62, CatchRate: 45, EvolvesTo: evo(5), EvolveLevel: 16},
	{ID: 5, Name: "Charmeleon", Types: types(models.TypeFire), BaseStats: models.Stats{HP: 58, Attack: 64, Defense: 58, SpAttack: 80, SpDefense: 65, Speed: 80}, BaseExperience: 142, CatchRate: 45, EvolvesTo: evo(6), EvolveLevel: 36},
	{ID: 6, Name: "Charizard", Types: types(models.TypeFire, models.TypeFlying), BaseStats: models.Stats{HP: 78, Attack: 84, Defense: 78, SpAttack: 109, SpDefense: 85, Speed: 100}, BaseExperience: 240, CatchRate: 45},
	{ID: 7, Name: "Squirtle", Types: types(models.TypeWater), BaseStats: models.Stats{HP: 44, Attack: 48, Defense: 65, SpAttack: 50, SpDefense: 64, Speed: 43}, BaseExperience: 63, CatchRate: 45, EvolvesTo: evo(8), EvolveLevel: 16},
	{ID: 8, Name: "Wartortle", Types: types(models.TypeWater), BaseStats: models.Stats{HP: 59, Attack: 63, Defense: 80, SpAttack: 65, SpDefense: 80, Speed: 58}, BaseExperience: 142, CatchRate: 45, EvolvesTo: evo(9), EvolveLevel: 36},
	{ID: 9, Name: "Blastoise", Types: types(models.TypeWater), BaseStats: models.Stats{HP: 79, Attack: 83, Defense: 100, SpAttack: 85, SpDefense: 105, Speed: 78}, BaseExperience: 239, CatchRate: 45},
	{ID: 10, Name: "Caterpie", Types: types(models.TypeBug), BaseStats: models.Stats{HP: 45, Attack: 30, Defense: 35, SpAttack: 20, SpDefense: 20, Speed: 45}, BaseExperience: 39, CatchRate: 255, EvolvesTo: evo(11), EvolveLevel: 7},
	{ID: 11, Name: "Metapod", Types: types(models.TypeBug), BaseStats: models.Stats{HP: 50, Attack: 20, Defense: 55, SpAttack: 25, SpDefense: 25, Speed: 30}, BaseExperience: 72, CatchRate: 120, EvolvesTo: evo(12), EvolveLevel: 10},
	{ID: 12, Name: "Butterfree", Types: types(models.TypeBug, models.TypeFlying), BaseStats: models.Stats{HP: 60, Attack: 45, Defense: 50, SpAttack: 90, SpDefense: 80, Speed: 70}, BaseExperience: 178, CatchRate: 45},
	{ID: 16, Name: "Pidgey", Types: types(models.TypeNormal, models.TypeFlying), BaseStats: models.Stats{HP: 40, Attack: 45, Defense: 40, SpAttack: 35, SpDefense: 35, Speed: 56}, BaseExperience: 50, CatchRate: 255, EvolvesTo: evo(17), EvolveLevel: 18},
	{ID: 17, Name: "Pidgeotto", Types: types(models.TypeNormal, models.TypeFlying), BaseStats: models.Stats{HP: 63, Attack: 60, Defense: 55, SpAttack: 50, SpDefense: 50, Speed: 71}, BaseExperience: 122, CatchRate: 120, EvolvesTo: evo(18), EvolveLevel: 36},
	{ID: 18, Name: "Pidgeot", Types: types(models.TypeNormal, models.TypeFlying), BaseStats: models.Stats{HP: 83, Attack: 80, Defense: 75, SpAttack: 70, SpDefense: 70, Speed: 101}, BaseExperience: 216, CatchRate: 45},
	{ID: 19, Name: "Rattata", Types: types(models.TypeNormal), BaseStats: models.Stats{HP: 30, Attack: 56, Defense: 35, SpAttack: 25, SpDefense: 35, Speed: 72}, BaseExperience: 51, CatchRate: 255, EvolvesTo: evo(20), EvolveLevel: 20},
	{ID: 20, Name: "Raticate", Types: types(models.TypeNormal), BaseStats: models.Stats{HP: 55, Attack: 81, Defense: 60, SpAttack: 50, SpDefense: 70, Speed: 97}, BaseExperience: 145, CatchRate: 127},
	{ID: 25, Name: "Pikachu", Types: types(models.TypeElectric), BaseStats: models.Stats{HP: 35, Attack: 55, Defense: 40, SpAttack: 50, SpDefense: 50, Speed: 90}, BaseExperience: 112, CatchRate: 190},
	{ID: 74, Name: "Geodude", Types: types(models.TypeRock, models.TypeGround), BaseStats: models.Stats{HP: 40, Attack: 80, Defense: 100, SpAttack: 30, SpDefense: 30, Speed: 20}, BaseExperience: 60, CatchRate: 255, EvolvesTo: evo(75), EvolveLevel: 25},
	{ID: 75, Name: "Graveler", Types: types(models.TypeRock, models.TypeGround), BaseStats: models.Stats{HP: 55, Attack: 95, Defense: 115, SpAttack: 45, SpDefense: 45, Speed: 35}, BaseExperience: 137, CatchRate: 120},
	{ID: 92, Name: "Gastly", Types: types(models.TypeGhost, models.TypePoison), BaseStats: models.Stats{HP: 30, Attack: 35, Defense: 30, SpAttack: 100, SpDefense: 35, Speed: 80}, BaseExperience: 62, CatchRate: 190, EvolvesTo: evo(93), EvolveLevel: 25},
	{ID: 93, Name: "Haunter", Types: types(models.TypeGhost, models.TypePoison), BaseStats: models.Stats{HP: 45, Attack: 50, Defense: 45, SpAttack: 115, SpDefense: 55, Speed: 95}, BaseExperience: 142, CatchRate: 90},
	{ID: 147, Name: "Dratini", Types: types(models.TypeDragon), BaseStats: models.Stats{HP: 41, Attack: 64, Defense: 45, SpAttack: 50, SpDefense: 50, Speed: 50}, BaseExperience: 60, CatchRate: 45, EvolvesTo: evo(148), EvolveLevel: 30},
	{ID: 148, Name: "Dragonair", Types: types(models.TypeDragon), BaseStats: models.Stats{HP: 61, Attack: 84, Defense: 65, SpAttack: 70, SpDefense: 70, Speed: 70}, BaseExperience: 147, CatchRate: 45, EvolvesTo: evo(149), EvolveLevel: 55},
	{ID: 149, Name: "Dragonite", Types: types(models.TypeDragon, models.TypeFlying), BaseStats: models.Stats{HP: 91, Attack: 134, Defense: 95, SpAttack: 100, SpDefense: 100, Speed: 80}, BaseExperience: 270, CatchRate: 45},
}

var builtinZones = []models.Zone{
	{ID: ZoneRoute1, Name: "Route 1", Encounters: []models.EncounterSlot{
		{SpeciesID: 16, MinLevel: 2, MaxLevel: 5, Weight: 50},
		{SpeciesID: 19, MinLevel: 2, MaxLevel: 4, Weight: 50},
	}},
	{ID: ZoneViridianForest, Name: "Viridian Forest", Encounters: []models.EncounterSlot{
		{SpeciesID: 10, MinLevel: 3, MaxLevel: 5, Weight: 45},
		{SpeciesID: 16, MinLevel: 4, MaxLevel: 6, Weight: 40},
		{SpeciesID: 25, MinLevel: 3, MaxLevel: 5, Weight: 15},
	}},
	{ID: ZoneMtMoon, Name: "Mt. Moon", Encounters: []models.EncounterSlot{
		{SpeciesID: 74, MinLevel: 8, MaxLevel: 12, Weight: 70},
		{SpeciesID: 19, MinLevel: 8, MaxLevel: 10, Weight: 30},
	}},
	{ID: ZoneLavenderTower, Name: "Lavender Tower", Encounters: []models.EncounterSlot{
		{SpeciesID: 92, MinLevel: 18, MaxLevel: 24, Weight: 90},
		{SpeciesID: 93, MinLevel: 25, MaxLevel: 27, Weight: 10},
	}},
	{ID: ZoneSafari, Name: "Safari Zone", Encounters: []models.EncounterSlot{
		{SpeciesID: 147, MinLevel: 15, MaxLevel: 25, Weight: 10},
		{SpeciesID: 19, MinLevel: 20, MaxLevel: 25, Weight: 45},
		{SpeciesID: 17, MinLevel: 22, MaxLevel: 26, Weight: 45},
	}},
}

// Builtin returns a catalog populated with the starter data set
func Builtin() *Catalog {
	c := New()
	for _, s := range builtinSpecies {
		c.PutSpecies(s)
	}
	for _, z := range builtinZones {
		c.PutZone(z)
	}
	return c
}
