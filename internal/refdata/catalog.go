package refdata

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/omega-realm/pokeidle/internal/models"
)

// Catalog is an in-memory reference catalog. The zero value is empty; Builtin returns one
// populated with the starter data set.
type Catalog struct {
	mu      sync.RWMutex
	species map[int]*models.PokemonSpecies
	zones   map[int]*models.Zone
}

func New() *Catalog {
	return &Catalog{
		species: make(map[int]*models.PokemonSpecies),
		zones:   make(map[int]*models.Zone),
	}
}

// PutSpecies adds or replaces a species
func (c *Catalog) PutSpecies(s models.PokemonSpecies) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.species[s.ID] = &s
}

// PutZone adds or replaces a zone
func (c *Catalog) PutZone(z models.Zone) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zones[z.ID] = &z
}

func (c *Catalog) GetSpecies(_ context.Context, id int) (*models.PokemonSpecies, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.species[id]
	if !ok {
		return nil, fmt.Errorf("species %d: %w", id, models.ErrNotFound)
	}
	return s, nil
}

func (c *Catalog) GetZone(_ context.Context, id int) (*models.Zone, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	z, ok := c.zones[id]
	if !ok {
		return nil, fmt.Errorf("zone %d: %w", id, models.ErrNotFound)
	}
	return z, nil
}

// AllSpecies returns every species ordered by id
func (c *Catalog) AllSpecies() []models.PokemonSpecies {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.PokemonSpecies, 0, len(c.species))
	for _, s := range c.species {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllZones returns every zone ordered by id
func (c *Catalog) AllZones() []models.Zone {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Zone, 0, len(c.zones))
	for _, z := range c.zones {
		out = append(out, *z)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
