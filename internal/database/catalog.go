package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/lib/pq"

	"github.com/omega-realm/pokeidle/internal/game"
	"github.com/omega-realm/pokeidle/internal/models"
)

// Catalog serves species and zones from Postgres. Rows are read-only at runtime, so
// each one is cached after its first load.
type Catalog struct {
	db *DB

	mu      sync.RWMutex
	species map[int]*models.PokemonSpecies
	zones   map[int]*models.Zone
}

var _ game.Catalog = (*Catalog)(nil)

func NewCatalog(db *DB) *Catalog {
	return &Catalog{
		db:      db,
		species: make(map[int]*models.PokemonSpecies),
		zones:   make(map[int]*models.Zone),
	}
}

func (c *Catalog) GetSpecies(ctx context.Context, id int) (*models.PokemonSpecies, error) {
	c.mu.RLock()
	s, ok := c.species[id]
	c.mu.RUnlock()
	if ok {
		return s, nil
	}

	s = &models.PokemonSpecies{ID: id}
	var types []string
	var evolvesTo sql.NullInt64
	err := c.db.QueryRowContext(ctx, `
		SELECT name, types, hp, attack, defense, sp_attack, sp_defense, speed,
			base_experience, catch_rate, evolves_to, evolve_level
		FROM species WHERE id = $1`, id,
	).Scan(
		&s.Name,
		pq.Array(&types),
		&s.BaseStats.HP,
		&s.BaseStats.Attack,
		&s.BaseStats.Defense,
		&s.BaseStats.SpAttack,
		&s.BaseStats.SpDefense,
		&s.BaseStats.Speed,
		&s.BaseExperience,
		&s.CatchRate,
		&evolvesTo,
		&s.EvolveLevel,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("species %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load species %d: %w", id, err)
	}
	for _, t := range types {
		s.Types = append(s.Types, models.Type(t))
	}
	if evolvesTo.Valid {
		to := int(evolvesTo.Int64)
		s.EvolvesTo = &to
	}

	c.mu.Lock()
	c.species[id] = s
	c.mu.Unlock()
	return s, nil
}

func (c *Catalog) GetZone(ctx context.Context, id int) (*models.Zone, error) {
	c.mu.RLock()
	z, ok := c.zones[id]
	c.mu.RUnlock()
	if ok {
		return z, nil
	}

	z = &models.Zone{ID: id}
	err := c.db.QueryRowContext(ctx, `SELECT name FROM zones WHERE id = $1`, id).Scan(&z.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("zone %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load zone %d: %w", id, err)
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT species_id, min_level, max_level, weight
		FROM zone_encounters WHERE zone_id = $1 ORDER BY species_id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load encounters of zone %d: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var slot models.EncounterSlot
		if err := rows.Scan(&slot.SpeciesID, &slot.MinLevel, &slot.MaxLevel, &slot.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan encounter: %w", err)
		}
		z.Encounters = append(z.Encounters, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read encounters of zone %d: %w", id, err)
	}

	c.mu.Lock()
	c.zones[id] = z
	c.mu.Unlock()
	return z, nil
}

// SeedCatalog upserts species and zones, replacing each zone's encounter table
func (db *DB) SeedCatalog(ctx context.Context, species []models.PokemonSpecies, zones []models.Zone) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		for _, s := range species {
			types := make([]string, len(s.Types))
			for i, t := range s.Types {
				types[i] = string(t)
			}
			var evolvesTo sql.NullInt64
			if s.EvolvesTo != nil {
				evolvesTo = sql.NullInt64{Int64: int64(*s.EvolvesTo), Valid: true}
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO species (id, name, types, hp, attack, defense, sp_attack, sp_defense, speed,
					base_experience, catch_rate, evolves_to, evolve_level)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
				ON CONFLICT (id) DO UPDATE SET
					name = EXCLUDED.name, types = EXCLUDED.types, hp = EXCLUDED.hp,
					attack = EXCLUDED.attack, defense = EXCLUDED.defense,
					sp_attack = EXCLUDED.sp_attack, sp_defense = EXCLUDED.sp_defense,
					speed = EXCLUDED.speed, base_experience = EXCLUDED.base_experience,
					catch_rate = EXCLUDED.catch_rate, evolves_to = EXCLUDED.evolves_to,
					evolve_level = EXCLUDED.evolve_level`,
				s.ID, s.Name, pq.Array(types),
				s.BaseStats.HP, s.BaseStats.Attack, s.BaseStats.Defense,
				s.BaseStats.SpAttack, s.BaseStats.SpDefense, s.BaseStats.Speed,
				s.BaseExperience, s.CatchRate, evolvesTo, s.EvolveLevel,
			); err != nil {
				return fmt.Errorf("failed to seed species %d: %w", s.ID, err)
			}
		}

		for _, z := range zones {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO zones (id, name) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
				z.ID, z.Name,
			); err != nil {
				return fmt.Errorf("failed to seed zone %d: %w", z.ID, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM zone_encounters WHERE zone_id = $1`, z.ID); err != nil {
				return fmt.Errorf("failed to reset encounters of zone %d: %w", z.ID, err)
			}
			for _, slot := range z.Encounters {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO zone_encounters (zone_id, species_id, min_level, max_level, weight)
					VALUES ($1, $2, $3, $4, $5)`,
					z.ID, slot.SpeciesID, slot.MinLevel, slot.MaxLevel, slot.Weight,
				); err != nil {
					if isForeignKeyViolation(err) {
						return fmt.Errorf("zone %d references unknown species %d: %w", z.ID, slot.SpeciesID, models.ErrNotFound)
					}
					return fmt.Errorf("failed to seed encounter of zone %d: %w", z.ID, err)
				}
			}
		}
		return nil
	})
}
