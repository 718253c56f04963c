package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/omega-realm/pokeidle/internal/models"
	"github.com/omega-realm/pokeidle/internal/persist"
)

// PlayerStore loads and saves player state
type PlayerStore struct {
	db *DB
}

var _ persist.Store = (*PlayerStore)(nil)

func NewPlayerStore(db *DB) *PlayerStore {
	return &PlayerStore{db: db}
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const playerColumns = `id, username, guild_id, zone_id, preferred_ball, poke_balls, great_balls, ultra_balls,
	money, pokedex_count, catch_count, max_level, tick_seq, created_at`

func scanPlayer(row *sql.Row, p *models.Player) error {
	var guild sql.NullInt64
	var ball string
	err := row.Scan(
		&p.ID,
		&p.Username,
		&guild,
		&p.ZoneID,
		&ball,
		&p.Inventory.PokeBalls,
		&p.Inventory.GreatBalls,
		&p.Inventory.UltraBalls,
		&p.Inventory.Money,
		&p.PokedexCount,
		&p.CatchCount,
		&p.MaxLevel,
		&p.TickSeq,
		&p.CreatedAt,
	)
	if err != nil {
		return err
	}
	p.PreferredBall = models.BallType(ball)
	if guild.Valid {
		id := guild.Int64
		p.GuildID = &id
	}
	return nil
}

// LoadPlayerState reads the player row, the party in slot order and the pokedex
func (s *PlayerStore) LoadPlayerState(ctx context.Context, playerID int64) (*models.PlayerState, error) {
	state := &models.PlayerState{}
	query := `SELECT ` + playerColumns + ` FROM players WHERE id = $1`
	err := scanPlayer(s.db.QueryRowContext(ctx, query, playerID), &state.Player)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("player %d: %w", playerID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load player %d: %w", playerID, err)
	}

	party, err := loadParty(ctx, s.db, playerID)
	if err != nil {
		return nil, err
	}
	state.Party = party

	var pokedex []int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(array_agg(species_id ORDER BY species_id), '{}') FROM pokedex WHERE player_id = $1`,
		playerID,
	).Scan(pq.Array(&pokedex)); err != nil {
		return nil, fmt.Errorf("failed to load pokedex of player %d: %w", playerID, err)
	}
	state.Pokedex = fromInt64s(pokedex)
	return state, nil
}

func loadParty(ctx context.Context, q queryer, playerID int64) ([]models.Pokemon, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, slot, species_id, level, experience, hp, attack, defense, sp_attack, sp_defense, speed, last_xp_tick
		FROM pokemon WHERE player_id = $1 ORDER BY slot`, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load party of player %d: %w", playerID, err)
	}
	defer rows.Close()

	var party []models.Pokemon
	for rows.Next() {
		var p models.Pokemon
		if err := rows.Scan(
			&p.ID,
			&p.Slot,
			&p.SpeciesID,
			&p.Level,
			&p.Experience,
			&p.Stats.HP,
			&p.Stats.Attack,
			&p.Stats.Defense,
			&p.Stats.SpAttack,
			&p.Stats.SpDefense,
			&p.Stats.Speed,
			&p.LastXPTick,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pokemon: %w", err)
		}
		party = append(party, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read party of player %d: %w", playerID, err)
	}
	return party, nil
}

// SavePlayerState writes the snapshot in one transaction. A snapshot older than the
// stored tick sequence is dropped so that a late retry cannot roll a player back.
func (s *PlayerStore) SavePlayerState(ctx context.Context, state *models.PlayerState) error {
	p := state.Player
	var guild sql.NullInt64
	if p.GuildID != nil {
		guild = sql.NullInt64{Int64: *p.GuildID, Valid: true}
	}

	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE players SET
				username = $2, guild_id = $3, zone_id = $4, preferred_ball = $5,
				poke_balls = $6, great_balls = $7, ultra_balls = $8, money = $9,
				pokedex_count = $10, catch_count = $11, max_level = $12, tick_seq = $13
			WHERE id = $1 AND tick_seq <= $13`,
			p.ID, p.Username, guild, p.ZoneID, string(p.PreferredBall),
			p.Inventory.PokeBalls, p.Inventory.GreatBalls, p.Inventory.UltraBalls, p.Inventory.Money,
			p.PokedexCount, p.CatchCount, p.MaxLevel, p.TickSeq,
		)
		if err != nil {
			return fmt.Errorf("failed to update player %d: %w", p.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM players WHERE id = $1)`, p.ID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check player %d: %w", p.ID, err)
			}
			if !exists {
				return fmt.Errorf("player %d: %w", p.ID, models.ErrNotFound)
			}
			s.db.log.Debug("stale snapshot dropped", zap.Int64("player", p.ID), zap.Uint64("tick_seq", p.TickSeq))
			return nil
		}

		ids := make([]string, len(state.Party))
		for i, mon := range state.Party {
			ids[i] = mon.ID
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM pokemon WHERE player_id = $1 AND NOT (id = ANY($2))`,
			p.ID, pq.Array(ids),
		); err != nil {
			return fmt.Errorf("failed to prune party of player %d: %w", p.ID, err)
		}
		for i, mon := range state.Party {
			if err := upsertPokemon(ctx, tx, p.ID, i, mon); err != nil {
				return err
			}
		}

		if len(state.Pokedex) > 0 {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO pokedex (player_id, species_id)
				SELECT $1, unnest($2::int[])
				ON CONFLICT DO NOTHING`,
				p.ID, pq.Array(toInt64s(state.Pokedex)),
			); err != nil {
				return fmt.Errorf("failed to save pokedex of player %d: %w", p.ID, err)
			}
		}
		return nil
	})
}

func upsertPokemon(ctx context.Context, tx *sql.Tx, playerID int64, slot int, p models.Pokemon) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO pokemon (id, player_id, slot, species_id, level, experience,
			hp, attack, defense, sp_attack, sp_defense, speed, last_xp_tick)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			slot = EXCLUDED.slot, species_id = EXCLUDED.species_id, level = EXCLUDED.level,
			experience = EXCLUDED.experience, hp = EXCLUDED.hp, attack = EXCLUDED.attack,
			defense = EXCLUDED.defense, sp_attack = EXCLUDED.sp_attack,
			sp_defense = EXCLUDED.sp_defense, speed = EXCLUDED.speed,
			last_xp_tick = EXCLUDED.last_xp_tick
		WHERE pokemon.player_id = EXCLUDED.player_id`,
		p.ID, playerID, slot, p.SpeciesID, p.Level, p.Experience,
		p.Stats.HP, p.Stats.Attack, p.Stats.Defense, p.Stats.SpAttack, p.Stats.SpDefense, p.Stats.Speed,
		p.LastXPTick,
	)
	if err != nil {
		return fmt.Errorf("failed to save pokemon %s: %w", p.ID, err)
	}
	return nil
}

// CreatePlayer inserts a new player with its starting party
func (s *PlayerStore) CreatePlayer(ctx context.Context, state *models.PlayerState) error {
	p := state.Player
	err := s.db.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO players (id, username, zone_id, preferred_ball, poke_balls, great_balls, ultra_balls,
				money, pokedex_count, max_level)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at`,
			p.ID, p.Username, p.ZoneID, string(p.PreferredBall),
			p.Inventory.PokeBalls, p.Inventory.GreatBalls, p.Inventory.UltraBalls, p.Inventory.Money,
			len(state.Pokedex), p.MaxLevel,
		).Scan(&state.Player.CreatedAt)
		if err != nil {
			return err
		}
		for i, mon := range state.Party {
			if err := upsertPokemon(ctx, tx, p.ID, i, mon); err != nil {
				return err
			}
		}
		if len(state.Pokedex) > 0 {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO pokedex (player_id, species_id) SELECT $1, unnest($2::int[]) ON CONFLICT DO NOTHING`,
				p.ID, pq.Array(toInt64s(state.Pokedex)),
			); err != nil {
				return fmt.Errorf("failed to save pokedex: %w", err)
			}
		}
		return nil
	})
	if isUniqueViolation(err) {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Constraint == "players_username_key" {
			return models.ErrUsernameTaken
		}
		return models.ErrPlayerExists
	}
	if err != nil {
		return fmt.Errorf("failed to create player %d: %w", p.ID, err)
	}
	return nil
}

// ListPlayerStats returns the leaderboard aggregates of every player
func (s *PlayerStore) ListPlayerStats(ctx context.Context) ([]models.PlayerStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.username, COUNT(d.species_id), p.catch_count, p.max_level
		FROM players p LEFT JOIN pokedex d ON d.player_id = p.id
		GROUP BY p.id ORDER BY p.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list player stats: %w", err)
	}
	defer rows.Close()

	var out []models.PlayerStats
	for rows.Next() {
		var st models.PlayerStats
		if err := rows.Scan(&st.PlayerID, &st.Username, &st.PokedexCount, &st.CatchCount, &st.MaxLevel); err != nil {
			return nil, fmt.Errorf("failed to scan player stats: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Pokedexes returns every player's registered species
func (s *PlayerStore) Pokedexes(ctx context.Context) (map[int64][]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT player_id, species_id FROM pokedex ORDER BY player_id, species_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pokedexes: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]int)
	for rows.Next() {
		var id int64
		var species int
		if err := rows.Scan(&id, &species); err != nil {
			return nil, fmt.Errorf("failed to scan pokedex: %w", err)
		}
		out[id] = append(out[id], species)
	}
	return out, rows.Err()
}

func toInt64s(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

func fromInt64s(ids []int64) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}
