package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/omega-realm/pokeidle/internal/config"
	"github.com/omega-realm/pokeidle/internal/logging"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
	log *zap.Logger
}

// Config holds database configuration
type Config struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// LoadConfigFromEnv loads database configuration from environment variables
func LoadConfigFromEnv() *Config {
	return &Config{
		Host:            config.GetEnv("DB_HOST", "localhost"),
		Port:            config.GetEnv("DB_PORT", "5432"),
		User:            config.GetEnv("DB_USER", "pokeidle"),
		Password:        config.GetEnv("DB_PASSWORD", "pokeidle_password"),
		DBName:          config.GetEnv("DB_NAME", "pokeidle"),
		SSLMode:         config.GetEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    config.GetEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    config.GetEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: config.GetEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		ConnMaxIdleTime: config.GetEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 10*time.Minute),
	}
}

// DSN returns the lib/pq connection string
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// NewConnection creates a new database connection with the provided configuration
func NewConnection(cfg *Config, log *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log = logging.OrNop(log).Named("database")
	log.Info("connected",
		zap.String("addr", cfg.Host+":"+cfg.Port),
		zap.String("db", cfg.DBName),
		zap.Int("max_open", cfg.MaxOpenConns),
		zap.Int("max_idle", cfg.MaxIdleConns),
	)

	return &DB{DB: db, log: log}, nil
}

// Postgres error codes the stores map to domain errors
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error) bool { return pqCode(err) == codeUniqueViolation }

func isForeignKeyViolation(err error) bool { return pqCode(err) == codeForeignKeyViolation }

// inTx runs fn in a transaction, committing when it returns nil
func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// InitSchema creates database tables if they don't exist
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS species (
		id INTEGER PRIMARY KEY,
		name VARCHAR(50) NOT NULL,
		types TEXT[] NOT NULL,
		hp INTEGER NOT NULL,
		attack INTEGER NOT NULL,
		defense INTEGER NOT NULL,
		sp_attack INTEGER NOT NULL,
		sp_defense INTEGER NOT NULL,
		speed INTEGER NOT NULL,
		base_experience INTEGER NOT NULL,
		catch_rate INTEGER NOT NULL,
		evolves_to INTEGER,
		evolve_level INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS zones (
		id INTEGER PRIMARY KEY,
		name VARCHAR(50) NOT NULL
	);

	CREATE TABLE IF NOT EXISTS zone_encounters (
		zone_id INTEGER REFERENCES zones(id) ON DELETE CASCADE,
		species_id INTEGER REFERENCES species(id),
		min_level INTEGER NOT NULL,
		max_level INTEGER NOT NULL,
		weight INTEGER NOT NULL,
		PRIMARY KEY (zone_id, species_id)
	);

	CREATE TABLE IF NOT EXISTS guilds (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(50) UNIQUE NOT NULL,
		member_count INTEGER NOT NULL DEFAULT 0,
		max_members INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		CHECK (member_count >= 0 AND member_count <= max_members)
	);

	CREATE TABLE IF NOT EXISTS players (
		id BIGINT PRIMARY KEY,
		username VARCHAR(50) UNIQUE NOT NULL,
		guild_id BIGINT REFERENCES guilds(id) ON DELETE SET NULL,
		zone_id INTEGER NOT NULL,
		preferred_ball VARCHAR(16) NOT NULL DEFAULT 'pokeball',
		poke_balls INTEGER NOT NULL DEFAULT 0,
		great_balls INTEGER NOT NULL DEFAULT 0,
		ultra_balls INTEGER NOT NULL DEFAULT 0,
		money BIGINT NOT NULL DEFAULT 0,
		pokedex_count INTEGER NOT NULL DEFAULT 0,
		catch_count INTEGER NOT NULL DEFAULT 0,
		max_level INTEGER NOT NULL DEFAULT 0,
		tick_seq BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS pokemon (
		id VARCHAR(36) PRIMARY KEY,
		player_id BIGINT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
		slot INTEGER NOT NULL,
		species_id INTEGER NOT NULL,
		level INTEGER NOT NULL,
		experience BIGINT NOT NULL,
		hp INTEGER NOT NULL,
		attack INTEGER NOT NULL,
		defense INTEGER NOT NULL,
		sp_attack INTEGER NOT NULL,
		sp_defense INTEGER NOT NULL,
		speed INTEGER NOT NULL,
		last_xp_tick BIGINT NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS pokedex (
		player_id BIGINT REFERENCES players(id) ON DELETE CASCADE,
		species_id INTEGER NOT NULL,
		PRIMARY KEY (player_id, species_id)
	);

	CREATE TABLE IF NOT EXISTS guild_members (
		player_id BIGINT PRIMARY KEY REFERENCES players(id) ON DELETE CASCADE,
		guild_id BIGINT NOT NULL REFERENCES guilds(id) ON DELETE CASCADE,
		joined_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS guild_quests (
		id VARCHAR(36) PRIMARY KEY,
		guild_id BIGINT NOT NULL REFERENCES guilds(id) ON DELETE CASCADE,
		kind VARCHAR(20) NOT NULL,
		target BIGINT NOT NULL,
		progress BIGINT NOT NULL DEFAULT 0,
		completed_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS friendships (
		player_a BIGINT REFERENCES players(id) ON DELETE CASCADE,
		player_b BIGINT REFERENCES players(id) ON DELETE CASCADE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (player_a, player_b),
		CHECK (player_a < player_b)
	);

	CREATE TABLE IF NOT EXISTS blocks (
		blocker BIGINT REFERENCES players(id) ON DELETE CASCADE,
		blocked BIGINT REFERENCES players(id) ON DELETE CASCADE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (blocker, blocked)
	);

	CREATE INDEX IF NOT EXISTS idx_pokemon_player_id ON pokemon(player_id, slot);
	CREATE INDEX IF NOT EXISTS idx_guild_members_guild_id ON guild_members(guild_id);
	CREATE INDEX IF NOT EXISTS idx_guild_quests_open ON guild_quests(guild_id) WHERE completed_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_players_catch_count ON players(catch_count DESC);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := db.initTriggers(ctx); err != nil {
		return fmt.Errorf("failed to initialize triggers: %w", err)
	}

	db.log.Info("schema initialized")
	return nil
}

// initTriggers creates database triggers for automation
func (db *DB) initTriggers(ctx context.Context) error {
	triggers := `
	CREATE OR REPLACE FUNCTION update_player_timestamp()
	RETURNS TRIGGER AS $$
	BEGIN
		NEW.updated_at = CURRENT_TIMESTAMP;
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql;

	DROP TRIGGER IF EXISTS trg_update_player_timestamp ON players;
	CREATE TRIGGER trg_update_player_timestamp
		BEFORE UPDATE ON players
		FOR EACH ROW
		EXECUTE FUNCTION update_player_timestamp();
	`

	_, err := db.ExecContext(ctx, triggers)
	return err
}
