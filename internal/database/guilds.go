package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/omega-realm/pokeidle/internal/aggregate"
	"github.com/omega-realm/pokeidle/internal/models"
)

// ErrGuildNameTaken is returned when creating a guild whose name is in use
var ErrGuildNameTaken = errors.New("guild name already taken")

// GuildStore keeps guild rosters and quests. member_count only moves through
// conditional updates, so concurrent joins cannot push it past max_members.
type GuildStore struct {
	db *DB
}

var _ aggregate.GuildStore = (*GuildStore)(nil)

func NewGuildStore(db *DB) *GuildStore {
	return &GuildStore{db: db}
}

func scanGuild(row *sql.Row) (*models.Guild, error) {
	var g models.Guild
	if err := row.Scan(&g.ID, &g.Name, &g.MemberCount, &g.MaxMembers, &g.CreatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateGuild inserts an empty guild
func (s *GuildStore) CreateGuild(ctx context.Context, name string, maxMembers int) (*models.Guild, error) {
	g, err := scanGuild(s.db.QueryRowContext(ctx, `
		INSERT INTO guilds (name, max_members) VALUES ($1, $2)
		RETURNING id, name, member_count, max_members, created_at`, name, maxMembers))
	if isUniqueViolation(err) {
		return nil, ErrGuildNameTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create guild %q: %w", name, err)
	}
	return g, nil
}

func (s *GuildStore) GetGuild(ctx context.Context, guildID int64) (*models.Guild, error) {
	g, err := scanGuild(s.db.QueryRowContext(ctx,
		`SELECT id, name, member_count, max_members, created_at FROM guilds WHERE id = $1`, guildID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("guild %d: %w", guildID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load guild %d: %w", guildID, err)
	}
	return g, nil
}

// AddMember claims a seat and records the membership in one transaction
func (s *GuildStore) AddMember(ctx context.Context, guildID, playerID int64) (*models.Guild, error) {
	var g *models.Guild
	err := s.db.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		g, err = scanGuild(tx.QueryRowContext(ctx, `
			UPDATE guilds SET member_count = member_count + 1
			WHERE id = $1 AND member_count < max_members
			RETURNING id, name, member_count, max_members, created_at`, guildID))
		if errors.Is(err, sql.ErrNoRows) {
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM guilds WHERE id = $1)`, guildID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check guild %d: %w", guildID, err)
			}
			if !exists {
				return fmt.Errorf("guild %d: %w", guildID, models.ErrNotFound)
			}
			return models.ErrGuildFull
		}
		if err != nil {
			return fmt.Errorf("failed to claim seat in guild %d: %w", guildID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO guild_members (player_id, guild_id) VALUES ($1, $2)`, playerID, guildID,
		); err != nil {
			if isUniqueViolation(err) {
				return models.ErrAlreadyInGuild
			}
			return fmt.Errorf("failed to add member %d to guild %d: %w", playerID, guildID, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE players SET guild_id = $2 WHERE id = $1`, playerID, guildID); err != nil {
			return fmt.Errorf("failed to set guild of player %d: %w", playerID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (s *GuildStore) RemoveMember(ctx context.Context, guildID, playerID int64) (*models.Guild, error) {
	var g *models.Guild
	err := s.db.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM guild_members WHERE guild_id = $1 AND player_id = $2`, guildID, playerID)
		if err != nil {
			return fmt.Errorf("failed to remove member %d from guild %d: %w", playerID, guildID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return models.ErrNotInGuild
		}
		g, err = scanGuild(tx.QueryRowContext(ctx, `
			UPDATE guilds SET member_count = member_count - 1
			WHERE id = $1 AND member_count > 0
			RETURNING id, name, member_count, max_members, created_at`, guildID))
		if err != nil {
			return fmt.Errorf("failed to release seat in guild %d: %w", guildID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE players SET guild_id = NULL WHERE id = $1 AND guild_id = $2`, playerID, guildID,
		); err != nil {
			return fmt.Errorf("failed to clear guild of player %d: %w", playerID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (s *GuildStore) ActiveQuests(ctx context.Context, guildID int64) ([]models.GuildQuest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, kind, target, progress
		FROM guild_quests WHERE guild_id = $1 AND completed_at IS NULL ORDER BY id`, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to load quests of guild %d: %w", guildID, err)
	}
	defer rows.Close()

	var out []models.GuildQuest
	for rows.Next() {
		var q models.GuildQuest
		var kind string
		if err := rows.Scan(&q.ID, &q.GuildID, &kind, &q.Target, &q.Progress); err != nil {
			return nil, fmt.Errorf("failed to scan quest: %w", err)
		}
		q.Kind = models.QuestKind(kind)
		out = append(out, q)
	}
	return out, rows.Err()
}

// CompleteQuest stamps the quest once; later calls for the same quest are no-ops
func (s *GuildStore) CompleteQuest(ctx context.Context, questID string, progress int64, at time.Time) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE guild_quests SET progress = $2, completed_at = $3
		WHERE id = $1 AND completed_at IS NULL`, questID, progress, at,
	); err != nil {
		return fmt.Errorf("failed to complete quest %s: %w", questID, err)
	}
	return nil
}

func (s *GuildStore) CreateQuest(ctx context.Context, q models.GuildQuest) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_quests (id, guild_id, kind, target, progress) VALUES ($1, $2, $3, $4, $5)`,
		q.ID, q.GuildID, string(q.Kind), q.Target, q.Progress,
	); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("guild %d: %w", q.GuildID, models.ErrNotFound)
		}
		return fmt.Errorf("failed to create quest %s: %w", q.ID, err)
	}
	return nil
}
