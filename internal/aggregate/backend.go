package aggregate

import (
	"context"
	"time"

	"github.com/omega-realm/pokeidle/internal/models"
)

// Score is one raw leaderboard member
type Score struct {
	PlayerID int64
	Score    int64
}

// QuestProgress is the result of one quest counter increment
type QuestProgress struct {
	Progress int64
	// CompletedNow is true for exactly one increment per quest id: the one that
	// first took progress to or past the target.
	CompletedNow bool
}

// Backend holds the shared counters. Every method must be atomic with respect to
// concurrent callers on the same key.
type Backend interface {
	IncrScore(ctx context.Context, board models.LeaderboardType, playerID, delta int64) (int64, error)
	// MaxScore sets the score to max(current, score) and returns the result
	MaxScore(ctx context.Context, board models.LeaderboardType, playerID, score int64) (int64, error)
	SetScore(ctx context.Context, board models.LeaderboardType, playerID, score int64) error
	Score(ctx context.Context, board models.LeaderboardType, playerID int64) (int64, bool, error)
	// Top returns up to limit members ordered by score descending, then player id ascending
	Top(ctx context.Context, board models.LeaderboardType, limit int) ([]Score, error)
	// DistinctAbove counts the distinct scores strictly greater than score
	DistinctAbove(ctx context.Context, board models.LeaderboardType, score int64) (int64, error)
	Reset(ctx context.Context, board models.LeaderboardType) error

	// AddPokedex adds species to the player's pokedex set and keeps the pokedex board
	// equal to the set size. It returns the species that were new.
	AddPokedex(ctx context.Context, playerID int64, speciesIDs ...int) ([]int, int64, error)
	ReplacePokedex(ctx context.Context, playerID int64, speciesIDs []int) error

	SetNames(ctx context.Context, names map[int64]string) error
	Names(ctx context.Context, ids []int64) (map[int64]string, error)

	IncrQuest(ctx context.Context, questID string, delta, target int64) (QuestProgress, error)
}

// GuildStore owns guild rosters and quest instances. AddMember must refuse to go
// past MaxMembers even under concurrent joins.
type GuildStore interface {
	GetGuild(ctx context.Context, guildID int64) (*models.Guild, error)
	AddMember(ctx context.Context, guildID, playerID int64) (*models.Guild, error)
	RemoveMember(ctx context.Context, guildID, playerID int64) (*models.Guild, error)
	ActiveQuests(ctx context.Context, guildID int64) ([]models.GuildQuest, error)
	CompleteQuest(ctx context.Context, questID string, progress int64, at time.Time) error
	CreateQuest(ctx context.Context, q models.GuildQuest) error
}
