package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omega-realm/pokeidle/internal/logging"
	"github.com/omega-realm/pokeidle/internal/models"
)

// Aggregator is the single writer path for state shared across sessions:
// leaderboard scores, guild rosters and guild quest counters.
type Aggregator struct {
	backend Backend
	guilds  GuildStore
	log     *zap.Logger
	now     func() time.Time

	// OnQuestComplete is called once per completed quest instance
	OnQuestComplete func(models.GuildQuest)
	// RenewQuests creates a fresh instance with the same target when a quest completes
	RenewQuests bool
}

func New(backend Backend, guilds GuildStore, log *zap.Logger) *Aggregator {
	return &Aggregator{
		backend:     backend,
		guilds:      guilds,
		log:         logging.OrNop(log).Named("aggregate"),
		now:         time.Now,
		RenewQuests: true,
	}
}

// Seed merges a loaded player into the shared state without lowering any score
func (a *Aggregator) Seed(ctx context.Context, state *models.PlayerState) error {
	p := state.Player
	if err := a.backend.SetNames(ctx, map[int64]string{p.ID: p.Username}); err != nil {
		return fmt.Errorf("failed to seed name: %w", err)
	}
	if _, err := a.backend.MaxScore(ctx, models.LeaderboardCatches, p.ID, int64(p.CatchCount)); err != nil {
		return fmt.Errorf("failed to seed catches: %w", err)
	}
	if _, err := a.backend.MaxScore(ctx, models.LeaderboardMaxLevel, p.ID, int64(p.MaxLevel)); err != nil {
		return fmt.Errorf("failed to seed max level: %w", err)
	}
	if _, _, err := a.backend.AddPokedex(ctx, p.ID, state.Pokedex...); err != nil {
		return fmt.Errorf("failed to seed pokedex: %w", err)
	}
	return nil
}

// RecordCatch counts one catch for the player and advances their guild's catch quests
func (a *Aggregator) RecordCatch(ctx context.Context, playerID, guildID int64) error {
	if _, err := a.backend.IncrScore(ctx, models.LeaderboardCatches, playerID, 1); err != nil {
		return fmt.Errorf("failed to record catch: %w", err)
	}
	return a.AdvanceQuests(ctx, guildID, models.QuestCatch, 1)
}

// RecordLevel max-merges the level a Pokémon reached into the player's max level.
// Concurrent calls never lower the stored value.
func (a *Aggregator) RecordLevel(ctx context.Context, playerID, guildID int64, pokemonID string, level int) error {
	best, err := a.backend.MaxScore(ctx, models.LeaderboardMaxLevel, playerID, int64(level))
	if err != nil {
		return fmt.Errorf("failed to record level of %s: %w", pokemonID, err)
	}
	if best == int64(level) {
		a.log.Debug("max level raised", zap.Int64("player", playerID), zap.String("pokemon", pokemonID), zap.Int("level", level))
	}
	return a.AdvanceQuests(ctx, guildID, models.QuestLevelUp, 1)
}

// RecordPokedexEntry set-merges a species into the player's pokedex
func (a *Aggregator) RecordPokedexEntry(ctx context.Context, playerID, guildID int64, speciesID int) error {
	added, _, err := a.backend.AddPokedex(ctx, playerID, speciesID)
	if err != nil {
		return fmt.Errorf("failed to record pokedex entry: %w", err)
	}
	if len(added) == 0 {
		return nil
	}
	return a.AdvanceQuests(ctx, guildID, models.QuestPokedex, int64(len(added)))
}

// AdvanceQuests adds delta to every active quest of kind in the guild. guildID 0 means no guild.
func (a *Aggregator) AdvanceQuests(ctx context.Context, guildID int64, kind models.QuestKind, delta int64) error {
	if guildID == 0 || delta <= 0 || a.guilds == nil {
		return nil
	}
	quests, err := a.guilds.ActiveQuests(ctx, guildID)
	if err != nil {
		return fmt.Errorf("failed to load guild quests: %w", err)
	}
	for _, q := range quests {
		if q.Kind != kind {
			continue
		}
		res, err := a.backend.IncrQuest(ctx, q.ID, delta, q.Target)
		if err != nil {
			return fmt.Errorf("failed to advance quest %s: %w", q.ID, err)
		}
		if !res.CompletedNow {
			continue
		}
		a.completeQuest(ctx, q, res.Progress)
	}
	return nil
}

func (a *Aggregator) completeQuest(ctx context.Context, q models.GuildQuest, progress int64) {
	at := a.now()
	if err := a.guilds.CompleteQuest(ctx, q.ID, progress, at); err != nil {
		a.log.Error("failed to mark quest complete", zap.String("quest", q.ID), zap.Error(err))
	}
	q.Progress = progress
	q.CompletedAt = &at
	a.log.Info("guild quest complete", zap.Int64("guild", q.GuildID), zap.String("quest", q.ID), zap.String("kind", string(q.Kind)))
	if a.OnQuestComplete != nil {
		a.OnQuestComplete(q)
	}

	if !a.RenewQuests {
		return
	}
	next := NewQuest(q.GuildID, q.Kind, q.Target)
	if err := a.guilds.CreateQuest(ctx, next); err != nil {
		a.log.Error("failed to renew quest", zap.String("quest", q.ID), zap.Error(err))
	}
}

// NewQuest returns a fresh quest instance with a unique id
func NewQuest(guildID int64, kind models.QuestKind, target int64) models.GuildQuest {
	return models.GuildQuest{ID: uuid.NewString(), GuildID: guildID, Kind: kind, Target: target}
}

// JoinGuild adds the player to the guild. The store refuses joins past max members.
func (a *Aggregator) JoinGuild(ctx context.Context, guildID, playerID int64) (*models.Guild, error) {
	g, err := a.guilds.AddMember(ctx, guildID, playerID)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (a *Aggregator) LeaveGuild(ctx context.Context, guildID, playerID int64) (*models.Guild, error) {
	g, err := a.guilds.RemoveMember(ctx, guildID, playerID)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Leaderboard returns the top entries with dense ranks: equal scores share a rank
// and the next distinct score takes the following rank.
func (a *Aggregator) Leaderboard(ctx context.Context, board models.LeaderboardType, limit int) ([]models.LeaderboardEntry, error) {
	if !models.IsValidLeaderboard(board) {
		return nil, fmt.Errorf("unknown leaderboard %q", board)
	}
	scores, err := a.backend.Top(ctx, board, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	ids := make([]int64, len(scores))
	for i, s := range scores {
		ids[i] = s.PlayerID
	}
	names, err := a.backend.Names(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get player names: %w", err)
	}
	return DenseRank(scores, names), nil
}

// Rank returns one player's entry on a board
func (a *Aggregator) Rank(ctx context.Context, board models.LeaderboardType, playerID int64) (*models.LeaderboardEntry, error) {
	score, ok, err := a.backend.Score(ctx, board, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get score: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("player %d on %s: %w", playerID, board, models.ErrNotFound)
	}
	above, err := a.backend.DistinctAbove(ctx, board, score)
	if err != nil {
		return nil, fmt.Errorf("failed to get rank: %w", err)
	}
	names, err := a.backend.Names(ctx, []int64{playerID})
	if err != nil {
		return nil, fmt.Errorf("failed to get player name: %w", err)
	}
	return &models.LeaderboardEntry{PlayerID: playerID, Username: names[playerID], Score: score, Rank: above + 1}, nil
}

// Rebuild replaces every board from persisted stats
func (a *Aggregator) Rebuild(ctx context.Context, stats []models.PlayerStats, pokedex map[int64][]int) error {
	for _, t := range models.LeaderboardTypes {
		if err := a.backend.Reset(ctx, t); err != nil {
			return fmt.Errorf("failed to reset %s: %w", t, err)
		}
	}
	names := make(map[int64]string, len(stats))
	for _, s := range stats {
		names[s.PlayerID] = s.Username
		for _, t := range []models.LeaderboardType{models.LeaderboardCatches, models.LeaderboardMaxLevel} {
			if err := a.backend.SetScore(ctx, t, s.PlayerID, int64(s.Score(t))); err != nil {
				return fmt.Errorf("failed to set %s score: %w", t, err)
			}
		}
		if species, ok := pokedex[s.PlayerID]; ok {
			if err := a.backend.ReplacePokedex(ctx, s.PlayerID, species); err != nil {
				return fmt.Errorf("failed to set pokedex: %w", err)
			}
		} else if err := a.backend.SetScore(ctx, models.LeaderboardPokedex, s.PlayerID, int64(s.PokedexCount)); err != nil {
			return fmt.Errorf("failed to set pokedex score: %w", err)
		}
	}
	if err := a.backend.SetNames(ctx, names); err != nil {
		return fmt.Errorf("failed to set names: %w", err)
	}
	a.log.Info("leaderboards rebuilt", zap.Int("players", len(stats)))
	return nil
}

// DenseRank assigns dense ranks to scores already in board order
func DenseRank(scores []Score, names map[int64]string) []models.LeaderboardEntry {
	out := make([]models.LeaderboardEntry, len(scores))
	var rank int64
	for i, s := range scores {
		if i == 0 || s.Score != scores[i-1].Score {
			rank++
		}
		out[i] = models.LeaderboardEntry{PlayerID: s.PlayerID, Username: names[s.PlayerID], Score: s.Score, Rank: rank}
	}
	return out
}
