package aggregate

import (
	"context"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/omega-realm/pokeidle/internal/models"
)

// PublishFunc receives a recomputed leaderboard
type PublishFunc func(board models.LeaderboardType, entries []models.LeaderboardEntry)

// RunLeaderboards recomputes every board on each interval and publishes the ones
// that changed since the last publish. It returns when ctx is done.
func (a *Aggregator) RunLeaderboards(ctx context.Context, interval time.Duration, limit int, publish PublishFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := make(map[models.LeaderboardType][]models.LeaderboardEntry)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.publishChanged(ctx, limit, last, publish)
		}
	}
}

func (a *Aggregator) publishChanged(ctx context.Context, limit int, last map[models.LeaderboardType][]models.LeaderboardEntry, publish PublishFunc) {
	for _, board := range models.LeaderboardTypes {
		entries, err := a.Leaderboard(ctx, board, limit)
		if err != nil {
			a.log.Warn("leaderboard recompute failed", zap.String("board", string(board)), zap.Error(err))
			continue
		}
		if prev, ok := last[board]; ok && reflect.DeepEqual(prev, entries) {
			continue
		}
		last[board] = entries
		publish(board, entries)
	}
}
