package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/omega-realm/pokeidle/internal/social"
)

// SocialStore persists friendships and blocks. Friendships are stored once per
// unordered pair with the smaller id first.
type SocialStore struct {
	db *DB
}

var _ social.Store = (*SocialStore)(nil)

func NewSocialStore(db *DB) *SocialStore {
	return &SocialStore{db: db}
}

func orderedPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

func (s *SocialStore) AddFriendship(ctx context.Context, a, b int64) error {
	lo, hi := orderedPair(a, b)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO friendships (player_a, player_b) VALUES ($1, $2) ON CONFLICT DO NOTHING`, lo, hi,
	); err != nil {
		return fmt.Errorf("failed to add friendship %d-%d: %w", lo, hi, err)
	}
	return nil
}

func (s *SocialStore) RemoveFriendship(ctx context.Context, a, b int64) error {
	lo, hi := orderedPair(a, b)
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM friendships WHERE player_a = $1 AND player_b = $2`, lo, hi,
	); err != nil {
		return fmt.Errorf("failed to remove friendship %d-%d: %w", lo, hi, err)
	}
	return nil
}

// AddBlock records the block and drops any friendship between the two players
func (s *SocialStore) AddBlock(ctx context.Context, blocker, blocked int64) error {
	lo, hi := orderedPair(blocker, blocked)
	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO blocks (blocker, blocked) VALUES ($1, $2) ON CONFLICT DO NOTHING`, blocker, blocked,
		); err != nil {
			return fmt.Errorf("failed to add block %d->%d: %w", blocker, blocked, err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM friendships WHERE player_a = $1 AND player_b = $2`, lo, hi,
		); err != nil {
			return fmt.Errorf("failed to drop friendship %d-%d: %w", lo, hi, err)
		}
		return nil
	})
}

func (s *SocialStore) RemoveBlock(ctx context.Context, blocker, blocked int64) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM blocks WHERE blocker = $1 AND blocked = $2`, blocker, blocked,
	); err != nil {
		return fmt.Errorf("failed to remove block %d->%d: %w", blocker, blocked, err)
	}
	return nil
}

// LoadGraph reads every friendship and block, in the shape social.Graph.Seed takes
func (s *SocialStore) LoadGraph(ctx context.Context) (friendships, blocks [][2]int64, err error) {
	friendships, err = s.pairs(ctx, `SELECT player_a, player_b FROM friendships`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load friendships: %w", err)
	}
	blocks, err = s.pairs(ctx, `SELECT blocker, blocked FROM blocks`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load blocks: %w", err)
	}
	return friendships, blocks, nil
}

func (s *SocialStore) pairs(ctx context.Context, query string) ([][2]int64, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][2]int64
	for rows.Next() {
		var p [2]int64
		if err := rows.Scan(&p[0], &p[1]); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
