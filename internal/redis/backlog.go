package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/omega-realm/pokeidle/internal/models"
	"github.com/omega-realm/pokeidle/internal/persist"
)

// Backlog keeps msgpack snapshots of player state whose saves kept failing. They
// are replayed to the store once it recovers, and preferred over older store rows
// when a player reconnects in the meantime.
type Backlog struct {
	c      *Client
	prefix string
}

var _ persist.Backlog = (*Backlog)(nil)

func NewBacklog(c *Client, prefix string) *Backlog {
	return &Backlog{c: c, prefix: prefix}
}

func (b *Backlog) indexKey() string { return b.prefix + "save_backlog" }

func (b *Backlog) key(id int64) string { return b.prefix + "save_backlog:" + member(id) }

func (b *Backlog) Put(ctx context.Context, state *models.PlayerState) error {
	data, err := msgpack.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	id := state.Player.ID
	_, err = b.c.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, b.key(id), data, 0)
		pipe.SAdd(ctx, b.indexKey(), member(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store snapshot for player %d: %w", id, err)
	}
	b.c.log.Warn("snapshot parked in backlog", zap.Int64("player", id), zap.Uint64("tick_seq", state.Player.TickSeq))
	return nil
}

func (b *Backlog) Get(ctx context.Context, playerID int64) (*models.PlayerState, error) {
	data, err := b.c.Get(ctx, b.key(playerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot for player %d: %w", playerID, err)
	}
	var state models.PlayerState
	if err := msgpack.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for player %d: %w", playerID, err)
	}
	return &state, nil
}

func (b *Backlog) Delete(ctx context.Context, playerID int64) error {
	_, err := b.c.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.key(playerID))
		pipe.SRem(ctx, b.indexKey(), member(playerID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete snapshot for player %d: %w", playerID, err)
	}
	return nil
}

func (b *Backlog) List(ctx context.Context) ([]int64, error) {
	members, err := b.c.SMembers(ctx, b.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list backlog: %w", err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}
