package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/omega-realm/pokeidle/internal/hub"
)

// Presence mirrors the hub's online players into Redis. Each player has a key with a
// TTL so that a crashed process does not leave players online forever; the online
// set is the index used for counts.
type Presence struct {
	c      *Client
	prefix string
	ttl    time.Duration
}

var _ hub.Presence = (*Presence)(nil)

func NewPresence(c *Client, prefix string, ttl time.Duration) *Presence {
	return &Presence{c: c, prefix: prefix, ttl: ttl}
}

func (p *Presence) setKey() string { return p.prefix + "online_players" }

func (p *Presence) playerKey(id int64) string { return p.prefix + "online:" + member(id) }

// SetOnline marks the player online
func (p *Presence) SetOnline(ctx context.Context, playerID int64) error {
	_, err := p.c.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, p.playerKey(playerID), time.Now().UTC().Unix(), p.ttl)
		pipe.SAdd(ctx, p.setKey(), member(playerID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set player online: %w", err)
	}
	return nil
}

// SetOffline removes the player from the online set
func (p *Presence) SetOffline(ctx context.Context, playerID int64) error {
	_, err := p.c.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, p.playerKey(playerID))
		pipe.SRem(ctx, p.setKey(), member(playerID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set player offline: %w", err)
	}
	return nil
}

// Refresh extends the TTL of every player in ids
func (p *Presence) Refresh(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	pipe := p.c.Pipeline()
	for _, id := range ids {
		pipe.Set(ctx, p.playerKey(id), time.Now().UTC().Unix(), p.ttl)
		pipe.SAdd(ctx, p.setKey(), member(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to refresh presence: %w", err)
	}
	return nil
}

// Online returns the players whose presence key is still alive. Set members whose
// key expired are pruned.
func (p *Presence) Online(ctx context.Context) ([]int64, error) {
	members, err := p.c.SMembers(ctx, p.setKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list online players: %w", err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		exists, err := p.c.Exists(ctx, p.playerKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check presence of %d: %w", id, err)
		}
		if exists == 0 {
			p.c.SRem(ctx, p.setKey(), m)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Count returns the size of the online set
func (p *Presence) Count(ctx context.Context) (int64, error) {
	count, err := p.c.SCard(ctx, p.setKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get online count: %w", err)
	}
	return count, nil
}
