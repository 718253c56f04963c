package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/omega-realm/pokeidle/internal/aggregate"
	"github.com/omega-realm/pokeidle/internal/models"
)

// maxScoreScript sets the member to max(current, ARGV[2]) and returns the result
var maxScoreScript = redis.NewScript(`
local cur = redis.call('ZSCORE', KEYS[1], ARGV[1])
local want = tonumber(ARGV[2])
if cur == false or tonumber(cur) < want then
	redis.call('ZADD', KEYS[1], want, ARGV[1])
	return want
end
return tonumber(cur)
`)

// addPokedexScript adds species to the player's set, mirrors the set size into the
// pokedex board and returns {size, added...}
var addPokedexScript = redis.NewScript(`
local added = {}
for i = 2, #ARGV do
	if redis.call('SADD', KEYS[1], ARGV[i]) == 1 then
		table.insert(added, tonumber(ARGV[i]))
	end
end
local size = redis.call('SCARD', KEYS[1])
redis.call('ZADD', KEYS[2], size, ARGV[1])
local out = {size}
for _, id in ipairs(added) do
	table.insert(out, id)
end
return out
`)

// incrQuestScript bumps a quest counter and reports completion once per quest
var incrQuestScript = redis.NewScript(`
local p = redis.call('HINCRBY', KEYS[1], 'progress', ARGV[1])
if p >= tonumber(ARGV[2]) and redis.call('HSETNX', KEYS[1], 'done', 1) == 1 then
	return {p, 1}
end
return {p, 0}
`)

// AggregateBackend keeps leaderboards, pokedex sets and quest counters in Redis so
// that several hub processes share them
type AggregateBackend struct {
	c      *Client
	prefix string
}

var _ aggregate.Backend = (*AggregateBackend)(nil)

func NewAggregateBackend(c *Client, prefix string) *AggregateBackend {
	return &AggregateBackend{c: c, prefix: prefix}
}

func (b *AggregateBackend) boardKey(t models.LeaderboardType) (string, error) {
	if !models.IsValidLeaderboard(t) {
		return "", fmt.Errorf("unknown leaderboard %q: %w", t, models.ErrNotFound)
	}
	return b.prefix + "leaderboard:" + string(t), nil
}

func (b *AggregateBackend) pokedexKey(playerID int64) string {
	return b.prefix + "pokedex:" + member(playerID)
}

func (b *AggregateBackend) namesKey() string { return b.prefix + "player_names" }

func (b *AggregateBackend) questKey(id string) string { return b.prefix + "quest:" + id }

func member(id int64) string { return strconv.FormatInt(id, 10) }

func (b *AggregateBackend) IncrScore(ctx context.Context, t models.LeaderboardType, playerID, delta int64) (int64, error) {
	key, err := b.boardKey(t)
	if err != nil {
		return 0, err
	}
	score, err := b.c.ZIncrBy(ctx, key, float64(delta), member(playerID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s score: %w", t, err)
	}
	return int64(score), nil
}

func (b *AggregateBackend) MaxScore(ctx context.Context, t models.LeaderboardType, playerID, score int64) (int64, error) {
	key, err := b.boardKey(t)
	if err != nil {
		return 0, err
	}
	res, err := maxScoreScript.Run(ctx, b.c, []string{key}, member(playerID), score).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to merge %s score: %w", t, err)
	}
	return res, nil
}

func (b *AggregateBackend) SetScore(ctx context.Context, t models.LeaderboardType, playerID, score int64) error {
	key, err := b.boardKey(t)
	if err != nil {
		return err
	}
	if err := b.c.ZAdd(ctx, key, redis.Z{Score: float64(score), Member: member(playerID)}).Err(); err != nil {
		return fmt.Errorf("failed to set %s score: %w", t, err)
	}
	return nil
}

func (b *AggregateBackend) Score(ctx context.Context, t models.LeaderboardType, playerID int64) (int64, bool, error) {
	key, err := b.boardKey(t)
	if err != nil {
		return 0, false, err
	}
	score, err := b.c.ZScore(ctx, key, member(playerID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get %s score: %w", t, err)
	}
	return int64(score), true, nil
}

// Top reads the first limit members, then widens to every member tied with the
// last one so that ties can be ordered by player id
func (b *AggregateBackend) Top(ctx context.Context, t models.LeaderboardType, limit int) ([]aggregate.Score, error) {
	key, err := b.boardKey(t)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	head, err := b.c.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get top %s players: %w", t, err)
	}
	if len(head) == 0 {
		return nil, nil
	}
	floor := head[len(head)-1].Score
	all, err := b.c.ZRevRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatFloat(floor, 'f', -1, 64),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get top %s players: %w", t, err)
	}

	out := make([]aggregate.Score, 0, len(all))
	for _, z := range all {
		id, err := parseMember(z.Member)
		if err != nil {
			return nil, err
		}
		out = append(out, aggregate.Score{PlayerID: id, Score: int64(z.Score)})
	}
	aggregate.SortScores(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (b *AggregateBackend) DistinctAbove(ctx context.Context, t models.LeaderboardType, score int64) (int64, error) {
	key, err := b.boardKey(t)
	if err != nil {
		return 0, err
	}
	zs, err := b.c.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(score, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count %s scores: %w", t, err)
	}
	var distinct int64
	for i, z := range zs {
		if i == 0 || z.Score != zs[i-1].Score {
			distinct++
		}
	}
	return distinct, nil
}

func (b *AggregateBackend) Reset(ctx context.Context, t models.LeaderboardType) error {
	key, err := b.boardKey(t)
	if err != nil {
		return err
	}
	if err := b.c.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to reset %s: %w", t, err)
	}
	if t != models.LeaderboardPokedex {
		return nil
	}
	iter := b.c.Scan(ctx, 0, b.prefix+"pokedex:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := b.c.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to reset pokedex sets: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan pokedex sets: %w", err)
	}
	return nil
}

func (b *AggregateBackend) AddPokedex(ctx context.Context, playerID int64, speciesIDs ...int) ([]int, int64, error) {
	board, _ := b.boardKey(models.LeaderboardPokedex)
	args := make([]any, 0, len(speciesIDs)+1)
	args = append(args, member(playerID))
	for _, id := range speciesIDs {
		args = append(args, id)
	}
	res, err := addPokedexScript.Run(ctx, b.c, []string{b.pokedexKey(playerID), board}, args...).Int64Slice()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to add pokedex entries: %w", err)
	}
	if len(res) == 0 {
		return nil, 0, fmt.Errorf("failed to add pokedex entries: empty reply")
	}
	var added []int
	for _, id := range res[1:] {
		added = append(added, int(id))
	}
	return added, res[0], nil
}

func (b *AggregateBackend) ReplacePokedex(ctx context.Context, playerID int64, speciesIDs []int) error {
	board, _ := b.boardKey(models.LeaderboardPokedex)
	key := b.pokedexKey(playerID)
	members := make([]any, 0, len(speciesIDs))
	seen := make(map[int]struct{}, len(speciesIDs))
	for _, id := range speciesIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}

	_, err := b.c.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(members) > 0 {
			pipe.SAdd(ctx, key, members...)
		}
		pipe.ZAdd(ctx, board, redis.Z{Score: float64(len(members)), Member: member(playerID)})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace pokedex: %w", err)
	}
	return nil
}

func (b *AggregateBackend) SetNames(ctx context.Context, names map[int64]string) error {
	if len(names) == 0 {
		return nil
	}
	values := make(map[string]any, len(names))
	for id, n := range names {
		values[member(id)] = n
	}
	if err := b.c.HSet(ctx, b.namesKey(), values).Err(); err != nil {
		return fmt.Errorf("failed to set player names: %w", err)
	}
	return nil
}

func (b *AggregateBackend) Names(ctx context.Context, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	fields := make([]string, len(ids))
	for i, id := range ids {
		fields[i] = member(id)
	}
	vals, err := b.c.HMGet(ctx, b.namesKey(), fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get player names: %w", err)
	}
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[ids[i]] = s
		}
	}
	return out, nil
}

func (b *AggregateBackend) IncrQuest(ctx context.Context, questID string, delta, target int64) (aggregate.QuestProgress, error) {
	res, err := incrQuestScript.Run(ctx, b.c, []string{b.questKey(questID)}, delta, target).Int64Slice()
	if err != nil {
		return aggregate.QuestProgress{}, fmt.Errorf("failed to advance quest %s: %w", questID, err)
	}
	if len(res) != 2 {
		return aggregate.QuestProgress{}, fmt.Errorf("failed to advance quest %s: unexpected reply %v", questID, res)
	}
	return aggregate.QuestProgress{Progress: res[0], CompletedNow: res[1] == 1}, nil
}

func parseMember(m any) (int64, error) {
	s, ok := m.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected leaderboard member %v", m)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse leaderboard member %q: %w", s, err)
	}
	return id, nil
}
