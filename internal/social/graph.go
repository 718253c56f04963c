package social

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrSelf           = errors.New("cannot target yourself")
	ErrAlreadyFriends = errors.New("already friends")
	ErrNoRequest      = errors.New("no pending friend request")
	ErrBlocked        = errors.New("blocked")
)

// Store persists the durable half of the graph. Pending requests live in memory only.
type Store interface {
	AddFriendship(ctx context.Context, a, b int64) error
	RemoveFriendship(ctx context.Context, a, b int64) error
	AddBlock(ctx context.Context, blocker, blocked int64) error
	RemoveBlock(ctx context.Context, blocker, blocked int64) error
}

type pair struct{ a, b int64 }

func ordered(a, b int64) pair {
	if a > b {
		a, b = b, a
	}
	return pair{a, b}
}

// Graph holds friendships, pending requests and blocks
type Graph struct {
	mu       sync.RWMutex
	store    Store
	friends  map[pair]struct{}
	requests map[pair]struct{} // from -> to, directional
	blocks   map[pair]struct{} // blocker -> blocked, directional
}

// NewGraph creates a graph. store may be nil for a memory-only graph.
func NewGraph(store Store) *Graph {
	return &Graph{
		store:    store,
		friends:  make(map[pair]struct{}),
		requests: make(map[pair]struct{}),
		blocks:   make(map[pair]struct{}),
	}
}

// Seed loads persisted friendships and blocks
func (g *Graph) Seed(friendships, blocks [][2]int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, f := range friendships {
		g.friends[ordered(f[0], f[1])] = struct{}{}
	}
	for _, b := range blocks {
		g.blocks[pair{b[0], b[1]}] = struct{}{}
	}
}

func (g *Graph) blockedLocked(a, b int64) bool {
	_, ab := g.blocks[pair{a, b}]
	_, ba := g.blocks[pair{b, a}]
	return ab || ba
}

func (g *Graph) addFriendLocked(ctx context.Context, a, b int64) error {
	if g.store != nil {
		if err := g.store.AddFriendship(ctx, a, b); err != nil {
			return fmt.Errorf("failed to save friendship: %w", err)
		}
	}
	g.friends[ordered(a, b)] = struct{}{}
	delete(g.requests, pair{a, b})
	delete(g.requests, pair{b, a})
	return nil
}

// Request sends a friend request. A crossing request from the target is accepted
// immediately, in which case accepted is true.
func (g *Graph) Request(ctx context.Context, from, to int64) (accepted bool, err error) {
	if from == to {
		return false, ErrSelf
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.blockedLocked(from, to) {
		return false, ErrBlocked
	}
	if _, ok := g.friends[ordered(from, to)]; ok {
		return false, ErrAlreadyFriends
	}
	if _, ok := g.requests[pair{to, from}]; ok {
		if err := g.addFriendLocked(ctx, from, to); err != nil {
			return false, err
		}
		return true, nil
	}
	g.requests[pair{from, to}] = struct{}{}
	return false, nil
}

// Accept turns requester's pending request to player into a friendship
func (g *Graph) Accept(ctx context.Context, player, requester int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.requests[pair{requester, player}]; !ok {
		return ErrNoRequest
	}
	if g.blockedLocked(player, requester) {
		delete(g.requests, pair{requester, player})
		return ErrBlocked
	}
	return g.addFriendLocked(ctx, player, requester)
}

// Cancel withdraws or declines a pending request between the two players, or ends
// an existing friendship.
func (g *Graph) Cancel(ctx context.Context, player, other int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := ordered(player, other)
	if _, ok := g.friends[key]; ok {
		if g.store != nil {
			if err := g.store.RemoveFriendship(ctx, player, other); err != nil {
				return fmt.Errorf("failed to remove friendship: %w", err)
			}
		}
		delete(g.friends, key)
		return nil
	}

	_, out := g.requests[pair{player, other}]
	_, in := g.requests[pair{other, player}]
	if !out && !in {
		return ErrNoRequest
	}
	delete(g.requests, pair{player, other})
	delete(g.requests, pair{other, player})
	return nil
}

// Block records that blocker blocks blocked. Any friendship or pending request between them is removed.
func (g *Graph) Block(ctx context.Context, blocker, blocked int64) error {
	if blocker == blocked {
		return ErrSelf
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.store != nil {
		if err := g.store.AddBlock(ctx, blocker, blocked); err != nil {
			return fmt.Errorf("failed to save block: %w", err)
		}
		if _, ok := g.friends[ordered(blocker, blocked)]; ok {
			if err := g.store.RemoveFriendship(ctx, blocker, blocked); err != nil {
				return fmt.Errorf("failed to remove friendship: %w", err)
			}
		}
	}
	g.blocks[pair{blocker, blocked}] = struct{}{}
	delete(g.friends, ordered(blocker, blocked))
	delete(g.requests, pair{blocker, blocked})
	delete(g.requests, pair{blocked, blocker})
	return nil
}

func (g *Graph) Unblock(ctx context.Context, blocker, blocked int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.blocks[pair{blocker, blocked}]; !ok {
		return nil
	}
	if g.store != nil {
		if err := g.store.RemoveBlock(ctx, blocker, blocked); err != nil {
			return fmt.Errorf("failed to remove block: %w", err)
		}
	}
	delete(g.blocks, pair{blocker, blocked})
	return nil
}

// IsBlocked reports whether either player has blocked the other
func (g *Graph) IsBlocked(a, b int64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.blockedLocked(a, b)
}

func (g *Graph) AreFriends(a, b int64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.friends[ordered(a, b)]
	return ok
}

// Friends returns the player's friends in ascending id order
func (g *Graph) Friends(player int64) []int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []int64
	for p := range g.friends {
		switch player {
		case p.a:
			out = append(out, p.b)
		case p.b:
			out = append(out, p.a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PendingFor returns the ids that have an open request to player
func (g *Graph) PendingFor(player int64) []int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []int64
	for p := range g.requests {
		if p.b == player {
			out = append(out, p.a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
