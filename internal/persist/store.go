package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/omega-realm/pokeidle/internal/models"
)

// ErrLoadFailed is returned when seed data cannot be fetched within the retry budget
var ErrLoadFailed = errors.New("player state load failed")

// Store is the durable home of player state
type Store interface {
	LoadPlayerState(ctx context.Context, playerID int64) (*models.PlayerState, error)
	SavePlayerState(ctx context.Context, state *models.PlayerState) error
}

// Backlog holds snapshots whose saves kept failing, until a later save succeeds
type Backlog interface {
	Put(ctx context.Context, state *models.PlayerState) error
	Get(ctx context.Context, playerID int64) (*models.PlayerState, error)
	Delete(ctx context.Context, playerID int64) error
	List(ctx context.Context) ([]int64, error)
}

// RetryPolicy is a bounded exponential backoff
type RetryPolicy struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Initial: 100 * time.Millisecond, Max: 2 * time.Second}
}

func (p RetryPolicy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

// Delay returns the wait before retry number attempt (0-based)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.Initial
	for i := 0; i < attempt && d < p.Max; i++ {
		d *= 2
	}
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// LoadWithRetry loads player state, retrying transient failures. A missing player is
// not retried. When backlog holds a newer snapshot than the store it wins.
func LoadWithRetry(ctx context.Context, store Store, backlog Backlog, playerID int64, p RetryPolicy) (*models.PlayerState, error) {
	var lastErr error
	for attempt := 0; attempt < p.attempts(); attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, p.Delay(attempt-1)); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
			}
		}
		state, err := store.LoadPlayerState(ctx, playerID)
		if err == nil {
			return preferBacklog(ctx, backlog, state), nil
		}
		lastErr = err
		if errors.Is(err, models.ErrNotFound) {
			break
		}
	}
	return nil, fmt.Errorf("%w: player %d: %w", ErrLoadFailed, playerID, lastErr)
}

func preferBacklog(ctx context.Context, backlog Backlog, state *models.PlayerState) *models.PlayerState {
	if backlog == nil {
		return state
	}
	pending, err := backlog.Get(ctx, state.Player.ID)
	if err != nil || pending == nil {
		return state
	}
	if pending.Player.TickSeq > state.Player.TickSeq {
		return pending
	}
	return state
}
