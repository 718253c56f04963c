package persist

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/omega-realm/pokeidle/internal/logging"
	"github.com/omega-realm/pokeidle/internal/models"
)

var ErrSaverClosed = errors.New("saver closed")

type SaverConfig struct {
	Workers int
	Retry   RetryPolicy
}

// Saver writes player snapshots in the background. Enqueuing a player that already
// has a queued snapshot replaces it, snapshots older than one already accepted are
// dropped, and saves for one player never overlap, so the store always ends with
// the newest snapshot.
type Saver struct {
	store   Store
	backlog Backlog
	cfg     SaverConfig
	log     *zap.Logger

	// OnDegraded is called when a snapshot exhausted its retries
	OnDegraded func(playerID int64, err error)
	// OnRecovered is called when a player that was degraded saves again
	OnRecovered func(playerID int64)

	mu       sync.Mutex
	pending  map[int64]*models.PlayerState
	order    []int64
	inflight map[int64]bool
	degraded map[int64]bool
	// newest is the highest tick seq accepted per player
	newest map[int64]uint64
	closed   bool

	notify chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewSaver creates a saver. backlog may be nil.
func NewSaver(store Store, backlog Backlog, cfg SaverConfig, log *zap.Logger) *Saver {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Saver{
		store:    store,
		backlog:  backlog,
		cfg:      cfg,
		log:      logging.OrNop(log).Named("saver"),
		pending:  make(map[int64]*models.PlayerState),
		inflight: make(map[int64]bool),
		degraded: make(map[int64]bool),
		newest:   make(map[int64]uint64),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start launches the worker pool
func (s *Saver) Start(ctx context.Context) {
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
}

// Enqueue schedules a save of a copy of state
func (s *Saver) Enqueue(state *models.PlayerState) error {
	snap := state.Clone()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSaverClosed
	}
	id := snap.Player.ID
	if s.stale(snap) {
		s.mu.Unlock()
		return nil
	}
	if _, queued := s.pending[id]; !queued {
		s.order = append(s.order, id)
	}
	s.pending[id] = snap
	s.mu.Unlock()
	s.wake()
	return nil
}

// stale reports whether a newer snapshot of the same player was already accepted,
// and records snap as the newest otherwise. Equal tick seqs are accepted since
// inbound messages change state between ticks. Called with mu held.
func (s *Saver) stale(snap *models.PlayerState) bool {
	id, seq := snap.Player.ID, snap.Player.TickSeq
	if newest, ok := s.newest[id]; ok && seq < newest {
		s.log.Debug("dropping older snapshot", zap.Int64("player", id), zap.Uint64("tick_seq", seq), zap.Uint64("newest", newest))
		return true
	}
	s.newest[id] = seq
	return false
}

// SaveNow saves synchronously with retries, bypassing the queue. It waits for a
// running save of the same player, replaces a queued snapshot and is a no-op when a
// newer snapshot was already accepted.
func (s *Saver) SaveNow(ctx context.Context, state *models.PlayerState) error {
	snap := state.Clone()
	id := snap.Player.ID
	for {
		s.mu.Lock()
		if !s.inflight[id] {
			if s.stale(snap) {
				s.mu.Unlock()
				return nil
			}
			s.inflight[id] = true
			delete(s.pending, id)
			s.mu.Unlock()
			break
		}
		s.mu.Unlock()
		if err := sleep(ctx, 5*time.Millisecond); err != nil {
			return err
		}
	}
	err := s.save(ctx, snap)
	s.finish(id)
	return err
}

// Degraded reports whether the player's last save exhausted its retries
func (s *Saver) Degraded(playerID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded[playerID]
}

// Pending returns the number of queued or running saves
func (s *Saver) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) + len(s.inflight)
}

func (s *Saver) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Saver) next() (*models.PlayerState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < len(s.order); {
		id := s.order[i]
		if s.inflight[id] {
			i++
			continue
		}
		s.order = append(s.order[:i], s.order[i+1:]...)
		snap, ok := s.pending[id]
		if !ok {
			// taken by SaveNow
			continue
		}
		delete(s.pending, id)
		s.inflight[id] = true
		return snap, true
	}
	return nil, false
}

func (s *Saver) finish(id int64) {
	s.mu.Lock()
	delete(s.inflight, id)
	_, again := s.pending[id]
	s.mu.Unlock()
	if again {
		s.wake()
	}
}

func (s *Saver) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		snap, ok := s.next()
		if !ok {
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}
		// keep other idle workers moving through the queue
		s.wake()
		if err := s.save(ctx, snap); err != nil {
			s.log.Warn("save failed", zap.Int64("player", snap.Player.ID), zap.Error(err))
		}
		s.finish(snap.Player.ID)
	}
}

func (s *Saver) save(ctx context.Context, snap *models.PlayerState) error {
	id := snap.Player.ID
	var err error
	for attempt := 0; attempt < s.cfg.Retry.attempts(); attempt++ {
		if attempt > 0 {
			if serr := sleep(ctx, s.cfg.Retry.Delay(attempt-1)); serr != nil {
				err = serr
				break
			}
		}
		if err = s.store.SavePlayerState(ctx, snap); err == nil {
			s.recovered(ctx, id)
			return nil
		}
	}
	s.degrade(id, snap, err)
	return err
}

func (s *Saver) recovered(ctx context.Context, id int64) {
	s.mu.Lock()
	was := s.degraded[id]
	delete(s.degraded, id)
	s.mu.Unlock()
	if !was {
		return
	}
	if s.backlog != nil {
		if err := s.backlog.Delete(ctx, id); err != nil {
			s.log.Warn("failed to clear backlog", zap.Int64("player", id), zap.Error(err))
		}
	}
	s.log.Info("saves recovered", zap.Int64("player", id))
	if s.OnRecovered != nil {
		s.OnRecovered(id)
	}
}

func (s *Saver) degrade(id int64, snap *models.PlayerState, err error) {
	s.mu.Lock()
	s.degraded[id] = true
	s.mu.Unlock()

	if s.backlog != nil {
		// the backlog write must outlive a cancelled save context
		bctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if berr := s.backlog.Put(bctx, snap); berr != nil {
			s.log.Error("failed to write backlog", zap.Int64("player", id), zap.Error(berr))
		}
		cancel()
	}
	s.log.Error("player state degraded", zap.Int64("player", id), zap.Uint64("tick_seq", snap.Player.TickSeq), zap.Error(err))
	if s.OnDegraded != nil {
		s.OnDegraded(id, err)
	}
}

// ReplayBacklog queues every backlog snapshot for another save attempt
func (s *Saver) ReplayBacklog(ctx context.Context) (int, error) {
	if s.backlog == nil {
		return 0, nil
	}
	ids, err := s.backlog.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		snap, err := s.backlog.Get(ctx, id)
		if err != nil {
			s.log.Warn("failed to read backlog entry", zap.Int64("player", id), zap.Error(err))
			continue
		}
		s.mu.Lock()
		s.degraded[id] = true
		s.mu.Unlock()
		if err := s.Enqueue(snap); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Close stops accepting snapshots, waits for queued saves until ctx is done, then
// stops the workers. Snapshots still queued when ctx expires go to the backlog.
func (s *Saver) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	var err error
wait:
	for s.Pending() > 0 {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break wait
		case <-ticker.C:
			s.wake()
		}
	}
	close(s.done)
	s.wg.Wait()

	if err != nil {
		s.spill()
	}
	return err
}

func (s *Saver) spill() {
	s.mu.Lock()
	left := make([]*models.PlayerState, 0, len(s.pending))
	for _, snap := range s.pending {
		left = append(left, snap)
	}
	s.pending = make(map[int64]*models.PlayerState)
	s.order = nil
	s.mu.Unlock()

	for _, snap := range left {
		if s.backlog == nil {
			s.log.Error("dropping unsaved state", zap.Int64("player", snap.Player.ID))
			continue
		}
		bctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := s.backlog.Put(bctx, snap); err != nil {
			s.log.Error("failed to spill state to backlog", zap.Int64("player", snap.Player.ID), zap.Error(err))
		}
		cancel()
	}
}
