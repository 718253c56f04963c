package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/omega-realm/pokeidle/internal/aggregate"
	"github.com/omega-realm/pokeidle/internal/game"
	"github.com/omega-realm/pokeidle/internal/logging"
	"github.com/omega-realm/pokeidle/internal/models"
	"github.com/omega-realm/pokeidle/internal/persist"
	"github.com/omega-realm/pokeidle/internal/protocol"
	"github.com/omega-realm/pokeidle/internal/social"
)

var (
	// ErrAlreadyConnected is returned while another connect for the same player is still loading
	ErrAlreadyConnected = errors.New("player is already connecting")
	ErrSessionNotFound  = errors.New("session not found")
	ErrRecipientBlocked = errors.New("recipient blocked")
	ErrHubClosed        = errors.New("hub closed")
	ErrTickInFlight     = errors.New("tick already in flight")
	ErrSuspended        = errors.New("session suspended")
	ErrTickPanic        = errors.New("tick panicked")
	// ErrSlowConsumer is returned by a Conn whose outbound buffer is full
	ErrSlowConsumer = errors.New("slow consumer")
)

// Conn is the outbound half of a client connection. Send must not block.
type Conn interface {
	Send(msg []byte) error
	Close() error
}

// Presence mirrors which players are online into a shared store
type Presence interface {
	SetOnline(ctx context.Context, playerID int64) error
	SetOffline(ctx context.Context, playerID int64) error
}

type Config struct {
	TickInterval     time.Duration
	GracePeriod      time.Duration
	InboxSize        int
	SaveEveryTicks   int
	LoadRetry        persist.RetryPolicy
	ShutdownSave     time.Duration
	ChatPerSecond    float64
	ChatBurst        int
	MaxChatLength    int
	RareCatchRate    int
	LevelMilestone   int
	BoardInterval    time.Duration
	BoardLimit       int
	AggregateTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		TickInterval:     5 * time.Second,
		GracePeriod:      30 * time.Second,
		InboxSize:        64,
		SaveEveryTicks:   6,
		LoadRetry:        persist.DefaultRetryPolicy(),
		ShutdownSave:     5 * time.Second,
		ChatPerSecond:    1,
		ChatBurst:        3,
		MaxChatLength:    280,
		RareCatchRate:    45,
		LevelMilestone:   10,
		BoardInterval:    10 * time.Second,
		BoardLimit:       20,
		AggregateTimeout: 2 * time.Second,
	}
}

// Deps are the collaborators a hub drives. Backlog and Presence may be nil.
type Deps struct {
	Engine     *game.Engine
	Store      persist.Store
	Backlog    persist.Backlog
	Saver      *persist.Saver
	Aggregator *aggregate.Aggregator
	Social     *social.Graph
	Presence   Presence
	Logger     *zap.Logger
}

// Hub is the single owner of the player -> session mapping
type Hub struct {
	cfg      Config
	engine   *game.Engine
	store    persist.Store
	backlog  persist.Backlog
	saver    *persist.Saver
	agg      *aggregate.Aggregator
	graph    *social.Graph
	presence Presence
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	sessions map[int64]*Session
	loading  map[int64]struct{}
	flushing map[int64]chan struct{}
	closed   bool
}

func New(cfg Config, deps Deps) *Hub {
	if cfg.InboxSize < 1 {
		cfg.InboxSize = 1
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		cfg:      cfg,
		engine:   deps.Engine,
		store:    deps.Store,
		backlog:  deps.Backlog,
		saver:    deps.Saver,
		agg:      deps.Aggregator,
		graph:    deps.Social,
		presence: deps.Presence,
		log:      logging.OrNop(deps.Logger).Named("hub"),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[int64]*Session),
		loading:  make(map[int64]struct{}),
		flushing: make(map[int64]chan struct{}),
	}
	if h.graph == nil {
		h.graph = social.NewGraph(nil)
	}
	if h.agg != nil {
		h.agg.OnQuestComplete = h.questCompleted
	}
	if h.saver != nil {
		h.saver.OnDegraded = func(playerID int64, err error) {
			h.notify(playerID, protocol.MsgSessionWarning, protocol.SessionNotice{Reason: "save_degraded"})
		}
		h.saver.OnRecovered = func(playerID int64) {
			h.notify(playerID, protocol.MsgSessionWarning, protocol.SessionNotice{Reason: "save_recovered"})
		}
	}
	return h
}

// Connect attaches conn to the player's session. An existing session, live or
// suspended, is kept and its previous connection is closed with session_replaced.
// Otherwise the player's state is loaded and a new session starts ticking.
func (h *Hub) Connect(ctx context.Context, playerID int64, conn Conn) (*Session, error) {
	for {
		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			return nil, ErrHubClosed
		}
		if s, ok := h.sessions[playerID]; ok {
			old, resumed := s.attach(conn)
			h.mu.Unlock()
			h.reattached(s, old, resumed)
			return s, nil
		}
		if _, ok := h.loading[playerID]; ok {
			h.mu.Unlock()
			return nil, ErrAlreadyConnected
		}
		if wait, ok := h.flushing[playerID]; ok {
			h.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		h.loading[playerID] = struct{}{}
		h.mu.Unlock()
		break
	}

	state, err := persist.LoadWithRetry(ctx, h.store, h.backlog, playerID, h.cfg.LoadRetry)
	if err == nil && len(state.Party) == 0 {
		err = fmt.Errorf("%w: player %d has no pokemon", persist.ErrLoadFailed, playerID)
	}
	if err != nil {
		h.mu.Lock()
		delete(h.loading, playerID)
		h.mu.Unlock()
		h.log.Warn("load failed", zap.Int64("player", playerID), zap.Error(err))
		return nil, err
	}

	s := newSession(h, state, conn)
	s.sendWelcome(false)

	h.mu.Lock()
	delete(h.loading, playerID)
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return nil, ErrHubClosed
	}
	h.sessions[playerID] = s
	h.wg.Add(1)
	h.mu.Unlock()

	go s.run()
	h.online(s)
	h.log.Info("session started", zap.Int64("player", playerID), zap.String("username", s.username))
	return s, nil
}

func (h *Hub) reattached(s *Session, old Conn, resumed bool) {
	if old != nil {
		_ = old.Send(protocol.MustEncode(protocol.MsgSessionReplaced, protocol.SessionNotice{Reason: "connected elsewhere"}))
		_ = old.Close()
		h.log.Info("session replaced", zap.Int64("player", s.playerID))
	}
	if resumed {
		h.log.Info("session resumed", zap.Int64("player", s.playerID))
		h.online(s)
	}
	s.sendWelcome(true)
}

func (h *Hub) online(s *Session) {
	ctx, cancel := context.WithTimeout(h.ctx, h.cfg.AggregateTimeout)
	defer cancel()
	if h.agg != nil {
		if err := h.agg.Seed(ctx, s.Snapshot()); err != nil {
			h.log.Warn("aggregate seed failed", zap.Int64("player", s.playerID), zap.Error(err))
		}
	}
	if h.presence != nil {
		if err := h.presence.SetOnline(ctx, s.playerID); err != nil {
			h.log.Warn("presence update failed", zap.Int64("player", s.playerID), zap.Error(err))
		}
	}
}

// Disconnect suspends the player's session, whatever connection it holds
func (h *Hub) Disconnect(playerID int64) {
	h.DisconnectConn(playerID, nil)
}

// DisconnectConn suspends the session only if conn is still its connection. A nil
// conn matches any connection.
func (h *Hub) DisconnectConn(playerID int64, conn Conn) {
	h.mu.RLock()
	s, ok := h.sessions[playerID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if !s.suspend(conn) {
		return
	}
	h.log.Info("session suspended", zap.Int64("player", playerID), zap.Duration("grace", h.cfg.GracePeriod))
	if h.saver != nil {
		if err := h.saver.Enqueue(s.Snapshot()); err != nil {
			h.log.Warn("suspend save not queued", zap.Int64("player", playerID), zap.Error(err))
		}
	}
	if h.presence != nil {
		ctx, cancel := context.WithTimeout(h.ctx, h.cfg.AggregateTimeout)
		if err := h.presence.SetOffline(ctx, playerID); err != nil {
			h.log.Warn("presence update failed", zap.Int64("player", playerID), zap.Error(err))
		}
		cancel()
	}
}

// expire runs when a grace timer fires. gen identifies the suspension it belongs to.
func (h *Hub) expire(s *Session, gen uint64) {
	h.mu.Lock()
	if h.closed || h.sessions[s.playerID] != s || !s.expireIf(gen) {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, s.playerID)
	done := make(chan struct{})
	h.flushing[s.playerID] = done
	h.mu.Unlock()

	s.cancel()
	<-s.done

	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.ShutdownSave)
	defer cancel()
	if h.saver != nil {
		if err := h.saver.SaveNow(ctx, s.Snapshot()); err != nil {
			h.log.Error("final save failed", zap.Int64("player", s.playerID), zap.Error(err))
		}
	}

	h.mu.Lock()
	delete(h.flushing, s.playerID)
	h.mu.Unlock()
	close(done)
	h.log.Info("session discarded", zap.Int64("player", s.playerID))
}

// Session returns the live or suspended session for a player
func (h *Hub) Session(playerID int64) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[playerID]
	return s, ok
}

// Online returns the ids of players with an attached connection
func (h *Hub) Online() []int64 {
	var ids []int64
	for _, s := range h.snapshot() {
		if !s.Suspended() {
			ids = append(ids, s.playerID)
		}
	}
	return ids
}

func (h *Hub) snapshot() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}

// RunLeaderboards publishes leaderboard_update to everyone online whenever a board changes
func (h *Hub) RunLeaderboards(ctx context.Context) {
	if h.agg == nil {
		return
	}
	h.agg.RunLeaderboards(ctx, h.cfg.BoardInterval, h.cfg.BoardLimit, func(board models.LeaderboardType, entries []models.LeaderboardEntry) {
		h.SendAll(protocol.MsgLeaderboardUpdate, protocol.LeaderboardUpdate{Board: board, Entries: entries})
	})
}

// Shutdown stops accepting connections, cancels every session loop, waits for
// in-flight ticks until ctx is done, then saves and closes every session. A tick
// still running after ctx is aborted without committing, and its session is saved
// once it stops, bounded by ShutdownSave.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.log.Info("shutting down", zap.Int("sessions", len(h.snapshot())))
	h.cancel()

	drained := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(drained)
	}()
	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = fmt.Errorf("failed to drain ticks: %w", ctx.Err())
		h.log.Warn("shutdown timed out waiting for ticks")
	}

	var stuck []*Session
	for _, s := range h.snapshot() {
		s.stopGrace()
		state, ok := s.trySnapshot()
		if !ok {
			stuck = append(stuck, s)
			continue
		}
		h.finalSave(ctx, state)
		s.closeConn()
	}
	if len(stuck) > 0 {
		h.saveAborted(stuck)
	}

	if h.saver != nil {
		if serr := h.saver.Close(ctx); serr != nil && err == nil {
			err = fmt.Errorf("failed to flush saves: %w", serr)
		}
	}
	return err
}

func (h *Hub) finalSave(ctx context.Context, state *models.PlayerState) {
	if h.saver == nil {
		return
	}
	if err := h.saver.SaveNow(ctx, state); err != nil {
		h.log.Error("final save failed", zap.Int64("player", state.Player.ID), zap.Error(err))
	}
}

// saveAborted gives ticks that outlived the drain up to ShutdownSave to abort, then
// saves the committed state they leave behind.
func (h *Hub) saveAborted(sessions []*Session) {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.ShutdownSave)
	defer cancel()
	for _, s := range sessions {
		if waitDone(ctx, s.done) {
			h.finalSave(ctx, s.Snapshot())
		} else {
			h.log.Warn("tick still running, skipping final save", zap.Int64("player", s.playerID))
		}
		s.closeConn()
	}
}

func waitDone(ctx context.Context, done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
	}
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
