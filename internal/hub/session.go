package hub

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/omega-realm/pokeidle/internal/game"
	"github.com/omega-realm/pokeidle/internal/models"
	"github.com/omega-realm/pokeidle/internal/protocol"
)

// Session is the live state of one player. Its loop goroutine ticks it on a fixed
// interval and handles its inbox; player state is only touched under stateMu.
type Session struct {
	hub      *Hub
	playerID int64
	username string
	log      *zap.Logger

	stateMu   sync.Mutex
	state     *models.PlayerState
	queue     *game.EvolutionQueue
	lastTick  time.Time
	sinceSave int

	inFlight atomic.Bool
	skipped  atomic.Int64
	guildID  atomic.Int64

	mu        sync.Mutex
	conn      Conn
	suspended bool
	expired   bool
	gen       uint64
	grace     *time.Timer

	inbox   chan protocol.Inbound
	limiter *rate.Limiter
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func newSession(h *Hub, state *models.PlayerState, conn Conn) *Session {
	ctx, cancel := context.WithCancel(h.ctx)
	s := &Session{
		hub:      h,
		playerID: state.Player.ID,
		username: state.Player.Username,
		log:      h.log.Named("session").With(zap.Int64("player", state.Player.ID)),
		state:    state,
		queue:    game.NewEvolutionQueue(),
		conn:     conn,
		inbox:    make(chan protocol.Inbound, h.cfg.InboxSize),
		limiter:  rate.NewLimiter(rate.Limit(h.cfg.ChatPerSecond), h.cfg.ChatBurst),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	if state.Player.GuildID != nil {
		s.guildID.Store(*state.Player.GuildID)
	}
	return s
}

func (s *Session) PlayerID() int64 { return s.playerID }

// GuildID returns the player's guild, or 0
func (s *Session) GuildID() int64 { return s.guildID.Load() }

// Skipped counts ticks dropped because another tick was still running
func (s *Session) Skipped() int64 { return s.skipped.Load() }

func (s *Session) Suspended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suspended
}

// Snapshot returns a copy of the player state
func (s *Session) Snapshot() *models.PlayerState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state.Clone()
}

// PendingEvolutions returns the queued evolutions in insertion order
func (s *Session) PendingEvolutions() []game.PendingEvolution {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.queue.List()
}

// LastTick is when the last tick committed
func (s *Session) LastTick() time.Time {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.lastTick
}

func (s *Session) trySnapshot() (*models.PlayerState, bool) {
	if !s.stateMu.TryLock() {
		return nil, false
	}
	defer s.stateMu.Unlock()
	return s.state.Clone(), true
}

func (s *Session) run() {
	defer s.hub.wg.Done()
	defer close(s.done)

	ticker := time.NewTicker(s.hub.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.inbox:
			s.handle(s.ctx, msg)
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Session) tick() {
	_, err := s.OnTick(s.ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrSuspended), errors.Is(err, ErrTickInFlight):
	case s.ctx.Err() != nil:
		s.log.Debug("tick aborted", zap.Error(err))
	default:
		s.log.Error("tick failed", zap.Error(err))
	}
}

// OnTick runs one tick. A tick that finds another still running is skipped with
// ErrTickInFlight rather than queued. The tick works on copies of the state and
// commits them only if it completes, so a failure or panic leaves the session as it was.
func (s *Session) OnTick(ctx context.Context) (*game.TickOutcome, error) {
	if s.Suspended() {
		return nil, ErrSuspended
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		return nil, ErrTickInFlight
	}
	defer s.inFlight.Store(false)

	out, err := s.commit(ctx)
	if err != nil {
		return nil, err
	}
	s.publish(out)
	return out, nil
}

func (s *Session) commit(ctx context.Context) (*game.TickOutcome, error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	out, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}
	s.sendEncoded(protocol.MsgTickResult, protocol.NewTickResult(out))
	if len(out.PendingEvolutions) > 0 && !s.hub.engine.Tuning.AutoConfirmEvolutions {
		s.sendEncoded(protocol.MsgEvolutionPrompt, protocol.EvolutionPrompt{Pending: s.queue.List()})
	}

	s.sinceSave++
	if s.hub.cfg.SaveEveryTicks > 0 && s.sinceSave >= s.hub.cfg.SaveEveryTicks {
		s.queueSaveLocked()
	}
	return out, nil
}

func (s *Session) resolve(ctx context.Context) (out *game.TickOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("tick panic", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			out, err = nil, fmt.Errorf("%w: %v", ErrTickPanic, r)
		}
	}()

	state := s.state.Clone()
	queue := s.queue.Clone()
	out, err = s.hub.engine.Tick(ctx, state, queue)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.state, s.queue = state, queue
	s.lastTick = time.Now()
	return out, nil
}

func (s *Session) queueSaveLocked() {
	s.sinceSave = 0
	if s.hub.saver == nil {
		return
	}
	if err := s.hub.saver.Enqueue(s.state); err != nil {
		s.log.Warn("save not queued", zap.Error(err))
	}
}

func (s *Session) sendWelcome(resumed bool) {
	s.stateMu.Lock()
	w := protocol.Welcome{
		Player:            s.state.Player,
		Party:             append([]models.Pokemon(nil), s.state.Party...),
		Pokedex:           append([]int(nil), s.state.Pokedex...),
		PendingEvolutions: s.queue.List(),
		TickIntervalMS:    s.hub.cfg.TickInterval.Milliseconds(),
		Resumed:           resumed,
	}
	s.stateMu.Unlock()
	s.sendEncoded(protocol.MsgWelcome, w)
}

// attach swaps in a new connection. Called with hub.mu held.
func (s *Session) attach(conn Conn) (old Conn, resumed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old = s.conn
	resumed = s.suspended
	s.conn = conn
	s.suspended = false
	s.gen++
	if s.grace != nil {
		s.grace.Stop()
		s.grace = nil
	}
	return old, resumed
}

// suspend detaches conn and starts the grace timer. It reports false when conn
// is no longer the session's connection.
func (s *Session) suspend(conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suspended || s.expired || (conn != nil && s.conn != conn) {
		return false
	}
	s.conn = nil
	s.suspended = true
	s.gen++
	gen := s.gen
	s.grace = time.AfterFunc(s.hub.cfg.GracePeriod, func() { s.hub.expire(s, gen) })
	return true
}

// expireIf marks the session expired if it is still in suspension gen. Called with hub.mu held.
func (s *Session) expireIf(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.suspended || s.gen != gen {
		return false
	}
	s.expired = true
	s.grace = nil
	return true
}

func (s *Session) stopGrace() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grace != nil {
		s.grace.Stop()
		s.grace = nil
	}
}

func (s *Session) closeConn() {
	s.mu.Lock()
	c := s.conn
	s.conn = nil
	s.mu.Unlock()
	if c != nil {
		_ = c.Close()
	}
}

// send delivers an encoded message. A connection that cannot keep up is dropped
// and the session suspended.
func (s *Session) send(msg []byte) error {
	s.mu.Lock()
	c := s.conn
	s.mu.Unlock()
	if c == nil {
		return ErrSessionNotFound
	}
	if err := c.Send(msg); err != nil {
		s.log.Warn("send failed, dropping connection", zap.Error(err))
		_ = c.Close()
		go s.hub.DisconnectConn(s.playerID, c)
		return err
	}
	return nil
}

func (s *Session) sendEncoded(t string, payload any) {
	b, err := protocol.Encode(t, payload)
	if err != nil {
		s.log.Error("encode failed", zap.String("type", t), zap.Error(err))
		return
	}
	_ = s.send(b)
}

func (s *Session) sendError(code, message string) {
	s.sendEncoded(protocol.MsgError, protocol.Error{Code: code, Message: message})
}
