package hub

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omega-realm/pokeidle/internal/game"
	"github.com/omega-realm/pokeidle/internal/models"
	"github.com/omega-realm/pokeidle/internal/protocol"
	"github.com/omega-realm/pokeidle/internal/social"
)

// Dispatch queues an inbound message on the player's session. Messages are handled
// in order by the session loop. A full inbox rejects the message.
func (h *Hub) Dispatch(playerID int64, msg protocol.Inbound) error {
	s, ok := h.Session(playerID)
	if !ok {
		return ErrSessionNotFound
	}
	select {
	case s.inbox <- msg:
		return nil
	default:
		s.sendError(protocol.CodeRateLimited, "too many messages")
		return ErrSlowConsumer
	}
}

func (s *Session) handle(ctx context.Context, msg protocol.Inbound) {
	switch m := msg.(type) {
	case protocol.ConfirmEvolution:
		s.confirmEvolution(ctx, m.PokemonID)
	case protocol.CancelEvolution:
		s.cancelEvolution(m.PokemonID)
	case protocol.ChatSend:
		s.chat(m)
	case protocol.WhisperSend:
		s.whisper(m)
	case protocol.FriendRequest:
		s.friendRequest(ctx, m.PlayerID)
	case protocol.FriendAccept:
		s.friendAccept(ctx, m.PlayerID)
	case protocol.FriendCancel:
		s.friendCancel(ctx, m.PlayerID)
	case protocol.Block:
		s.block(ctx, m.PlayerID)
	case protocol.Unblock:
		s.unblock(ctx, m.PlayerID)
	case protocol.GuildJoin:
		s.joinGuild(ctx, m.GuildID)
	case protocol.GuildLeave:
		s.leaveGuild(ctx)
	case protocol.SelectBall:
		s.selectBall(m.Ball)
	case protocol.ChangeZone:
		s.changeZone(ctx, m.ZoneID)
	default:
		s.sendError(protocol.CodeUnknownType, "unsupported message")
	}
}

func (s *Session) confirmEvolution(ctx context.Context, pokemonID string) {
	s.stateMu.Lock()
	ev, err := game.ConfirmEvolution(ctx, s.hub.engine.Catalog, s.state, s.queue, pokemonID)
	if err == nil {
		s.queueSaveLocked()
	}
	s.stateMu.Unlock()

	if errors.Is(err, game.ErrInvalidEvolutionTarget) {
		s.sendError(protocol.CodeInvalidTarget, "no pending evolution for that pokemon")
		return
	}
	if err != nil {
		s.log.Error("confirm evolution failed", zap.String("pokemon", pokemonID), zap.Error(err))
		s.sendError(protocol.CodeInternal, "evolution failed")
		return
	}
	s.sendEncoded(protocol.MsgEvolution, ev)
	if ev.NewPokedexEntry {
		rctx, cancel := context.WithTimeout(context.Background(), s.hub.cfg.AggregateTimeout)
		s.recordSpecies(rctx, []int{ev.ToSpecies})
		cancel()
	}
}

func (s *Session) cancelEvolution(pokemonID string) {
	s.stateMu.Lock()
	err := game.CancelEvolution(s.queue, pokemonID)
	pending := s.queue.List()
	s.stateMu.Unlock()

	if err != nil {
		s.sendError(protocol.CodeInvalidTarget, "no pending evolution for that pokemon")
		return
	}
	s.sendEncoded(protocol.MsgEvolutionPrompt, protocol.EvolutionPrompt{Pending: pending})
}

func (s *Session) cleanText(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		s.sendError(protocol.CodeBadRequest, "empty message")
		return "", false
	}
	if limit := s.hub.cfg.MaxChatLength; limit > 0 && len([]rune(text)) > limit {
		s.sendError(protocol.CodeBadRequest, "message too long")
		return "", false
	}
	if !s.limiter.Allow() {
		s.sendError(protocol.CodeRateLimited, "slow down")
		return "", false
	}
	return text, true
}

func (s *Session) chat(m protocol.ChatSend) {
	h := s.hub
	channel := m.Channel
	if channel == "" {
		channel = protocol.ChannelGlobal
	}
	guild := s.GuildID()
	if channel != protocol.ChannelGlobal && channel != protocol.ChannelGuild {
		s.sendError(protocol.CodeBadRequest, "unknown channel")
		return
	}
	if channel == protocol.ChannelGuild && guild == 0 {
		s.sendError(protocol.CodeNotInGuild, "join a guild first")
		return
	}
	text, ok := s.cleanText(m.Text)
	if !ok {
		return
	}

	msg := protocol.ChatMessage{
		ID:       uuid.NewString(),
		Channel:  channel,
		From:     s.playerID,
		FromName: s.username,
		Text:     text,
		SentAt:   time.Now().UTC(),
	}
	if channel == protocol.ChannelGuild {
		msg.GuildID = guild
	}
	b, ok := h.encode(protocol.MsgChat, msg)
	if !ok {
		return
	}
	h.Broadcast(func(r *Session) bool {
		if channel == protocol.ChannelGuild && r.GuildID() != guild {
			return false
		}
		return r.playerID == s.playerID || !h.graph.IsBlocked(s.playerID, r.playerID)
	}, b)
}

func (s *Session) whisper(m protocol.WhisperSend) {
	if m.To == s.playerID {
		s.sendError(protocol.CodeInvalidSelf, "cannot whisper yourself")
		return
	}
	text, ok := s.cleanText(m.Text)
	if !ok {
		return
	}
	ack, err := s.hub.Whisper(s, m.To, text)
	if errors.Is(err, ErrSessionNotFound) {
		s.sendError(protocol.CodeNotFound, "player is not online")
		return
	}
	s.sendEncoded(protocol.MsgWhisperAck, ack)
}

func (s *Session) socialError(err error) {
	switch {
	case errors.Is(err, social.ErrSelf):
		s.sendError(protocol.CodeInvalidSelf, err.Error())
	case errors.Is(err, social.ErrAlreadyFriends):
		s.sendError(protocol.CodeAlreadyFriends, err.Error())
	case errors.Is(err, social.ErrNoRequest):
		s.sendError(protocol.CodeNoPendingInvite, err.Error())
	default:
		s.log.Error("social update failed", zap.Error(err))
		s.sendError(protocol.CodeInternal, "request failed")
	}
}

func (s *Session) friendRequest(ctx context.Context, to int64) {
	h := s.hub
	accepted, err := h.graph.Request(ctx, s.playerID, to)
	if errors.Is(err, social.ErrBlocked) {
		// looks sent to the requester
		s.sendEncoded(protocol.MsgFriendRequest, protocol.FriendNotice{PlayerID: to})
		return
	}
	if err != nil {
		s.socialError(err)
		return
	}
	if accepted {
		s.sendEncoded(protocol.MsgFriendAccept, protocol.FriendNotice{PlayerID: to})
		h.notify(to, protocol.MsgFriendAccept, protocol.FriendNotice{PlayerID: s.playerID, Username: s.username})
		return
	}
	s.sendEncoded(protocol.MsgFriendRequest, protocol.FriendNotice{PlayerID: to})
	h.notify(to, protocol.MsgFriendRequest, protocol.FriendNotice{PlayerID: s.playerID, Username: s.username})
}

func (s *Session) friendAccept(ctx context.Context, requester int64) {
	h := s.hub
	if err := h.graph.Accept(ctx, s.playerID, requester); err != nil {
		if errors.Is(err, social.ErrBlocked) {
			err = social.ErrNoRequest
		}
		s.socialError(err)
		return
	}
	s.sendEncoded(protocol.MsgFriendAccept, protocol.FriendNotice{PlayerID: requester})
	h.notify(requester, protocol.MsgFriendAccept, protocol.FriendNotice{PlayerID: s.playerID, Username: s.username})
}

func (s *Session) friendCancel(ctx context.Context, other int64) {
	h := s.hub
	if err := h.graph.Cancel(ctx, s.playerID, other); err != nil {
		s.socialError(err)
		return
	}
	s.sendEncoded(protocol.MsgFriendCancel, protocol.FriendNotice{PlayerID: other})
	h.notify(other, protocol.MsgFriendCancel, protocol.FriendNotice{PlayerID: s.playerID, Username: s.username})
}

// block is confirmed to the blocker only
func (s *Session) block(ctx context.Context, target int64) {
	if err := s.hub.graph.Block(ctx, s.playerID, target); err != nil {
		s.socialError(err)
		return
	}
	s.sendEncoded(protocol.MsgFriendBlocked, protocol.FriendNotice{PlayerID: target})
}

func (s *Session) unblock(ctx context.Context, target int64) {
	if err := s.hub.graph.Unblock(ctx, s.playerID, target); err != nil {
		s.socialError(err)
		return
	}
	s.sendEncoded(protocol.MsgFriendUnblocked, protocol.FriendNotice{PlayerID: target})
}

func (s *Session) joinGuild(ctx context.Context, guildID int64) {
	h := s.hub
	if h.agg == nil {
		s.sendError(protocol.CodeInternal, "guilds unavailable")
		return
	}
	if s.GuildID() != 0 {
		s.sendError(protocol.CodeAlreadyInGuild, "leave your guild first")
		return
	}
	g, err := h.agg.JoinGuild(ctx, guildID, s.playerID)
	switch {
	case errors.Is(err, models.ErrGuildFull):
		s.sendError(protocol.CodeGuildFull, "guild is full")
		return
	case errors.Is(err, models.ErrAlreadyInGuild):
		s.sendError(protocol.CodeAlreadyInGuild, "leave your guild first")
		return
	case errors.Is(err, models.ErrNotFound):
		s.sendError(protocol.CodeNotFound, "guild not found")
		return
	case err != nil:
		s.log.Error("join guild failed", zap.Int64("guild", guildID), zap.Error(err))
		s.sendError(protocol.CodeInternal, "join failed")
		return
	}

	s.stateMu.Lock()
	id := g.ID
	s.state.Player.GuildID = &id
	s.queueSaveLocked()
	s.stateMu.Unlock()
	s.guildID.Store(g.ID)

	h.SendToGuild(g.ID, protocol.MsgGuildJoined, protocol.GuildNotice{GuildID: g.ID, MemberCount: g.MemberCount})
}

func (s *Session) leaveGuild(ctx context.Context) {
	h := s.hub
	guild := s.GuildID()
	if guild == 0 || h.agg == nil {
		s.sendError(protocol.CodeNotInGuild, "not in a guild")
		return
	}
	g, err := h.agg.LeaveGuild(ctx, guild, s.playerID)
	if err != nil && !errors.Is(err, models.ErrNotInGuild) {
		s.log.Error("leave guild failed", zap.Int64("guild", guild), zap.Error(err))
		s.sendError(protocol.CodeInternal, "leave failed")
		return
	}

	s.stateMu.Lock()
	s.state.Player.GuildID = nil
	s.queueSaveLocked()
	s.stateMu.Unlock()
	s.guildID.Store(0)

	notice := protocol.GuildNotice{GuildID: guild}
	if g != nil {
		notice.MemberCount = g.MemberCount
	}
	s.sendEncoded(protocol.MsgGuildLeft, notice)
	h.SendToGuild(guild, protocol.MsgGuildLeft, notice)
}

func (s *Session) selectBall(ball models.BallType) {
	if !models.IsValidBall(ball) {
		s.sendError(protocol.CodeBadRequest, "unknown ball type")
		return
	}
	s.stateMu.Lock()
	s.state.Player.PreferredBall = ball
	s.stateMu.Unlock()
	s.sendEncoded(protocol.MsgBallSelected, protocol.BallSelected{Ball: ball})
}

func (s *Session) changeZone(ctx context.Context, zoneID int) {
	zone, err := s.hub.engine.Catalog.GetZone(ctx, zoneID)
	if errors.Is(err, models.ErrNotFound) {
		s.sendError(protocol.CodeNotFound, "zone not found")
		return
	}
	if err != nil {
		s.log.Error("zone lookup failed", zap.Int("zone", zoneID), zap.Error(err))
		s.sendError(protocol.CodeInternal, "zone lookup failed")
		return
	}
	s.stateMu.Lock()
	s.state.Player.ZoneID = zone.ID
	s.queueSaveLocked()
	s.stateMu.Unlock()
	s.sendEncoded(protocol.MsgZoneChanged, protocol.ZoneChanged{ZoneID: zone.ID, Name: zone.Name})
}
