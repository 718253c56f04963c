package hub

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omega-realm/pokeidle/internal/protocol"
)

// Send delivers msg to one online player
func (h *Hub) Send(playerID int64, msg []byte) error {
	s, ok := h.Session(playerID)
	if !ok {
		return ErrSessionNotFound
	}
	return s.send(msg)
}

// Broadcast delivers msg to every online session matching pred and returns how many were reached
func (h *Hub) Broadcast(pred func(*Session) bool, msg []byte) int {
	n := 0
	for _, s := range h.snapshot() {
		if pred != nil && !pred(s) {
			continue
		}
		if s.send(msg) == nil {
			n++
		}
	}
	return n
}

func (h *Hub) encode(t string, payload any) ([]byte, bool) {
	b, err := protocol.Encode(t, payload)
	if err != nil {
		h.log.Error("encode failed", zap.String("type", t), zap.Error(err))
		return nil, false
	}
	return b, true
}

// SendAll delivers to every online player
func (h *Hub) SendAll(t string, payload any) int {
	b, ok := h.encode(t, payload)
	if !ok {
		return 0
	}
	return h.Broadcast(nil, b)
}

// SendToGuild delivers to the online members of a guild
func (h *Hub) SendToGuild(guildID int64, t string, payload any) int {
	if guildID == 0 {
		return 0
	}
	b, ok := h.encode(t, payload)
	if !ok {
		return 0
	}
	return h.Broadcast(func(s *Session) bool { return s.GuildID() == guildID }, b)
}

// SendToFriends delivers to the player's online friends, skipping blocked relationships
func (h *Hub) SendToFriends(playerID int64, t string, payload any) int {
	friends := h.graph.Friends(playerID)
	if len(friends) == 0 {
		return 0
	}
	b, ok := h.encode(t, payload)
	if !ok {
		return 0
	}
	set := make(map[int64]struct{}, len(friends))
	for _, id := range friends {
		set[id] = struct{}{}
	}
	return h.Broadcast(func(s *Session) bool {
		_, friend := set[s.playerID]
		return friend && !h.graph.IsBlocked(playerID, s.playerID)
	}, b)
}

// Whisper sends a private message. A blocked relationship in either direction drops
// the message silently; the sender is acknowledged the same way in both cases.
// ErrSessionNotFound is returned when the recipient is offline.
func (h *Hub) Whisper(from *Session, to int64, text string) (protocol.WhisperAck, error) {
	ack := protocol.WhisperAck{ID: uuid.NewString(), To: to}
	if h.graph.IsBlocked(from.playerID, to) {
		h.log.Debug("whisper dropped", zap.Int64("from", from.playerID), zap.Int64("to", to), zap.Error(ErrRecipientBlocked))
		return ack, nil
	}
	b, ok := h.encode(protocol.MsgWhisper, protocol.WhisperMessage{
		ID:       ack.ID,
		From:     from.playerID,
		FromName: from.username,
		Text:     text,
		SentAt:   time.Now().UTC(),
	})
	if !ok {
		return ack, nil
	}
	if err := h.Send(to, b); err != nil {
		return ack, err
	}
	return ack, nil
}
