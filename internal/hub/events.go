package hub

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/omega-realm/pokeidle/internal/game"
	"github.com/omega-realm/pokeidle/internal/models"
	"github.com/omega-realm/pokeidle/internal/protocol"
)

// World event kinds
const (
	WorldEventRareCatch = "rare_catch"
)

// publish feeds a committed tick into the shared aggregates and fans out the
// events other players see.
func (s *Session) publish(out *game.TickOutcome) {
	h := s.hub
	guild := s.GuildID()
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.AggregateTimeout)
	defer cancel()

	if enc := out.Encounter; enc != nil && enc.Caught != nil {
		if h.agg != nil {
			if err := h.agg.RecordCatch(ctx, s.playerID, guild); err != nil {
				s.log.Warn("record catch failed", zap.Error(err))
			}
		}
		if h.cfg.RareCatchRate > 0 && enc.Wild.CatchRate <= h.cfg.RareCatchRate {
			h.SendAll(protocol.MsgWorldEvent, protocol.WorldEvent{
				Kind:      WorldEventRareCatch,
				PlayerID:  s.playerID,
				Username:  s.username,
				SpeciesID: enc.Wild.SpeciesID,
				Message:   fmt.Sprintf("%s caught a level %d %s!", s.username, enc.Wild.Level, enc.Wild.Name),
			})
		}
	}

	for _, lu := range out.LevelUps {
		if h.agg != nil {
			if err := h.agg.RecordLevel(ctx, s.playerID, guild, lu.PokemonID, lu.Level); err != nil {
				s.log.Warn("record level failed", zap.Error(err))
			}
		}
		if h.cfg.LevelMilestone > 0 && lu.Level%h.cfg.LevelMilestone == 0 {
			h.SendToFriends(s.playerID, protocol.MsgLevelUp, protocol.LevelUpToast{
				PlayerID:  s.playerID,
				Username:  s.username,
				PokemonID: lu.PokemonID,
				SpeciesID: lu.SpeciesID,
				Level:     lu.Level,
			})
		}
	}

	s.recordSpecies(ctx, out.NewSpecies)
}

func (s *Session) recordSpecies(ctx context.Context, species []int) {
	if s.hub.agg == nil {
		return
	}
	for _, id := range species {
		if err := s.hub.agg.RecordPokedexEntry(ctx, s.playerID, s.GuildID(), id); err != nil {
			s.log.Warn("record pokedex entry failed", zap.Int("species", id), zap.Error(err))
		}
	}
}

func (h *Hub) questCompleted(q models.GuildQuest) {
	h.SendToGuild(q.GuildID, protocol.MsgGuildQuestComplete, protocol.GuildQuestComplete{
		GuildID:  q.GuildID,
		QuestID:  q.ID,
		Kind:     q.Kind,
		Target:   q.Target,
		Progress: q.Progress,
	})
}

// notify sends to a player if they are online and ignores the result
func (h *Hub) notify(playerID int64, t string, payload any) {
	b, err := protocol.Encode(t, payload)
	if err != nil {
		h.log.Error("encode failed", zap.String("type", t), zap.Error(err))
		return
	}
	_ = h.Send(playerID, b)
}
