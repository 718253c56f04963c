package protocol

import (
	"time"

	"github.com/omega-realm/pokeidle/internal/game"
	"github.com/omega-realm/pokeidle/internal/models"
)

// Inbound is one of the client message kinds accepted by the hub
type Inbound interface {
	Type() string
}

type ConfirmEvolution struct {
	PokemonID string `json:"pokemon_id"`
}

type CancelEvolution struct {
	PokemonID string `json:"pokemon_id"`
}

// ChatSend posts to the global channel or to the sender's guild
type ChatSend struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

type WhisperSend struct {
	To   int64  `json:"to"`
	Text string `json:"text"`
}

type FriendRequest struct {
	PlayerID int64 `json:"player_id"`
}

type FriendAccept struct {
	PlayerID int64 `json:"player_id"`
}

type FriendCancel struct {
	PlayerID int64 `json:"player_id"`
}

type Block struct {
	PlayerID int64 `json:"player_id"`
}

type Unblock struct {
	PlayerID int64 `json:"player_id"`
}

type GuildJoin struct {
	GuildID int64 `json:"guild_id"`
}

type GuildLeave struct{}

type SelectBall struct {
	Ball models.BallType `json:"ball"`
}

type ChangeZone struct {
	ZoneID int `json:"zone_id"`
}

func (ConfirmEvolution) Type() string { return MsgConfirmEvolution }
func (CancelEvolution) Type() string  { return MsgCancelEvolution }
func (ChatSend) Type() string         { return MsgChat }
func (WhisperSend) Type() string      { return MsgWhisper }
func (FriendRequest) Type() string    { return MsgFriendRequest }
func (FriendAccept) Type() string     { return MsgFriendAccept }
func (FriendCancel) Type() string     { return MsgFriendCancel }
func (Block) Type() string            { return MsgBlock }
func (Unblock) Type() string          { return MsgUnblock }
func (GuildJoin) Type() string        { return MsgGuildJoin }
func (GuildLeave) Type() string       { return MsgGuildLeave }
func (SelectBall) Type() string       { return MsgSelectBall }
func (ChangeZone) Type() string       { return MsgChangeZone }

// Welcome is the first message on every connection
type Welcome struct {
	Player            models.Player           `json:"player"`
	Party             []models.Pokemon        `json:"party"`
	Pokedex           []int                   `json:"pokedex"`
	PendingEvolutions []game.PendingEvolution `json:"pending_evolutions"`
	TickIntervalMS    int64                   `json:"tick_interval_ms"`
	Resumed           bool                    `json:"resumed"`
}

// TickResult mirrors game.TickOutcome with fields in emission order
type TickResult struct {
	TickSeq           uint64                  `json:"tick_seq"`
	Encounter         *game.EncounterEvent    `json:"encounter"`
	XP                []game.XPGain           `json:"xp"`
	LevelUps          []game.LevelUpEvent     `json:"level_ups"`
	PendingEvolutions []game.PendingEvolution `json:"pending_evolutions"`
	Evolutions        []game.EvolutionEvent   `json:"evolutions"`
	Inventory         models.Inventory        `json:"inventory"`
	MoneyEarned       int64                   `json:"money_earned"`
}

// NewTickResult converts an engine outcome into its wire form
func NewTickResult(out *game.TickOutcome) TickResult {
	return TickResult{
		TickSeq:           out.TickSeq,
		Encounter:         out.Encounter,
		XP:                out.XP,
		LevelUps:          out.LevelUps,
		PendingEvolutions: out.PendingEvolutions,
		Evolutions:        out.Evolutions,
		Inventory:         out.Inventory,
		MoneyEarned:       out.MoneyEarned,
	}
}

type ChatMessage struct {
	ID       string    `json:"id"`
	Channel  string    `json:"channel"`
	GuildID  int64     `json:"guild_id,omitempty"`
	From     int64     `json:"from"`
	FromName string    `json:"from_name"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
}

type WhisperMessage struct {
	ID       string    `json:"id"`
	From     int64     `json:"from"`
	FromName string    `json:"from_name"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
}

// WhisperAck confirms a whisper was accepted. It never reveals whether it was delivered.
type WhisperAck struct {
	ID string `json:"id"`
	To int64  `json:"to"`
}

// FriendNotice carries friend_request, friend_accept, friend_cancel and block notifications
type FriendNotice struct {
	PlayerID int64  `json:"player_id"`
	Username string `json:"username,omitempty"`
}

type GuildNotice struct {
	GuildID     int64 `json:"guild_id"`
	MemberCount int   `json:"member_count"`
}

type GuildQuestComplete struct {
	GuildID  int64            `json:"guild_id"`
	QuestID  string           `json:"quest_id"`
	Kind     models.QuestKind `json:"kind"`
	Target   int64            `json:"target"`
	Progress int64            `json:"progress"`
}

type LeaderboardUpdate struct {
	Board   models.LeaderboardType    `json:"board"`
	Entries []models.LeaderboardEntry `json:"entries"`
}

// LevelUpToast tells friends about a milestone level
type LevelUpToast struct {
	PlayerID  int64  `json:"player_id"`
	Username  string `json:"username"`
	PokemonID string `json:"pokemon_id"`
	SpeciesID int    `json:"species_id"`
	Level     int    `json:"level"`
}

type EvolutionPrompt struct {
	Pending []game.PendingEvolution `json:"pending"`
}

type BallSelected struct {
	Ball models.BallType `json:"ball"`
}

type ZoneChanged struct {
	ZoneID int    `json:"zone_id"`
	Name   string `json:"name"`
}

// SessionNotice carries session_replaced and session_warning
type SessionNotice struct {
	Reason string `json:"reason"`
}

// WorldEvent is broadcast to everyone online
type WorldEvent struct {
	Kind      string `json:"kind"`
	PlayerID  int64  `json:"player_id"`
	Username  string `json:"username"`
	SpeciesID int    `json:"species_id,omitempty"`
	Message   string `json:"message"`
}

// Error codes
const (
	CodeBadRequest      = "bad_request"
	CodeUnknownType     = "unknown_type"
	CodeInvalidTarget   = "invalid_target"
	CodeRateLimited     = "rate_limited"
	CodeGuildFull       = "guild_full"
	CodeNotFound        = "not_found"
	CodeBlocked         = "blocked"
	CodeInternal        = "internal"
	CodeNotInGuild      = "not_in_guild"
	CodeAlreadyInGuild  = "already_in_guild"
	CodeInvalidSelf     = "invalid_self"
	CodeAlreadyFriends  = "already_friends"
	CodeNoPendingInvite = "no_pending_request"
)

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
