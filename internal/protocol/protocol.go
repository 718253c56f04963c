package protocol

import "encoding/json"

// Inbound message types
const (
	MsgConfirmEvolution = "confirm_evolution"
	MsgCancelEvolution  = "cancel_evolution"
	MsgChat             = "chat"
	MsgWhisper          = "whisper"
	MsgFriendRequest    = "friend_request"
	MsgFriendAccept     = "friend_accept"
	MsgFriendCancel     = "friend_cancel"
	MsgBlock            = "block"
	MsgUnblock          = "unblock"
	MsgGuildJoin        = "guild_join"
	MsgGuildLeave       = "guild_leave"
	MsgSelectBall       = "select_ball"
	MsgChangeZone       = "change_zone"
)

// Outbound message types. chat, whisper and the friend_* types are shared with inbound.
const (
	MsgWelcome            = "welcome"
	MsgTickResult         = "tick_result"
	MsgWhisperAck         = "whisper_ack"
	MsgFriendBlocked      = "friend_blocked"
	MsgFriendUnblocked    = "friend_unblocked"
	MsgGuildJoined        = "guild_joined"
	MsgGuildLeft          = "guild_left"
	MsgGuildQuestComplete = "guild_quest_complete"
	MsgLeaderboardUpdate  = "leaderboard_update"
	MsgLevelUp            = "level_up"
	MsgEvolutionPrompt    = "evolution_prompt"
	MsgEvolution          = "evolution"
	MsgBallSelected       = "ball_selected"
	MsgZoneChanged        = "zone_changed"
	MsgSessionReplaced    = "session_replaced"
	MsgSessionWarning     = "session_warning"
	MsgWorldEvent         = "world_event"
	MsgError              = "error"
)

// Chat channels
const (
	ChannelGlobal = "global"
	ChannelGuild  = "guild"
)

// Envelope wraps every payload that crosses the connection
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}
