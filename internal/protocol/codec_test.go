package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/omega-realm/pokeidle/internal/game"
	"github.com/omega-realm/pokeidle/internal/models"
)

func TestDecodeInboundKinds(t *testing.T) {
	tests := []struct {
		raw  string
		want Inbound
	}{
		{`{"type":"confirm_evolution","payload":{"pokemon_id":"abc"}}`, ConfirmEvolution{PokemonID: "abc"}},
		{`{"type":"cancel_evolution","payload":{"pokemon_id":"abc"}}`, CancelEvolution{PokemonID: "abc"}},
		{`{"type":"chat","payload":{"channel":"guild","text":"hi"}}`, ChatSend{Channel: ChannelGuild, Text: "hi"}},
		{`{"type":"whisper","payload":{"to":7,"text":"psst"}}`, WhisperSend{To: 7, Text: "psst"}},
		{`{"type":"friend_request","payload":{"player_id":3}}`, FriendRequest{PlayerID: 3}},
		{`{"type":"block","payload":{"player_id":3}}`, Block{PlayerID: 3}},
		{`{"type":"guild_join","payload":{"guild_id":11}}`, GuildJoin{GuildID: 11}},
		{`{"type":"guild_leave"}`, GuildLeave{}},
		{`{"type":"select_ball","payload":{"ball":"ultraball"}}`, SelectBall{Ball: models.BallUltra}},
		{`{"type":"change_zone","payload":{"zone_id":2}}`, ChangeZone{ZoneID: 2}},
	}
	for _, tc := range tests {
		got, err := DecodeInbound([]byte(tc.raw))
		if err != nil {
			t.Fatalf("decode %s: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("decode %s: got %#v, want %#v", tc.raw, got, tc.want)
		}
		if got.Type() != tc.want.Type() {
			t.Fatalf("type mismatch for %s", tc.raw)
		}
	}
}

func TestDecodeInboundRejectsUnknownAndMalformed(t *testing.T) {
	if _, err := DecodeInbound([]byte(`{"type":"tick_result","payload":{}}`)); !errors.Is(err, ErrUnknownMessageType) {
		t.Fatalf("outbound type should be unknown inbound, got %v", err)
	}
	if _, err := DecodeInbound([]byte(`{"type":"teleport"}`)); !errors.Is(err, ErrUnknownMessageType) {
		t.Fatalf("expected ErrUnknownMessageType, got %v", err)
	}
	for _, raw := range []string{``, `not json`, `{"payload":{}}`, `{"type":"whisper","payload":{"to":"seven"}}`} {
		if _, err := DecodeInbound([]byte(raw)); !errors.Is(err, ErrMalformed) {
			t.Fatalf("decode %q: expected ErrMalformed, got %v", raw, err)
		}
	}
}

func TestEncodeTickResultKeepsOrder(t *testing.T) {
	out := &game.TickOutcome{
		TickSeq:   4,
		Encounter: &game.EncounterEvent{Wild: game.WildPokemon{SpeciesID: 19, Name: "Rattata", Level: 2}},
		XP:        []game.XPGain{{PokemonID: "a", Amount: 10}},
		Inventory: models.Inventory{PokeBalls: 2},
	}
	b, err := Encode(MsgTickResult, NewTickResult(out))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	env, err := DecodeEnvelope(b)
	if err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Type != MsgTickResult {
		t.Fatalf("expected type %q, got %q", MsgTickResult, env.Type)
	}
	body := string(env.Payload)
	order := []string{`"encounter"`, `"xp"`, `"level_ups"`, `"pending_evolutions"`, `"evolutions"`, `"inventory"`}
	last := -1
	for _, key := range order {
		idx := strings.Index(body, key)
		if idx <= last {
			t.Fatalf("field %s out of order in %s", key, body)
		}
		last = idx
	}

	res, err := DecodePayload[TickResult](env)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if res.TickSeq != 4 || res.Encounter.Wild.Name != "Rattata" || res.Inventory.PokeBalls != 2 {
		t.Fatalf("unexpected round trip: %+v", res)
	}
}

func TestEncodeRejectsEmpty(t *testing.T) {
	if _, err := Encode("", Error{}); err == nil {
		t.Fatalf("expected error for empty type")
	}
	if _, err := Encode(MsgError, nil); err == nil {
		t.Fatalf("expected error for nil payload")
	}
	b := MustEncode(MsgError, Error{Code: CodeRateLimited, Message: "slow down"})
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["payload"]; !ok {
		t.Fatalf("envelope should carry a payload field")
	}
}
