package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownMessageType is returned for an envelope whose type is not an inbound kind
	ErrUnknownMessageType = errors.New("unknown message type")
	// ErrMalformed is returned for bytes that are not a valid envelope or payload
	ErrMalformed = errors.New("malformed message")
)

// Encode marshals payload inside an envelope of type t
func Encode(t string, payload any) ([]byte, error) {
	if t == "" {
		return nil, fmt.Errorf("failed to encode envelope: empty type")
	}
	if payload == nil {
		return nil, fmt.Errorf("failed to encode %q: nil payload", t)
	}
	pb, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %q payload: %w", t, err)
	}
	return json.Marshal(Envelope{Type: t, Payload: pb})
}

// MustEncode is Encode for payloads that always marshal
func MustEncode(t string, payload any) []byte {
	b, err := Encode(t, payload)
	if err != nil {
		panic(err)
	}
	return b
}

func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, fmt.Errorf("%w: empty message", ErrMalformed)
	}
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if e.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return e, nil
}

// DecodePayload unmarshals the envelope payload into T. An absent payload yields the zero T.
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(env.Payload, &out); err != nil {
		return out, fmt.Errorf("%w: %s payload: %v", ErrMalformed, env.Type, err)
	}
	return out, nil
}

func decodeAs[T Inbound](env Envelope) (Inbound, error) {
	v, err := DecodePayload[T](env)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeInbound decodes a client message into one of the inbound kinds.
// Any other discriminator is ErrUnknownMessageType.
func DecodeInbound(b []byte) (Inbound, error) {
	env, err := DecodeEnvelope(b)
	if err != nil {
		return nil, err
	}
	switch env.Type {
	case MsgConfirmEvolution:
		return decodeAs[ConfirmEvolution](env)
	case MsgCancelEvolution:
		return decodeAs[CancelEvolution](env)
	case MsgChat:
		return decodeAs[ChatSend](env)
	case MsgWhisper:
		return decodeAs[WhisperSend](env)
	case MsgFriendRequest:
		return decodeAs[FriendRequest](env)
	case MsgFriendAccept:
		return decodeAs[FriendAccept](env)
	case MsgFriendCancel:
		return decodeAs[FriendCancel](env)
	case MsgBlock:
		return decodeAs[Block](env)
	case MsgUnblock:
		return decodeAs[Unblock](env)
	case MsgGuildJoin:
		return decodeAs[GuildJoin](env)
	case MsgGuildLeave:
		return decodeAs[GuildLeave](env)
	case MsgSelectBall:
		return decodeAs[SelectBall](env)
	case MsgChangeZone:
		return decodeAs[ChangeZone](env)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type)
}
