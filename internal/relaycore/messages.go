package relaycore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/warpvideo/signaling-relay/internal/stats"
)

// Kind tags every envelope on the signaling channel.
type Kind string

// Client -> server kinds. Anything else is ignored by the router.
const (
	KindCreateRoom     Kind = "create-room"
	KindJoinRoom       Kind = "join-room"
	KindLeaveRoom      Kind = "leave-room"
	KindGetRooms       Kind = "get-rooms"
	KindOffer          Kind = "offer"
	KindAnswer         Kind = "answer"
	KindCandidate      Kind = "candidate"
	KindChatMessage    Kind = "chat-message"
	KindMediaState     Kind = "media-state"
	KindAuthenticate   Kind = "authenticate"
	KindGetServerStats Kind = "get-server-stats"
	KindGetLogs        Kind = "get-logs"
)

// Server -> client kinds.
const (
	KindConnectionEstablished Kind = "connection-established"
	KindRoomCreated           Kind = "room-created"
	KindRoomJoined            Kind = "room-joined"
	KindJoinRoomError         Kind = "join-room-error"
	KindRoomLeft              Kind = "room-left"
	KindRoomsList             Kind = "rooms-list"
	KindParticipantJoined     Kind = "participant-joined"
	KindParticipantLeft       Kind = "participant-left"
	KindChatMessagePush       Kind = "chat-message"
	KindMediaStateChanged     Kind = "media-state-changed"
	KindAuthSuccess           Kind = "authentication-success"
	KindServerStats           Kind = "server-stats"
	KindServerLogs            Kind = "server-logs"
)

// MediaState mirrors a participant's local track toggles.
type MediaState struct {
	Video bool `json:"video"`
	Audio bool `json:"audio"`
}

// Identity is the asserted (unvalidated) user behind a connection.
type Identity struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Envelope is the inbound wire message. Field presence depends on Kind;
// handlers read only the fields their kind defines.
type Envelope struct {
	Kind Kind `json:"type"`

	RoomName string `json:"roomName,omitempty"`
	Passkey  string `json:"passkey,omitempty"`
	RoomID   string `json:"roomId,omitempty"`

	// To optionally addresses a negotiation relay to a single connection.
	To string `json:"to,omitempty"`
	// Payload is the opaque negotiation body (offer/answer/candidate).
	// The relay forwards it verbatim.
	Payload json.RawMessage `json:"payload,omitempty"`

	Message    string      `json:"message,omitempty"`
	MediaState *MediaState `json:"mediaState,omitempty"`
	User       *Identity   `json:"user,omitempty"`

	Limit int    `json:"limit,omitempty"`
	Level string `json:"level,omitempty"`
}

// ParseEnvelope decodes one inbound message. Trailing data after the JSON
// value is rejected; unknown kinds parse fine and are dropped later by the
// router.
func ParseEnvelope(data []byte) (Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return Envelope{}, err
	}
	if env.Kind == "" {
		return Envelope{}, fmt.Errorf("envelope missing type")
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Envelope{}, fmt.Errorf("unexpected trailing data")
	}
	return env, nil
}

// ChatMessage is one chat history record.
type ChatMessage struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participantId"`
	Text          string    `json:"message"`
	Timestamp     time.Time `json:"timestamp"`
}

// RoomSummary is one entry of the global rooms list.
type RoomSummary struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	ParticipantCount int       `json:"participantCount"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Outbound push messages. Each carries its Kind in the "type" field so the
// client can switch on it.

type ConnectionEstablished struct {
	Kind     Kind           `json:"type"`
	ClientID string         `json:"clientId"`
	Stats    stats.Snapshot `json:"serverStats"`
}

type RoomCreated struct {
	Kind Kind            `json:"type"`
	Room RoomCreatedInfo `json:"room"`
}

type RoomCreatedInfo struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Passkey          string    `json:"passkey"`
	ParticipantCount int       `json:"participantCount"`
	CreatedAt        time.Time `json:"createdAt"`
}

type RoomJoined struct {
	Kind Kind           `json:"type"`
	Room RoomJoinedInfo `json:"room"`
}

type RoomJoinedInfo struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	ParticipantCount int           `json:"participantCount"`
	Messages         []ChatMessage `json:"messages"`
	CreatedAt        time.Time     `json:"createdAt"`
}

type JoinRoomError struct {
	Kind  Kind   `json:"type"`
	Error string `json:"error"`
}

type RoomLeft struct {
	Kind   Kind   `json:"type"`
	RoomID string `json:"roomId"`
}

type RoomsList struct {
	Kind  Kind          `json:"type"`
	Rooms []RoomSummary `json:"rooms"`
}

type ParticipantJoined struct {
	Kind             Kind   `json:"type"`
	ParticipantID    string `json:"participantId"`
	ParticipantCount int    `json:"participantCount"`
}

type ParticipantLeft struct {
	Kind             Kind   `json:"type"`
	ParticipantID    string `json:"participantId"`
	ParticipantCount int    `json:"participantCount"`
}

// NegotiationRelay forwards an offer, answer or candidate. Kind matches the
// inbound kind; From is the sender's connection id; To is set only on
// unicast relays.
type NegotiationRelay struct {
	Kind    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload"`
	From    string          `json:"from"`
	To      string          `json:"to,omitempty"`
}

type ChatMessagePush struct {
	Kind    Kind        `json:"type"`
	Message ChatMessage `json:"message"`
}

type MediaStateChanged struct {
	Kind          Kind       `json:"type"`
	ParticipantID string     `json:"participantId"`
	MediaState    MediaState `json:"mediaState"`
}

type AuthenticationSuccess struct {
	Kind Kind     `json:"type"`
	User Identity `json:"user"`
}

type ServerStats struct {
	Kind  Kind           `json:"type"`
	Stats stats.Snapshot `json:"stats"`
}

type ServerLogs struct {
	Kind Kind          `json:"type"`
	Logs []stats.Entry `json:"logs"`
}
