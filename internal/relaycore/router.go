package relaycore

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/warpvideo/signaling-relay/internal/metrics"
	"github.com/warpvideo/signaling-relay/internal/stats"
)

// Router dispatches inbound envelopes to handlers that mutate the Registry
// and Directory and fan results out through the Engine. It also owns the
// connect/disconnect lifecycle transitions.
type Router struct {
	registry  *Registry
	directory *Directory
	engine    *Engine
	presence  *Publisher
	stats     *stats.Collector
	log       *slog.Logger
	now       func() time.Time
}

func NewRouter(registry *Registry, directory *Directory, engine *Engine, presence *Publisher, collector *stats.Collector, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		registry:  registry,
		directory: directory,
		engine:    engine,
		presence:  presence,
		stats:     collector,
		log:       logger,
		now:       time.Now,
	}
}

// Connected registers a fresh connection and pushes the
// connection-established greeting with a stats snapshot.
func (r *Router) Connected(sender Sender) (*Connection, error) {
	conn, err := r.registry.Register(sender)
	if err != nil {
		return nil, err
	}

	r.stats.ConnectionOpened()
	metrics.ConnectionsTotal.Inc()
	r.stats.Log(stats.LevelInfo, fmt.Sprintf("Client %s connected", conn.ID()), "System")

	r.engine.Unicast(conn.ID(), ConnectionEstablished{
		Kind:     KindConnectionEstablished,
		ClientID: conn.ID(),
		Stats:    r.snapshot(),
	})
	return conn, nil
}

// Disconnected purges the connection and performs the leave-room cascade for
// every room it had joined: remaining participants are notified, emptied
// rooms are destroyed, and one global room-list refresh follows. No reply is
// attempted toward the closed connection.
func (r *Router) Disconnected(connID string) {
	conn, ok := r.registry.Get(connID)
	if !ok {
		return
	}
	duration := r.now().Sub(conn.ConnectedAt())
	r.stats.Log(stats.LevelInfo,
		fmt.Sprintf("Client %s disconnected after %ds", connID, int(duration.Seconds())), "System")

	for _, roomID := range r.registry.Unregister(connID) {
		room, ok := r.directory.Get(roomID)
		if !ok {
			continue
		}
		if _, deleted := r.directory.RemoveParticipant(room, connID); !deleted {
			r.engine.Roomcast(roomID, ParticipantLeft{
				Kind:             KindParticipantLeft,
				ParticipantID:    connID,
				ParticipantCount: room.ParticipantCount(),
			}, "")
		}
	}
	r.presence.PublishRoomList()
}

// Dispatch routes one envelope. Unknown kinds are ignored; a handler panic
// is contained here so a fault can never take down the dispatch loop or
// unrelated connections.
func (r *Router) Dispatch(connID string, env Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic in envelope handler",
				"kind", env.Kind, "conn_id", connID,
				"recover", rec, "stack", string(debug.Stack()))
		}
	}()

	conn, ok := r.registry.Get(connID)
	if !ok {
		// The connection raced with its own disconnect; drop the envelope.
		return
	}

	handler, ok := r.handlerFor(env.Kind)
	if !ok {
		return
	}

	metrics.EnvelopesTotal.WithLabelValues(string(env.Kind)).Inc()
	r.stats.MessageRelayed()
	handler(conn, env)
}

func (r *Router) handlerFor(kind Kind) (func(*Connection, Envelope), bool) {
	switch kind {
	case KindCreateRoom:
		return r.handleCreateRoom, true
	case KindJoinRoom:
		return r.handleJoinRoom, true
	case KindLeaveRoom:
		return r.handleLeaveRoom, true
	case KindGetRooms:
		return r.handleGetRooms, true
	case KindOffer, KindAnswer, KindCandidate:
		return r.handleNegotiation, true
	case KindChatMessage:
		return r.handleChatMessage, true
	case KindMediaState:
		return r.handleMediaState, true
	case KindAuthenticate:
		return r.handleAuthenticate, true
	case KindGetServerStats:
		return r.handleGetServerStats, true
	case KindGetLogs:
		return r.handleGetLogs, true
	default:
		return nil, false
	}
}

func (r *Router) handleCreateRoom(conn *Connection, env Envelope) {
	room, err := r.directory.CreateRoom(env.RoomName)
	if err != nil {
		r.log.Error("failed to create room", "err", err)
		return
	}
	r.directory.AddParticipant(room, conn.ID(), true)
	conn.joinedRoom(room.ID())

	r.stats.RoomCreated()
	metrics.RoomsCreatedTotal.Inc()
	r.stats.Log(stats.LevelInfo,
		fmt.Sprintf("Room %q created by %s", room.Name(), conn.ID()), "System")

	r.engine.Unicast(conn.ID(), RoomCreated{
		Kind: KindRoomCreated,
		Room: RoomCreatedInfo{
			ID:               room.ID(),
			Name:             room.Name(),
			Passkey:          room.Passkey(),
			ParticipantCount: room.ParticipantCount(),
			CreatedAt:        room.CreatedAt(),
		},
	})
	r.presence.PublishRoomList()
}

func (r *Router) handleJoinRoom(conn *Connection, env Envelope) {
	room, ok := r.directory.FindByPasskey(env.Passkey)
	if !ok {
		r.engine.Unicast(conn.ID(), JoinRoomError{
			Kind:  KindJoinRoomError,
			Error: "Invalid passkey",
		})
		return
	}

	r.directory.AddParticipant(room, conn.ID(), false)
	conn.joinedRoom(room.ID())

	r.engine.Unicast(conn.ID(), RoomJoined{
		Kind: KindRoomJoined,
		Room: RoomJoinedInfo{
			ID:               room.ID(),
			Name:             room.Name(),
			ParticipantCount: room.ParticipantCount(),
			Messages:         room.Messages(),
			CreatedAt:        room.CreatedAt(),
		},
	})
	r.engine.Roomcast(room.ID(), ParticipantJoined{
		Kind:             KindParticipantJoined,
		ParticipantID:    conn.ID(),
		ParticipantCount: room.ParticipantCount(),
	}, conn.ID())
	r.presence.PublishRoomList()
}

func (r *Router) handleLeaveRoom(conn *Connection, env Envelope) {
	room, ok := r.directory.Get(env.RoomID)
	if !ok {
		return
	}
	removed, deleted := r.directory.RemoveParticipant(room, conn.ID())
	if !removed {
		return
	}
	conn.leftRoom(env.RoomID)

	r.engine.Unicast(conn.ID(), RoomLeft{
		Kind:   KindRoomLeft,
		RoomID: env.RoomID,
	})
	if !deleted {
		r.engine.Roomcast(env.RoomID, ParticipantLeft{
			Kind:             KindParticipantLeft,
			ParticipantID:    conn.ID(),
			ParticipantCount: room.ParticipantCount(),
		}, "")
	}
	r.presence.PublishRoomList()
}

func (r *Router) handleGetRooms(conn *Connection, _ Envelope) {
	r.engine.Unicast(conn.ID(), RoomsList{
		Kind:  KindRoomsList,
		Rooms: r.directory.Summaries(),
	})
}

// handleNegotiation relays an offer/answer/candidate payload verbatim,
// tagged with the sender id. An explicit target wins over the room; a
// missing target connection is a silent no-op.
func (r *Router) handleNegotiation(conn *Connection, env Envelope) {
	relay := NegotiationRelay{
		Kind:    env.Kind,
		Payload: env.Payload,
		From:    conn.ID(),
	}
	if env.To != "" {
		relay.To = env.To
		r.engine.Unicast(env.To, relay)
		return
	}
	r.engine.Roomcast(env.RoomID, relay, conn.ID())
}

func (r *Router) handleChatMessage(conn *Connection, env Envelope) {
	room, ok := r.directory.Get(env.RoomID)
	if !ok {
		return
	}
	if _, ok := room.Participant(conn.ID()); !ok {
		return
	}

	id, err := NewChatMessageID()
	if err != nil {
		r.log.Error("failed to generate chat message id", "err", err)
		return
	}
	msg := ChatMessage{
		ID:            id,
		ParticipantID: conn.ID(),
		Text:          env.Message,
		Timestamp:     r.now(),
	}
	r.directory.AppendChat(room, msg)

	// Chat goes to every participant, sender included.
	r.engine.Roomcast(env.RoomID, ChatMessagePush{
		Kind:    KindChatMessagePush,
		Message: msg,
	}, "")
}

func (r *Router) handleMediaState(conn *Connection, env Envelope) {
	if env.MediaState == nil {
		return
	}
	room, ok := r.directory.Get(env.RoomID)
	if !ok {
		return
	}
	p, ok := room.Participant(conn.ID())
	if !ok {
		return
	}
	p.Media = *env.MediaState

	r.engine.Roomcast(env.RoomID, MediaStateChanged{
		Kind:          KindMediaStateChanged,
		ParticipantID: conn.ID(),
		MediaState:    *env.MediaState,
	}, conn.ID())
}

// handleAuthenticate stores the asserted identity as given. Validation is
// the identity service's job, not the relay's.
func (r *Router) handleAuthenticate(conn *Connection, env Envelope) {
	if env.User == nil {
		return
	}
	conn.setIdentity(env.User)
	r.stats.Log(stats.LevelInfo,
		fmt.Sprintf("User authenticated: %s (%s)", env.User.Email, env.User.Role), env.User.Name)

	r.engine.Unicast(conn.ID(), AuthenticationSuccess{
		Kind: KindAuthSuccess,
		User: *env.User,
	})
}

func (r *Router) handleGetServerStats(conn *Connection, _ Envelope) {
	r.engine.Unicast(conn.ID(), ServerStats{
		Kind:  KindServerStats,
		Stats: r.snapshot(),
	})
}

func (r *Router) handleGetLogs(conn *Connection, env Envelope) {
	r.engine.Unicast(conn.ID(), ServerLogs{
		Kind: KindServerLogs,
		Logs: r.stats.Logs(env.Limit, env.Level),
	})
}

func (r *Router) snapshot() stats.Snapshot {
	return r.stats.Snapshot(r.registry.Len(), r.directory.Len(), r.registry.AuthenticatedCount())
}
