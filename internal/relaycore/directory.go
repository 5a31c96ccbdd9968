package relaycore

import (
	"time"
)

// Participant binds a connection to a room. It never owns the connection;
// the id is resolved against the Registry at send time.
type Participant struct {
	ConnectionID string
	IsCreator    bool
	Media        MediaState
	JoinedAt     time.Time
}

// Room is one live call session. Owned by the Directory and deleted the
// moment its last participant leaves.
type Room struct {
	id        string
	name      string
	passkey   string
	createdAt time.Time

	participants map[string]*Participant
	messages     []ChatMessage
}

func (r *Room) ID() string           { return r.id }
func (r *Room) Name() string         { return r.name }
func (r *Room) Passkey() string      { return r.passkey }
func (r *Room) CreatedAt() time.Time { return r.createdAt }

func (r *Room) ParticipantCount() int { return len(r.participants) }

func (r *Room) Participant(connID string) (*Participant, bool) {
	p, ok := r.participants[connID]
	return p, ok
}

// ParticipantIDs returns a snapshot, so fan-out survives membership
// mutations triggered mid-iteration.
func (r *Room) ParticipantIDs() []string {
	ids := make([]string, 0, len(r.participants))
	for id := range r.participants {
		ids = append(ids, id)
	}
	return ids
}

// Messages returns a copy of the chat history in append order.
func (r *Room) Messages() []ChatMessage {
	out := make([]ChatMessage, len(r.messages))
	copy(out, r.messages)
	return out
}

func (r *Room) appendMessage(msg ChatMessage) { r.messages = append(r.messages, msg) }

// Directory owns all room records. Iteration-order-sensitive operations
// (FindByPasskey, Summaries) walk rooms in insertion order. Single-goroutine
// owned; see the package doc.
type Directory struct {
	rooms map[string]*Room
	order []string
	now   func() time.Time
}

func NewDirectory() *Directory {
	return &Directory{
		rooms: make(map[string]*Room),
		now:   time.Now,
	}
}

// CreateRoom mints a room with a fresh id and passkey, no participants and
// an empty history. The caller is responsible for adding the creator before
// control returns to the dispatch loop, or the empty room will be visible.
func (d *Directory) CreateRoom(name string) (*Room, error) {
	id, err := NewRoomID()
	if err != nil {
		return nil, err
	}
	passkey, err := NewPasskey()
	if err != nil {
		return nil, err
	}
	room := &Room{
		id:           id,
		name:         name,
		passkey:      passkey,
		createdAt:    d.now(),
		participants: make(map[string]*Participant),
	}
	d.rooms[id] = room
	d.order = append(d.order, id)
	return room, nil
}

func (d *Directory) Get(roomID string) (*Room, bool) {
	room, ok := d.rooms[roomID]
	return room, ok
}

// FindByPasskey returns the first room with the given passkey in insertion
// order. Passkeys are not unique; with a collision the older room wins.
func (d *Directory) FindByPasskey(passkey string) (*Room, bool) {
	for _, id := range d.order {
		if room, ok := d.rooms[id]; ok && room.passkey == passkey {
			return room, true
		}
	}
	return nil, false
}

// AddParticipant inserts or overwrites the membership entry. A re-join is
// not rejected: the entry is replaced wholesale, resetting media state and
// the joined-at timestamp.
func (d *Directory) AddParticipant(room *Room, connID string, isCreator bool) *Participant {
	p := &Participant{
		ConnectionID: connID,
		IsCreator:    isCreator,
		Media:        MediaState{Video: true, Audio: true},
		JoinedAt:     d.now(),
	}
	room.participants[connID] = p
	return p
}

// RemoveParticipant deletes the membership entry. When the room empties it
// is destroyed in the same step, so no caller ever observes an empty room.
// The second result reports whether the room was deleted.
func (d *Directory) RemoveParticipant(room *Room, connID string) (removed, deleted bool) {
	if _, ok := room.participants[connID]; !ok {
		return false, false
	}
	delete(room.participants, connID)
	if len(room.participants) > 0 {
		return true, false
	}
	d.deleteRoom(room.id)
	return true, true
}

func (d *Directory) deleteRoom(roomID string) {
	delete(d.rooms, roomID)
	for i, id := range d.order {
		if id == roomID {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// AppendChat records a chat message in the room history.
func (d *Directory) AppendChat(room *Room, msg ChatMessage) {
	room.appendMessage(msg)
}

// Summaries lists all rooms in insertion order.
func (d *Directory) Summaries() []RoomSummary {
	out := make([]RoomSummary, 0, len(d.order))
	for _, id := range d.order {
		room, ok := d.rooms[id]
		if !ok {
			continue
		}
		out = append(out, RoomSummary{
			ID:               room.id,
			Name:             room.name,
			ParticipantCount: len(room.participants),
			CreatedAt:        room.createdAt,
		})
	}
	return out
}

func (d *Directory) Len() int { return len(d.rooms) }
