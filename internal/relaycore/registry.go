package relaycore

import (
	"errors"
	"time"
)

// Sentinel send failures a Sender may report. The broadcast engine treats
// every send failure as a silent drop; the distinction only feeds metrics.
var (
	ErrSendQueueFull = errors.New("send queue full")
	ErrSendClosed    = errors.New("transport closed")
)

// Sender is the opaque send capability of a connection. Send must not block
// the dispatch loop; implementations hand the message to a per-connection
// queue and report failure instead of waiting.
type Sender interface {
	Send(v any) error
}

// Connection is one live signaling channel. Owned by the Registry; the room
// ids in rooms always mirror the participant entries held by the Directory.
type Connection struct {
	id          string
	sender      Sender
	rooms       map[string]struct{}
	connectedAt time.Time

	// identity is the asserted user, stored unvalidated by authenticate.
	identity *Identity
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) ConnectedAt() time.Time { return c.connectedAt }

func (c *Connection) Identity() *Identity { return c.identity }

// RoomIDs returns a snapshot of the connection's memberships.
func (c *Connection) RoomIDs() []string {
	ids := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		ids = append(ids, id)
	}
	return ids
}

func (c *Connection) joinedRoom(roomID string) { c.rooms[roomID] = struct{}{} }
func (c *Connection) leftRoom(roomID string)   { delete(c.rooms, roomID) }
func (c *Connection) setIdentity(id *Identity) { c.identity = id }

// Registry tracks live connections by id. Single-goroutine owned; see the
// package doc.
type Registry struct {
	conns map[string]*Connection
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*Connection),
		now:   time.Now,
	}
}

// Register admits a new connection under a fresh id.
func (r *Registry) Register(sender Sender) (*Connection, error) {
	id, err := NewConnectionID()
	if err != nil {
		return nil, err
	}
	conn := &Connection{
		id:          id,
		sender:      sender,
		rooms:       make(map[string]struct{}),
		connectedAt: r.now(),
	}
	r.conns[id] = conn
	return conn, nil
}

func (r *Registry) Get(id string) (*Connection, bool) {
	conn, ok := r.conns[id]
	return conn, ok
}

// Unregister removes the connection and returns the room ids it had joined
// so the caller can cascade the membership cleanup.
func (r *Registry) Unregister(id string) []string {
	conn, ok := r.conns[id]
	if !ok {
		return nil
	}
	delete(r.conns, id)
	return conn.RoomIDs()
}

func (r *Registry) Len() int { return len(r.conns) }

// ConnectionIDs returns a snapshot of all live connection ids.
func (r *Registry) ConnectionIDs() []string {
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}

// AuthenticatedCount reports how many live connections asserted an identity.
func (r *Registry) AuthenticatedCount() int {
	n := 0
	for _, conn := range r.conns {
		if conn.identity != nil {
			n++
		}
	}
	return n
}
