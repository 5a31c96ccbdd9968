package relaycore

import (
	"errors"
	"log/slog"

	"github.com/warpvideo/signaling-relay/internal/metrics"
)

// Engine fans messages out to connection transports. Delivery is
// fire-and-forget: absent connections and failed sends are skipped, never
// retried, never surfaced to the sender.
type Engine struct {
	registry  *Registry
	directory *Directory
	log       *slog.Logger
}

func NewEngine(registry *Registry, directory *Directory, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{registry: registry, directory: directory, log: logger}
}

// Unicast best-effort sends msg to one connection.
func (e *Engine) Unicast(connID string, msg any) {
	conn, ok := e.registry.Get(connID)
	if !ok {
		metrics.DroppedSendsTotal.WithLabelValues("absent").Inc()
		return
	}
	e.deliver(conn, msg)
}

// Roomcast sends msg to every participant of the room except exclude.
// It iterates a snapshot of the participant set, so a membership mutation
// triggered by a send failure cannot corrupt the in-flight broadcast.
func (e *Engine) Roomcast(roomID string, msg any, exclude string) {
	room, ok := e.directory.Get(roomID)
	if !ok {
		return
	}
	for _, id := range room.ParticipantIDs() {
		if id == exclude {
			continue
		}
		e.Unicast(id, msg)
	}
}

// Broadcast sends msg to every live connection.
func (e *Engine) Broadcast(msg any) {
	for _, id := range e.registry.ConnectionIDs() {
		e.Unicast(id, msg)
	}
}

func (e *Engine) deliver(conn *Connection, msg any) {
	// A transport callback must never be able to break an in-flight fan-out
	// or the dispatch loop above it.
	defer func() {
		if rec := recover(); rec != nil {
			metrics.DroppedSendsTotal.WithLabelValues("panic").Inc()
			e.log.Error("panic in transport send", "conn_id", conn.id, "recover", rec)
		}
	}()

	err := conn.sender.Send(msg)
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, ErrSendQueueFull):
		metrics.DroppedSendsTotal.WithLabelValues("queue_full").Inc()
	case errors.Is(err, ErrSendClosed):
		metrics.DroppedSendsTotal.WithLabelValues("closed").Inc()
	default:
		metrics.DroppedSendsTotal.WithLabelValues("error").Inc()
	}
	e.log.Debug("dropped outbound message", "conn_id", conn.id, "err", err)
}
