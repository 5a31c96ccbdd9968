// Package stats is the in-process metrics/log collaborator behind the
// get-server-stats and get-logs operations. It keeps snapshotable counters
// and a bounded ring of structured log events.
package stats

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Version is reported in server-stats replies.
const Version = "2.0.0"

// DefaultLogLimit is the number of entries returned when a get-logs query
// omits the limit.
const DefaultLogLimit = 100

const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Entry is one structured log event.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Actor     string    `json:"user"`
}

// Snapshot is a point-in-time view of server statistics. The live gauges
// (active connections, rooms, authenticated users) are supplied by the caller
// because the collector does not own that state.
type Snapshot struct {
	UptimeMillis       int64  `json:"uptime"`
	TotalConnections   uint64 `json:"totalConnections"`
	ActiveConnections  int    `json:"activeConnections"`
	TotalRooms         int    `json:"totalRooms"`
	TotalRoomsCreated  uint64 `json:"totalRoomsCreated"`
	TotalMessages      uint64 `json:"totalMessages"`
	AuthenticatedUsers int    `json:"authenticatedUsers"`
	Version            string `json:"version"`
}

// Collector accumulates monotonic counters and the log ring. Writes mirror to
// the provided slog.Logger so operational logs and the in-protocol read-back
// stay consistent.
type Collector struct {
	log     *slog.Logger
	clock   Clock
	started time.Time

	mu               sync.Mutex
	totalConnections uint64
	totalRooms       uint64
	totalMessages    uint64

	ring     []Entry
	capacity int
}

// New returns a Collector whose log ring holds at most capacity entries.
func New(logger *slog.Logger, capacity int) *Collector {
	return newCollector(logger, capacity, realClock{})
}

func newCollector(logger *slog.Logger, capacity int, clock Clock) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity <= 0 {
		capacity = 1
	}
	if clock == nil {
		clock = realClock{}
	}
	return &Collector{
		log:      logger,
		clock:    clock,
		started:  clock.Now(),
		capacity: capacity,
	}
}

func (c *Collector) ConnectionOpened() {
	c.mu.Lock()
	c.totalConnections++
	c.mu.Unlock()
}

func (c *Collector) RoomCreated() {
	c.mu.Lock()
	c.totalRooms++
	c.mu.Unlock()
}

func (c *Collector) MessageRelayed() {
	c.mu.Lock()
	c.totalMessages++
	c.mu.Unlock()
}

// Log appends a structured event to the ring, evicting the oldest entry when
// full, and mirrors it to the process logger.
func (c *Collector) Log(level, message, actor string) {
	entry := Entry{
		Timestamp: c.clock.Now(),
		Level:     normalizeLevel(level),
		Message:   message,
		Actor:     actor,
	}

	c.mu.Lock()
	c.ring = append(c.ring, entry)
	if len(c.ring) > c.capacity {
		c.ring = c.ring[len(c.ring)-c.capacity:]
	}
	c.mu.Unlock()

	c.log.Log(context.Background(), slogLevel(entry.Level), entry.Message, "actor", entry.Actor)
}

// Logs returns the most recent entries in arrival order. limit <= 0 means
// DefaultLogLimit. level, when non-empty, filters before the limit applies.
func (c *Collector) Logs(limit int, level string) []Entry {
	if limit <= 0 {
		limit = DefaultLogLimit
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	source := c.ring
	if level != "" {
		want := normalizeLevel(level)
		source = make([]Entry, 0, len(c.ring))
		for _, e := range c.ring {
			if e.Level == want {
				source = append(source, e)
			}
		}
	}

	if len(source) > limit {
		source = source[len(source)-limit:]
	}
	out := make([]Entry, len(source))
	copy(out, source)
	return out
}

// Snapshot reads the counters alongside the caller-supplied live gauges.
func (c *Collector) Snapshot(activeConnections, totalRooms, authenticatedUsers int) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		UptimeMillis:       c.clock.Now().Sub(c.started).Milliseconds(),
		TotalConnections:   c.totalConnections,
		ActiveConnections:  activeConnections,
		TotalRooms:         totalRooms,
		TotalRoomsCreated:  c.totalRooms,
		TotalMessages:      c.totalMessages,
		AuthenticatedUsers: authenticatedUsers,
		Version:            Version,
	}
}

func normalizeLevel(level string) string {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case LevelWarn, "WARNING":
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

func slogLevel(level string) slog.Level {
	switch level {
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
