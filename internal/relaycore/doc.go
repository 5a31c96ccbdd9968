// Package relaycore implements the signaling relay's state and dispatch:
// the connection registry, the room directory, envelope routing, broadcast
// fan-out and room-list presence.
//
// All mutable state in this package is owned by a single dispatch goroutine
// (see internal/signaling). Handlers run to completion one envelope at a
// time, so types here are deliberately unsynchronized.
package relaycore
