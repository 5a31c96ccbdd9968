// Package signaling is the WebSocket surface of the relay: it upgrades
// connections, pumps messages, and feeds every inbound envelope through a
// single run-to-completion dispatch loop so relaycore state is never
// observed half-mutated.
package signaling
