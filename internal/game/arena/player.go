// Package arena provides the room and player state core for the arena
// game server: room membership, capacity enforcement, combat damage,
// and respawn placement.
package arena

import "time"

// Vector3 is a position or rotation in arena space. Value type, no identity.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// MaxHealth is the health a player spawns and respawns with.
const MaxHealth = 100

// PlayerState is the mutable game state owned by one connection within one
// room. It is created on join, mutated by update and shot events, and
// destroyed on disconnect.
//
// Invariant: 0 <= Health <= MaxHealth; Score >= 0.
type PlayerState struct {
	// ID is the connection id, stable for the connection's lifetime.
	ID       string  `json:"id"`
	Position Vector3 `json:"position"`
	Rotation Vector3 `json:"rotation"`
	Health   int     `json:"health"`
	// Weapon is an opaque weapon tag; the server never interprets it.
	Weapon string `json:"weapon"`
	Score  int    `json:"score"`
	// LastUpdate is seconds since the Unix epoch with fractional part,
	// refreshed on every state mutation for this player.
	LastUpdate float64 `json:"last_update"`
}

// GameState is the per-room session record.
type GameState struct {
	// Status is the room phase. Only "waiting" is produced today.
	Status string `json:"status"`
	// StartTime is seconds since the Unix epoch, nil until a match starts.
	StartTime *float64 `json:"start_time"`
}

// StatusWaiting is the initial room phase: players may join freely.
const StatusWaiting = "waiting"

// clampHealth bounds h to [0, MaxHealth].
func clampHealth(h int) int {
	if h < 0 {
		return 0
	}
	if h > MaxHealth {
		return MaxHealth
	}
	return h
}

// unixSeconds converts an instant to fractional seconds since the epoch.
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
