// Package arenaserver provides the network-facing layer of the arena game
// server: typed event schemas, the event router that turns inbound client
// events into room mutations and outbound fan-out, the WebSocket hub, and
// the process status endpoint.
package arenaserver

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mwalcott/arena/internal/game/arena"
)

// Inbound event names.
const (
	EventJoinRoom     = "join_room"
	EventPlayerUpdate = "player_update"
	EventPlayerShot   = "player_shot"
)

// Outbound event names.
const (
	EventConnectionEstablished = "connection_established"
	EventRoomFull              = "room_full"
	EventGameState             = "game_state"
	EventPlayerJoin            = "player_join"
	EventPlayerLeave           = "player_leave"
	EventPlayerState           = "player_state"
	EventPlayerDamage          = "player_damage"
	EventPlayerKill            = "player_kill"
)

// Envelope is the wire frame for inbound events: a name plus an opaque
// payload decoded per event.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinRoomPayload is the join_room request. RoomID is optional; the router
// substitutes the configured default room when it is empty.
type JoinRoomPayload struct {
	RoomID string `json:"room_id"`
}

// PlayerUpdatePayload is the player_update request. All fields are required;
// pointers distinguish absent fields from zero values.
type PlayerUpdatePayload struct {
	Position *arena.Vector3 `json:"position"`
	Rotation *arena.Vector3 `json:"rotation"`
	Health   *int           `json:"health"`
}

// Validate reports the first missing required field.
func (p *PlayerUpdatePayload) Validate() error {
	if p.Position == nil {
		return errors.New("player_update missing position")
	}
	if p.Rotation == nil {
		return errors.New("player_update missing rotation")
	}
	if p.Health == nil {
		return errors.New("player_update missing health")
	}
	return nil
}

// PlayerShotPayload is the player_shot request. Both fields are required.
type PlayerShotPayload struct {
	TargetID string `json:"target_id"`
	Damage   *int   `json:"damage"`
}

// Validate reports the first missing required field.
func (p *PlayerShotPayload) Validate() error {
	if p.TargetID == "" {
		return errors.New("player_shot missing target_id")
	}
	if p.Damage == nil {
		return errors.New("player_shot missing damage")
	}
	return nil
}

// ConnectionEstablishedPayload acknowledges a new connection with its
// server-assigned id.
type ConnectionEstablishedPayload struct {
	SID string `json:"sid"`
}

// GameStatePayload is the full room snapshot sent to a joining connection.
type GameStatePayload struct {
	RoomID    string                       `json:"room_id"`
	PlayerID  string                       `json:"player_id"`
	Players   map[string]arena.PlayerState `json:"players"`
	GameState arena.GameState              `json:"game_state"`
}

// PlayerJoinPayload announces a new room member to the existing ones.
type PlayerJoinPayload struct {
	Player arena.PlayerState `json:"player"`
}

// PlayerLeavePayload announces a departure to the remaining room members.
type PlayerLeavePayload struct {
	PlayerID string `json:"player_id"`
}

// PlayerStatePayload carries one player's refreshed state to the rest of
// the room.
type PlayerStatePayload struct {
	Player arena.PlayerState `json:"player"`
}

// PlayerDamagePayload reports a resolved hit to the whole room.
type PlayerDamagePayload struct {
	TargetID string `json:"target_id"`
	SourceID string `json:"source_id"`
	Damage   int    `json:"damage"`
	Health   int    `json:"health"`
}

// PlayerKillPayload reports an elimination to the whole room.
type PlayerKillPayload struct {
	KillerID string `json:"killer_id"`
	VictimID string `json:"victim_id"`
}

// decodePayload decodes an event payload into dst. A nil payload decodes as
// an empty object so that events with all-optional fields may omit data.
func decodePayload(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	return nil
}
