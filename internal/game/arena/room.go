package arena

import (
	"errors"
	"sync"
	"time"
)

// DefaultMaxPlayers is the room capacity used when no override is configured.
const DefaultMaxPlayers = 5

// ErrRoomFull is returned by AddPlayer when the room is at capacity.
var ErrRoomFull = errors.New("arena: room full")

// ErrAlreadyPresent is returned by AddPlayer when the connection id is
// already a member of the room.
var ErrAlreadyPresent = errors.New("arena: player already in room")

// Room is a bounded group of connections sharing one game session.
// All methods are safe for concurrent use; operations on distinct rooms
// never contend.
//
// Invariant: len(players) <= maxPlayers at all times.
type Room struct {
	code       string
	maxPlayers int
	settings   *Settings
	src        Source

	mu      sync.RWMutex
	players map[string]*PlayerState
	game    GameState
}

// ShotReport describes the outcome of one resolved shot.
type ShotReport struct {
	// TargetID and SourceID are the victim and shooter connection ids.
	TargetID string
	SourceID string
	// Damage is the amount applied, taken from the event verbatim.
	Damage int
	// Health is the target's health after damage and before any respawn.
	Health int
	// Killed reports whether Health reached zero, triggering a respawn.
	Killed bool
	// SourceScore is the shooter's score after the shot resolved.
	SourceScore int
}

// NewRoom creates an empty room in the waiting phase.
//
// Precondition: code must be non-empty; maxPlayers must be >= 1;
// settings and src must be non-nil.
func NewRoom(code string, maxPlayers int, settings *Settings, src Source) *Room {
	return &Room{
		code:       code,
		maxPlayers: maxPlayers,
		settings:   settings,
		src:        src,
		players:    make(map[string]*PlayerState),
		game:       GameState{Status: StatusWaiting},
	}
}

// Code returns the room code.
func (r *Room) Code() string { return r.code }

// MaxPlayers returns the fixed room capacity.
func (r *Room) MaxPlayers() int { return r.maxPlayers }

// AddPlayer creates a PlayerState at the spawn point and inserts it.
//
// Precondition: connID must be non-empty.
// Postcondition: Returns the created state, or ErrRoomFull when the room is
// at capacity or ErrAlreadyPresent when connID is already a member. On
// error no mutation occurs.
func (r *Room) AddPlayer(connID string, now time.Time) (PlayerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.players) >= r.maxPlayers {
		return PlayerState{}, ErrRoomFull
	}
	if _, exists := r.players[connID]; exists {
		return PlayerState{}, ErrAlreadyPresent
	}

	p := &PlayerState{
		ID:         connID,
		Position:   r.settings.SpawnPosition,
		Health:     r.settings.StartingHealth,
		Weapon:     r.settings.StartingWeapon,
		LastUpdate: unixSeconds(now),
	}
	r.players[connID] = p
	return *p, nil
}

// RemovePlayer deletes connID's state from the room.
//
// Postcondition: Returns the removed state and true, or false when connID
// was not a member. The room itself is never deleted, even when empty.
func (r *Room) RemovePlayer(connID string) (PlayerState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.players[connID]
	if !exists {
		return PlayerState{}, false
	}
	delete(r.players, connID)
	return *p, true
}

// ApplyUpdate overwrites connID's position, rotation, and health with the
// client-supplied values and refreshes the update timestamp. Values are not
// validated for physical plausibility; health is clamped to [0, MaxHealth]
// to hold the state invariant.
//
// Postcondition: Returns the updated state and true, or false when connID
// is not a member.
func (r *Room) ApplyUpdate(connID string, position, rotation Vector3, health int, now time.Time) (PlayerState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.players[connID]
	if !exists {
		return PlayerState{}, false
	}
	p.Position = position
	p.Rotation = rotation
	p.Health = clampHealth(health)
	p.LastUpdate = unixSeconds(now)
	return *p, true
}

// ApplyShot resolves sourceID shooting targetID for damage: the target's
// health drops (clamped at zero), and when it reaches exactly zero the
// shooter scores a kill and the target respawns immediately at a uniform
// random point inside the respawn bounds with full health.
//
// Precondition: sourceID must be a member (the caller resolved the room via
// the shooter's binding).
// Postcondition: Returns a ShotReport and true, or false when either
// participant is not a member, in which case no mutation occurs.
func (r *Room) ApplyShot(sourceID, targetID string, damage int, now time.Time) (ShotReport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	source, ok := r.players[sourceID]
	if !ok {
		return ShotReport{}, false
	}
	target, ok := r.players[targetID]
	if !ok {
		return ShotReport{}, false
	}

	target.Health = clampHealth(target.Health - damage)
	target.LastUpdate = unixSeconds(now)

	report := ShotReport{
		TargetID: targetID,
		SourceID: sourceID,
		Damage:   damage,
		Health:   target.Health,
	}

	if target.Health == 0 {
		report.Killed = true
		source.Score++

		// Unconditional immediate respawn: no death state survives the event.
		target.Health = MaxHealth
		target.Position = Vector3{
			X: uniformIn(r.src, r.settings.RespawnMinX, r.settings.RespawnMaxX),
			Y: r.settings.RespawnHeight,
			Z: uniformIn(r.src, r.settings.RespawnMinZ, r.settings.RespawnMaxZ),
		}
	}
	report.SourceScore = source.Score

	return report, true
}

// Player returns a copy of connID's state.
func (r *Room) Player(connID string) (PlayerState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.players[connID]
	if !exists {
		return PlayerState{}, false
	}
	return *p, true
}

// PlayerIDs returns the connection ids of all current members.
func (r *Room) PlayerIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.players))
	for id := range r.players {
		ids = append(ids, id)
	}
	return ids
}

// PlayerCount returns the number of members.
func (r *Room) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// Snapshot returns a copy of every member's state plus the game record.
// Used to build the game_state payload for a joining player.
func (r *Room) Snapshot() (map[string]PlayerState, GameState) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	players := make(map[string]PlayerState, len(r.players))
	for id, p := range r.players {
		players[id] = *p
	}
	return players, r.game
}
