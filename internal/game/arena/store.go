package arena

import (
	"fmt"
	"sync"
	"time"
)

// roomCodeSpan is the range of generated room codes: 4 decimal digits.
const (
	roomCodeMin  = 1000
	roomCodeSpan = 9000
)

// Store owns the set of active rooms and the connection Registry. It is the
// only writer of both, so the single-membership invariant (a connection id
// appears in at most one room) is enforced here.
//
// Rooms are never deleted: an empty room keeps its code and may be joined
// again. Safe for concurrent use; the store lock covers only the room map
// and registry, so operations inside distinct rooms do not contend.
type Store struct {
	settings   *Settings
	src        Source
	maxPlayers int

	registry *Registry

	// mu guards the room map only; it is never held across room
	// operations or event delivery.
	mu    sync.RWMutex
	rooms map[string]*Room
}

// JoinResult describes a completed join: the room joined, the created
// player, a snapshot of all members including the new one, and, when the
// connection was previously bound elsewhere, the room it left.
type JoinResult struct {
	Room    *Room
	Player  PlayerState
	Players map[string]PlayerState
	Game    GameState
	// Left is non-nil when the connection was bound to another room and was
	// removed from it before joining.
	Left *LeaveReport
}

// LeaveReport describes a player's departure from a room.
type LeaveReport struct {
	Room   *Room
	Player PlayerState
}

// NewStore creates an empty Store.
//
// Precondition: settings and src must be non-nil; maxPlayers must be >= 1.
func NewStore(settings *Settings, src Source, maxPlayers int) *Store {
	return &Store{
		settings:   settings,
		src:        src,
		maxPlayers: maxPlayers,
		registry:   NewRegistry(),
		rooms:      make(map[string]*Room),
	}
}

// CreateOrGet returns the room with the given caller-supplied code,
// allocating it in the waiting phase when absent.
//
// Precondition: code must be non-empty.
func (s *Store) CreateOrGet(code string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createOrGetLocked(code)
}

func (s *Store) createOrGetLocked(code string) *Room {
	if room, ok := s.rooms[code]; ok {
		return room
	}
	room := NewRoom(code, s.maxPlayers, s.settings, s.src)
	s.rooms[code] = room
	return room
}

// CreateRoom allocates a room under a random 4-digit code unique among
// currently active codes. Collisions are rejection-sampled; with 9000
// candidate codes the retry loop terminates quickly for any realistic
// room count.
func (s *Store) CreateRoom() *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := s.sampleCodeLocked()
	room := NewRoom(code, s.maxPlayers, s.settings, s.src)
	s.rooms[code] = room
	return room
}

func (s *Store) sampleCodeLocked() string {
	for {
		code := fmt.Sprintf("%d", roomCodeMin+s.src.Intn(roomCodeSpan))
		if _, taken := s.rooms[code]; !taken {
			return code
		}
	}
}

// Room returns the room with the given code.
func (s *Store) Room(code string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	return room, ok
}

// RoomCount returns the number of active rooms, empty rooms included.
// Read-only; used by the process status endpoint.
func (s *Store) RoomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// RoomOf resolves the room a connection is currently bound to via the
// registry, in O(1).
func (s *Store) RoomOf(connID string) (*Room, bool) {
	code, ok := s.registry.Lookup(connID)
	if !ok {
		return nil, false
	}
	return s.Room(code)
}

// Join binds connID to the room with the given code, creating the room if
// needed. A connection already bound elsewhere transparently leaves its old
// room first; the departure is reported in JoinResult.Left so the caller
// can notify the old room. When the target room is full the join performs
// no mutation beyond that departure and returns ErrRoomFull.
//
// Postcondition: on success connID is bound to exactly the target room; on
// ErrRoomFull connID is unbound.
func (s *Store) Join(connID, code string, now time.Time) (JoinResult, error) {
	var result JoinResult

	// Re-join while bound: leave the old room before joining the new one.
	if room, player, ok := s.RemovePlayer(connID); ok {
		result.Left = &LeaveReport{Room: room, Player: player}
	}

	room := s.CreateOrGet(code)

	player, err := room.AddPlayer(connID, now)
	if err != nil {
		return result, err
	}
	s.registry.Bind(connID, code)

	result.Room = room
	result.Player = player
	result.Players, result.Game = room.Snapshot()
	return result, nil
}

// RemovePlayer locates connID's room via the registry, deletes the player
// entry, and clears the binding. The room itself is kept even when it
// becomes empty. Idempotent: a second call for the same id is a no-op.
//
// Postcondition: Returns the room and removed state, or false when connID
// was in no room.
func (s *Store) RemovePlayer(connID string) (*Room, PlayerState, bool) {
	room, ok := s.RoomOf(connID)
	if !ok {
		return nil, PlayerState{}, false
	}
	s.registry.Unbind(connID)
	player, ok := room.RemovePlayer(connID)
	if !ok {
		return nil, PlayerState{}, false
	}
	return room, player, true
}
