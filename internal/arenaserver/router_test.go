package arenaserver

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mwalcott/arena/internal/game/arena"
)

type sentEvent struct {
	ConnID  string
	Event   string
	Payload any
}

// fakeSender records every outbound event in order.
type fakeSender struct {
	mu     sync.Mutex
	events []sentEvent
}

func (f *fakeSender) Send(connID, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{ConnID: connID, Event: event, Payload: payload})
}

func (f *fakeSender) all() []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEvent(nil), f.events...)
}

func (f *fakeSender) byConn(connID string) []sentEvent {
	var out []sentEvent
	for _, e := range f.all() {
		if e.ConnID == connID {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
}

// testSource returns fixed midpoint draws so respawn positions are known.
type testSource struct{}

func (testSource) Intn(n int) int { return n / 2 }

func (testSource) Float64() float64 { return 0.5 }

var routerNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestRouter(t *testing.T) (*Router, *fakeSender, *arena.Store) {
	t.Helper()
	store := arena.NewStore(arena.DefaultSettings(), testSource{}, arena.DefaultMaxPlayers)
	sender := &fakeSender{}
	r := NewRouter(store, "1234", sender.Send, zap.NewNop())
	r.now = func() time.Time { return routerNow }
	return r, sender, store
}

func frame(t *testing.T, event string, payload any) []byte {
	t.Helper()
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		data = raw
	}
	out, err := json.Marshal(Envelope{Event: event, Data: data})
	require.NoError(t, err)
	return out
}

func join(t *testing.T, r *Router, connID, roomID string) {
	t.Helper()
	var payload any
	if roomID != "" {
		payload = JoinRoomPayload{RoomID: roomID}
	}
	r.HandleFrame(connID, frame(t, EventJoinRoom, payload))
}

func intPtr(v int) *int { return &v }

func TestRouter_Connect(t *testing.T) {
	r, sender, _ := newTestRouter(t)

	r.HandleConnect("c1")

	events := sender.byConn("c1")
	require.Len(t, events, 1)
	assert.Equal(t, EventConnectionEstablished, events[0].Event)
	assert.Equal(t, ConnectionEstablishedPayload{SID: "c1"}, events[0].Payload)
}

func TestRouter_JoinDefaultRoom(t *testing.T) {
	r, sender, store := newTestRouter(t)

	// No payload at all: the default room applies.
	r.HandleFrame("a", frame(t, EventJoinRoom, nil))

	events := sender.byConn("a")
	require.Len(t, events, 1)
	require.Equal(t, EventGameState, events[0].Event)

	state, ok := events[0].Payload.(GameStatePayload)
	require.True(t, ok)
	assert.Equal(t, "1234", state.RoomID)
	assert.Equal(t, "a", state.PlayerID)
	assert.Len(t, state.Players, 1)
	assert.Equal(t, arena.StatusWaiting, state.GameState.Status)

	room, ok := store.Room("1234")
	require.True(t, ok)
	assert.Equal(t, 1, room.PlayerCount())
}

// Scenario: A joins, then B joins the same room. B sees both players in its
// snapshot; A is told about B and only B.
func TestRouter_SecondJoinNotifiesFirst(t *testing.T) {
	r, sender, _ := newTestRouter(t)

	join(t, r, "a", "")
	sender.reset()
	join(t, r, "b", "")

	bEvents := sender.byConn("b")
	require.Len(t, bEvents, 1)
	require.Equal(t, EventGameState, bEvents[0].Event)
	state := bEvents[0].Payload.(GameStatePayload)
	assert.Len(t, state.Players, 2)
	assert.Contains(t, state.Players, "a")
	assert.Contains(t, state.Players, "b")

	aEvents := sender.byConn("a")
	require.Len(t, aEvents, 1)
	require.Equal(t, EventPlayerJoin, aEvents[0].Event)
	joinPayload := aEvents[0].Payload.(PlayerJoinPayload)
	assert.Equal(t, "b", joinPayload.Player.ID)
	assert.Equal(t, arena.MaxHealth, joinPayload.Player.Health)
}

// Scenario: a sixth join against a full room yields room_full for the
// requester only and leaves the membership untouched.
func TestRouter_RoomFull(t *testing.T) {
	r, sender, store := newTestRouter(t)

	for i := 0; i < arena.DefaultMaxPlayers; i++ {
		join(t, r, fmt.Sprintf("c%d", i), "")
	}
	sender.reset()

	join(t, r, "late", "")

	events := sender.all()
	require.Len(t, events, 1)
	assert.Equal(t, "late", events[0].ConnID)
	assert.Equal(t, EventRoomFull, events[0].Event)

	room, _ := store.Room("1234")
	assert.Equal(t, arena.DefaultMaxPlayers, room.PlayerCount())
}

func TestRouter_RejoinWhileBound(t *testing.T) {
	r, sender, store := newTestRouter(t)

	join(t, r, "a", "1111")
	join(t, r, "w", "1111")
	sender.reset()

	join(t, r, "a", "2222")

	// The witness in the old room is told a left before anything else.
	wEvents := sender.byConn("w")
	require.Len(t, wEvents, 1)
	assert.Equal(t, EventPlayerLeave, wEvents[0].Event)
	assert.Equal(t, PlayerLeavePayload{PlayerID: "a"}, wEvents[0].Payload)

	aEvents := sender.byConn("a")
	require.Len(t, aEvents, 1)
	require.Equal(t, EventGameState, aEvents[0].Event)
	assert.Equal(t, "2222", aEvents[0].Payload.(GameStatePayload).RoomID)

	old, _ := store.Room("1111")
	assert.Equal(t, 1, old.PlayerCount())
	room, ok := store.RoomOf("a")
	require.True(t, ok)
	assert.Equal(t, "2222", room.Code())
}

func TestRouter_PlayerUpdate(t *testing.T) {
	r, sender, _ := newTestRouter(t)
	join(t, r, "a", "")
	join(t, r, "b", "")
	sender.reset()

	r.HandleFrame("a", frame(t, EventPlayerUpdate, PlayerUpdatePayload{
		Position: &arena.Vector3{X: 1, Y: 2, Z: 3},
		Rotation: &arena.Vector3{Y: 0.5},
		Health:   intPtr(80),
	}))

	// Sender excluded, the other member gets the refreshed state.
	assert.Empty(t, sender.byConn("a"))
	bEvents := sender.byConn("b")
	require.Len(t, bEvents, 1)
	require.Equal(t, EventPlayerState, bEvents[0].Event)
	player := bEvents[0].Payload.(PlayerStatePayload).Player
	assert.Equal(t, "a", player.ID)
	assert.Equal(t, arena.Vector3{X: 1, Y: 2, Z: 3}, player.Position)
	assert.Equal(t, 80, player.Health)
}

func TestRouter_PlayerUpdateUnbound(t *testing.T) {
	r, sender, _ := newTestRouter(t)

	r.HandleFrame("ghost", frame(t, EventPlayerUpdate, PlayerUpdatePayload{
		Position: &arena.Vector3{},
		Rotation: &arena.Vector3{},
		Health:   intPtr(50),
	}))

	assert.Empty(t, sender.all())
}

func TestRouter_PlayerUpdateMissingField(t *testing.T) {
	r, sender, store := newTestRouter(t)
	join(t, r, "a", "")
	join(t, r, "b", "")
	sender.reset()

	r.HandleFrame("a", frame(t, EventPlayerUpdate, map[string]any{
		"position": map[string]float64{"x": 1},
		"health":   50,
	}))

	assert.Empty(t, sender.all())
	room, _ := store.Room("1234")
	player, _ := room.Player("a")
	assert.Equal(t, arena.MaxHealth, player.Health, "invalid update must not mutate state")
}

func TestRouter_PlayerShot(t *testing.T) {
	r, sender, _ := newTestRouter(t)
	join(t, r, "a", "")
	join(t, r, "b", "")
	sender.reset()

	r.HandleFrame("a", frame(t, EventPlayerShot, PlayerShotPayload{
		TargetID: "b",
		Damage:   intPtr(30),
	}))

	// Damage goes to the whole room, both participants included.
	want := PlayerDamagePayload{TargetID: "b", SourceID: "a", Damage: 30, Health: 70}
	for _, conn := range []string{"a", "b"} {
		events := sender.byConn(conn)
		require.Len(t, events, 1, "connection %s", conn)
		assert.Equal(t, EventPlayerDamage, events[0].Event)
		assert.Equal(t, want, events[0].Payload)
	}
}

// Scenario: an overkill shot produces damage with health 0, then the kill,
// then the victim is already respawned at full health inside the bounds.
func TestRouter_PlayerShotKill(t *testing.T) {
	r, sender, store := newTestRouter(t)
	join(t, r, "a", "")
	join(t, r, "b", "")
	sender.reset()

	r.HandleFrame("a", frame(t, EventPlayerShot, PlayerShotPayload{
		TargetID: "b",
		Damage:   intPtr(150),
	}))

	for _, conn := range []string{"a", "b"} {
		events := sender.byConn(conn)
		require.Len(t, events, 2, "connection %s", conn)

		require.Equal(t, EventPlayerDamage, events[0].Event)
		damage := events[0].Payload.(PlayerDamagePayload)
		assert.Equal(t, 0, damage.Health, "clients must see health reach zero before the respawn")

		require.Equal(t, EventPlayerKill, events[1].Event)
		assert.Equal(t, PlayerKillPayload{KillerID: "a", VictimID: "b"}, events[1].Payload)
	}

	room, _ := store.Room("1234")
	shooter, _ := room.Player("a")
	assert.Equal(t, 1, shooter.Score)

	victim, _ := room.Player("b")
	assert.Equal(t, arena.MaxHealth, victim.Health)
	assert.Equal(t, 2.0, victim.Position.Y)
	assert.GreaterOrEqual(t, victim.Position.X, -10.0)
	assert.LessOrEqual(t, victim.Position.X, 10.0)
	assert.GreaterOrEqual(t, victim.Position.Z, -10.0)
	assert.LessOrEqual(t, victim.Position.Z, 10.0)
}

func TestRouter_PlayerShotUnknownTarget(t *testing.T) {
	r, sender, _ := newTestRouter(t)
	join(t, r, "a", "")
	sender.reset()

	r.HandleFrame("a", frame(t, EventPlayerShot, PlayerShotPayload{
		TargetID: "ghost",
		Damage:   intPtr(30),
	}))

	assert.Empty(t, sender.all(), "unknown target is dropped silently")
}

func TestRouter_PlayerShotTargetInOtherRoom(t *testing.T) {
	r, sender, store := newTestRouter(t)
	join(t, r, "a", "1111")
	join(t, r, "b", "2222")
	sender.reset()

	r.HandleFrame("a", frame(t, EventPlayerShot, PlayerShotPayload{
		TargetID: "b",
		Damage:   intPtr(30),
	}))

	assert.Empty(t, sender.all())
	room, _ := store.Room("2222")
	b, _ := room.Player("b")
	assert.Equal(t, arena.MaxHealth, b.Health)
}

func TestRouter_PlayerShotMissingDamage(t *testing.T) {
	r, sender, _ := newTestRouter(t)
	join(t, r, "a", "")
	join(t, r, "b", "")
	sender.reset()

	r.HandleFrame("a", frame(t, EventPlayerShot, map[string]any{"target_id": "b"}))

	assert.Empty(t, sender.all())
}

// Scenario: A disconnects while rooming with B; B is notified, and a later
// update from A is dropped without error.
func TestRouter_Disconnect(t *testing.T) {
	r, sender, store := newTestRouter(t)
	join(t, r, "a", "")
	join(t, r, "b", "")
	sender.reset()

	r.HandleDisconnect("a")

	events := sender.all()
	require.Len(t, events, 1)
	assert.Equal(t, "b", events[0].ConnID)
	assert.Equal(t, EventPlayerLeave, events[0].Event)
	assert.Equal(t, PlayerLeavePayload{PlayerID: "a"}, events[0].Payload)

	room, _ := store.Room("1234")
	assert.Equal(t, 1, room.PlayerCount())

	sender.reset()
	r.HandleFrame("a", frame(t, EventPlayerUpdate, PlayerUpdatePayload{
		Position: &arena.Vector3{},
		Rotation: &arena.Vector3{},
		Health:   intPtr(10),
	}))
	assert.Empty(t, sender.all())

	// A second disconnect for the same id is a no-op.
	r.HandleDisconnect("a")
	assert.Empty(t, sender.all())
}

func TestRouter_MalformedFrame(t *testing.T) {
	r, sender, _ := newTestRouter(t)
	join(t, r, "a", "")
	sender.reset()

	r.HandleFrame("a", []byte("{not json"))
	r.HandleFrame("a", frame(t, "teleport_to_moon", nil))

	assert.Empty(t, sender.all())
}
