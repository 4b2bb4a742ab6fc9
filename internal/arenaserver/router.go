package arenaserver

import (
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mwalcott/arena/internal/game/arena"
)

// SendFunc delivers one named event to one connection. Implementations must
// not block: the hub's per-connection send buffers absorb fan-out.
type SendFunc func(connID, event string, payload any)

// Router translates inbound client events into room mutations and decides
// the recipients and payload of every resulting outbound event.
//
// All room state lives in the Store; the Router itself is stateless apart
// from its wiring, so handler invocations for different connections may run
// concurrently.
type Router struct {
	store       *arena.Store
	defaultRoom string
	send        SendFunc
	logger      *zap.Logger
	now         func() time.Time
}

// NewRouter creates a Router.
//
// Precondition: store, send, and logger must be non-nil; defaultRoom must
// be non-empty.
func NewRouter(store *arena.Store, defaultRoom string, send SendFunc, logger *zap.Logger) *Router {
	return &Router{
		store:       store,
		defaultRoom: defaultRoom,
		send:        send,
		logger:      logger,
		now:         time.Now,
	}
}

// HandleConnect acknowledges a new connection with its assigned id.
// The connection starts unbound: it belongs to no room until join_room.
func (r *Router) HandleConnect(connID string) {
	r.logger.Info("client connected", zap.String("sid", connID))
	r.send(connID, EventConnectionEstablished, ConnectionEstablishedPayload{SID: connID})
}

// HandleDisconnect releases the connection's room slot, if any, and notifies
// the remaining room members. Idempotent: repeated calls for the same id are
// no-ops.
func (r *Router) HandleDisconnect(connID string) {
	r.logger.Info("client disconnected", zap.String("sid", connID))

	room, player, ok := r.store.RemovePlayer(connID)
	if !ok {
		return
	}
	r.broadcast(room.PlayerIDs(), "", EventPlayerLeave, PlayerLeavePayload{PlayerID: player.ID})
}

// HandleFrame dispatches one inbound frame. Malformed frames and unknown
// events affect only themselves: they are logged and dropped.
func (r *Router) HandleFrame(connID string, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		r.logger.Warn("dropping malformed frame", zap.String("sid", connID), zap.Error(err))
		return
	}

	switch env.Event {
	case EventJoinRoom:
		r.handleJoinRoom(connID, env.Data)
	case EventPlayerUpdate:
		r.handlePlayerUpdate(connID, env.Data)
	case EventPlayerShot:
		r.handlePlayerShot(connID, env.Data)
	default:
		r.logger.Debug("dropping unknown event",
			zap.String("sid", connID),
			zap.String("event", env.Event),
		)
	}
}

// handleJoinRoom binds the connection to the requested room. A connection
// that is already bound leaves its old room first (the old room is notified)
// and then joins the new one.
func (r *Router) handleJoinRoom(connID string, data json.RawMessage) {
	var payload JoinRoomPayload
	if err := decodePayload(data, &payload); err != nil {
		r.logger.Warn("dropping join_room", zap.String("sid", connID), zap.Error(err))
		return
	}
	code := payload.RoomID
	if code == "" {
		code = r.defaultRoom
	}

	result, err := r.store.Join(connID, code, r.now())

	// The forced departure from a previous room happens regardless of the
	// join outcome; tell that room first.
	if result.Left != nil {
		r.broadcast(result.Left.Room.PlayerIDs(), "", EventPlayerLeave,
			PlayerLeavePayload{PlayerID: result.Left.Player.ID})
	}

	if errors.Is(err, arena.ErrRoomFull) {
		r.logger.Info("join rejected, room full",
			zap.String("sid", connID),
			zap.String("room", code),
		)
		r.send(connID, EventRoomFull, struct{}{})
		return
	}
	if err != nil {
		r.logger.Warn("join failed", zap.String("sid", connID), zap.String("room", code), zap.Error(err))
		return
	}

	r.logger.Info("player joined room",
		zap.String("sid", connID),
		zap.String("room", code),
		zap.Int("players", len(result.Players)),
	)

	r.send(connID, EventGameState, GameStatePayload{
		RoomID:    code,
		PlayerID:  connID,
		Players:   result.Players,
		GameState: result.Game,
	})
	r.broadcast(result.Room.PlayerIDs(), connID, EventPlayerJoin, PlayerJoinPayload{Player: result.Player})
}

// handlePlayerUpdate overwrites the sender's transform and health and fans
// the refreshed state out to the rest of the room. Updates from unbound
// connections are dropped silently.
func (r *Router) handlePlayerUpdate(connID string, data json.RawMessage) {
	var payload PlayerUpdatePayload
	if err := decodePayload(data, &payload); err != nil {
		r.logger.Warn("dropping player_update", zap.String("sid", connID), zap.Error(err))
		return
	}
	if err := payload.Validate(); err != nil {
		r.logger.Warn("dropping player_update", zap.String("sid", connID), zap.Error(err))
		return
	}

	room, ok := r.store.RoomOf(connID)
	if !ok {
		return
	}
	player, ok := room.ApplyUpdate(connID, *payload.Position, *payload.Rotation, *payload.Health, r.now())
	if !ok {
		return
	}

	r.broadcast(room.PlayerIDs(), connID, EventPlayerState, PlayerStatePayload{Player: player})
}

// handlePlayerShot resolves a shot against a target in the shooter's room.
// The damage event always precedes the kill event and the respawn, so
// clients observe health reach zero before the teleport.
func (r *Router) handlePlayerShot(connID string, data json.RawMessage) {
	var payload PlayerShotPayload
	if err := decodePayload(data, &payload); err != nil {
		r.logger.Warn("dropping player_shot", zap.String("sid", connID), zap.Error(err))
		return
	}
	if err := payload.Validate(); err != nil {
		r.logger.Warn("dropping player_shot", zap.String("sid", connID), zap.Error(err))
		return
	}

	room, ok := r.store.RoomOf(connID)
	if !ok {
		return
	}
	report, ok := room.ApplyShot(connID, payload.TargetID, *payload.Damage, r.now())
	if !ok {
		// Target not in the shooter's room; no error surfaced to the caller.
		return
	}

	members := room.PlayerIDs()
	r.broadcast(members, "", EventPlayerDamage, PlayerDamagePayload{
		TargetID: report.TargetID,
		SourceID: report.SourceID,
		Damage:   report.Damage,
		Health:   report.Health,
	})

	if report.Killed {
		r.logger.Info("player eliminated",
			zap.String("room", room.Code()),
			zap.String("killer", report.SourceID),
			zap.String("victim", report.TargetID),
		)
		r.broadcast(members, "", EventPlayerKill, PlayerKillPayload{
			KillerID: report.SourceID,
			VictimID: report.TargetID,
		})
	}
}

// broadcast sends an event to every id in ids, optionally skipping one.
func (r *Router) broadcast(ids []string, except, event string, payload any) {
	for _, id := range ids {
		if id == except {
			continue
		}
		r.send(id, event, payload)
	}
}
