package arenaserver

import (
	"encoding/json"
	"net/http"

	"github.com/mwalcott/arena/internal/game/arena"
)

// healthResponse is the process status body.
type healthResponse struct {
	Status string `json:"status"`
	Rooms  int    `json:"rooms"`
}

// HealthHandler reports process status: liveness plus the count of active
// rooms. It reads the Store without mutating it.
type HealthHandler struct {
	store          *arena.Store
	allowedOrigins []string
}

// NewHealthHandler creates a HealthHandler.
//
// Precondition: store must be non-nil.
func NewHealthHandler(store *arena.Store, allowedOrigins []string) *HealthHandler {
	return &HealthHandler{store: store, allowedOrigins: allowedOrigins}
}

// ServeHTTP answers GET with {"status":"healthy","rooms":N}.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.applyCORS(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status: "healthy",
		Rooms:  h.store.RoomCount(),
	})
}

func (h *HealthHandler) applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	for _, o := range h.allowedOrigins {
		if o == "*" || o == origin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			return
		}
	}
}
