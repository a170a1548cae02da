package api

import (
	"context"
	"log"
	"net/http"
	"time"
)

const defaultPingTimeout = 2 * time.Second

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness. When Store is set it also answers 503 while
// the event store cannot be reached.
type HealthHandler struct {
	Store       Pinger
	PingTimeout time.Duration
	Now         func() time.Time
	Logger      *log.Logger
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	timestamp := now().UTC().Format(time.RFC3339)

	if h.Store != nil {
		timeout := h.PingTimeout
		if timeout <= 0 {
			timeout = defaultPingTimeout
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := h.Store.Ping(ctx); err != nil {
			if h.Logger != nil {
				h.Logger.Printf("health check: %v", err)
			}
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":    statusStoreUnavailable,
				"timestamp": timestamp,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": timestamp,
	})
}
