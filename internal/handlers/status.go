package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/omega-realm/pokeidle/internal/logging"
	"github.com/omega-realm/pokeidle/internal/middleware"
)

// OnlineLister reports the players attached to this process
type OnlineLister interface {
	Online() []int64
}

// OnlineCounter reports players online across every process
type OnlineCounter interface {
	Count(ctx context.Context) (int64, error)
}

// HealthCheck is a named dependency probe
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type StatusHandler struct {
	hub      OnlineLister
	presence OnlineCounter
	checks   []HealthCheck
	log      *zap.Logger
}

// NewStatusHandler builds the status endpoints. presence may be nil.
func NewStatusHandler(hub OnlineLister, presence OnlineCounter, log *zap.Logger, checks ...HealthCheck) *StatusHandler {
	return &StatusHandler{hub: hub, presence: presence, checks: checks, log: logging.OrNop(log).Named("handlers")}
}

// OnlineResponse carries online player counts
type OnlineResponse struct {
	Local  int   `json:"local"`
	Global int64 `json:"global"`
}

// GetOnline returns how many players are connected here and across the cluster
func (h *StatusHandler) GetOnline(w http.ResponseWriter, r *http.Request) {
	local := len(h.hub.Online())
	resp := OnlineResponse{Local: local, Global: int64(local)}
	if h.presence != nil {
		count, err := h.presence.Count(r.Context())
		if err != nil {
			// fall back to the local count
			h.log.Warn("presence count failed", zap.Error(err))
		} else {
			resp.Global = count
		}
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Health runs every dependency probe with a short timeout
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}
	code := http.StatusOK
	for _, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			status[c.Name] = err.Error()
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		status[c.Name] = "ok"
	}
	middleware.WriteJSON(w, code, status)
}
