package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"ieee-registration-bot/internal/jobs"
	"ieee-registration-bot/internal/logger"
)

// StatusSource is the read-only view of the engine the handler exposes.
type StatusSource interface {
	Phase() jobs.Phase
	ConsecutiveFailures() int
	LastReport() *jobs.CycleReport
}

// NextRunSource reports the scheduler's next tick. Optional.
type NextRunSource interface {
	Next() time.Time
}

// StatusHandler serves liveness and the engine's current state
type StatusHandler struct {
	engine    StatusSource
	scheduler NextRunSource
}

func NewStatusHandler(engine StatusSource, scheduler NextRunSource) *StatusHandler {
	return &StatusHandler{engine: engine, scheduler: scheduler}
}

// Router registers the handler's routes on a new mux router.
func (h *StatusHandler) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", h.HandleHealth).Methods(http.MethodGet)
	router.HandleFunc("/status", h.HandleStatus).Methods(http.MethodGet)
	return router
}

func (h *StatusHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type statusResponse struct {
	Phase               jobs.Phase        `json:"phase"`
	ConsecutiveFailures int               `json:"consecutive_failures"`
	NextRun             *time.Time        `json:"next_run,omitempty"`
	LastCycle           *jobs.CycleReport `json:"last_cycle,omitempty"`
}

func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Phase:               h.engine.Phase(),
		ConsecutiveFailures: h.engine.ConsecutiveFailures(),
		LastCycle:           h.engine.LastReport(),
	}
	if h.scheduler != nil {
		if next := h.scheduler.Next(); !next.IsZero() {
			resp.NextRun = &next
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("Failed to encode status response", "error", err)
	}
}
