package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/shehryarbajwa/regpool/pkg/models"
)

// Runs is the background run registry
type Runs interface {
	Start(opts models.RunOptions) (models.Run, error)
	Get(id string) (models.Run, bool)
	List() []models.Run
	Stop(id string) (models.Run, error)
}

// Balancer reports the SMS provider balance
type Balancer interface {
	Balance(ctx context.Context) (float64, error)
}

// RunHandler holds dependencies for run HTTP handlers
type RunHandler struct {
	runs     Runs
	balance  Balancer
	defaults models.RunOptions
}

// NewRunHandler creates a run handler. defaults fill fields a request omits.
func NewRunHandler(runs Runs, balance Balancer, defaults models.RunOptions) *RunHandler {
	return &RunHandler{
		runs:     runs,
		balance:  balance,
		defaults: defaults,
	}
}

// CreateRun handles POST /v1/runs
func (h *RunHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRunRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	opts := h.defaults
	opts.Count = req.Count
	if req.Concurrency > 0 {
		opts.Concurrency = req.Concurrency
	}
	if req.UseProxy != nil {
		opts.UseProxy = *req.UseProxy
	}
	if req.AutoClose != nil {
		opts.AutoClose = *req.AutoClose
	}

	run, err := h.runs.Start(opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

// ListRuns handles GET /v1/runs
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.runs.List())
}

// GetRun handles GET /v1/runs/{id}
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	run, ok := h.runs.Get(id)
	if !ok {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// StopRun handles DELETE /v1/runs/{id}
func (h *RunHandler) StopRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	run, err := h.runs.Stop(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}

// GetBalance handles GET /v1/balance
func (h *RunHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	if h.balance == nil {
		http.Error(w, "SMS provider is not configured", http.StatusServiceUnavailable)
		return
	}

	balance, err := h.balance.Balance(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"balance": balance})
}
