// Package api exposes the browser registry, task runs and provider balance
// over HTTP for operators.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/shehryarbajwa/regpool/pkg/models"
)

// Browsers is the registry surface the API drives
type Browsers interface {
	Get(browserID string) (models.BrowserInstance, bool)
	List(accountID string, status models.BrowserStatus) []models.BrowserInstance
	Release(browserID string)
	MarkWaitHuman(browserID string)
	Close(ctx context.Context, browserID string)
}

// Handler holds dependencies for browser HTTP handlers
type Handler struct {
	browsers Browsers
}

// NewHandler creates a new HTTP handler
func NewHandler(browsers Browsers) *Handler {
	return &Handler{
		browsers: browsers,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ListBrowsers handles GET /v1/browsers
func (h *Handler) ListBrowsers(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("accountId")
	status := models.BrowserStatus(r.URL.Query().Get("status"))

	writeJSON(w, http.StatusOK, h.browsers.List(accountID, status))
}

// GetBrowser handles GET /v1/browsers/{id}
func (h *Handler) GetBrowser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	instance, ok := h.browsers.Get(id)
	if !ok {
		http.Error(w, "Browser not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, instance)
}

// TakeoverBrowser handles POST /v1/browsers/{id}/takeover
func (h *Handler) TakeoverBrowser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if _, ok := h.browsers.Get(id); !ok {
		http.Error(w, "Browser not found", http.StatusNotFound)
		return
	}
	h.browsers.MarkWaitHuman(id)

	instance, _ := h.browsers.Get(id)
	writeJSON(w, http.StatusOK, instance)
}

// ReleaseBrowser handles POST /v1/browsers/{id}/release. A window held by
// a human is never released; it can only be closed.
func (h *Handler) ReleaseBrowser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	instance, ok := h.browsers.Get(id)
	if !ok {
		http.Error(w, "Browser not found", http.StatusNotFound)
		return
	}
	if instance.Status == models.StatusWaitHuman {
		http.Error(w, "Browser is held by a human; close it instead", http.StatusConflict)
		return
	}
	h.browsers.Release(id)

	instance, _ = h.browsers.Get(id)
	writeJSON(w, http.StatusOK, instance)
}

// CloseBrowser handles DELETE /v1/browsers/{id}
func (h *Handler) CloseBrowser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if _, ok := h.browsers.Get(id); !ok {
		http.Error(w, "Browser not found", http.StatusNotFound)
		return
	}
	h.browsers.Close(r.Context(), id)

	w.WriteHeader(http.StatusNoContent)
}

// GetDebugURL handles GET /v1/browsers/{id}/debug
func (h *Handler) GetDebugURL(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	instance, ok := h.browsers.Get(id)
	if !ok {
		http.Error(w, "Browser not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"debuggerUrl": fmt.Sprintf("ws://%s/v1/browsers/%s/ws", r.Host, instance.BrowserID),
		"browserId":   instance.BrowserID,
		"status":      string(instance.Status),
	})
}
