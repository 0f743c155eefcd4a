package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/pkg/logger"
)

// SettingsStore reads and writes user settings (*settings.Service)
type SettingsStore interface {
	Get(ctx context.Context, userID string) (contracts.UserSettings, error)
	Save(ctx context.Context, in contracts.UserSettings) (contracts.UserSettings, error)
}

// SettingsHandler serves per-user settings
type SettingsHandler struct {
	store  SettingsStore
	logger *logger.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(store SettingsStore, log *logger.Logger) *SettingsHandler {
	return &SettingsHandler{store: store, logger: log}
}

// Get returns stored settings, or defaults for a new user
// GET /api/settings/{userID}
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	s, err := h.store.Get(r.Context(), userID)
	if err != nil {
		h.logger.WithField("user_id", userID).WithError(err).Error("Failed to get settings")
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, s)
}

// Put replaces a user's settings
// PUT /api/settings/{userID}
func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var in contracts.UserSettings
	if err := decodeBody(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	// path wins over body
	in.UserID = userID

	saved, err := h.store.Save(r.Context(), in)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.WithField("user_id", userID).WithError(err).Error("Failed to save settings")
		}
		respondError(w, status, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, saved)
}
