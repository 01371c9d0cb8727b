package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mpaulsen/farthing/internal/auth"
	"github.com/mpaulsen/farthing/internal/store"
)

type SettingsHandler struct {
	store  *store.SettingsStore
	logger *slog.Logger
}

func NewSettingsHandler(s *store.SettingsStore, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{store: s, logger: logger}
}

// Get returns the household's verification settings. The analysis API key
// is never echoed back.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	vs, err := h.store.GetVerification(auth.HouseholdID(r.Context()))
	if err != nil {
		h.logger.Error("get settings", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load settings"})
		return
	}
	writeJSON(w, http.StatusOK, vs)
}

type settingsRequest struct {
	AnalysisEndpoint  *string  `json:"analysis_endpoint"`
	AnalysisAPIKey    *string  `json:"analysis_api_key"`
	Threshold         *float64 `json:"confidence_threshold"`
	RetryAttempts     *int     `json:"analysis_retry_attempts"`
	RequireValidation *bool    `json:"require_validation"`
}

// Update writes the provided settings; omitted fields are left untouched.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if req.Threshold != nil && (*req.Threshold < 0 || *req.Threshold > 1) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "confidence threshold must be between 0 and 1"})
		return
	}
	if req.RetryAttempts != nil && *req.RetryAttempts < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "retry attempts must be at least 1"})
		return
	}

	householdID := auth.HouseholdID(r.Context())

	set := func(key, value string) bool {
		if err := h.store.Set(householdID, key, value); err != nil {
			h.logger.Error("set setting", "key", key, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save settings"})
			return false
		}
		return true
	}

	if req.AnalysisEndpoint != nil && !set(store.SettingAnalysisEndpoint, *req.AnalysisEndpoint) {
		return
	}
	if req.AnalysisAPIKey != nil && !set(store.SettingAnalysisAPIKey, *req.AnalysisAPIKey) {
		return
	}
	if req.Threshold != nil && !set(store.SettingThreshold, strconv.FormatFloat(*req.Threshold, 'f', -1, 64)) {
		return
	}
	if req.RetryAttempts != nil && !set(store.SettingRetryAttempts, strconv.Itoa(*req.RetryAttempts)) {
		return
	}
	if req.RequireValidation != nil && !set(store.SettingRequireValidation, strconv.FormatBool(*req.RequireValidation)) {
		return
	}

	vs, err := h.store.GetVerification(householdID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load settings"})
		return
	}
	writeJSON(w, http.StatusOK, vs)
}
