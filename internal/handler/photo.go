package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mpaulsen/farthing/internal/auth"
	"github.com/mpaulsen/farthing/internal/photo"
	"github.com/mpaulsen/farthing/internal/store"
)

const maxPhotoSize = 10 << 20 // 10 MiB

var allowedPhotoTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
}

type PhotoHandler struct {
	photos    *photo.Store
	taskStore *store.TaskStore
	logger    *slog.Logger
}

func NewPhotoHandler(photos *photo.Store, ts *store.TaskStore, logger *slog.Logger) *PhotoHandler {
	return &PhotoHandler{photos: photos, taskStore: ts, logger: logger}
}

// Upload stores a proof photo for a task and returns its URL. The client
// submits the completion separately with this URL, so a failed upload never
// leaves a half-completed task.
func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if !h.photos.Configured() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "photo storage is not configured"})
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	task, err := h.taskStore.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get task"})
		return
	}
	if task == nil || task.HouseholdID != auth.HouseholdID(r.Context()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoSize)
	if err := r.ParseMultipartForm(maxPhotoSize); err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "photo too large"})
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "photo file is required"})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !allowedPhotoTypes[contentType] {
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": "unsupported image type"})
		return
	}

	url, err := h.photos.Upload(r.Context(), task.HouseholdID, task.ID, contentType, file)
	if err != nil {
		h.logger.Error("upload photo", "task_id", task.ID, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "photo upload failed"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}

// Serve streams a stored photo back to an authenticated household device.
// Keys are checked against the caller's household namespace.
func (h *PhotoHandler) Serve(w http.ResponseWriter, r *http.Request) {
	if !h.photos.Configured() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "photo storage is not configured"})
		return
	}

	key := r.PathValue("key")
	if key == "" || strings.Contains(key, "..") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid key"})
		return
	}
	key = "photos/" + key

	householdID := auth.HouseholdID(r.Context())
	if !strings.HasPrefix(key, photoPrefix(householdID)) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return
	}

	body, contentType, err := h.photos.Fetch(r.Context(), key)
	if err != nil {
		if errors.Is(err, photo.ErrNotConfigured) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "photo storage is not configured"})
			return
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "photo not found"})
		return
	}
	defer body.Close()

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", "private, max-age=86400")
	io.Copy(w, body)
}

func photoPrefix(householdID int64) string {
	return fmt.Sprintf("photos/%d/", householdID)
}
