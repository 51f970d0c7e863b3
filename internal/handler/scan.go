package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"barcodescanner/internal/logger"
	"barcodescanner/internal/service"
	"barcodescanner/internal/service/capture"
)

func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// ResultsHandler returns the live deduplicated results, newest first.
func ResultsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, map[string]interface{}{
			"session": manager.ID(),
			"results": manager.Results(),
		})
	}
}

// ClearResultsHandler empties the live results.
func ClearResultsHandler(manager *service.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		manager.ClearResults()
		w.WriteHeader(http.StatusNoContent)
	}
}

// StatusHandler returns mode, camera and scan state.
func StatusHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, manager.Status())
	}
}

// CaptureHandler triggers a single-shot capture and returns its outcome.
func CaptureHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := manager.CaptureNow(r.Context())
		switch {
		case errors.Is(err, service.ErrWrongMode):
			http.Error(w, "Capture is only available in single scan mode", http.StatusConflict)
			return
		case errors.Is(err, capture.ErrBusy):
			writeJSON(w, logger, http.StatusConflict, st)
			return
		case errors.Is(err, service.ErrSessionClosed):
			http.Error(w, "Session closed", http.StatusServiceUnavailable)
			return
		case err != nil:
			logger.Error("Error capturing: %v", err)
		}
		writeJSON(w, logger, http.StatusOK, st)
	}
}

// ResetCaptureHandler is "scan another".
func ResetCaptureHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := manager.ResetCapture(); err != nil {
			http.Error(w, "Reset is only available in single scan mode", http.StatusConflict)
			return
		}
		writeJSON(w, logger, http.StatusOK, manager.CaptureStatus())
	}
}

// ToggleCameraHandler turns the camera on or off.
func ToggleCameraHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := manager.ToggleCamera(r.Context()); err != nil {
			logger.Warning("Camera toggle failed: %v", err)
		}
		writeJSON(w, logger, http.StatusOK, manager.Status().Camera)
	}
}

// RetryCameraHandler retries camera acquisition after a permission or device error.
func RetryCameraHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := manager.RetryPermission(r.Context()); err != nil {
			logger.Warning("Camera retry failed: %v", err)
		}
		writeJSON(w, logger, http.StatusOK, manager.Status().Camera)
	}
}
