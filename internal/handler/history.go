package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"barcodescanner/internal/config"
	"barcodescanner/internal/dto"
	"barcodescanner/internal/logger"
	"barcodescanner/internal/repository"
)

// GetHistoryHandler returns a filtered, paginated page of stored scans.
func GetHistoryHandler(scanRepo repository.ScanRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 50)

		filter := &dto.ScanFilters{
			SessionID: q.Get("session"),
			Format:    q.Get("format"),
			Value:     q.Get("value"),
			After:     parseTimestamp(q.Get("after")),
			Before:    parseTimestamp(q.Get("before")),
			Limit:     limit,
			Offset:    (page - 1) * limit,
		}

		scans, err := scanRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying scans from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalCount, err := scanRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting scans: %v", err)
			totalCount = len(scans)
		}

		infos := make([]dto.ScanInfo, 0, len(scans))
		for _, s := range scans {
			infos = append(infos, dto.ScanInfo{
				ID:             s.ID,
				Session:        s.SessionID,
				Value:          s.Value,
				Format:         s.Format,
				DetectedAt:     s.DetectedAt,
				DetectionCount: s.DetectionCount,
				Snapshot:       s.Snapshot,
			})
		}

		writeJSON(w, logger, http.StatusOK, dto.ScansData{
			Scans:       infos,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// HistoryFormatsHandler lists the formats present in history, for filters.
func HistoryFormatsHandler(scanRepo repository.ScanRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formats, err := scanRepo.GetFormats()
		if err != nil {
			logger.Error("Error querying formats: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, http.StatusOK, formats)
	}
}

// ClearHistoryHandler deletes stored scans, optionally of one session, and
// removes every snapshot when the whole history goes.
func ClearHistoryHandler(cfg *config.Config, scanRepo repository.ScanRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if session := r.URL.Query().Get("session"); session != "" {
			if err := scanRepo.DeleteBySession(session); err != nil {
				logger.Error("Error clearing session %s: %v", session, err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			logger.Info("History cleared for session %s", session)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if err := scanRepo.DeleteAll(); err != nil {
			logger.Error("Error clearing database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		files, err := os.ReadDir(cfg.ImageDirectory)
		if err != nil && !os.IsNotExist(err) {
			logger.Error("Error reading snapshot directory: %v", err)
		}
		for _, file := range files {
			if !file.IsDir() {
				if err := os.Remove(filepath.Join(cfg.ImageDirectory, file.Name())); err != nil {
					logger.Error("Error deleting file %s: %v", file.Name(), err)
				}
			}
		}

		logger.Info("History cleared")
		w.WriteHeader(http.StatusNoContent)
	}
}

// ViewSnapshotHandler serves a single snapshot named by the "name" query parameter.
func ViewSnapshotHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" || name != filepath.Base(name) {
			http.Error(w, "Valid name parameter is required", http.StatusBadRequest)
			return
		}
		http.ServeFile(w, r, filepath.Join(cfg.ImageDirectory, name))
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseTimestamp accepts RFC 3339 or a plain date ("2006-01-02", HTML input format).
func parseTimestamp(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t
	}
	return time.Time{}
}
