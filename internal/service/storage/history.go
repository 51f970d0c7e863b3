package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"barcodescanner/internal/config"
	"barcodescanner/internal/dto"
	"barcodescanner/internal/logger"
	"barcodescanner/internal/model"
	"barcodescanner/internal/repository"
)

const (
	// DefaultBufferLimit is how many scans are buffered before an early flush.
	DefaultBufferLimit = 100
	// DefaultFlushInterval defines how often (seconds) buffered scans are flushed.
	DefaultFlushInterval = 10
)

// FrameEncoder turns a frame into an image file body (JPEG).
type FrameEncoder func(dto.Frame) ([]byte, error)

// HistoryService buffers announced barcodes and capture snapshots in memory
// and periodically writes them to the database and the image directory.
type HistoryService struct {
	imagesDir     string
	limit         int
	flushInterval time.Duration
	encode        FrameEncoder

	scans     []model.Scan
	snapshots []dto.BufferedSnapshot
	mu        sync.Mutex
	logger    *logger.Logger
	scanRepo  repository.ScanRepository
}

// NewHistoryService creates a HistoryService. encode may be nil, in which case
// snapshots are not kept.
func NewHistoryService(config *config.Config, logger *logger.Logger, scanRepo repository.ScanRepository, encode FrameEncoder) *HistoryService {
	limit := config.HistoryBufferLimit
	if limit <= 0 {
		limit = DefaultBufferLimit
	}
	interval := config.HistoryFlushInterval
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &HistoryService{
		imagesDir:     config.ImageDirectory,
		limit:         limit,
		flushInterval: time.Duration(interval) * time.Second,
		encode:        encode,
		scans:         make([]model.Scan, 0),
		logger:        logger,
		scanRepo:      scanRepo,
	}
}

// Run flushes on a ticker until ctx is done, then flushes one last time.
func (s *HistoryService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

// Record buffers an announced entry of session.
func (s *HistoryService) Record(session string, entry dto.ResultEntry) {
	s.mu.Lock()
	s.scans = append(s.scans, model.Scan{
		SessionID:      session,
		Value:          entry.Value,
		Format:         entry.Format,
		DetectedAt:     entry.FirstDetected,
		DetectionCount: entry.DetectionCount,
	})
	full := len(s.scans) >= s.limit
	s.mu.Unlock()

	if full {
		s.logger.Info("History buffer reached %d scans - flushing early", s.limit)
		s.Flush()
	}
}

// Snapshot encodes frame and links it to the buffered scans of entries.
func (s *HistoryService) Snapshot(session string, frame dto.Frame, entries []dto.ResultEntry) {
	if s.encode == nil || frame.Empty() {
		return
	}
	data, err := s.encode(frame)
	if err != nil {
		s.logger.Error("Error encoding snapshot: %v", err)
		return
	}

	filename := fmt.Sprintf("%s_%s.jpg", frame.Timestamp.Format("2006-01-02_15-04_05.000"), shortID(session))

	ids := make(map[string]bool, len(entries))
	for _, e := range entries {
		ids[e.ID] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, dto.BufferedSnapshot{Filename: filename, Session: session, Data: data})
	for i := range s.scans {
		sc := &s.scans[i]
		if sc.SessionID == session && sc.Snapshot == "" && ids[dto.EntryID(sc.Format, sc.Value)] {
			sc.Snapshot = filename
		}
	}
}

// Pending returns how many scans wait for the next flush.
func (s *HistoryService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scans)
}

// ImageDirectory is where snapshots are written.
func (s *HistoryService) ImageDirectory() string {
	return s.imagesDir
}

// Flush writes buffered snapshots to disk and scans to the database.
func (s *HistoryService) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.snapshots) > 0 {
		if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
			s.logger.Error("Error creating directory: %v", err)
		} else {
			for _, snap := range s.snapshots {
				if err := os.WriteFile(filepath.Join(s.imagesDir, snap.Filename), snap.Data, 0644); err != nil {
					s.logger.Error("Error saving snapshot %s: %v", snap.Filename, err)
				}
			}
			s.logger.Info("Flushed %d snapshot(s) to disk", len(s.snapshots))
		}
		s.snapshots = s.snapshots[:0]
	}

	if len(s.scans) == 0 || s.scanRepo == nil {
		return
	}
	if err := s.scanRepo.InsertBatch(s.scans); err != nil {
		// Keep the buffer; the next tick retries.
		s.logger.Error("Error saving scans to database: %v", err)
		return
	}
	s.logger.Info("Flushed %d scan(s) to history", len(s.scans))
	s.scans = s.scans[:0]
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
