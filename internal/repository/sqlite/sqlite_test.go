package sqlite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"barcodescanner/internal/dto"
	"barcodescanner/internal/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedSession(t *testing.T, db *DB, id string, started time.Time) {
	t.Helper()
	if err := NewSessionRepository(db).Insert(&model.Session{ID: id, Mode: "continuous", Camera: "0", StartedAt: started}); err != nil {
		t.Fatalf("Failed to insert session: %v", err)
	}
}

func TestDatabase_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "data", "scans.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should exist")
	}
}

func TestSessionRepository_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	seedSession(t, db, "s1", started)

	got, err := repo.GetByID("s1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got == nil || got.Mode != "continuous" || got.EndedAt != nil {
		t.Fatalf("Unexpected session: %+v", got)
	}

	ended := started.Add(time.Minute)
	if err := repo.End("s1", ended); err != nil {
		t.Fatalf("End failed: %v", err)
	}
	got, _ = repo.GetByID("s1")
	if got.EndedAt == nil || !got.EndedAt.Equal(ended) {
		t.Errorf("Expected EndedAt %v, got %v", ended, got.EndedAt)
	}

	missing, err := repo.GetByID("nope")
	if err != nil || missing != nil {
		t.Errorf("Expected nil session for missing id, got %+v, %v", missing, err)
	}

	all, err := repo.GetAll()
	if err != nil || len(all) != 1 {
		t.Errorf("Expected 1 session, got %d (%v)", len(all), err)
	}
}

func TestScanRepository_InsertAndFilter(t *testing.T) {
	db := newTestDB(t)
	repo := NewScanRepository(db)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	seedSession(t, db, "s1", base)
	seedSession(t, db, "s2", base)

	if _, err := repo.Insert(&model.Scan{SessionID: "s1", Value: "0123456789012", Format: "EAN_13", DetectedAt: base, DetectionCount: 1}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	err := repo.InsertBatch([]model.Scan{
		{SessionID: "s1", Value: "HELLO", Format: "QR_CODE", DetectedAt: base.Add(time.Second), DetectionCount: 3},
		{SessionID: "s2", Value: "HELLO-2", Format: "QR_CODE", DetectedAt: base.Add(2 * time.Second), DetectionCount: 1, Snapshot: "snap.jpg"},
	})
	if err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	tests := []struct {
		name   string
		filter *dto.ScanFilters
		want   int
	}{
		{"all", nil, 3},
		{"by session", &dto.ScanFilters{SessionID: "s1"}, 2},
		{"by format", &dto.ScanFilters{Format: "QR_CODE"}, 2},
		{"by value substring", &dto.ScanFilters{Value: "HELLO"}, 2},
		{"after", &dto.ScanFilters{After: base.Add(time.Second)}, 2},
		{"before", &dto.ScanFilters{Before: base}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scans, err := repo.GetAll(tt.filter)
			if err != nil {
				t.Fatalf("GetAll failed: %v", err)
			}
			if len(scans) != tt.want {
				t.Errorf("Expected %d scans, got %d", tt.want, len(scans))
			}
			count, err := repo.GetTotalCount(tt.filter)
			if err != nil || count != tt.want {
				t.Errorf("Expected count %d, got %d (%v)", tt.want, count, err)
			}
		})
	}

	scans, _ := repo.GetAll(&dto.ScanFilters{Limit: 1})
	if len(scans) != 1 || scans[0].Value != "HELLO-2" || scans[0].Snapshot != "snap.jpg" {
		t.Errorf("Expected newest scan first, got %+v", scans)
	}
	scans, _ = repo.GetAll(&dto.ScanFilters{Limit: 1, Offset: 2})
	if len(scans) != 1 || scans[0].Value != "0123456789012" {
		t.Errorf("Expected oldest scan on last page, got %+v", scans)
	}
}

func TestScanRepository_FormatsAndDelete(t *testing.T) {
	db := newTestDB(t)
	repo := NewScanRepository(db)
	now := time.Now()
	seedSession(t, db, "s1", now)
	seedSession(t, db, "s2", now)

	formats, err := repo.GetFormats()
	if err != nil || len(formats) != 0 {
		t.Fatalf("Expected no formats, got %v (%v)", formats, err)
	}

	repo.InsertBatch([]model.Scan{
		{SessionID: "s1", Value: "A", Format: "QR_CODE", DetectedAt: now, DetectionCount: 1},
		{SessionID: "s1", Value: "B", Format: "CODE_128", DetectedAt: now, DetectionCount: 1},
		{SessionID: "s2", Value: "C", Format: "QR_CODE", DetectedAt: now, DetectionCount: 1},
	})

	formats, _ = repo.GetFormats()
	if len(formats) != 2 || formats[0] != "CODE_128" || formats[1] != "QR_CODE" {
		t.Errorf("Unexpected formats: %v", formats)
	}

	if err := repo.DeleteBySession("s1"); err != nil {
		t.Fatalf("DeleteBySession failed: %v", err)
	}
	if count, _ := repo.GetTotalCount(nil); count != 1 {
		t.Errorf("Expected 1 scan left, got %d", count)
	}

	if err := repo.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	if count, _ := repo.GetTotalCount(nil); count != 0 {
		t.Errorf("Expected no scans, got %d", count)
	}
}

func TestScanRepository_RequiresSession(t *testing.T) {
	repo := NewScanRepository(newTestDB(t))
	_, err := repo.Insert(&model.Scan{SessionID: "ghost", Value: "A", Format: "QR_CODE", DetectedAt: time.Now()})
	if err == nil {
		t.Error("Expected foreign key violation for unknown session")
	}
}
