package model

import "time"

// Session is one scanning session (one camera, one mode).
type Session struct {
	ID        string     `json:"id"`
	Mode      string     `json:"mode"`
	Camera    string     `json:"camera"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// Scan is an announced barcode persisted to history.
type Scan struct {
	ID             int64     `json:"id"`
	SessionID      string    `json:"session"`
	Value          string    `json:"value"`
	Format         string    `json:"format"`
	DetectedAt     time.Time `json:"detectedAt"`
	DetectionCount int       `json:"detectionCount"`
	Snapshot       string    `json:"snapshot,omitempty"` // image file name, if any
}
