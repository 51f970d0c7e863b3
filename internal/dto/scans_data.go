// ScansData is a paginated response payload for the scan history.
package dto

import "time"

type ScansData struct {
	Scans       []ScanInfo `json:"scans"`
	Length      int        `json:"length"`
	TotalPages  int        `json:"totalPages"`
	CurrentPage int        `json:"currentPage"`
	Limit       int        `json:"pageSize"`
}

// ScanInfo is one history row as returned to clients.
type ScanInfo struct {
	ID             int64     `json:"id"`
	Session        string    `json:"session"`
	Value          string    `json:"value"`
	Format         string    `json:"format"`
	DetectedAt     time.Time `json:"detectedAt"`
	DetectionCount int       `json:"detectionCount"`
	Snapshot       string    `json:"snapshot,omitempty"`
}
