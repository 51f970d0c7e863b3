package dto

import "time"

// ResultEntry is one distinct barcode as shown to the user.
type ResultEntry struct {
	ID             string    `json:"id"`
	Value          string    `json:"value"`
	Format         string    `json:"format"`
	FirstDetected  time.Time `json:"firstDetected"`
	LastDetected   time.Time `json:"lastDetected"`
	DetectionCount int       `json:"detectionCount"`
}

// EntryID derives the entry id from format and value.
func EntryID(format, value string) string {
	return format + ":" + value
}
