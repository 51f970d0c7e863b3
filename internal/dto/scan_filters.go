// ScanFilters describe user-provided filters to narrow the scan history.
package dto

import "time"

type ScanFilters struct {
	SessionID string
	Format    string
	Value     string
	After     time.Time
	Before    time.Time
	Limit     int
	Offset    int
}
