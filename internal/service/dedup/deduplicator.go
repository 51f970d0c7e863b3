// Package dedup aggregates repeated barcode detections into a stable result set.
//
// Every distinct format:value pair owns a window that stays open while detections
// keep arriving. Expiry is lazy: there is no background timer, entries whose window
// has closed are dropped the next time the results are read.
package dedup

import (
	"sort"
	"sync"
	"time"

	"barcodescanner/internal/dto"
)

// DefaultWindow is how long an entry stays live after its last accepted detection.
const DefaultWindow = 2000 * time.Millisecond

type record struct {
	entry     dto.ResultEntry
	expiresAt time.Time
}

// Deduplicator is a time-windowed store of distinct barcodes.
type Deduplicator struct {
	mu      sync.Mutex
	window  time.Duration
	now     func() time.Time
	entries map[string]*record
}

// Option configures a Deduplicator.
type Option func(*Deduplicator)

// WithClock replaces the wall clock used for window expiry.
func WithClock(now func() time.Time) Option {
	return func(d *Deduplicator) {
		d.now = now
	}
}

// New creates an empty store. A non-positive window selects DefaultWindow.
func New(window time.Duration, opts ...Option) *Deduplicator {
	if window <= 0 {
		window = DefaultWindow
	}
	d := &Deduplicator{
		window:  window,
		now:     time.Now,
		entries: make(map[string]*record),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Window returns the configured window duration.
func (d *Deduplicator) Window() time.Duration {
	return d.window
}

// AddOrUpdate records a detection. It returns the new entry when the detection
// opens a fresh window and nil when it was absorbed by a live one. Only a
// non-nil result may trigger user-facing notifications.
//
// timestamp only feeds FirstDetected/LastDetected; window lifetime is measured
// from the store's clock at call time.
func (d *Deduplicator) AddOrUpdate(value, format string, timestamp time.Time) *dto.ResultEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	id := dto.EntryID(format, value)

	if rec, ok := d.entries[id]; ok && now.Before(rec.expiresAt) {
		rec.entry.LastDetected = timestamp
		rec.entry.DetectionCount++
		rec.expiresAt = now.Add(d.window)
		return nil
	}

	rec := &record{
		entry: dto.ResultEntry{
			ID:             id,
			Value:          value,
			Format:         format,
			FirstDetected:  timestamp,
			LastDetected:   timestamp,
			DetectionCount: 1,
		},
		expiresAt: now.Add(d.window),
	}
	d.entries[id] = rec

	entry := rec.entry
	return &entry
}

// Add is AddOrUpdate for a RawDetection.
func (d *Deduplicator) Add(det dto.RawDetection) *dto.ResultEntry {
	return d.AddOrUpdate(det.Value, det.Format, det.Timestamp)
}

// Results evicts expired entries and returns copies of the live ones,
// most recently first-seen first.
func (d *Deduplicator) Results() []dto.ResultEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	results := make([]dto.ResultEntry, 0, len(d.entries))
	for id, rec := range d.entries {
		if !now.Before(rec.expiresAt) {
			delete(d.entries, id)
			continue
		}
		results = append(results, rec.entry)
	}

	sort.Slice(results, func(i, j int) bool {
		if !results[i].FirstDetected.Equal(results[j].FirstDetected) {
			return results[i].FirstDetected.After(results[j].FirstDetected)
		}
		return results[i].ID < results[j].ID
	})
	return results
}

// Clear drops every entry.
func (d *Deduplicator) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = make(map[string]*record)
}

// Len reports how many entries are stored, including expired ones not yet swept.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
