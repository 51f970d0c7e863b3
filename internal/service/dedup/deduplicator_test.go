package dedup

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is advanced manually by tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestStore(window time.Duration) (*Deduplicator, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return New(window, WithClock(clock.Now)), clock
}

func TestNew_DefaultWindow(t *testing.T) {
	assert.Equal(t, DefaultWindow, New(0).Window())
	assert.Equal(t, 500*time.Millisecond, New(500*time.Millisecond).Window())
}

func TestAddOrUpdate_IDIsFormatAndValue(t *testing.T) {
	store, _ := newTestStore(DefaultWindow)

	tests := []struct {
		value, format, id string
	}{
		{"0123456789012", "EAN_13", "EAN_13:0123456789012"},
		{"ABC", "CODE_39", "CODE_39:ABC"},
		{"a:b", "QR_CODE", "QR_CODE:a:b"},
		{"", "QR_CODE", "QR_CODE:"},
	}

	for _, tt := range tests {
		entry := store.AddOrUpdate(tt.value, tt.format, time.Now())
		require.NotNil(t, entry, tt.id)
		assert.Equal(t, tt.id, entry.ID)
		assert.Equal(t, tt.value, entry.Value)
		assert.Equal(t, tt.format, entry.Format)
	}
}

func TestAddOrUpdate_SameValueDifferentFormatIsDistinct(t *testing.T) {
	store, _ := newTestStore(DefaultWindow)
	ts := time.Now()

	require.NotNil(t, store.AddOrUpdate("12345", "CODE_128", ts))
	require.NotNil(t, store.AddOrUpdate("12345", "CODE_39", ts))
	require.NotNil(t, store.AddOrUpdate("123456", "CODE_128", ts))

	assert.Len(t, store.Results(), 3)
}

func TestAddOrUpdate_DuplicateWithinWindow(t *testing.T) {
	store, clock := newTestStore(2000 * time.Millisecond)
	t0 := clock.Now()

	first := store.AddOrUpdate("0123456789012", "EAN_13", t0)
	require.NotNil(t, first)
	assert.Equal(t, 1, first.DetectionCount)

	clock.Advance(500 * time.Millisecond)
	second := store.AddOrUpdate("0123456789012", "EAN_13", t0.Add(500*time.Millisecond))
	assert.Nil(t, second, "duplicate inside the window must not be announced")

	results := store.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "EAN_13:0123456789012", results[0].ID)
	assert.Equal(t, 2, results[0].DetectionCount)
	assert.True(t, results[0].FirstDetected.Equal(t0))
	assert.True(t, results[0].LastDetected.Equal(t0.Add(500*time.Millisecond)))
}

func TestAddOrUpdate_RepeatedDuplicatesKeepWindowOpen(t *testing.T) {
	store, clock := newTestStore(2000 * time.Millisecond)
	t0 := clock.Now()
	require.NotNil(t, store.AddOrUpdate("X", "QR_CODE", t0))

	// Each hit refreshes the window, so ten hits 1.5s apart never expire.
	for i := 1; i <= 10; i++ {
		clock.Advance(1500 * time.Millisecond)
		assert.Nil(t, store.AddOrUpdate("X", "QR_CODE", clock.Now()), "hit %d", i)
	}

	results := store.Results()
	require.Len(t, results, 1)
	assert.Equal(t, 11, results[0].DetectionCount)
	assert.True(t, results[0].FirstDetected.Equal(t0))
	assert.True(t, results[0].LastDetected.Equal(clock.Now()))
}

func TestAddOrUpdate_ExpiredEntryIsRecreated(t *testing.T) {
	store, clock := newTestStore(2000 * time.Millisecond)
	t0 := clock.Now()

	require.NotNil(t, store.AddOrUpdate("ABC", "CODE_39", t0))

	clock.Advance(2100 * time.Millisecond)
	again := store.AddOrUpdate("ABC", "CODE_39", t0.Add(2100*time.Millisecond))

	require.NotNil(t, again)
	assert.Equal(t, 1, again.DetectionCount)
	assert.True(t, again.FirstDetected.Equal(t0.Add(2100*time.Millisecond)))
	assert.True(t, again.LastDetected.Equal(t0.Add(2100*time.Millisecond)))
}

func TestAddOrUpdate_ExpiresExactlyAtWindow(t *testing.T) {
	store, clock := newTestStore(2000 * time.Millisecond)

	require.NotNil(t, store.AddOrUpdate("ABC", "CODE_39", clock.Now()))
	clock.Advance(2000 * time.Millisecond)

	assert.NotNil(t, store.AddOrUpdate("ABC", "CODE_39", clock.Now()), "now == expiresAt is expired")
}

func TestAddOrUpdate_WindowUsesClockNotTimestamp(t *testing.T) {
	store, clock := newTestStore(2000 * time.Millisecond)
	historic := clock.Now().Add(-time.Hour)

	require.NotNil(t, store.AddOrUpdate("OLD", "QR_CODE", historic))

	clock.Advance(time.Second)
	assert.Nil(t, store.AddOrUpdate("OLD", "QR_CODE", historic.Add(time.Second)))

	results := store.Results()
	require.Len(t, results, 1)
	assert.True(t, results[0].FirstDetected.Equal(historic))
}

func TestAddOrUpdate_ReturnsCopy(t *testing.T) {
	store, _ := newTestStore(DefaultWindow)

	entry := store.AddOrUpdate("V", "QR_CODE", time.Now())
	require.NotNil(t, entry)
	entry.DetectionCount = 99
	entry.Value = "mutated"

	results := store.Results()
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].DetectionCount)
	assert.Equal(t, "V", results[0].Value)
}

func TestResults_LazyEviction(t *testing.T) {
	store, clock := newTestStore(2000 * time.Millisecond)
	t0 := clock.Now()

	store.AddOrUpdate("ABC", "CODE_39", t0)
	clock.Advance(2500 * time.Millisecond)

	// Nothing is swept until somebody reads.
	assert.Equal(t, 1, store.Len())

	assert.Empty(t, store.Results())
	assert.Equal(t, 0, store.Len())

	resubmitted := t0.Add(2500 * time.Millisecond)
	entry := store.AddOrUpdate("ABC", "CODE_39", resubmitted)
	require.NotNil(t, entry)
	assert.True(t, entry.FirstDetected.Equal(resubmitted))
}

func TestResults_PartialEviction(t *testing.T) {
	store, clock := newTestStore(2000 * time.Millisecond)

	store.AddOrUpdate("OLD", "QR_CODE", clock.Now())
	clock.Advance(1500 * time.Millisecond)
	store.AddOrUpdate("NEW", "QR_CODE", clock.Now())
	clock.Advance(1000 * time.Millisecond)

	results := store.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "QR_CODE:NEW", results[0].ID)
}

func TestResults_SortedByFirstDetectedDescending(t *testing.T) {
	store, clock := newTestStore(10 * time.Second)
	t1 := clock.Now()
	t2 := t1.Add(time.Second)
	t3 := t1.Add(2 * time.Second)

	store.AddOrUpdate("B", "QR_CODE", t2)
	store.AddOrUpdate("A", "QR_CODE", t1)
	store.AddOrUpdate("C", "QR_CODE", t3)
	// Later detections of A must not move it: ordering is by first-seen.
	store.AddOrUpdate("A", "QR_CODE", t3.Add(time.Second))

	results := store.Results()
	require.Len(t, results, 3)
	assert.Equal(t, []string{"QR_CODE:C", "QR_CODE:B", "QR_CODE:A"},
		[]string{results[0].ID, results[1].ID, results[2].ID})
}

func TestResults_TiesOrderedByID(t *testing.T) {
	store, clock := newTestStore(10 * time.Second)
	ts := clock.Now()

	for _, v := range []string{"c", "a", "b"} {
		store.AddOrUpdate(v, "QR_CODE", ts)
	}

	results := store.Results()
	require.Len(t, results, 3)
	assert.Equal(t, "QR_CODE:a", results[0].ID)
	assert.Equal(t, "QR_CODE:c", results[2].ID)
}

func TestClear(t *testing.T) {
	store, clock := newTestStore(DefaultWindow)

	for i := 0; i < 5; i++ {
		store.AddOrUpdate(fmt.Sprintf("V%d", i), "QR_CODE", clock.Now())
	}
	store.AddOrUpdate("V0", "QR_CODE", clock.Now())

	store.Clear()
	assert.Empty(t, store.Results())

	// Idempotent.
	store.Clear()
	assert.Equal(t, 0, store.Len())

	entry := store.AddOrUpdate("V0", "QR_CODE", clock.Now())
	require.NotNil(t, entry)
	assert.Equal(t, 1, entry.DetectionCount)
}
