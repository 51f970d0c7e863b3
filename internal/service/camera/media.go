package camera

import (
	"context"
	"fmt"
	"sync"

	"barcodescanner/internal/logger"
)

// MediaManager owns the single camera stream of a session. Acquiring again
// releases the previous stream first; Release is safe to call on every exit path.
type MediaManager struct {
	mu          sync.Mutex
	source      Source
	constraints Constraints
	stream      Stream
	logger      *logger.Logger
}

// NewMediaManager creates a manager for source.
func NewMediaManager(source Source, constraints Constraints, logger *logger.Logger) *MediaManager {
	return &MediaManager{
		source:      source,
		constraints: constraints,
		logger:      logger,
	}
}

// Acquire opens a fresh stream, closing any stream currently held.
func (m *MediaManager) Acquire(ctx context.Context) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.releaseLocked()

	stream, err := m.source.Acquire(ctx, m.constraints)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire camera %q: %w", m.constraints.Device, err)
	}

	m.stream = stream
	m.logger.Info("📷 Camera %s acquired (%dx%d, %s)", m.constraints.Device,
		m.constraints.Width, m.constraints.Height, m.constraints.Facing)
	return stream, nil
}

// Current returns the held stream or nil.
func (m *MediaManager) Current() Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stream
}

// Active reports whether a stream is held.
func (m *MediaManager) Active() bool {
	return m.Current() != nil
}

// Release closes the held stream, if any.
func (m *MediaManager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
}

func (m *MediaManager) releaseLocked() {
	if m.stream == nil {
		return
	}
	if err := m.stream.Close(); err != nil {
		m.logger.Warning("Error releasing camera %s: %v", m.constraints.Device, err)
	}
	m.stream = nil
	m.logger.Info("📷 Camera %s released", m.constraints.Device)
}
