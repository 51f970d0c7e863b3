// Package service hosts the scanning session: it owns the camera, the
// deduplicator and the scan driver, and turns user intents into state changes.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"barcodescanner/internal/config"
	"barcodescanner/internal/dto"
	"barcodescanner/internal/logger"
	"barcodescanner/internal/model"
	"barcodescanner/internal/repository"
	"barcodescanner/internal/service/camera"
	"barcodescanner/internal/service/capture"
	"barcodescanner/internal/service/decoder"
	"barcodescanner/internal/service/dedup"
	"barcodescanner/internal/service/event"
	"barcodescanner/internal/service/metrics"
	"barcodescanner/internal/service/sampler"
)

var (
	// ErrWrongMode is returned for intents that do not apply to the session's scan mode.
	ErrWrongMode = errors.New("not available in this scan mode")
	// ErrSessionClosed is returned by every intent after Close.
	ErrSessionClosed = errors.New("session closed")
)

// SnapshotSink receives the frame behind a completed single-shot capture.
type SnapshotSink func(session string, frame dto.Frame, results []dto.ResultEntry)

// Option configures a Manager.
type Option func(*Manager)

// WithSessionRepository persists the session record.
func WithSessionRepository(repo repository.SessionRepository) Option {
	return func(m *Manager) {
		m.sessions = repo
	}
}

// WithSnapshotSink forwards completed capture frames, e.g. to the history.
func WithSnapshotSink(sink SnapshotSink) Option {
	return func(m *Manager) {
		m.snapshotSink = sink
	}
}

// WithClock injects the deduplicator clock.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager is one scanning session.
type Manager struct {
	id     string
	mode   string
	device string
	now    func() time.Time

	media    *camera.MediaManager
	store    *dedup.Deduplicator
	sampler  *sampler.Sampler
	capturer *capture.Capturer
	bus      *event.Bus

	sessions     repository.SessionRepository
	snapshotSink SnapshotSink
	logger       *logger.Logger
	metrics      *metrics.Metrics

	mu        sync.Mutex
	cameraErr error
	started   time.Time
	closed    bool
}

// NewManager builds a session around media and dec. Nothing is acquired
// until Start.
func NewManager(cfg *config.Config, media *camera.MediaManager, dec decoder.Decoder, bus *event.Bus, logger *logger.Logger, metrics *metrics.Metrics, opts ...Option) *Manager {
	m := &Manager{
		id:      uuid.NewString(),
		mode:    cfg.ScanMode,
		device:  cfg.CameraDevice,
		now:     time.Now,
		media:   media,
		bus:     bus,
		logger:  logger,
		metrics: metrics,
	}
	if m.mode != config.ModeSingle {
		m.mode = config.ModeContinuous
	}
	for _, opt := range opts {
		opt(m)
	}

	m.store = dedup.New(cfg.DedupWindow, dedup.WithClock(m.now))
	m.sampler = sampler.New(sampler.Config{
		TickInterval: cfg.TickInterval,
		FrameSkip:    cfg.FrameSkip,
		MinInterval:  cfg.MaxFrameRate,
	}, dec, m.store, logger, metrics, sampler.WithAnnounce(m.announce), sampler.WithClock(m.now))
	m.capturer = capture.New(dec, m.store, logger, metrics,
		capture.WithTimeout(cfg.CaptureTimeout),
		capture.WithAnnounce(m.announce),
		capture.WithSnapshot(m.snapshot),
		capture.WithStateChange(m.publishScanState),
	)
	return m
}

// ID returns the session id.
func (m *Manager) ID() string { return m.id }

// Mode returns config.ModeContinuous or config.ModeSingle.
func (m *Manager) Mode() string { return m.mode }

// Start records the session and turns the camera on. A camera failure is
// kept in Status and also returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	m.started = m.now()
	m.mu.Unlock()

	if m.sessions != nil {
		err := m.sessions.Insert(&model.Session{ID: m.id, Mode: m.mode, Camera: m.device, StartedAt: m.started})
		if err != nil {
			m.logger.Error("Error saving session %s: %v", m.id, err)
		}
	}
	m.logger.Info("🎬 Session %s started in %s mode", m.id, m.mode)
	return m.EnableCamera(ctx)
}

// EnableCamera acquires the camera and, in continuous mode, starts sampling.
func (m *Manager) EnableCamera(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enableLocked(ctx)
}

func (m *Manager) enableLocked(ctx context.Context) error {
	if m.closed {
		return ErrSessionClosed
	}

	m.sampler.Disable()
	stream, err := m.media.Acquire(ctx)
	if err != nil {
		m.cameraErr = err
		m.media.Release()
		m.logger.Error("Camera error in session %s: %v", m.id, err)
		m.publishCameraStateLocked()
		return err
	}

	m.cameraErr = nil
	if m.mode == config.ModeContinuous {
		m.sampler.Enable(stream)
	}
	m.publishCameraStateLocked()
	return nil
}

// DisableCamera stops sampling and releases the camera.
func (m *Manager) DisableCamera() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disableLocked()
	m.publishCameraStateLocked()
}

func (m *Manager) disableLocked() {
	m.sampler.Disable()
	m.media.Release()
}

// ToggleCamera flips the camera and reports whether it is now active.
func (m *Manager) ToggleCamera(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.media.Active() {
		m.disableLocked()
		m.publishCameraStateLocked()
		return false, nil
	}
	if err := m.enableLocked(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// RetryPermission clears a previous acquisition error and tries again.
func (m *Manager) RetryPermission(ctx context.Context) error {
	m.mu.Lock()
	m.cameraErr = nil
	m.mu.Unlock()
	return m.EnableCamera(ctx)
}

// CaptureNow runs one single-shot capture against the live camera. The
// capture is not tied to ctx's cancellation; it always resolves within the
// capture timeout.
func (m *Manager) CaptureNow(ctx context.Context) (capture.Status, error) {
	if m.mode != config.ModeSingle {
		return capture.Status{}, fmt.Errorf("capture: %w", ErrWrongMode)
	}
	if m.isClosed() {
		return capture.Status{}, ErrSessionClosed
	}

	var src camera.FrameSource
	if stream := m.media.Current(); stream != nil {
		src = stream
	}
	return m.capturer.Capture(context.WithoutCancel(ctx), src)
}

// ResetCapture is "scan another": back to idle with a fresh deduplicator.
func (m *Manager) ResetCapture() error {
	if m.mode != config.ModeSingle {
		return fmt.Errorf("reset: %w", ErrWrongMode)
	}
	m.capturer.Reset()
	return nil
}

// ClearResults empties the deduplicator. In single mode the capture status
// loses its results too and the change is published.
func (m *Manager) ClearResults() {
	if m.mode == config.ModeSingle {
		m.capturer.ClearResults()
	} else {
		m.store.Clear()
	}
	m.logger.Info("🧹 Results cleared in session %s", m.id)
}

// Results returns the live deduplicated results, newest first.
func (m *Manager) Results() []dto.ResultEntry {
	return m.store.Results()
}

// CaptureStatus returns the single-shot state.
func (m *Manager) CaptureStatus() capture.Status {
	return m.capturer.Status()
}

// Status summarises the session for the display layer.
func (m *Manager) Status() dto.SessionStatus {
	m.mu.Lock()
	cam := m.cameraStateLocked()
	m.mu.Unlock()

	results := m.store.Results()
	st := dto.SessionStatus{
		Session:     m.id,
		Mode:        m.mode,
		Camera:      cam,
		ResultCount: len(results),
	}
	if m.mode == config.ModeSingle {
		cs := m.capturer.Status()
		st.Scan = dto.ScanState{State: string(cs.State), Message: cs.Message, Results: cs.Results}
	} else if m.sampler.Enabled() {
		st.Scan = dto.ScanState{State: "scanning"}
	} else {
		st.Scan = dto.ScanState{State: "stopped"}
	}
	return st
}

// Close stops the session and releases every resource. It is idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.disableLocked()
	m.mu.Unlock()

	if m.mode == config.ModeSingle {
		m.capturer.Reset()
	}
	if m.sessions != nil {
		if err := m.sessions.End(m.id, m.now()); err != nil {
			m.logger.Error("Error closing session %s: %v", m.id, err)
		}
	}
	m.logger.Info("Session %s closed", m.id)
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Manager) cameraStateLocked() dto.CameraState {
	return dto.CameraState{
		Active: m.media.Active(),
		Error:  camera.UserMessage(m.cameraErr),
	}
}

func (m *Manager) publishCameraStateLocked() {
	m.bus.Publish(dto.Event{Type: dto.EventCameraState, Session: m.id, Data: m.cameraStateLocked()})
}

func (m *Manager) announce(entry dto.ResultEntry) {
	m.bus.Publish(dto.Event{Type: dto.EventBarcodeNew, Session: m.id, Data: entry})
}

func (m *Manager) publishScanState(st capture.Status) {
	m.bus.Publish(dto.Event{
		Type:    dto.EventScanState,
		Session: m.id,
		Data:    dto.ScanState{State: string(st.State), Message: st.Message, Results: st.Results},
	})
}

func (m *Manager) snapshot(frame dto.Frame, results []dto.ResultEntry) {
	if m.snapshotSink != nil {
		m.snapshotSink(m.id, frame, results)
	}
}
