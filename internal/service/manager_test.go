package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"barcodescanner/internal/config"
	"barcodescanner/internal/dto"
	"barcodescanner/internal/logger"
	"barcodescanner/internal/service/camera"
	"barcodescanner/internal/service/capture"
	"barcodescanner/internal/service/decoder"
	"barcodescanner/internal/service/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStream struct {
	mu     sync.Mutex
	closed bool
}

func (s *testStream) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *testStream) Frame() (dto.Frame, error) {
	return dto.Frame{Pix: make([]byte, 16), Width: 2, Height: 2, Timestamp: time.Now()}, nil
}

func (s *testStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type testSource struct {
	mu      sync.Mutex
	err     error
	streams []*testStream
}

func (s *testSource) Acquire(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	st := &testStream{}
	s.streams = append(s.streams, st)
	return st, nil
}

func (s *testSource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

type eventLog struct {
	mu     sync.Mutex
	events []dto.Event
}

func (l *eventLog) add(ev dto.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) ofType(typ string) []dto.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []dto.Event
	for _, ev := range l.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func testConfig(mode string) *config.Config {
	return &config.Config{
		ScanMode:       mode,
		CameraDevice:   "0",
		DedupWindow:    2 * time.Second,
		FrameSkip:      1,
		MaxFrameRate:   0,
		TickInterval:   time.Millisecond,
		CaptureTimeout: time.Second,
	}
}

func newTestManager(t *testing.T, mode string, dec decoder.Decoder, opts ...Option) (*Manager, *testSource, *eventLog) {
	t.Helper()
	log := logger.NewNop()
	src := &testSource{}
	bus := event.NewBus(log)
	events := &eventLog{}
	require.NoError(t, bus.SubscribeAll(events.add))

	media := camera.NewMediaManager(src, camera.DefaultConstraints(), log)
	m := NewManager(testConfig(mode), media, dec, bus, log, nil, opts...)
	t.Cleanup(m.Close)
	return m, src, events
}

func found(barcodes ...dto.Barcode) decoder.Decoder {
	return decoder.Func(func(ctx context.Context, f dto.Frame) ([]dto.Barcode, error) {
		return barcodes, nil
	})
}

func TestManager_ContinuousAnnouncesOnce(t *testing.T) {
	m, _, events := newTestManager(t, config.ModeContinuous, found(dto.Barcode{Value: "HELLO", Format: "QR_CODE"}))
	require.NoError(t, m.Start(context.Background()))

	require.Eventually(t, func() bool {
		r := m.Results()
		return len(r) == 1 && r[0].DetectionCount >= 5
	}, 2*time.Second, time.Millisecond)

	announced := events.ofType(dto.EventBarcodeNew)
	require.Len(t, announced, 1, "a live window must announce exactly once")
	assert.Equal(t, m.ID(), announced[0].Session)

	st := m.Status()
	assert.True(t, st.Camera.Active)
	assert.Equal(t, "scanning", st.Scan.State)
	assert.Equal(t, 1, st.ResultCount)
}

func TestManager_ToggleReleasesCamera(t *testing.T) {
	m, src, _ := newTestManager(t, config.ModeContinuous, found())
	require.NoError(t, m.Start(context.Background()))

	active, err := m.ToggleCamera(context.Background())
	require.NoError(t, err)
	assert.False(t, active)
	assert.True(t, src.streams[0].closed)
	assert.Equal(t, "stopped", m.Status().Scan.State)

	active, err = m.ToggleCamera(context.Background())
	require.NoError(t, err)
	assert.True(t, active)
	assert.Len(t, src.streams, 2)
}

func TestManager_PermissionErrorSurfacedUntilRetry(t *testing.T) {
	m, src, events := newTestManager(t, config.ModeContinuous, found())
	src.setErr(camera.ErrPermissionDenied)

	err := m.Start(context.Background())
	assert.ErrorIs(t, err, camera.ErrPermissionDenied)

	st := m.Status()
	assert.False(t, st.Camera.Active)
	assert.Contains(t, st.Camera.Error, "denied")

	camEvents := events.ofType(dto.EventCameraState)
	require.NotEmpty(t, camEvents)
	assert.Equal(t, st.Camera, camEvents[len(camEvents)-1].Data)

	src.setErr(nil)
	require.NoError(t, m.RetryPermission(context.Background()))
	st = m.Status()
	assert.True(t, st.Camera.Active)
	assert.Empty(t, st.Camera.Error)
}

func TestManager_SingleShotFlow(t *testing.T) {
	var snapped []dto.ResultEntry
	m, _, events := newTestManager(t, config.ModeSingle, found(
		dto.Barcode{Value: "0123456789012", Format: "EAN_13"},
		dto.Barcode{Value: "ABC", Format: "CODE_39"},
	), WithSnapshotSink(func(session string, f dto.Frame, results []dto.ResultEntry) {
		snapped = results
	}))
	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, "idle", m.Status().Scan.State)

	st, err := m.CaptureNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, capture.StateCompleted, st.State)
	assert.Len(t, st.Results, 2)
	assert.Len(t, snapped, 2)
	assert.Len(t, events.ofType(dto.EventBarcodeNew), 2)

	_, err = m.CaptureNow(context.Background())
	assert.ErrorIs(t, err, capture.ErrBusy)

	require.NoError(t, m.ResetCapture())
	assert.Empty(t, m.Results())
	assert.Equal(t, "idle", m.Status().Scan.State)

	states := events.ofType(dto.EventScanState)
	require.NotEmpty(t, states)
	assert.Equal(t, "idle", states[len(states)-1].Data.(dto.ScanState).State)
}

func TestManager_CaptureWithoutCamera(t *testing.T) {
	m, _, _ := newTestManager(t, config.ModeSingle, found())
	m.DisableCamera()

	st, err := m.CaptureNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, capture.StateError, st.State)
	assert.Equal(t, "camera unavailable", st.Message)
}

func TestManager_ModeMismatch(t *testing.T) {
	m, _, _ := newTestManager(t, config.ModeContinuous, found())
	_, err := m.CaptureNow(context.Background())
	assert.ErrorIs(t, err, ErrWrongMode)
	assert.ErrorIs(t, m.ResetCapture(), ErrWrongMode)
}

func TestManager_CloseReleasesEverything(t *testing.T) {
	m, src, _ := newTestManager(t, config.ModeContinuous, found())
	require.NoError(t, m.Start(context.Background()))

	m.Close()
	m.Close()

	assert.True(t, src.streams[0].closed)
	assert.ErrorIs(t, m.EnableCamera(context.Background()), ErrSessionClosed)
	assert.False(t, m.Status().Camera.Active)
}

func TestManager_ClearResults(t *testing.T) {
	m, _, events := newTestManager(t, config.ModeSingle, found(dto.Barcode{Value: "A", Format: "QR_CODE"}))
	require.NoError(t, m.Start(context.Background()))
	_, err := m.CaptureNow(context.Background())
	require.NoError(t, err)
	require.Len(t, m.Results(), 1)

	require.Len(t, m.Status().Scan.Results, 1)

	m.ClearResults()
	assert.Empty(t, m.Results())

	st := m.Status()
	assert.Equal(t, string(capture.StateCompleted), st.Scan.State)
	assert.Empty(t, st.Scan.Results)

	states := events.ofType(dto.EventScanState)
	require.NotEmpty(t, states)
	last, ok := states[len(states)-1].Data.(dto.ScanState)
	require.True(t, ok)
	assert.Equal(t, string(capture.StateCompleted), last.State)
	assert.Empty(t, last.Results)
}

func TestManager_ConcurrentTogglesAlternate(t *testing.T) {
	m, _, _ := newTestManager(t, config.ModeSingle, found())

	var wg sync.WaitGroup
	results := make(chan bool, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			active, err := m.ToggleCamera(context.Background())
			assert.NoError(t, err)
			results <- active
		}()
	}
	wg.Wait()
	close(results)

	var enabled int
	for active := range results {
		if active {
			enabled++
		}
	}
	assert.Equal(t, 1, enabled)
	assert.False(t, m.Status().Camera.Active)
}
