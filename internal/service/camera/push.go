package camera

import (
	"context"
	"fmt"
	"sync"
	"time"

	"barcodescanner/internal/dto"
)

// DefaultStaleAfter is how old the newest pushed frame may be before a stream
// stops reporting itself ready.
const DefaultStaleAfter = 2 * time.Second

type pushedFrame struct {
	data       []byte
	receivedAt time.Time
}

// PushSource collects encoded frames pushed by network cameras (UDP or
// WebSocket) and exposes the newest one per camera as a Stream.
type PushSource struct {
	mu         sync.RWMutex
	frames     map[string]pushedFrame // camera name -> newest frame
	latest     string                 // camera that pushed most recently
	decode     FrameDecoder
	staleAfter time.Duration
	now        func() time.Time
}

// NewPushSource creates a source decoding frames with decode.
func NewPushSource(decode FrameDecoder) *PushSource {
	return &PushSource{
		frames:     make(map[string]pushedFrame),
		decode:     decode,
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
	}
}

// Push stores data as the newest frame of camera. data is retained; callers
// must not reuse the slice.
func (s *PushSource) Push(camera string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames[camera] = pushedFrame{data: data, receivedAt: s.now()}
	s.latest = camera
}

// Cameras lists the cameras that have pushed at least one frame.
func (s *PushSource) Cameras() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.frames))
	for name := range s.frames {
		names = append(names, name)
	}
	return names
}

// Acquire follows constraints.Device, or whichever camera pushed last when
// Device is empty.
func (s *PushSource) Acquire(ctx context.Context, constraints Constraints) (Stream, error) {
	if s.decode == nil {
		return nil, fmt.Errorf("%w: no frame decoder configured", ErrNotSupported)
	}
	return &pushStream{source: s, camera: constraints.Device}, nil
}

func (s *PushSource) newest(camera string) (pushedFrame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if camera == "" {
		camera = s.latest
	}
	f, ok := s.frames[camera]
	return f, ok
}

type pushStream struct {
	source *PushSource
	camera string

	mu     sync.Mutex
	closed bool
}

func (p *pushStream) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *pushStream) Ready() bool {
	if p.isClosed() {
		return false
	}
	f, ok := p.source.newest(p.camera)
	return ok && len(f.data) > 0 && p.source.now().Sub(f.receivedAt) < p.source.staleAfter
}

func (p *pushStream) Frame() (dto.Frame, error) {
	if p.isClosed() {
		return dto.Frame{}, ErrClosed
	}
	f, ok := p.source.newest(p.camera)
	if !ok {
		return dto.Frame{}, ErrNotReady
	}

	frame, err := p.source.decode(f.data)
	if err != nil {
		return dto.Frame{}, fmt.Errorf("failed to decode pushed frame: %w", err)
	}
	frame.Timestamp = f.receivedAt
	return frame, nil
}

func (p *pushStream) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
