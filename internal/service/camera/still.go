package camera

import (
	"context"
	"sync"

	"barcodescanner/internal/dto"
)

// StillSource serves one fixed image, e.g. a photo loaded from disk.
type StillSource struct {
	frame dto.Frame
}

// NewStillSource wraps frame.
func NewStillSource(frame dto.Frame) *StillSource {
	return &StillSource{frame: frame}
}

// Acquire returns a stream over the still image.
func (s *StillSource) Acquire(ctx context.Context, constraints Constraints) (Stream, error) {
	if s.frame.Empty() {
		return nil, ErrNotSupported
	}
	return &stillStream{frame: s.frame}, nil
}

type stillStream struct {
	mu     sync.Mutex
	frame  dto.Frame
	closed bool
}

func (s *stillStream) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *stillStream) Frame() (dto.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return dto.Frame{}, ErrClosed
	}
	return s.frame, nil
}

func (s *stillStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
