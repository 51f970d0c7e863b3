// Package camera defines media sources and owns the camera stream of a session.
package camera

import (
	"context"
	"errors"

	"barcodescanner/internal/dto"
)

// Acquisition errors. They end the camera session until an explicit retry.
var (
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrNotSupported     = errors.New("camera not supported")
	ErrDevice           = errors.New("camera device error")
	// ErrNotReady is returned by Frame when no frame has been received yet.
	ErrNotReady = errors.New("camera has no frame yet")
	// ErrClosed is returned by Frame after the stream was released.
	ErrClosed = errors.New("camera stream closed")
)

// Constraints are the caller's preferences for a stream.
type Constraints struct {
	Device string // device index/path, or camera name for pushed streams
	Width  int
	Height int
	Facing string // "environment" (rear) or "user"
}

// DefaultConstraints asks for a 1280x720 rear camera.
func DefaultConstraints() Constraints {
	return Constraints{Device: "0", Width: 1280, Height: 720, Facing: "environment"}
}

// Source opens camera streams.
type Source interface {
	Acquire(ctx context.Context, constraints Constraints) (Stream, error)
}

// FrameSource yields the current frame on demand.
type FrameSource interface {
	// Ready reports whether enough data is buffered to extract a frame.
	Ready() bool
	// Frame returns a snapshot of the current frame.
	Frame() (dto.Frame, error)
}

// Stream is an acquired camera. Close releases it.
type Stream interface {
	FrameSource
	Close() error
}

// FrameDecoder turns an encoded image (JPEG, PNG) into a frame.
type FrameDecoder func(data []byte) (dto.Frame, error)

// UserMessage returns the text shown for an acquisition error.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "Camera access was denied. Grant permission and retry."
	case errors.Is(err, ErrNotSupported):
		return "No supported camera is available on this device."
	default:
		return "The camera could not be started: " + err.Error()
	}
}
