package camera

import (
	"context"
	"errors"
	"testing"
	"time"

	"barcodescanner/internal/dto"
	"barcodescanner/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStream struct {
	closed int
}

func (s *countingStream) Ready() bool               { return true }
func (s *countingStream) Frame() (dto.Frame, error) { return dto.Frame{}, nil }
func (s *countingStream) Close() error              { s.closed++; return nil }

type countingSource struct {
	streams []*countingStream
	err     error
}

func (s *countingSource) Acquire(ctx context.Context, c Constraints) (Stream, error) {
	if s.err != nil {
		return nil, s.err
	}
	stream := &countingStream{}
	s.streams = append(s.streams, stream)
	return stream, nil
}

func TestMediaManager_ReacquireReleasesPrevious(t *testing.T) {
	source := &countingSource{}
	m := NewMediaManager(source, DefaultConstraints(), logger.NewNop())

	first, err := m.Acquire(context.Background())
	require.NoError(t, err)
	second, err := m.Acquire(context.Background())
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 1, source.streams[0].closed, "previous handle must be released")
	assert.Equal(t, 0, source.streams[1].closed)
	assert.Same(t, second, m.Current())
}

func TestMediaManager_ReleaseIsIdempotent(t *testing.T) {
	source := &countingSource{}
	m := NewMediaManager(source, DefaultConstraints(), logger.NewNop())

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)

	m.Release()
	m.Release()

	assert.Equal(t, 1, source.streams[0].closed)
	assert.False(t, m.Active())
}

func TestMediaManager_AcquireErrorKeepsNothingOpen(t *testing.T) {
	source := &countingSource{}
	m := NewMediaManager(source, DefaultConstraints(), logger.NewNop())
	_, err := m.Acquire(context.Background())
	require.NoError(t, err)

	source.err = ErrPermissionDenied
	_, err = m.Acquire(context.Background())

	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, 1, source.streams[0].closed)
	assert.Nil(t, m.Current())
}

func TestUserMessage(t *testing.T) {
	assert.Empty(t, UserMessage(nil))
	assert.Contains(t, UserMessage(ErrPermissionDenied), "denied")
	assert.Contains(t, UserMessage(ErrNotSupported), "No supported camera")
	assert.Contains(t, UserMessage(errors.New("usb reset")), "usb reset")
}

func decodeStub(data []byte) (dto.Frame, error) {
	if string(data) == "bad" {
		return dto.Frame{}, errors.New("not a jpeg")
	}
	return dto.Frame{Pix: make([]byte, 4), Width: 1, Height: 1}, nil
}

func TestPushSource_FollowsNamedCamera(t *testing.T) {
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	source := NewPushSource(decodeStub)
	source.now = func() time.Time { return now }

	stream, err := source.Acquire(context.Background(), Constraints{Device: "dock"})
	require.NoError(t, err)
	assert.False(t, stream.Ready())

	_, err = stream.Frame()
	assert.ErrorIs(t, err, ErrNotReady)

	source.Push("gate", []byte("jpeg"))
	assert.False(t, stream.Ready(), "frames from other cameras are ignored")

	source.Push("dock", []byte("jpeg"))
	assert.True(t, stream.Ready())

	frame, err := stream.Frame()
	require.NoError(t, err)
	assert.True(t, frame.Timestamp.Equal(now))
	assert.ElementsMatch(t, []string{"gate", "dock"}, source.Cameras())
}

func TestPushSource_StaleFrameIsNotReady(t *testing.T) {
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	source := NewPushSource(decodeStub)
	source.now = func() time.Time { return now }

	stream, err := source.Acquire(context.Background(), Constraints{})
	require.NoError(t, err)
	source.Push("any", []byte("jpeg"))
	assert.True(t, stream.Ready())

	now = now.Add(DefaultStaleAfter)
	assert.False(t, stream.Ready())
}

func TestPushSource_DecodeErrorAndClose(t *testing.T) {
	source := NewPushSource(decodeStub)
	stream, err := source.Acquire(context.Background(), Constraints{})
	require.NoError(t, err)

	source.Push("cam", []byte("bad"))
	_, err = stream.Frame()
	assert.Error(t, err)

	require.NoError(t, stream.Close())
	assert.False(t, stream.Ready())
	_, err = stream.Frame()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPushSource_WithoutDecoder(t *testing.T) {
	_, err := NewPushSource(nil).Acquire(context.Background(), Constraints{})
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestStillSource(t *testing.T) {
	_, err := NewStillSource(dto.Frame{}).Acquire(context.Background(), Constraints{})
	assert.ErrorIs(t, err, ErrNotSupported)

	frame := dto.Frame{Pix: make([]byte, 16), Width: 2, Height: 2}
	stream, err := NewStillSource(frame).Acquire(context.Background(), Constraints{})
	require.NoError(t, err)
	assert.True(t, stream.Ready())

	got, err := stream.Frame()
	require.NoError(t, err)
	assert.Equal(t, 2, got.Width)

	stream.Close()
	assert.False(t, stream.Ready())
}
