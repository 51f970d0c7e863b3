// Package cv backs the camera layer with OpenCV: local capture devices and
// conversions between encoded images and frames.
package cv

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"barcodescanner/internal/dto"
	"barcodescanner/internal/logger"
	"barcodescanner/internal/service/camera"
)

// DeviceSource opens local cameras (V4L2 index, device path or stream URL).
type DeviceSource struct {
	logger *logger.Logger
}

func NewDeviceSource(logger *logger.Logger) *DeviceSource {
	return &DeviceSource{logger: logger}
}

// Acquire opens the device and starts a reader that keeps the latest frame.
func (s *DeviceSource) Acquire(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var device interface{} = c.Device
	if idx, err := strconv.Atoi(c.Device); err == nil {
		device = idx
	}

	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "permission") {
			return nil, fmt.Errorf("%w: %v", camera.ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("%w: %v", camera.ErrDevice, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: device %s did not open", camera.ErrNotSupported, c.Device)
	}

	if c.Width > 0 && c.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))
	}
	if c.Facing != "" {
		s.logger.Debug("Facing preference %q ignored for device %s", c.Facing, c.Device)
	}

	readerCtx, cancel := context.WithCancel(context.Background())
	st := &deviceStream{
		capture: capture,
		latest:  gocv.NewMat(),
		cancel:  cancel,
		done:    make(chan struct{}),
		logger:  s.logger,
	}
	go st.read(readerCtx)
	return st, nil
}

type deviceStream struct {
	capture *gocv.VideoCapture
	logger  *logger.Logger
	cancel  context.CancelFunc
	done    chan struct{}

	mu         sync.Mutex
	latest     gocv.Mat
	capturedAt time.Time
	closed     bool
}

func (d *deviceStream) read(ctx context.Context) {
	defer close(d.done)

	img := gocv.NewMat()
	defer img.Close()

	failures := 0
	for ctx.Err() == nil {
		if ok := d.capture.Read(&img); !ok || img.Empty() {
			failures++
			if failures%100 == 1 {
				d.logger.Warning("⚠️  Camera returned no frame (%d in a row)", failures)
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		failures = 0

		d.mu.Lock()
		img.CopyTo(&d.latest)
		d.capturedAt = time.Now()
		d.mu.Unlock()
	}
}

func (d *deviceStream) Ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.closed && !d.latest.Empty()
}

func (d *deviceStream) Frame() (dto.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return dto.Frame{}, camera.ErrClosed
	}
	if d.latest.Empty() {
		return dto.Frame{}, camera.ErrNotReady
	}
	return matToFrame(d.latest, d.capturedAt)
}

func (d *deviceStream) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	<-d.done

	d.mu.Lock()
	defer d.mu.Unlock()
	d.latest.Close()
	return d.capture.Close()
}

// matToFrame converts a BGR matrix to an RGBA frame.
func matToFrame(mat gocv.Mat, ts time.Time) (dto.Frame, error) {
	rgba := gocv.NewMat()
	defer rgba.Close()

	if err := gocv.CvtColor(mat, &rgba, gocv.ColorBGRToRGBA); err != nil {
		return dto.Frame{}, fmt.Errorf("failed to convert frame: %w", err)
	}
	return dto.Frame{
		Pix:       rgba.ToBytes(),
		Width:     rgba.Cols(),
		Height:    rgba.Rows(),
		Timestamp: ts,
	}, nil
}

// DecodeJPEG decodes an encoded image (JPEG, PNG) into a frame. It is the
// camera.FrameDecoder for pushed frames.
func DecodeJPEG(data []byte) (dto.Frame, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return dto.Frame{}, fmt.Errorf("failed to decode image: %v", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return dto.Frame{}, fmt.Errorf("decoded image is empty")
	}
	return matToFrame(mat, time.Now())
}

// ReadImageFile loads an image from disk.
func ReadImageFile(path string) (dto.Frame, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	defer mat.Close()

	if mat.Empty() {
		return dto.Frame{}, fmt.Errorf("failed to read image %s", path)
	}
	return matToFrame(mat, time.Now())
}

// EncodeJPEG encodes a frame as JPEG.
func EncodeJPEG(frame dto.Frame) ([]byte, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	rgba, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC4, frame.Pix)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap frame: %w", err)
	}
	defer rgba.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	if err := gocv.CvtColor(rgba, &bgr, gocv.ColorRGBAToBGR); err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}

	buf, err := gocv.IMEncode(".jpg", bgr)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
