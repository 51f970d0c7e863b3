// Package cvqr decodes QR codes with OpenCV's QRCodeDetector.
package cvqr

import (
	"context"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"barcodescanner/internal/dto"
	"barcodescanner/internal/service/decoder"
)

// Format is the only format this decoder reports.
const Format = "QR_CODE"

// Decoder finds at most one QR code per call; wrap it in a
// decoder.RegionDecoder to pick up several per frame.
type Decoder struct {
	mu       sync.Mutex
	detector gocv.QRCodeDetector
}

func New() *Decoder {
	return &Decoder{detector: gocv.NewQRCodeDetector()}
}

func (d *Decoder) Decode(ctx context.Context, frame dto.Frame) ([]dto.Barcode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame.Empty() {
		return nil, fmt.Errorf("%w: empty frame", decoder.ErrDecode)
	}

	rgba, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC4, frame.Pix)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", decoder.ErrDecode, err)
	}
	defer rgba.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	if err := gocv.CvtColor(rgba, &bgr, gocv.ColorRGBAToBGR); err != nil {
		return nil, fmt.Errorf("%w: %v", decoder.ErrDecode, err)
	}

	points := gocv.NewMat()
	defer points.Close()
	straight := gocv.NewMat()
	defer straight.Close()

	d.mu.Lock()
	text := d.detector.DetectAndDecode(bgr, &points, &straight)
	d.mu.Unlock()

	if text == "" {
		return nil, decoder.ErrNoBarcodeFound
	}
	return []dto.Barcode{{Value: text, Format: Format}}, nil
}

// Close releases the native detector.
func (d *Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.detector.Close()
}
