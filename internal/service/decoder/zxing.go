package decoder

import (
	"context"
	"fmt"
	"sync"

	"barcodescanner/internal/dto"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

type zxingReader struct {
	formats []gozxing.BarcodeFormat
	reader  gozxing.Reader
}

// ZXingDecoder decodes QR, Data Matrix and the common 1D symbologies in pure Go.
// Every reader is tried on each frame, so one frame can yield several formats.
type ZXingDecoder struct {
	mu      sync.Mutex
	readers []zxingReader
	hints   map[gozxing.DecodeHintType]interface{}
}

// NewZXingDecoder restricts decoding to the given format names (e.g. "QR_CODE",
// "EAN_13"). No names means every supported format.
func NewZXingDecoder(formats ...string) (*ZXingDecoder, error) {
	wanted, err := parseFormats(formats)
	if err != nil {
		return nil, err
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	if len(wanted) > 0 {
		hints[gozxing.DecodeHintType_POSSIBLE_FORMATS] = wanted
	}

	all := []zxingReader{
		{[]gozxing.BarcodeFormat{gozxing.BarcodeFormat_QR_CODE}, qrcode.NewQRCodeReader()},
		{[]gozxing.BarcodeFormat{gozxing.BarcodeFormat_DATA_MATRIX}, datamatrix.NewDataMatrixReader()},
		{[]gozxing.BarcodeFormat{
			gozxing.BarcodeFormat_EAN_13,
			gozxing.BarcodeFormat_EAN_8,
			gozxing.BarcodeFormat_UPC_A,
			gozxing.BarcodeFormat_UPC_E,
		}, oned.NewMultiFormatUPCEANReader(hints)},
		{[]gozxing.BarcodeFormat{gozxing.BarcodeFormat_CODE_128}, oned.NewCode128Reader()},
		{[]gozxing.BarcodeFormat{gozxing.BarcodeFormat_CODE_39}, oned.NewCode39Reader()},
	}

	d := &ZXingDecoder{hints: hints}
	for _, r := range all {
		if len(wanted) == 0 || overlaps(r.formats, wanted) {
			d.readers = append(d.readers, r)
		}
	}
	return d, nil
}

// Decode runs every enabled reader over the frame.
func (d *ZXingDecoder) Decode(ctx context.Context, frame dto.Frame) ([]dto.Barcode, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("%w: empty frame", ErrDecode)
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(frame.RGBA())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var found []dto.Barcode
	for _, r := range d.readers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := r.reader.Decode(bmp, d.hints)
		r.reader.Reset()
		if err != nil {
			// Readers report "not found", checksum and format problems the same way.
			continue
		}
		found = append(found, dto.Barcode{
			Value:  result.GetText(),
			Format: result.GetBarcodeFormat().String(),
		})
	}

	if len(found) == 0 {
		return nil, ErrNoBarcodeFound
	}
	return found, nil
}

var supportedFormats = map[string]gozxing.BarcodeFormat{
	"QR_CODE":     gozxing.BarcodeFormat_QR_CODE,
	"DATA_MATRIX": gozxing.BarcodeFormat_DATA_MATRIX,
	"EAN_13":      gozxing.BarcodeFormat_EAN_13,
	"EAN_8":       gozxing.BarcodeFormat_EAN_8,
	"UPC_A":       gozxing.BarcodeFormat_UPC_A,
	"UPC_E":       gozxing.BarcodeFormat_UPC_E,
	"CODE_128":    gozxing.BarcodeFormat_CODE_128,
	"CODE_39":     gozxing.BarcodeFormat_CODE_39,
}

func parseFormats(names []string) ([]gozxing.BarcodeFormat, error) {
	var formats []gozxing.BarcodeFormat
	for _, name := range names {
		f, ok := supportedFormats[name]
		if !ok {
			return nil, fmt.Errorf("unsupported barcode format %q", name)
		}
		formats = append(formats, f)
	}
	return formats, nil
}

func overlaps(a, b []gozxing.BarcodeFormat) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
