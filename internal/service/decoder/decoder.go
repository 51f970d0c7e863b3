// Package decoder defines the barcode decoding capability and its implementations.
package decoder

import (
	"context"
	"errors"

	"barcodescanner/internal/dto"
)

var (
	// ErrNoBarcodeFound means the frame decoded cleanly but held no barcode.
	ErrNoBarcodeFound = errors.New("no barcode found")
	// ErrDecode covers malformed frames and decoder failures.
	ErrDecode = errors.New("decode failed")
)

// Decoder turns a frame into zero or more barcodes. Implementations must be
// safe to call repeatedly and must not keep references to the frame.
type Decoder interface {
	Decode(ctx context.Context, frame dto.Frame) ([]dto.Barcode, error)
}

// Func adapts a plain function to Decoder.
type Func func(ctx context.Context, frame dto.Frame) ([]dto.Barcode, error)

// Decode calls f.
func (f Func) Decode(ctx context.Context, frame dto.Frame) ([]dto.Barcode, error) {
	return f(ctx, frame)
}
