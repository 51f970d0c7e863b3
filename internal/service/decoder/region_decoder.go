package decoder

import (
	"context"
	"errors"
	"fmt"

	"barcodescanner/internal/dto"
	"barcodescanner/internal/logger"
)

// RegionDecoder runs an inner decoder over every region of a Strategy and
// merges the results. A region that fails does not stop the others.
type RegionDecoder struct {
	inner    Decoder
	strategy Strategy
	logger   *logger.Logger
}

// NewRegionDecoder wraps inner. An empty strategy means the full frame only.
func NewRegionDecoder(inner Decoder, strategy Strategy, logger *logger.Logger) *RegionDecoder {
	if len(strategy) == 0 {
		strategy = FullFrame()
	}
	return &RegionDecoder{
		inner:    inner,
		strategy: strategy,
		logger:   logger,
	}
}

// Strategy returns the regions attempted per frame.
func (d *RegionDecoder) Strategy() Strategy {
	return d.strategy
}

// Decode returns every distinct barcode found in any region, in first-seen order.
func (d *RegionDecoder) Decode(ctx context.Context, frame dto.Frame) ([]dto.Barcode, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("%w: empty frame", ErrDecode)
	}

	seen := make(map[string]struct{})
	var found []dto.Barcode
	var lastErr error

	for _, region := range d.strategy {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sub, ok := frame.Crop(region.Rect(frame.Width, frame.Height))
		if !ok {
			continue
		}

		barcodes, err := d.inner.Decode(ctx, sub)
		if err != nil {
			if !errors.Is(err, ErrNoBarcodeFound) {
				d.logger.Debug("Region %s failed to decode: %v", region.Name, err)
				lastErr = err
			}
			continue
		}

		for _, b := range barcodes {
			if _, dup := seen[b.Key()]; dup {
				continue
			}
			seen[b.Key()] = struct{}{}
			found = append(found, b)
		}
	}

	if len(found) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, ErrNoBarcodeFound
	}
	return found, nil
}
