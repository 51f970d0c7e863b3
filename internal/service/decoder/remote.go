package decoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"barcodescanner/internal/dto"
)

// FrameEncoder serializes a frame into an image payload (JPEG in production).
type FrameEncoder func(frame dto.Frame) ([]byte, error)

// RemoteDecoder uploads each frame to a scanning endpoint. Any failure,
// whether network, status or body, is reported as ErrDecode.
type RemoteDecoder struct {
	url    string
	encode FrameEncoder
	client *http.Client
}

// NewRemoteDecoder creates a decoder posting to url.
func NewRemoteDecoder(url string, encode FrameEncoder, timeout time.Duration) *RemoteDecoder {
	return &RemoteDecoder{
		url:    url,
		encode: encode,
		client: &http.Client{Timeout: timeout},
	}
}

// Decode posts the frame as multipart field "file".
func (d *RemoteDecoder) Decode(ctx context.Context, frame dto.Frame) ([]dto.Barcode, error) {
	payload, err := d.encode(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: encode frame: %v", ErrDecode, err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("%w: create form file: %v", ErrDecode, err)
	}
	if _, err := part.Write(payload); err != nil {
		return nil, fmt.Errorf("%w: write form file: %v", ErrDecode, err)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, body)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrDecode, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: send request: %v", ErrDecode, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrDecode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var failure dto.DecodeErrorResponse
		if json.Unmarshal(data, &failure) == nil && failure.Message() != "" {
			return nil, fmt.Errorf("%w: %s (status %d)", ErrDecode, failure.Message(), resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: status %d", ErrDecode, resp.StatusCode)
	}

	var result struct {
		Barcodes *[]dto.Barcode `json:"barcodes"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrDecode, err)
	}
	if result.Barcodes == nil {
		return nil, fmt.Errorf("%w: response has no barcodes field", ErrDecode)
	}
	if len(*result.Barcodes) == 0 {
		return nil, ErrNoBarcodeFound
	}
	return *result.Barcodes, nil
}
