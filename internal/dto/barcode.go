package dto

import "time"

// Barcode is a single (value, format) pair returned by a decoder.
type Barcode struct {
	Value  string `json:"value"`
	Format string `json:"format"`
}

// Key returns the composite key used to tell barcodes apart.
func (b Barcode) Key() string {
	return EntryID(b.Format, b.Value)
}

// RawDetection is a decoded barcode stamped with the time its frame was taken.
type RawDetection struct {
	Value     string
	Format    string
	Timestamp time.Time
}

// DecodeResponse is the body of a successful upload decode.
type DecodeResponse struct {
	Barcodes []Barcode `json:"barcodes"`
}

// DecodeErrorResponse is the body returned by the decode endpoint on failure.
// Remote services may use either field.
type DecodeErrorResponse struct {
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Message returns whichever of Detail or Error is set.
func (e DecodeErrorResponse) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Error
}
