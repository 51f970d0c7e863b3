package dto

import "time"

// Event types pushed to viewers.
const (
	EventBarcodeNew  = "barcode.new"
	EventScanState   = "scan.state"
	EventCameraState = "camera.state"
)

// Event is the JSON envelope broadcast over the viewer WebSocket.
type Event struct {
	Type      string      `json:"type"`
	Session   string      `json:"session"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// CameraState describes the camera of a session.
type CameraState struct {
	Active bool   `json:"active"`
	Error  string `json:"error,omitempty"`
}

// ScanState mirrors the single-shot driver state.
type ScanState struct {
	State   string        `json:"state"`
	Message string        `json:"message,omitempty"`
	Results []ResultEntry `json:"results,omitempty"`
}

// SessionStatus is returned by GET /api/status.
type SessionStatus struct {
	Session     string      `json:"session"`
	Mode        string      `json:"mode"`
	Camera      CameraState `json:"camera"`
	Scan        ScanState   `json:"scan"`
	ResultCount int         `json:"resultCount"`
}
