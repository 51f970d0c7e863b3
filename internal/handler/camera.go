package handler

import (
	"bytes"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"barcodescanner/internal/config"
	"barcodescanner/internal/logger"
	"barcodescanner/internal/service/camera"
	hub "barcodescanner/internal/service/websocket"
)

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// MaxFrameSize caps a frame being reassembled; larger frames are dropped.
const MaxFrameSize = MaxUploadSize

// FrameAssembler rebuilds JPEG frames from datagrams: a packet starting with
// SOI opens a frame, a packet ending with EOI closes it. Only cameras with a
// frame in progress hold a buffer.
type FrameAssembler struct {
	buffers map[string]*bytes.Buffer
	limit   int
}

func NewFrameAssembler() *FrameAssembler {
	return &FrameAssembler{buffers: make(map[string]*bytes.Buffer), limit: MaxFrameSize}
}

// Add appends data for camera and returns the finished frame, if any.
func (a *FrameAssembler) Add(camera string, data []byte) []byte {
	buf, ok := a.buffers[camera]
	if bytes.HasPrefix(data, jpegHeader) {
		if !ok {
			buf = new(bytes.Buffer)
			a.buffers[camera] = buf
		}
		buf.Reset()
	} else if !ok {
		// Mid-frame packet without a start; wait for the next SOI.
		return nil
	}

	if buf.Len()+len(data) > a.limit {
		delete(a.buffers, camera)
		return nil
	}
	buf.Write(data)

	if !bytes.HasSuffix(data, jpegFooter) {
		return nil
	}
	frame := make([]byte, buf.Len())
	copy(frame, buf.Bytes())
	delete(a.buffers, camera)
	return frame
}

// Pending reports how many cameras have a frame in progress.
func (a *FrameAssembler) Pending() int {
	return len(a.buffers)
}

// UDPCameraHandler listens for UDP packets from cameras, reconstructs JPEG
// frames and pushes complete frames to the push source and the viewers. It
// returns when conn is closed.
func UDPCameraHandler(conn net.PacketConn, push *camera.PushSource, viewers *hub.HubService, logger *logger.Logger, config *config.Config) {
	logger.Info("UDP Camera handler started on %s", conn.LocalAddr())
	buffer := make([]byte, 65535)
	assembler := NewFrameAssembler()

	for {
		n, remoteAddr, err := conn.ReadFrom(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Info("UDP Camera handler stopped")
				return
			}
			logger.Error("Error reading UDP packet: %v", err)
			continue
		}

		cameraName := cameraNameFor(remoteAddr, config.CameraNames)
		if frame := assembler.Add(cameraName, buffer[:n]); frame != nil {
			push.Push(cameraName, frame)
			if viewers != nil {
				viewers.BroadcastFrame(cameraName, frame)
			}
		}
	}
}

// ListenUDP opens the camera ingest socket on config.CamerasPort.
func ListenUDP(config *config.Config) (net.PacketConn, error) {
	return net.ListenPacket("udp", ":"+strconv.Itoa(config.CamerasPort))
}

func cameraNameFor(addr net.Addr, names map[string]string) string {
	ip := addr.String()
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	if name, ok := names[ip]; ok {
		return name
	}
	return "unknown_" + strings.ReplaceAll(ip, ":", "_")
}

// CameraWebsocketHandler accepts a camera streaming whole JPEG frames as
// binary WebSocket messages; the camera is named by the "id" query parameter.
func CameraWebsocketHandler(push *camera.PushSource, viewers *hub.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cameraID := r.URL.Query().Get("id")
		if cameraID == "" {
			http.Error(w, "id parameter is required", http.StatusBadRequest)
			return
		}

		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		defer connection.Close()
		connection.SetReadLimit(MaxFrameSize)
		logger.Info("📹 Camera %s connected", cameraID)

		for {
			messageType, data, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Camera %s disconnected normally", cameraID)
				} else {
					logger.Warning("Camera %s disconnected with error: %v", cameraID, err)
				}
				return
			}
			if messageType != websocket.BinaryMessage || !bytes.HasPrefix(data, jpegHeader) {
				continue
			}
			push.Push(cameraID, data)
			if viewers != nil {
				viewers.BroadcastFrame(cameraID, data)
			}
		}
	}
}

// ViewWebsocketHandler handles viewer connections over WebSocket and
// registers them in the HubService to receive session events.
func ViewWebsocketHandler(viewers *hub.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		viewers.Register(connection)
		defer viewers.Unregister(connection)

		for {
			_, _, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Viewer disconnected normally")
				} else {
					logger.Debug("Viewer disconnected: %v", err)
				}
				break
			}
		}
	}
}
