package route

import (
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/gorilla/mux"

	"barcodescanner/internal/config"
	"barcodescanner/internal/handler"
	"barcodescanner/internal/logger"
	"barcodescanner/internal/middleware"
	"barcodescanner/internal/repository"
	"barcodescanner/internal/service"
	"barcodescanner/internal/service/camera"
	"barcodescanner/internal/service/decoder"
	"barcodescanner/internal/service/metrics"
	hub "barcodescanner/internal/service/websocket"
)

// Dependencies are the services the HTTP layer talks to.
type Dependencies struct {
	Config      *config.Config
	Logger      *logger.Logger
	Metrics     *metrics.Metrics
	Manager     *service.Manager
	Viewers     *hub.HubService
	Push        *camera.PushSource
	Decoder     decoder.Decoder
	DecodeImage camera.FrameDecoder
	Scans       repository.ScanRepository
}

// dynamicHTMLHandler serves /path as <dir>/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Path

		if page == "/" {
			page = "/index"
		}

		filePath := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+page))+".html")

		if info, err := os.Stat(filePath); err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers the API, WebSocket, log and metrics endpoints and
// wraps them with request logging and authentication.
func SetupRoutes(d Dependencies) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.RequestMiddleware(d.Logger, d.Metrics))

	// Static files
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(d.Config.StaticDirectory))))

	api := r.PathPrefix("/api").Subrouter()

	// Live session
	api.HandleFunc("/results", handler.ResultsHandler(d.Manager, d.Logger)).Methods(http.MethodGet)
	api.HandleFunc("/results", handler.ClearResultsHandler(d.Manager)).Methods(http.MethodDelete)
	api.HandleFunc("/status", handler.StatusHandler(d.Manager, d.Logger)).Methods(http.MethodGet)
	api.HandleFunc("/capture", handler.CaptureHandler(d.Manager, d.Logger)).Methods(http.MethodPost)
	api.HandleFunc("/capture/reset", handler.ResetCaptureHandler(d.Manager, d.Logger)).Methods(http.MethodPost)
	api.HandleFunc("/camera/toggle", handler.ToggleCameraHandler(d.Manager, d.Logger)).Methods(http.MethodPost)
	api.HandleFunc("/camera/retry", handler.RetryCameraHandler(d.Manager, d.Logger)).Methods(http.MethodPost)
	api.HandleFunc("/view", handler.ViewWebsocketHandler(d.Viewers, d.Logger))

	// Stateless decoding
	api.HandleFunc("/decode", handler.DecodeUploadHandler(d.Decoder, d.DecodeImage, d.Logger)).Methods(http.MethodPost)

	// History
	if d.Scans != nil {
		api.HandleFunc("/history", handler.GetHistoryHandler(d.Scans, d.Logger)).Methods(http.MethodGet)
		api.HandleFunc("/history", handler.ClearHistoryHandler(d.Config, d.Scans, d.Logger)).Methods(http.MethodDelete)
		api.HandleFunc("/history/formats", handler.HistoryFormatsHandler(d.Scans, d.Logger)).Methods(http.MethodGet)
		api.HandleFunc("/history/snapshot", handler.ViewSnapshotHandler(d.Config)).Methods(http.MethodGet)
	}

	// Camera ingest
	if d.Push != nil {
		r.HandleFunc("/camera", handler.CameraWebsocketHandler(d.Push, d.Viewers, d.Logger))
	}

	// Log endpoints
	for level, file := range map[string]string{
		"info":    logger.InfoFile,
		"warning": logger.WarningFile,
		"error":   logger.ErrorFile,
	} {
		r.HandleFunc("/logs/"+level, handler.ShowLogsHandler(d.Logger, file)).Methods(http.MethodGet)
		r.HandleFunc("/logs/"+level+"/clear", handler.ClearLogsHandler(d.Logger, file)).Methods(http.MethodPost, http.MethodDelete)
	}

	// Auth endpoints
	r.HandleFunc("/auth/login", handler.LoginHandler(d.Config, d.Logger)).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", handler.LogoutHandler).Methods(http.MethodPost)

	r.Handle("/metrics", d.Metrics.Handler())

	// Automatic HTML handler mapping for example: /settings -> /static/settings.html
	r.PathPrefix("/").HandlerFunc(dynamicHTMLHandler(d.Config.StaticDirectory)).Methods(http.MethodGet)

	return middleware.AuthMiddleware(d.Config.Password)(r)
}
