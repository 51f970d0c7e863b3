package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"barcodescanner/internal/config"
	"barcodescanner/internal/dto"
	"barcodescanner/internal/handler"
	"barcodescanner/internal/logger"
	"barcodescanner/internal/repository/sqlite"
	"barcodescanner/internal/route"
	"barcodescanner/internal/service"
	"barcodescanner/internal/service/camera"
	"barcodescanner/internal/service/camera/cv"
	"barcodescanner/internal/service/decoder"
	"barcodescanner/internal/service/event"
	"barcodescanner/internal/service/metrics"
	"barcodescanner/internal/service/storage"
	"barcodescanner/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config  *config.Config
	logger  *logger.Logger
	metrics *metrics.Metrics

	db         *sqlite.DB
	decoder    decoder.Decoder
	decCloser  io.Closer
	bus        *event.Bus
	hubService *websocket.HubService
	history    *storage.HistoryService
	push       *camera.PushSource
	manager    *service.Manager
}

// NewApp wires every service. Nothing runs until Run.
func NewApp(cfg *config.Config, logger *logger.Logger) (*App, error) {
	m := metrics.New()

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	scans := sqlite.NewScanRepository(db)
	sessions := sqlite.NewSessionRepository(db)

	dec, decCloser, err := BuildDecoder(cfg, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	bus := event.NewBus(logger)
	hubService := websocket.NewHubService(logger, m)
	history := storage.NewHistoryService(cfg, logger, scans, cv.EncodeJPEG)

	constraints := camera.Constraints{
		Device: cfg.CameraDevice,
		Width:  cfg.CameraWidth,
		Height: cfg.CameraHeight,
		Facing: cfg.CameraFacing,
	}
	var source camera.Source
	var push *camera.PushSource
	switch cfg.CameraSource {
	case config.SourcePush:
		push = camera.NewPushSource(cv.DecodeJPEG)
		constraints.Device = cfg.CameraID
		source = push
	default:
		source = cv.NewDeviceSource(logger)
	}
	media := camera.NewMediaManager(source, constraints, logger)

	manager := service.NewManager(cfg, media, dec, bus, logger, m,
		service.WithSessionRepository(sessions),
		service.WithSnapshotSink(history.Snapshot),
	)

	a := &App{
		config:     cfg,
		logger:     logger,
		metrics:    m,
		db:         db,
		decoder:    dec,
		decCloser:  decCloser,
		bus:        bus,
		hubService: hubService,
		history:    history,
		push:       push,
		manager:    manager,
	}
	if err := subscribeEvents(a); err != nil {
		a.releaseStores()
		return nil, err
	}
	return a, nil
}

// subscribeEvents routes session events to viewers and history. Tests swap it.
var subscribeEvents = (*App).subscribeEvents

func (a *App) subscribeEvents() error {
	if err := a.bus.SubscribeAll(a.hubService.BroadcastEvent); err != nil {
		return fmt.Errorf("subscribe viewers: %w", err)
	}
	err := a.bus.Subscribe(dto.EventBarcodeNew, func(ev dto.Event) {
		if entry, ok := ev.Data.(dto.ResultEntry); ok {
			a.history.Record(ev.Session, entry)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe history: %w", err)
	}
	return nil
}

// releaseStores closes the decoder and the database.
func (a *App) releaseStores() {
	if err := a.decCloser.Close(); err != nil {
		a.logger.Warning("Error releasing decoder: %v", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database: %v", err)
	}
}

// Run serves HTTP (and UDP camera ingest in push mode) until ctx is done,
// then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	bgCtx, stopBackground := context.WithCancel(context.Background())
	historyDone := make(chan struct{})
	go a.hubService.Run(bgCtx)
	go func() {
		a.history.Run(bgCtx)
		close(historyDone)
	}()

	var udpConn net.PacketConn
	if a.push != nil {
		conn, err := handler.ListenUDP(a.config)
		if err != nil {
			a.logger.Error("Failed to listen on UDP port %d: %v", a.config.CamerasPort, err)
		} else {
			udpConn = conn
			go handler.UDPCameraHandler(conn, a.push, a.hubService, a.logger, a.config)
		}
	}

	if err := a.manager.Start(ctx); err != nil {
		// The session stays up; the camera can be retried from the UI.
		a.logger.Warning("⚠️  Camera not started: %v", err)
	}

	router := route.SetupRoutes(route.Dependencies{
		Config:      a.config,
		Logger:      a.logger,
		Metrics:     a.metrics,
		Manager:     a.manager,
		Viewers:     a.hubService,
		Push:        a.push,
		Decoder:     a.decoder,
		DecodeImage: cv.DecodeJPEG,
		Scans:       sqlite.NewScanRepository(a.db),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("🚀 Barcode Scanner")
	a.logger.Info("📍 URL: http://localhost:%d", a.config.Port)
	a.logger.Info("🔎 Mode: %s, decoder: %s, camera: %s", a.manager.Mode(), a.config.Decoder, a.config.CameraSource)
	a.logger.Info("📁 History: %s", a.config.DatabasePath)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	a.logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		a.logger.Error("HTTP shutdown error: %v", shutdownErr)
	}

	a.manager.Close()
	if udpConn != nil {
		udpConn.Close()
	}
	stopBackground()
	<-historyDone

	a.releaseStores()
	a.logger.Sync()

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
