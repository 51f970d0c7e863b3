// Package sampler drives continuous scanning: on every display tick it decides
// whether to grab a frame and decode it, feeding results to the deduplicator.
package sampler

import (
	"context"
	"errors"
	"sync"
	"time"

	"barcodescanner/internal/dto"
	"barcodescanner/internal/logger"
	"barcodescanner/internal/service/camera"
	"barcodescanner/internal/service/decoder"
	"barcodescanner/internal/service/dedup"
	"barcodescanner/internal/service/metrics"
)

const driverName = "sampler"

// Config tunes the sampling gates.
type Config struct {
	TickInterval time.Duration // display refresh cadence
	FrameSkip    int           // analyse every Nth tick
	MinInterval  time.Duration // minimum spacing between decode attempts
}

// DefaultConfig is ~60 Hz ticks, every second tick, at most 10 decodes per second.
func DefaultConfig() Config {
	return Config{
		TickInterval: 16 * time.Millisecond,
		FrameSkip:    2,
		MinInterval:  100 * time.Millisecond,
	}
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithClock replaces the clock used by the throttle gate.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) {
		s.now = now
	}
}

// WithAnnounce sets the callback run once for every entry that opened a fresh
// deduplication window.
func WithAnnounce(fn func(dto.ResultEntry)) Option {
	return func(s *Sampler) {
		s.announce = fn
	}
}

// Sampler is the continuous scan driver of one session.
type Sampler struct {
	cfg      Config
	decoder  decoder.Decoder
	store    *dedup.Deduplicator
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	announce func(dto.ResultEntry)

	mu          sync.Mutex
	enabled     bool
	generation  uint64
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	source      camera.FrameSource
	ticks       uint64
	lastAttempt time.Time
	inFlight    bool
}

// New creates a disabled sampler.
func New(cfg Config, dec decoder.Decoder, store *dedup.Deduplicator, log *logger.Logger, m *metrics.Metrics, opts ...Option) *Sampler {
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.FrameSkip < 1 {
		cfg.FrameSkip = 1
	}
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}

	s := &Sampler{
		cfg:     cfg,
		decoder: dec,
		store:   store,
		logger:  log,
		metrics: m,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enable starts sampling src. It is a no-op while already enabled.
func (s *Sampler) Enable(src camera.FrameSource) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enabled {
		return
	}
	s.enabled = true
	s.generation++
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.done = make(chan struct{})
	s.source = src
	s.ticks = 0
	s.lastAttempt = time.Time{}
	s.inFlight = false

	go s.run(s.ctx, s.done)
	s.logger.Info("🎬 Sampler enabled - analysing every %d tick(s), at most one decode per %v",
		s.cfg.FrameSkip, s.cfg.MinInterval)
}

// Disable stops the tick loop and cancels any in-flight decode. Results that
// arrive afterwards are discarded.
func (s *Sampler) Disable() {
	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		return
	}
	s.enabled = false
	s.generation++
	s.cancel()
	s.inFlight = false
	s.source = nil
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("⏹️  Sampler disabled")
}

// Enabled reports whether the tick loop is running.
func (s *Sampler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Busy reports whether a decode is in flight.
func (s *Sampler) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

func (s *Sampler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.step(s.now())
		}
	}
}

// step runs the per-tick gates in order: frame skip, throttle, in-flight,
// readiness. When all pass it extracts the frame and starts a decode.
func (s *Sampler) step(now time.Time) {
	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		return
	}

	s.ticks++
	s.metrics.SamplerTick()

	if s.ticks%uint64(s.cfg.FrameSkip) != 0 {
		s.mu.Unlock()
		s.metrics.SamplerSkipped(metrics.SkipFrame)
		return
	}
	if !s.lastAttempt.IsZero() && now.Sub(s.lastAttempt) < s.cfg.MinInterval {
		s.mu.Unlock()
		s.metrics.SamplerSkipped(metrics.SkipThrottle)
		return
	}
	if s.inFlight {
		s.mu.Unlock()
		s.metrics.SamplerSkipped(metrics.SkipInFlight)
		return
	}
	if s.source == nil || !s.source.Ready() {
		s.mu.Unlock()
		s.metrics.SamplerSkipped(metrics.SkipNotReady)
		return
	}

	s.lastAttempt = now
	s.inFlight = true
	gen, ctx, src := s.generation, s.ctx, s.source
	s.mu.Unlock()

	frame, err := src.Frame()
	if err != nil {
		s.logger.Warning("Error reading frame: %v", err)
		s.finish(gen, time.Time{}, nil)
		return
	}

	go s.analyze(ctx, gen, frame)
}

func (s *Sampler) analyze(ctx context.Context, gen uint64, frame dto.Frame) {
	start := time.Now()
	barcodes, err := s.decoder.Decode(ctx, frame)
	failed := err != nil && !errors.Is(err, decoder.ErrNoBarcodeFound)
	s.metrics.ObserveDecode(driverName, time.Since(start), failed)

	switch {
	case err == nil:
	case errors.Is(err, decoder.ErrNoBarcodeFound):
		s.logger.Debug("No barcode in frame")
	case errors.Is(err, context.Canceled):
		s.logger.Debug("Decode cancelled")
	default:
		s.logger.Warning("Error decoding frame: %v", err)
	}

	s.finish(gen, frame.Timestamp, barcodes)
}

// finish applies the outcome of one attempt unless the sampler was disabled
// or re-enabled since the attempt began.
func (s *Sampler) finish(gen uint64, detectedAt time.Time, barcodes []dto.Barcode) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.inFlight = false
	if detectedAt.IsZero() {
		detectedAt = s.now()
	}

	var fresh []dto.ResultEntry
	for _, b := range barcodes {
		if entry := s.store.AddOrUpdate(b.Value, b.Format, detectedAt); entry != nil {
			fresh = append(fresh, *entry)
		} else {
			s.metrics.Duplicate()
		}
	}
	s.mu.Unlock()

	for _, entry := range fresh {
		s.metrics.Announced(entry.Format)
		s.logger.Info("🔖 New %s barcode: %s", entry.Format, entry.Value)
		if s.announce != nil {
			s.announce(entry)
		}
	}
}
