// Package capture implements single-shot scanning: grab one frame on demand,
// decode it once under a hard deadline and hold the outcome until reset.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"barcodescanner/internal/dto"
	"barcodescanner/internal/logger"
	"barcodescanner/internal/service/camera"
	"barcodescanner/internal/service/decoder"
	"barcodescanner/internal/service/dedup"
	"barcodescanner/internal/service/metrics"
)

// State of the capture state machine.
type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateNoResult   State = "no-result"
	StateError      State = "error"
)

// DefaultTimeout bounds a single decode.
const DefaultTimeout = 5000 * time.Millisecond

const driverName = "capture"

// ErrBusy is returned by Capture outside the idle state.
var ErrBusy = errors.New("capture not idle, reset first")

// Status is a point-in-time view of the state machine.
type Status struct {
	State     State             `json:"state"`
	Message   string            `json:"message,omitempty"`
	Results   []dto.ResultEntry `json:"results"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Option configures a Capturer.
type Option func(*Capturer)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Capturer) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithAnnounce sets the callback run for every entry that opened a fresh window.
func WithAnnounce(fn func(dto.ResultEntry)) Option {
	return func(c *Capturer) {
		c.announce = fn
	}
}

// WithSnapshot sets the callback receiving the analysed frame of a completed capture.
func WithSnapshot(fn func(dto.Frame, []dto.ResultEntry)) Option {
	return func(c *Capturer) {
		c.snapshot = fn
	}
}

// WithStateChange sets the callback run after every transition.
func WithStateChange(fn func(Status)) Option {
	return func(c *Capturer) {
		c.onChange = fn
	}
}

// Capturer is the single-shot scan driver of one session.
type Capturer struct {
	decoder  decoder.Decoder
	store    *dedup.Deduplicator
	logger   *logger.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration
	announce func(dto.ResultEntry)
	snapshot func(dto.Frame, []dto.ResultEntry)
	onChange func(Status)

	mu         sync.Mutex
	status     Status
	generation uint64
	cancel     context.CancelFunc
}

// New creates an idle Capturer.
func New(dec decoder.Decoder, store *dedup.Deduplicator, log *logger.Logger, m *metrics.Metrics, opts ...Option) *Capturer {
	c := &Capturer{
		decoder: dec,
		store:   store,
		logger:  log,
		metrics: m,
		timeout: DefaultTimeout,
		status:  Status{State: StateIdle, Results: []dto.ResultEntry{}, UpdatedAt: time.Now()},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout returns the decode deadline.
func (c *Capturer) Timeout() time.Duration {
	return c.timeout
}

// Status returns the current state.
func (c *Capturer) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyStatusLocked()
}

// Capture snapshots src and decodes it. It blocks until the capture resolves
// to completed, no-result or error, or until Reset abandons it. It only runs
// from idle.
func (c *Capturer) Capture(ctx context.Context, src camera.FrameSource) (Status, error) {
	c.mu.Lock()
	if c.status.State != StateIdle {
		st := c.copyStatusLocked()
		c.mu.Unlock()
		return st, ErrBusy
	}
	c.generation++
	gen := c.generation
	decodeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	c.cancel = cancel
	c.setLocked(StateProcessing, "", nil)
	c.mu.Unlock()
	c.notify()
	defer cancel()

	if src == nil || !src.Ready() {
		return c.resolve(gen, StateError, "camera unavailable", dto.Frame{}, nil), nil
	}
	frame, err := src.Frame()
	if err != nil {
		c.logger.Warning("Error capturing frame: %v", err)
		return c.resolve(gen, StateError, "camera unavailable", dto.Frame{}, nil), nil
	}

	type outcome struct {
		barcodes []dto.Barcode
		err      error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		barcodes, err := c.decoder.Decode(decodeCtx, frame)
		done <- outcome{barcodes, err}
	}()

	var res outcome
	select {
	case res = <-done:
	case <-decodeCtx.Done():
		res.err = decodeCtx.Err()
	}

	failed := res.err != nil && !errors.Is(res.err, decoder.ErrNoBarcodeFound)
	c.metrics.ObserveDecode(driverName, time.Since(start), failed)

	switch {
	case errors.Is(res.err, context.DeadlineExceeded):
		c.logger.Warning("⏱️  Capture timed out after %v", c.timeout)
		return c.resolve(gen, StateError, fmt.Sprintf("scan timed out after %v", c.timeout), frame, nil), nil
	case errors.Is(res.err, context.Canceled):
		// Reset already moved us to idle; otherwise the caller gave up.
		return c.resolve(gen, StateError, "capture cancelled", frame, nil), ctx.Err()
	case errors.Is(res.err, decoder.ErrNoBarcodeFound):
		return c.resolve(gen, StateNoResult, "no barcode found", frame, nil), nil
	case res.err != nil:
		c.logger.Error("Error decoding capture: %v", res.err)
		return c.resolve(gen, StateError, res.err.Error(), frame, nil), nil
	case len(res.barcodes) == 0:
		return c.resolve(gen, StateNoResult, "no barcode found", frame, nil), nil
	default:
		return c.resolve(gen, StateCompleted, "", frame, res.barcodes), nil
	}
}

// resolve applies an outcome unless a Reset happened since gen started.
func (c *Capturer) resolve(gen uint64, state State, message string, frame dto.Frame, barcodes []dto.Barcode) Status {
	c.mu.Lock()
	if gen != c.generation {
		st := c.copyStatusLocked()
		c.mu.Unlock()
		return st
	}

	var fresh []dto.ResultEntry
	var results []dto.ResultEntry
	if state == StateCompleted {
		detectedAt := frame.Timestamp
		if detectedAt.IsZero() {
			detectedAt = time.Now()
		}
		for _, b := range barcodes {
			if entry := c.store.AddOrUpdate(b.Value, b.Format, detectedAt); entry != nil {
				fresh = append(fresh, *entry)
			} else {
				c.metrics.Duplicate()
			}
		}
		results = c.store.Results()
	}
	c.cancel = nil
	c.setLocked(state, message, results)
	st := c.copyStatusLocked()
	c.mu.Unlock()

	c.metrics.CaptureOutcome(string(state))
	c.logger.Info("📸 Capture finished: %s (%d result(s))", state, len(results))
	for _, entry := range fresh {
		c.metrics.Announced(entry.Format)
		if c.announce != nil {
			c.announce(entry)
		}
	}
	if state == StateCompleted && c.snapshot != nil {
		c.snapshot(frame, results)
	}
	c.notify()
	return st
}

// Reset returns to idle from any state, abandoning an in-flight decode and
// clearing the deduplicator so the next capture starts fresh.
func (c *Capturer) Reset() {
	c.mu.Lock()
	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.store.Clear()
	c.setLocked(StateIdle, "", nil)
	c.mu.Unlock()
	c.notify()
}

// ClearResults empties the deduplicator and the reported results but keeps
// the current state.
func (c *Capturer) ClearResults() {
	c.mu.Lock()
	c.store.Clear()
	c.status.Results = []dto.ResultEntry{}
	c.status.UpdatedAt = time.Now()
	c.mu.Unlock()
	c.notify()
}

func (c *Capturer) setLocked(state State, message string, results []dto.ResultEntry) {
	if results == nil {
		results = []dto.ResultEntry{}
	}
	c.status = Status{State: state, Message: message, Results: results, UpdatedAt: time.Now()}
}

func (c *Capturer) copyStatusLocked() Status {
	st := c.status
	st.Results = append([]dto.ResultEntry(nil), c.status.Results...)
	if st.Results == nil {
		st.Results = []dto.ResultEntry{}
	}
	return st
}

func (c *Capturer) notify() {
	if c.onChange != nil {
		c.onChange(c.Status())
	}
}
