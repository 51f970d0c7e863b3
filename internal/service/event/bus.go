// Package event carries session events (new barcodes, scan and camera state)
// from the session manager to the viewer hub, history and metrics.
package event

import (
	"time"

	evbus "github.com/asaskevich/EventBus"

	"barcodescanner/internal/dto"
	"barcodescanner/internal/logger"
)

// Topics lists every event type published on the bus.
var Topics = []string{dto.EventBarcodeNew, dto.EventScanState, dto.EventCameraState}

// Handler receives one event.
type Handler func(dto.Event)

// Bus is a synchronous in-process publish/subscribe bus.
type Bus struct {
	bus    evbus.Bus
	logger *logger.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *logger.Logger) *Bus {
	return &Bus{bus: evbus.New(), logger: logger}
}

// Publish delivers ev to the subscribers of ev.Type. A zero Timestamp is
// filled in.
func (b *Bus) Publish(ev dto.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if !b.bus.HasCallback(ev.Type) {
		return
	}
	b.bus.Publish(ev.Type, ev)
}

// Subscribe registers h for topic.
func (b *Bus) Subscribe(topic string, h Handler) error {
	if err := b.bus.Subscribe(topic, func(ev dto.Event) { h(ev) }); err != nil {
		b.logger.Error("Error subscribing to %s: %v", topic, err)
		return err
	}
	return nil
}

// SubscribeAll registers h for every topic in Topics.
func (b *Bus) SubscribeAll(h Handler) error {
	for _, topic := range Topics {
		if err := b.Subscribe(topic, h); err != nil {
			return err
		}
	}
	return nil
}
