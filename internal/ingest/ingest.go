// Package ingest turns device notifications into queued events.
package ingest

import (
	"context"
	"log/slog"

	"leap-relay-go/internal/device"
	"leap-relay-go/internal/metrics"
	"leap-relay-go/internal/types"
)

// Enqueuer is the producer side of the event queue.
type Enqueuer interface {
	Enqueue(types.Event) bool
}

// Listener adapts the four device notifications into events on q. A full
// queue drops the event.
func Listener(q Enqueuer) device.Callbacks {
	put := func(kind string, event types.Event) {
		metrics.DeviceEventsTotal.WithLabelValues(kind).Inc()
		if !q.Enqueue(event) {
			slog.Debug("event queue full, dropping event", "kind", kind)
		}
	}
	return device.Callbacks{
		OnInit: func() {
			put(device.KindInit, types.NewStateEvent(types.StateInitialized))
		},
		OnConnect: func() {
			put(device.KindConnect, types.NewStateEvent(types.StateConnected))
		},
		OnDisconnect: func() {
			put(device.KindDisconnect, types.NewStateEvent(types.StateDisconnected))
		},
		OnFrame: func(c device.Controller) {
			put(device.KindFrame, types.NewFrameEvent(ConvertFrame(c.Frame())))
		},
	}
}

// ConvertFrame reads every hand and finger out of a device snapshot.
func ConvertFrame(snapshot device.Frame) types.Frame {
	frame := types.Frame{
		ID:        snapshot.ID,
		Timestamp: snapshot.Timestamp,
		Hands:     make([]types.Hand, 0, len(snapshot.Hands)),
	}
	for _, h := range snapshot.Hands {
		hand := types.Hand{
			ID:       h.ID,
			Fingers:  make([]types.Finger, 0, len(h.Fingers)),
			Palm:     h.Palm.Position,
			Velocity: h.Velocity,
			Normal:   h.Palm.Direction,
			Ball:     h.Ball,
		}
		for _, f := range h.Fingers {
			hand.Fingers = append(hand.Fingers, types.Finger{
				ID:       f.ID,
				Tip:      f.Tip.Position,
				Velocity: f.Velocity,
				Width:    f.Width,
				Length:   f.Length,
				IsTool:   f.IsTool,
			})
		}
		frame.Hands = append(frame.Hands, hand)
	}
	return frame
}

// Source runs the live producer: a device feeding the event queue.
type Source struct {
	Device device.Device
	// Fallback replaces Device when it fails. Optional.
	Fallback device.Device
	Queue    Enqueuer
}

// Run blocks for the life of ctx. A device failure is logged; the fallback
// device takes over when one is configured, otherwise the error is returned.
func (s *Source) Run(ctx context.Context) error {
	cb := Listener(s.Queue)
	err := s.Device.Run(ctx, cb)
	if err == nil || ctx.Err() != nil {
		return nil
	}
	if s.Fallback == nil {
		return err
	}
	slog.Warn("device failed, falling back to simulator", "error", err)
	return s.Fallback.Run(ctx, cb)
}
