package simulator

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"

	"leap-relay-go/internal/device"
	"leap-relay-go/internal/types"
)

// Device is a synthetic sensor: it reports init and connect, then one frame
// per tick with hands circling above the sensor.
type Device struct {
	rate  float64
	hands int
	clock clockwork.Clock
	rng   *rand.Rand
}

func New(acqRate float64, hands int, clock clockwork.Clock) *Device {
	if acqRate <= 0 {
		acqRate = 60
	}
	if hands < 0 {
		hands = 0
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Device{
		rate:  acqRate,
		hands: hands,
		clock: clock,
		rng:   rand.New(rand.NewSource(1)),
	}
}

func (d *Device) Run(ctx context.Context, cb device.Callbacks) error {
	cb.Notify(device.KindInit, nil)
	cb.Notify(device.KindConnect, nil)

	frameInterval := time.Duration(float64(time.Second) / d.rate)
	ticker := d.clock.NewTicker(frameInterval)
	defer ticker.Stop()

	start := d.clock.Now()
	var frameID int64
	for {
		select {
		case <-ctx.Done():
			cb.Notify(device.KindDisconnect, nil)
			return nil
		case <-ticker.Chan():
			frameID++
			elapsed := d.clock.Since(start)
			snapshot := d.frame(frameID, elapsed)
			cb.Notify(device.KindFrame, device.StaticController{Snapshot: snapshot})
		}
	}
}

func (d *Device) frame(id int64, elapsed time.Duration) device.Frame {
	frame := device.Frame{
		ID:        id,
		Timestamp: elapsed.Microseconds(),
		Hands:     make([]device.Hand, 0, d.hands),
	}
	seconds := elapsed.Seconds()
	for h := 0; h < d.hands; h++ {
		phase := seconds + float64(h)*math.Pi
		center := types.Vector{
			X: 80 * math.Cos(phase),
			Y: 200 + 20*math.Sin(2*phase),
			Z: 60 * math.Sin(phase),
		}
		velocity := types.Vector{
			X: -80 * math.Sin(phase),
			Y: 40 * math.Cos(2*phase),
			Z: 60 * math.Cos(phase),
		}
		hand := device.Hand{
			ID: int64(h + 1),
			Palm: types.Ray{
				Position:  center,
				Direction: types.Vector{Y: -1},
			},
			Velocity: velocity,
			Ball: types.Ball{
				Position: types.Vector{X: center.X, Y: center.Y - 40, Z: center.Z},
				Radius:   70 + d.rng.NormFloat64()*2,
			},
			Fingers: make([]device.Finger, 0, 5),
		}
		for f := 0; f < 5; f++ {
			spread := (float64(f) - 2) * 0.3
			tip := types.Vector{
				X: center.X + 70*math.Sin(spread),
				Y: center.Y + 10*math.Sin(seconds*4+float64(f)),
				Z: center.Z - 70*math.Cos(spread),
			}
			hand.Fingers = append(hand.Fingers, device.Finger{
				ID: int64((h+1)*10 + f),
				Tip: types.Ray{
					Position:  tip,
					Direction: types.Vector{X: math.Sin(spread), Z: -math.Cos(spread)},
				},
				Velocity: velocity,
				Width:    16,
				Length:   45 + float64(f%3)*5,
			})
		}
		frame.Hands = append(frame.Hands, hand)
	}
	return frame
}
