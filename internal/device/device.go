// Package device defines the boundary to the hand-tracking sensor.
//
// A Device delivers four notifications through a Callbacks set. On
// frame-ready the callback receives a Controller that exposes the snapshot the
// device currently holds.
package device

import (
	"context"

	"leap-relay-go/internal/types"
)

// Frame is the device-side snapshot of tracked hands.
type Frame struct {
	ID        int64
	Timestamp int64
	Hands     []Hand
}

// Hand carries the palm as a ray: position is the palm centre, direction the
// palm normal.
type Hand struct {
	ID       int64
	Fingers  []Finger
	Palm     types.Ray
	Velocity types.Vector
	Ball     types.Ball
}

// Finger carries the tip as a ray pointing along the finger.
type Finger struct {
	ID       int64
	Tip      types.Ray
	Velocity types.Vector
	Width    float64
	Length   float64
	IsTool   bool
}

type Controller interface {
	Frame() Frame
}

// Callbacks receives device notifications. Nil entries are skipped.
type Callbacks struct {
	OnInit       func()
	OnConnect    func()
	OnDisconnect func()
	OnFrame      func(Controller)
}

// Device runs until ctx is cancelled or the device fails.
type Device interface {
	Run(ctx context.Context, cb Callbacks) error
}

// StaticController serves a fixed snapshot.
type StaticController struct {
	Snapshot Frame
}

func (c StaticController) Frame() Frame {
	return c.Snapshot
}

// Notify dispatches a notification by kind. Unknown kinds are ignored and
// reported with ok=false.
func (cb Callbacks) Notify(kind string, c Controller) bool {
	var fn func()
	switch kind {
	case KindInit:
		fn = cb.OnInit
	case KindConnect:
		fn = cb.OnConnect
	case KindDisconnect:
		fn = cb.OnDisconnect
	case KindFrame:
		if cb.OnFrame != nil {
			fn = func() { cb.OnFrame(c) }
		}
	default:
		return false
	}
	if fn != nil {
		fn()
	}
	return true
}

const (
	KindInit       = "init"
	KindConnect    = "connect"
	KindDisconnect = "disconnect"
	KindFrame      = "frame"
)
