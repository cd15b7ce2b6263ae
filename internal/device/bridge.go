package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"
	"golang.org/x/time/rate"

	"leap-relay-go/internal/metrics"
	"leap-relay-go/internal/types"
)

const defaultRecvTimeout = 250 * time.Millisecond

var ErrMissingFrame = errors.New("frame notification without frame payload")

// RawRecorder receives every payload read from the bridge socket, before
// decoding.
type RawRecorder interface {
	Record(payload []byte) error
}

// Bridge reads sensor notifications pushed by an out-of-process sensor bridge
// over a ZeroMQ PULL socket. Messages are CBOR maps shaped like:
// { "type": "frame", "frame": { "id": <int>, "timestamp": <int>, "hands": [...] } }
// where type is one of init, connect, disconnect, frame.
type Bridge struct {
	endpoint    string
	recorder    RawRecorder
	recvTimeout time.Duration
	logLimiter  rate.Sometimes
	log         *slog.Logger
}

func NewBridge(endpoint string, logEvery int, recorder RawRecorder) *Bridge {
	if logEvery < 1 {
		logEvery = 1
	}
	return &Bridge{
		endpoint:    endpoint,
		recorder:    recorder,
		recvTimeout: defaultRecvTimeout,
		logLimiter:  rate.Sometimes{First: 3, Every: logEvery},
		log:         slog.Default().With("component", "bridge", "endpoint", endpoint),
	}
}

// Run connects to the bridge and dispatches notifications until ctx is done.
// Only socket setup failures are returned.
func (b *Bridge) Run(ctx context.Context, cb Callbacks) error {
	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return fmt.Errorf("create bridge socket: %w", err)
	}
	defer socket.Close()

	if err := socket.SetRcvtimeo(b.recvTimeout); err != nil {
		return fmt.Errorf("set bridge receive timeout: %w", err)
	}
	if err := socket.Connect(b.endpoint); err != nil {
		return fmt.Errorf("connect bridge %s: %w", b.endpoint, err)
	}
	b.log.Info("connected to sensor bridge")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msg, err := socket.RecvBytes(0)
		if err != nil {
			switch zmq4.AsErrno(err) {
			case zmq4.Errno(syscall.EAGAIN):
				continue
			case zmq4.ETERM:
				return fmt.Errorf("bridge context terminated: %w", err)
			}
			b.logSometimes("bridge recv error", "error", err)
			continue
		}
		b.Handle(msg, cb)
	}
}

// Handle decodes one raw bridge payload and dispatches it to cb. Undecodable
// payloads are counted and skipped.
func (b *Bridge) Handle(payload []byte, cb Callbacks) {
	if b.recorder != nil {
		if err := b.recorder.Record(payload); err != nil {
			b.logSometimes("raw log write failed", "error", err)
		}
	}

	kind, frame, err := DecodeMessage(payload)
	if err != nil {
		metrics.BridgeDecodeFailuresTotal.Inc()
		b.logSometimes("bridge decode skipped message", "error", err)
		return
	}
	if !cb.Notify(kind, StaticController{Snapshot: frame}) {
		b.logSometimes("bridge ignoring message type", "type", kind)
	}
}

func (b *Bridge) logSometimes(msg string, args ...any) {
	b.logLimiter.Do(func() {
		b.log.Warn(msg, args...)
	})
}

type wireVector types.Vector

func (v *wireVector) UnmarshalCBOR(data []byte) error {
	var raw any
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return err
	}
	vec, err := decodeVector(raw)
	if err != nil {
		return err
	}
	*v = wireVector(vec)
	return nil
}

type bridgeRay struct {
	Position  wireVector `cbor:"position"`
	Direction wireVector `cbor:"direction"`
}

type bridgeBall struct {
	Position wireVector `cbor:"position"`
	Radius   float64    `cbor:"radius"`
}

type bridgeFinger struct {
	ID       int64      `cbor:"id"`
	Tip      bridgeRay  `cbor:"tip"`
	Velocity wireVector `cbor:"velocity"`
	Width    float64    `cbor:"width"`
	Length   float64    `cbor:"length"`
	IsTool   bool       `cbor:"is_tool"`
}

type bridgeHand struct {
	ID       int64          `cbor:"id"`
	Palm     bridgeRay      `cbor:"palm"`
	Velocity wireVector     `cbor:"velocity"`
	Ball     bridgeBall     `cbor:"ball"`
	Fingers  []bridgeFinger `cbor:"fingers"`
}

type bridgeFrame struct {
	ID        int64        `cbor:"id"`
	Timestamp int64        `cbor:"timestamp"`
	Hands     []bridgeHand `cbor:"hands"`
}

type bridgeMessage struct {
	Type  string       `cbor:"type"`
	Frame *bridgeFrame `cbor:"frame"`
}

// DecodeMessage parses one bridge payload into its notification kind and, for
// frame notifications, the frame snapshot.
func DecodeMessage(payload []byte) (string, Frame, error) {
	var msg bridgeMessage
	if err := cbor.Unmarshal(payload, &msg); err != nil {
		return "", Frame{}, fmt.Errorf("cbor decode: %w", err)
	}
	if msg.Type != KindFrame {
		return msg.Type, Frame{}, nil
	}
	if msg.Frame == nil {
		return "", Frame{}, ErrMissingFrame
	}
	return msg.Type, msg.Frame.snapshot(), nil
}

func (f *bridgeFrame) snapshot() Frame {
	out := Frame{
		ID:        f.ID,
		Timestamp: f.Timestamp,
		Hands:     make([]Hand, 0, len(f.Hands)),
	}
	for _, h := range f.Hands {
		hand := Hand{
			ID:       h.ID,
			Palm:     h.Palm.ray(),
			Velocity: types.Vector(h.Velocity),
			Ball: types.Ball{
				Position: types.Vector(h.Ball.Position),
				Radius:   h.Ball.Radius,
			},
			Fingers: make([]Finger, 0, len(h.Fingers)),
		}
		for _, fg := range h.Fingers {
			hand.Fingers = append(hand.Fingers, Finger{
				ID:       fg.ID,
				Tip:      fg.Tip.ray(),
				Velocity: types.Vector(fg.Velocity),
				Width:    fg.Width,
				Length:   fg.Length,
				IsTool:   fg.IsTool,
			})
		}
		out.Hands = append(out.Hands, hand)
	}
	return out
}

func (r bridgeRay) ray() types.Ray {
	return types.Ray{
		Position:  types.Vector(r.Position),
		Direction: types.Vector(r.Direction),
	}
}
