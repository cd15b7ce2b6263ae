package device

import (
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leap-relay-go/internal/types"
)

type recorderStub struct {
	payloads [][]byte
	err      error
}

func (r *recorderStub) Record(payload []byte) error {
	r.payloads = append(r.payloads, payload)
	return r.err
}

type notifications struct {
	kinds  []string
	frames []Frame
}

func (n *notifications) callbacks() Callbacks {
	return Callbacks{
		OnInit:       func() { n.kinds = append(n.kinds, KindInit) },
		OnConnect:    func() { n.kinds = append(n.kinds, KindConnect) },
		OnDisconnect: func() { n.kinds = append(n.kinds, KindDisconnect) },
		OnFrame: func(c Controller) {
			n.kinds = append(n.kinds, KindFrame)
			n.frames = append(n.frames, c.Frame())
		},
	}
}

func mustCBOR(t *testing.T, value any) []byte {
	t.Helper()
	payload, err := cbor.Marshal(value)
	require.NoError(t, err)
	return payload
}

func TestBridgeHandleLifecycle(t *testing.T) {
	bridge := NewBridge("tcp://localhost:0", 1, nil)
	var got notifications
	cb := got.callbacks()

	for _, kind := range []string{"init", "connect", "disconnect"} {
		bridge.Handle(mustCBOR(t, map[string]any{"type": kind}), cb)
	}

	assert.Equal(t, []string{KindInit, KindConnect, KindDisconnect}, got.kinds)
	assert.Empty(t, got.frames)
}

func TestBridgeHandleFrame(t *testing.T) {
	msg := map[string]any{
		"type": "frame",
		"frame": map[string]any{
			"id":        12,
			"timestamp": 998877,
			"hands": []any{
				map[string]any{
					"id": 3,
					"palm": map[string]any{
						"position":  []any{10.0, 150.5, -20.0},
						"direction": cbor.Tag{Number: tagFloat32LE, Content: float32LE(0, -1, 0)},
					},
					"velocity": []any{1, 2, 3},
					"ball": map[string]any{
						"position": []any{0, 100, 0},
						"radius":   75.5,
					},
					"fingers": []any{
						map[string]any{
							"id":       31,
							"tip":      map[string]any{"position": []any{5, 6, 7}, "direction": []any{0, 0, -1}},
							"velocity": []any{0.5, 0, 0},
							"width":    15.0,
							"length":   48.25,
							"is_tool":  true,
						},
					},
				},
			},
		},
	}

	recorder := &recorderStub{}
	bridge := NewBridge("tcp://localhost:0", 1, recorder)
	var got notifications
	payload := mustCBOR(t, msg)
	bridge.Handle(payload, got.callbacks())

	require.Equal(t, []string{KindFrame}, got.kinds)
	require.Len(t, got.frames, 1)
	require.Len(t, recorder.payloads, 1)
	assert.Equal(t, payload, recorder.payloads[0])

	frame := got.frames[0]
	assert.Equal(t, int64(12), frame.ID)
	assert.Equal(t, int64(998877), frame.Timestamp)
	require.Len(t, frame.Hands, 1)

	hand := frame.Hands[0]
	assert.Equal(t, int64(3), hand.ID)
	assert.Equal(t, types.Vector{X: 10, Y: 150.5, Z: -20}, hand.Palm.Position)
	assert.Equal(t, types.Vector{Y: -1}, hand.Palm.Direction)
	assert.Equal(t, types.Vector{X: 1, Y: 2, Z: 3}, hand.Velocity)
	assert.Equal(t, types.Ball{Position: types.Vector{Y: 100}, Radius: 75.5}, hand.Ball)

	require.Len(t, hand.Fingers, 1)
	finger := hand.Fingers[0]
	assert.Equal(t, int64(31), finger.ID)
	assert.Equal(t, types.Vector{X: 5, Y: 6, Z: 7}, finger.Tip.Position)
	assert.Equal(t, 48.25, finger.Length)
	assert.True(t, finger.IsTool)
}

func TestBridgeHandleSkipsBadPayloads(t *testing.T) {
	recorder := &recorderStub{err: errors.New("disk full")}
	bridge := NewBridge("tcp://localhost:0", 1, recorder)
	var got notifications
	cb := got.callbacks()

	bridge.Handle([]byte{0xff, 0x00}, cb)
	bridge.Handle(mustCBOR(t, map[string]any{"type": "frame"}), cb)
	bridge.Handle(mustCBOR(t, map[string]any{"type": "calibrate"}), cb)
	bridge.Handle(mustCBOR(t, map[string]any{
		"type":  "frame",
		"frame": map[string]any{"id": 1, "hands": []any{map[string]any{"velocity": []any{1, 2}}}},
	}), cb)

	assert.Empty(t, got.kinds)
	assert.Len(t, recorder.payloads, 4)
}

func TestDecodeMessageFrameMissing(t *testing.T) {
	_, _, err := DecodeMessage(mustCBOR(t, map[string]any{"type": "frame"}))
	assert.ErrorIs(t, err, ErrMissingFrame)
}

func TestCallbacksNotifyNilEntries(t *testing.T) {
	var cb Callbacks
	assert.True(t, cb.Notify(KindInit, nil))
	assert.True(t, cb.Notify(KindFrame, StaticController{}))
	assert.False(t, cb.Notify("reboot", nil))
}
