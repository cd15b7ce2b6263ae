package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leap-relay-go/internal/device"
	"leap-relay-go/internal/queue"
	"leap-relay-go/internal/types"
)

func snapshot() device.Frame {
	return device.Frame{
		ID:        5,
		Timestamp: 1500,
		Hands: []device.Hand{{
			ID: 1,
			Palm: types.Ray{
				Position:  types.Vector{X: 1, Y: 2, Z: 3},
				Direction: types.Vector{Y: -1},
			},
			Velocity: types.Vector{X: 9},
			Ball:     types.Ball{Position: types.Vector{Y: 50}, Radius: 60},
			Fingers: []device.Finger{{
				ID:       11,
				Tip:      types.Ray{Position: types.Vector{X: 4, Y: 5, Z: 6}, Direction: types.Vector{Z: -1}},
				Velocity: types.Vector{Z: 2},
				Width:    15,
				Length:   40,
				IsTool:   true,
			}},
		}},
	}
}

func TestConvertFrameMapsGeometry(t *testing.T) {
	frame := ConvertFrame(snapshot())

	assert.Equal(t, types.Frame{
		ID:        5,
		Timestamp: 1500,
		Hands: []types.Hand{{
			ID:       1,
			Palm:     types.Vector{X: 1, Y: 2, Z: 3},
			Normal:   types.Vector{Y: -1},
			Velocity: types.Vector{X: 9},
			Ball:     types.Ball{Position: types.Vector{Y: 50}, Radius: 60},
			Fingers: []types.Finger{{
				ID:       11,
				Tip:      types.Vector{X: 4, Y: 5, Z: 6},
				Velocity: types.Vector{Z: 2},
				Width:    15,
				Length:   40,
				IsTool:   true,
			}},
		}},
	}, frame)
}

func TestListenerEnqueuesInOrder(t *testing.T) {
	q := queue.New(8)
	cb := Listener(q)

	cb.OnInit()
	cb.OnConnect()
	cb.OnFrame(device.StaticController{Snapshot: snapshot()})
	cb.OnDisconnect()

	var states []types.State
	for {
		event, ok := q.TryDequeue()
		if !ok {
			break
		}
		states = append(states, event.State())
	}
	assert.Equal(t, []types.State{
		types.StateInitialized,
		types.StateConnected,
		types.StateFrame,
		types.StateDisconnected,
	}, states)
}

func TestListenerDropsSilentlyWhenFull(t *testing.T) {
	q := queue.New(1)
	cb := Listener(q)

	cb.OnInit()
	assert.NotPanics(t, func() {
		cb.OnConnect()
		cb.OnFrame(device.StaticController{Snapshot: snapshot()})
	})

	event, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, types.StateInitialized, event.State())
	_, ok = q.TryDequeue()
	assert.False(t, ok)
	assert.Equal(t, uint64(2), q.Stats().Dropped)
}

type deviceFunc func(ctx context.Context, cb device.Callbacks) error

func (f deviceFunc) Run(ctx context.Context, cb device.Callbacks) error {
	return f(ctx, cb)
}

func TestSourceFallsBackOnDeviceError(t *testing.T) {
	q := queue.New(8)
	failing := deviceFunc(func(context.Context, device.Callbacks) error {
		return errors.New("bridge unreachable")
	})
	fallbackRan := false
	fallback := deviceFunc(func(_ context.Context, cb device.Callbacks) error {
		fallbackRan = true
		cb.OnConnect()
		return nil
	})

	src := &Source{Device: failing, Fallback: fallback, Queue: q}
	require.NoError(t, src.Run(context.Background()))
	assert.True(t, fallbackRan)

	event, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, types.StateConnected, event.State())
}

func TestSourceReturnsErrorWithoutFallback(t *testing.T) {
	boom := errors.New("boom")
	src := &Source{
		Device: deviceFunc(func(context.Context, device.Callbacks) error { return boom }),
		Queue:  queue.New(1),
	}
	assert.ErrorIs(t, src.Run(context.Background()), boom)
}
