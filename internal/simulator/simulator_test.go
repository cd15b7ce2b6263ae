package simulator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leap-relay-go/internal/device"
)

func TestSimulatorEmitsLifecycleThenFrames(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sim := New(100, 2, clock)

	var mu sync.Mutex
	var kinds []string
	var frames []device.Frame
	record := func(kind string) func() {
		return func() {
			mu.Lock()
			defer mu.Unlock()
			kinds = append(kinds, kind)
		}
	}
	cb := device.Callbacks{
		OnInit:       record(device.KindInit),
		OnConnect:    record(device.KindConnect),
		OnDisconnect: record(device.KindDisconnect),
		OnFrame: func(c device.Controller) {
			mu.Lock()
			defer mu.Unlock()
			kinds = append(kinds, device.KindFrame)
			frames = append(frames, c.Frame())
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx, cb) }()

	clock.BlockUntil(1)
	for i := 0; i < 3; i++ {
		clock.Advance(10 * time.Millisecond)
		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(frames) == i+1
		}, time.Second, time.Millisecond)
	}
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		device.KindInit, device.KindConnect,
		device.KindFrame, device.KindFrame, device.KindFrame,
		device.KindDisconnect,
	}, kinds)
	for i, frame := range frames {
		assert.Equal(t, int64(i+1), frame.ID)
		assert.Equal(t, int64((i+1)*10000), frame.Timestamp)
		require.Len(t, frame.Hands, 2)
		assert.Len(t, frame.Hands[0].Fingers, 5)
	}
}
