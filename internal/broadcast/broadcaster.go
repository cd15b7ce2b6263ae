package broadcast

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"leap-relay-go/internal/logging"
	"leap-relay-go/internal/metrics"
	"leap-relay-go/internal/types"
)

const (
	DefaultPollInterval = time.Millisecond
	commandTimeout      = 5 * time.Second
	stopTimeout         = 10 * time.Second
	commandBufferSize   = 256
)

var (
	ErrStopped           = errors.New("broadcaster stopped")
	ErrCommandTimeout    = errors.New("broadcaster command timed out")
	errEmptySubscriberID = errors.New("subscriber id is empty")
)

// Source is the consumer side of the event queue.
type Source interface {
	TryDequeue() (types.Event, bool)
	Len() int
}

// Recorder persists wire messages once the recording latch has fired.
type Recorder interface {
	Record(msg []byte) error
}

type Options struct {
	PollInterval time.Duration
	// Recorder is nil when recording is disabled.
	Recorder Recorder
	// RecordingDelay is measured from Start.
	RecordingDelay time.Duration
	// Start defaults to the clock's current time at construction.
	Start  time.Time
	Clock  clockwork.Clock
	Logger *slog.Logger
}

type Stats struct {
	Subscribers      int    `json:"subscribers"`
	RecordingEnabled bool   `json:"recording_enabled"`
	Recording        bool   `json:"recording"`
	Broadcasts       uint64 `json:"broadcasts"`
	Delivered        uint64 `json:"delivered"`
	Failed           uint64 `json:"failed"`
	Recorded         uint64 `json:"recorded"`
	RecordFailures   uint64 `json:"record_failures"`
	EncodeFailures   uint64 `json:"encode_failures"`
	QueueDepth       int    `json:"queue_depth"`
}

type command interface{ isCommand() }

type baseCommand struct{}

func (baseCommand) isCommand() {}

type registerCmd struct {
	baseCommand
	subscriber Subscriber
	errCh      chan error
}

type unregisterCmd struct {
	baseCommand
	id string
}

type statsCmd struct {
	baseCommand
	replyCh chan Stats
}

type stopCmd struct {
	baseCommand
}

// Broadcaster drains the event queue on a fixed tick, records the serialized
// events once the recording latch fires and fans them out to subscribers. All
// of its state is owned by one goroutine; other goroutines reach it through
// commands.
type Broadcaster struct {
	cmdCh    chan command
	done     chan struct{}
	clock    clockwork.Clock
	logger   *slog.Logger
	source   Source
	registry *Registry

	interval       time.Duration
	recorder       Recorder
	recordingDelay time.Duration
	start          time.Time
	recording      bool

	stats Stats
}

// NewBroadcaster starts the broadcaster goroutine.
func NewBroadcaster(source Source, opts Options) *Broadcaster {
	b := newBroadcaster(source, opts)
	go b.run()
	return b
}

func newBroadcaster(source Source, opts Options) *Broadcaster {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.WithComponent("broadcaster")
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	start := opts.Start
	if start.IsZero() {
		start = clock.Now()
	}
	b := &Broadcaster{
		cmdCh:          make(chan command, commandBufferSize),
		done:           make(chan struct{}),
		clock:          clock,
		logger:         logger,
		source:         source,
		registry:       NewRegistry(logger),
		interval:       interval,
		recorder:       opts.Recorder,
		recordingDelay: opts.RecordingDelay,
		start:          start,
	}
	b.stats.RecordingEnabled = opts.Recorder != nil
	metrics.RecordingActive.Set(0)
	return b
}

// Register adds sub to the fan-out set.
func (b *Broadcaster) Register(sub Subscriber) error {
	if sub.ID() == "" {
		return errEmptySubscriberID
	}
	errCh := make(chan error, 1)
	if err := b.send(registerCmd{subscriber: sub, errCh: errCh}); err != nil {
		return err
	}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-b.done:
		return ErrStopped
	case <-timer.Chan():
		return fmt.Errorf("register %s: %w", sub.ID(), ErrCommandTimeout)
	}
}

// Unregister removes the subscriber with id. Unknown ids are ignored.
func (b *Broadcaster) Unregister(id string) {
	_ = b.send(unregisterCmd{id: id})
}

func (b *Broadcaster) Stats() (Stats, error) {
	replyCh := make(chan Stats, 1)
	if err := b.send(statsCmd{replyCh: replyCh}); err != nil {
		return Stats{}, err
	}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case stats := <-replyCh:
		return stats, nil
	case <-b.done:
		return Stats{}, ErrStopped
	case <-timer.Chan():
		return Stats{}, ErrCommandTimeout
	}
}

// Stop ends the tick loop and closes every subscriber that can be closed. It
// waits for the goroutine to exit, up to a bounded timeout.
func (b *Broadcaster) Stop() {
	if err := b.send(stopCmd{}); err != nil {
		return
	}

	timeout := b.clock.NewTimer(stopTimeout)
	defer timeout.Stop()

	select {
	case <-b.done:
		b.logger.Info("Broadcaster stopped")
	case <-timeout.Chan():
		b.logger.Warn("Broadcaster stop timed out", "timeout", stopTimeout)
	}
}

func (b *Broadcaster) send(cmd command) error {
	select {
	case <-b.done:
		return ErrStopped
	default:
	}
	select {
	case b.cmdCh <- cmd:
		return nil
	case <-b.done:
		return ErrStopped
	}
}

func (b *Broadcaster) run() {
	defer close(b.done)

	ticker := b.clock.NewTicker(b.interval)
	defer ticker.Stop()

	b.logger.Info("Broadcaster started",
		"poll_interval", b.interval,
		"recording", b.recorder != nil,
		"recording_delay", b.recordingDelay,
	)

	for {
		select {
		case cmd := <-b.cmdCh:
			switch c := cmd.(type) {
			case registerCmd:
				b.handleRegister(c)
			case unregisterCmd:
				b.handleUnregister(c)
			case statsCmd:
				c.replyCh <- b.snapshot()
			case stopCmd:
				b.handleStop()
				return
			default:
				b.logger.Warn("Broadcaster received unknown command", "command_type", fmt.Sprintf("%T", cmd))
			}
		case <-ticker.Chan():
			b.handleTick()
		}
	}
}

func (b *Broadcaster) handleRegister(c registerCmd) {
	b.registry.Add(c.subscriber)
	metrics.BroadcasterSubscribers.Set(float64(b.registry.Len()))
	b.logger.Info("Subscriber connected", "subscriber_id", c.subscriber.ID(), "subscribers", b.registry.Len())
	c.errCh <- nil
}

func (b *Broadcaster) handleUnregister(c unregisterCmd) {
	if _, ok := b.registry.Remove(c.id); !ok {
		return
	}
	metrics.BroadcasterSubscribers.Set(float64(b.registry.Len()))
	b.logger.Info("Subscriber disconnected", "subscriber_id", c.id, "subscribers", b.registry.Len())
}

// handleTick moves at most one event from the queue to the recording and the
// subscribers.
func (b *Broadcaster) handleTick() {
	tickStart := b.clock.Now()
	defer func() {
		metrics.BroadcasterTickDuration.Observe(b.clock.Since(tickStart).Seconds())
	}()

	metrics.QueueDepth.Set(float64(b.source.Len()))
	event, ok := b.source.TryDequeue()
	if !ok {
		return
	}

	msg, err := event.Encode()
	if err != nil {
		b.stats.EncodeFailures++
		metrics.BroadcasterEncodeFailuresTotal.Inc()
		b.logger.Error("Failed to encode event", "state", event.State(), "error", err)
		return
	}

	b.record(msg)

	delivered, failed := b.registry.Broadcast(msg)
	b.stats.Broadcasts++
	b.stats.Delivered += uint64(delivered)
	b.stats.Failed += uint64(failed)
	metrics.BroadcasterMessagesTotal.Inc()
}

func (b *Broadcaster) record(msg []byte) {
	if b.recorder == nil {
		return
	}
	if !b.recording && b.clock.Since(b.start) >= b.recordingDelay {
		b.recording = true
		metrics.RecordingActive.Set(1)
		b.logger.Info("Recording started", "elapsed", b.clock.Since(b.start))
	}
	if !b.recording {
		return
	}
	if err := b.recorder.Record(msg); err != nil {
		b.stats.RecordFailures++
		metrics.RecordingWritesTotal.WithLabelValues("error").Inc()
		b.logger.Error("Recording write failed", "error", err)
		return
	}
	b.stats.Recorded++
	metrics.RecordingWritesTotal.WithLabelValues("ok").Inc()
}

func (b *Broadcaster) snapshot() Stats {
	stats := b.stats
	stats.Subscribers = b.registry.Len()
	stats.Recording = b.recording
	stats.QueueDepth = b.source.Len()
	return stats
}

func (b *Broadcaster) handleStop() {
	b.logger.Info("Broadcaster shutting down", "subscribers", b.registry.Len())
	b.registry.each(func(sub Subscriber) {
		if closer, ok := sub.(io.Closer); ok {
			_ = closer.Close()
		}
	})
	b.registry = NewRegistry(b.logger)
	metrics.BroadcasterSubscribers.Set(0)
}
