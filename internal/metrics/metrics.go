package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Event queue metrics
var (
	// QueueEnqueuedTotal tracks events accepted by the queue
	QueueEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leap_queue_enqueued_total",
			Help: "Total events accepted by the event queue",
		},
	)

	// QueueDroppedTotal tracks events dropped because the queue was full
	QueueDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leap_queue_dropped_total",
			Help: "Total events dropped because the event queue was full",
		},
	)

	// QueueDepth tracks the number of pending events seen on each poll
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leap_queue_depth",
			Help: "Pending events in the event queue",
		},
	)
)

// Producer metrics
var (
	// DeviceEventsTotal tracks device notifications by kind
	DeviceEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leap_device_events_total",
			Help: "Device notifications received by kind",
		},
		[]string{"kind"},
	)

	// BridgeDecodeFailuresTotal tracks bridge payloads that could not be decoded
	BridgeDecodeFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leap_bridge_decode_failures_total",
			Help: "Bridge messages that failed to decode",
		},
	)

	// PlaybackEventsTotal tracks events read from a recording
	PlaybackEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leap_playback_events_total",
			Help: "Events read from the playback recording",
		},
	)

	// PlaybackMalformedTotal tracks recording lines that were skipped
	PlaybackMalformedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leap_playback_malformed_total",
			Help: "Malformed recording lines skipped during playback",
		},
	)
)

// Broadcaster metrics
var (
	// BroadcasterSubscribers tracks connected subscribers
	BroadcasterSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leap_broadcaster_subscribers",
			Help: "Connected subscribers",
		},
	)

	// BroadcasterMessagesTotal tracks events serialized and fanned out
	BroadcasterMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leap_broadcaster_messages_total",
			Help: "Events serialized and broadcast",
		},
	)

	// BroadcasterDeliveryFailuresTotal tracks per-subscriber send failures
	BroadcasterDeliveryFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leap_broadcaster_delivery_failures_total",
			Help: "Per-subscriber delivery failures",
		},
	)

	// BroadcasterEncodeFailuresTotal tracks events that could not be serialized
	BroadcasterEncodeFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leap_broadcaster_encode_failures_total",
			Help: "Events discarded because they could not be serialized",
		},
	)

	// BroadcasterTickDuration tracks time spent in one poll
	BroadcasterTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leap_broadcaster_tick_duration_seconds",
			Help:    "Duration of one broadcaster poll",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		},
	)
)

// Recording metrics
var (
	// RecordingActive is 1 once the recording latch has fired
	RecordingActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leap_recording_active",
			Help: "Recording state (0=waiting, 1=recording)",
		},
	)

	// RecordingWritesTotal tracks recording writes by status
	RecordingWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leap_recording_writes_total",
			Help: "Recording writes by status",
		},
		[]string{"status"},
	)
)

// WebSocket metrics
var (
	// WebSocketConnectionsTotal tracks accepted websocket upgrades
	WebSocketConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leap_websocket_connections_total",
			Help: "Accepted websocket connections",
		},
	)

	// WebSocketSendDropsTotal tracks messages dropped for a slow subscriber
	WebSocketSendDropsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leap_websocket_send_drops_total",
			Help: "Messages dropped because a subscriber send buffer was full",
		},
	)

	// WebSocketPingFailures tracks failed keepalive pings
	WebSocketPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leap_websocket_ping_failures_total",
			Help: "Failed websocket keepalive pings",
		},
	)
)
