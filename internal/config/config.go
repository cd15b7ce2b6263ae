package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"

	"leap-relay-go/internal/playback"
)

var ErrInvalid = errors.New("invalid configuration")

// AppConfig is layered: defaults, then LEAP_* environment variables (with an
// optional .env file), then command-line flags.
type AppConfig struct {
	Port int `env:"LEAP_PORT" default:"8888" json:"port"`

	// Playback is the recording to replay. Empty means live mode.
	Playback      string  `env:"LEAP_PLAYBACK" json:"playback"`
	PlaybackDelay float64 `env:"LEAP_PLAYBACK_DELAY" default:"5.0" json:"playback_delay"`
	Loop          bool    `env:"LEAP_LOOP" default:"false" json:"loop"`
	PlaybackPace  string  `env:"LEAP_PLAYBACK_PACE" default:"fixed" json:"playback_pace"`

	// Record is the NDJSON file live events are appended to. Empty disables it.
	Record         string  `env:"LEAP_RECORD" json:"record"`
	RecordingDelay float64 `env:"LEAP_RECORDING_DELAY" default:"5.0" json:"recording_delay"`

	QueueSize    int           `env:"LEAP_QUEUE_SIZE" default:"1024" json:"queue_size"`
	PollInterval time.Duration `env:"LEAP_POLL_INTERVAL" default:"1ms" json:"poll_interval"`

	BridgeEndpoint string  `env:"LEAP_BRIDGE_ENDPOINT" default:"tcp://localhost:5556" json:"bridge_endpoint"`
	Debug          bool    `env:"LEAP_DEBUG" default:"false" json:"debug"`
	DebugRate      float64 `env:"LEAP_DEBUG_RATE" default:"60" json:"debug_rate"`
	IngestFallback bool    `env:"LEAP_INGEST_FALLBACK" default:"true" json:"ingest_fallback"`
	IngestLogEvery int     `env:"LEAP_INGEST_LOG_EVERY" default:"100" json:"ingest_log_every"`
	RawLog         bool    `env:"LEAP_RAW_LOG" default:"false" json:"raw_log"`
	RawLogDir      string  `env:"LEAP_RAW_LOG_DIR" default:"rawlog" json:"raw_log_dir"`

	StaticDir string `env:"LEAP_STATIC_DIR" default:"static" json:"static_dir"`
	LogLevel  string `env:"LEAP_LOG_LEVEL" default:"info" json:"log_level"`
	LogFormat string `env:"LEAP_LOG_FORMAT" default:"text" json:"log_format"`
}

// Load reads the environment and then parses args, which should not include
// the program name.
func Load(args []string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	var cfg AppConfig
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	fs := flag.NewFlagSet("leap-relay", flag.ContinueOnError)
	cfg.bindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Usage prints the flag set with its defaults to w.
func Usage(w io.Writer) {
	var cfg AppConfig
	_ = env.Load(&cfg, nil)
	fs := flag.NewFlagSet("leap-relay", flag.ContinueOnError)
	fs.SetOutput(w)
	cfg.bindFlags(fs)
	fs.PrintDefaults()
}

func (c *AppConfig) bindFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.Port, "port", c.Port, "HTTP port for the web UI and websocket")
	fs.StringVar(&c.Playback, "playback", c.Playback, "Replay this recording instead of using the device")
	fs.Float64Var(&c.PlaybackDelay, "playbackDelay", c.PlaybackDelay, "Seconds to wait before playback starts")
	fs.BoolVar(&c.Loop, "loop", c.Loop, "Restart playback at end of file")
	fs.StringVar(&c.PlaybackPace, "playback-pace", c.PlaybackPace, "Playback pacing: fixed or recorded")
	fs.StringVar(&c.Record, "record", c.Record, "Append live events to this file")
	fs.Float64Var(&c.RecordingDelay, "recordingDelay", c.RecordingDelay, "Seconds after start before recording begins")
	fs.IntVar(&c.QueueSize, "queue-size", c.QueueSize, "Event queue capacity")
	fs.DurationVar(&c.PollInterval, "poll-interval", c.PollInterval, "Broadcaster poll interval")
	fs.StringVar(&c.BridgeEndpoint, "bridge-endpoint", c.BridgeEndpoint, "ZMQ endpoint of the device bridge")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Run with a simulated device")
	fs.Float64Var(&c.DebugRate, "debug-rate", c.DebugRate, "Simulated frame rate (frames/sec)")
	fs.BoolVar(&c.IngestFallback, "ingest-fallback", c.IngestFallback, "Fall back to the simulator when the bridge fails")
	fs.IntVar(&c.IngestLogEvery, "ingest-log-every", c.IngestLogEvery, "Log every Nth bridge decode error")
	fs.BoolVar(&c.RawLog, "raw-log", c.RawLog, "Write raw bridge messages to disk")
	fs.StringVar(&c.RawLogDir, "raw-log-dir", c.RawLogDir, "Directory for raw bridge logs")
	fs.StringVar(&c.StaticDir, "static-dir", c.StaticDir, "Directory served under /static")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "Log format: text or json")
}

func (c *AppConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535, got %d", ErrInvalid, c.Port)
	}
	if c.PlaybackDelay < 0 {
		return fmt.Errorf("%w: playbackDelay must not be negative, got %g", ErrInvalid, c.PlaybackDelay)
	}
	if c.RecordingDelay < 0 {
		return fmt.Errorf("%w: recordingDelay must not be negative, got %g", ErrInvalid, c.RecordingDelay)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("%w: queue-size must be at least 1, got %d", ErrInvalid, c.QueueSize)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll-interval must be positive, got %s", ErrInvalid, c.PollInterval)
	}
	if c.DebugRate <= 0 {
		return fmt.Errorf("%w: debug-rate must be positive, got %g", ErrInvalid, c.DebugRate)
	}
	if _, err := playback.ParsePace(c.PlaybackPace); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func (c *AppConfig) PlaybackDelayDuration() time.Duration {
	return seconds(c.PlaybackDelay)
}

func (c *AppConfig) RecordingDelayDuration() time.Duration {
	return seconds(c.RecordingDelay)
}

func (c *AppConfig) Pace() playback.Pace {
	pace, _ := playback.ParsePace(c.PlaybackPace)
	return pace
}

func (c *AppConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
