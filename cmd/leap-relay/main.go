package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"leap-relay-go/internal/broadcast"
	"leap-relay-go/internal/config"
	"leap-relay-go/internal/device"
	"leap-relay-go/internal/ingest"
	"leap-relay-go/internal/logging"
	"leap-relay-go/internal/output"
	"leap-relay-go/internal/playback"
	"leap-relay-go/internal/queue"
	"leap-relay-go/internal/server"
	"leap-relay-go/internal/simulator"
)

const (
	simulatedHands = 2
	statsEvery     = 30 * time.Second
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "leap-relay: %v\n", err)
		os.Exit(2)
	}

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("leap-relay stopped", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.AppConfig) error {
	started := time.Now()
	q := queue.New(cfg.QueueSize)

	var recorder broadcast.Recorder
	if cfg.Record != "" {
		rec := output.NewRecorder(cfg.Record)
		defer func() {
			if err := rec.Close(); err != nil {
				slog.Error("recording close failed", "path", rec.Path(), "error", err)
			}
		}()
		recorder = rec
		slog.Info("recording enabled", "path", cfg.Record, "delay", cfg.RecordingDelayDuration())
	}

	b := broadcast.NewBroadcaster(q, broadcast.Options{
		PollInterval:   cfg.PollInterval,
		Recorder:       recorder,
		RecordingDelay: cfg.RecordingDelayDuration(),
		Start:          started,
	})
	defer b.Stop()

	mode := producerMode(cfg)
	producerErr := make(chan error, 1)
	go func() {
		producerErr <- produce(ctx, cfg, q)
	}()

	go logStats(ctx, q, b)

	statusFn := func() map[string]any {
		return map[string]any{
			"mode":       mode,
			"started_at": started.Format(time.RFC3339),
			"uptime":     time.Since(started).Round(time.Second).String(),
			"queue":      q.Stats(),
		}
	}
	srv := server.New(*cfg, b, statusFn)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Run(ctx)
	}()

	slog.Info("Starting web UI", "url", fmt.Sprintf("http://localhost:%d", cfg.Port), "mode", mode)

	select {
	case err := <-serverErr:
		return err
	case err := <-producerErr:
		if err != nil {
			return err
		}
		if ctx.Err() == nil {
			slog.Info("producer finished, serving until interrupted", "mode", mode)
		}
		return <-serverErr
	}
}

func producerMode(cfg *config.AppConfig) string {
	switch {
	case cfg.Playback != "":
		return "playback"
	case cfg.Debug:
		return "simulator"
	default:
		return "bridge"
	}
}

// produce runs exactly one producer for the life of ctx: playback when a
// recording is configured, otherwise the live device.
func produce(ctx context.Context, cfg *config.AppConfig, q *queue.Queue) error {
	if cfg.Playback != "" {
		player := &playback.Player{
			Path:  cfg.Playback,
			Delay: cfg.PlaybackDelayDuration(),
			Loop:  cfg.Loop,
			Pace:  cfg.Pace(),
		}
		return player.Run(ctx, q)
	}

	sim := simulator.New(cfg.DebugRate, simulatedHands, nil)
	if cfg.Debug {
		return (&ingest.Source{Device: sim, Queue: q}).Run(ctx)
	}

	var raw device.RawRecorder
	if cfg.RawLog {
		writer, err := output.NewRawLogWriter(cfg.RawLogDir, "bridge")
		if err != nil {
			return fmt.Errorf("failed to start raw log: %w", err)
		}
		defer func() {
			if err := writer.Close(); err != nil {
				slog.Error("raw log close failed", "error", err)
			}
		}()
		slog.Info("raw bridge log enabled", "path", writer.Path())
		raw = writer
	}

	src := &ingest.Source{
		Device: device.NewBridge(cfg.BridgeEndpoint, cfg.IngestLogEvery, raw),
		Queue:  q,
	}
	if cfg.IngestFallback {
		src.Fallback = sim
	}
	return src.Run(ctx)
}

func logStats(ctx context.Context, q *queue.Queue, b *broadcast.Broadcaster) {
	ticker := time.NewTicker(statsEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			qs := q.Stats()
			bs, err := b.Stats()
			if err != nil {
				return
			}
			slog.Info("relay stats",
				"enqueued", qs.Enqueued,
				"dropped", qs.Dropped,
				"pending", qs.Pending,
				"subscribers", bs.Subscribers,
				"broadcasts", bs.Broadcasts,
				"delivery_failures", bs.Failed,
				"recording", bs.Recording,
				"recorded", bs.Recorded,
			)
		}
	}
}
