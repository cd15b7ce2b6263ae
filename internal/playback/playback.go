// Package playback replays a recorded event stream into the event queue.
//
// A recording is newline-delimited JSON, one wire message per line, as written
// by output.Recorder. Events are paced at a fixed interval by default; the
// original capture timing is not reproduced unless PaceRecorded is selected.
package playback

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"leap-relay-go/internal/metrics"
	"leap-relay-go/internal/types"
)

type Pace string

const (
	PaceFixed    Pace = "fixed"
	PaceRecorded Pace = "recorded"
)

const (
	DefaultInterval = 10 * time.Millisecond
	maxRecordedGap  = time.Second
	maxLineBytes    = 16 << 20
)

var ErrUnknownPace = errors.New("unknown playback pace")

func ParsePace(s string) (Pace, error) {
	switch Pace(s) {
	case PaceFixed, "":
		return PaceFixed, nil
	case PaceRecorded:
		return PaceRecorded, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownPace, s)
	}
}

// Enqueuer is the producer side of the event queue.
type Enqueuer interface {
	Enqueue(types.Event) bool
}

type Player struct {
	Path  string
	Delay time.Duration
	Loop  bool
	Pace  Pace
	// Interval is the pause after each event in fixed pace.
	Interval time.Duration
	Clock    clockwork.Clock
}

// Run waits Delay, then plays the file once, or forever when Loop is set.
// Malformed lines are logged and skipped. It returns when ctx is cancelled,
// after the single pass, or when the file cannot be read.
func (p *Player) Run(ctx context.Context, q Enqueuer) error {
	clock := p.clock()
	log := slog.Default().With("component", "playback", "path", p.Path)

	log.Info("delaying playback", "delay", p.Delay)
	if !sleep(ctx, clock, p.Delay) {
		return nil
	}

	log.Info("playing back recording", "pace", p.pace())
	for {
		played, err := p.playOnce(ctx, clock, q, log)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		log.Info("playback complete", "events", played)
		if !p.Loop {
			return nil
		}
		log.Info("looping recording")
		if played == 0 && !sleep(ctx, clock, p.interval()) {
			return nil
		}
	}
}

func (p *Player) playOnce(ctx context.Context, clock clockwork.Clock, q Enqueuer, log *slog.Logger) (int, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return 0, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	pace := p.pace()
	var lastTimestamp int64 = -1
	played := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		event, err := types.ParseMessage(line)
		if err != nil {
			metrics.PlaybackMalformedTotal.Inc()
			log.Warn("skipping malformed recording line", "line", lineNo, "error", err)
			continue
		}

		if pace == PaceRecorded && !sleep(ctx, clock, recordedGap(event, &lastTimestamp)) {
			return played, nil
		}
		metrics.PlaybackEventsTotal.Inc()
		q.Enqueue(event)
		played++
		if pace == PaceFixed && !sleep(ctx, clock, p.interval()) {
			return played, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return played, fmt.Errorf("read recording line %d: %w", lineNo+1, err)
	}
	return played, nil
}

// recordedGap is the capture-time distance from the previous frame, capped so
// a gap in the recording does not stall playback. Timestamps are device
// microseconds.
func recordedGap(event types.Event, last *int64) time.Duration {
	frame, ok := event.Frame()
	if !ok {
		return 0
	}
	prev := *last
	*last = frame.Timestamp
	if prev < 0 || frame.Timestamp <= prev {
		return 0
	}
	gap := time.Duration(frame.Timestamp-prev) * time.Microsecond
	if gap > maxRecordedGap {
		return maxRecordedGap
	}
	return gap
}

func (p *Player) clock() clockwork.Clock {
	if p.Clock == nil {
		return clockwork.NewRealClock()
	}
	return p.Clock
}

func (p *Player) interval() time.Duration {
	if p.Interval <= 0 {
		return DefaultInterval
	}
	return p.Interval
}

func (p *Player) pace() Pace {
	if p.Pace == "" {
		return PaceFixed
	}
	return p.Pace
}

// sleep reports false when ctx ended first.
func sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-clock.After(d):
		return true
	}
}
