package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"leap-relay-go/internal/types"
)

func main() {
	path := flag.String("path", "", "Path to a recording or a directory of recordings")
	limit := flag.Int("limit", 5, "Max number of frames to summarize per file")
	flag.Parse()

	if *path == "" {
		log.Fatal("missing -path")
	}

	files, err := listFiles(*path)
	if err != nil {
		log.Fatalf("list files: %v", err)
	}

	for _, file := range files {
		summary, err := inspect(file, *limit)
		if err != nil {
			log.Printf("inspect %s: %v", file, err)
			continue
		}
		summary.print(file)
	}
}

type recordingSummary struct {
	states     map[types.State]int
	malformed  int
	firstStamp int64
	lastStamp  int64
	maxHands   int
	frames     []string
}

func inspect(path string, limit int) (*recordingSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	summary := &recordingSummary{states: map[types.State]int{}, firstStamp: -1}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		event, err := types.ParseMessage(line)
		if err != nil {
			summary.malformed++
			continue
		}
		summary.states[event.State()]++
		frame, ok := event.Frame()
		if !ok {
			continue
		}
		if summary.firstStamp < 0 {
			summary.firstStamp = frame.Timestamp
		}
		summary.lastStamp = frame.Timestamp
		if len(frame.Hands) > summary.maxHands {
			summary.maxHands = len(frame.Hands)
		}
		if len(summary.frames) < limit {
			summary.frames = append(summary.frames, describeFrame(frame))
		}
	}
	return summary, scanner.Err()
}

func describeFrame(frame types.Frame) string {
	fingers := 0
	for _, hand := range frame.Hands {
		fingers += len(hand.Fingers)
	}
	return fmt.Sprintf("id=%d timestamp=%d hands=%d fingers=%d", frame.ID, frame.Timestamp, len(frame.Hands), fingers)
}

func (s *recordingSummary) print(path string) {
	fmt.Printf("recording: %s\n", path)
	for _, line := range s.frames {
		fmt.Printf("  frame %s\n", line)
	}
	span := time.Duration(0)
	if s.firstStamp >= 0 {
		span = time.Duration(s.lastStamp-s.firstStamp) * time.Microsecond
	}
	fmt.Printf("summary: initialized=%d connected=%d disconnected=%d frame=%d malformed=%d max_hands=%d span=%s\n",
		s.states[types.StateInitialized],
		s.states[types.StateConnected],
		s.states[types.StateDisconnected],
		s.states[types.StateFrame],
		s.malformed,
		s.maxHands,
		span,
	)
}

func listFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ext := filepath.Ext(entry.Name()); ext == ".json" || ext == ".ndjson" {
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
