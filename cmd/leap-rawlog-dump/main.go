package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"reflect"
	"time"

	"github.com/fxamacker/cbor/v2"

	"leap-relay-go/internal/device"
	"leap-relay-go/internal/ingest"
	"leap-relay-go/internal/output"
	"leap-relay-go/internal/types"
)

type collector struct {
	events []types.Event
}

func (c *collector) Enqueue(event types.Event) bool {
	c.events = append(c.events, event)
	return true
}

func main() {
	var (
		path  = flag.String("path", "", "Path to rawlog .bin file")
		limit = flag.Int("limit", 1, "Number of records to dump (0 for all)")
		wire  = flag.Bool("wire", false, "Print the websocket message each record turns into instead of the raw CBOR")
	)
	flag.Parse()

	if *path == "" {
		log.Fatal("path is required")
	}

	f, err := os.Open(*path)
	if err != nil {
		log.Fatalf("open rawlog: %v", err)
	}
	defer f.Close()

	reader, err := output.NewRawLogReader(f)
	if err != nil {
		log.Fatalf("open rawlog: %v", err)
	}

	decMode, err := cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any{})}.DecMode()
	if err != nil {
		log.Fatalf("cbor options: %v", err)
	}

	for count := 0; *limit <= 0 || count < *limit; count++ {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			log.Fatalf("read record: %v", err)
		}
		log.Printf("record %d timestamp=%s size=%d", count, record.Timestamp.Format(time.RFC3339Nano), len(record.Payload))
		if len(record.Payload) == 0 {
			continue
		}

		if *wire {
			printWire(count, record.Payload)
			continue
		}

		var decoded any
		if err := decMode.Unmarshal(record.Payload, &decoded); err != nil {
			log.Printf("record %d: CBOR decode error: %v", count, err)
			continue
		}
		pretty, err := json.MarshalIndent(decoded, "", "  ")
		if err != nil {
			log.Printf("record %d: JSON encode error: %v", count, err)
			continue
		}
		fmt.Println(string(pretty))
	}
}

// printWire runs the payload through the same decode and conversion path as
// the live relay.
func printWire(count int, payload []byte) {
	kind, frame, err := device.DecodeMessage(payload)
	if err != nil {
		log.Printf("record %d: bridge decode error: %v", count, err)
		return
	}
	var c collector
	if !ingest.Listener(&c).Notify(kind, device.StaticController{Snapshot: frame}) {
		log.Printf("record %d: unknown notification %q", count, kind)
		return
	}
	for _, event := range c.events {
		msg, err := event.Encode()
		if err != nil {
			log.Printf("record %d: encode error: %v", count, err)
			continue
		}
		fmt.Println(string(msg))
	}
}
