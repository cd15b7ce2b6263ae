package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// State tags the kind of an Event on the wire.
type State string

const (
	StateInitialized  State = "initialized"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateFrame        State = "frame"
)

var (
	ErrUnknownState = errors.New("unknown event state")
	ErrMissingFrame = errors.New("frame event without frame payload")
)

// Event is a device lifecycle notification or a frame. Events are values and
// hold no references the producer can still mutate once constructed.
type Event struct {
	state State
	frame *Frame
	raw   []byte
}

type wireMessage struct {
	State State  `json:"state"`
	Frame *Frame `json:"frame,omitempty"`
}

func NewStateEvent(state State) Event {
	return Event{state: state}
}

func NewFrameEvent(frame Frame) Event {
	clone := frame.Clone()
	return Event{state: StateFrame, frame: &clone}
}

func (e Event) State() State {
	return e.state
}

// Frame returns a copy of the frame payload. ok is false for lifecycle events.
func (e Event) Frame() (Frame, bool) {
	if e.frame == nil {
		return Frame{}, false
	}
	return e.frame.Clone(), true
}

// Encode returns the wire form of the event. Events read back from a
// recording encode to their original bytes.
func (e Event) Encode() ([]byte, error) {
	if e.raw != nil {
		out := make([]byte, len(e.raw))
		copy(out, e.raw)
		return out, nil
	}
	if !e.state.valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownState, e.state)
	}
	if e.state == StateFrame && e.frame == nil {
		return nil, ErrMissingFrame
	}
	msg := wireMessage{State: e.state}
	if e.state == StateFrame {
		msg.Frame = e.frame
	}
	return json.Marshal(msg)
}

// ParseMessage decodes one wire message.
func ParseMessage(data []byte) (Event, error) {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Event{}, fmt.Errorf("decode message: %w", err)
	}
	if !msg.State.valid() {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownState, msg.State)
	}
	if msg.State == StateFrame && msg.Frame == nil {
		return Event{}, ErrMissingFrame
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return Event{}, fmt.Errorf("compact message: %w", err)
	}
	event := Event{state: msg.State, raw: compact.Bytes()}
	if msg.State == StateFrame {
		event.frame = msg.Frame
	}
	return event, nil
}

func (s State) valid() bool {
	switch s {
	case StateInitialized, StateConnected, StateDisconnected, StateFrame:
		return true
	default:
		return false
	}
}
