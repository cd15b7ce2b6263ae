package types

type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Ray struct {
	Position  Vector `json:"position"`
	Direction Vector `json:"direction"`
}

type Ball struct {
	Position Vector  `json:"position"`
	Radius   float64 `json:"radius"`
}

type Finger struct {
	ID       int64   `json:"id"`
	Tip      Vector  `json:"tip"`
	Velocity Vector  `json:"velocity"`
	Width    float64 `json:"width"`
	Length   float64 `json:"length"`
	IsTool   bool    `json:"isTool"`
}

type Hand struct {
	ID       int64    `json:"id"`
	Fingers  []Finger `json:"fingers"`
	Palm     Vector   `json:"palm"`
	Velocity Vector   `json:"velocity"`
	Normal   Vector   `json:"normal"`
	Ball     Ball     `json:"ball"`
}

// Frame is one sampled snapshot of tracked hands. Timestamp is in device
// microseconds.
type Frame struct {
	ID        int64  `json:"id"`
	Timestamp int64  `json:"timestamp"`
	Hands     []Hand `json:"hands"`
}

// Clone returns a deep copy so the result shares no slices with f.
func (f Frame) Clone() Frame {
	out := Frame{
		ID:        f.ID,
		Timestamp: f.Timestamp,
		Hands:     make([]Hand, len(f.Hands)),
	}
	for i, hand := range f.Hands {
		fingers := make([]Finger, len(hand.Fingers))
		copy(fingers, hand.Fingers)
		hand.Fingers = fingers
		out.Hands[i] = hand
	}
	return out
}
