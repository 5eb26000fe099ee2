// Package wire implements the framing exchanged between the edge agent and
// the inference service over a reliable ordered byte stream.
//
//	FRAME    [seq u32][payload_length u32][payload]
//	DECISION [seq u32][status u8][class u8][value f32]
//
// All fields are little-endian. A FRAME with an empty payload marks the end
// of the session.
package wire

import (
	"fmt"
	"strings"
)

const (
	// FrameHeaderSize is the size of the FRAME header preceding the payload.
	FrameHeaderSize = 8

	// DecisionSize is the fixed size of a DECISION message.
	DecisionSize = 10

	// DefaultMaxPayload bounds the payload of a FRAME unless configured otherwise.
	DefaultMaxPayload = 4 << 20
)

// Status tells whether a decision carries a prediction.
type Status uint8

const (
	StatusOK             Status = 0
	StatusInferenceError Status = 1
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusInferenceError:
		return "INFERENCE_ERROR"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Class is a discrete steering class, numbered as the model output indices.
type Class uint8

const (
	ClassForward Class = 0
	ClassLeft    Class = 1
	ClassRight   Class = 2
)

// NumClasses is the number of steering classes a model outputs.
const NumClasses = 3

func (c Class) String() string {
	switch c {
	case ClassForward:
		return "FORWARD"
	case ClassLeft:
		return "LEFT"
	case ClassRight:
		return "RIGHT"
	default:
		return fmt.Sprintf("Class(%d)", uint8(c))
	}
}

// Valid reports whether c is a known class.
func (c Class) Valid() bool {
	return c < NumClasses
}

// ParseClass parses a class name such as "forward" or "LEFT".
func ParseClass(s string) (Class, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FORWARD":
		return ClassForward, nil
	case "LEFT":
		return ClassLeft, nil
	case "RIGHT":
		return ClassRight, nil
	}
	return 0, fmt.Errorf("unknown steering class %q", s)
}

// FramePacket is an encoded camera frame tagged with its sequence number.
type FramePacket struct {
	Seq     uint32
	Payload []byte
}

// EndOfSession reports whether the packet is the end-of-session marker.
func (f FramePacket) EndOfSession() bool {
	return len(f.Payload) == 0
}

// Decision answers the frame with the same sequence number.
type Decision struct {
	Seq    uint32
	Status Status
	Class  Class

	// Value is the continuous steering estimate in [-1, 1], negative to the
	// left. Zero when the predictor has no such output.
	Value float32
}

// ErrorDecision returns the inline marker for a frame whose prediction failed.
func ErrorDecision(seq uint32) Decision {
	return Decision{Seq: seq, Status: StatusInferenceError, Class: ClassForward}
}
