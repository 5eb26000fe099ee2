package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// AppendFrame appends the encoding of f to dst.
func AppendFrame(dst []byte, f FramePacket) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, f.Seq)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(f.Payload)))
	return append(dst, f.Payload...)
}

// AppendDecision appends the encoding of d to dst.
func AppendDecision(dst []byte, d Decision) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, d.Seq)
	dst = append(dst, byte(d.Status), byte(d.Class))
	return binary.LittleEndian.AppendUint32(dst, math.Float32bits(d.Value))
}

// WriteFrame writes f to w in a single Write call.
func WriteFrame(w io.Writer, f FramePacket) error {
	if uint64(len(f.Payload)) > math.MaxUint32 {
		return &ProtocolError{Op: "write frame", Seq: f.Seq, Err: ErrMalformedLength}
	}
	buf := AppendFrame(make([]byte, 0, FrameHeaderSize+len(f.Payload)), f)
	_, err := w.Write(buf)
	return err
}

// WriteDecision writes d to w in a single Write call.
func WriteDecision(w io.Writer, d Decision) error {
	var buf [DecisionSize]byte
	_, err := w.Write(AppendDecision(buf[:0], d))
	return err
}

// ReadFrame reads one FRAME from r. A payload announced larger than
// maxPayload is rejected before any of it is read. io.EOF is returned only
// when the stream ends cleanly on a message boundary.
func ReadFrame(r io.Reader, maxPayload uint32) (FramePacket, error) {
	var hdr [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return FramePacket{}, &ProtocolError{Op: "read frame", Err: ErrTruncatedHeader}
		}
		return FramePacket{}, err
	}

	f := FramePacket{Seq: binary.LittleEndian.Uint32(hdr[0:4])}
	n := binary.LittleEndian.Uint32(hdr[4:8])
	if n > maxPayload {
		return f, &ProtocolError{
			Op:  "read frame",
			Seq: f.Seq,
			Err: fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrMalformedLength, n, maxPayload),
		}
	}
	if n == 0 {
		return f, nil
	}

	f.Payload = make([]byte, n)
	if _, err := io.ReadFull(r, f.Payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return f, &ProtocolError{
				Op:  "read frame",
				Seq: f.Seq,
				Err: fmt.Errorf("%w: stream ended inside a %d byte payload", ErrPayloadMismatch, n),
			}
		}
		return f, err
	}

	return f, nil
}

// ReadDecision reads one DECISION from r.
func ReadDecision(r io.Reader) (Decision, error) {
	var buf [DecisionSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Decision{}, &ProtocolError{Op: "read decision", Err: ErrTruncatedHeader}
		}
		return Decision{}, err
	}

	d := Decision{
		Seq:    binary.LittleEndian.Uint32(buf[0:4]),
		Status: Status(buf[4]),
		Class:  Class(buf[5]),
		Value:  math.Float32frombits(binary.LittleEndian.Uint32(buf[6:10])),
	}

	switch {
	case d.Status != StatusOK && d.Status != StatusInferenceError:
		return d, &ProtocolError{Op: "read decision", Seq: d.Seq, Err: fmt.Errorf("%w: %d", ErrUnknownStatus, buf[4])}
	case !d.Class.Valid():
		return d, &ProtocolError{Op: "read decision", Seq: d.Seq, Err: fmt.Errorf("%w: %d", ErrUnknownClass, buf[5])}
	}

	return d, nil
}
