package wire

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"
)

func testImage(n int) []byte {
	img := make([]byte, n)
	for i := range img {
		img[i] = byte(i * 7)
	}
	return img
}

func TestFrameEncoding(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, FramePacket{Seq: 5, Payload: []byte{0xff, 0xd8, 0xff}}); err != nil {
		t.Fatal(err)
	}

	want := []byte{5, 0, 0, 0, 3, 0, 0, 0, 0xff, 0xd8, 0xff}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("encoded frame = % x, want % x", buf.Bytes(), want)
	}
}

func TestDecisionEncoding(t *testing.T) {
	tests := []struct {
		name string
		d    Decision
		want []byte
	}{
		{"ok forward", Decision{Seq: 5, Status: StatusOK, Class: ClassForward}, []byte{5, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
		{"ok left half", Decision{Seq: 1, Status: StatusOK, Class: ClassLeft, Value: -0.5}, []byte{1, 0, 0, 0, 0, 1, 0, 0, 0, 0xbf}},
		{"error", ErrorDecision(258), []byte{2, 1, 0, 0, 1, 0, 0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteDecision(&buf, tt.d); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(buf.Bytes(), tt.want) {
				t.Errorf("encoded = % x, want % x", buf.Bytes(), tt.want)
			}

			got, err := ReadDecision(&buf)
			if err != nil {
				t.Fatalf("ReadDecision() error = %v", err)
			}
			if got != tt.d {
				t.Errorf("ReadDecision() = %+v, want %+v", got, tt.d)
			}
		})
	}
}

func TestReadFrameFragmented(t *testing.T) {
	img := testImage(64 * 64)

	var buf bytes.Buffer
	if err := WriteFrame(&buf, FramePacket{Seq: 5, Payload: img}); err != nil {
		t.Fatal(err)
	}
	if err := WriteFrame(&buf, FramePacket{Seq: 9, Payload: img[:10]}); err != nil {
		t.Fatal(err)
	}

	r := iotest.OneByteReader(&buf)

	f, err := ReadFrame(r, DefaultMaxPayload)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if f.Seq != 5 || !bytes.Equal(f.Payload, img) {
		t.Fatalf("first frame seq=%d len=%d", f.Seq, len(f.Payload))
	}

	f, err = ReadFrame(r, DefaultMaxPayload)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if f.Seq != 9 || !bytes.Equal(f.Payload, img[:10]) {
		t.Fatalf("second frame seq=%d len=%d", f.Seq, len(f.Payload))
	}

	if _, err := ReadFrame(r, DefaultMaxPayload); err != io.EOF {
		t.Fatalf("ReadFrame() at end of stream error = %v, want io.EOF", err)
	}
}

func TestReadFrameErrors(t *testing.T) {
	oversized := []byte{1, 0, 0, 0, 0, 0, 0, 0x10}

	truncated := AppendFrame(nil, FramePacket{Seq: 3, Payload: testImage(100)})
	truncated = truncated[:FrameHeaderSize+40]

	tests := []struct {
		name    string
		input   []byte
		max     uint32
		wantErr error
	}{
		{"length above limit", oversized, DefaultMaxPayload, ErrMalformedLength},
		{"length above small limit", AppendFrame(nil, FramePacket{Seq: 1, Payload: testImage(65)}), 64, ErrMalformedLength},
		{"stream ends inside payload", truncated, DefaultMaxPayload, ErrPayloadMismatch},
		{"stream ends before payload", truncated[:FrameHeaderSize], DefaultMaxPayload, ErrPayloadMismatch},
		{"stream ends inside header", []byte{1, 0, 0}, DefaultMaxPayload, ErrTruncatedHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFrame(bytes.NewReader(tt.input), tt.max)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ReadFrame() error = %v, want %v", err, tt.wantErr)
			}
			if !IsProtocolError(err) {
				t.Errorf("expected a ProtocolError, got %T", err)
			}
		})
	}
}

func TestReadFrameEndOfSession(t *testing.T) {
	f, err := ReadFrame(bytes.NewReader(AppendFrame(nil, FramePacket{Seq: 42})), DefaultMaxPayload)
	if err != nil {
		t.Fatal(err)
	}
	if !f.EndOfSession() || f.Seq != 42 {
		t.Errorf("got %+v, want end-of-session marker with seq 42", f)
	}
}

func TestReadDecisionErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		wantErr error
	}{
		{"unknown status", []byte{1, 0, 0, 0, 7, 0, 0, 0, 0, 0}, ErrUnknownStatus},
		{"unknown class", []byte{1, 0, 0, 0, 0, 3, 0, 0, 0, 0}, ErrUnknownClass},
		{"truncated", []byte{1, 0, 0, 0, 0}, ErrTruncatedHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadDecision(bytes.NewReader(tt.input))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ReadDecision() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseClass(t *testing.T) {
	for _, c := range []Class{ClassForward, ClassLeft, ClassRight} {
		got, err := ParseClass(c.String())
		if err != nil || got != c {
			t.Errorf("ParseClass(%q) = %v, %v", c.String(), got, err)
		}
	}
	if got, err := ParseClass(" left "); err != nil || got != ClassLeft {
		t.Errorf("ParseClass(\" left \") = %v, %v", got, err)
	}
	if _, err := ParseClass("reverse"); err == nil {
		t.Error("ParseClass(\"reverse\") must fail")
	}
}
