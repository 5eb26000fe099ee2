package wire

import (
	"bytes"
	"errors"
	"net"
	"os"
	"testing"
	"time"
)

func TestConnRoundTrip(t *testing.T) {
	edge, svc := net.Pipe()
	ec := NewConn(edge, ConnOptions{ReadTimeout: time.Second, WriteTimeout: time.Second})
	sc := NewConn(svc, ConnOptions{ReadTimeout: time.Second, WriteTimeout: time.Second})
	defer ec.Close()
	defer sc.Close()

	img := testImage(64 * 64)
	errc := make(chan error, 1)
	go func() {
		if err := ec.WriteFrame(FramePacket{Seq: 5, Payload: img}); err != nil {
			errc <- err
			return
		}
		errc <- ec.WriteEndOfSession(6)
	}()

	f, err := sc.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if f.Seq != 5 || !bytes.Equal(f.Payload, img) {
		t.Fatalf("unexpected frame seq=%d len=%d", f.Seq, len(f.Payload))
	}
	if f, err = sc.ReadFrame(); err != nil || !f.EndOfSession() {
		t.Fatalf("expected end-of-session marker, got %+v, %v", f, err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("writer error = %v", err)
	}

	go func() {
		errc <- sc.WriteDecision(Decision{Seq: 5, Status: StatusOK, Class: ClassForward})
	}()
	d, err := ec.ReadDecision()
	if err != nil {
		t.Fatalf("ReadDecision() error = %v", err)
	}
	if d != (Decision{Seq: 5, Status: StatusOK, Class: ClassForward}) {
		t.Errorf("ReadDecision() = %+v", d)
	}
	if err := <-errc; err != nil {
		t.Fatalf("writer error = %v", err)
	}
}

func TestConnReadTimeout(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	c := NewConn(a, ConnOptions{ReadTimeout: 20 * time.Millisecond})
	defer c.Close()

	_, err := c.ReadFrame()
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("ReadFrame() error = %v, want deadline exceeded", err)
	}
}

func TestConnMaxPayload(t *testing.T) {
	a, b := net.Pipe()
	c := NewConn(a, ConnOptions{MaxPayload: 16, ReadTimeout: time.Second})
	defer c.Close()
	defer b.Close()

	go func() { _ = WriteFrame(b, FramePacket{Seq: 1, Payload: testImage(17)}) }()

	if _, err := c.ReadFrame(); !errors.Is(err, ErrMalformedLength) {
		t.Fatalf("ReadFrame() error = %v, want ErrMalformedLength", err)
	}
}
