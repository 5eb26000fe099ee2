// Package link carries frames to the inference service and decisions back.
package link

import (
	"context"
	"fmt"
	"net"

	"github.com/autopeer-io/remotepilot/pkg/options"
	"github.com/autopeer-io/remotepilot/pkg/wire"
)

// DialFunc opens a transport connection to the inference service.
type DialFunc func(ctx context.Context) (net.Conn, error)

// Link opens sessions to the inference service.
type Link struct {
	opts *options.LinkOptions
	dial DialFunc
}

// New creates a Link. A nil dial connects over TCP to opts.Server.
func New(opts *options.LinkOptions, dial DialFunc) *Link {
	if dial == nil {
		d := &net.Dialer{Timeout: opts.DialTimeout}
		dial = func(ctx context.Context) (net.Conn, error) {
			return d.DialContext(ctx, "tcp", opts.Server)
		}
	}
	return &Link{opts: opts, dial: dial}
}

// Server returns the configured inference service address.
func (l *Link) Server() string {
	return l.opts.Server
}

// Connect opens a new session.
func (l *Link) Connect(ctx context.Context) (*Session, error) {
	dctx, cancel := context.WithTimeout(ctx, l.opts.DialTimeout)
	defer cancel()

	nc, err := l.dial(dctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", l.opts.Server, err)
	}
	if tc, ok := nc.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	return &Session{
		conn: wire.NewConn(nc, wire.ConnOptions{
			MaxPayload:   l.opts.MaxPayload,
			ReadTimeout:  l.opts.IOTimeout,
			WriteTimeout: l.opts.IOTimeout,
		}),
	}, nil
}

// Session is one connection to the inference service.
type Session struct {
	conn *wire.Conn
}

// Send writes one frame.
func (s *Session) Send(o Outgoing) error {
	return s.conn.WriteFrame(wire.FramePacket{Seq: o.Seq, Payload: o.Frame.Image})
}

// Receive reads the next decision. It fails when no decision arrives
// within the IO timeout.
func (s *Session) Receive() (wire.Decision, error) {
	return s.conn.ReadDecision()
}

// End sends the end-of-session marker.
func (s *Session) End(seq uint32) error {
	return s.conn.WriteEndOfSession(seq)
}

// Close closes the connection.
func (s *Session) Close() error {
	return s.conn.Close()
}

// RemoteAddr returns the address of the inference service.
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}
