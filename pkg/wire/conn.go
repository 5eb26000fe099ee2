package wire

import (
	"bufio"
	"net"
	"sync"
	"time"
)

// ConnOptions tunes a Conn.
type ConnOptions struct {
	// MaxPayload bounds incoming frames. Zero means DefaultMaxPayload.
	MaxPayload uint32

	// ReadTimeout is the longest wait for the next message. Zero disables it.
	ReadTimeout time.Duration

	// WriteTimeout bounds the write of one message. Zero disables it.
	WriteTimeout time.Duration
}

// Conn carries frames and decisions over a network connection. Each message
// is flushed as soon as it is written. Reads and writes may happen
// concurrently from one reader and any number of writers.
type Conn struct {
	nc   net.Conn
	opts ConnOptions

	r *bufio.Reader

	wmu sync.Mutex
	w   *bufio.Writer
	buf []byte
}

// NewConn wraps nc.
func NewConn(nc net.Conn, opts ConnOptions) *Conn {
	if opts.MaxPayload == 0 {
		opts.MaxPayload = DefaultMaxPayload
	}
	return &Conn{
		nc:   nc,
		opts: opts,
		r:    bufio.NewReaderSize(nc, 64<<10),
		w:    bufio.NewWriterSize(nc, 64<<10),
	}
}

// ReadFrame reads the next frame.
func (c *Conn) ReadFrame() (FramePacket, error) {
	if err := c.armRead(); err != nil {
		return FramePacket{}, err
	}
	return ReadFrame(c.r, c.opts.MaxPayload)
}

// ReadDecision reads the next decision.
func (c *Conn) ReadDecision() (Decision, error) {
	if err := c.armRead(); err != nil {
		return Decision{}, err
	}
	return ReadDecision(c.r)
}

// WriteFrame writes and flushes f.
func (c *Conn) WriteFrame(f FramePacket) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	c.buf = AppendFrame(c.buf[:0], f)
	return c.flush()
}

// WriteEndOfSession writes the end-of-session marker.
func (c *Conn) WriteEndOfSession(seq uint32) error {
	return c.WriteFrame(FramePacket{Seq: seq})
}

// WriteDecision writes and flushes d.
func (c *Conn) WriteDecision(d Decision) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	c.buf = AppendDecision(c.buf[:0], d)
	return c.flush()
}

// Close closes the underlying connection. Blocked reads and writes return.
func (c *Conn) Close() error {
	return c.nc.Close()
}

// RemoteAddr returns the address of the peer.
func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

func (c *Conn) armRead() error {
	if c.opts.ReadTimeout <= 0 {
		return nil
	}
	return c.nc.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
}

// flush must be called with wmu held.
func (c *Conn) flush() error {
	if c.opts.WriteTimeout > 0 {
		if err := c.nc.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
			return err
		}
	}
	if _, err := c.w.Write(c.buf); err != nil {
		return err
	}
	return c.w.Flush()
}
