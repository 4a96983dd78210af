// Package netconsole provides a console transport over a TCP connection,
// the usual way a terminal server exposes a device's serial port.
package netconsole

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/netopsai/switch-console/internal/ports"
)

// Transport connects to a terminal server port over TCP.
type Transport struct {
	address     string
	dialTimeout time.Duration

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// Options configures a TCP console transport.
type Options struct {
	DialTimeout time.Duration // default 10s
}

// New creates a transport for the given host:port.
func New(address string, opts Options) *Transport {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	return &Transport{
		address:     address,
		dialTimeout: opts.DialTimeout,
	}
}

// Open implements ports.Transport.
func (t *Transport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return nil
	}
	conn, err := net.DialTimeout("tcp", t.address, t.dialTimeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.address, err)
	}
	t.conn = conn
	t.reader = bufio.NewReader(conn)
	return nil
}

// Close implements ports.Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.reader = nil
	return err
}

// IsOpen implements ports.Transport.
func (t *Transport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// Available implements ports.Transport. The socket is probed with a short
// read deadline; a deadline miss means no data, not an error.
func (t *Transport) Available() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return 0, net.ErrClosed
	}
	if n := t.reader.Buffered(); n > 0 {
		return n, nil
	}

	if err := t.conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return 0, err
	}
	defer t.conn.SetReadDeadline(time.Time{})

	if _, err := t.reader.Peek(1); err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, nil
		}
		return 0, err
	}
	return t.reader.Buffered(), nil
}

// Read implements ports.Transport, draining buffered data only.
func (t *Transport) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return 0, net.ErrClosed
	}
	if t.reader.Buffered() == 0 {
		return 0, nil
	}
	n := t.reader.Buffered()
	if n > len(p) {
		n = len(p)
	}
	return t.reader.Read(p[:n])
}

// Write implements ports.Transport.
func (t *Transport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return 0, net.ErrClosed
	}
	return t.conn.Write(p)
}

// Flush implements ports.Transport. TCP writes are not buffered here.
func (t *Transport) Flush() error {
	return nil
}

var _ ports.Transport = (*Transport)(nil)
