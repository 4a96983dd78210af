// Package ptyconsole provides a console transport running a local serial
// client (cu, tip, picocom) under a pseudo-terminal.
package ptyconsole

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"

	"github.com/netopsai/switch-console/internal/ports"
)

// Transport runs a command under a PTY and exposes the terminal as a byte
// stream. Like the SSH transport, a pump goroutine drains the PTY so
// Available never blocks on the device.
type Transport struct {
	argv []string

	mu      sync.Mutex
	cmd     *exec.Cmd
	file    *os.File
	buf     bytes.Buffer
	readErr error
	open    bool
}

// New creates a PTY console transport for the given argv, e.g.
// ["cu", "-l", "/dev/ttyUSB0", "-s", "9600"].
func New(argv []string) (*Transport, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("ptyconsole: empty command")
	}
	return &Transport{argv: argv}, nil
}

// Open implements ports.Transport, starting the command under a fresh PTY.
// TERM=dumb keeps escape sequences out of the byte stream.
func (t *Transport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.open {
		return nil
	}

	cmd := exec.Command(t.argv[0], t.argv[1:]...)
	cmd.Env = append(os.Environ(), "TERM=dumb", "NO_COLOR=1")

	file, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: 24, Cols: 120})
	if err != nil {
		return fmt.Errorf("start %s: %w", t.argv[0], err)
	}

	t.cmd = cmd
	t.file = file
	t.buf.Reset()
	t.readErr = nil
	t.open = true

	go t.pump(file)
	return nil
}

func (t *Transport) pump(file *os.File) {
	chunk := make([]byte, 4096)
	for {
		n, err := file.Read(chunk)
		t.mu.Lock()
		if n > 0 {
			t.buf.Write(chunk[:n])
		}
		if err != nil {
			t.readErr = err
			t.mu.Unlock()
			return
		}
		t.mu.Unlock()
	}
}

// Close implements ports.Transport, closing the PTY and reaping the child.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return nil
	}
	t.open = false

	err := t.file.Close()
	t.file = nil
	if t.cmd != nil && t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
		_ = t.cmd.Wait()
	}
	t.cmd = nil
	return err
}

// IsOpen implements ports.Transport.
func (t *Transport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// Available implements ports.Transport.
func (t *Transport) Available() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return 0, fmt.Errorf("ptyconsole: not open")
	}
	if n := t.buf.Len(); n > 0 {
		return n, nil
	}
	if t.readErr != nil && t.readErr != io.EOF {
		return 0, t.readErr
	}
	return 0, nil
}

// Read implements ports.Transport.
func (t *Transport) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return 0, fmt.Errorf("ptyconsole: not open")
	}
	if t.buf.Len() == 0 {
		return 0, nil
	}
	return t.buf.Read(p)
}

// Write implements ports.Transport.
func (t *Transport) Write(p []byte) (int, error) {
	t.mu.Lock()
	file := t.file
	open := t.open
	t.mu.Unlock()

	if !open || file == nil {
		return 0, fmt.Errorf("ptyconsole: not open")
	}
	return file.Write(p)
}

// Flush implements ports.Transport. PTY writes reach the line discipline
// immediately.
func (t *Transport) Flush() error {
	return nil
}

var _ ports.Transport = (*Transport)(nil)
