// Package sshconsole provides a console transport over an SSH shell, for
// terminal servers and devices that expose their console via SSH.
package sshconsole

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/netopsai/switch-console/internal/ports"
)

// Options configures an SSH console transport.
type Options struct {
	Address  string // host:port
	User     string
	Password string

	// HostKeyCallback verifies the server key. Defaults to accepting any
	// key, which matches how lab terminal servers are usually reached;
	// production configs should supply a known-hosts callback.
	HostKeyCallback ssh.HostKeyCallback
	DialTimeout     time.Duration // default 10s
	Term            string        // default "dumb"
}

// Transport runs an interactive shell on an SSH connection and exposes it
// as a byte stream. A pump goroutine drains the shell's stdout into an
// internal buffer so Available never blocks.
type Transport struct {
	opts Options

	mu      sync.Mutex
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	buf     bytes.Buffer
	readErr error
	open    bool
}

// New creates an SSH console transport.
func New(opts Options) *Transport {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.Term == "" {
		opts.Term = "dumb"
	}
	if opts.HostKeyCallback == nil {
		opts.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	}
	return &Transport{opts: opts}
}

// Open implements ports.Transport: dial, request a PTY with local echo (the
// device side does the echoing a console expects), and start a shell.
func (t *Transport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.open {
		return nil
	}

	config := &ssh.ClientConfig{
		User:            t.opts.User,
		Auth:            []ssh.AuthMethod{ssh.Password(t.opts.Password)},
		HostKeyCallback: t.opts.HostKeyCallback,
		Timeout:         t.opts.DialTimeout,
	}

	client, err := ssh.Dial("tcp", t.opts.Address, config)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.opts.Address, err)
	}

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return fmt.Errorf("new session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty(t.opts.Term, 24, 120, modes); err != nil {
		session.Close()
		client.Close()
		return fmt.Errorf("request pty: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		client.Close()
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		client.Close()
		return fmt.Errorf("stdout pipe: %w", err)
	}

	if err := session.Shell(); err != nil {
		session.Close()
		client.Close()
		return fmt.Errorf("start shell: %w", err)
	}

	t.client = client
	t.session = session
	t.stdin = stdin
	t.buf.Reset()
	t.readErr = nil
	t.open = true

	go t.pump(stdout)
	return nil
}

// pump copies shell output into the buffer until the stream ends.
func (t *Transport) pump(stdout io.Reader) {
	chunk := make([]byte, 4096)
	for {
		n, err := stdout.Read(chunk)
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

// Close implements ports.Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return nil
	}
	t.open = false

	var err error
	if t.session != nil {
		err = t.session.Close()
		t.session = nil
	}
	if t.client != nil {
		if cerr := t.client.Close(); err == nil {
			err = cerr
		}
		t.client = nil
	}
	t.stdin = nil
	return err
}

// IsOpen implements ports.Transport.
func (t *Transport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// Available implements ports.Transport. A pump failure surfaces only once
// the buffered data has been drained.
func (t *Transport) Available() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return 0, fmt.Errorf("sshconsole: not open")
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
		return 0, fmt.Errorf("sshconsole: not open")
	}
	if t.buf.Len() == 0 {
		return 0, nil
	}
	return t.buf.Read(p)
}

// Write implements ports.Transport.
func (t *Transport) Write(p []byte) (int, error) {
	t.mu.Lock()
	stdin := t.stdin
	open := t.open
	t.mu.Unlock()

	if !open || stdin == nil {
		return 0, fmt.Errorf("sshconsole: not open")
	}
	return stdin.Write(p)
}

// Flush implements ports.Transport. SSH channel writes are not buffered
// here.
func (t *Transport) Flush() error {
	return nil
}

var _ ports.Transport = (*Transport)(nil)
