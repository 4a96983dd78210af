// Package mockdevice provides a mock SSH server that emulates a network
// device console for testing: it echoes input like a real line and answers
// commands from a scripted table.
package mockdevice

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/crypto/ssh"
)

// Server is a mock device reachable over SSH.
type Server struct {
	listener net.Listener
	config   *ssh.ServerConfig
	addr     string

	mu        sync.RWMutex
	users     map[string]string // username -> password
	banner    string
	prompt    string
	responses map[string]string // command line -> output

	done chan struct{}
	wg   sync.WaitGroup
}

// Option configures the mock device.
type Option func(*Server)

// WithUser adds a user/password pair for SSH authentication.
func WithUser(username, password string) Option {
	return func(s *Server) {
		s.users[username] = password
	}
}

// WithBanner sets what the device prints when the shell opens.
func WithBanner(banner string) Option {
	return func(s *Server) {
		s.banner = banner
	}
}

// WithPrompt sets the prompt printed after every command.
func WithPrompt(prompt string) Option {
	return func(s *Server) {
		s.prompt = prompt
	}
}

// WithResponse scripts the output for one command line.
func WithResponse(command, output string) Option {
	return func(s *Server) {
		s.responses[command] = output
	}
}

// New creates and starts a mock device on a random loopback port.
func New(opts ...Option) (*Server, error) {
	// Generate a temporary host key
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate host key: %w", err)
	}
	signer, err := ssh.NewSignerFromKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create signer: %w", err)
	}

	s := &Server{
		users: map[string]string{
			"test": "test", // Default test user
		},
		prompt:    "Switch#",
		responses: make(map[string]string),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.banner == "" {
		s.banner = "\r\n" + s.prompt
	}

	config := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			s.mu.RLock()
			expectedPass, ok := s.users[c.User()]
			s.mu.RUnlock()

			if ok && string(password) == expectedPass {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %q", c.User())
		},
	}
	config.AddHostKey(signer)
	s.config = config

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.addr = listener.Addr().String()

	s.wg.Add(1)
	go s.acceptLoop()

	slog.Debug("mock device started", slog.String("addr", s.addr))
	return s, nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	return s.addr
}

// Close shuts down the mock device.
func (s *Server) Close() error {
	close(s.done)
	err := s.listener.Close()
	s.wg.Wait()
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				slog.Debug("accept error", slog.String("error", err.Error()))
				continue
			}
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(netConn net.Conn) {
	defer s.wg.Done()
	defer netConn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, s.config)
	if err != nil {
		slog.Debug("SSH handshake failed", slog.String("error", err.Error()))
		return
	}
	defer sshConn.Close()

	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}

		channel, requests, err := newChannel.Accept()
		if err != nil {
			slog.Debug("channel accept failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go s.handleChannel(channel, requests)
	}
}

func (s *Server) handleChannel(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer s.wg.Done()
	defer channel.Close()

	started := false
	for req := range requests {
		switch req.Type {
		case "pty-req", "window-change":
			if req.WantReply {
				req.Reply(true, nil)
			}
		case "shell":
			if req.WantReply {
				req.Reply(true, nil)
			}
			if !started {
				started = true
				s.wg.Add(1)
				go s.emulate(channel)
			}
		default:
			if req.WantReply {
				req.Reply(false, nil)
			}
		}
	}
}

// emulate runs the console loop: echo every byte like a serial line, and on
// CR answer the accumulated command from the script, then reprint the
// prompt.
func (s *Server) emulate(channel ssh.Channel) {
	defer s.wg.Done()

	s.mu.RLock()
	banner := s.banner
	s.mu.RUnlock()
	if _, err := channel.Write([]byte(banner)); err != nil {
		return
	}

	var line []byte
	buf := make([]byte, 256)
	for {
		n, err := channel.Read(buf)
		if err != nil {
			return
		}
		for _, b := range buf[:n] {
			switch b {
			case '\r':
				if _, err := channel.Write([]byte("\r\n")); err != nil {
					return
				}
				if err := s.respond(channel, string(line)); err != nil {
					return
				}
				line = line[:0]
			case '\n':
				// CR already handled the line
			default:
				line = append(line, b)
				if _, err := channel.Write([]byte{b}); err != nil {
					return
				}
			}
		}
	}
}

func (s *Server) respond(channel ssh.Channel, command string) error {
	s.mu.RLock()
	output, ok := s.responses[command]
	prompt := s.prompt
	s.mu.RUnlock()

	if command == "" {
		_, err := channel.Write([]byte(prompt))
		return err
	}
	if !ok {
		output = fmt.Sprintf("%% Unknown command %q", command)
	}
	if output != "" {
		if _, err := channel.Write([]byte(output + "\r\n")); err != nil {
			return err
		}
	}
	_, err := channel.Write([]byte(prompt))
	return err
}
