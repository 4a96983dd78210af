// Package session drives an interactive login session on a network device
// console: connect, authenticate, escalate privilege, run commands, and
// navigate between shell modes, all over a single exclusively-owned byte
// transport.
package session

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/netopsai/switch-console/internal/adapters/realclock"
	"github.com/netopsai/switch-console/internal/logging"
	"github.com/netopsai/switch-console/internal/ports"
	"github.com/netopsai/switch-console/internal/prompt"
)

// Device commands issued by the engine itself.
const (
	cmdEnable         = "enable"
	cmdConfigTerminal = "configure terminal"
	cmdEnd            = "end"
	cmdExit           = "exit"
	cmdDisablePaging  = "terminal length 0"
	cmdShowTerminal   = "show terminal"

	// pagingDisabledMarker appears in "show terminal" output once paging
	// is off.
	pagingDisabledMarker = "Length: 0 lines"

	// paginationMarker is the literal continuation marker stripped from
	// collected output.
	paginationMarker = "--More--"

	// invalidLoginMarker appears in raw output when the device rejects
	// credentials without bouncing back to the username prompt.
	invalidLoginMarker = "Login invalid"
)

// Options configures session timing. Zero values take the defaults noted on
// each field.
type Options struct {
	ResponseTimeout time.Duration // per-command read timeout (10s)
	ConnectTimeout  time.Duration // first prompt wait on connect (15s)
	RetryTimeout    time.Duration // second prompt wait on connect (5s)
	RefreshTimeout  time.Duration // bare-CR state refresh wait (3s)
	ReadInterval    time.Duration // transport poll interval (150ms)
	SettleDelay     time.Duration // pause between write and first read (200ms)
	ConnectSettle   time.Duration // pause after the initial CRLF (1s)

	Clock      ports.Clock        // defaults to the wall clock
	Classifier *prompt.Classifier // defaults to the built-in rule table
}

func (o *Options) applyDefaults() {
	if o.ResponseTimeout <= 0 {
		o.ResponseTimeout = 10 * time.Second
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 15 * time.Second
	}
	if o.RetryTimeout <= 0 {
		o.RetryTimeout = 5 * time.Second
	}
	if o.RefreshTimeout <= 0 {
		o.RefreshTimeout = 3 * time.Second
	}
	if o.ReadInterval <= 0 {
		o.ReadInterval = 150 * time.Millisecond
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = 200 * time.Millisecond
	}
	if o.ConnectSettle <= 0 {
		o.ConnectSettle = time.Second
	}
	if o.Clock == nil {
		o.Clock = realclock.New()
	}
	if o.Classifier == nil {
		o.Classifier = prompt.NewClassifier()
	}
}

// Session owns one console transport and tracks the device state derived
// from prompt classification. It is a synchronous request/response
// automation: at most one outstanding write awaits its prompt at any time,
// and the record is not meant for concurrent use from multiple goroutines.
type Session struct {
	mu         sync.Mutex
	transport  ports.Transport
	clock      ports.Clock
	classifier *prompt.Classifier

	responseTimeout time.Duration
	connectTimeout  time.Duration
	retryTimeout    time.Duration
	refreshTimeout  time.Duration
	readInterval    time.Duration
	settleDelay     time.Duration
	connectSettle   time.Duration

	state        prompt.SessionState
	promptText   string
	loggedIn     bool
	enableActive bool
	lastRaw      string
}

// New creates a disconnected session over the given transport.
func New(transport ports.Transport, opts Options) *Session {
	opts.applyDefaults()
	return &Session{
		transport:       transport,
		clock:           opts.Clock,
		classifier:      opts.Classifier,
		responseTimeout: opts.ResponseTimeout,
		connectTimeout:  opts.ConnectTimeout,
		retryTimeout:    opts.RetryTimeout,
		refreshTimeout:  opts.RefreshTimeout,
		readInterval:    opts.ReadInterval,
		settleDelay:     opts.SettleDelay,
		connectSettle:   opts.ConnectSettle,
		state:           prompt.StateDisconnected,
	}
}

// State returns the most recently classified session state.
func (s *Session) State() prompt.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Prompt returns the literal prompt text from the most recent classification.
func (s *Session) Prompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promptText
}

// LastRaw returns the raw buffer from the most recent read, kept for
// diagnostics after timeouts and failures.
func (s *Session) LastRaw() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRaw
}

// LoggedIn reports whether a login has completed on this session.
func (s *Session) LoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedIn
}

// EnableActive reports whether privileged mode has been reached.
func (s *Session) EnableActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enableActive
}

// Connect opens the transport and elicits a fresh prompt with a line
// terminator. If nothing recognizable arrives within the connect timeout a
// single bare CR is retried with a shorter wait. Connecting an already-open
// session is a no-op success. On failure any partially-open transport is
// closed.
func (s *Session) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connect()
}

func (s *Session) connect() error {
	if s.transport.IsOpen() {
		return nil
	}

	if err := s.transport.Open(); err != nil {
		s.state = prompt.StateDisconnected
		return fmt.Errorf("open transport: %w", err)
	}

	if err := s.write([]byte("\r\n")); err != nil {
		_ = s.transport.Close()
		s.state = prompt.StateDisconnected
		return fmt.Errorf("elicit prompt: %w", err)
	}
	s.clock.Sleep(s.connectSettle)
	s.readUntilPrompt(s.connectTimeout, nil)

	if s.state == prompt.StateUnknownTimeout {
		slog.Debug("no prompt on first attempt, retrying with bare CR")
		if err := s.write([]byte("\r")); err != nil {
			_ = s.transport.Close()
			s.state = prompt.StateDisconnected
			return fmt.Errorf("elicit prompt retry: %w", err)
		}
		s.clock.Sleep(s.settleDelay)
		s.readUntilPrompt(s.retryTimeout, nil)
	}

	if s.state == prompt.StateDisconnected || s.state == prompt.StateUnknownTimeout || s.promptText == "" {
		state, promptText, raw := s.state, s.promptText, s.lastRaw
		s.disconnect()
		return fmt.Errorf("%w: state=%s prompt=%q raw=%q", ErrNoPrompt, state, promptText, raw)
	}

	slog.Info("console connected",
		slog.String("state", string(s.state)),
		slog.String("prompt", s.promptText),
	)
	return nil
}

// Login walks the authentication state machine: username and password if the
// device asks for them, then privilege escalation with the enable secret,
// then pagination disable. Failures are reported once, never retried; the
// causing state, prompt, and raw buffer stay on the session.
func (s *Session) Login(username, password, enablePassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.transport.IsOpen() {
		return ErrNotConnected
	}
	if s.loggedIn && s.enableActive {
		return nil
	}

	// A console left in privileged mode by a prior occupant may already
	// have paging disabled; remember so we can check instead of reapply.
	entryPrivileged := s.state == prompt.StatePrivilegedExec

	if s.state == prompt.StateExec || s.state == prompt.StatePrivilegedExec {
		s.loggedIn = true
	} else if s.state != prompt.StateAwaitingUsername && s.state != prompt.StateAwaitingPassword {
		// Not at a login prompt yet. A bare terminator either surfaces
		// one or lands directly in an authenticated mode.
		if err := s.sendAndRead([]byte("\r"), s.retryTimeout, []prompt.SessionState{
			prompt.StateAwaitingUsername,
			prompt.StateAwaitingPassword,
			prompt.StateExec,
			prompt.StatePrivilegedExec,
		}); err != nil {
			return err
		}
		if s.state == prompt.StateExec || s.state == prompt.StatePrivilegedExec {
			s.loggedIn = true
		}
	}

	if s.state == prompt.StateAwaitingUsername {
		slog.Debug("sending username", slog.String("username", username))
		if err := s.sendAndRead([]byte(username+"\r"), s.responseTimeout, []prompt.SessionState{
			prompt.StateAwaitingPassword,
		}); err != nil {
			return err
		}
		if s.state != prompt.StateAwaitingPassword {
			return fmt.Errorf("%w: expected password prompt after username, got %s (prompt %q)",
				ErrAuthenticationFailed, s.state, s.promptText)
		}
	} else if !s.loggedIn && s.state != prompt.StateAwaitingPassword {
		return fmt.Errorf("%w: unexpected state before username: %s (prompt %q)",
			ErrAuthenticationFailed, s.state, s.promptText)
	}

	if s.state == prompt.StateAwaitingPassword && !s.loggedIn {
		slog.Debug("sending user password")
		if err := s.sendAndRead([]byte(password+"\r"), 15*time.Second, []prompt.SessionState{
			prompt.StateExec,
			prompt.StatePrivilegedExec,
			prompt.StateAwaitingUsername,
		}); err != nil {
			return err
		}
		if s.state != prompt.StateExec && s.state != prompt.StatePrivilegedExec {
			if s.state == prompt.StateAwaitingUsername || strings.Contains(s.lastRaw, invalidLoginMarker) {
				return fmt.Errorf("%w: credentials rejected (state %s)", ErrAuthenticationFailed, s.state)
			}
			return fmt.Errorf("%w: unexpected state after password: %s (prompt %q)",
				ErrAuthenticationFailed, s.state, s.promptText)
		}
		s.loggedIn = true
		slog.Info("user login successful")
	}

	if !s.loggedIn {
		return fmt.Errorf("%w: could not confirm login, state %s", ErrAuthenticationFailed, s.state)
	}

	if s.state == prompt.StateExec && !s.enableActive {
		slog.Debug("escalating privilege")
		if err := s.sendAndRead([]byte(cmdEnable+"\r"), s.responseTimeout, []prompt.SessionState{
			prompt.StateAwaitingPassword,
			prompt.StatePrivilegedExec,
		}); err != nil {
			return err
		}
		switch s.state {
		case prompt.StateAwaitingPassword:
			if err := s.sendAndRead([]byte(enablePassword+"\r"), s.responseTimeout, []prompt.SessionState{
				prompt.StatePrivilegedExec,
				prompt.StateExec,
			}); err != nil {
				return err
			}
			if s.state != prompt.StatePrivilegedExec {
				return fmt.Errorf("%w: enable secret rejected (state %s, prompt %q)",
					ErrAuthenticationFailed, s.state, s.promptText)
			}
		case prompt.StatePrivilegedExec:
			// No enable secret configured.
		default:
			return fmt.Errorf("%w: escalation produced %s (prompt %q)",
				ErrAuthenticationFailed, s.state, s.promptText)
		}
	}

	if s.state != prompt.StatePrivilegedExec {
		return fmt.Errorf("%w: could not confirm privileged mode, state %s", ErrAuthenticationFailed, s.state)
	}

	s.enableActive = true
	slog.Info("privileged mode active")

	// Paging would stall every long command on a continuation marker.
	// When the session was privileged before this call the device may
	// already have it off; check before touching terminal settings.
	if entryPrivileged {
		out, err := s.run(cmdShowTerminal, 5*time.Second)
		if err != nil {
			return err
		}
		if !strings.Contains(out, pagingDisabledMarker) {
			if _, err := s.run(cmdDisablePaging, 5*time.Second); err != nil {
				return err
			}
		}
	} else {
		if _, err := s.run(cmdDisablePaging, 5*time.Second); err != nil {
			return err
		}
	}
	return nil
}

// Run executes a command with the session's default response timeout.
func (s *Session) Run(command string) (string, error) {
	return s.RunTimeout(command, 0)
}

// RunTimeout executes a command and returns its cleaned output: command echo
// stripped, trailing prompt stripped, pagination followed to completion. A
// timeout of zero uses the session default. Empty commands are a no-op.
func (s *Session) RunTimeout(command string, timeout time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(command, timeout)
}

func (s *Session) run(command string, timeout time.Duration) (string, error) {
	if !s.transport.IsOpen() {
		return "", ErrNotConnected
	}
	if strings.TrimSpace(command) == "" {
		return "", nil
	}
	if timeout <= 0 {
		timeout = s.responseTimeout
	}

	slog.Debug("running command",
		slog.String("command", command),
		slog.String("state", string(s.state)),
	)

	if err := s.sendAndRead([]byte(command+"\r"), timeout, nil); err != nil {
		return "", err
	}
	out := s.cleanOutput(s.lastRaw, command)

	// Pagination: acknowledge each continuation with a single space (no
	// terminator) and append the cleaned page until a real prompt returns.
	for s.state == prompt.StatePagination {
		out = stripPaginationMarker(out)
		if err := s.sendAndRead([]byte(" "), timeout, nil); err != nil {
			return out, err
		}
		page := strings.TrimSpace(normalizeNewlines(s.lastRaw))
		if s.state != prompt.StatePagination && s.promptText != "" && strings.HasSuffix(page, s.promptText) {
			page = strings.TrimSpace(strings.TrimSuffix(page, s.promptText))
		}
		out = strings.TrimSpace(out + "\n" + stripPaginationMarker(page))
	}

	out = strings.TrimSpace(out)
	slog.Debug("command output",
		slog.String("state", string(s.state)),
		slog.String("output", logging.Truncate(out, 256)),
	)
	return out, nil
}

// RefreshState sends a bare terminator and reclassifies, returning the
// resulting state and prompt. On a closed transport it reports the stored
// state without touching the wire.
func (s *Session) RefreshState() (prompt.SessionState, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshState()
}

func (s *Session) refreshState() (prompt.SessionState, string) {
	if s.transport.IsOpen() {
		_ = s.sendAndRead([]byte("\r"), s.refreshTimeout, nil)
	}
	return s.state, s.promptText
}

// Disconnect walks the session back toward the base state (exit sub-config,
// leave config, drop privilege, log out) and closes the transport. Cleanup
// command failures are logged and swallowed; the transport is always closed.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnect()
}

func (s *Session) disconnect() error {
	var closeErr error
	if s.transport.IsOpen() {
		s.unwind()
		closeErr = s.transport.Close()
		slog.Info("console disconnected")
	}

	s.state = prompt.StateDisconnected
	s.promptText = ""
	s.lastRaw = ""
	s.loggedIn = false
	s.enableActive = false
	return closeErr
}

// unwind issues best-effort mode exits before closing. Each step tolerates
// failure; a wedged device must not keep the port open.
func (s *Session) unwind() {
	if s.state.IsSubConfig() {
		if _, err := s.run(cmdExit, 3*time.Second); err != nil {
			slog.Debug("unwind exit failed", slog.String("error", err.Error()))
		}
	}
	if s.state == prompt.StateConfigTerminal {
		if _, err := s.run(cmdEnd, 3*time.Second); err != nil {
			slog.Debug("unwind end failed", slog.String("error", err.Error()))
		}
	}
	if s.state == prompt.StatePrivilegedExec {
		if _, err := s.run(cmdExit, 3*time.Second); err != nil {
			slog.Debug("unwind exit failed", slog.String("error", err.Error()))
		}
	}
	if s.state == prompt.StateExec {
		// Final logout; the device closes its side, nothing to read back.
		if err := s.write([]byte(cmdExit + "\r")); err != nil {
			slog.Debug("final exit failed", slog.String("error", err.Error()))
		}
		s.clock.Sleep(500 * time.Millisecond)
	}
}

// sendAndRead writes bytes, lets the line settle, then reads until a prompt
// or timeout. The session's state, prompt, and raw buffer are updated by the
// read regardless of outcome.
func (s *Session) sendAndRead(data []byte, timeout time.Duration, expected []prompt.SessionState) error {
	if !s.transport.IsOpen() {
		return ErrNotConnected
	}
	if err := s.write(data); err != nil {
		return err
	}
	s.clock.Sleep(s.settleDelay)
	s.readUntilPrompt(timeout, expected)
	return nil
}

func (s *Session) write(data []byte) error {
	if _, err := s.transport.Write(data); err != nil {
		return fmt.Errorf("transport write: %w", err)
	}
	if err := s.transport.Flush(); err != nil {
		return fmt.Errorf("transport flush: %w", err)
	}
	return nil
}

// cleanOutput strips the command echo and the trailing prompt from a raw
// response. Stripping is idempotent: applying it to already-clean output
// changes nothing.
func (s *Session) cleanOutput(raw, command string) string {
	lines := strings.Split(normalizeNewlines(raw), "\n")

	// Drop the echo if the first non-blank line repeats the command.
	first := 0
	for first < len(lines) && strings.TrimSpace(lines[first]) == "" {
		first++
	}
	if first < len(lines) && strings.TrimSpace(lines[first]) == strings.TrimSpace(command) {
		lines = lines[first+1:]
	}

	out := strings.TrimSpace(strings.Join(lines, "\n"))

	if s.promptText != "" && strings.HasSuffix(out, s.promptText) {
		out = strings.TrimSpace(strings.TrimSuffix(out, s.promptText))
	}

	// Partial echo artifacts can leave the bare command as the only
	// content; that means there was no real output.
	if out == strings.TrimSpace(command) {
		out = ""
	}
	return out
}

// stripPaginationMarker removes the continuation marker from collected
// output, wherever the device left it.
func stripPaginationMarker(out string) string {
	if strings.HasSuffix(out, paginationMarker) {
		return strings.TrimSpace(strings.TrimSuffix(out, paginationMarker))
	}
	if strings.Contains(out, paginationMarker) {
		return strings.TrimSpace(strings.ReplaceAll(out, paginationMarker, ""))
	}
	return out
}
