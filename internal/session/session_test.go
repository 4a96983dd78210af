package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/netopsai/switch-console/internal/prompt"
	"github.com/netopsai/switch-console/internal/testing/fakes/fakeclock"
	"github.com/netopsai/switch-console/internal/testing/fakes/faketransport"
)

func newTestSession(ft *faketransport.Transport) *Session {
	clock := fakeclock.New(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return New(ft, Options{Clock: clock})
}

// connectAs scripts the given prompt as the connect banner and connects.
func connectAs(t *testing.T, ft *faketransport.Transport, banner string) *Session {
	t.Helper()
	ft.AddResponse(banner)
	s := newTestSession(ft)
	if err := s.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return s
}

func TestSession_Connect(t *testing.T) {
	ft := faketransport.New()
	s := connectAs(t, ft, "\r\nSwitch#\r\n")

	if got := s.State(); got != prompt.StatePrivilegedExec {
		t.Errorf("State() = %s, want %s", got, prompt.StatePrivilegedExec)
	}
	if got := s.Prompt(); got != "Switch#" {
		t.Errorf("Prompt() = %q, want %q", got, "Switch#")
	}
	writes := ft.Writes()
	if len(writes) != 1 || writes[0] != "\r\n" {
		t.Errorf("writes = %q, want single CRLF", writes)
	}
}

func TestSession_Connect_RetriesAfterSilence(t *testing.T) {
	ft := faketransport.New().
		AddResponse("").         // nothing after the CRLF
		AddResponse("Switch>\r") // bare CR wakes the device
	s := newTestSession(ft)

	if err := s.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if got := s.State(); got != prompt.StateExec {
		t.Errorf("State() = %s, want %s", got, prompt.StateExec)
	}
	writes := ft.Writes()
	if len(writes) != 2 || writes[0] != "\r\n" || writes[1] != "\r" {
		t.Errorf("writes = %q, want CRLF then CR", writes)
	}
}

func TestSession_Connect_NoPrompt(t *testing.T) {
	ft := faketransport.New().AddResponses("", "")
	s := newTestSession(ft)

	err := s.Connect()
	if !errors.Is(err, ErrNoPrompt) {
		t.Fatalf("Connect() error = %v, want ErrNoPrompt", err)
	}
	if ft.IsOpen() {
		t.Error("transport left open after failed connect")
	}
	if got := s.State(); got != prompt.StateDisconnected {
		t.Errorf("State() = %s, want %s", got, prompt.StateDisconnected)
	}
}

func TestSession_Connect_AlreadyOpen(t *testing.T) {
	ft := faketransport.New()
	if err := ft.Open(); err != nil {
		t.Fatal(err)
	}
	s := newTestSession(ft)

	if err := s.Connect(); err != nil {
		t.Errorf("Connect() on open transport = %v, want nil", err)
	}
	if ft.WriteCount() != 0 {
		t.Errorf("Connect() on open transport wrote %d times, want 0", ft.WriteCount())
	}
}

func TestSession_Run_StripsEchoAndPrompt(t *testing.T) {
	ft := faketransport.New()
	s := connectAs(t, ft, "Switch#")

	ft.AddResponse("show vlan brief\r\nVLAN Name   Status\r\n1    default active\r\nSwitch#")
	out, err := s.Run("show vlan brief")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := "VLAN Name   Status\n1    default active"
	if out != want {
		t.Errorf("Run() = %q, want %q", out, want)
	}
	if got := ft.Writes()[1]; got != "show vlan brief\r" {
		t.Errorf("command written as %q, want CR-terminated", got)
	}
}

func TestSession_Run_EchoOnlyOutput(t *testing.T) {
	ft := faketransport.New()
	s := connectAs(t, ft, "Switch#")

	// Echo artifact leaves the command itself as the only content.
	ft.AddResponse("show clock\r\nshow clock\r\nSwitch#")
	out, err := s.Run("show clock")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out != "" {
		t.Errorf("Run() = %q, want empty for echo-only output", out)
	}
}

func TestSession_Run_EmptyCommand(t *testing.T) {
	ft := faketransport.New()
	s := connectAs(t, ft, "Switch#")
	before := ft.WriteCount()

	out, err := s.Run("   ")
	if err != nil || out != "" {
		t.Errorf("Run(blank) = (%q, %v), want (\"\", nil)", out, err)
	}
	if ft.WriteCount() != before {
		t.Error("blank command reached the transport")
	}
}

func TestSession_Run_NotConnected(t *testing.T) {
	s := newTestSession(faketransport.New())
	if _, err := s.Run("show version"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Run() error = %v, want ErrNotConnected", err)
	}
}

func TestSession_Run_Pagination(t *testing.T) {
	ft := faketransport.New()
	s := connectAs(t, ft, "Switch#")

	ft.AddResponses(
		"show running-config\r\nline one\r\nline two\r\n --More-- ",
		"line three\r\n --More-- ",
		"line four\r\nSwitch#",
	)
	out, err := s.Run("show running-config")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := "line one\nline two\nline three\nline four"
	if out != want {
		t.Errorf("Run() = %q, want %q", out, want)
	}

	writes := ft.Writes()
	var continuations int
	for _, w := range writes {
		if w == " " {
			continuations++
		}
	}
	if continuations != 2 {
		t.Errorf("sent %d continuation spaces, want 2 (writes %q)", continuations, writes)
	}
	if strings.Contains(out, paginationMarker) {
		t.Errorf("output still contains %q", paginationMarker)
	}
}

func TestSession_Run_Timeout(t *testing.T) {
	ft := faketransport.New()
	s := connectAs(t, ft, "Switch#")

	ft.AddResponse("show tech\r\npartial output no prompt")
	if _, err := s.Run("show tech"); err != nil {
		t.Fatalf("Run() after timeout = %v, want nil (timeout is a state, not an error)", err)
	}
	if got := s.State(); got != prompt.StateUnknownTimeout {
		t.Errorf("State() = %s, want %s", got, prompt.StateUnknownTimeout)
	}
	if got := s.Prompt(); got != "partial output no prompt" {
		t.Errorf("Prompt() = %q, want last non-empty line", got)
	}
}

func TestSession_Run_TimeoutNoOutput(t *testing.T) {
	ft := faketransport.New()
	s := connectAs(t, ft, "Switch#")

	ft.AddResponse("")
	if _, err := s.Run("show tech"); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if got := s.Prompt(); got != timeoutSentinel {
		t.Errorf("Prompt() = %q, want %q", got, timeoutSentinel)
	}
	if got := s.LastRaw(); got != "" {
		t.Errorf("LastRaw() = %q, want empty", got)
	}
}

func TestSession_RefreshState(t *testing.T) {
	ft := faketransport.New()
	s := connectAs(t, ft, "Switch#")

	ft.AddResponse("\r\nSwitch(config)#")
	state, promptText := s.RefreshState()
	if state != prompt.StateConfigTerminal {
		t.Errorf("state = %s, want %s", state, prompt.StateConfigTerminal)
	}
	if promptText != "Switch(config)#" {
		t.Errorf("prompt = %q, want %q", promptText, "Switch(config)#")
	}
	writes := ft.Writes()
	if got := writes[len(writes)-1]; got != "\r" {
		t.Errorf("refresh wrote %q, want bare CR", got)
	}
}

func TestSession_Login_FullSequence(t *testing.T) {
	ft := faketransport.New()
	s := connectAs(t, ft, "\r\nUsername: ")

	ft.AddResponses(
		"admin\r\nPassword: ",
		"\r\nSwitch>",
		"enable\r\nPassword: ",
		"\r\nSwitch#",
		"terminal length 0\r\nSwitch#",
	)
	if err := s.Login("admin", "userpass", "enablepass"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if !s.LoggedIn() || !s.EnableActive() {
		t.Errorf("LoggedIn=%v EnableActive=%v, want both true", s.LoggedIn(), s.EnableActive())
	}
	if got := s.State(); got != prompt.StatePrivilegedExec {
		t.Errorf("State() = %s, want %s", got, prompt.StatePrivilegedExec)
	}

	want := []string{"\r\n", "admin\r", "userpass\r", "enable\r", "enablepass\r", "terminal length 0\r"}
	got := ft.Writes()
	if len(got) != len(want) {
		t.Fatalf("writes = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("write %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSession_Login_InvalidCredentials(t *testing.T) {
	ft := faketransport.New()
	s := connectAs(t, ft, "Username: ")

	ft.AddResponses(
		"admin\r\nPassword: ",
		"\r\nLogin invalid\r\n\r\nUsername: ",
	)
	err := s.Login("admin", "wrong", "")
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("Login() error = %v, want ErrAuthenticationFailed", err)
	}
	if s.LoggedIn() {
		t.Error("LoggedIn() = true after rejected credentials")
	}
}

func TestSession_Login_EnableSecretRejected(t *testing.T) {
	ft := faketransport.New()
	s := connectAs(t, ft, "Switch>")

	ft.AddResponses(
		"enable\r\nPassword: ",
		"\r\nSwitch>", // device bounced back to user mode
	)
	err := s.Login("admin", "userpass", "badsecret")
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("Login() error = %v, want ErrAuthenticationFailed", err)
	}
	if s.EnableActive() {
		t.Error("EnableActive() = true after rejected enable secret")
	}
}

func TestSession_Login_AlreadyPrivileged(t *testing.T) {
	ft := faketransport.New()
	s := connectAs(t, ft, "Switch#")

	// Paging is already off, so no terminal settings are touched.
	ft.AddResponse("show terminal\r\nLine 0, Location: \r\nLength: 0 lines, Width: 80 columns\r\nSwitch#")
	if err := s.Login("admin", "pw", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	for _, w := range ft.Writes() {
		if strings.HasPrefix(w, cmdDisablePaging) {
			t.Errorf("paging command %q sent despite %q in show terminal", w, pagingDisabledMarker)
		}
	}
	if !s.EnableActive() {
		t.Error("EnableActive() = false")
	}
}

func TestSession_Login_AlreadyPrivilegedPagingOn(t *testing.T) {
	ft := faketransport.New()
	s := connectAs(t, ft, "Switch#")

	ft.AddResponses(
		"show terminal\r\nLength: 24 lines, Width: 80 columns\r\nSwitch#",
		"terminal length 0\r\nSwitch#",
	)
	if err := s.Login("admin", "pw", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	var sent bool
	for _, w := range ft.Writes() {
		if w == cmdDisablePaging+"\r" {
			sent = true
		}
	}
	if !sent {
		t.Error("paging disable not sent while the terminal still paginates")
	}
}

func TestSession_Login_NotConnected(t *testing.T) {
	s := newTestSession(faketransport.New())
	if err := s.Login("admin", "pw", ""); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Login() error = %v, want ErrNotConnected", err)
	}
}

func TestSession_Disconnect_UnwindsModes(t *testing.T) {
	ft := faketransport.New()
	s := connectAs(t, ft, "Switch(config-if)#")

	ft.AddResponses(
		"exit\r\nSwitch(config)#",
		"end\r\nSwitch#",
		"exit\r\nSwitch>",
	)
	if err := s.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}

	writes := ft.Writes()
	want := []string{"\r\n", "exit\r", "end\r", "exit\r", "exit\r"}
	if len(writes) != len(want) {
		t.Fatalf("writes = %q, want %q", writes, want)
	}
	for i := range want {
		if writes[i] != want[i] {
			t.Errorf("write %d = %q, want %q", i, writes[i], want[i])
		}
	}
	if ft.IsOpen() {
		t.Error("transport still open after Disconnect")
	}
	if got := s.State(); got != prompt.StateDisconnected {
		t.Errorf("State() = %s, want %s", got, prompt.StateDisconnected)
	}
	if s.LoggedIn() || s.EnableActive() {
		t.Error("login flags survive Disconnect")
	}
}

func TestSession_Disconnect_Idempotent(t *testing.T) {
	s := newTestSession(faketransport.New())
	if err := s.Disconnect(); err != nil {
		t.Errorf("Disconnect() on closed session = %v, want nil", err)
	}
}

func TestCleanOutputIdempotent(t *testing.T) {
	s := newTestSession(faketransport.New())
	s.promptText = "Switch#"

	raw := "show version\r\nCisco IOS Software\r\nSwitch#"
	once := s.cleanOutput(raw, "show version")
	twice := s.cleanOutput(once, "show version")
	if once != twice {
		t.Errorf("cleanOutput not idempotent: %q then %q", once, twice)
	}
	if once != "Cisco IOS Software" {
		t.Errorf("cleanOutput = %q, want %q", once, "Cisco IOS Software")
	}
}

func TestStripPaginationMarker(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trailing", "line one\n --More-- ", "line one"},
		{"inline", "line one\n--More--\nline two", "line one\n\nline two"},
		{"absent", "line one", "line one"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripPaginationMarker(tt.in); got != tt.want {
				t.Errorf("stripPaginationMarker(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
