package session

import (
	"strings"
	"time"

	"github.com/netopsai/switch-console/internal/prompt"
)

// timeoutSentinel is reported as the prompt text when a read times out with
// an empty buffer.
const timeoutSentinel = "TIMEOUT_NO_OUTPUT"

// readUntilPrompt polls the transport, accumulating decoded text until the
// classifier recognizes a state or the timeout elapses. When expected states
// are supplied they are checked first, then the full rule table; the caller's
// expectation narrows diagnostics but never suppresses a genuine match.
//
// Timeout is a normal, reportable outcome, not a fault: the session lands in
// UnknownTimeout with the trailing non-empty line as its prompt text (or a
// sentinel when nothing arrived) and the accumulated buffer is returned as-is.
func (s *Session) readUntilPrompt(timeout time.Duration, expected []prompt.SessionState) string {
	var buf strings.Builder
	deadline := s.clock.Now().Add(timeout)
	chunk := make([]byte, 4096)

	for {
		if avail, err := s.transport.Available(); err == nil && avail > 0 {
			n, _ := s.transport.Read(chunk)
			if n > 0 {
				// Serial consoles produce line noise; replace anything
				// that is not valid UTF-8 rather than dropping the read.
				buf.WriteString(strings.ToValidUTF8(string(chunk[:n]), "�"))
			}
		}

		text := buf.String()

		if len(expected) > 0 {
			if m := s.classifier.ClassifyExpecting(text, expected); m != nil {
				s.recordMatch(m, text)
				return text
			}
		}
		if m := s.classifier.Classify(text); m != nil {
			s.recordMatch(m, text)
			return text
		}

		if s.clock.Now().After(deadline) {
			s.state = prompt.StateUnknownTimeout
			s.promptText = lastNonEmptyLine(text)
			if s.promptText == "" {
				s.promptText = timeoutSentinel
			}
			s.lastRaw = text
			return text
		}

		s.clock.Sleep(s.readInterval)
	}
}

// recordMatch updates the session's derived state from a classification.
func (s *Session) recordMatch(m *prompt.Match, raw string) {
	s.state = m.State
	s.promptText = m.Prompt
	s.lastRaw = raw
}

// lastNonEmptyLine returns the trailing non-empty line of text, trimmed.
func lastNonEmptyLine(text string) string {
	lines := strings.Split(normalizeNewlines(text), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// normalizeNewlines collapses CRLF and bare CR to LF.
func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
