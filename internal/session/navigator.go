package session

import (
	"fmt"
	"strings"

	"github.com/netopsai/switch-console/internal/prompt"
)

// maxNavigationDepth bounds the exit-and-retry recursion in ensureState. The
// deepest legitimate walk is sub-config -> config -> privileged -> config ->
// sub-config, so anything past this is a device looping us.
const maxNavigationDepth = 6

// EnsureState navigates the device shell to the target mode, issuing the
// minimum transition commands and verifying the resulting prompt after each
// step. Sub-configuration targets need a qualifying command (for example
// "interface GigabitEthernet0/1" for the interface context); when the
// current prompt already names the same context the call is a no-op apart
// from one state refresh.
func (s *Session) EnsureState(target prompt.SessionState, qualifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureState(target, qualifier, 0)
}

func (s *Session) ensureState(target prompt.SessionState, qualifier string, depth int) error {
	if !s.transport.IsOpen() {
		return ErrNotConnected
	}
	if depth > maxNavigationDepth {
		return fmt.Errorf("%w: gave up reaching %s after %d transitions (stuck at %s, prompt %q)",
			ErrTransitionMismatch, target, depth, s.state, s.promptText)
	}

	switch target {
	case prompt.StatePrivilegedExec, prompt.StateConfigTerminal:
	case prompt.StateConfigInterface, prompt.StateConfigVlan, prompt.StateConfigLine:
		if strings.TrimSpace(qualifier) == "" {
			return fmt.Errorf("%w: %s requires a qualifying command", ErrUnsupportedTransition, target)
		}
	default:
		return fmt.Errorf("%w: cannot navigate to %s", ErrUnsupportedTransition, target)
	}

	// Resync once before deciding anything; the device may have dropped
	// out of a mode on its own (timeouts, reloads).
	if depth == 0 {
		s.refreshState()
	}

	if s.state == target {
		if !target.IsSubConfig() {
			return nil
		}
		token := qualifierToken(qualifier)
		if token == "" || promptHasToken(s.promptText, token) {
			return nil
		}
		// Same mode, different (or unnamed) context: re-enter by name.
		// IOS accepts the qualifying command from inside the sub-mode.
		return s.transition(qualifier, target)
	}

	switch s.state {
	case prompt.StatePrivilegedExec:
		if err := s.transition(cmdConfigTerminal, prompt.StateConfigTerminal); err != nil {
			return err
		}
	case prompt.StateConfigTerminal:
		if target == prompt.StatePrivilegedExec {
			return s.transition(cmdEnd, prompt.StatePrivilegedExec)
		}
		return s.transition(qualifier, target)
	case prompt.StateConfigInterface, prompt.StateConfigVlan, prompt.StateConfigLine:
		if err := s.transition(cmdExit, prompt.StateConfigTerminal); err != nil {
			return err
		}
	case prompt.StateExec:
		// Escalate first; every navigable target sits above privileged
		// mode. A device with an enable secret answers with a password
		// prompt instead, which surfaces as a transition mismatch.
		if err := s.transition(cmdEnable, prompt.StatePrivilegedExec); err != nil {
			return err
		}
		s.enableActive = true
	default:
		return fmt.Errorf("%w: cannot navigate from %s (prompt %q)",
			ErrUnsupportedTransition, s.state, s.promptText)
	}

	return s.ensureState(target, qualifier, depth+1)
}

// transition runs one mode-change command and verifies the classifier landed
// on the expected state.
func (s *Session) transition(command string, expected prompt.SessionState) error {
	if _, err := s.run(command, s.responseTimeout); err != nil {
		return err
	}
	if s.state != expected {
		return fmt.Errorf("%w: %q produced %s (prompt %q), expected %s",
			ErrTransitionMismatch, command, s.state, s.promptText, expected)
	}
	return nil
}

// qualifierToken extracts the context name from a qualifying command: its
// last whitespace-separated field ("interface Gi0/1" -> "Gi0/1").
func qualifierToken(qualifier string) string {
	fields := strings.Fields(qualifier)
	if len(fields) < 2 {
		return ""
	}
	return fields[len(fields)-1]
}

// promptHasToken reports whether the prompt contains the context token as a
// whole word. Token-wise comparison avoids prefix confusion between
// interfaces like Gi0/1 and Gi0/11. Hyphens separate words so contexts
// joined into the prompt ("config-line-console-0") still expose their parts.
func promptHasToken(promptText, token string) bool {
	words := strings.FieldsFunc(promptText, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return false
		case r == '/' || r == '.' || r == '_':
			return false
		}
		return true
	})
	for _, w := range words {
		if strings.EqualFold(w, token) {
			return true
		}
	}
	return false
}
