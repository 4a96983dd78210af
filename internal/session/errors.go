package session

import "errors"

// Error taxonomy for session operations. Every failure leaves the session's
// last observed state, prompt, and raw buffer intact for diagnostics; none of
// these are retried internally.
var (
	// ErrNotConnected is returned when an operation requires an open
	// transport and there is none.
	ErrNotConnected = errors.New("session: not connected")

	// ErrNoPrompt is returned by Connect when no recognizable prompt could
	// be elicited from the device.
	ErrNoPrompt = errors.New("session: no recognizable prompt")

	// ErrAuthenticationFailed is returned when the device rejects
	// credentials during login or privilege escalation.
	ErrAuthenticationFailed = errors.New("session: authentication failed")

	// ErrTransitionMismatch is returned when a mode-navigation command did
	// not produce the expected state.
	ErrTransitionMismatch = errors.New("session: transition mismatch")

	// ErrUnsupportedTransition is returned for navigation targets the
	// navigator has no path to, including sub-config targets requested
	// without a qualifying command.
	ErrUnsupportedTransition = errors.New("session: unsupported transition")
)
