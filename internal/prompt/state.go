// Package prompt classifies device CLI output into shell states by matching
// a prioritized table of prompt patterns against the accumulated buffer.
package prompt

// SessionState is the device's current command context as derived from the
// shape of its most recent prompt. The set of states is closed; callers never
// assert a state directly, they obtain it from classification.
type SessionState string

const (
	StateDisconnected     SessionState = "DISCONNECTED"
	StateExec             SessionState = "EXEC"
	StatePrivilegedExec   SessionState = "PRIVILEGED_EXEC"
	StateConfigTerminal   SessionState = "CONFIG_TERMINAL"
	StateConfigInterface  SessionState = "CONFIG_INTERFACE"
	StateConfigVlan       SessionState = "CONFIG_VLAN"
	StateConfigLine       SessionState = "CONFIG_LINE"
	StateAwaitingUsername SessionState = "AWAITING_USERNAME"
	StateAwaitingPassword SessionState = "AWAITING_PASSWORD"
	StatePagination       SessionState = "PAGINATION"
	StateConfirmYesNo     SessionState = "CONFIRM_YES_NO"
	StateConfirmOnEnter   SessionState = "CONFIRM_ON_ENTER"
	StateConfirmFullYesNo SessionState = "CONFIRM_FULL_YES_NO"
	StateUnknownTimeout   SessionState = "UNKNOWN_TIMEOUT"
)

// IsConfig reports whether the state is global config or any sub-config mode.
func (s SessionState) IsConfig() bool {
	switch s {
	case StateConfigTerminal, StateConfigInterface, StateConfigVlan, StateConfigLine:
		return true
	}
	return false
}

// IsSubConfig reports whether the state is a sub-config mode entered through
// a qualifying command (a specific interface, VLAN, or line).
func (s SessionState) IsSubConfig() bool {
	switch s {
	case StateConfigInterface, StateConfigVlan, StateConfigLine:
		return true
	}
	return false
}

// IsAuthenticated reports whether the state implies a completed login.
func (s SessionState) IsAuthenticated() bool {
	return s == StateExec || s == StatePrivilegedExec || s.IsConfig()
}
