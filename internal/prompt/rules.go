package prompt

import "regexp"

// Rule pairs a prompt-matching pattern with the state it signals.
type Rule struct {
	Name  string
	Regex *regexp.Regexp
	State SessionState
}

// DefaultRules returns the built-in prompt rules in priority order.
//
// Order is load-bearing: device prompts are textually nested. Every
// "Switch(config-if)#" also ends in "#", so sub-config rules must be tested
// before the general config rule, which must be tested before the privileged
// rule, which must be tested before the exec rule. Reordering this table
// silently misclassifies sub-config prompts as PrivilegedExec.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:  "config_interface",
			Regex: regexp.MustCompile(`[\w.-]+\(config-if\)#\s*$`),
			State: StateConfigInterface,
		},
		{
			Name:  "config_vlan",
			Regex: regexp.MustCompile(`[\w.-]+\(config-vlan\)#\s*$`),
			State: StateConfigVlan,
		},
		{
			Name:  "config_line",
			Regex: regexp.MustCompile(`[\w.-]+\(config-line\)#\s*$`),
			State: StateConfigLine,
		},
		{
			Name:  "config_terminal",
			Regex: regexp.MustCompile(`[\w.-]+\(config\)#\s*$`),
			State: StateConfigTerminal,
		},
		{
			Name:  "privileged_exec",
			Regex: regexp.MustCompile(`[\w.-]+#\s*$`),
			State: StatePrivilegedExec,
		},
		{
			Name:  "exec",
			Regex: regexp.MustCompile(`[\w.-]+>\s*$`),
			State: StateExec,
		},
		{
			Name:  "login_username",
			Regex: regexp.MustCompile(`(?i)Username:\s*$`),
			State: StateAwaitingUsername,
		},
		{
			Name:  "login_password",
			Regex: regexp.MustCompile(`(?i)Password:\s*$`),
			State: StateAwaitingPassword,
		},
		{
			Name:  "pagination",
			Regex: regexp.MustCompile(`--More--\s*$`),
			State: StatePagination,
		},
		{
			Name:  "confirm_yes_no",
			Regex: regexp.MustCompile(`\(yes/no\)\?:?\s*$`),
			State: StateConfirmYesNo,
		},
		{
			Name:  "confirm_on_enter",
			Regex: regexp.MustCompile(`\[confirm\]\s*$`),
			State: StateConfirmOnEnter,
		},
		{
			Name:  "confirm_full_yes_no",
			Regex: regexp.MustCompile(`confirm.*\[yes/no\]:\s*$`),
			State: StateConfirmFullYesNo,
		},
	}
}
