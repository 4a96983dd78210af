package plan

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Runner is the slice of session behavior the executor needs.
type Runner interface {
	RunTimeout(command string, timeout time.Duration) (string, error)
}

// CommandError reports a command the device rejected mid-plan. Outputs holds
// everything collected before the failure so the caller can show partial
// progress.
type CommandError struct {
	Command string
	Line    string
	Outputs []string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("device rejected %q: %s", e.Command, e.Line)
}

// Result carries the outputs of an executed plan, one entry per command,
// plus the verify command's output when the plan had one.
type Result struct {
	Outputs      []string
	VerifyOutput string
}

// Executor runs plans against a device session, aborting an action plan at
// the first command the device rejects.
type Executor struct {
	runner         Runner
	commandTimeout time.Duration
	queryTimeout   time.Duration
}

// NewExecutor creates an executor with a 10s timeout for action commands and
// 15s for queries and verification, whose output can be long.
func NewExecutor(runner Runner) *Executor {
	return &Executor{
		runner:         runner,
		commandTimeout: 10 * time.Second,
		queryTimeout:   15 * time.Second,
	}
}

// Execute runs the plan's commands in order. A device error response (a
// leading '%' line) aborts the remaining commands and is returned as a
// *CommandError. Query plans and verify commands get the longer timeout.
func (e *Executor) Execute(p Plan) (Result, error) {
	var res Result

	timeout := e.commandTimeout
	if p.Kind == KindInformationQuery {
		timeout = e.queryTimeout
	}

	for _, cmd := range p.Commands {
		slog.Debug("executing plan command", slog.String("command", cmd))
		out, err := e.runner.RunTimeout(cmd, timeout)
		if err != nil {
			return res, fmt.Errorf("run %q: %w", cmd, err)
		}
		res.Outputs = append(res.Outputs, out)
		if line := deviceErrorLine(out); line != "" {
			slog.Warn("device rejected command",
				slog.String("command", cmd),
				slog.String("response", line),
			)
			return res, &CommandError{Command: cmd, Line: line, Outputs: res.Outputs}
		}
	}

	if p.Kind == KindAction && p.VerifyCommand != "" {
		out, err := e.runner.RunTimeout(p.VerifyCommand, e.queryTimeout)
		if err != nil {
			return res, fmt.Errorf("verify %q: %w", p.VerifyCommand, err)
		}
		res.VerifyOutput = out
	}
	return res, nil
}

// deviceErrorLine returns the first non-blank output line when it is a
// device error response ('%'-prefixed), empty otherwise.
func deviceErrorLine(out string) string {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "%") {
			return line
		}
		return ""
	}
	return ""
}
