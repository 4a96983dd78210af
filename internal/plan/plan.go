// Package plan turns operator requests into ordered device command plans
// and executes them against a session.
package plan

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/netopsai/switch-console/internal/prompt"
)

// Kind distinguishes plans that change device state from plans that only
// read it.
type Kind string

const (
	// KindAction changes configuration; commands run in order and a
	// verify command may confirm the result.
	KindAction Kind = "action"
	// KindInformationQuery only reads; its commands produce the answer.
	KindInformationQuery Kind = "information_query"
)

// Plan is an ordered set of device commands answering one request.
type Plan struct {
	Kind            Kind
	Commands        []string
	VerifyCommand   string
	NeedsExtraction bool
}

// DeviceContext describes the device a planner is planning for.
type DeviceContext struct {
	Model  string
	State  prompt.SessionState
	Prompt string
}

// Planner maps an operator request to a command plan. Implementations may
// consult external services; the context bounds that work.
type Planner interface {
	Plan(ctx context.Context, request string, device DeviceContext) (Plan, error)
}

// ErrNoPlan reports a request the planner has no mapping for.
var ErrNoPlan = errors.New("no plan for request")

// StaticPlanner serves plans from a registered table. With passthrough
// enabled, an unregistered request is treated as a literal device command
// and wrapped in an information query.
type StaticPlanner struct {
	mu          sync.RWMutex
	plans       map[string]Plan
	passthrough bool
}

// NewStaticPlanner returns an empty planner with passthrough enabled.
func NewStaticPlanner() *StaticPlanner {
	return &StaticPlanner{
		plans:       make(map[string]Plan),
		passthrough: true,
	}
}

// Register maps a request string to a plan. Matching ignores surrounding
// whitespace and case.
func (p *StaticPlanner) Register(request string, pl Plan) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plans[normalizeRequest(request)] = pl
}

// SetPassthrough controls whether unregistered requests become literal
// command queries instead of errors.
func (p *StaticPlanner) SetPassthrough(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.passthrough = enabled
}

// Plan implements Planner.
func (p *StaticPlanner) Plan(_ context.Context, request string, _ DeviceContext) (Plan, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if pl, ok := p.plans[normalizeRequest(request)]; ok {
		return pl, nil
	}
	if p.passthrough {
		return Plan{
			Kind:     KindInformationQuery,
			Commands: []string{strings.TrimSpace(request)},
		}, nil
	}
	return Plan{}, ErrNoPlan
}

func normalizeRequest(request string) string {
	return strings.ToLower(strings.TrimSpace(request))
}

var _ Planner = (*StaticPlanner)(nil)
