// Package faketransport provides a scripted Transport implementation for
// testing session logic without a device on the wire.
package faketransport

import (
	"bytes"
	"errors"
	"sync"

	"github.com/netopsai/switch-console/internal/ports"
)

// Transport is a fake console transport. Responses are queued in script
// order; each Write releases the next response into the read buffer, the
// way a device emits output in reaction to input. A queued empty string
// models a device that stays silent after a write.
type Transport struct {
	mu        sync.Mutex
	open      bool
	openErr   error
	writeErr  error
	responses []string
	next      int
	pending   bytes.Buffer
	writes    []string
}

// New creates a fake transport with an empty script.
func New() *Transport {
	return &Transport{}
}

// AddResponse queues the output the device emits in reaction to the next
// unmatched write.
func (t *Transport) AddResponse(data string) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responses = append(t.responses, data)
	return t
}

// AddResponses queues multiple responses in order.
func (t *Transport) AddResponses(responses ...string) *Transport {
	for _, r := range responses {
		t.AddResponse(r)
	}
	return t
}

// FailOpen makes Open return the given error.
func (t *Transport) FailOpen(err error) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.openErr = err
	return t
}

// FailWrites makes subsequent Write calls return the given error.
func (t *Transport) FailWrites(err error) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeErr = err
	return t
}

// Open implements ports.Transport.
func (t *Transport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.openErr != nil {
		return t.openErr
	}
	t.open = true
	return nil
}

// Close implements ports.Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open = false
	return nil
}

// IsOpen implements ports.Transport.
func (t *Transport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// Available implements ports.Transport.
func (t *Transport) Available() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return 0, errors.New("faketransport: not open")
	}
	return t.pending.Len(), nil
}

// Read implements ports.Transport, draining the pending buffer.
func (t *Transport) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return 0, errors.New("faketransport: not open")
	}
	return t.pending.Read(p)
}

// Write implements ports.Transport. The written bytes are recorded and the
// next scripted response becomes readable.
func (t *Transport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return 0, errors.New("faketransport: not open")
	}
	if t.writeErr != nil {
		return 0, t.writeErr
	}
	t.writes = append(t.writes, string(p))
	if t.next < len(t.responses) {
		t.pending.WriteString(t.responses[t.next])
		t.next++
	}
	return len(p), nil
}

// Flush implements ports.Transport.
func (t *Transport) Flush() error {
	return nil
}

// Writes returns every write in order, as strings.
func (t *Transport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.writes))
	copy(out, t.writes)
	return out
}

// WriteCount returns how many Write calls were made.
func (t *Transport) WriteCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.writes)
}

var _ ports.Transport = (*Transport)(nil)
