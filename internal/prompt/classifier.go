package prompt

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Match is the result of a successful classification: the recognized state
// and the exact prompt text that matched. Prompt is the literal matched span
// with surrounding whitespace trimmed; it is what the session later strips
// from command output.
type Match struct {
	Rule   Rule
	State  SessionState
	Prompt string
}

// Classifier applies an ordered rule table to a growing output buffer.
// It is a pure matcher: no I/O, no stored buffer.
type Classifier struct {
	rules       []Rule
	customRules []Rule
	mu          sync.RWMutex
}

// NewClassifier returns a classifier loaded with the built-in rule table.
func NewClassifier() *Classifier {
	return &Classifier{
		rules: DefaultRules(),
	}
}

// AddRule appends a custom rule. Custom rules are checked before the
// built-ins, in the order they were added.
func (c *Classifier) AddRule(r Rule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.customRules = append(c.customRules, r)
}

// AddRuleFromConfig compiles and adds a custom rule from configuration.
func (c *Classifier) AddRuleFromConfig(name, regex string, state SessionState) error {
	re, err := regexp.Compile(regex)
	if err != nil {
		return fmt.Errorf("compile prompt rule %s: %w", name, err)
	}
	c.AddRule(Rule{Name: name, Regex: re, State: state})
	return nil
}

// Classify searches the whole buffer for the first rule, in priority order,
// whose pattern matches anywhere. Searching the full buffer rather than only
// the tail is deliberate: intermediate output can contain prompt-shaped text,
// and only the matched span is authoritative. When several rules match, rule
// order decides, not match position.
func (c *Classifier) Classify(buffer string) *Match {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, r := range c.customRules {
		if m := matchRule(buffer, r); m != nil {
			return m
		}
	}
	for _, r := range c.rules {
		if m := matchRule(buffer, r); m != nil {
			return m
		}
	}
	return nil
}

// ClassifyExpecting restricts classification to the given states. It lets a
// caller assert "the session must land in one of these states next", which
// produces sharper diagnostics than the general check. Rule priority within
// the restricted set is preserved.
func (c *Classifier) ClassifyExpecting(buffer string, expected []SessionState) *Match {
	if len(expected) == 0 {
		return c.Classify(buffer)
	}

	allowed := make(map[SessionState]bool, len(expected))
	for _, s := range expected {
		allowed[s] = true
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, r := range c.customRules {
		if !allowed[r.State] {
			continue
		}
		if m := matchRule(buffer, r); m != nil {
			return m
		}
	}
	for _, r := range c.rules {
		if !allowed[r.State] {
			continue
		}
		if m := matchRule(buffer, r); m != nil {
			return m
		}
	}
	return nil
}

func matchRule(buffer string, r Rule) *Match {
	loc := r.Regex.FindStringIndex(buffer)
	if loc == nil {
		return nil
	}
	return &Match{
		Rule:   r,
		State:  r.State,
		Prompt: strings.TrimSpace(buffer[loc[0]:loc[1]]),
	}
}
