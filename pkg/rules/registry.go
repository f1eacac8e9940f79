package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jmylchreest/smelly/pkg/findings"
)

// ErrUnknownRule is returned by Registry.Engine for an enabled id that was
// never registered.
var ErrUnknownRule = errors.New("unknown rule")

// Registry collects rules in registration order.
type Registry struct {
	rules []*Rule
	byID  map[string]*Rule
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Rule)}
}

// Register adds a rule. Ids must be unique and must not collide with the
// engine's reserved ids.
func (r *Registry) Register(rule Rule) error {
	if strings.TrimSpace(rule.ID) == "" {
		return errors.New("rule id is empty")
	}
	if findings.Reserved(rule.ID) {
		return fmt.Errorf("rule id %q is reserved", rule.ID)
	}
	if _, dup := r.byID[rule.ID]; dup {
		return fmt.Errorf("rule %q already registered", rule.ID)
	}
	if findings.SeverityRank(rule.Severity) < 0 {
		return fmt.Errorf("rule %q: invalid severity %q", rule.ID, rule.Severity)
	}
	if rule.MatchUnit == nil && rule.MatchDecl == nil {
		return fmt.Errorf("rule %q has no matcher", rule.ID)
	}

	stored := rule
	stored.Languages = append([]string(nil), rule.Languages...)
	r.rules = append(r.rules, &stored)
	r.byID[rule.ID] = &stored
	return nil
}

// Get returns the rule registered under id.
func (r *Registry) Get(id string) (*Rule, bool) {
	rule, ok := r.byID[id]
	return rule, ok
}

// Rules returns the registered rules in registration order.
func (r *Registry) Rules() []*Rule {
	return append([]*Rule(nil), r.rules...)
}

// IDs returns the registered rule ids in registration order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.rules))
	for i, rule := range r.rules {
		ids[i] = rule.ID
	}
	return ids
}

// Engine builds an immutable engine over the enabled rules. An empty enabled
// list selects every rule. Rules always run in registration order, whatever
// the order of enabled.
func (r *Registry) Engine(enabled []string) (*Engine, error) {
	if len(enabled) == 0 {
		return &Engine{rules: r.Rules()}, nil
	}

	want := make(map[string]bool, len(enabled))
	for _, id := range enabled {
		if _, ok := r.byID[id]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRule, id)
		}
		want[id] = true
	}

	e := &Engine{}
	for _, rule := range r.rules {
		if want[rule.ID] {
			e.rules = append(e.rules, rule)
		}
	}
	return e, nil
}
