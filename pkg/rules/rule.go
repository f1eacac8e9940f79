// Package rules holds the smell rule model, the registry that builds an
// immutable rule set, the engine that applies it to parsed source units, and
// the built-in rule catalog.
package rules

import (
	"fmt"

	"github.com/jmylchreest/smelly/pkg/source"
)

// Match is one hit reported by a rule matcher. The engine turns it into a
// finding, filling in the rule id, severity and file.
type Match struct {
	Line     int
	Decl     string // Declaration name; defaults to the matched declaration
	Message  string
	Metadata map[string]string
}

// UnitMatcher inspects a whole source unit.
type UnitMatcher func(unit *source.SourceUnit) ([]Match, error)

// DeclMatcher inspects one declaration of a source unit.
type DeclMatcher func(unit *source.SourceUnit, decl *source.Declaration) ([]Match, error)

// Rule is a named smell detector. Rules are registered once and shared
// read-only; matchers must not mutate their input.
type Rule struct {
	ID          string
	Description string
	Severity    string
	Languages   []string // Empty means every language

	MatchUnit UnitMatcher // Optional
	MatchDecl DeclMatcher // Optional, called for every declaration in order
}

// AppliesTo reports whether the rule runs for the given language.
func (r *Rule) AppliesTo(lang string) bool {
	if len(r.Languages) == 0 {
		return true
	}
	for _, l := range r.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// Info is the serialisable description of a rule.
type Info struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Severity    string   `json:"severity"`
	Languages   []string `json:"languages,omitempty"`
}

// Describe returns the descriptions of rules, in order.
func Describe(rules []*Rule) []Info {
	out := make([]Info, len(rules))
	for i, r := range rules {
		out[i] = Info{ID: r.ID, Description: r.Description, Severity: r.Severity, Languages: r.Languages}
	}
	return out
}

// RuleError is a rule implementation fault: a matcher returned an error or
// panicked.
type RuleError struct {
	Rule string
	Err  error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.Rule, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}
