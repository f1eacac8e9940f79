package rules

import (
	"errors"
	"fmt"

	"github.com/jmylchreest/smelly/pkg/findings"
	"github.com/jmylchreest/smelly/pkg/source"
)

// Engine applies a fixed, ordered rule set to source units. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	rules []*Rule
}

// Rules returns the engine's rules in application order.
func (e *Engine) Rules() []*Rule {
	return append([]*Rule(nil), e.rules...)
}

// RuleIDs returns the ids of the engine's rules.
func (e *Engine) RuleIDs() []string {
	ids := make([]string, len(e.rules))
	for i, rule := range e.rules {
		ids[i] = rule.ID
	}
	return ids
}

// ApplyAll runs every rule over unit and returns the findings in discovery
// order: rule by rule, and within a rule the unit matcher first, then each
// declaration in source order.
//
// A rule that fails is isolated: its failure becomes a single INFO finding
// with the reserved id rule-internal-error and the remaining rules still
// run.
func (e *Engine) ApplyAll(unit *source.SourceUnit) []*findings.Finding {
	var out []*findings.Finding
	for _, rule := range e.rules {
		if !rule.AppliesTo(unit.Language) {
			continue
		}
		out = append(out, e.apply(rule, unit)...)
	}
	return out
}

func (e *Engine) apply(rule *Rule, unit *source.SourceUnit) []*findings.Finding {
	var out []*findings.Finding

	if rule.MatchUnit != nil {
		matches, err := guard(rule.ID, func() ([]Match, error) { return rule.MatchUnit(unit) })
		if err != nil {
			return append(out, internalError(unit, 1, "", err))
		}
		out = append(out, e.toFindings(rule, unit, nil, matches)...)
	}

	if rule.MatchDecl != nil {
		for _, decl := range unit.Declarations {
			matches, err := guard(rule.ID, func() ([]Match, error) { return rule.MatchDecl(unit, decl) })
			if err != nil {
				return append(out, internalError(unit, decl.Line, decl.Name, err))
			}
			out = append(out, e.toFindings(rule, unit, decl, matches)...)
		}
	}
	return out
}

func (e *Engine) toFindings(rule *Rule, unit *source.SourceUnit, decl *source.Declaration, matches []Match) []*findings.Finding {
	out := make([]*findings.Finding, 0, len(matches))
	for _, m := range matches {
		line, name := m.Line, m.Decl
		if decl != nil {
			if line == 0 {
				line = decl.Line
			}
			if name == "" {
				name = decl.Name
			}
		}
		out = append(out, &findings.Finding{
			Rule:        rule.ID,
			Severity:    rule.Severity,
			FilePath:    unit.Path,
			Line:        unit.ValidLine(line),
			Declaration: name,
			Message:     m.Message,
			Language:    unit.Language,
			Metadata:    m.Metadata,
		})
	}
	return out
}

// guard runs a matcher, converting errors and panics into *RuleError.
func guard(id string, fn func() ([]Match, error)) (matches []Match, err error) {
	defer func() {
		if r := recover(); r != nil {
			matches = nil
			err = &RuleError{Rule: id, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	matches, err = fn()
	if err != nil {
		return nil, &RuleError{Rule: id, Err: err}
	}
	return matches, nil
}

func internalError(unit *source.SourceUnit, line int, decl string, err error) *findings.Finding {
	f := &findings.Finding{
		Rule:        findings.RuleInternalError,
		Severity:    findings.SevInfo,
		FilePath:    unit.Path,
		Line:        unit.ValidLine(line),
		Declaration: decl,
		Message:     err.Error(),
		Language:    unit.Language,
	}
	var re *RuleError
	if errors.As(err, &re) {
		f.Metadata = map[string]string{"rule": re.Rule}
	}
	return f
}
