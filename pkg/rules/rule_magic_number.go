package rules

import (
	"fmt"

	"github.com/jmylchreest/smelly/pkg/findings"
	"github.com/jmylchreest/smelly/pkg/source"
)

func magicNumberRule() Rule {
	return Rule{
		ID:          RuleMagicNumber,
		Description: "Numeric literal other than 0 or 1 outside a named constant",
		Severity:    findings.SevInfo,
		Languages:   jvm,
		MatchDecl:   matchMagicNumbers,
	}
}

func matchMagicNumbers(u *source.SourceUnit, d *source.Declaration) ([]Match, error) {
	var toks []source.Token
	switch d.Kind {
	case source.KindMethod:
		toks = methodTokens(d)
	case source.KindField:
		if u.IsConstant(d) {
			return nil, nil
		}
		toks = d.Init
	default:
		return nil, nil
	}

	skip := constantLocalOffsets(u, d)
	var out []Match
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		// Annotation arguments are compile-time configuration.
		if t.Kind == source.TokAnnotation && i+1 < len(toks) && toks[i+1].Is("(") {
			i = source.MatchClose(toks, i+1)
			continue
		}
		if t.Kind != source.TokNumber || skip[t.Offset] {
			continue
		}
		if v, ok := numericValue(t.Text); ok && (v == 0 || v == 1) {
			continue
		}
		lit := t.Text
		if unaryMinus(toks, i) {
			lit = "-" + lit
		}
		out = append(out, Match{
			Line:     t.Line,
			Message:  fmt.Sprintf("magic number %s; extract a named constant", lit),
			Metadata: map[string]string{"value": lit},
		})
	}
	return out, nil
}

// constantLocalOffsets returns the token offsets of initializers belonging to
// constant locals of method m.
func constantLocalOffsets(u *source.SourceUnit, m *source.Declaration) map[int]bool {
	if m.Kind != source.KindMethod {
		return nil
	}
	var skip map[int]bool
	for _, d := range u.Kind(source.KindLocal) {
		if d.Owner != m.Name || !u.IsConstant(d) {
			continue
		}
		if skip == nil {
			skip = make(map[int]bool)
		}
		for _, t := range d.Init {
			skip[t.Offset] = true
		}
	}
	return skip
}
