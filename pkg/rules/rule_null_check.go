package rules

import (
	"fmt"

	"github.com/jmylchreest/smelly/pkg/findings"
	"github.com/jmylchreest/smelly/pkg/source"
)

func redundantNullCheckRule() Rule {
	return Rule{
		ID:          RuleRedundantNullCheck,
		Description: "Null comparison repeated within one && chain",
		Severity:    findings.SevWarn,
		Languages:   jvm,
		MatchDecl: func(u *source.SourceUnit, d *source.Declaration) ([]Match, error) {
			var toks []source.Token
			switch d.Kind {
			case source.KindMethod:
				toks = methodTokens(d)
			case source.KindField:
				toks = d.Init
			default:
				return nil, nil
			}
			var out []Match
			for _, dup := range duplicateNullChecks(toks, u.Language) {
				out = append(out, Match{
					Line:     dup.line,
					Message:  fmt.Sprintf("redundant null check: %s is already tested in this condition", dup.check),
					Metadata: map[string]string{"check": dup.check},
				})
			}
			return out, nil
		},
	}
}

type nullCheck struct {
	check string
	line  int
}

// chainBreaks end an && chain: a null test on either side of one of these
// is not implied by the other.
var chainBreaks = map[string]bool{
	";": true, ",": true, "||": true, "?": true, ":": true, "?:": true,
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"&=": true, "|=": true, "^=": true, "<<=": true, ">>=": true, ">>>=": true,
	"->": true, "return": true, "throw": true,
}

// duplicateNullChecks scans toks for && chains that test the same operand
// against null more than once. Bracket groups are scanned as chains of their
// own; a brace block also breaks the enclosing chain.
func duplicateNullChecks(toks []source.Token, lang string) []nullCheck {
	var out []nullCheck
	seen := make(map[string]bool)
	reported := make(map[string]bool)
	start := 0

	endOperand := func(end int) {
		if key, ok := nullCheckKey(toks[start:end]); ok {
			if seen[key] && !reported[key] {
				out = append(out, nullCheck{check: key, line: toks[start].Line})
				reported[key] = true
			}
			seen[key] = true
		}
	}
	resetChain := func() {
		clear(seen)
		clear(reported)
	}

	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if i > start && lang == source.LangKotlin && t.NewlineBefore && !continuesLine(toks[i-1], t) {
			endOperand(i)
			resetChain()
			start = i
		}
		switch {
		case t.Is("(") || t.Is("["):
			end := source.MatchClose(toks, i)
			out = append(out, duplicateNullChecks(toks[i+1:end], lang)...)
			i = end
		case t.Is("{"):
			endOperand(i)
			resetChain()
			end := source.MatchClose(toks, i)
			out = append(out, duplicateNullChecks(toks[i+1:end], lang)...)
			i = end
			start = i + 1
		case t.Is("&&"):
			endOperand(i)
			start = i + 1
		case t.Is("}") || chainBreaks[t.Text] && (t.Kind == source.TokOp || t.Kind == source.TokIdent):
			endOperand(i)
			resetChain()
			start = i + 1
		}
	}
	if start < len(toks) {
		endOperand(len(toks))
	}
	return out
}

// continuesLine reports whether a Kotlin line break between prev and next
// keeps the expression going.
func continuesLine(prev, next source.Token) bool {
	return next.Is("&&") || next.Is(".") || next.Is("?.") || next.Is(")") ||
		prev.Kind == source.TokOp && !prev.Is(")") && !prev.Is("]") && !prev.Is("}")
}

// nullCheckKey normalises an operand of the form "E != null", "null != E",
// "E == null" or "null == E" into a comparable key.
func nullCheckKey(operand []source.Token) (string, bool) {
	operand = stripParens(operand)
	if len(operand) < 3 {
		return "", false
	}

	cmp := -1
	depth := 0
	for i, t := range operand {
		switch {
		case t.Is("(") || t.Is("[") || t.Is("{"):
			depth++
		case t.Is(")") || t.Is("]") || t.Is("}"):
			depth--
		case depth == 0 && (t.Is("!=") || t.Is("==") || t.Is("!==") || t.Is("===")):
			if cmp >= 0 {
				return "", false
			}
			cmp = i
		}
	}
	if cmp <= 0 || cmp == len(operand)-1 {
		return "", false
	}

	left, right := operand[:cmp], operand[cmp+1:]
	var subject []source.Token
	switch {
	case len(right) == 1 && right[0].Is("null"):
		subject = left
	case len(left) == 1 && left[0].Is("null"):
		subject = right
	default:
		return "", false
	}
	subject = stripParens(subject)
	if len(subject) == 0 {
		return "", false
	}
	op := operand[cmp].Text
	switch op {
	case "!==":
		op = "!="
	case "===":
		op = "=="
	}
	return source.JoinTokens(subject) + " " + op + " null", true
}

// stripParens removes parentheses wrapping the whole of toks.
func stripParens(toks []source.Token) []source.Token {
	for len(toks) >= 2 && toks[0].Is("(") && source.MatchClose(toks, 0) == len(toks)-1 {
		toks = toks[1 : len(toks)-1]
	}
	return toks
}
