package rules

import (
	"fmt"
	"strconv"

	"github.com/jmylchreest/smelly/pkg/findings"
	"github.com/jmylchreest/smelly/pkg/source"
)

func tooManyParametersRule(max int) Rule {
	return Rule{
		ID:          RuleTooManyParameters,
		Description: fmt.Sprintf("Method with more than %d parameters", max),
		Severity:    findings.SevWarn,
		Languages:   jvm,
		MatchDecl: func(u *source.SourceUnit, d *source.Declaration) ([]Match, error) {
			if d.Kind != source.KindMethod || len(d.Params) <= max {
				return nil, nil
			}
			return []Match{{
				Message: fmt.Sprintf("method %q has %d parameters (max %d)", d.Name, len(d.Params), max),
				Metadata: map[string]string{
					"params": strconv.Itoa(len(d.Params)),
					"max":    strconv.Itoa(max),
				},
			}}, nil
		},
	}
}

func emptyCatchRule() Rule {
	return Rule{
		ID:          RuleEmptyCatch,
		Description: "Catch block with no statements",
		Severity:    findings.SevWarn,
		Languages:   jvm,
		MatchDecl: func(u *source.SourceUnit, d *source.Declaration) ([]Match, error) {
			if d.Kind != source.KindMethod {
				return nil, nil
			}
			var out []Match
			for _, b := range source.FindBlocks(methodTokens(d), "catch") {
				if source.CountStatements(b.Body, u.Language) > 0 {
					continue
				}
				out = append(out, Match{
					Line:    b.Keyword.Line,
					Message: fmt.Sprintf("catch %s swallows the exception", source.JoinTokens(b.Header)),
				})
			}
			return out, nil
		},
	}
}

// objectMethods maps the overridable java.lang.Object methods to their
// parameter counts.
var objectMethods = map[string]int{
	"toString": 0,
	"hashCode": 0,
	"clone":    0,
	"finalize": 0,
	"equals":   1,
}

func missingOverrideRule() Rule {
	return Rule{
		ID:          RuleMissingOverride,
		Description: "Object method override without @Override",
		Severity:    findings.SevInfo,
		Languages:   javaOnly,
		MatchDecl: func(u *source.SourceUnit, d *source.Declaration) ([]Match, error) {
			if d.Kind != source.KindMethod || d.Owner == "" || d.Has("static") {
				return nil, nil
			}
			n, ok := objectMethods[d.Name]
			if !ok || len(d.Params) != n || d.Annotated("Override") {
				return nil, nil
			}
			return []Match{{
				Message: fmt.Sprintf("method %q overrides java.lang.Object but lacks @Override", d.Name),
			}}, nil
		},
	}
}

func deprecatedUsageRule() Rule {
	return Rule{
		ID:          RuleDeprecatedUsage,
		Description: "Call to a method marked @Deprecated in the same file",
		Severity:    findings.SevInfo,
		Languages:   jvm,
		MatchUnit:   matchDeprecatedCalls,
	}
}

func matchDeprecatedCalls(u *source.SourceUnit) ([]Match, error) {
	deprecated := make(map[string]bool)
	for _, m := range u.Kind(source.KindMethod) {
		if m.Annotated("Deprecated") {
			deprecated[m.Name] = true
		}
	}
	if len(deprecated) == 0 {
		return nil, nil
	}

	var out []Match
	for _, caller := range u.Kind(source.KindMethod) {
		if caller.Annotated("Deprecated") {
			continue
		}
		toks := methodTokens(caller)
		for i, t := range toks {
			if t.Kind != source.TokIdent || !deprecated[t.Text] {
				continue
			}
			if i+1 >= len(toks) || !toks[i+1].Is("(") {
				continue
			}
			out = append(out, Match{
				Line:     t.Line,
				Decl:     caller.Name,
				Message:  fmt.Sprintf("call to deprecated method %s()", t.Text),
				Metadata: map[string]string{"target": t.Text},
			})
		}
	}
	return out, nil
}

func unsafeUnwrapRule() Rule {
	return Rule{
		ID:          RuleUnsafeUnwrap,
		Description: "Not-null assertion (!!) that can throw at runtime",
		Severity:    findings.SevWarn,
		Languages:   kotlinOnly,
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
			for i, t := range toks {
				if !t.Is("!!") {
					continue
				}
				operand := "expression"
				if i > 0 {
					operand = toks[i-1].Text
				}
				out = append(out, Match{
					Line:    t.Line,
					Message: fmt.Sprintf("not-null assertion on %s; handle the null case explicitly", operand),
				})
			}
			return out, nil
		},
	}
}
