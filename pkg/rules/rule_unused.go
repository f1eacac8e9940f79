package rules

import (
	"fmt"

	"github.com/jmylchreest/smelly/pkg/findings"
	"github.com/jmylchreest/smelly/pkg/source"
)

// serializationHooks are private methods the JVM calls reflectively.
var serializationHooks = map[string]bool{
	"writeObject":      true,
	"readObject":       true,
	"readObjectNoData": true,
	"readResolve":      true,
	"writeReplace":     true,
}

func unusedParameterRule() Rule {
	return Rule{
		ID:          RuleUnusedParameter,
		Description: "Method parameter that the body never reads",
		Severity:    findings.SevWarn,
		Languages:   jvm,
		MatchDecl: func(u *source.SourceUnit, d *source.Declaration) ([]Match, error) {
			if d.Kind != source.KindMethod || len(d.Params) == 0 || !implemented(d) {
				return nil, nil
			}
			// The extent holds each parameter's own declaration too.
			toks := u.Extent(d)
			var out []Match
			for _, p := range d.Params {
				if p.Name == "_" || source.CountReferences(toks, u.Language, p.Name, -1) > 1 {
					continue
				}
				out = append(out, Match{
					Message:  fmt.Sprintf("parameter %q of method %q is never used", p.Name, d.Name),
					Metadata: map[string]string{"parameter": p.Name},
				})
			}
			return out, nil
		},
	}
}

// implemented reports whether d has a body of its own whose parameters are
// free to change: abstract, native and overriding methods are bound by
// another signature.
func implemented(d *source.Declaration) bool {
	if !d.HasBody && len(d.Init) == 0 {
		return false
	}
	return !d.Has("abstract") && !d.Has("native") && !d.Has("override") && !d.Annotated("Override")
}

func unusedPrivateMethodRule() Rule {
	return Rule{
		ID:          RuleUnusedPrivateMethod,
		Description: "Private method that is never called",
		Severity:    findings.SevWarn,
		Languages:   jvm,
		MatchDecl: func(u *source.SourceUnit, d *source.Declaration) ([]Match, error) {
			if d.Kind != source.KindMethod || !d.Has("private") || d.Name == d.Owner {
				return nil, nil
			}
			if u.Language == source.LangJava && serializationHooks[d.Name] {
				return nil, nil
			}
			if u.References(d.Name, d.NameOffset) > 0 {
				return nil, nil
			}
			return []Match{{Message: fmt.Sprintf("private method %q is never called", d.Name)}}, nil
		},
	}
}
