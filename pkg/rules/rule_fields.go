package rules

import (
	"fmt"
	"strings"

	"github.com/jmylchreest/smelly/pkg/findings"
	"github.com/jmylchreest/smelly/pkg/source"
)

func publicFieldRule() Rule {
	return Rule{
		ID:          RulePublicField,
		Description: "Public mutable field exposed without an accessor pair",
		Severity:    findings.SevWarn,
		Languages:   javaOnly,
		MatchDecl: func(u *source.SourceUnit, d *source.Declaration) ([]Match, error) {
			if d.Kind != source.KindField || !d.Has("public") || u.IsConstant(d) {
				return nil, nil
			}
			if hasAccessorPair(u, d) {
				return nil, nil
			}
			return []Match{{
				Message: fmt.Sprintf("public field %q should be private with a getter and setter", d.Name),
			}}, nil
		},
	}
}

// hasAccessorPair reports whether the field's class declares both a bean
// getter (getX or isX) and a setter (setX).
func hasAccessorPair(u *source.SourceUnit, field *source.Declaration) bool {
	suffix := capitalize(field.Name)
	var getter, setter bool
	for _, m := range u.Members(field.Owner) {
		if m.Kind != source.KindMethod {
			continue
		}
		switch {
		case (m.Name == "get"+suffix || m.Name == "is"+suffix) && len(m.Params) == 0:
			getter = true
		case m.Name == "set"+suffix && len(m.Params) == 1:
			setter = true
		}
	}
	return getter && setter
}

func unusedFieldRule() Rule {
	return Rule{
		ID:          RuleUnusedField,
		Description: "Private field that is never read or written",
		Severity:    findings.SevWarn,
		Languages:   jvm,
		MatchDecl: func(u *source.SourceUnit, d *source.Declaration) ([]Match, error) {
			if d.Kind != source.KindField || !d.Has("private") || d.Name == "serialVersionUID" {
				return nil, nil
			}
			if u.References(d.Name, d.NameOffset) > 0 {
				return nil, nil
			}
			return []Match{{Message: fmt.Sprintf("private field %q is never used", d.Name)}}, nil
		},
	}
}

func unusedLocalRule() Rule {
	return Rule{
		ID:          RuleUnusedLocal,
		Description: "Local variable that is assigned but never used",
		Severity:    findings.SevWarn,
		Languages:   jvm,
		MatchDecl: func(u *source.SourceUnit, d *source.Declaration) ([]Match, error) {
			if d.Kind != source.KindLocal || d.Name == "_" {
				return nil, nil
			}
			if u.References(d.Name, d.NameOffset) > 0 {
				return nil, nil
			}
			return []Match{{
				Message:  fmt.Sprintf("local variable %q is never used", d.Name),
				Metadata: map[string]string{"method": d.Owner},
			}}, nil
		},
	}
}

func namingConventionRule() Rule {
	return Rule{
		ID:          RuleNamingConvention,
		Description: "Method or variable name that is not camelCase",
		Severity:    findings.SevInfo,
		Languages:   jvm,
		MatchDecl: func(u *source.SourceUnit, d *source.Declaration) ([]Match, error) {
			switch d.Kind {
			case source.KindMethod:
			case source.KindField:
				if u.IsConstant(d) {
					return nil, nil
				}
			default:
				return nil, nil
			}
			if !violatesCamelCase(d.Name) {
				return nil, nil
			}
			return []Match{{
				Message: fmt.Sprintf("%s name %q should be camelCase", d.Kind, d.Name),
			}}, nil
		},
	}
}

// violatesCamelCase flags underscores in a plain identifier. Kotlin
// backtick names are exempt.
func violatesCamelCase(name string) bool {
	return !strings.HasPrefix(name, "`") && strings.Contains(name, "_")
}
