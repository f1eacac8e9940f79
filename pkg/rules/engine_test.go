package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jmylchreest/smelly/pkg/findings"
	"github.com/jmylchreest/smelly/pkg/source"
)

func declRule(id string, fn DeclMatcher) Rule {
	return Rule{ID: id, Description: id, Severity: findings.SevWarn, MatchDecl: fn}
}

func methodsNamed(name string) DeclMatcher {
	return func(u *source.SourceUnit, d *source.Declaration) ([]Match, error) {
		if d.Kind == source.KindMethod && d.Name == name {
			return []Match{{Message: "hit"}}, nil
		}
		return nil, nil
	}
}

const engineSrc = `class E {
  void first() {}
  void second() {}
}
`

func TestRegistry_Register(t *testing.T) {
	noop := func(*source.SourceUnit, *source.Declaration) ([]Match, error) { return nil, nil }

	tests := []struct {
		name    string
		rule    Rule
		wantErr string
	}{
		{"ok", declRule("ok", noop), ""},
		{"empty id", declRule(" ", noop), "empty"},
		{"reserved parse", declRule(findings.RuleParseFailure, noop), "reserved"},
		{"reserved internal", declRule(findings.RuleInternalError, noop), "reserved"},
		{"bad severity", Rule{ID: "sev", Severity: "LOUD", MatchDecl: noop}, "invalid severity"},
		{"no matcher", Rule{ID: "bare", Severity: findings.SevInfo}, "no matcher"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().Register(tt.rule)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Register: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Register error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_Duplicate(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(declRule("dup", methodsNamed("x"))); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(declRule("dup", methodsNamed("y"))); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if got := reg.IDs(); len(got) != 1 {
		t.Fatalf("ids = %v", got)
	}
}

func TestRegistry_EngineSelection(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []string{"a", "b", "c"} {
		if err := reg.Register(declRule(id, methodsNamed("first"))); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	all, err := reg.Engine(nil)
	if err != nil {
		t.Fatalf("Engine: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, all.RuleIDs()); diff != "" {
		t.Errorf("all rules (-want +got):\n%s", diff)
	}

	// Registration order wins over the order of the enabled list.
	some, err := reg.Engine([]string{"c", "a"})
	if err != nil {
		t.Fatalf("Engine: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "c"}, some.RuleIDs()); diff != "" {
		t.Errorf("selected rules (-want +got):\n%s", diff)
	}

	if _, err := reg.Engine([]string{"a", "zzz"}); !errors.Is(err, ErrUnknownRule) {
		t.Fatalf("Engine(unknown) error = %v, want ErrUnknownRule", err)
	}
}

func TestEngine_RuleMajorOrder(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(declRule("one", func(u *source.SourceUnit, d *source.Declaration) ([]Match, error) {
		if d.Kind == source.KindMethod {
			return []Match{{Message: d.Name}}, nil
		}
		return nil, nil
	}))
	_ = reg.Register(declRule("two", methodsNamed("first")))
	engine, _ := reg.Engine(nil)

	var got []string
	for _, f := range engine.ApplyAll(parseText(t, "E.java", engineSrc)) {
		got = append(got, f.Rule+":"+f.Declaration)
	}
	want := []string{"one:first", "one:second", "two:first"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
}

func TestEngine_PanicIsolated(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(declRule("before", methodsNamed("first")))
	_ = reg.Register(declRule("boom", func(u *source.SourceUnit, d *source.Declaration) ([]Match, error) {
		if d.Kind == source.KindMethod {
			var m map[string]int
			m["x"]++ // nil map write
		}
		return nil, nil
	}))
	_ = reg.Register(declRule("after", methodsNamed("second")))
	engine, _ := reg.Engine(nil)

	ff := engine.ApplyAll(parseText(t, "E.java", engineSrc))
	got := hits(ff)
	want := []hit{
		{"before", findings.SevWarn, 2, "first"},
		{findings.RuleInternalError, findings.SevInfo, 2, "first"},
		{"after", findings.SevWarn, 3, "second"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("findings mismatch (-want +got):\n%s", diff)
	}
	if ff[1].Metadata["rule"] != "boom" || !strings.Contains(ff[1].Message, "panic") {
		t.Errorf("internal error finding = %+v", ff[1])
	}
}

func TestEngine_ErrorIsolated(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(Rule{
		ID:       "unit-fails",
		Severity: findings.SevError,
		MatchUnit: func(*source.SourceUnit) ([]Match, error) {
			return nil, errors.New("index out of reach")
		},
		MatchDecl: methodsNamed("first"),
	})
	_ = reg.Register(declRule("after", methodsNamed("second")))
	engine, _ := reg.Engine(nil)

	ff := engine.ApplyAll(parseText(t, "E.java", engineSrc))
	got := hits(ff)
	want := []hit{
		{findings.RuleInternalError, findings.SevInfo, 1, ""},
		{"after", findings.SevWarn, 3, "second"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("findings mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(ff[0].Message, "index out of reach") {
		t.Errorf("message = %q", ff[0].Message)
	}
}

func TestEngine_LanguageFilterAndLineClamp(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(Rule{
		ID:        "kotlin-only",
		Severity:  findings.SevInfo,
		Languages: []string{source.LangKotlin},
		MatchUnit: func(*source.SourceUnit) ([]Match, error) { return []Match{{Message: "k"}}, nil },
	})
	_ = reg.Register(Rule{
		ID:        "far-line",
		Severity:  findings.SevInfo,
		MatchUnit: func(*source.SourceUnit) ([]Match, error) { return []Match{{Line: 999, Message: "far"}}, nil },
	})
	engine, _ := reg.Engine(nil)

	unit := parseText(t, "E.java", engineSrc)
	ff := engine.ApplyAll(unit)
	if len(ff) != 1 || ff[0].Rule != "far-line" {
		t.Fatalf("findings = %+v", hits(ff))
	}
	if ff[0].Line != unit.Lines {
		t.Errorf("line = %d, want clamped to %d", ff[0].Line, unit.Lines)
	}
}

func TestEngine_Deterministic(t *testing.T) {
	unit := parseFixture(t, "QualityDemo.java")
	first := hits(run(t, unit))
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, hits(run(t, unit))); diff != "" {
			t.Fatalf("run %d differs (-first +got):\n%s", i, diff)
		}
	}
}
