package rules

import (
	"github.com/jmylchreest/smelly/pkg/findings"
	"github.com/jmylchreest/smelly/pkg/grammar"
	"github.com/jmylchreest/smelly/pkg/source"
)

// Built-in rule ids, in catalog order.
const (
	RulePublicField         = "public-field"
	RuleUnusedField         = "unused-field"
	RuleUnusedLocal         = "unused-local"
	RuleUnusedParameter     = "unused-parameter"
	RuleUnusedPrivateMethod = "unused-private-method"
	RuleTooManyParameters   = "too-many-parameters"
	RuleMagicNumber         = "magic-number"
	RuleEmptyCatch          = "empty-catch"
	RuleRedundantNullCheck  = "redundant-null-check"
	RuleDeprecatedUsage     = "deprecated-usage"
	RuleRawGenericType      = "raw-generic-type"
	RuleMissingOverride     = "missing-override-tag"
	RuleComplexMethod       = "complex-method"
	RuleNamingConvention    = "naming-convention"
	RuleUnsafeUnwrap        = "unsafe-unwrap"
)

var (
	javaOnly   = []string{source.LangJava}
	kotlinOnly = []string{source.LangKotlin}
	jvm        = []string{source.LangJava, source.LangKotlin}
)

// Options tunes the built-in rules.
type Options struct {
	// MaxParameters is the largest accepted parameter count (default 5).
	MaxParameters int
	// ComplexityThreshold is the complexity at which complex-method
	// reports a method (default 10).
	ComplexityThreshold int
	// Loader supplies tree-sitter grammars for precise complexity. If nil,
	// complexity is estimated from tokens.
	Loader grammar.Loader
}

// DefaultOptions returns the catalog defaults with the compiled-in grammar
// loader.
func DefaultOptions() Options {
	return Options{
		MaxParameters:       findings.DefaultMaxParameters,
		ComplexityThreshold: findings.DefaultComplexityThreshold,
		Loader:              grammar.DefaultLoader(),
	}
}

// Builtin returns a registry holding the built-in catalog.
func Builtin(opts Options) *Registry {
	if opts.MaxParameters <= 0 {
		opts.MaxParameters = findings.DefaultMaxParameters
	}
	if opts.ComplexityThreshold <= 0 {
		opts.ComplexityThreshold = findings.DefaultComplexityThreshold
	}

	reg := NewRegistry()
	for _, rule := range []Rule{
		publicFieldRule(),
		unusedFieldRule(),
		unusedLocalRule(),
		unusedParameterRule(),
		unusedPrivateMethodRule(),
		tooManyParametersRule(opts.MaxParameters),
		magicNumberRule(),
		emptyCatchRule(),
		redundantNullCheckRule(),
		deprecatedUsageRule(),
		rawGenericTypeRule(),
		missingOverrideRule(),
		complexMethodRule(opts.ComplexityThreshold, opts.Loader),
		namingConventionRule(),
		unsafeUnwrapRule(),
	} {
		if err := reg.Register(rule); err != nil {
			panic(err) // built-in ids are unique
		}
	}
	return reg
}
