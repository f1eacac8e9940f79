// Package source turns JVM source text into a lightweight structural model
// (declarations, bodies, statements) that smell rules can match against.
//
// Both languages are lexed into one token stream. Java declarations are then
// read from the tree-sitter Java syntax tree; Kotlin declarations are
// recognised in the token stream by brace and signature matching.
package source

import (
	"path/filepath"
	"sort"
	"strings"
)

// Language constants
const (
	LangJava   = "java"
	LangKotlin = "kotlin"
)

// LangExtensions maps file extensions to languages
var LangExtensions = map[string]string{
	".java": LangJava,
	".kt":   LangKotlin,
	".kts":  LangKotlin,
}

// Declaration kinds.
const (
	KindClass  = "class"
	KindMethod = "method"
	KindField  = "field"
	KindLocal  = "local"
)

// DetectLanguage returns the language for a file path, or "" when the
// extension is unknown.
func DetectLanguage(filePath string) string {
	return LangExtensions[strings.ToLower(filepath.Ext(filePath))]
}

// SupportedFile reports whether the scanner understands the file.
func SupportedFile(filePath string) bool {
	return DetectLanguage(filePath) != ""
}

// Languages returns the supported language names in sorted order.
func Languages() []string {
	seen := make(map[string]bool)
	var out []string
	for _, lang := range LangExtensions {
		if !seen[lang] {
			seen[lang] = true
			out = append(out, lang)
		}
	}
	sort.Strings(out)
	return out
}

// Param is a single method parameter.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Declaration is a named structural element of a source unit. Declarations
// are never mutated after Parse returns.
type Declaration struct {
	Kind        string   `json:"kind"`
	Name        string   `json:"name"`
	Owner       string   `json:"owner,omitempty"`       // Enclosing class (members) or method (locals)
	Modifiers   []string `json:"modifiers,omitempty"`   // Sorted, deduplicated
	Annotations []string `json:"annotations,omitempty"` // Without the leading '@'
	Type        string   `json:"type,omitempty"`        // Field/local type or method return type
	Params      []Param  `json:"params,omitempty"`
	Line        int      `json:"line"`
	EndLine     int      `json:"endLine,omitempty"`

	// NameOffset is the byte offset of the declaring name token. Reference
	// counting excludes it.
	NameOffset int `json:"-"`
	// EndOffset is the byte offset just past a method declaration,
	// including any nested class bodies.
	EndOffset int `json:"-"`

	// HasBody is false for abstract/interface methods and Kotlin
	// expression-bodied functions without braces.
	HasBody        bool    `json:"hasBody,omitempty"`
	BodyStatements int     `json:"bodyStatements"`
	Body           string  `json:"-"` // Raw text between the body braces
	BodyTokens     []Token `json:"-"`

	// Init holds the initializer tokens of a field or local (after '='),
	// or the expression body of a Kotlin function.
	Init []Token `json:"-"`
}

// Has reports whether the declaration carries the given modifier keyword.
func (d *Declaration) Has(modifier string) bool {
	i := sort.SearchStrings(d.Modifiers, modifier)
	return i < len(d.Modifiers) && d.Modifiers[i] == modifier
}

// Annotated reports whether the declaration carries the annotation, matching
// either the simple or the qualified name.
func (d *Declaration) Annotated(name string) bool {
	for _, a := range d.Annotations {
		if a == name || strings.HasSuffix(a, "."+name) {
			return true
		}
	}
	return false
}

// SourceUnit is one parsed input file.
type SourceUnit struct {
	Path         string
	Language     string
	Text         string
	Tokens       []Token
	Lines        int
	Declarations []*Declaration
}

// Kind returns the declarations of the given kind in source order.
func (u *SourceUnit) Kind(kind string) []*Declaration {
	var out []*Declaration
	for _, d := range u.Declarations {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// Members returns the methods and fields declared directly in class owner.
func (u *SourceUnit) Members(owner string) []*Declaration {
	var out []*Declaration
	for _, d := range u.Declarations {
		if d.Owner == owner && (d.Kind == KindMethod || d.Kind == KindField) {
			out = append(out, d)
		}
	}
	return out
}

// References counts identifier tokens spelled name, skipping the token at
// exceptOffset (the declaration itself). The count is a plain name
// occurrence scan, not scope analysis.
func (u *SourceUnit) References(name string, exceptOffset int) int {
	return CountReferences(u.Tokens, u.Language, name, exceptOffset)
}

// Extent returns the tokens of a method from its name to EndOffset: the
// parameter list, any constructor delegation and the whole body.
func (u *SourceUnit) Extent(d *Declaration) []Token {
	lo := sort.Search(len(u.Tokens), func(i int) bool { return u.Tokens[i].Offset > d.NameOffset })
	hi := sort.Search(len(u.Tokens), func(i int) bool { return u.Tokens[i].Offset >= d.EndOffset })
	if lo >= hi {
		return nil
	}
	return u.Tokens[lo:hi:hi]
}

// CountReferences is References over an arbitrary token slice, such as one
// method body.
func CountReferences(toks []Token, lang, name string, exceptOffset int) int {
	n := 0
	for _, t := range toks {
		switch {
		case t.Kind == TokIdent && t.Text == name && t.Offset != exceptOffset:
			n++
		case t.Kind == TokString && lang == LangKotlin:
			n += templateReferences(t.Text, name)
		}
	}
	return n
}

// templateReferences counts name inside Kotlin string templates, in both the
// "$name" and "${expr}" forms.
func templateReferences(text, name string) int {
	n := 0
	for i := 0; i < len(text); i++ {
		if text[i] != '$' || i+1 >= len(text) {
			continue
		}
		if text[i+1] != '{' {
			j := i + 1
			for j < len(text) && isIdentByte(text[j]) {
				j++
			}
			if text[i+1:j] == name {
				n++
			}
			continue
		}
		end := strings.IndexByte(text[i:], '}')
		if end < 0 {
			break
		}
		expr := text[i+2 : i+end]
		for _, word := range strings.FieldsFunc(expr, func(r rune) bool { return !isIdentPart(r) || r == '$' }) {
			if word == name {
				n++
			}
		}
		i += end
	}
	return n
}

func isIdentByte(b byte) bool {
	return b == '_' || isLetter(b) || isDigit(b)
}

// IsConstant reports whether d is a named constant: a static final Java
// field, a final Java local, or a Kotlin const.
func (u *SourceUnit) IsConstant(d *Declaration) bool {
	switch u.Language {
	case LangKotlin:
		return d.Has("const")
	default:
		if d.Kind == KindLocal {
			return d.Has("final")
		}
		return d.Has("static") && d.Has("final")
	}
}

// ValidLine clamps line into the unit's line range.
func (u *SourceUnit) ValidLine(line int) int {
	if line < 1 {
		return 1
	}
	if u.Lines > 0 && line > u.Lines {
		return u.Lines
	}
	return line
}
