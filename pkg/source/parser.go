package source

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/jmylchreest/smelly/pkg/grammar"
)

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// Parse lexes and parses text, choosing the language from the file
// extension. Unknown extensions are parsed as Java.
func Parse(path, text string) (*SourceUnit, error) {
	lang := DetectLanguage(path)
	if lang == "" {
		lang = LangJava
	}
	return ParseLanguage(path, lang, text)
}

// ParseLanguage parses text as the given language.
//
// Lexing runs first for both languages: an unterminated literal or an
// unbalanced bracket fails with *ParseError before any grammar is consulted,
// since tree-sitter would recover from either silently.
func ParseLanguage(path, lang, text string) (*SourceUnit, error) {
	toks, err := Lex(text, lang)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}

	var decls []*Declaration
	switch lang {
	case LangKotlin:
		decls = parseKotlin(text, toks)
	default:
		decls, err = parseJava(context.Background(), grammar.DefaultLoader(), text, toks)
		if err != nil {
			return nil, err
		}
	}

	return &SourceUnit{
		Path:         path,
		Language:     lang,
		Text:         text,
		Tokens:       toks,
		Lines:        countLines(text),
		Declarations: decls,
	}, nil
}

func countLines(text string) int {
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	if n == 0 {
		n = 1
	}
	return n
}

func normalize(mods []string) []string {
	if len(mods) == 0 {
		return nil
	}
	sort.Strings(mods)
	out := mods[:1]
	for _, m := range mods[1:] {
		if m != out[len(out)-1] {
			out = append(out, m)
		}
	}
	return out
}

// Token helpers shared by the parsers and the rules.

// matchBrackets pairs every opening bracket with its closer. The lexer has
// already verified the token stream is balanced.
func matchBrackets(toks []Token) []int {
	match := make([]int, len(toks))
	var stack []int
	for i, t := range toks {
		match[i] = -1
		if t.Kind != TokOp {
			continue
		}
		switch t.Text {
		case "(", "[", "{":
			stack = append(stack, i)
		case ")", "]", "}":
			if len(stack) > 0 {
				open := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				match[open] = i
				match[i] = open
			}
		}
	}
	return match
}

// splitTopLevel splits toks on commas outside brackets and type arguments.
func splitTopLevel(toks []Token) [][]Token {
	var parts [][]Token
	depth, angle, start := 0, 0, 0
	for i, t := range toks {
		if t.Kind != TokOp {
			continue
		}
		switch t.Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		case "<":
			angle++
		case ">":
			if angle > 0 {
				angle--
			}
		case ",":
			if depth == 0 && angle == 0 {
				parts = append(parts, toks[start:i])
				start = i + 1
			}
		}
	}
	if start < len(toks) {
		parts = append(parts, toks[start:])
	}
	return parts
}

// skipAngles returns the index after the '>' that closes the '<' at toks[i].
// Only tokens that may appear in type arguments are accepted; anything else
// stops the scan.
func skipAngles(toks []Token, i, hi int) int {
	depth := 0
	for j := i; j < hi; j++ {
		t := toks[j]
		switch {
		case t.Is("<"):
			depth++
		case t.Is(">"):
			depth--
			if depth == 0 {
				return j + 1
			}
		case t.Kind == TokIdent, t.Kind == TokAnnotation,
			t.Is("."), t.Is(","), t.Is("?"), t.Is("&"), t.Is("["), t.Is("]"), t.Is("*"):
		default:
			return j
		}
	}
	return hi
}

// closeIndex returns the index of the bracket closing toks[i], or the last
// index when toks is truncated.
func closeIndex(toks []Token, i int) int {
	depth := 0
	for j := i; j < len(toks); j++ {
		if toks[j].Kind != TokOp {
			continue
		}
		switch toks[j].Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return len(toks) - 1
}

// exprEnd returns the index ending the Kotlin expression that starts at
// toks[i]: a ';' at depth zero, a closer that leaves the enclosing group, or
// a line break that does not continue the expression.
func exprEnd(toks []Token, i, hi int) int {
	depth := 0
	for j := i; j < hi; j++ {
		t := toks[j]
		if depth == 0 && j > i && t.NewlineBefore && !continues(toks[j-1], t) {
			return j
		}
		if t.Kind != TokOp {
			continue
		}
		switch t.Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			if depth == 0 {
				return j
			}
			depth--
		case ";":
			if depth == 0 {
				return j
			}
		}
	}
	return hi
}

// JoinTokens renders tokens compactly, separating adjacent words with a
// single space.
func JoinTokens(toks []Token) string { return joinTokens(toks) }

func joinTokens(toks []Token) string {
	var b strings.Builder
	for i, t := range toks {
		if i > 0 {
			prev := toks[i-1]
			if word(prev) && word(t) || prev.Is(",") || prev.Is("?") && word(t) {
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.Text)
	}
	return b.String()
}

func word(t Token) bool {
	return t.Kind == TokIdent || t.Kind == TokNumber || t.Kind == TokAnnotation
}
