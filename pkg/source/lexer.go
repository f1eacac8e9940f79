package source

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenKind classifies a lexical token.
type TokenKind int

const (
	TokIdent TokenKind = iota
	TokNumber
	TokString
	TokChar
	TokAnnotation
	TokOp
)

func (k TokenKind) String() string {
	switch k {
	case TokIdent:
		return "ident"
	case TokNumber:
		return "number"
	case TokString:
		return "string"
	case TokChar:
		return "char"
	case TokAnnotation:
		return "annotation"
	default:
		return "op"
	}
}

// Token is a single lexical token. Comments and whitespace are dropped.
type Token struct {
	Kind   TokenKind
	Text   string
	Line   int // 1-indexed
	Col    int // 1-indexed, in bytes
	Offset int // Byte offset into the source text

	// NewlineBefore is set when at least one line break separates this token
	// from the previous one. Kotlin uses it as a statement separator.
	NewlineBefore bool
}

// Is reports whether t is an operator or identifier spelled text.
func (t Token) Is(text string) bool {
	return (t.Kind == TokOp || t.Kind == TokIdent) && t.Text == text
}

// ParseError reports malformed input structure.
type ParseError struct {
	Path string
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Col, e.Msg)
}

// operators lists multi-character operators, longest first. '>' is always
// emitted alone so that nested generic closers ("List<List<T>>") stay
// balanced; ">=" is kept because it never closes a type argument list.
var operators = []string{
	"..<", "...", "!==", "===", "<<=",
	"->", "::", "&&", "||", "==", "!=", "<=", ">=", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<",
	"?.", "?:", "!!", "..",
}

var closers = map[string]string{")": "(", "]": "[", "}": "{"}

type lexer struct {
	src     string
	lang    string
	pos     int
	line    int
	col     int
	newline bool
	tokens  []Token
	stack   []Token // open brackets
}

// Lex tokenizes text. It fails with *ParseError on unterminated literals or
// comments and on unbalanced brackets.
func Lex(text, lang string) ([]Token, error) {
	l := &lexer{src: text, lang: lang, line: 1, col: 1}
	if err := l.run(); err != nil {
		return nil, err
	}
	return l.tokens, nil
}

func (l *lexer) errorf(line, col int, format string, args ...any) error {
	return &ParseError{Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) peek(n int) byte {
	if l.pos+n < len(l.src) {
		return l.src[l.pos+n]
	}
	return 0
}

// advance moves forward n bytes, tracking line and column.
func (l *lexer) advance(n int) {
	for i := 0; i < n && l.pos < len(l.src); i++ {
		if l.src[l.pos] == '\n' {
			l.line++
			l.col = 1
			l.newline = true
		} else {
			l.col++
		}
		l.pos++
	}
}

func (l *lexer) emit(kind TokenKind, start, line, col int) {
	l.tokens = append(l.tokens, Token{
		Kind:          kind,
		Text:          l.src[start:l.pos],
		Line:          line,
		Col:           col,
		Offset:        start,
		NewlineBefore: l.newline && len(l.tokens) > 0,
	})
	l.newline = false
}

func (l *lexer) run() error {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		start, line, col := l.pos, l.line, l.col

		switch {
		case c == '\n' || c == ' ' || c == '\t' || c == '\r' || c == '\f':
			l.advance(1)

		case c == '/' && l.peek(1) == '/':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance(1)
			}

		case c == '/' && l.peek(1) == '*':
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end < 0 {
				return l.errorf(line, col, "unterminated block comment")
			}
			l.advance(end + 4)

		case c == '"':
			if err := l.scanString(); err != nil {
				return err
			}
			l.emit(TokString, start, line, col)

		case c == '\'':
			if err := l.scanChar(); err != nil {
				return err
			}
			l.emit(TokChar, start, line, col)

		case c == '`' && l.lang == LangKotlin:
			end := strings.IndexAny(l.src[l.pos+1:], "`\n")
			if end < 0 || l.src[l.pos+1+end] != '`' {
				return l.errorf(line, col, "unterminated quoted identifier")
			}
			l.advance(end + 2)
			l.emit(TokIdent, start, line, col)

		case c == '@' && isIdentStart(l.runeAt(l.pos+1)) && !l.afterIdent():
			l.advance(1)
			l.scanQualifiedIdent()
			l.emit(TokAnnotation, start, line, col)

		case isDigit(c) || (c == '.' && isDigit(l.peek(1))):
			l.scanNumber()
			l.emit(TokNumber, start, line, col)

		case isIdentStart(l.runeAt(l.pos)):
			l.scanIdent()
			l.emit(TokIdent, start, line, col)

		default:
			op := l.matchOperator()
			l.advance(len(op))
			l.emit(TokOp, start, line, col)
			if err := l.track(l.tokens[len(l.tokens)-1]); err != nil {
				return err
			}
		}
	}

	if len(l.stack) > 0 {
		open := l.stack[len(l.stack)-1]
		return l.errorf(open.Line, open.Col, "unbalanced %q: missing closing delimiter", open.Text)
	}
	return nil
}

// track maintains the bracket stack.
func (l *lexer) track(t Token) error {
	switch t.Text {
	case "(", "[", "{":
		l.stack = append(l.stack, t)
	case ")", "]", "}":
		if len(l.stack) == 0 {
			return l.errorf(t.Line, t.Col, "unbalanced %q: no matching opening delimiter", t.Text)
		}
		open := l.stack[len(l.stack)-1]
		if open.Text != closers[t.Text] {
			return l.errorf(t.Line, t.Col, "unbalanced %q: expected closer for %q opened at line %d", t.Text, open.Text, open.Line)
		}
		l.stack = l.stack[:len(l.stack)-1]
	}
	return nil
}

func (l *lexer) matchOperator() string {
	rest := l.src[l.pos:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op) {
			return op
		}
	}
	_, size := utf8.DecodeRuneInString(rest)
	return rest[:size]
}

func (l *lexer) runeAt(pos int) rune {
	if pos >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[pos:])
	return r
}

// afterIdent reports whether the byte before pos continues an identifier, as
// in Kotlin labels ("return@forEach", "this@Outer").
func (l *lexer) afterIdent() bool {
	if l.pos == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(l.src[:l.pos])
	return isIdentPart(r)
}

func (l *lexer) scanIdent() {
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !isIdentPart(r) {
			return
		}
		l.advance(size)
	}
}

func (l *lexer) scanQualifiedIdent() {
	for {
		l.scanIdent()
		if l.peek(0) == '.' && isIdentStart(l.runeAt(l.pos+1)) {
			l.advance(1)
			continue
		}
		if l.lang == LangKotlin && l.peek(0) == ':' && isIdentStart(l.runeAt(l.pos+1)) {
			// use-site targets: @field:JvmField
			l.advance(1)
			continue
		}
		return
	}
}

func (l *lexer) scanNumber() {
	hex := l.peek(0) == '0' && (l.peek(1) == 'x' || l.peek(1) == 'X')
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case isDigit(c) || c == '_' || isLetter(c):
			if !hex && (c == 'e' || c == 'E') && (l.peek(1) == '+' || l.peek(1) == '-') {
				l.advance(2)
				continue
			}
			l.advance(1)
		case c == '.' && isDigit(l.peek(1)):
			l.advance(1)
		default:
			return
		}
	}
}

// scanString consumes a string literal starting at the opening quote,
// including Java text blocks, Kotlin raw strings and Kotlin templates.
func (l *lexer) scanString() error {
	line, col := l.line, l.col
	if strings.HasPrefix(l.src[l.pos:], `"""`) {
		end := strings.Index(l.src[l.pos+3:], `"""`)
		if end < 0 {
			return l.errorf(line, col, "unterminated text block")
		}
		l.advance(end + 6)
		// Kotlin raw strings may end with extra quotes: """a""""
		for l.peek(0) == '"' {
			l.advance(1)
		}
		return nil
	}

	l.advance(1)
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\\':
			l.advance(2)
		case c == '"':
			l.advance(1)
			return nil
		case c == '\n':
			return l.errorf(line, col, "unterminated string literal")
		case c == '$' && l.lang == LangKotlin && l.peek(1) == '{':
			if err := l.scanTemplate(); err != nil {
				return err
			}
		default:
			l.advance(1)
		}
	}
	return l.errorf(line, col, "unterminated string literal")
}

// scanTemplate consumes a Kotlin "${...}" template expression, which may
// itself contain string literals.
func (l *lexer) scanTemplate() error {
	line, col := l.line, l.col
	l.advance(2)
	depth := 1
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case '{':
			depth++
			l.advance(1)
		case '}':
			depth--
			l.advance(1)
			if depth == 0 {
				return nil
			}
		case '"':
			if err := l.scanString(); err != nil {
				return err
			}
		default:
			l.advance(1)
		}
	}
	return l.errorf(line, col, "unterminated string template")
}

func (l *lexer) scanChar() error {
	line, col := l.line, l.col
	l.advance(1)
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '\\':
			l.advance(2)
		case '\'':
			l.advance(1)
			return nil
		case '\n':
			return l.errorf(line, col, "unterminated character literal")
		default:
			l.advance(1)
		}
	}
	return l.errorf(line, col, "unterminated character literal")
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
