package source

// Tokens that keep a statement open across a closing brace.
var braceContinuations = toSet("else", "catch", "finally", ";", ")", ",", ".", "?.")

// Tokens that end a Kotlin line without ending the expression.
var kotlinTrailingOps = toSet(
	"=", "+", "-", "*", "/", "%", "&&", "||", ".", "?.", "?:", ",", "(", "[",
	"->", ":", "==", "!=", "===", "!==", "<=", ">=", "+=", "-=",
	"*=", "/=", "%=", "..", "..<", "as", "is", "in", "::",
)

// Tokens that continue the previous Kotlin line when they start a new one.
var kotlinLeadingOps = toSet(
	".", "?.", "?:", "&&", "||", ")", "]", "else", "catch", "finally", "->",
	":", "as", "::",
)

// continues reports whether a Kotlin line break between prev and next is
// part of one expression.
func continues(prev, next Token) bool {
	if prev.Kind == TokOp || prev.Kind == TokIdent {
		if kotlinTrailingOps[prev.Text] {
			return true
		}
	}
	return (next.Kind == TokOp || next.Kind == TokIdent) && kotlinLeadingOps[next.Text]
}

// Statements splits toks into top-level statements. Statements end at a ';'
// at depth zero, after a closing brace that returns to depth zero (unless an
// else, catch, finally or similar follows), and, in Kotlin, at a line break
// that does not continue the expression. Empty statements are dropped.
func Statements(toks []Token, lang string) [][]Token {
	var out [][]Token
	depth, start := 0, 0
	flush := func(end int) {
		if end > start {
			out = append(out, toks[start:end])
		}
		start = end
	}

	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if lang == LangKotlin && depth == 0 && i > start && t.NewlineBefore && !continues(toks[i-1], t) {
			flush(i)
		}
		if t.Kind != TokOp {
			continue
		}
		switch t.Text {
		case "(", "[", "{":
			depth++
		case ")", "]":
			depth--
		case "}":
			depth--
			if depth == 0 && !braceContinues(toks, start, i+1) {
				flush(i + 1)
			}
		case ";":
			if depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(toks))
	return out
}

func braceContinues(toks []Token, start, next int) bool {
	if next >= len(toks) {
		return false
	}
	t := toks[next]
	if t.Kind == TokOp || t.Kind == TokIdent {
		if braceContinuations[t.Text] {
			return true
		}
		if t.Is("while") && toks[start].Is("do") {
			return true
		}
	}
	return false
}

// CountStatements returns the number of non-empty top-level statements.
func CountStatements(toks []Token, lang string) int {
	return len(Statements(toks, lang))
}

// Block is a keyword-introduced brace block such as a catch clause.
type Block struct {
	Keyword Token
	Header  []Token // Tokens between the keyword and the opening brace
	Body    []Token // Tokens between the braces
	Close   Token   // The closing brace
}

// FindBlocks returns every block introduced by keyword in toks, including
// nested ones, in source order. A parenthesized header is allowed between the
// keyword and the opening brace.
func FindBlocks(toks []Token, keyword string) []Block {
	var out []Block
	for i := 0; i < len(toks); i++ {
		if toks[i].Kind != TokIdent || toks[i].Text != keyword {
			continue
		}
		j := i + 1
		if j < len(toks) && toks[j].Is("(") {
			j = closeIndex(toks, j) + 1
		}
		if j >= len(toks) || !toks[j].Is("{") {
			continue
		}
		end := closeIndex(toks, j)
		out = append(out, Block{
			Keyword: toks[i],
			Header:  toks[i+1 : j],
			Body:    toks[j+1 : end],
			Close:   toks[end],
		})
	}
	return out
}

// MatchClose returns the index of the bracket closing toks[i].
func MatchClose(toks []Token, i int) int { return closeIndex(toks, i) }
