package rules

import (
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jmylchreest/smelly/pkg/source"
)

// methodTokens returns a method's body tokens, or its expression body.
func methodTokens(d *source.Declaration) []source.Token {
	if d.HasBody {
		return d.BodyTokens
	}
	return d.Init
}

// capitalize upper-cases the first rune of s, as in a bean accessor name.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// numericValue returns the absolute value of a numeric literal, handling
// digit separators, type suffixes and hex/binary prefixes.
func numericValue(text string) (float64, bool) {
	s := strings.ToLower(strings.ReplaceAll(text, "_", ""))

	base := 0
	switch {
	case strings.HasPrefix(s, "0x"):
		base, s = 16, s[2:]
	case strings.HasPrefix(s, "0b"):
		base, s = 2, s[2:]
	}
	if base != 0 {
		s = strings.TrimRight(s, "lu")
		v, err := strconv.ParseUint(s, base, 64)
		if err != nil {
			return 0, false
		}
		return float64(v), true
	}

	s = strings.TrimRight(s, "lufd")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return math.Abs(v), true
}

// unaryMinus reports whether toks[i] is negated by a prefix minus.
func unaryMinus(toks []source.Token, i int) bool {
	if i == 0 || !toks[i-1].Is("-") {
		return false
	}
	if i == 1 {
		return true
	}
	prev := toks[i-2]
	switch prev.Kind {
	case source.TokOp:
		return !prev.Is(")") && !prev.Is("]")
	case source.TokIdent:
		return prev.Text == "return" || prev.Text == "case" || prev.Text == "yield"
	}
	return false
}
