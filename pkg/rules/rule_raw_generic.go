package rules

import (
	"fmt"

	"github.com/jmylchreest/smelly/pkg/findings"
	"github.com/jmylchreest/smelly/pkg/source"
)

// genericTypes are common JDK generic types whose raw use loses type safety.
var genericTypes = map[string]bool{
	"Collection": true, "Iterable": true, "Iterator": true, "ListIterator": true,
	"List": true, "ArrayList": true, "LinkedList": true, "CopyOnWriteArrayList": true,
	"Set": true, "HashSet": true, "LinkedHashSet": true, "TreeSet": true, "SortedSet": true, "NavigableSet": true,
	"Map": true, "HashMap": true, "LinkedHashMap": true, "TreeMap": true, "SortedMap": true, "NavigableMap": true,
	"ConcurrentMap": true, "ConcurrentHashMap": true, "WeakHashMap": true, "IdentityHashMap": true, "EnumMap": true,
	"Queue": true, "Deque": true, "ArrayDeque": true, "PriorityQueue": true, "BlockingQueue": true,
	"Optional": true, "Stream": true, "Comparator": true, "Comparable": true, "Class": true,
	"Supplier": true, "Consumer": true, "Function": true, "BiFunction": true, "Predicate": true,
	"Future": true, "CompletableFuture": true, "Callable": true, "ThreadLocal": true,
}

func rawGenericTypeRule() Rule {
	return Rule{
		ID:          RuleRawGenericType,
		Description: "Generic type used without type arguments",
		Severity:    findings.SevInfo,
		Languages:   javaOnly,
		MatchDecl:   matchRawGenerics,
	}
}

func matchRawGenerics(u *source.SourceUnit, d *source.Declaration) ([]Match, error) {
	switch d.Kind {
	case source.KindField:
		name := rawInType(d.Type)
		if name == "" {
			if uses := rawGenericUses(d.Init); len(uses) > 0 {
				name = uses[0].Text
			}
		}
		if name == "" {
			return nil, nil
		}
		return []Match{rawMatch(d.Line, name)}, nil

	case source.KindMethod:
		var out []Match
		sig := rawInType(d.Type)
		for _, p := range d.Params {
			if sig != "" {
				break
			}
			sig = rawInType(p.Type)
		}
		if sig != "" {
			out = append(out, rawMatch(d.Line, sig))
		}
		for _, t := range rawGenericUses(methodTokens(d)) {
			out = append(out, rawMatch(t.Line, t.Text))
		}
		return out, nil
	}
	return nil, nil
}

func rawMatch(line int, name string) Match {
	return Match{
		Line:     line,
		Message:  fmt.Sprintf("raw use of generic type %s; add type arguments", name),
		Metadata: map[string]string{"type": name},
	}
}

// rawInType returns the first generic type named without type arguments in
// a declared type such as "Map<String, List>".
func rawInType(text string) string {
	if text == "" {
		return ""
	}
	toks, err := source.Lex(text, source.LangJava)
	if err != nil {
		return ""
	}
	for i, t := range toks {
		if t.Kind != source.TokIdent || !genericTypes[t.Text] {
			continue
		}
		if i > 0 && toks[i-1].Is(".") && !qualifiedJDK(toks, i) {
			continue
		}
		if i+1 < len(toks) && (toks[i+1].Is("<") || toks[i+1].Is(".")) {
			continue
		}
		return t.Text
	}
	return ""
}

// qualifiedJDK reports whether toks[i] ends a java.* qualified name.
func qualifiedJDK(toks []source.Token, i int) bool {
	j := i
	for j >= 2 && toks[j-1].Is(".") && toks[j-2].Kind == source.TokIdent {
		j -= 2
	}
	return toks[j].Text == "java"
}

// rawGenericUses returns the first raw generic type use of each statement
// in a body.
func rawGenericUses(toks []source.Token) []source.Token {
	var out []source.Token
	stmt := -1
	reported := make(map[int]bool)
	for i, t := range toks {
		if t.Is(";") || t.Is("{") || t.Is("}") {
			stmt = i
			continue
		}
		if !reported[stmt] && isRawGeneric(toks, i) {
			reported[stmt] = true
			out = append(out, t)
		}
	}
	return out
}

// isRawGeneric reports whether toks[i] names a generic type in a type
// position without type arguments: after new, before a declared name, or as
// a bare argument of another generic.
func isRawGeneric(toks []source.Token, i int) bool {
	t := toks[i]
	if t.Kind != source.TokIdent || !genericTypes[t.Text] {
		return false
	}
	var prev, next source.Token
	if i > 0 {
		prev = toks[i-1]
	}
	if i+1 < len(toks) {
		next = toks[i+1]
	}
	if next.Is("<") || next.Is(".") || next.Is("::") || prev.Is(".") || prev.Is("instanceof") {
		return false
	}
	switch {
	case prev.Is("new"):
		return true
	case next.Kind == source.TokIdent:
		return true
	case next.Is("[") && i+2 < len(toks) && toks[i+2].Is("]"):
		return true
	case prev.Is("<") && (next.Is(">") || next.Is(",")):
		return true
	case prev.Is(",") && next.Is(">"):
		return true
	case prev.Is("(") && next.Is(")") && i+2 < len(toks) && (toks[i+2].Kind == source.TokIdent || toks[i+2].Is("(")):
		return true
	}
	return false
}
