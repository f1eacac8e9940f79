package rules

import (
	"context"
	"fmt"
	"strconv"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/jmylchreest/smelly/pkg/findings"
	"github.com/jmylchreest/smelly/pkg/grammar"
	"github.com/jmylchreest/smelly/pkg/source"
)

// javaFuncNodes are the tree-sitter node types that delimit a Java method.
var javaFuncNodes = map[string]bool{
	"method_declaration":      true,
	"constructor_declaration": true,
}

// javaBranchNodes add one decision point each. binary_expression counts only
// for && and ||.
var javaBranchNodes = map[string]bool{
	"if_statement":                 true,
	"for_statement":                true,
	"enhanced_for_statement":       true,
	"while_statement":              true,
	"do_statement":                 true,
	"switch_block_statement_group": true,
	"switch_rule":                  true,
	"catch_clause":                 true,
	"ternary_expression":           true,
	"binary_expression":            true,
}

type complexity struct {
	threshold int
	loader    grammar.Loader
}

func complexMethodRule(threshold int, loader grammar.Loader) Rule {
	c := &complexity{threshold: threshold, loader: loader}
	return Rule{
		ID:          RuleComplexMethod,
		Description: fmt.Sprintf("Method with cyclomatic complexity of %d or more", threshold),
		Severity:    findings.SevWarn,
		Languages:   jvm,
		MatchUnit:   c.match,
	}
}

func (c *complexity) match(u *source.SourceUnit) ([]Match, error) {
	if u.Language == source.LangJava && c.loader != nil {
		if matches, ok := c.treeSitter(u); ok {
			return matches, nil
		}
	}
	return c.tokens(u), nil
}

func (c *complexity) report(name string, line, cc int) Match {
	return Match{
		Line:    line,
		Decl:    name,
		Message: fmt.Sprintf("method %q has cyclomatic complexity %d (threshold %d)", name, cc, c.threshold),
		Metadata: map[string]string{
			"complexity": strconv.Itoa(cc),
			"threshold":  strconv.Itoa(c.threshold),
		},
	}
}

// treeSitter measures Java methods on the tree-sitter syntax tree. It
// reports false when the grammar is unavailable.
func (c *complexity) treeSitter(u *source.SourceUnit) ([]Match, bool) {
	content := []byte(u.Text)
	tree, err := grammar.Parse(context.Background(), c.loader, u.Language, content)
	if err != nil {
		return nil, false
	}
	defer tree.Close()

	var out []Match
	var walk func(node *tree_sitter.Node)
	walk = func(node *tree_sitter.Node) {
		if javaFuncNodes[node.Kind()] {
			cc := nodeComplexity(node, content)
			if cc >= c.threshold {
				name, line := fmt.Sprintf("<anonymous:%d>", node.StartPosition().Row+1), int(node.StartPosition().Row)+1
				if nameNode := node.ChildByFieldName("name"); nameNode != nil {
					name, line = nameNode.Utf8Text(content), int(nameNode.StartPosition().Row)+1
				}
				out = append(out, c.report(name, line, cc))
			}
		}
		for i := uint(0); i < node.ChildCount(); i++ {
			walk(node.Child(i))
		}
	}
	walk(tree.RootNode())
	return out, true
}

// nodeComplexity counts decision points below a method node, stopping at
// nested methods.
func nodeComplexity(fn *tree_sitter.Node, content []byte) int {
	cc := 1
	var count func(node *tree_sitter.Node)
	count = func(node *tree_sitter.Node) {
		kind := node.Kind()
		if javaBranchNodes[kind] {
			if kind != "binary_expression" || isLogicalOperator(node, content) {
				cc++
			}
		}
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if javaFuncNodes[child.Kind()] {
				continue
			}
			count(child)
		}
	}
	for i := uint(0); i < fn.ChildCount(); i++ {
		count(fn.Child(i))
	}
	return cc
}

func isLogicalOperator(node *tree_sitter.Node, content []byte) bool {
	if op := node.ChildByFieldName("operator"); op != nil {
		text := op.Utf8Text(content)
		return text == "&&" || text == "||"
	}
	return false
}

// tokens estimates complexity from each method's token stream.
func (c *complexity) tokens(u *source.SourceUnit) []Match {
	var out []Match
	for _, d := range u.Kind(source.KindMethod) {
		toks := methodTokens(d)
		if len(toks) == 0 {
			continue
		}
		if cc := tokenComplexity(toks, u.Language); cc >= c.threshold {
			out = append(out, c.report(d.Name, d.Line, cc))
		}
	}
	return out
}

// tokenComplexity is 1 plus one for every branching keyword, logical
// operator, elvis or ternary operator and non-else Kotlin when branch.
func tokenComplexity(toks []source.Token, lang string) int {
	cc := 1
	for i, t := range toks {
		switch t.Kind {
		case source.TokIdent:
			switch t.Text {
			case "if", "for", "while", "catch":
				cc++
			case "case":
				if lang == source.LangJava {
					cc++
				}
			}
		case source.TokOp:
			switch t.Text {
			case "&&", "||", "?:":
				cc++
			case "?":
				if lang == source.LangJava && isTernary(toks, i) {
					cc++
				}
			}
		}
	}
	if lang == source.LangKotlin {
		for _, b := range source.FindBlocks(toks, "when") {
			cc += whenBranches(b.Body)
		}
	}
	return cc
}

// isTernary tells a Java conditional operator from a generic wildcard.
func isTernary(toks []source.Token, i int) bool {
	if i > 0 && (toks[i-1].Is("<") || toks[i-1].Is(",")) {
		return false
	}
	if i+1 < len(toks) {
		next := toks[i+1]
		if next.Is(">") || next.Is(",") || next.Is("extends") || next.Is("super") {
			return false
		}
	}
	return true
}

// whenBranches counts the top-level branch arrows of a when body, ignoring
// the else branch.
func whenBranches(body []source.Token) int {
	n := 0
	for i := 0; i < len(body); i++ {
		t := body[i]
		switch {
		case t.Is("(") || t.Is("[") || t.Is("{"):
			i = source.MatchClose(body, i)
		case t.Is("->"):
			if i == 0 || !body[i-1].Is("else") {
				n++
			}
		}
	}
	return n
}
