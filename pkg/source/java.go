package source

import (
	"context"
	"fmt"
	"sort"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/jmylchreest/smelly/pkg/grammar"
)

// javaTypeNodes maps tree-sitter type declarations to Declaration.Type.
var javaTypeNodes = map[string]string{
	"class_declaration":           "class",
	"interface_declaration":       "interface",
	"enum_declaration":            "enum",
	"record_declaration":          "record",
	"annotation_type_declaration": "annotation",
}

// javaMethodNodes are the member nodes recorded as KindMethod.
var javaMethodNodes = map[string]bool{
	"method_declaration":                  true,
	"constructor_declaration":             true,
	"compact_constructor_declaration":     true,
	"annotation_type_element_declaration": true,
}

// span is a half-open byte range of the source text.
type span struct{ start, end uint }

func (s span) contains(offset int) bool {
	return uint(offset) >= s.start && uint(offset) < s.end
}

// javaScope describes where a subtree sits: the declaration that owns
// anonymous classes found in it, the class that names them, and whether
// local variables are recorded (only inside method bodies).
type javaScope struct {
	owner  string
	class  string
	locals bool
}

type javaParser struct {
	content []byte
	toks    []Token
	decls   []*Declaration
	anon    map[string]int // anonymous classes seen per enclosing class
}

// parseJava extracts declarations from the tree-sitter Java syntax tree. The
// token slices attached to declarations (bodies, initializers) come from the
// lexer's stream, so token-level rules behave the same for both languages.
func parseJava(ctx context.Context, loader grammar.Loader, text string, toks []Token) ([]*Declaration, error) {
	content := []byte(text)
	tree, err := grammar.Parse(ctx, loader, LangJava, content)
	if err != nil {
		return nil, fmt.Errorf("java grammar: %w", err)
	}
	defer tree.Close()

	p := &javaParser{content: content, toks: toks, anon: make(map[string]int)}
	p.members(tree.RootNode(), "")
	return p.decls, nil
}

func line(n *tree_sitter.Node) int    { return int(n.StartPosition().Row) + 1 }
func endLine(n *tree_sitter.Node) int { return int(n.EndPosition().Row) + 1 }

func (p *javaParser) text(n *tree_sitter.Node) string { return n.Utf8Text(p.content) }

// tokens returns the lexer tokens starting inside [lo, hi), minus those in
// holes.
func (p *javaParser) tokens(lo, hi uint, holes []span) []Token {
	i := sort.Search(len(p.toks), func(i int) bool { return p.toks[i].Offset >= int(lo) })
	j := sort.Search(len(p.toks), func(i int) bool { return p.toks[i].Offset >= int(hi) })
	if i >= j {
		return nil
	}
	if len(holes) == 0 {
		return p.toks[i:j:j]
	}
	var out []Token
next:
	for _, t := range p.toks[i:j] {
		for _, h := range holes {
			if h.contains(t.Offset) {
				continue next
			}
		}
		out = append(out, t)
	}
	return out
}

// join renders a node's tokens, e.g. "Map<String, List<Integer>>".
func (p *javaParser) join(n *tree_sitter.Node) string {
	if n == nil {
		return ""
	}
	return joinTokens(p.tokens(n.StartByte(), n.EndByte(), nil))
}

// members records the member declarations among the children of n, a class
// body or the program root.
func (p *javaParser) members(n *tree_sitter.Node, owner string) {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		kind := c.Kind()
		switch {
		case javaTypeNodes[kind] != "":
			p.class(c, owner)
		case javaMethodNodes[kind]:
			p.method(c, owner)
		case kind == "field_declaration" || kind == "constant_declaration":
			p.variables(c, KindField, owner, javaScope{class: owner}, nil)
		case kind == "local_variable_declaration" && owner == "":
			// top-level statements of a snippet
			p.variables(c, KindField, owner, javaScope{}, nil)
		case kind == "enum_constant":
			if body := c.ChildByFieldName("body"); body != nil {
				p.anonymous(body, c.ChildByFieldName("name"), owner, owner)
			}
		case kind == "enum_body_declarations" || kind == "ERROR":
			p.members(c, owner)
		}
	}
}

func (p *javaParser) class(n *tree_sitter.Node, owner string) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	d := &Declaration{
		Kind:       KindClass,
		Name:       p.text(name),
		Owner:      owner,
		Type:       javaTypeNodes[n.Kind()],
		Line:       line(name),
		EndLine:    endLine(n),
		NameOffset: int(name.StartByte()),
	}
	p.modifiers(n, d)
	body := n.ChildByFieldName("body")
	d.HasBody = body != nil
	p.decls = append(p.decls, d)

	// A record header declares the canonical constructor.
	if params := n.ChildByFieldName("parameters"); params != nil {
		p.decls = append(p.decls, &Declaration{
			Kind:       KindMethod,
			Name:       d.Name,
			Owner:      d.Name,
			Params:     p.params(params),
			Line:       line(name),
			EndLine:    endLine(params),
			NameOffset: int(name.StartByte()),
			EndOffset:  int(params.EndByte()),
		})
	}
	if body != nil {
		p.members(body, d.Name)
	}
}

// anonymous records a class body without a name: an anonymous class
// instance or an enum constant body. It is named the way javac names it,
// Outer$N.
func (p *javaParser) anonymous(body, anchor *tree_sitter.Node, owner, class string) {
	if anchor == nil {
		anchor = body
	}
	p.anon[class]++
	d := &Declaration{
		Kind:       KindClass,
		Name:       fmt.Sprintf("%s$%d", class, p.anon[class]),
		Owner:      owner,
		Type:       "anonymous",
		Line:       line(anchor),
		EndLine:    endLine(body),
		NameOffset: int(anchor.StartByte()),
		HasBody:    true,
	}
	p.decls = append(p.decls, d)
	p.members(body, d.Name)
}

func (p *javaParser) method(n *tree_sitter.Node, owner string) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	d := &Declaration{
		Kind:       KindMethod,
		Name:       p.text(name),
		Owner:      owner,
		Line:       line(name),
		EndLine:    endLine(n),
		NameOffset: int(name.StartByte()),
		EndOffset:  int(n.EndByte()),
	}
	p.modifiers(n, d)
	if typ := n.ChildByFieldName("type"); typ != nil {
		d.Type = p.join(typ) + p.join(n.ChildByFieldName("dimensions"))
	}
	if params := n.ChildByFieldName("parameters"); params != nil {
		d.Params = p.params(params)
	}
	p.decls = append(p.decls, d)

	body := n.ChildByFieldName("body")
	if body == nil || body.EndByte()-body.StartByte() < 2 {
		return
	}
	var holes []span
	p.scope(body, javaScope{owner: d.Name, class: owner, locals: true}, &holes)

	lo, hi := body.StartByte()+1, body.EndByte()-1
	d.HasBody = true
	d.BodyTokens = p.tokens(lo, hi, holes)
	d.Body = string(p.content[lo:hi])
	d.BodyStatements = CountStatements(d.BodyTokens, LangJava)
}

// modifiers collects the modifier keywords and annotations of a declaration.
func (p *javaParser) modifiers(n *tree_sitter.Node, d *Declaration) {
	var mods []string
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		switch c.Kind() {
		case "modifiers":
			for j := uint(0); j < c.ChildCount(); j++ {
				m := c.Child(j)
				if a := p.annotation(m); a != "" {
					d.Annotations = append(d.Annotations, a)
				} else if !m.IsNamed() {
					mods = append(mods, p.text(m))
				}
			}
		case "annotation", "marker_annotation":
			if a := p.annotation(c); a != "" {
				d.Annotations = append(d.Annotations, a)
			}
		}
	}
	d.Modifiers = normalize(append(d.Modifiers, mods...))
}

// annotation returns the name of an annotation node, without the '@'.
func (p *javaParser) annotation(n *tree_sitter.Node) string {
	switch n.Kind() {
	case "annotation", "marker_annotation":
		if name := n.ChildByFieldName("name"); name != nil {
			return p.text(name)
		}
	}
	return ""
}

func (p *javaParser) params(n *tree_sitter.Node) []Param {
	var out []Param
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		switch c.Kind() {
		case "formal_parameter":
			name, typ := c.ChildByFieldName("name"), c.ChildByFieldName("type")
			if name == nil || typ == nil {
				continue
			}
			out = append(out, Param{
				Name: p.text(name),
				Type: p.join(typ) + p.join(c.ChildByFieldName("dimensions")),
			})
		case "spread_parameter":
			var typ, decl *tree_sitter.Node
			for j := uint(0); j < c.NamedChildCount(); j++ {
				switch k := c.NamedChild(j); k.Kind() {
				case "modifiers", "annotation", "marker_annotation":
				case "variable_declarator":
					decl = k
				default:
					if typ == nil {
						typ = k
					}
				}
			}
			if typ == nil || decl == nil || decl.ChildByFieldName("name") == nil {
				continue
			}
			out = append(out, Param{Name: p.text(decl.ChildByFieldName("name")), Type: p.join(typ) + "..."})
		}
	}
	return out
}

// variables records one declaration per declarator of a field, constant or
// local variable declaration. Anonymous classes in initializers are
// recorded after the variable that holds them, and their bodies are left out
// of its Init and appended to holes.
func (p *javaParser) variables(n *tree_sitter.Node, kind, owner string, sc javaScope, holes *[]span) {
	typ := n.ChildByFieldName("type")
	if typ == nil {
		return
	}
	base := Declaration{Kind: kind, Owner: owner}
	p.modifiers(n, &base)
	if n.Kind() == "constant_declaration" {
		// interface fields are implicitly public static final
		base.Modifiers = normalize(append(base.Modifiers, "public", "static", "final"))
	}
	typeText := p.join(typ)

	cursor := n.Walk()
	defer cursor.Close()
	for _, decl := range n.ChildrenByFieldName("declarator", cursor) {
		name := decl.ChildByFieldName("name")
		if name == nil {
			continue
		}
		d := base
		d.Name = p.text(name)
		d.Type = typeText + p.join(decl.ChildByFieldName("dimensions"))
		d.Line = line(name)
		d.EndLine = d.Line
		d.NameOffset = int(name.StartByte())
		p.decls = append(p.decls, &d)

		value := decl.ChildByFieldName("value")
		if value == nil {
			continue
		}
		inner := sc
		if kind == KindField {
			inner.owner = d.Name
		}
		var nested []span
		p.scope(value, inner, &nested)
		d.Init = p.tokens(value.StartByte(), value.EndByte(), nested)
		d.EndLine = endLine(value)
		if holes != nil {
			*holes = append(*holes, nested...)
		}
	}
}

// scope walks a method body or initializer. It records local variables when
// sc.locals is set, and anonymous and local classes always; the extent of
// each class body is appended to holes.
func (p *javaParser) scope(n *tree_sitter.Node, sc javaScope, holes *[]span) {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		kind := c.Kind()
		switch {
		case kind == "class_body":
			// only reachable through object_creation_expression
			p.anonymous(c, n.ChildByFieldName("type"), sc.owner, sc.class)
			*holes = append(*holes, span{c.StartByte(), c.EndByte()})
		case javaTypeNodes[kind] != "":
			p.class(c, sc.owner)
			*holes = append(*holes, span{c.StartByte(), c.EndByte()})
		case kind == "local_variable_declaration" && sc.locals:
			p.variables(c, KindLocal, sc.owner, sc, holes)
		case kind == "enhanced_for_statement" && sc.locals:
			p.local(c, nil, sc.owner)
			p.scope(c, sc, holes)
		case kind == "resource" && sc.locals:
			value := c.ChildByFieldName("value")
			p.local(c, value, sc.owner)
			if value != nil {
				p.scope(value, sc, holes)
			}
		default:
			p.scope(c, sc, holes)
		}
	}
}

// local records the variable of an enhanced for loop or a try resource.
// Resources that name an existing variable declare nothing.
func (p *javaParser) local(n, value *tree_sitter.Node, owner string) {
	name, typ := n.ChildByFieldName("name"), n.ChildByFieldName("type")
	if name == nil || typ == nil {
		return
	}
	d := &Declaration{
		Kind:       KindLocal,
		Name:       p.text(name),
		Owner:      owner,
		Type:       p.join(typ) + p.join(n.ChildByFieldName("dimensions")),
		Line:       line(name),
		EndLine:    line(name),
		NameOffset: int(name.StartByte()),
	}
	p.modifiers(n, d)
	if value != nil {
		d.Init = p.tokens(value.StartByte(), value.EndByte(), nil)
		d.EndLine = endLine(value)
	}
	p.decls = append(p.decls, d)
}
