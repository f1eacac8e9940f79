package source

// Kotlin declarations are recovered from the token stream by brace and
// signature matching. The parser is shallow: it finds class, function,
// property and local boundaries and does not attempt grammar fidelity.

var (
	// Soft keywords such as "data" or "enum" are only modifiers when they
	// precede a declaration keyword.
	kotlinModifiers = toSet(
		"public", "protected", "private", "internal", "open", "final",
		"abstract", "override", "lateinit", "const", "data", "sealed",
		"inner", "enum", "annotation", "companion", "inline", "value",
		"suspend", "tailrec", "operator", "infix", "external", "vararg",
		"noinline", "crossinline", "reified", "expect", "actual",
	)

	// Tokens that may begin a member on a new line.
	kotlinMemberStart = toSet(
		"fun", "val", "var", "class", "interface", "object", "init",
		"constructor", "typealias", "import", "package",
	)
)

type kotlinParser struct {
	text  string
	toks  []Token
	match []int
	decls []*Declaration
}

func parseKotlin(text string, toks []Token) []*Declaration {
	p := &kotlinParser{text: text, toks: toks, match: matchBrackets(toks)}
	p.members(0, len(toks), "", false)
	return p.decls
}

func (p *kotlinParser) isOpen(i int) bool {
	t := p.toks[i]
	return t.Kind == TokOp && (t.Text == "(" || t.Text == "[" || t.Text == "{")
}

func (p *kotlinParser) modifier(t Token) bool {
	return t.Kind == TokIdent && kotlinModifiers[t.Text]
}

// members walks the members of a class body (or the file's top level) in
// toks[lo:hi].
func (p *kotlinParser) members(lo, hi int, owner string, enum bool) {
	i := lo
	if enum {
		i = p.skipEnumConstants(lo, hi)
	}
	for i < hi {
		end, body := p.segment(i, hi)
		p.declare(i, end, body, owner)
		i = end
	}
}

// skipEnumConstants returns the index after the ';' that ends an enum's
// constant list, or hi when the body holds constants only.
func (p *kotlinParser) skipEnumConstants(lo, hi int) int {
	for i := lo; i < hi; i++ {
		if p.isOpen(i) {
			i = p.match[i]
			continue
		}
		if p.toks[i].Is(";") {
			return i + 1
		}
	}
	return hi
}

// segment finds the extent of the member starting at start. It returns the
// index after the member and the index of the body's opening brace, or -1.
func (p *kotlinParser) segment(start, hi int) (end, body int) {
	assigned := false
	core := false // seen something other than annotations and modifiers
	for j := start; j < hi; j++ {
		t := p.toks[j]

		if j > start && t.NewlineBefore && core && p.memberBoundary(j) {
			return j, -1
		}

		switch {
		case t.Is("{"):
			if assigned {
				j = p.match[j]
				continue
			}
			return p.match[j] + 1, j
		case t.Is("(") || t.Is("["):
			if j == start || p.toks[j-1].Kind != TokAnnotation {
				core = true
			}
			j = p.match[j]
			continue
		case t.Is(";"):
			return j + 1, -1
		case t.Is("=") || t.Is("by"):
			assigned = true
		}

		if t.Kind != TokAnnotation && !p.modifier(t) {
			core = true
		}
	}
	return hi, -1
}

func (p *kotlinParser) memberBoundary(j int) bool {
	t := p.toks[j]
	if t.Kind == TokAnnotation {
		return true
	}
	if t.Kind != TokIdent {
		return false
	}
	if kotlinMemberStart[t.Text] {
		return true
	}
	// "private fun", "override val", "data class"
	return kotlinModifiers[t.Text] && j+1 < len(p.toks) && p.toks[j+1].Kind == TokIdent
}

// declare classifies one member segment and records its declarations.
func (p *kotlinParser) declare(start, end, body int, owner string) {
	hdrEnd := end
	if body >= 0 {
		hdrEnd = body
	} else if hdrEnd > start && p.toks[hdrEnd-1].Is(";") {
		hdrEnd--
	}
	if hdrEnd <= start {
		return
	}

	var mods, annos []string
	k := start
	for k < hdrEnd {
		t := p.toks[k]
		if t.Kind == TokAnnotation {
			annos = append(annos, t.Text[1:])
			k++
			if k < hdrEnd && p.toks[k].Is("(") {
				k = p.match[k] + 1
			}
			continue
		}
		if p.modifier(t) && k+1 < hdrEnd && p.toks[k+1].Kind != TokOp {
			mods = append(mods, t.Text)
			k++
			continue
		}
		break
	}
	if k >= hdrEnd {
		return // stray annotations
	}

	d := &Declaration{Owner: owner, Modifiers: normalize(mods), Annotations: annos}
	t := p.toks[k]
	switch {
	case t.Is("package") || t.Is("import") || t.Is("typealias") || t.Is("init"):
	case t.Is("class") || t.Is("interface") || t.Is("object"):
		p.declareClass(d, k, hdrEnd, body, t.Text)
	case t.Is("fun") && k+1 < hdrEnd && p.toks[k+1].Is("interface"):
		p.declareClass(d, k+1, hdrEnd, body, "interface")
	case t.Is("fun") || t.Is("constructor"):
		p.declareFun(d, k, hdrEnd, body)
	case t.Is("val") || t.Is("var"):
		d.Modifiers = normalize(append(d.Modifiers, t.Text))
		p.property(d, KindField, k, hdrEnd, end)
	}
}

func (p *kotlinParser) declareClass(d *Declaration, k, hdrEnd, body int, kind string) {
	nameIdx := k + 1
	if nameIdx >= hdrEnd || p.toks[nameIdx].Kind != TokIdent {
		if kind != "object" {
			return
		}
		// companion object / anonymous object
		d.Name = "Companion"
		nameIdx = k
	} else {
		d.Name = p.toks[nameIdx].Text
	}
	name := p.toks[nameIdx]
	d.Kind = KindClass
	d.Type = kind
	d.Line = name.Line
	d.NameOffset = name.Offset
	d.EndLine = p.toks[hdrEnd-1].Line
	if body >= 0 {
		d.HasBody = true
		d.EndLine = p.toks[p.match[body]].Line
	}
	p.decls = append(p.decls, d)

	if nameIdx+1 < hdrEnd {
		p.primaryConstructor(d.Name, name, nameIdx+1, hdrEnd)
	}
	if body >= 0 {
		p.members(body+1, p.match[body], d.Name, d.Has("enum"))
	}
}

// finishMethod fills in body information and records locals.
func (p *kotlinParser) finishMethod(d *Declaration, name Token, hdrEnd, body int) {
	d.Line = name.Line
	d.NameOffset = name.Offset
	d.EndLine = p.toks[hdrEnd-1].Line
	last := p.toks[hdrEnd-1]
	d.EndOffset = last.Offset + len(last.Text)
	p.decls = append(p.decls, d)

	if body < 0 {
		return
	}
	closing := p.match[body]
	d.HasBody = true
	d.EndLine = p.toks[closing].Line
	d.EndOffset = p.toks[closing].Offset + 1
	d.BodyTokens = p.toks[body+1 : closing]
	d.Body = p.text[p.toks[body].Offset+1 : p.toks[closing].Offset]
	d.BodyStatements = CountStatements(d.BodyTokens, LangKotlin)
	p.locals(body+1, closing, d.Name)
}

// locals records val/var declarations in toks[lo:hi], including those in
// nested blocks and lambdas.
func (p *kotlinParser) locals(lo, hi int, owner string) {
	for i := lo; i+1 < hi; i++ {
		t := p.toks[i]
		if !(t.Is("val") || t.Is("var")) || p.toks[i+1].Kind != TokIdent {
			continue
		}
		d := &Declaration{Owner: owner, Modifiers: []string{t.Text}}
		p.property(d, KindLocal, i, hi, hi)
	}
}

func (p *kotlinParser) declareFun(d *Declaration, k, hdrEnd, body int) {
	paren := -1
	for j := k + 1; j < hdrEnd; j++ {
		if p.toks[j].Is("<") {
			j = skipAngles(p.toks, j, hdrEnd) - 1
			continue
		}
		if p.toks[j].Is("(") {
			paren = j
			break
		}
	}
	if paren < 0 {
		return
	}
	name := p.toks[paren-1]
	d.Name = name.Text
	if p.toks[k].Is("constructor") {
		// Secondary constructors take the class name, like Java's.
		name = p.toks[k]
		d.Name = d.Owner
		if d.Name == "" {
			d.Name = name.Text
		}
	} else if name.Kind != TokIdent {
		return
	}

	d.Kind = KindMethod
	closing := p.match[paren]
	d.Params = p.params(paren+1, closing)

	j := closing + 1
	if j < hdrEnd && p.toks[j].Is(":") {
		typeEnd := j + 1
		for typeEnd < hdrEnd && !p.toks[typeEnd].Is("=") && !p.toks[typeEnd].Is("where") {
			if p.isOpen(typeEnd) {
				typeEnd = p.match[typeEnd]
			}
			typeEnd++
		}
		d.Type = joinTokens(p.toks[j+1 : typeEnd])
		j = typeEnd
	}
	for ; j < hdrEnd; j++ {
		if p.toks[j].Is("=") {
			d.Init = p.toks[j+1 : hdrEnd]
			break
		}
		if p.isOpen(j) {
			j = p.match[j]
		}
	}
	p.finishMethod(d, name, hdrEnd, body)
	if body < 0 && len(d.Init) > 0 {
		d.EndLine = d.Init[len(d.Init)-1].Line
		p.locals(hdrEnd-len(d.Init), hdrEnd, d.Name)
	}
}

// property records a val/var declared at toks[k].
func (p *kotlinParser) property(d *Declaration, kind string, k, hdrEnd, end int) {
	if k+1 >= hdrEnd || p.toks[k+1].Kind != TokIdent {
		return // destructuring declaration
	}
	nameIdx := k + 1
	// extension property: val String.size
	for nameIdx+2 < hdrEnd && p.toks[nameIdx+1].Is(".") && p.toks[nameIdx+2].Kind == TokIdent {
		nameIdx += 2
	}
	name := p.toks[nameIdx]
	d.Kind = kind
	d.Name = name.Text
	d.Line = name.Line
	d.EndLine = name.Line
	d.NameOffset = name.Offset

	j := nameIdx + 1
	if j < hdrEnd && p.toks[j].Is(":") {
		typeEnd := j + 1
		for typeEnd < hdrEnd && !p.toks[typeEnd].Is("=") && !p.toks[typeEnd].Is("by") && !p.toks[typeEnd].NewlineBefore {
			typeEnd++
		}
		d.Type = joinTokens(p.toks[j+1 : typeEnd])
		j = typeEnd
	}
	if j < hdrEnd && (p.toks[j].Is("=") || p.toks[j].Is("by")) {
		initEnd := exprEnd(p.toks, j+1, end)
		d.Init = p.toks[j+1 : initEnd]
		if initEnd > j+1 {
			d.EndLine = p.toks[initEnd-1].Line
		}
	}
	p.decls = append(p.decls, d)
}

func (p *kotlinParser) params(lo, hi int) []Param {
	var params []Param
	for _, part := range splitTopLevel(p.toks[lo:hi]) {
		name, typ := p.param(part)
		if name.Text == "" {
			continue
		}
		params = append(params, Param{Name: name.Text, Type: typ})
	}
	return params
}

// param returns the name token and type of one parameter, skipping its
// annotations, modifiers and val/var keyword.
func (p *kotlinParser) param(part []Token) (Token, string) {
	i := 0
	for i < len(part) {
		if part[i].Kind == TokAnnotation {
			i++
			if i < len(part) && part[i].Is("(") {
				i = closeIndex(part, i) + 1
			}
			continue
		}
		if p.modifier(part[i]) || part[i].Is("val") || part[i].Is("var") {
			i++
			continue
		}
		break
	}
	if i >= len(part) || part[i].Kind != TokIdent {
		return Token{}, ""
	}
	name := part[i]
	typ := ""
	if i+1 < len(part) && part[i+1].Is(":") {
		end := i + 2
		for end < len(part) && !part[end].Is("=") {
			end++
		}
		typ = joinTokens(part[i+2 : end])
	}
	return name, typ
}

// primaryConstructor records the constructor declared in a class header as a
// method named after the class, followed by its val/var parameters as fields
// of the class.
func (p *kotlinParser) primaryConstructor(owner string, className Token, lo, hi int) {
	i := lo
	if i < hi && p.toks[i].Is("<") {
		i = skipAngles(p.toks, i, hi)
	}
	var ctorMods, ctorAnnos []string
	for i < hi && (p.toks[i].Kind == TokAnnotation || p.modifier(p.toks[i]) || p.toks[i].Is("constructor")) {
		switch t := p.toks[i]; {
		case t.Kind == TokAnnotation:
			ctorAnnos = append(ctorAnnos, t.Text[1:])
		case p.modifier(t):
			ctorMods = append(ctorMods, t.Text)
		}
		i++
	}
	if i >= hi || !p.toks[i].Is("(") {
		return
	}
	closing := p.match[i]

	p.decls = append(p.decls, &Declaration{
		Kind:        KindMethod,
		Name:        owner,
		Owner:       owner,
		Modifiers:   normalize(ctorMods),
		Annotations: ctorAnnos,
		Params:      p.params(i+1, closing),
		Line:        className.Line,
		EndLine:     p.toks[closing].Line,
		NameOffset:  className.Offset,
		EndOffset:   p.toks[closing].Offset + 1,
	})

	for _, part := range splitTopLevel(p.toks[i+1 : closing]) {
		var mods, annos []string
		property := false
		for _, t := range part {
			if t.Kind == TokAnnotation {
				annos = append(annos, t.Text[1:])
			}
			if t.Is("val") || t.Is("var") {
				property = true
				mods = append(mods, t.Text)
				break
			}
			if p.modifier(t) {
				mods = append(mods, t.Text)
			}
		}
		if !property {
			continue
		}
		name, typ := p.param(part)
		if name.Text == "" {
			continue
		}
		p.decls = append(p.decls, &Declaration{
			Kind:        KindField,
			Name:        name.Text,
			Owner:       owner,
			Modifiers:   normalize(mods),
			Annotations: annos,
			Type:        typ,
			Line:        name.Line,
			EndLine:     name.Line,
			NameOffset:  name.Offset,
		})
	}
}
