// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package grammar

import (
	"strconv"
	"strings"
	"text/scanner"
)

// ParsePass parses the pass grammar, producing a PassFile. name is the
// stem of the source file (the pass name); src must already have been
// through Preprocess.
func ParsePass(name, src string) (*PassFile, error) {
	p := &passParser{t: newTokenizer(name, strings.NewReader(src))}
	pf := &PassFile{Name: name, VertAttrSlots: map[string]int{}}
	if _, _, pos := p.t.Peek(); true {
		pf.Pos = pos
	}
	for !p.t.AtEOF() {
		kw, tok, pos := p.t.Next()
		if tok == scanner.EOF {
			break
		}
		switch kw {
		case "input":
			it, err := p.parseInput()
			if err != nil {
				return nil, err
			}
			pf.Input = it
		case "vertAttr":
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			pf.VertAttrName = name
		case "vertAttrSlots":
			slots, err := p.parseVertAttrSlots()
			if err != nil {
				return nil, err
			}
			for k, v := range slots {
				pf.VertAttrSlots[k] = v
			}
		case "VertAttr":
			decl, err := p.parseVertAttrDecl(pos)
			if err != nil {
				return nil, err
			}
			pf.VertAttrs = append(pf.VertAttrs, *decl)
		case "Function":
			decl, err := p.parseFunctionDecl(pos)
			if err != nil {
				return nil, err
			}
			pf.Functions = append(pf.Functions, *decl)
		case "State":
			sb, err := p.parseState(pos)
			if err != nil {
				return nil, err
			}
			pf.State = *sb
		case "Shader":
			sd, err := p.parseShader(pos)
			if err != nil {
				return nil, err
			}
			pf.Shaders = append(pf.Shaders, *sd)
		case "RootSig":
			rs, err := p.parseRootSig(pos)
			if err != nil {
				return nil, err
			}
			pf.RootSig = rs
		case "Resource":
			rd, err := p.parseResource(pos)
			if err != nil {
				return nil, err
			}
			pf.Resources = append(pf.Resources, *rd)
		default:
			return nil, errAt(pos, "unexpected token %q", kw)
		}
	}
	return pf, nil
}

type passParser struct{ t *tokenizer }

func (p *passParser) expectIdent() (string, error) {
	text, tok, pos := p.t.Next()
	if tok != scanner.Ident {
		return "", errAt(pos, "expected identifier, got %q", text)
	}
	return text, nil
}

func (p *passParser) expectPunct(r rune) error {
	text, tok, pos := p.t.Next()
	if tok != r {
		return errAt(pos, "expected %q, got %q", string(r), text)
	}
	return nil
}

func (p *passParser) expectString() (string, error) {
	text, tok, pos := p.t.Next()
	if tok != scanner.String && tok != scanner.RawString {
		return "", errAt(pos, "expected string literal, got %q", text)
	}
	return unquote(text), nil
}

func (p *passParser) expectNumber() (float32, error) {
	text, tok, pos := p.t.Next()
	neg := false
	if tok == '-' {
		neg = true
		text, tok, pos = p.t.Next()
	}
	if tok != scanner.Int && tok != scanner.Float {
		return 0, errAt(pos, "expected number, got %q", text)
	}
	v, err := strconv.ParseFloat(text, 32)
	if err != nil {
		return 0, errAt(pos, "invalid number %q", text)
	}
	if neg {
		v = -v
	}
	return float32(v), nil
}

func (p *passParser) expectInt() (int, error) {
	text, tok, pos := p.t.Next()
	neg := false
	if tok == '-' {
		neg = true
		text, tok, pos = p.t.Next()
	}
	if tok != scanner.Int {
		return 0, errAt(pos, "expected integer, got %q", text)
	}
	v, err := strconv.Atoi(text)
	if err != nil {
		return 0, errAt(pos, "invalid integer %q", text)
	}
	if neg {
		v = -v
	}
	return v, nil
}

func (p *passParser) expectBool() (bool, error) {
	text, err := p.expectIdent()
	if err != nil {
		return false, err
	}
	switch text {
	case "true", "on", "enable":
		return true, nil
	case "false", "off", "disable":
		return false, nil
	default:
		return false, errAt(p.pos(), "expected boolean, got %q", text)
	}
}

func (p *passParser) pos() Pos {
	_, _, pos := p.t.Peek()
	return pos
}

func (p *passParser) parseInput() (InputType, error) {
	name, err := p.expectIdent()
	if err != nil {
		return 0, err
	}
	switch name {
	case "UI":
		return InputUI, nil
	case "Static":
		return InputStatic, nil
	case "Dynamic":
		return InputDynamic, nil
	case "Particles":
		return InputParticles, nil
	default:
		return 0, errAt(p.pos(), "unknown input type %q", name)
	}
}

func (p *passParser) parseVertAttrSlots() (map[string]int, error) {
	if err := p.expectPunct('{'); err != nil {
		return nil, err
	}
	m := map[string]int{}
	for {
		if text, tok, _ := p.t.Peek(); tok == '}' {
			p.t.Next()
			_ = text
			break
		}
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(':'); err != nil {
			return nil, err
		}
		n, err := p.expectInt()
		if err != nil {
			return nil, err
		}
		m[name] = n
		if text, tok, _ := p.t.Peek(); tok == ',' && text == "," {
			p.t.Next()
		}
	}
	return m, nil
}

func (p *passParser) parseVertAttrDecl(pos Pos) (*VertAttrDecl, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct('{'); err != nil {
		return nil, err
	}
	decl := &VertAttrDecl{Pos: pos, Name: name}
	for {
		if _, tok, _ := p.t.Peek(); tok == '}' {
			p.t.Next()
			break
		}
		typ, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		fname, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		decl.Fields = append(decl.Fields, VertAttrField{Type: typ, Name: fname})
	}
	return decl, nil
}

func (p *passParser) parseFunctionDecl(pos Pos) (*FunctionDecl, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	src, err := p.expectString()
	if err != nil {
		return nil, err
	}
	return &FunctionDecl{Pos: pos, Name: name, Source: indentBlock(src)}, nil
}

func (p *passParser) parseViewportVal() (ViewportVal, error) {
	text, tok, pos := p.t.Peek()
	if tok == scanner.Float || strings.Contains(text, ".") {
		v, err := p.expectNumber()
		if err != nil {
			return ViewportVal{}, err
		}
		return ViewportVal{IsFraction: true, Value: v}, nil
	}
	if tok != scanner.Int {
		return ViewportVal{}, errAt(pos, "expected viewport value, got %q", text)
	}
	v, err := p.expectNumber()
	if err != nil {
		return ViewportVal{}, err
	}
	return ViewportVal{IsFraction: false, Value: v}, nil
}

func (p *passParser) parseState(pos Pos) (*StateBlock, error) {
	if err := p.expectPunct('{'); err != nil {
		return nil, err
	}
	sb := &StateBlock{Pos: pos}
	for {
		if _, tok, _ := p.t.Peek(); tok == '}' {
			p.t.Next()
			break
		}
		kw, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		switch kw {
		case "colorTarget":
			s, err := p.expectString()
			if err != nil {
				return nil, err
			}
			sb.ColorTarget = s
		case "depthTarget":
			s, err := p.expectString()
			if err != nil {
				return nil, err
			}
			sb.DepthTarget = s
		case "viewport":
			x, err := p.parseViewportVal()
			if err != nil {
				return nil, err
			}
			y, err := p.parseViewportVal()
			if err != nil {
				return nil, err
			}
			w, err := p.parseViewportVal()
			if err != nil {
				return nil, err
			}
			h, err := p.parseViewportVal()
			if err != nil {
				return nil, err
			}
			sb.Viewport = Viewport{X: x, Y: y, W: w, H: h}
		case "blendEnable":
			b, err := p.expectBool()
			if err != nil {
				return nil, err
			}
			sb.BlendEnable = b
		case "blendSrc":
			s, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			sb.BlendSrc = s
		case "blendDst":
			s, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			sb.BlendDst = s
		case "depthWrite":
			b, err := p.expectBool()
			if err != nil {
				return nil, err
			}
			sb.DepthWriteMask = b
		case "topology":
			s, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			sb.Topology = s
		default:
			return nil, errAt(p.pos(), "unknown State field %q", kw)
		}
	}
	return sb, nil
}

func (p *passParser) parseShader(pos Pos) (*ShaderDecl, error) {
	typName, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	var typ ShaderType
	switch typName {
	case "Vs":
		typ = ShaderVS
	case "Gs":
		typ = ShaderGS
	case "Ps":
		typ = ShaderPS
	default:
		return nil, errAt(pos, "unknown shader type %q", typName)
	}
	if err := p.expectPunct('{'); err != nil {
		return nil, err
	}
	sd := &ShaderDecl{Pos: pos, Type: typ}
	for {
		if _, tok, _ := p.t.Peek(); tok == '}' {
			p.t.Next()
			break
		}
		kw, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		switch kw {
		case "externals":
			ext, err := p.parseIdentList()
			if err != nil {
				return nil, err
			}
			sd.Externals = ext
		case "source":
			s, err := p.expectString()
			if err != nil {
				return nil, err
			}
			sd.Source = indentBlock(s)
		default:
			return nil, errAt(p.pos(), "unknown Shader field %q", kw)
		}
	}
	return sd, nil
}

func (p *passParser) parseIdentList() ([]string, error) {
	if err := p.expectPunct('['); err != nil {
		return nil, err
	}
	var out []string
	for {
		if _, tok, _ := p.t.Peek(); tok == ']' {
			p.t.Next()
			break
		}
		id, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		out = append(out, id)
		if _, tok, _ := p.t.Peek(); tok == ',' {
			p.t.Next()
		}
	}
	return out, nil
}

func (p *passParser) parseRootSig(pos Pos) ([]RootParamDecl, error) {
	if err := p.expectPunct('{'); err != nil {
		return nil, err
	}
	var params []RootParamDecl
	for {
		if _, tok, _ := p.t.Peek(); tok == '}' {
			p.t.Next()
			break
		}
		kw, ppos, err := p.identAt()
		if err != nil {
			return nil, err
		}
		switch kw {
		case "CBV":
			if err := p.expectPunct('('); err != nil {
				return nil, err
			}
			reg, err := p.expectInt()
			if err != nil {
				return nil, err
			}
			num := 1
			if _, tok, _ := p.t.Peek(); tok == ',' {
				p.t.Next()
				num, err = p.expectInt()
				if err != nil {
					return nil, err
				}
			}
			if err := p.expectPunct(')'); err != nil {
				return nil, err
			}
			params = append(params, RootParamDecl{Pos: ppos, Kind: RootParamCBV, Register: reg, Num: num})
		case "Table":
			entries, err := p.parseTable()
			if err != nil {
				return nil, err
			}
			params = append(params, RootParamDecl{Pos: ppos, Kind: RootParamTable, Entries: entries})
		case "StaticSampler":
			// Accepted by the grammar; unsupported.
			if err := p.skipParens(); err != nil {
				return nil, err
			}
			params = append(params, RootParamDecl{Pos: ppos, StaticSampler: true})
		default:
			return nil, errAt(ppos, "unknown root parameter %q", kw)
		}
	}
	return params, nil
}

func (p *passParser) identAt() (string, Pos, error) {
	text, tok, pos := p.t.Next()
	if tok != scanner.Ident {
		return "", pos, errAt(pos, "expected identifier, got %q", text)
	}
	return text, pos, nil
}

func (p *passParser) skipParens() error {
	if _, tok, _ := p.t.Peek(); tok != '(' {
		return nil
	}
	p.t.Next()
	depth := 1
	for depth > 0 {
		_, tok, pos := p.t.Next()
		if tok == scanner.EOF {
			return errAt(pos, "unexpected EOF while skipping parameter list")
		}
		switch tok {
		case '(':
			depth++
		case ')':
			depth--
		}
	}
	return nil
}

func (p *passParser) parseTable() ([]TableEntry, error) {
	if err := p.expectPunct('{'); err != nil {
		return nil, err
	}
	var entries []TableEntry
	for {
		if _, tok, _ := p.t.Peek(); tok == '}' {
			p.t.Next()
			break
		}
		kw, pos, err := p.identAt()
		if err != nil {
			return nil, err
		}
		var kind TableEntryKind
		switch kw {
		case "CBV":
			kind = EntryCBV
		case "SRV":
			kind = EntrySRV
		case "Sampler":
			kind = EntrySampler
		case "UAV":
			kind = EntryUAV
		default:
			return nil, errAt(pos, "unknown descriptor-table entry %q", kw)
		}
		if err := p.expectPunct('('); err != nil {
			return nil, err
		}
		reg, err := p.expectInt()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(')'); err != nil {
			return nil, err
		}
		entries = append(entries, TableEntry{Pos: pos, Kind: kind, Register: reg})
	}
	return entries, nil
}

func (p *passParser) parseResource(pos Pos) (*ResourceDecl, error) {
	scopeName, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	var scope ScopeTag
	switch scopeName {
	case "Local":
		scope = ScopeLocal
	case "Global":
		scope = ScopeGlobal
	default:
		return nil, errAt(pos, "unknown scope %q", scopeName)
	}
	freqName, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	var freq FreqTag
	switch freqName {
	case "PerObject":
		freq = FreqPerObject
	case "PerPass":
		freq = FreqPerPass
	default:
		return nil, errAt(pos, "unknown bind frequency %q", freqName)
	}
	kindName, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	var kind ResourceKind
	switch kindName {
	case "ConstBuffer":
		kind = KindConstBuffer
	case "Texture":
		kind = KindTexture
	case "Sampler":
		kind = KindSampler
	default:
		return nil, errAt(pos, "unknown resource kind %q", kindName)
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(':'); err != nil {
		return nil, err
	}
	if kw, err := p.expectIdent(); err != nil || kw != "register" {
		if err != nil {
			return nil, err
		}
		return nil, errAt(pos, "expected %q, got %q", "register", kw)
	}
	if err := p.expectPunct('('); err != nil {
		return nil, err
	}
	reg, err := p.expectInt()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(')'); err != nil {
		return nil, err
	}
	rd := &ResourceDecl{Pos: pos, Scope: scope, Freq: freq, Kind: kind, Name: name, Register: reg}
	if kind == KindConstBuffer {
		if err := p.expectPunct('{'); err != nil {
			return nil, err
		}
		for {
			if _, tok, _ := p.t.Peek(); tok == '}' {
				p.t.Next()
				break
			}
			typ, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			fname, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			rd.Fields = append(rd.Fields, Field{Type: typ, Name: fname})
			if _, tok, _ := p.t.Peek(); tok == ';' {
				p.t.Next()
			}
		}
	}
	return rd, nil
}
