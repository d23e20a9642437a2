// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package grammar

// InputType names the pass's input variant, set by the grammar's
// "input" statement.
type InputType int

const (
	InputUI InputType = iota
	InputStatic
	InputDynamic
	InputParticles
)

func (t InputType) String() string {
	switch t {
	case InputUI:
		return "UI"
	case InputStatic:
		return "Static"
	case InputDynamic:
		return "Dynamic"
	case InputParticles:
		return "Particles"
	default:
		return "undefined"
	}
}

// ScopeTag is the Scope axis of a Resource declaration.
type ScopeTag int

const (
	ScopeLocal ScopeTag = iota
	ScopeGlobal
)

// FreqTag is the bind-frequency axis of a Resource declaration.
type FreqTag int

const (
	FreqPerObject FreqTag = iota
	FreqPerPass
)

// ResourceKind is the tagged-variant selector of a Resource
// declaration.
type ResourceKind int

const (
	KindConstBuffer ResourceKind = iota
	KindTexture
	KindSampler
)

// Field is a single (type, name) pair in a ConstBuffer's field list.
type Field struct {
	Type string
	Name string
}

// ResourceDecl is a parsed `Resource <Scope> <BindFrequency> <kind> ...`
// declaration.
type ResourceDecl struct {
	Pos      Pos
	Scope    ScopeTag
	Freq     FreqTag
	Kind     ResourceKind
	Name     string
	Register int
	Fields   []Field // ConstBuffer only
}

// VertAttrField is a single field of a VertAttr declaration.
type VertAttrField struct {
	Type string
	Name string
}

// VertAttrDecl is a free `VertAttr <name> { ... }` declaration.
type VertAttrDecl struct {
	Pos    Pos
	Name   string
	Fields []VertAttrField
}

// FunctionDecl is a free `Function <name> { ... }` declaration,
// reusable from a Shader's externals list.
type FunctionDecl struct {
	Pos    Pos
	Name   string
	Source string
}

// ShaderType selects the shader stage of a Shader declaration.
type ShaderType int

const (
	ShaderVS ShaderType = iota
	ShaderGS
	ShaderPS
)

func (t ShaderType) String() string {
	switch t {
	case ShaderVS:
		return "Vs"
	case ShaderGS:
		return "Gs"
	case ShaderPS:
		return "Ps"
	default:
		return "undefined"
	}
}

// Profile5_1 returns the shader-model profile string for t, per the
// grammar's "shader type is compiled as profile <t>_5_1" rule.
func (t ShaderType) Profile5_1() string {
	switch t {
	case ShaderVS:
		return "vs_5_1"
	case ShaderGS:
		return "gs_5_1"
	case ShaderPS:
		return "ps_5_1"
	default:
		return "_5_1"
	}
}

// ShaderDecl is a parsed `Shader <Type> { externals[...], source ... }`
// block.
type ShaderDecl struct {
	Pos       Pos
	Type      ShaderType
	Externals []string
	Source    string
}

// RootParamKind selects between the two root-parameter variants.
type RootParamKind int

const (
	RootParamCBV RootParamKind = iota
	RootParamTable
)

// TableEntryKind is the kind of a single descriptor-table sub-entry.
type TableEntryKind int

const (
	EntryCBV TableEntryKind = iota
	EntrySRV
	EntrySampler
	EntryUAV // accepted by the grammar, unsupported — hard error
)

// TableEntry is a single sub-entry of a descriptor-table root
// parameter.
type TableEntry struct {
	Pos      Pos
	Kind     TableEntryKind
	Register int
}

// RootParamDecl is a single root parameter of a RootSig block: either
// an inline CBV or a descriptor table.
type RootParamDecl struct {
	Pos Pos
	Kind RootParamKind

	// Inline CBV.
	Register int
	Num      int

	// Descriptor table.
	Entries []TableEntry

	StaticSampler bool // accepted by the grammar, unsupported — hard error
}

// ViewportVal is a single viewport component: either a literal pixel
// count or a fraction of the current draw-area size.
type ViewportVal struct {
	IsFraction bool
	Value      float32
}

// Viewport is the parsed `viewport` statement of a State block.
type Viewport struct {
	X, Y, W, H ViewportVal
}

// StateBlock is the parsed `State { ... }` block.
type StateBlock struct {
	Pos            Pos
	ColorTarget    string
	DepthTarget    string
	Viewport       Viewport
	BlendEnable    bool
	BlendSrc       string
	BlendDst       string
	DepthWriteMask bool
	Topology       string
}

// PassFile is the root AST node produced by parsing one pass source
// file.
type PassFile struct {
	Pos           Pos
	Name          string // stem of the source filename
	Input         InputType
	VertAttrName  string
	VertAttrSlots map[string]int // field name -> input slot
	State         StateBlock
	Shaders       []ShaderDecl
	RootSig       []RootParamDecl
	Resources     []ResourceDecl
	VertAttrs     []VertAttrDecl
	Functions     []FunctionDecl
}

// FrameGraphFile is the root AST node produced by parsing the
// frame-graph file: an ordered list of pass names.
type FrameGraphFile struct {
	Pos       Pos
	PassNames []string
}
