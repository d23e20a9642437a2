// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package framegraph

import (
	"github.com/smartens/q2re/driver"
	"github.com/smartens/q2re/framegraph/grammar"
)

// InputType is the tagged-variant selector of a Pass.
type InputType = grammar.InputType

const (
	InputUI         = grammar.InputUI
	InputStatic     = grammar.InputStatic
	InputDynamic    = grammar.InputDynamic
	InputParticles  = grammar.InputParticles
)

// VertAttrField describes one field of the vertex-attribute schema
// bound to a Pass, in input-layout order.
type VertAttrField struct {
	Format driver.VertexFmt
	Slot   int
	Offset int
	Name   string
}

// Pass is the compiled, typed unit the frame-graph assembler emits:
// tagged by InputType, carrying its PSO/root-signature handles and
// the three root-argument groups routeArg splits declarations into.
type Pass struct {
	Name     string
	Input    InputType
	Topology driver.Topology
	Viewport driver.Viewport // resolved against the draw-area size at compile time

	ColorTargetHash uint32
	DepthTargetHash uint32

	VertAttrs []VertAttrField

	PSO      driver.Pipeline
	RootSig  driver.DescTable

	// PassLocal arguments are private to this pass, never shared or
	// deduplicated.
	PassLocal []RootArgument

	// PerObjectLocalTemplate is instantiated once per drawn object;
	// UpdateDrawObjects fills it in from the object's own data.
	PerObjectLocalTemplate []RootArgument

	// PassGlobalRootArgsIndices index into the frame graph's shared
	// passesGlobalRes pool.
	PassGlobalRootArgsIndices []int

	// PerObjGlobalRootArgsIndicesTemplate index into the frame
	// graph's per-input-type objGlobalResTemplate pool.
	PerObjGlobalRootArgsIndicesTemplate []int
}

// resourceMaps splits a PassFile's flat Resources list into
// per-register maps keyed separately by kind, since a ConstBuffer at
// register 0 and a Texture at register 0 do not collide.
func resourceMaps(decls []grammar.ResourceDecl) (cb, tex, splr map[int]Resource) {
	cb = map[int]Resource{}
	tex = map[int]Resource{}
	splr = map[int]Resource{}
	for _, d := range decls {
		scope := ScopeLocal
		if d.Scope == grammar.ScopeGlobal {
			scope = ScopeGlobal
		}
		freq := FreqPerObject
		if d.Freq == grammar.FreqPerPass {
			freq = FreqPerPass
		}
		var fields []CBField
		for _, f := range d.Fields {
			fields = append(fields, CBField{Type: f.Type, Name: f.Name})
		}
		var kind ResourceKind
		var m map[int]Resource
		switch d.Kind {
		case grammar.KindConstBuffer:
			kind, m = KindConstBuffer, cb
		case grammar.KindTexture:
			kind, m = KindTexture, tex
		case grammar.KindSampler:
			kind, m = KindSampler, splr
		}
		m[d.Register] = NewResource(d.Name, d.Register, scope, freq, kind, fields)
	}
	return
}
