// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package framegraph

import (
	"fmt"

	"github.com/smartens/q2re/framegraph/grammar"
)

// Graph is the ordered sequence of compiled Passes produced by a
// frame-graph build, together with the central tables its passes'
// Global root arguments are deduplicated into.
type Graph struct {
	Passes []*Pass

	passGlobalDedup *dedupTable
	objGlobalTables map[InputType]*dedupTable
}

// NewGraph returns an empty Graph ready to have passes compiled into
// it via lowerRootParams.
func NewGraph() *Graph {
	return &Graph{
		passGlobalDedup: newDedupTable(),
		objGlobalTables: map[InputType]*dedupTable{},
	}
}

// PassesGlobalRes is the flat pool referenced by every pass's
// PassGlobalRootArgsIndices.
func (g *Graph) PassesGlobalRes() []RootArgument { return g.passGlobalDedup.Pool }

// ObjGlobalResTemplate is the per-InputType pool referenced by
// PerObjGlobalRootArgsIndicesTemplate.
func (g *Graph) ObjGlobalResTemplate(input InputType) []RootArgument {
	if t, ok := g.objGlobalTables[input]; ok {
		return t.Pool
	}
	return nil
}

func (g *Graph) objGlobalDedup(input InputType) *dedupTable {
	t, ok := g.objGlobalTables[input]
	if !ok {
		t = newDedupTable()
		g.objGlobalTables[input] = t
	}
	return t
}

// globalValidator accumulates the canonical form of every named
// Global resource seen so far, so Validate can detect
// ResourceNameCollision across passes without re-walking everything.
type globalValidator struct {
	perPass   map[string]Resource
	perObject map[InputType]map[string]Resource
}

func newGlobalValidator() *globalValidator {
	return &globalValidator{
		perPass:   map[string]Resource{},
		perObject: map[InputType]map[string]Resource{},
	}
}

// Validate performs the four checks of the resource model as a
// standalone pre-pass, independent of pipeline compilation: unique
// names within a pass; Global PerPass structural equality across
// passes; Global PerObject structural equality within one input type;
// and the cross-program PerPass/PerObject namespace disjointness rule.
func (g *globalValidator) Validate(name string, input InputType, decls []grammar.ResourceDecl) error {
	seen := map[string]bool{}
	for _, d := range decls {
		if seen[d.Name] {
			return newFgErr(ErrResourceNameCollision,
				fmt.Sprintf("pass %q: duplicate resource name %q", name, d.Name))
		}
		seen[d.Name] = true
	}

	cb, tex, splr := resourceMaps(decls)
	all := map[string]Resource{}
	for _, m := range []map[int]Resource{cb, tex, splr} {
		for _, r := range m {
			all[r.Name] = r
		}
	}

	for n, r := range all {
		switch {
		case r.Freq == FreqPerPass && r.Scope == ScopeGlobal:
			if prev, ok := g.perPass[n]; ok {
				if !prev.StructurallyEqual(&r) {
					return newFgErr(ErrResourceNameCollision,
						fmt.Sprintf("global PerPass resource %q: structural mismatch between passes", n))
				}
			} else {
				g.perPass[n] = r
			}
			if _, ok := g.objNameUsed(n); ok {
				return newFgErr(ErrResourceNameCollision,
					fmt.Sprintf("resource %q declared both PerPass and PerObject", n))
			}

		case r.Freq == FreqPerObject && r.Scope == ScopeGlobal:
			byInput := g.perObject[input]
			if byInput == nil {
				byInput = map[string]Resource{}
				g.perObject[input] = byInput
			}
			if prev, ok := byInput[n]; ok {
				if !prev.StructurallyEqual(&r) {
					return newFgErr(ErrResourceNameCollision,
						fmt.Sprintf("global PerObject resource %q: structural mismatch for input %s", n, input))
				}
			} else {
				byInput[n] = r
			}
			if _, ok := g.perPass[n]; ok {
				return newFgErr(ErrResourceNameCollision,
					fmt.Sprintf("resource %q declared both PerPass and PerObject", n))
			}
		}
	}
	return nil
}

func (g *globalValidator) objNameUsed(name string) (Resource, bool) {
	for _, m := range g.perObject {
		if r, ok := m[name]; ok {
			return r, true
		}
	}
	return Resource{}, false
}
