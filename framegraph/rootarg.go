// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package framegraph

import (
	"fmt"

	"github.com/smartens/q2re/driver"
	"github.com/smartens/q2re/framegraph/grammar"
)

// ArgKind is the tagged-variant selector of a RootArgument.
type ArgKind int

const (
	ArgConstBufferView ArgKind = iota
	ArgDescTable
)

// DescTableEntry is one resolved sub-entry of a descriptor-table root
// argument.
type DescTableEntry struct {
	Kind      ResourceKind
	NameHash  uint32
	Register  int
	HeapIndex int // resolved index into the owning DescHeap; -1 until bound
}

// RootArgument is the runtime binding derived from a RootParam. It is
// bound when Handle (ConstBufferView) or every entry's HeapIndex
// (DescTable) is valid; until then it carries only the identity
// needed for deduplication and routing.
type RootArgument struct {
	Kind      ArgKind
	BindIndex int
	NameHash  uint32
	Name      string
	Register  int

	// ConstBufferView only. Handle is a weak reference: framegraph
	// never destroys it, the buffer subsystem (engine) owns it.
	Fields []CBField
	Handle driver.Buffer

	// DescTable only.
	Entries []DescTableEntry
}

func (a *RootArgument) key() argKey {
	k := argKey{name: a.Name, register: a.Register, argKind: a.Kind}
	for _, f := range a.Fields {
		k.fieldSig += f.Type + " " + f.Name + ";"
	}
	for _, e := range a.Entries {
		k.fieldSig += fmt.Sprintf("%d:%d:%d;", e.Kind, e.Register, e.NameHash)
	}
	return k
}

type argKey struct {
	name     string
	register int
	argKind  ArgKind
	fieldSig string
}

// dedupTable deduplicates RootArguments by scope-invariant identity
// (name + register + content), returning the index of the canonical
// copy within Pool every time an equal argument is seen again. Unlike
// the compiled-PSO cache in compile.go, a miss here is not allowed to
// silently fall back to "treat as new": that would intern the same
// global resource twice and violate the one-copy-per-identity
// invariant callers rely on (§4.B). The index is therefore kept in a
// plain map with no eviction — the key space is bounded by the total
// number of distinct global resources in one frame-graph build, not
// by frame count, so an LRU buys nothing here and risks exactly this
// correctness bug.
type dedupTable struct {
	index map[argKey]int
	Pool  []RootArgument
}

func newDedupTable() *dedupTable {
	return &dedupTable{index: map[argKey]int{}}
}

// intern returns the index of arg within d.Pool, appending it if no
// structurally-equal argument was interned before.
func (d *dedupTable) intern(arg RootArgument) int {
	k := arg.key()
	if idx, ok := d.index[k]; ok {
		return idx
	}
	idx := len(d.Pool)
	d.Pool = append(d.Pool, arg)
	d.index[k] = idx
	return idx
}

// lowerRootParams lowers pass's parsed root-signature declaration into
// RootArguments, routing each one into the correct template per the
// resource model's (scope, bindFrequency) rules. cb, tex and splr index
// the pass's own Resource declarations by register, separately per kind,
// since a CBV at register 0 and an SRV at register 0 do not collide.
func lowerRootParams(decls []grammar.RootParamDecl, cb, tex, splr map[int]Resource, fg *Graph, input InputType) ([]RootArgument, [][2]int, error) {
	var local []RootArgument
	var routed [][2]int // {kind: 0=passLocal 1=objLocal 2=passGlobal 3=objGlobal, index}

	for bindIndex, d := range decls {
		if d.StaticSampler {
			return nil, nil, newFgErr(ErrInvalidPassSource,
				fmt.Sprintf("root param %d: static samplers are unsupported", bindIndex))
		}
		switch d.Kind {
		case grammar.RootParamCBV:
			if d.Num != 1 {
				return nil, nil, newFgErr(ErrInvalidPassSource,
					fmt.Sprintf("root param %d: inline CBV requires num == 1, got %d", bindIndex, d.Num))
			}
			res, ok := cb[d.Register]
			if !ok {
				return nil, nil, newFgErr(ErrInvalidPassSource,
					fmt.Sprintf("root param %d: no ConstBuffer resource at register %d", bindIndex, d.Register))
			}
			arg := RootArgument{
				Kind:      ArgConstBufferView,
				BindIndex: bindIndex,
				NameHash:  res.NameHash,
				Name:      res.Name,
				Register:  res.Register,
				Fields:    res.Fields,
			}
			route, err := routeArg(arg, res.Scope, res.Freq, fg, input)
			if err != nil {
				return nil, nil, err
			}
			local = append(local, arg)
			routed = append(routed, route)

		case grammar.RootParamTable:
			entries, scope, freq, err := foldTable(d, bindIndex, cb, tex, splr)
			if err != nil {
				return nil, nil, err
			}
			arg := RootArgument{
				Kind:      ArgDescTable,
				BindIndex: bindIndex,
				Entries:   entries,
			}
			route, err := routeArg(arg, scope, freq, fg, input)
			if err != nil {
				return nil, nil, err
			}
			local = append(local, arg)
			routed = append(routed, route)
		}
	}
	return local, routed, nil
}

// foldTable folds a descriptor table's sub-entries into DescTableEntry
// values, failing ErrDescTableMixedFrequency unless every entry shares
// one scope and one bind frequency.
func foldTable(d grammar.RootParamDecl, bindIndex int, cb, tex, splr map[int]Resource) ([]DescTableEntry, Scope, BindFrequency, error) {
	if len(d.Entries) == 0 {
		return nil, 0, 0, newFgErr(ErrInvalidPassSource,
			fmt.Sprintf("root param %d: empty descriptor table", bindIndex))
	}
	entries := make([]DescTableEntry, 0, len(d.Entries))
	var scope Scope
	var freq BindFrequency
	for i, e := range d.Entries {
		var res Resource
		var ok bool
		var kind ResourceKind
		switch e.Kind {
		case grammar.EntryCBV:
			res, ok = cb[e.Register]
			kind = KindConstBuffer
		case grammar.EntrySRV:
			res, ok = tex[e.Register]
			kind = KindTexture
		case grammar.EntrySampler:
			res, ok = splr[e.Register]
			kind = KindSampler
		case grammar.EntryUAV:
			return nil, 0, 0, newFgErr(ErrInvalidPassSource,
				fmt.Sprintf("root param %d: UAV descriptor-table entries are unsupported", bindIndex))
		}
		if !ok {
			return nil, 0, 0, newFgErr(ErrInvalidPassSource,
				fmt.Sprintf("root param %d: descriptor table entry %d: no resource at register %d", bindIndex, i, e.Register))
		}
		if i == 0 {
			scope, freq = res.Scope, res.Freq
		} else if res.Scope != scope || res.Freq != freq {
			return nil, 0, 0, newFgErr(ErrDescTableMixedFrequency,
				fmt.Sprintf("root param %d: entries disagree on scope/bind-frequency", bindIndex))
		}
		entries = append(entries, DescTableEntry{
			Kind:      kind,
			NameHash:  res.NameHash,
			Register:  res.Register,
			HeapIndex: -1,
		})
	}
	return entries, scope, freq, nil
}

// routeArg returns a {kind, index} pair recording where arg ended up:
// pass-local, per-object-local template, deduplicated pass-global, or
// deduplicated per-object-global (keyed by input type).
func routeArg(arg RootArgument, scope Scope, freq BindFrequency, fg *Graph, input InputType) ([2]int, error) {
	switch {
	case scope == ScopeLocal && freq == FreqPerObject:
		return [2]int{routeObjLocal, -1}, nil
	case scope == ScopeLocal && freq == FreqPerPass:
		return [2]int{routePassLocal, -1}, nil
	case scope == ScopeGlobal && freq == FreqPerPass:
		idx := fg.passGlobalDedup.intern(arg)
		return [2]int{routePassGlobal, idx}, nil
	default: // ScopeGlobal && FreqPerObject
		idx := fg.objGlobalDedup(input).intern(arg)
		return [2]int{routeObjGlobal, idx}, nil
	}
}

const (
	routePassLocal = iota
	routeObjLocal
	routePassGlobal
	routeObjGlobal
)
