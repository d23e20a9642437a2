// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package framegraph

import "hash/fnv"

// Scope controls whether a Resource's argument is shared across passes
// (Global) or confined to the pass that declares it (Local).
type Scope int

const (
	ScopeLocal Scope = iota
	ScopeGlobal
)

// BindFrequency controls how often a Resource's argument is expected
// to change.
type BindFrequency int

const (
	FreqPerObject BindFrequency = iota
	FreqPerPass
)

// ResourceKind is the tagged-variant selector of a Resource: the set
// is closed, so callers switch over it exhaustively rather than
// type-asserting an interface.
type ResourceKind int

const (
	KindConstBuffer ResourceKind = iota
	KindTexture
	KindSampler
)

// CBField is a single (type, name) field of a ConstBuffer resource.
type CBField struct {
	Type string
	Name string
}

// Resource is a tagged variant over {ConstBuffer, Texture, Sampler}.
// NameHash interns Name as a 32-bit FNV-1a hash, used as the fast
// comparison key everywhere identity only (not content) matters.
type Resource struct {
	NameHash uint32
	Name     string
	Register int
	Scope    Scope
	Freq     BindFrequency
	Kind     ResourceKind
	Fields   []CBField // ConstBuffer only
}

// HashName computes the interned 32-bit identifier for a resource
// name.
func HashName(name string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(name))
	return h.Sum32()
}

// NewResource builds a Resource, computing its NameHash from name.
func NewResource(name string, register int, scope Scope, freq BindFrequency, kind ResourceKind, fields []CBField) Resource {
	return Resource{
		NameHash: HashName(name),
		Name:     name,
		Register: register,
		Scope:    scope,
		Freq:     freq,
		Kind:     kind,
		Fields:   fields,
	}
}

// StructurallyEqual reports whether r and other describe the same
// resource: same kind, register and (for ConstBuffer) identical field
// layout. Scope and BindFrequency are excluded deliberately —
// dedup keys on scope-invariant identity (name + register + content),
// per the resource model's "Argument deduplication" rule.
func (r *Resource) StructurallyEqual(other *Resource) bool {
	if r.Name != other.Name || r.Register != other.Register || r.Kind != other.Kind {
		return false
	}
	if r.Kind != KindConstBuffer {
		return true
	}
	if len(r.Fields) != len(other.Fields) {
		return false
	}
	for i := range r.Fields {
		if r.Fields[i] != other.Fields[i] {
			return false
		}
	}
	return true
}
