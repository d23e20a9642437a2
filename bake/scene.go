// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package bake

import "github.com/smartens/q2re/linear"

// Ray is a half-line used for visibility and closest-hit queries.
type Ray struct {
	Origin linear.V3
	Dir    linear.V3 // normalized
	TMax   float32
}

// Hit is the result of a closest-hit query against the BSP: the
// intersected triangle, its barycentric coordinates, and the
// resolved surface data (normal, albedo) the path tracer needs.
type Hit struct {
	T, U, V, W     float32
	StaticObjIndex int
	TriangleIndex  int

	Point  linear.V3
	Normal linear.V3 // barycentric-interpolated shading normal

	// Albedo is the surface reflectance at the hit point as reported
	// by the BSPTree's ClosestHit. The baker uses it as given: it does
	// not sample StaticObject textures itself and applies no fallback
	// value, so a zero Albedo yields no direct or bounced contribution.
	Albedo linear.V3
}

// StaticObject is one triangle mesh of the static scene: vertex
// positions, per-vertex normals, UVs, and an optional material
// texture key used by the albedo lookup.
type StaticObject struct {
	Vertices   []linear.V3
	Normals    []linear.V3
	UVs        [][2]float32
	Indices    []uint32
	TextureKey string
}

// PointLight is a bake-time omnidirectional light: position, color,
// intensity and a max effective distance (dMax in the windowed
// inverse-square falloff).
type PointLight struct {
	Position    linear.V3
	Color       linear.V3 // RGB, [0,1]
	Intensity   float32
	MaxDistance float32
}

// AreaLight is a bake-time emissive mesh light with a precomputed
// triangle-area CDF for importance sampling.
type AreaLight struct {
	Mesh      StaticObject
	Normals   []linear.V3 // one normal per triangle (flat-shaded emitter)
	Radiance  linear.V3
	CDF       TriCDF
	MaxDistance float32
}

// BSPTree is the visibility/geometry collaborator consumed by the
// baker: cluster enumeration, per-cluster AABBs, point-in-cluster and
// point-to-point visibility queries, PVS lookups, and the
// closest-hit ray query the path tracer bounces against.
type BSPTree interface {
	Clusters() []int
	ClusterAABB(cluster int) (min, max linear.V3)
	NodeWithPoint(p linear.V3) (cluster int, ok bool)
	PointVisible(a, b linear.V3) bool
	PotentiallyVisible(p linear.V3) []int // object indices
	ClosestHit(ray Ray) (Hit, bool)
}

// Scene is the static-geometry and light collaborator consumed by
// the baker.
type Scene interface {
	StaticObjects() []StaticObject
	PointLights() []PointLight
	AreaLights() []AreaLight
}

// Renderer is the real-time collaborator that consumes a completed
// bake: it must drain any in-flight frames before the new BakingData
// is installed, since probe lookups happen mid-frame.
type Renderer interface {
	FlushAllFrames()
	ConsumeDiffuseIndirect(BakingData)
	DrawAreaSize() (w, h int)
}
