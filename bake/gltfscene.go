// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package bake

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/smartens/q2re/gltf"
	"github.com/smartens/q2re/linear"
)

// GLTFScene is a Scene backed by a decoded glTF document: every mesh
// reachable from the document's default scene becomes one
// StaticObject, with node transforms baked into world-space vertex
// and normal data. It carries no lights on its own — glTF's
// KHR_lights_punctual extension lives inside Node.Extensions' untyped
// any, which this loader does not decode — so callers attach
// PointLights/AreaLights separately with AddPointLight/AddAreaLight.
type GLTFScene struct {
	objects []StaticObject
	points  []PointLight
	areas   []AreaLight
}

func (s *GLTFScene) StaticObjects() []StaticObject { return s.objects }
func (s *GLTFScene) PointLights() []PointLight     { return s.points }
func (s *GLTFScene) AreaLights() []AreaLight       { return s.areas }

// AddPointLight appends a bake-time point light to s.
func (s *GLTFScene) AddPointLight(l PointLight) { s.points = append(s.points, l) }

// AddAreaLight appends a bake-time area light to s.
func (s *GLTFScene) AddAreaLight(l AreaLight) { s.areas = append(s.areas, l) }

// LoadGLTFScene decodes a binary glTF (GLB) container from r and
// resolves its default scene's mesh nodes into a GLTFScene. Every
// accessor the loader touches must reference buffer 0, the single
// embedded BIN chunk gltf.Unpack returns — external and data-URI
// buffers are rejected, since the baker only ever consumes
// self-contained GLB assets exported alongside a level.
func LoadGLTFScene(r io.Reader) (*GLTFScene, error) {
	doc, bin, err := gltf.Unpack(r)
	if err != nil {
		return nil, newBakeErrCause(ErrBakingInputInvalid, "unpack glTF asset", err)
	}
	if err := doc.Check(); err != nil {
		return nil, newBakeErrCause(ErrBakingInputInvalid, "invalid glTF document", err)
	}

	sceneIdx := int64(0)
	if doc.Scene != nil {
		sceneIdx = *doc.Scene
	}
	if sceneIdx < 0 || int(sceneIdx) >= len(doc.Scenes) {
		return nil, newBakeErr(ErrBakingInputInvalid, "glTF document has no default scene")
	}

	s := &GLTFScene{}
	var ident linear.M4
	ident.I()
	for _, n := range doc.Scenes[sceneIdx].Nodes {
		if err := s.walkNode(doc, bin, n, &ident); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *GLTFScene) walkNode(doc *gltf.GLTF, bin []byte, nodeIdx int64, parent *linear.M4) error {
	if nodeIdx < 0 || int(nodeIdx) >= len(doc.Nodes) {
		return newBakeErr(ErrBakingInputInvalid, "glTF node index out of range")
	}
	node := doc.Nodes[nodeIdx]

	var local linear.M4
	nodeLocalMatrix(&node, &local)

	var world linear.M4
	world.Mul(parent, &local)

	if node.Mesh != nil {
		if err := s.appendMesh(doc, bin, *node.Mesh, &world); err != nil {
			return err
		}
	}
	for _, child := range node.Children {
		if err := s.walkNode(doc, bin, child, &world); err != nil {
			return err
		}
	}
	return nil
}

// nodeLocalMatrix resolves node's local transform, preferring an
// explicit Matrix override and otherwise composing T*R*S from the
// Translation/Rotation/Scale fields (each defaulting per the glTF
// spec when absent).
func nodeLocalMatrix(node *gltf.Node, out *linear.M4) {
	if node.Matrix != nil {
		m := *node.Matrix
		*out = linear.M4{
			{m[0], m[1], m[2], m[3]},
			{m[4], m[5], m[6], m[7]},
			{m[8], m[9], m[10], m[11]},
			{m[12], m[13], m[14], m[15]},
		}
		return
	}

	t := linear.V3{0, 0, 0}
	if node.Translation != nil {
		t = linear.V3{node.Translation[0], node.Translation[1], node.Translation[2]}
	}
	q := linear.Q{R: 1}
	if node.Rotation != nil {
		r := *node.Rotation
		q = linear.Q{V: linear.V3{r[0], r[1], r[2]}, R: r[3]}
	}
	sc := linear.V3{1, 1, 1}
	if node.Scale != nil {
		sc = linear.V3{node.Scale[0], node.Scale[1], node.Scale[2]}
	}

	var rot linear.M4
	quatToM4(q, &rot)

	var trs linear.M4
	trs.I()
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			trs[col][row] = rot[col][row] * sc[col]
		}
	}
	trs[3] = linear.V4{t[0], t[1], t[2], 1}
	*out = trs
}

// quatToM4 builds the column-major rotation matrix equivalent of a
// unit quaternion.
func quatToM4(q linear.Q, out *linear.M4) {
	x, y, z, w := q.V[0], q.V[1], q.V[2], q.R
	x2, y2, z2 := x+x, y+y, z+z
	xx, yy, zz := x*x2, y*y2, z*z2
	xy, xz, yz := x*y2, x*z2, y*z2
	wx, wy, wz := w*x2, w*y2, w*z2

	out.I()
	out[0] = linear.V4{1 - (yy + zz), xy + wz, xz - wy, 0}
	out[1] = linear.V4{xy - wz, 1 - (xx + zz), yz + wx, 0}
	out[2] = linear.V4{xz + wy, yz - wx, 1 - (xx + yy), 0}
}

func (s *GLTFScene) appendMesh(doc *gltf.GLTF, bin []byte, meshIdx int64, world *linear.M4) error {
	if meshIdx < 0 || int(meshIdx) >= len(doc.Meshes) {
		return newBakeErr(ErrBakingInputInvalid, "glTF mesh index out of range")
	}
	mesh := doc.Meshes[meshIdx]

	var normal3 linear.M3
	worldNormalMatrix(world, &normal3)

	for _, prim := range mesh.Primitives {
		if prim.Mode != nil && *prim.Mode != gltf.TRIANGLES {
			continue // only triangle-list primitives contribute static geometry
		}

		posIdx, ok := prim.Attributes["POSITION"]
		if !ok {
			return newBakeErr(ErrBakingInputInvalid, "glTF primitive has no POSITION attribute")
		}
		positions, err := readVec3Accessor(doc, bin, posIdx)
		if err != nil {
			return err
		}

		var normals []linear.V3
		if normIdx, ok := prim.Attributes["NORMAL"]; ok {
			if normals, err = readVec3Accessor(doc, bin, normIdx); err != nil {
				return err
			}
		}

		var uvs [][2]float32
		if uvIdx, ok := prim.Attributes["TEXCOORD_0"]; ok {
			if uvs, err = readVec2Accessor(doc, bin, uvIdx); err != nil {
				return err
			}
		}

		var indices []uint32
		if prim.Indices != nil {
			if indices, err = readIndexAccessor(doc, bin, *prim.Indices); err != nil {
				return err
			}
		} else {
			indices = make([]uint32, len(positions))
			for i := range indices {
				indices[i] = uint32(i)
			}
		}

		obj := StaticObject{
			Vertices: make([]linear.V3, len(positions)),
			Normals:  make([]linear.V3, len(normals)),
			UVs:      uvs,
			Indices:  indices,
		}
		for i, p := range positions {
			v4 := linear.V4{p[0], p[1], p[2], 1}
			var out4 linear.V4
			out4.Mul(world, &v4)
			obj.Vertices[i] = linear.V3{out4[0], out4[1], out4[2]}
		}
		for i, n := range normals {
			var out3 linear.V3
			out3.Mul(&normal3, &n)
			out3.Norm(&out3)
			obj.Normals[i] = out3
		}
		if prim.Material != nil && int(*prim.Material) < len(doc.Materials) {
			obj.TextureKey = materialTextureKey(doc, doc.Materials[*prim.Material])
		}

		s.objects = append(s.objects, obj)
	}
	return nil
}

// worldNormalMatrix sets out to the upper-left 3x3 of world, inverted
// and transposed, so non-uniform scale does not skew normals.
func worldNormalMatrix(world *linear.M4, out *linear.M3) {
	var m3 linear.M3
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			m3[col][row] = world[col][row]
		}
	}
	var inv linear.M3
	inv.Invert(&m3)
	out.Transpose(&inv)
}

func materialTextureKey(doc *gltf.GLTF, mat gltf.Material) string {
	if mat.PBRMetallicRoughness == nil || mat.PBRMetallicRoughness.BaseColorTexture == nil {
		return ""
	}
	texIdx := mat.PBRMetallicRoughness.BaseColorTexture.Index
	if texIdx < 0 || int(texIdx) >= len(doc.Textures) {
		return ""
	}
	return mat.Name
}

func readVec3Accessor(doc *gltf.GLTF, bin []byte, idx int64) ([]linear.V3, error) {
	raw, err := readAccessor(doc, bin, idx, gltf.VEC3, 3)
	if err != nil {
		return nil, err
	}
	out := make([]linear.V3, len(raw))
	for i, v := range raw {
		out[i] = linear.V3{v[0], v[1], v[2]}
	}
	return out, nil
}

func readVec2Accessor(doc *gltf.GLTF, bin []byte, idx int64) ([][2]float32, error) {
	raw, err := readAccessor(doc, bin, idx, gltf.VEC2, 2)
	if err != nil {
		return nil, err
	}
	out := make([][2]float32, len(raw))
	for i, v := range raw {
		out[i] = [2]float32{v[0], v[1]}
	}
	return out, nil
}

func readIndexAccessor(doc *gltf.GLTF, bin []byte, idx int64) ([]uint32, error) {
	if idx < 0 || int(idx) >= len(doc.Accessors) {
		return nil, newBakeErr(ErrBakingInputInvalid, "glTF accessor index out of range")
	}
	acc := doc.Accessors[idx]
	if acc.Type != gltf.SCALAR {
		return nil, newBakeErr(ErrBakingInputInvalid, "glTF index accessor must be SCALAR")
	}
	var compSize int
	switch acc.ComponentType {
	case gltf.UNSIGNED_BYTE:
		compSize = 1
	case gltf.UNSIGNED_SHORT:
		compSize = 2
	case gltf.UNSIGNED_INT:
		compSize = 4
	default:
		return nil, newBakeErr(ErrBakingInputInvalid, "unsupported index componentType")
	}
	view, data, err := accessorBytes(doc, bin, acc, compSize)
	if err != nil {
		return nil, err
	}

	out := make([]uint32, acc.Count)
	stride := compSize
	if view.ByteStride != 0 {
		stride = int(view.ByteStride)
	}
	for i := range out {
		off := i * stride
		switch acc.ComponentType {
		case gltf.UNSIGNED_BYTE:
			out[i] = uint32(data[off])
		case gltf.UNSIGNED_SHORT:
			out[i] = uint32(binary.LittleEndian.Uint16(data[off:]))
		case gltf.UNSIGNED_INT:
			out[i] = binary.LittleEndian.Uint32(data[off:])
		}
	}
	return out, nil
}

// readAccessor decodes a FLOAT accessor of the given type/component
// count into one []float32 slice per element.
func readAccessor(doc *gltf.GLTF, bin []byte, idx int64, wantType string, numComp int) ([][]float32, error) {
	if idx < 0 || int(idx) >= len(doc.Accessors) {
		return nil, newBakeErr(ErrBakingInputInvalid, "glTF accessor index out of range")
	}
	acc := doc.Accessors[idx]
	if acc.Type != wantType {
		return nil, newBakeErr(ErrBakingInputInvalid, "glTF accessor type mismatch: want "+wantType+", got "+acc.Type)
	}
	if acc.ComponentType != gltf.FLOAT {
		return nil, newBakeErr(ErrBakingInputInvalid, "unsupported non-float accessor")
	}
	view, data, err := accessorBytes(doc, bin, acc, 4*numComp)
	if err != nil {
		return nil, err
	}

	elemSize := 4 * numComp
	stride := elemSize
	if view.ByteStride != 0 {
		stride = int(view.ByteStride)
	}

	out := make([][]float32, acc.Count)
	for i := range out {
		off := i * stride
		comp := make([]float32, numComp)
		for c := 0; c < numComp; c++ {
			bits := binary.LittleEndian.Uint32(data[off+4*c:])
			comp[c] = math.Float32frombits(bits)
		}
		out[i] = comp
	}
	return out, nil
}

// accessorBytes resolves acc's BufferView (rejecting sparse and
// buffer-0-external references this loader does not support) and
// returns the view alongside the slice of bin covering it.
func accessorBytes(doc *gltf.GLTF, bin []byte, acc gltf.Accessor, minElemSize int) (gltf.BufferView, []byte, error) {
	if acc.Sparse != nil {
		return gltf.BufferView{}, nil, newBakeErr(ErrBakingInputInvalid, "sparse accessors are unsupported")
	}
	if acc.BufferView == nil {
		return gltf.BufferView{}, nil, newBakeErr(ErrBakingInputInvalid, "accessor has no bufferView")
	}
	vi := *acc.BufferView
	if vi < 0 || int(vi) >= len(doc.BufferViews) {
		return gltf.BufferView{}, nil, newBakeErr(ErrBakingInputInvalid, "glTF bufferView index out of range")
	}
	view := doc.BufferViews[vi]
	if view.Buffer != 0 {
		return gltf.BufferView{}, nil, newBakeErr(ErrBakingInputInvalid, "only the embedded GLB buffer (index 0) is supported")
	}
	start := view.ByteOffset + acc.ByteOffset
	end := start + int64(minElemSize)*acc.Count
	if view.ByteStride != 0 {
		end = start + view.ByteStride*(acc.Count-1) + int64(minElemSize)
	}
	if start < 0 || end > int64(len(bin)) {
		return gltf.BufferView{}, nil, newBakeErr(ErrBakingInputInvalid, "accessor range exceeds embedded buffer")
	}
	return view, bin[start:end], nil
}
