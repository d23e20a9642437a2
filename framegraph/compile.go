// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package framegraph

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/smartens/q2re/driver"
	"github.com/smartens/q2re/framegraph/grammar"
)

// compiler drives the pipeline compiler (§4.C): shader compilation,
// root-signature derivation, input-layout construction and PSO
// assembly for one compiled Pass. psoCache avoids re-creating the PSO
// of an unchanged pass on every hot-reload pass of an otherwise dirty
// frame graph, keyed by (pass name, content hash); the hash covers the
// assembled shader sources, input layout, topology, viewport and
// blend/depth state. Shaders are still compiled on every build.
type compiler struct {
	dev      Device
	psoCache *lru.Cache[psoKey, driver.Pipeline]
}

type psoKey struct {
	pass string
	hash uint64
}

func newCompiler(dev Device) *compiler {
	c, err := lru.New[psoKey, driver.Pipeline](256)
	if err != nil {
		panic(err)
	}
	return &compiler{dev: dev, psoCache: c}
}

// compilePass runs the full §4.C pipeline for one parsed pass file,
// lowering its root parameters itself, and returns the compiled Pass.
func (c *compiler) compilePass(pf *grammar.PassFile, drawAreaW, drawAreaH int) (*Pass, error) {
	cb, tex, splr := resourceMaps(pf.Resources)

	fg := NewGraph() // local scratch graph: routing only matters for
	// dedup identity here, the caller's real Graph re-routes on
	// assembly (see graph.go's objGlobalDedup / passGlobalDedup).
	local, routed, err := lowerRootParams(pf.RootSig, cb, tex, splr, fg, pf.Input)
	if err != nil {
		return nil, err
	}

	rootSigTxt, err := c.dev.SerializeRootSig(local)
	if err != nil {
		return nil, newFgErrCause(ErrPipelineCreateError, "serialize root signature", err)
	}

	externals, err := resolveExternals(pf)
	if err != nil {
		return nil, err
	}

	var vertBlob, fragBlob ShaderBlob
	var geomBlob *ShaderBlob
	srcHash := fnv.New64a()
	for _, sh := range pf.Shaders {
		src := assembleShaderSource(sh, externals, rootSigTxt)
		srcHash.Write([]byte(src))
		stage, profile := shaderStageAndProfile(sh.Type)
		blob, err := c.dev.CompileShader(stage, profile, src)
		if err != nil {
			logger.Sugar().Errorw("shader compile failed", "pass", pf.Name, "stage", sh.Type.String(), "error", err)
			return nil, newFgErrCause(ErrShaderCompileError, fmt.Sprintf("pass %q, shader %s", pf.Name, sh.Type), err)
		}
		switch sh.Type {
		case grammar.ShaderVS:
			vertBlob = blob
		case grammar.ShaderPS:
			fragBlob = blob
		case grammar.ShaderGS:
			b := blob
			geomBlob = &b
		}
	}

	rootSig, err := c.dev.NewRootSignature(vertBlob)
	if err != nil {
		return nil, newFgErrCause(ErrPipelineCreateError, "create root signature", err)
	}
	c.dev.SetDebugName(rootSig, fmt.Sprintf("RootSignature, pass: %s", pf.Name))

	input, err := inputLayout(pf)
	if err != nil {
		return nil, err
	}

	vp, topology := resolveViewportAndTopology(pf, drawAreaW, drawAreaH)

	desc := PSODesc{
		PassName: pf.Name,
		VertBlob: vertBlob,
		FragBlob: fragBlob,
		GeomBlob: geomBlob,
		Input:    input,
		Topology: topology,
		Viewport: vp,
		Raster:   driver.RasterState{Clockwise: true, Cull: driver.CBack, Fill: driver.FFill},
		DS: driver.DSState{
			DepthTest:  pf.State.DepthTarget != "",
			DepthWrite: pf.State.DepthWriteMask,
			DepthCmp:   driver.CLessEqual,
		},
		Blend: driver.BlendState{Color: []driver.ColorBlend{{
			Blend:     pf.State.BlendEnable,
			WriteMask: driver.CAll,
			Op:        [2]driver.BlendOp{driver.BAdd, driver.BAdd},
			SrcFac:    [2]driver.BlendFac{blendFactor(pf.State.BlendSrc), blendFactor(pf.State.BlendSrc)},
			DstFac:    [2]driver.BlendFac{blendFactor(pf.State.BlendDst), blendFactor(pf.State.BlendDst)},
		}}},
		RootSig: rootSig,
	}

	fmt.Fprintf(srcHash, "|%d|%+v|%+v", hashPSODesc(desc), desc.DS, desc.Blend)
	key := psoKey{pass: pf.Name, hash: srcHash.Sum64()}
	pso, ok := c.psoCache.Get(key)
	if !ok {
		pso, err = c.dev.NewGraphicsPSO(desc)
		if err != nil {
			return nil, newFgErrCause(ErrPipelineCreateError, fmt.Sprintf("pass %q: create PSO", pf.Name), err)
		}
		c.dev.SetDebugName(pso, fmt.Sprintf("Pipeline, pass: %s", pf.Name))
		c.psoCache.Add(key, pso)
	}

	pass := &Pass{
		Name:            pf.Name,
		Input:           pf.Input,
		Topology:        topology,
		Viewport:        vp,
		ColorTargetHash: HashName(pf.State.ColorTarget),
		DepthTargetHash: HashName(pf.State.DepthTarget),
		PSO:             pso,
		RootSig:         rootSig,
	}
	for i, route := range routed {
		switch route[0] {
		case routePassLocal:
			pass.PassLocal = append(pass.PassLocal, local[i])
		case routeObjLocal:
			pass.PerObjectLocalTemplate = append(pass.PerObjectLocalTemplate, local[i])
		case routePassGlobal:
			pass.PassGlobalRootArgsIndices = append(pass.PassGlobalRootArgsIndices, route[1])
		case routeObjGlobal:
			pass.PerObjGlobalRootArgsIndicesTemplate = append(pass.PerObjGlobalRootArgsIndicesTemplate, route[1])
		}
	}
	return pass, nil
}

// resolveExternals builds the name -> source-text table that a
// Shader's externals list is resolved against: the pass's own
// resources (as HLSL-ish declarations), VertAttr declarations, and
// free Function bodies.
func resolveExternals(pf *grammar.PassFile) (map[string]string, error) {
	out := map[string]string{}
	for _, fn := range pf.Functions {
		out[fn.Name] = fn.Source
	}
	for _, va := range pf.VertAttrs {
		var b strings.Builder
		fmt.Fprintf(&b, "struct %s {\n", va.Name)
		for _, f := range va.Fields {
			fmt.Fprintf(&b, "  %s %s;\n", f.Type, f.Name)
		}
		b.WriteString("};\n")
		out[va.Name] = b.String()
	}
	for _, r := range pf.Resources {
		out[r.Name] = declareResource(r)
	}
	return out, nil
}

func declareResource(r grammar.ResourceDecl) string {
	switch r.Kind {
	case grammar.KindConstBuffer:
		var b strings.Builder
		fmt.Fprintf(&b, "cbuffer %s : register(b%d) {\n", r.Name, r.Register)
		for _, f := range r.Fields {
			fmt.Fprintf(&b, "  %s %s;\n", f.Type, f.Name)
		}
		b.WriteString("};\n")
		return b.String()
	case grammar.KindTexture:
		return fmt.Sprintf("Texture2D %s : register(t%d);\n", r.Name, r.Register)
	case grammar.KindSampler:
		return fmt.Sprintf("SamplerState %s : register(s%d);\n", r.Name, r.Register)
	default:
		return ""
	}
}

// assembleShaderSource prepends resolved externals and appends the
// root-signature attribute, per §4.A's Shader block semantics.
func assembleShaderSource(sh grammar.ShaderDecl, externals map[string]string, rootSigTxt string) string {
	var b strings.Builder
	for _, name := range sh.Externals {
		if text, ok := externals[name]; ok {
			b.WriteString(text)
		}
	}
	b.WriteString(sh.Source)
	fmt.Fprintf(&b, "\n[RootSignature(%q)]\n", rootSigTxt)
	return b.String()
}

func shaderStageAndProfile(t grammar.ShaderType) (ShaderStage, string) {
	switch t {
	case grammar.ShaderVS:
		return StageVertex, t.Profile5_1()
	case grammar.ShaderGS:
		return StageGeometry, t.Profile5_1()
	default:
		return StageFragment, t.Profile5_1()
	}
}

// inputLayout iterates the pass's selected VertAttr's fields in
// declaration order, assigning each to its input slot (default 0,
// overridden by VertAttrSlots). Each field becomes its own
// driver.VertexIn strided by its own size; no per-slot offsets are
// accumulated.
func inputLayout(pf *grammar.PassFile) ([]driver.VertexIn, error) {
	var va *grammar.VertAttrDecl
	for i := range pf.VertAttrs {
		if pf.VertAttrs[i].Name == pf.VertAttrName {
			va = &pf.VertAttrs[i]
			break
		}
	}
	if va == nil {
		return nil, newFgErr(ErrInvalidPassSource,
			fmt.Sprintf("pass %q: vertAttr %q not declared", pf.Name, pf.VertAttrName))
	}

	// driver.VertexIn models each input as a separate, non-interleaved
	// buffer binding (see its doc comment), so there is no shared
	// per-slot offset to accumulate: every field becomes its own
	// VertexIn, strided by its own size.
	var in []driver.VertexIn
	for _, f := range va.Fields {
		slot := pf.VertAttrSlots[f.Name]
		vfmt, sz := vertexFmt(f.Type)
		in = append(in, driver.VertexIn{
			Format: vfmt,
			Stride: sz,
			Nr:     slot,
			Name:   f.Name,
		})
	}
	return in, nil
}

func vertexFmt(typ string) (driver.VertexFmt, int) {
	switch typ {
	case "float":
		return driver.Float32, 4
	case "float2":
		return driver.Float32x2, 8
	case "float3":
		return driver.Float32x3, 12
	case "float4":
		return driver.Float32x4, 16
	case "int":
		return driver.Int32, 4
	case "int2":
		return driver.Int32x2, 8
	case "int3":
		return driver.Int32x3, 12
	case "int4":
		return driver.Int32x4, 16
	case "uint8x4":
		return driver.UInt8x4, 4
	default:
		return driver.Float32x4, 16
	}
}

// resolveViewportAndTopology resolves the pass's viewport (literal
// pixels or fractions of the current draw-area size) against the
// given draw-area dimensions, and maps its topology token to both the
// draw-time and PSO-level enums.
func resolveViewportAndTopology(pf *grammar.PassFile, drawAreaW, drawAreaH int) (driver.Viewport, driver.Topology) {
	resolve := func(v grammar.ViewportVal, extent int) float32 {
		if v.IsFraction {
			return v.Value * float32(extent)
		}
		return v.Value
	}
	vp := driver.Viewport{
		X:      resolve(pf.State.Viewport.X, drawAreaW),
		Y:      resolve(pf.State.Viewport.Y, drawAreaH),
		Width:  resolve(pf.State.Viewport.W, drawAreaW),
		Height: resolve(pf.State.Viewport.H, drawAreaH),
		Znear:  0,
		Zfar:   1,
	}
	return vp, topologyFromToken(pf.State.Topology)
}

func topologyFromToken(tok string) driver.Topology {
	switch strings.ToLower(tok) {
	case "point":
		return driver.TPoint
	case "line":
		return driver.TLine
	case "linestrip":
		return driver.TLnStrip
	case "trianglestrip":
		return driver.TTriStrip
	default:
		return driver.TTriangle
	}
}

func blendFactor(tok string) driver.BlendFac {
	switch strings.ToLower(tok) {
	case "one":
		return driver.BOne
	case "srcalpha":
		return driver.BSrcAlpha
	case "invsrcalpha":
		return driver.BInvSrcAlpha
	case "dstalpha":
		return driver.BDstAlpha
	default:
		return driver.BZero
	}
}

func hashPSODesc(d PSODesc) uint64 {
	h := fnv.New64a()
	h.Write([]byte(d.PassName))
	h.Write([]byte(strconv.Itoa(int(d.Topology))))
	for _, in := range d.Input {
		h.Write([]byte(in.Name))
		h.Write([]byte(strconv.Itoa(int(in.Format))))
		h.Write([]byte(strconv.Itoa(in.Nr)))
	}
	h.Write([]byte(strconv.FormatFloat(float64(d.Viewport.Width), 'f', -1, 32)))
	h.Write([]byte(strconv.FormatFloat(float64(d.Viewport.Height), 'f', -1, 32)))
	return h.Sum64()
}
