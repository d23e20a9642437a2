// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package framegraph

import (
	"github.com/smartens/q2re/driver"
)

// ShaderStage identifies a programmable pipeline stage for the
// purposes of shader compilation and profile selection.
type ShaderStage int

const (
	StageVertex ShaderStage = iota
	StageGeometry
	StageFragment
)

// ShaderBlob is an opaque compiled shader, together with the root
// signature embedded in it by the compiler (mirroring the way an
// HLSL [RootSignature(...)] attribute round-trips through DXC).
type ShaderBlob struct {
	Code       driver.ShaderCode
	RootSigTxt string
}

// PSODesc assembles everything a Device needs to create a graphics
// pipeline state object: the compiled per-stage bytecode, the input
// layout, and the fixed-function state parsed from a pass's State
// block.
type PSODesc struct {
	PassName string

	VertBlob ShaderBlob
	FragBlob ShaderBlob
	GeomBlob *ShaderBlob // optional

	Input    []driver.VertexIn
	Topology driver.Topology

	ColorFmt driver.PixelFmt
	DepthFmt driver.PixelFmt
	Viewport driver.Viewport

	Raster driver.RasterState
	DS     driver.DSState
	Blend  driver.BlendState

	RootSig driver.DescTable
}

// Device is the seam the pipeline compiler consumes. driver.GPU
// already provides NewShaderCode, NewDescTable and NewPipeline; Device
// adds the textual root-signature assembly and shader-profile
// compilation the driver has no concept of, since it operates on
// already-compiled bytecode.
type Device interface {
	// CompileShader compiles source (with externals and the
	// [RootSignature("...")] attribute already injected) for the
	// given stage and shader-model profile (e.g. "vs_5_1").
	CompileShader(stage ShaderStage, profile, source string) (ShaderBlob, error)

	// SerializeRootSig renders a textual root-signature description
	// from a pass's lowered root parameters, for injection into
	// shader source ahead of compilation.
	SerializeRootSig(params []RootArgument) (string, error)

	// NewRootSignature derives a driver.DescTable (the root
	// signature's concrete binding object) from a compiled blob's
	// embedded root signature.
	NewRootSignature(blob ShaderBlob) (driver.DescTable, error)

	// NewGraphicsPSO creates a graphics pipeline state object from
	// desc.
	NewGraphicsPSO(desc PSODesc) (driver.Pipeline, error)

	// SetDebugName attaches a debug label to obj, of the form
	// "<kind>, pass: <name>".
	SetDebugName(obj driver.Destroyer, name string)
}
