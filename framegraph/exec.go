// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package framegraph

import (
	"github.com/smartens/q2re/driver"
)

// DrawObject is one object drawn by a pass in a given frame: the
// per-object data that gets streamed into PerObjectLocalTemplate and
// the vertex/index buffers referenced by the draw call.
type DrawObject struct {
	// ConstData is copied verbatim into the leased const-buffer span;
	// its layout must match PerObjectLocalTemplate's Fields.
	ConstData []byte

	VertexBuf driver.Buffer
	VertexOff int64
	IndexBuf  driver.Buffer
	IndexOff  int64
	IndexFmt  driver.IndexFmt

	VertCount, IdxCount, InstCount int
}

// JobContext carries everything Execute needs for one pass, one
// frame: the frame's streaming arenas, the objects to draw, the
// target framebuffer/render pass, and the frame-graph's shared global
// argument pools (already bound by the caller before Execute runs).
type JobContext struct {
	CmdBuf driver.CmdBuffer
	Arenas *frameArenas

	RenderPass driver.RenderPass
	Framebuf   driver.Framebuf
	ClearVals  []driver.ClearValue

	Objects []DrawObject

	PassGlobalArgs []BoundArg
	ObjGlobalArgs  []BoundArg
}

// BoundArg is a RootArgument together with the concrete GPU state
// backing it: a buffer+offset for a ConstBufferView, or a descriptor
// table for a DescTable.
type BoundArg struct {
	Arg    *RootArgument
	Buf    driver.Buffer
	Off    int64
	Table  driver.DescTable
	HeapOf []int
}

// Execute runs the four pass-runtime steps of §4.E for one pass, one
// frame: Start, UpdateDrawObjects, SetUpRenderState, Draw.
func (p *Pass) Execute(ctx *JobContext) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	objArgs, err := p.UpdateDrawObjects(ctx)
	if err != nil {
		return err
	}
	p.SetUpRenderState(ctx)
	p.Draw(ctx, objArgs)
	return nil
}

// Start acquires command-list resources and transitions the pass's
// render targets; with the real driver.CmdBuffer this is just
// BeginPass, target transitions are the caller's (engine's) job since
// they require knowing the target Texture's current driver.Layout,
// which framegraph does not track.
func (p *Pass) Start(ctx *JobContext) error {
	ctx.CmdBuf.BeginPass(ctx.RenderPass, ctx.Framebuf, ctx.ClearVals)
	return nil
}

// UpdateDrawObjects streams each DrawObject's const data into the
// frame's const-buffer arena, instantiating one copy of the first
// PerObjectLocalTemplate argument per object; further template
// arguments are not instantiated. It allocates vertex memory only
// in the sense of tracking the caller-supplied vertex buffer/offset —
// framegraph never owns mesh storage (engine's mesh buffer does).
func (p *Pass) UpdateDrawObjects(ctx *JobContext) ([]BoundArg, error) {
	if len(p.PerObjectLocalTemplate) == 0 {
		return nil, nil
	}
	out := make([]BoundArg, 0, len(ctx.Objects))
	for _, obj := range ctx.Objects {
		off, ok := ctx.Arenas.ConstBuf.Lease(int64(len(obj.ConstData)))
		if !ok {
			return nil, newFgErr(ErrPipelineCreateError, "const-buffer arena exhausted")
		}
		copy(ctx.Arenas.ConstBuf.Bytes()[off:], obj.ConstData)
		arg := p.PerObjectLocalTemplate[0]
		out = append(out, BoundArg{Arg: &arg, Buf: ctx.Arenas.ConstBuf.Buffer(), Off: off})
	}
	return out, nil
}

// SetUpRenderState binds the PSO, viewport, scissor and the
// caller-supplied pass-global arguments in ctx.PassGlobalArgs —
// everything that does not vary per object. Render targets are set
// by Start; the pass's PassLocal arguments are not bound.
func (p *Pass) SetUpRenderState(ctx *JobContext) {
	ctx.CmdBuf.SetPipeline(p.PSO)
	ctx.CmdBuf.SetViewport([]driver.Viewport{p.Viewport})
	ctx.CmdBuf.SetScissor([]driver.Scissor{{
		X: int(p.Viewport.X), Y: int(p.Viewport.Y),
		Width: int(p.Viewport.Width), Height: int(p.Viewport.Height),
	}})
	for _, a := range ctx.PassGlobalArgs {
		bindArg(ctx.CmdBuf, a)
	}
}

// Draw iterates per-object, binds each object's per-object arguments,
// and issues the draw call.
func (p *Pass) Draw(ctx *JobContext, objArgs []BoundArg) {
	for i, obj := range ctx.Objects {
		if i < len(objArgs) {
			bindArg(ctx.CmdBuf, objArgs[i])
		}
		for _, a := range ctx.ObjGlobalArgs {
			bindArg(ctx.CmdBuf, a)
		}
		if obj.VertexBuf != nil {
			ctx.CmdBuf.SetVertexBuf(0, []driver.Buffer{obj.VertexBuf}, []int64{obj.VertexOff})
		}
		if obj.IndexBuf != nil {
			ctx.CmdBuf.SetIndexBuf(obj.IndexFmt, obj.IndexBuf, obj.IndexOff)
			ctx.CmdBuf.DrawIndexed(obj.IdxCount, max(obj.InstCount, 1), 0, 0, 0)
		} else {
			ctx.CmdBuf.Draw(obj.VertCount, max(obj.InstCount, 1), 0, 0)
		}
	}
}

// bindArg binds one resolved root argument at its BindIndex. The
// driver has no notion of an inline root CBV distinct from a
// descriptor table entry, so a ConstBufferView argument is expected
// to arrive with its single-entry Table already built by the caller
// (engine's descriptor-heap layer, the same one newDescHeap0..3 uses)
// — Buf/Off here only identify which buffer range that table's single
// constant descriptor was last pointed at.
func bindArg(cb driver.CmdBuffer, a BoundArg) {
	if a.Arg == nil || a.Table == nil {
		return
	}
	cb.SetDescTableGraph(a.Table, a.Arg.BindIndex, a.HeapOf)
}
