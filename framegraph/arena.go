// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package framegraph

import (
	"github.com/smartens/q2re/driver"
	"github.com/smartens/q2re/internal/bitm"
)

// arenaBlock is the granularity of the arena's free-list bitmap, one
// bit per 256-byte constant-buffer-alignment-sized span (mirroring
// engine's meshBuffer/staging allocators, which use the same
// bitm.Bitm-backed span-allocation idiom).
const arenaBlock = 256

// arena is a per-frame streaming allocator: vertex and const-buffer
// memory is leased from it during UpdateDrawObjects and bulk-released
// when the frame's fence completes, never retained past that point.
type arena struct {
	buf driver.Buffer
	bm  bitm.Bitm[uint32]
}

// newArena creates an arena backed by a host-visible buffer of the
// given size in bytes, rounded up to arenaBlock granularity.
func newArena(gpu driver.GPU, size int64, usage driver.Usage) (*arena, error) {
	nblocks := (size + arenaBlock - 1) / arenaBlock
	buf, err := gpu.NewBuffer(nblocks*arenaBlock, true, usage)
	if err != nil {
		return nil, err
	}
	a := &arena{buf: buf}
	a.bm.Grow(int((nblocks + 31) / 32))
	return a, nil
}

// Lease reserves nbytes worth of contiguous arenaBlock-sized spans
// and returns the byte offset of the reservation within the backing
// buffer. ok is false if the arena has no room left (the caller
// should grow or wait for the next frame).
func (a *arena) Lease(nbytes int64) (offset int64, ok bool) {
	nblocks := int((nbytes + arenaBlock - 1) / arenaBlock)
	if nblocks == 0 {
		nblocks = 1
	}
	idx, found := a.bm.SearchRange(nblocks)
	if !found {
		return 0, false
	}
	for i := idx; i < idx+nblocks; i++ {
		a.bm.Set(i)
	}
	return int64(idx) * arenaBlock, true
}

// Bytes returns the backing buffer's mapped range, for the caller to
// write lease contents into directly (the buffer is always created
// host-visible).
func (a *arena) Bytes() []byte { return a.buf.Bytes() }

// Buffer returns the arena's backing GPU buffer, for binding as a
// ConstBufferView/vertex-buffer handle.
func (a *arena) Buffer() driver.Buffer { return a.buf }

// Release clears every lease, making the whole arena available again.
// Called once the frame fence covering its last use has passed.
func (a *arena) Release() { a.bm.Clear() }

// Destroy releases the arena's backing GPU buffer.
func (a *arena) Destroy() {
	if a.buf != nil {
		a.buf.Destroy()
	}
}

// frameArenas bundles the per-frame const-buffer and vertex streaming
// arenas the pass runtime leases from during UpdateDrawObjects (§4.E).
type frameArenas struct {
	ConstBuf *arena
	Vertex   *arena
}

func newFrameArenas(gpu driver.GPU, constSize, vertSize int64) (*frameArenas, error) {
	cb, err := newArena(gpu, constSize, driver.UShaderConst)
	if err != nil {
		return nil, err
	}
	vb, err := newArena(gpu, vertSize, driver.UVertexData)
	if err != nil {
		cb.Destroy()
		return nil, err
	}
	return &frameArenas{ConstBuf: cb, Vertex: vb}, nil
}

func (f *frameArenas) Release() {
	f.ConstBuf.Release()
	f.Vertex.Release()
}

func (f *frameArenas) Destroy() {
	f.ConstBuf.Destroy()
	f.Vertex.Destroy()
}
