// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package bake

import (
	"context"
	"encoding/binary"
	"math/rand/v2"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/smartens/q2re/linear"
)

// Baker runs a bake job: a shared-nothing worker pool that claims
// clusters one at a time and integrates every bake point inside each,
// per the configuration it was built with.
type Baker struct {
	cfg   Config
	scene Scene
	bsp   BSPTree

	nextCluster atomic.Int64
	probesBaked atomic.Int64
	totalProbes atomic.Int64
}

// NewBaker builds a Baker over the given scene and visibility
// structure.
func NewBaker(cfg Config, scene Scene, bsp BSPTree) *Baker {
	return &Baker{cfg: cfg, scene: scene, bsp: bsp}
}

// Progress reports how many probes have finished baking out of the
// total scheduled for this run. Safe to call concurrently with Run.
func (b *Baker) Progress() (baked, total int) {
	return int(b.probesBaked.Load()), int(b.totalProbes.Load())
}

// clusterWork is one cluster's worth of bake points, plus the offset
// into the shared Probes slice its results are written to.
type clusterWork struct {
	cluster    int
	firstProbe int
	bakePoints []linear.V3
}

// Run bakes every selected cluster and returns the completed
// BakingData. Each worker claims the next unclaimed cluster in work,
// integrates its bake points sequentially, and writes results into
// disjoint index ranges of the shared Probes slice — no locking is
// needed on probes themselves.
func (b *Baker) Run(ctx context.Context) (BakingData, error) {
	clusters := b.bsp.Clusters()

	var work []clusterWork
	switch b.cfg.Mode {
	case CurrentPositionCluster:
		found := false
		for _, c := range clusters {
			if c == b.cfg.BakingCluster {
				found = true
				break
			}
		}
		if !found {
			return BakingData{}, newBakeErr(ErrBakingInputInvalid, "missing bake position: no cluster matches the configured baking cluster")
		}
		min, max := b.bsp.ClusterAABB(b.cfg.BakingCluster)
		pts := generateClusterBakePoints(min, max, b.cfg.GridSpacing, b.cfg.Epsilon)
		work = []clusterWork{{cluster: b.cfg.BakingCluster, firstProbe: 0, bakePoints: pts}}
	case AllClusters:
		if len(clusters) == 0 {
			return BakingData{}, newBakeErr(ErrBakingInputInvalid, "no clusters in BSP")
		}
		offset := 0
		for _, c := range clusters {
			min, max := b.bsp.ClusterAABB(c)
			pts := generateClusterBakePoints(min, max, b.cfg.GridSpacing, b.cfg.Epsilon)
			work = append(work, clusterWork{cluster: c, firstProbe: offset, bakePoints: pts})
			offset += len(pts)
		}
	}

	total := 0
	for _, w := range work {
		total += len(w.bakePoints)
	}
	b.totalProbes.Store(int64(total))
	b.probesBaked.Store(0)

	probes := make([]Probe, total)

	concurrency := b.cfg.MaxConcurrency
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	if concurrency > len(work) {
		concurrency = len(work)
	}

	b.nextCluster.Store(0)
	rootSeed := [32]byte{1}
	root := rand.New(rand.NewChaCha8(rootSeed))

	grp, gctx := errgroup.WithContext(ctx)
	for worker := 0; worker < concurrency; worker++ {
		workerRng := rand.New(rand.NewChaCha8(splitSeed(root)))
		grp.Go(func() error {
			for {
				idx := int(b.nextCluster.Add(1)) - 1
				if idx >= len(work) {
					return nil
				}
				if gctx.Err() != nil {
					return gctx.Err()
				}
				w := work[idx]
				for i, pt := range w.bakePoints {
					probes[w.firstProbe+i] = integrateProbe(pt, b.scene, b.bsp, b.cfg, workerRng, false)
					b.probesBaked.Add(1)
				}
				baked, total := b.Progress()
				logger.Sugar().Infow("cluster baked",
					"cluster", w.cluster, "probes", len(w.bakePoints), "probesBaked", baked, "totalProbes", total)
			}
		})
	}

	if err := grp.Wait(); err != nil {
		return BakingData{}, newBakeErrCause(ErrBakingInputInvalid, "bake run aborted", err)
	}

	data := BakingData{Mode: b.cfg.Mode, Probes: probes, IsContainCompleteBakingResult: true}
	if b.cfg.Mode == CurrentPositionCluster {
		data.BakingCluster = b.cfg.BakingCluster
	} else {
		// clusterFirstProbeIndices is a prefix sum indexed by cluster
		// id directly, per entry N+1 giving the end-exclusive bound of
		// cluster N's probe range; the trailing entry is the total.
		maxCluster := 0
		for _, w := range work {
			if w.cluster > maxCluster {
				maxCluster = w.cluster
			}
		}
		indices := make([]int, maxCluster+2)
		for _, w := range work {
			indices[w.cluster] = w.firstProbe
		}
		indices[maxCluster+1] = total
		data.ClusterFirstProbeIndices = indices
	}

	return data, nil
}

// splitSeed draws a fresh 32-byte ChaCha8 seed from root, giving each
// worker an independent stream split off the single run-level root
// generator instead of serializing every worker behind one shared RNG
// mutex.
func splitSeed(root *rand.Rand) [32]byte {
	var seed [32]byte
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint64(seed[i*8:], root.Uint64())
	}
	return seed
}

// generateClusterBakePoints lays a uniform 3-D grid of the configured
// spacing inside a cluster's AABB after shrinking it by eps on every
// axis; an axis thinner than 2*eps collapses to exactly one bake
// point along that axis rather than producing an empty grid.
func generateClusterBakePoints(min, max linear.V3, spacing, eps float32) []linear.V3 {
	var shrunkMin, shrunkMax linear.V3
	for i := 0; i < 3; i++ {
		shrunkMin[i] = min[i] + eps
		shrunkMax[i] = max[i] - eps
	}

	xs := gridAxis(shrunkMin[0], shrunkMax[0], spacing, min[0], max[0])
	ys := gridAxis(shrunkMin[1], shrunkMax[1], spacing, min[1], max[1])
	zs := gridAxis(shrunkMin[2], shrunkMax[2], spacing, min[2], max[2])

	points := make([]linear.V3, 0, len(xs)*len(ys)*len(zs))
	for _, x := range xs {
		for _, y := range ys {
			for _, z := range zs {
				points = append(points, linear.V3{x, y, z})
			}
		}
	}
	return points
}

// gridAxis returns the grid coordinates along one axis of the
// shrunken [lo, hi] range, clamping the last sample to hi. When the
// shrink collapsed the axis (lo >= hi), it falls back to the midpoint
// of the original, unshrunk [origLo, origHi] range so a thin cluster
// still gets exactly one bake point along that axis.
func gridAxis(lo, hi, spacing, origLo, origHi float32) []float32 {
	if lo >= hi {
		return []float32{(origLo + origHi) / 2}
	}
	var coords []float32
	for v := lo; v < hi; v += spacing {
		coords = append(coords, v)
	}
	coords = append(coords, hi)
	return coords
}
