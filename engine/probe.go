// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"github.com/smartens/q2re/bake"
	"github.com/smartens/q2re/linear"
)

// diffuseProbes is the renderer's in-memory form of a bake.BakingData:
// a flat probe array plus whatever lookup the current mode supports.
// Dynamic light-probe interpolation is out of scope; lookups resolve
// to the single nearest baked probe.
type diffuseProbes struct {
	probes []bake.Probe
}

// newDiffuseProbes adapts a completed bake.BakingData into the form
// consumed by Irradiance.
func newDiffuseProbes(data bake.BakingData) diffuseProbes {
	return diffuseProbes{probes: data.Probes}
}

// Irradiance returns the diffuse-indirect irradiance arriving at
// position from direction normal, reconstructed from the nearest
// baked probe's SH9 coefficients. It returns the zero vector when no
// bake has been consumed yet.
func (p *diffuseProbes) Irradiance(position, normal linear.V3) linear.V3 {
	if len(p.probes) == 0 {
		return linear.V3{}
	}
	nearest := &p.probes[0]
	best := distSq(position, nearest.Position)
	for i := 1; i < len(p.probes); i++ {
		if d := distSq(position, p.probes[i].Position); d < best {
			best = d
			nearest = &p.probes[i]
		}
	}
	return bake.ReconstructSH9(&nearest.SH, normal)
}

func distSq(a, b linear.V3) float32 {
	var d linear.V3
	d.Sub(&a, &b)
	return d.Dot(&d)
}
