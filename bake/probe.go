// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package bake

import (
	"math"

	"github.com/smartens/q2re/linear"
)

// SH9Coeffs is the order-3 real spherical-harmonic basis, 9 RGB
// coefficients, used to encode low-frequency irradiance.
const SH9Coeffs = 9

// Probe is a single diffuse-indirect irradiance probe: nine RGB SH
// coefficients and an optional debug payload (ray-path segments,
// per-sample light-gather info) kept only when a bake run is
// configured to record it.
type Probe struct {
	Position linear.V3
	SH       [SH9Coeffs]linear.V3 // RGB per coefficient

	Debug *ProbeDebug
}

// ProbeDebug records the per-sample path data a bake run can retain
// for visualization and regression testing.
type ProbeDebug struct {
	Paths []PathDebug
}

// PathDebug is one Monte-Carlo sample's walked path: the hit points
// visited and the direct-light contribution gathered at each.
type PathDebug struct {
	Vertices []linear.V3
	Gathered []linear.V3 // direct irradiance gathered at each vertex, RGB
}

// addSample accumulates a direction sample's contribution into the
// probe's SH9, per-channel, without the final Monte-Carlo
// normalization (applied once by integrateProbe, via normalize, after
// every sample of this probe has been added).
func (p *Probe) addSample(dir linear.V3, radiance linear.V3) {
	var basis [SH9Coeffs]float32
	EvalSH9(dir, &basis)
	for i, b := range basis {
		var c linear.V3
		c.Scale(b, &radiance)
		p.SH[i].Add(&p.SH[i], &c)
	}
}

// normalize applies the Monte-Carlo estimator scale of the sphere
// integral: (1 / (1/4π)) / nsamples == 4π / nsamples.
func (p *Probe) normalize(nsamples int) {
	scale := float32(4 * math.Pi / float64(nsamples))
	for i := range p.SH {
		p.SH[i].Scale(scale, &p.SH[i])
	}
}
