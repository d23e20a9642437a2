// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package bake

import (
	"math"
	"math/rand/v2"

	"github.com/smartens/q2re/linear"
)

// directIrradiance returns the direct lighting arriving at point,
// arriving from above the plane defined by normal, summed over every
// point and area light in scene and weighted by the surface's
// Lambertian BRDF (albedo/π) at that point. Occluded and back-facing
// contributions are rejected; bsp.PointVisible is the sole
// occlusion test.
func directIrradiance(point, normal, albedo linear.V3, scene Scene, bsp BSPTree, cfg Config, rng *rand.Rand) linear.V3 {
	var out linear.V3

	if cfg.SamplePointLights {
		for _, l := range scene.PointLights() {
			c := pointLightContribution(point, normal, albedo, l, bsp, cfg.PointLightD0)
			out.Add(&out, &c)
		}
	}

	if cfg.SampleAreaLights {
		for _, l := range scene.AreaLights() {
			c := areaLightContribution(point, normal, albedo, l, bsp, cfg.AreaLightSamples, rng)
			out.Add(&out, &c)
		}
	}

	return out
}

// pointLightContribution evaluates a single point light's windowed
// inverse-square falloff:
//
//	falloff = (max(0, 1-(d/dMax)^4))^2 * (d0/d)^2
//
// clamped to 1 for d <= d0 and to 0 for d >= dMax, scaled by the
// surface's Lambertian BRDF (albedo/π) at point.
func pointLightContribution(point, normal, albedo linear.V3, l PointLight, bsp BSPTree, d0 float32) linear.V3 {
	var toLight linear.V3
	toLight.Sub(&l.Position, &point)
	d := toLight.Len()
	if d <= 0 || d >= l.MaxDistance {
		return linear.V3{}
	}
	toLight.Scale(1/d, &toLight)

	cosTheta := normal.Dot(&toLight)
	if cosTheta <= 0 {
		return linear.V3{}
	}

	if !bsp.PointVisible(point, l.Position) {
		return linear.V3{}
	}

	falloff := pointLightFalloff(d, l.MaxDistance, d0)

	var c linear.V3
	c.Scale(l.Intensity*falloff*cosTheta/math.Pi, &l.Color)
	return mulV3(albedo, c)
}

func pointLightFalloff(d, dMax, d0 float32) float32 {
	if d <= d0 {
		return 1
	}
	if d >= dMax {
		return 0
	}
	win := max32(0, 1-pow4(d/dMax))
	win = win * win
	inv := (d0 / d) * (d0 / d)
	return win * inv
}

func pow4(x float32) float32 {
	x2 := x * x
	return x2 * x2
}

// areaLightContribution Monte-Carlo integrates an area light's
// radiance over its mesh, drawing cfg samples via the light's
// precomputed TriCDF and rejecting back-facing, occluded, or
// out-of-range samples before scaling the accumulated estimate by
// light.CDF.Area()/samples (the reciprocal of the uniform-area PDF)
// and by the surface's Lambertian BRDF (albedo/π) at point.
func areaLightContribution(point, normal, albedo linear.V3, l AreaLight, bsp BSPTree, samples int, rng *rand.Rand) linear.V3 {
	if samples <= 0 || l.CDF.Area() <= 0 {
		return linear.V3{}
	}

	var sum linear.V3
	for s := 0; s < samples; s++ {
		x, y, z := rng.Float32(), rng.Float32(), rng.Float32()
		tri, u, v, w := l.CDF.SampleTriangle(x, y, z)

		i0 := l.Mesh.Indices[tri*3+0]
		i1 := l.Mesh.Indices[tri*3+1]
		i2 := l.Mesh.Indices[tri*3+2]
		p0, p1, p2 := l.Mesh.Vertices[i0], l.Mesh.Vertices[i1], l.Mesh.Vertices[i2]

		var samplePt, t0, t1, t2 linear.V3
		t0.Scale(u, &p0)
		t1.Scale(v, &p1)
		t2.Scale(w, &p2)
		samplePt.Add(&t0, &t1)
		samplePt.Add(&samplePt, &t2)

		lightNormal := l.Normals[tri]

		var toSample linear.V3
		toSample.Sub(&samplePt, &point)
		d := toSample.Len()
		if d <= 0 || d >= l.MaxDistance {
			continue
		}
		toSample.Scale(1/d, &toSample)

		cosReceiver := normal.Dot(&toSample)
		if cosReceiver <= 0 {
			continue
		}
		var fromSample linear.V3
		fromSample.Scale(-1, &toSample)
		cosEmitter := lightNormal.Dot(&fromSample)
		if cosEmitter <= 0 {
			continue
		}

		if !bsp.PointVisible(point, samplePt) {
			continue
		}

		geom := (cosReceiver * cosEmitter) / (d * d)
		var c linear.V3
		c.Scale(geom, &l.Radiance)
		sum.Add(&sum, &c)
	}

	scale := l.CDF.Area() / float32(samples) / math.Pi
	sum.Scale(scale, &sum)
	return mulV3(albedo, sum)
}
