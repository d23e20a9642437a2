// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package bake

import (
	"math"
	"math/rand/v2"

	"github.com/smartens/q2re/linear"
)

// tracePath walks a single Monte-Carlo diffuse bounce path starting
// at a probe position, in direction dir, gathering direct irradiance
// at each bounce and attenuating it by the accumulated BRDF*cosθ/pdf
// throughput. It stops after cfg.GuaranteedBounces bounces or as soon
// as a bounce ray misses the scene.
//
// Russian roulette is deliberately not implemented: with a fixed,
// small bounce count the variance it would trade away outweighs the
// compute it would save.
func tracePath(origin, dir linear.V3, scene Scene, bsp BSPTree, cfg Config, rng *rand.Rand, dbg *PathDebug) linear.V3 {
	var radiance linear.V3
	throughput := linear.V3{1, 1, 1}

	ray := Ray{Origin: origin, Dir: dir, TMax: cfg.PointLightMaxDistance}
	if cfg.AreaLightMaxDistance > ray.TMax {
		ray.TMax = cfg.AreaLightMaxDistance
	}

	for bounce := 0; bounce < cfg.GuaranteedBounces; bounce++ {
		hit, ok := bsp.ClosestHit(ray)
		if !ok {
			break
		}

		point := offsetPoint(hit.Point, hit.Normal, cfg.Epsilon)

		direct := directIrradiance(point, hit.Normal, hit.Albedo, scene, bsp, cfg, rng)

		gathered := mulV3(throughput, direct)
		radiance.Add(&radiance, &gathered)

		if dbg != nil {
			dbg.Vertices = append(dbg.Vertices, point)
			dbg.Gathered = append(dbg.Gathered, gathered)
		}

		bounceDir, cosTheta := cosineHemisphere(hit.Normal, rng)
		pdf := pdfCosine(cosTheta)
		if pdf <= 0 {
			break
		}

		var brdf linear.V3
		brdf.Scale(1/math.Pi, &hit.Albedo) // Lambertian BRDF = albedo/π, cancelled against pdfCosine's /π
		var weight linear.V3
		weight.Scale(cosTheta/pdf, &brdf)
		throughput = mulV3(throughput, weight)

		ray = Ray{Origin: point, Dir: bounceDir, TMax: ray.TMax}
	}

	return radiance
}

// mulV3 is the component-wise (Hadamard) product used to attenuate
// RGB throughput and radiance; linear.V3 only exposes matrix and
// scalar multiplication, neither of which fits here.
func mulV3(a, b linear.V3) linear.V3 {
	return linear.V3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

// offsetPoint nudges a hit point along its surface normal by eps to
// avoid re-intersecting the originating triangle from floating-point
// round-off.
func offsetPoint(p, n linear.V3, eps float32) linear.V3 {
	var off linear.V3
	off.Scale(eps, &n)
	var out linear.V3
	out.Add(&p, &off)
	return out
}

// integrateProbe fires cfg.ProbeSamples cosine-weighted (and, for the
// probe's own gather, uniform-sphere) bounce paths from position and
// accumulates their radiance into a Probe's SH9 encoding.
func integrateProbe(position linear.V3, scene Scene, bsp BSPTree, cfg Config, rng *rand.Rand, keepDebug bool) Probe {
	p := Probe{Position: position}
	if keepDebug {
		p.Debug = &ProbeDebug{}
	}

	for s := 0; s < cfg.ProbeSamples; s++ {
		dir := uniformSphere(rng)

		var dbg *PathDebug
		if p.Debug != nil {
			dbg = &PathDebug{}
		}

		radiance := tracePath(position, dir, scene, bsp, cfg, rng, dbg)
		p.addSample(dir, radiance)

		if dbg != nil {
			p.Debug.Paths = append(p.Debug.Paths, *dbg)
		}
	}

	p.normalize(cfg.ProbeSamples)
	return p
}
