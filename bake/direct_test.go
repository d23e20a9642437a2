// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package bake

import (
	"math/rand/v2"
	"testing"

	"github.com/smartens/q2re/linear"
)

func TestPointLightFalloffBoundaries(t *testing.T) {
	const d0, dMax = 10, 100
	if got := pointLightFalloff(d0, dMax, d0); got != 1 {
		t.Fatalf("pointLightFalloff(d0):\nhave %v\nwant 1", got)
	}
	if got := pointLightFalloff(5, dMax, d0); got != 1 {
		t.Fatalf("pointLightFalloff(d<d0):\nhave %v\nwant 1", got)
	}
	if got := pointLightFalloff(dMax, dMax, d0); got != 0 {
		t.Fatalf("pointLightFalloff(dMax):\nhave %v\nwant 0", got)
	}
	if got := pointLightFalloff(dMax*2, dMax, d0); got != 0 {
		t.Fatalf("pointLightFalloff(d>dMax):\nhave %v\nwant 0", got)
	}
	mid := pointLightFalloff(50, dMax, d0)
	if mid <= 0 || mid >= 1 {
		t.Fatalf("pointLightFalloff(mid):\nhave %v\nwant in (0,1)", mid)
	}
}

// alwaysVisibleBSP is a minimal BSPTree stub that reports every point
// pair as mutually visible, exercising the geometry/distance rejection
// logic in isolation from occlusion.
type alwaysVisibleBSP struct{}

func (alwaysVisibleBSP) Clusters() []int                          { return nil }
func (alwaysVisibleBSP) ClusterAABB(int) (linear.V3, linear.V3)    { return linear.V3{}, linear.V3{} }
func (alwaysVisibleBSP) NodeWithPoint(linear.V3) (int, bool)       { return 0, true }
func (alwaysVisibleBSP) PointVisible(a, b linear.V3) bool          { return true }
func (alwaysVisibleBSP) PotentiallyVisible(linear.V3) []int        { return nil }
func (alwaysVisibleBSP) ClosestHit(Ray) (Hit, bool)                { return Hit{}, false }

func TestPointLightContributionEnergyConservation(t *testing.T) {
	light := PointLight{
		Position:    linear.V3{0, 0, 10},
		Color:       linear.V3{0.8, 0.4, 0.2},
		Intensity:   2,
		MaxDistance: 1000,
	}
	point := linear.V3{0, 0, 0}
	normal := linear.V3{0, 0, 1}

	albedo := linear.V3{1, 1, 1}
	c := pointLightContribution(point, normal, albedo, light, alwaysVisibleBSP{}, 1)

	base := linear.V3{}
	base.Scale(light.Intensity, &light.Color)
	for i := 0; i < 3; i++ {
		if c[i] < 0 {
			t.Fatalf("pointLightContribution channel %d = %v, want >= 0", i, c[i])
		}
		if c[i] > base[i]+1e-6 {
			t.Fatalf("pointLightContribution channel %d = %v, want <= base radiance %v", i, c[i], base[i])
		}
	}
}

// TestPointLightContributionScalesLinearlyWithAlbedo guards against
// dropping the surface BRDF term: a sub-1 albedo must scale the
// contribution down by exactly that factor, channel by channel.
func TestPointLightContributionScalesLinearlyWithAlbedo(t *testing.T) {
	light := PointLight{
		Position:    linear.V3{0, 0, 10},
		Color:       linear.V3{0.8, 0.4, 0.2},
		Intensity:   2,
		MaxDistance: 1000,
	}
	point := linear.V3{0, 0, 0}
	normal := linear.V3{0, 0, 1}

	white := pointLightContribution(point, normal, linear.V3{1, 1, 1}, light, alwaysVisibleBSP{}, 1)
	tinted := pointLightContribution(point, normal, linear.V3{0.5, 0.25, 0.1}, light, alwaysVisibleBSP{}, 1)

	want := linear.V3{white[0] * 0.5, white[1] * 0.25, white[2] * 0.1}
	for i := 0; i < 3; i++ {
		if diff := tinted[i] - want[i]; diff > 1e-6 || diff < -1e-6 {
			t.Fatalf("pointLightContribution channel %d with tinted albedo:\nhave %v\nwant %v", i, tinted[i], want[i])
		}
	}
}

func TestPointLightContributionBackFaceRejected(t *testing.T) {
	light := PointLight{Position: linear.V3{0, 0, -10}, Color: linear.V3{1, 1, 1}, Intensity: 1, MaxDistance: 1000}
	c := pointLightContribution(linear.V3{0, 0, 0}, linear.V3{0, 0, 1}, linear.V3{1, 1, 1}, light, alwaysVisibleBSP{}, 1)
	if c != (linear.V3{}) {
		t.Fatalf("pointLightContribution (back-facing):\nhave %v\nwant zero", c)
	}
}

func TestAreaLightContributionEnergyConservation(t *testing.T) {
	mesh := StaticObject{
		Vertices: []linear.V3{{-1, -1, 5}, {1, -1, 5}, {0, 1, 5}},
		Indices:  []uint32{0, 1, 2},
	}
	area := AreaLight{
		Mesh:        mesh,
		Normals:     []linear.V3{{0, 0, -1}},
		Radiance:    linear.V3{1, 1, 1},
		CDF:         NewTriCDF([]float32{2}),
		MaxDistance: 1000,
	}
	rng := rand.New(rand.NewChaCha8([32]byte{4}))
	c := areaLightContribution(linear.V3{0, 0, 0}, linear.V3{0, 0, 1}, linear.V3{1, 1, 1}, area, alwaysVisibleBSP{}, 64, rng)
	for i := 0; i < 3; i++ {
		if c[i] < 0 {
			t.Fatalf("areaLightContribution channel %d = %v, want >= 0", i, c[i])
		}
	}
}

// TestAreaLightContributionScalesLinearlyWithAlbedo mirrors the point-
// light albedo-scaling check for the Monte-Carlo area-light path.
func TestAreaLightContributionScalesLinearlyWithAlbedo(t *testing.T) {
	mesh := StaticObject{
		Vertices: []linear.V3{{-1, -1, 5}, {1, -1, 5}, {0, 1, 5}},
		Indices:  []uint32{0, 1, 2},
	}
	area := AreaLight{
		Mesh:        mesh,
		Normals:     []linear.V3{{0, 0, -1}},
		Radiance:    linear.V3{1, 1, 1},
		CDF:         NewTriCDF([]float32{2}),
		MaxDistance: 1000,
	}
	rng := rand.New(rand.NewChaCha8([32]byte{4}))
	white := areaLightContribution(linear.V3{0, 0, 0}, linear.V3{0, 0, 1}, linear.V3{1, 1, 1}, area, alwaysVisibleBSP{}, 64, rng)

	rng = rand.New(rand.NewChaCha8([32]byte{4}))
	tinted := areaLightContribution(linear.V3{0, 0, 0}, linear.V3{0, 0, 1}, linear.V3{0.5, 0.25, 0.1}, area, alwaysVisibleBSP{}, 64, rng)

	want := linear.V3{white[0] * 0.5, white[1] * 0.25, white[2] * 0.1}
	for i := 0; i < 3; i++ {
		if diff := tinted[i] - want[i]; diff > 1e-6 || diff < -1e-6 {
			t.Fatalf("areaLightContribution channel %d with tinted albedo:\nhave %v\nwant %v", i, tinted[i], want[i])
		}
	}
}

func TestDirectIrradianceRespectsConfigFlags(t *testing.T) {
	scene := &fakeScene{
		points: []PointLight{{Position: linear.V3{0, 0, 10}, Color: linear.V3{1, 1, 1}, Intensity: 1, MaxDistance: 1000}},
	}
	cfg := DefaultConfig()
	cfg.SamplePointLights = false
	cfg.SampleAreaLights = false
	rng := rand.New(rand.NewChaCha8([32]byte{5}))

	out := directIrradiance(linear.V3{}, linear.V3{0, 0, 1}, linear.V3{1, 1, 1}, scene, alwaysVisibleBSP{}, cfg, rng)
	if out != (linear.V3{}) {
		t.Fatalf("directIrradiance with both flags disabled:\nhave %v\nwant zero", out)
	}
}

type fakeScene struct {
	points []PointLight
	areas  []AreaLight
}

func (s *fakeScene) StaticObjects() []StaticObject { return nil }
func (s *fakeScene) PointLights() []PointLight     { return s.points }
func (s *fakeScene) AreaLights() []AreaLight        { return s.areas }
