// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package bake

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Mode selects which clusters a bake run covers.
type Mode int

const (
	AllClusters Mode = iota
	CurrentPositionCluster
)

// Config configures a bake run.
type Config struct {
	Mode            Mode `toml:"-"`
	ModeName        string `toml:"mode"` // "AllClusters" | "CurrentPositionCluster"
	BakingCluster   int    `toml:"baking_cluster"`
	BakedDataPath   string `toml:"baked_data_path"`

	ProbeSamples      int `toml:"probe_samples"`       // PROBE_SAMPLES_NUM
	AreaLightSamples  int `toml:"area_light_samples"`  // AREA_LIGHTS_SAMPLES_NUM
	GuaranteedBounces int `toml:"guaranteed_bounces"`  // GUARANTEED_BOUNCES_NUM

	SamplePointLights bool `toml:"sample_point_lights"`
	SampleAreaLights  bool `toml:"sample_area_lights"`

	PointLightMaxDistance float32 `toml:"point_light_max_distance"`
	PointLightD0          float32 `toml:"point_light_d0"`
	AreaLightMaxDistance  float32 `toml:"area_light_max_distance"`

	GridSpacing float32 `toml:"grid_spacing"` // bake-point grid spacing, default 50
	Epsilon     float32 `toml:"epsilon"`      // AABB shrink / hit-offset epsilon

	MaxConcurrency int `toml:"max_concurrency"` // 0 == GOMAXPROCS
}

// DefaultConfig returns the constants named in the baker's design:
// 50-unit grid spacing, both light types enabled, 64 samples per
// probe, 16 samples per area light and 3 bounces per path.
func DefaultConfig() Config {
	return Config{
		Mode:                  AllClusters,
		ProbeSamples:          64,
		AreaLightSamples:      16,
		GuaranteedBounces:     3,
		SamplePointLights:     true,
		SampleAreaLights:      true,
		PointLightMaxDistance: 1000,
		PointLightD0:          32,
		AreaLightMaxDistance:  1000,
		GridSpacing:           50,
		Epsilon:               0.01,
	}
}

// DecodeConfigFile reads and decodes a Config from a TOML file at
// path, resolving ModeName into Mode.
func DecodeConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); err != nil {
		return cfg, newBakeErrCause(ErrBakingInputInvalid, "config file "+path, err)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, newBakeErrCause(ErrBakingInputInvalid, "decode config "+path, err)
	}
	switch cfg.ModeName {
	case "", "AllClusters":
		cfg.Mode = AllClusters
	case "CurrentPositionCluster":
		cfg.Mode = CurrentPositionCluster
	default:
		return cfg, newBakeErr(ErrBakingInputInvalid, "unknown bake mode "+cfg.ModeName)
	}
	return cfg, nil
}
