// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package bake

import "github.com/smartens/q2re/linear"

// SH9 basis constants (real, order-3 spherical harmonics).
const (
	shL0   = 0.282095
	shL1   = 0.488603
	shL2a  = 1.092548
	shL2b  = 0.315392
	shL2c  = 0.546274
)

// EvalSH9 evaluates the 9 real SH basis functions at the unit
// direction dir, writing the result into out.
func EvalSH9(dir linear.V3, out *[SH9Coeffs]float32) {
	x, y, z := dir[0], dir[1], dir[2]
	out[0] = shL0
	out[1] = shL1 * y
	out[2] = shL1 * z
	out[3] = shL1 * x
	out[4] = shL2a * x * y
	out[5] = shL2a * y * z
	out[6] = shL2b * (3*z*z - 1)
	out[7] = shL2a * x * z
	out[8] = shL2c * (x*x - y*y)
}

// ReconstructSH9 evaluates the irradiance encoded by coeffs in
// direction dir — used by the renderer's diffuse-indirect lookup and
// by tests that verify a bake round-trip preserves the encoded
// function.
func ReconstructSH9(coeffs *[SH9Coeffs]linear.V3, dir linear.V3) linear.V3 {
	var basis [SH9Coeffs]float32
	EvalSH9(dir, &basis)
	var out linear.V3
	for i, b := range basis {
		var c linear.V3
		c.Scale(b, &coeffs[i])
		out.Add(&out, &c)
	}
	return out
}
