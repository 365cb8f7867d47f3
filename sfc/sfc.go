// Package sfc derives scalar space-filling-curve keys from 3D positions.
// A position is folded through an octahedral (butterfly) map onto the unit
// square, quantized onto a power-of-two grid, and walked through a Hilbert
// curve; the normalized curve index is the key. Nearby directions produce
// nearby keys, which is what the slot-window gravity gather relies on.
package sfc

import "github.com/go-gl/mathgl/mgl32"

// MaxGridSide bounds the Hilbert grid. 2048^2 cells is a 22-bit index, well
// inside f32 mantissa range after normalization.
const MaxGridSide = 2048

// GridSide rounds the requested resolution up to a power of two inside
// [2, MaxGridSide].
func GridSide(resolution float32) uint32 {
	r := uint32(2)
	for float32(r) < resolution && r < MaxGridSide {
		r <<= 1
	}
	return r
}

func signNotZero(v float32) float32 {
	if v >= 0 {
		return 1
	}
	return -1
}

// Octahedral folds a direction onto [0,1]^2. The lower hemisphere wraps over
// the upper one butterfly-style so the map stays continuous across the
// equator seam. The zero vector maps to the center.
func Octahedral(p mgl32.Vec3) (float32, float32) {
	m := abs(p.X()) + abs(p.Y()) + abs(p.Z())
	if m == 0 {
		return 0.5, 0.5
	}
	x := p.X() / m
	y := p.Y() / m
	if p.Z() < 0 {
		x, y = (1-abs(y))*signNotZero(x), (1-abs(x))*signNotZero(y)
	}
	return x*0.5 + 0.5, y*0.5 + 0.5
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// HilbertIndex converts grid cell (x, y) on a side*side grid to its distance
// along the Hilbert curve. side must be a power of two; x and y must be in
// [0, side).
func HilbertIndex(side, x, y uint32) uint32 {
	var d uint32
	for s := side / 2; s > 0; s /= 2 {
		var rx, ry uint32
		if x&s > 0 {
			rx = 1
		}
		if y&s > 0 {
			ry = 1
		}
		d += s * s * ((3 * rx) ^ ry)
		// Rotate the quadrant so the sub-curve orientation lines up.
		if ry == 0 {
			if rx == 1 {
				x = side - 1 - x
				y = side - 1 - y
			}
			x, y = y, x
		}
	}
	return d
}

// Key maps a position to its SFC key in [0, 1).
func Key(p mgl32.Vec3, resolution float32) float32 {
	side := GridSide(resolution)
	u, v := Octahedral(p)
	x := quantize(u, side)
	y := quantize(v, side)
	return float32(HilbertIndex(side, x, y)) / float32(side*side)
}

func quantize(u float32, side uint32) uint32 {
	c := uint32(u * float32(side))
	if c >= side {
		c = side - 1
	}
	return c
}
