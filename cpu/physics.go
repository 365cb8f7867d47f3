package cpu

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/oyin-bo/mavity"
	"github.com/oyin-bo/mavity/sfc"
)

// integrate advances every particle one semi-implicit Euler step and
// refreshes its SFC key. Reads the current arrays plus the current CSR
// layout; writes the scratch arrays. Metadata passes through untouched.
func (e *Engine) integrate() {
	p := e.params
	w := p.GravityWindow

	for i := 0; i < e.n; i++ {
		pi := e.pos[i]
		px, py, pz := float64(pi.X()), float64(pi.Y()), float64(pi.Z())
		var ax, ay, az float64

		// Near-field gravity over the slot window. Slot adjacency stands in
		// for spatial adjacency: the array was SFC-sorted last tick.
		lo, hi := i-w, i+w
		if lo < 0 {
			lo = 0
		}
		if hi >= e.n {
			hi = e.n - 1
		}
		for j := lo; j <= hi; j++ {
			if j == i {
				continue
			}
			pj := e.pos[j]
			dx := float64(pj.X()) - px
			dy := float64(pj.Y()) - py
			dz := float64(pj.Z()) - pz
			r2 := dx*dx + dy*dy + dz*dz + float64(p.Eps)
			inv := float64(p.G) * float64(e.meta[j].Mass) / (r2 * math.Sqrt(r2))
			ax += dx * inv
			ay += dy * inv
			az += dz * inv
		}

		// Spring pull toward every edge target. Holes in the store are
		// skipped.
		for idx := e.ptr[i]; idx < e.ptr[i+1]; idx++ {
			t := e.store[idx]
			if t == mavity.EmptySlot {
				continue
			}
			pt := e.pos[t]
			ax += float64(p.SpringK) * (float64(pt.X()) - px)
			ay += float64(p.SpringK) * (float64(pt.Y()) - py)
			az += float64(p.SpringK) * (float64(pt.Z()) - pz)
		}

		// Optional anchor pulling strays back toward the boundary sphere.
		if p.BoundaryK > 0 {
			r := math.Sqrt(px*px + py*py + pz*pz)
			if over := r - float64(p.BoundaryRadius); over > 0 && r > 0 {
				s := over * float64(p.BoundaryK) / r
				ax -= px * s
				ay -= py * s
				az -= pz * s
			}
		}

		vi := e.vel[i]
		vx, vy, vz := float64(vi.X()), float64(vi.Y()), float64(vi.Z())
		if p.Dt > 0 {
			dt := float64(p.Dt)
			keep := 1 - float64(p.Damping)
			vx = (vx + ax*dt) * keep
			vy = (vy + ay*dt) * keep
			vz = (vz + az*dt) * keep
			px += vx * dt
			py += vy * dt
			pz += vz * dt
		}

		np := mgl32.Vec3{float32(px), float32(py), float32(pz)}
		e.posScratch[i] = mgl32.Vec4{np.X(), np.Y(), np.Z(), sfc.Key(np, p.SfcResolution)}
		e.velScratch[i] = mgl32.Vec4{float32(vx), float32(vy), float32(vz), 0}
		e.metaScratch[i] = e.meta[i]
	}
}
