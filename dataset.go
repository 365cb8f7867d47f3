package mavity

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Dataset carries the seed state the caller supplies at construction. The
// particle count and edge count it implies are fixed for the lifetime of the
// engine; no insertion or removal happens mid-run.
type Dataset struct {
	Pos  []mgl32.Vec3
	Vel  []mgl32.Vec3
	Mass []float32

	// Tint is an ancillary per-particle scalar carried through the pipeline
	// untouched. Optional; defaults to zero.
	Tint []float32

	// PID assigns persistent identifiers. Optional; defaults to 0..N-1.
	// When supplied, the PIDs must be unique and cover [0, N).
	PID []uint32

	// Ptr is the CSR start-offset array, length N+1 with Ptr[N] == len(Store).
	Ptr []int64

	// Store holds edge targets as physical slot indices, -1 meaning empty.
	Store []int64
}

// ParticleCount returns N.
func (d *Dataset) ParticleCount() int { return len(d.Pos) }

// EdgeCount returns E.
func (d *Dataset) EdgeCount() int { return len(d.Store) }

// Validate checks the dataset against the construction-time error taxonomy:
// mismatched array lengths, malformed CSR, out-of-range targets, duplicate
// PIDs. The engine refuses to build on the first violation.
func (d *Dataset) Validate() error {
	n := len(d.Pos)
	if n == 0 {
		return fmt.Errorf("dataset: at least one particle required")
	}
	if len(d.Vel) != n {
		return fmt.Errorf("dataset: velocity length %d != particle count %d", len(d.Vel), n)
	}
	if len(d.Mass) != n {
		return fmt.Errorf("dataset: mass length %d != particle count %d", len(d.Mass), n)
	}
	if d.Tint != nil && len(d.Tint) != n {
		return fmt.Errorf("dataset: tint length %d != particle count %d", len(d.Tint), n)
	}
	if d.PID != nil {
		if len(d.PID) != n {
			return fmt.Errorf("dataset: pid length %d != particle count %d", len(d.PID), n)
		}
		seen := make(map[uint32]bool, n)
		for i, pid := range d.PID {
			if pid >= uint32(n) {
				return fmt.Errorf("dataset: pid %d at slot %d out of range [0, %d)", pid, i, n)
			}
			if seen[pid] {
				return fmt.Errorf("dataset: duplicate pid %d", pid)
			}
			seen[pid] = true
		}
	}
	if len(d.Ptr) != n+1 {
		return fmt.Errorf("dataset: ptr length %d != %d", len(d.Ptr), n+1)
	}
	e := int64(len(d.Store))
	if d.Ptr[0] != 0 {
		return fmt.Errorf("dataset: ptr[0] must be 0, got %d", d.Ptr[0])
	}
	if d.Ptr[n] != e {
		return fmt.Errorf("dataset: ptr[%d] must equal edge count %d, got %d", n, e, d.Ptr[n])
	}
	for i := 0; i < n; i++ {
		if d.Ptr[i] > d.Ptr[i+1] {
			return fmt.Errorf("dataset: ptr not monotone at %d: %d > %d", i, d.Ptr[i], d.Ptr[i+1])
		}
	}
	for i, t := range d.Store {
		if t != -1 && (t < 0 || t >= int64(n)) {
			return fmt.Errorf("dataset: edge %d targets invalid slot %d", i, t)
		}
	}
	return nil
}

// EffectivePID returns the PID array, synthesizing 0..N-1 when none was given.
func (d *Dataset) EffectivePID() []uint32 {
	if d.PID != nil {
		return d.PID
	}
	pids := make([]uint32, len(d.Pos))
	for i := range pids {
		pids[i] = uint32(i)
	}
	return pids
}

// EffectiveTint returns the tint array, synthesizing zeros when none was given.
func (d *Dataset) EffectiveTint() []float32 {
	if d.Tint != nil {
		return d.Tint
	}
	return make([]float32, len(d.Pos))
}
