package mavity

import "github.com/go-gl/mathgl/mgl32"

// EmptySlot is the unsigned sentinel for "no edge" / "unassigned". The signed
// seed-side encoding -1 maps onto it.
const EmptySlot = uint32(0xFFFFFFFF)

// ParticleMeta mirrors the per-particle metadata record the kernels carry:
// persistent id, mass, ancillary tint, and the particle's current start
// offset into the edge store.
type ParticleMeta struct {
	PID     uint32
	Mass    float32
	Tint    float32
	EdgePtr uint32
}

// Snapshot is a host copy of the engine state after some tick. Slices are
// owned by the snapshot; backends never alias them with live storage.
type Snapshot struct {
	// Pos holds position xyz plus the SFC key in W.
	Pos []mgl32.Vec4
	// Vel holds velocity xyz; W is unused.
	Vel  []mgl32.Vec4
	Meta []ParticleMeta

	// Ptr and Store are the current CSR layout, EmptySlot marking holes.
	Ptr   []uint32
	Store []uint32

	// Identity maps PID to current physical slot.
	Identity []uint32
}

// N returns the particle count.
func (s *Snapshot) N() int { return len(s.Pos) }

// E returns the edge count.
func (s *Snapshot) E() int { return len(s.Store) }
