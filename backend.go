package mavity

// Backend runs the per-tick kernel pipeline. Two implementations exist: the
// CPU reference in package cpu and the wgpu compute path in package gpu. Both
// share the same stage order and sentinel conventions, so snapshots from
// either are interchangeable.
type Backend interface {
	Name() string

	// Tick advances the simulation one pass: integrate, sort, reshuffle,
	// identity, prefix-sum, coarse map, relocate, swap.
	Tick() error

	// Ticks returns how many passes have completed.
	Ticks() int

	// Snapshot copies the current state back to the host.
	Snapshot() (*Snapshot, error)

	// Params returns the simulation constants the backend was built with.
	Params() SimParams

	Close() error
}
