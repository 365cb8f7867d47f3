package cpu

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"

	"github.com/oyin-bo/mavity"
	"github.com/oyin-bo/mavity/diag"
)

// randomDataset builds a reproducible particle cloud with a random sparse
// edge set. Edges are mirrored so springs act on both endpoints, and a few
// sentinel holes are punched in to exercise the empty-edge paths.
func randomDataset(rng *rand.Rand, n, edgesPerParticle int) *mavity.Dataset {
	ds := &mavity.Dataset{
		Pos:  make([]mgl32.Vec3, n),
		Vel:  make([]mgl32.Vec3, n),
		Mass: make([]float32, n),
	}
	for i := 0; i < n; i++ {
		ds.Pos[i] = mgl32.Vec3{
			float32(rng.Float64()*2 - 1),
			float32(rng.Float64()*2 - 1),
			float32(rng.Float64()*2 - 1),
		}
		ds.Vel[i] = mgl32.Vec3{
			float32(rng.Float64()*0.01 - 0.005),
			float32(rng.Float64()*0.01 - 0.005),
			float32(rng.Float64()*0.01 - 0.005),
		}
		ds.Mass[i] = 0.5 + float32(rng.Float64())
	}

	adj := make([][]int64, n)
	for i := 0; i < n; i++ {
		for k := 0; k < edgesPerParticle; k++ {
			j := rng.Intn(n)
			if j == i {
				continue
			}
			adj[i] = append(adj[i], int64(j))
			adj[j] = append(adj[j], int64(i))
		}
	}

	ds.Ptr = make([]int64, n+1)
	for i := 0; i < n; i++ {
		ds.Ptr[i+1] = ds.Ptr[i] + int64(len(adj[i]))
		ds.Store = append(ds.Store, adj[i]...)
	}
	// Sentinel holes.
	for i := range ds.Store {
		if rng.Intn(20) == 0 {
			ds.Store[i] = -1
		}
	}

	// Shuffled PIDs: the identity map must work for any assignment.
	perm := rng.Perm(n)
	ds.PID = make([]uint32, n)
	for i, p := range perm {
		ds.PID[i] = uint32(p)
	}
	return ds
}

func defaultParams() mavity.SimParams {
	return mavity.DefaultParams()
}

func TestSentinelAllocation(t *testing.T) {
	ds := &mavity.Dataset{
		Pos:   []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Vel:   make([]mgl32.Vec3, 3),
		Mass:  []float32{1, 1, 1},
		Ptr:   []int64{0, 0, 0, 0},
		Store: nil,
	}
	eng, err := New(ds, defaultParams())
	require.NoError(t, err)

	require.NoError(t, eng.Tick())
	require.Equal(t, 1, eng.Ticks())

	snap, err := eng.Snapshot()
	require.NoError(t, err)
	for i, want := range ds.Pos {
		slot := snap.Identity[uint32(i)]
		got := snap.Pos[slot]
		require.InDelta(t, want.X(), got.X(), 1e-6, "particle %d x", i)
		require.InDelta(t, want.Y(), got.Y(), 1e-6, "particle %d y", i)
		require.InDelta(t, want.Z(), got.Z(), 1e-6, "particle %d z", i)
	}
}

func TestEmptyEdgeStore(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	ds := randomDataset(rng, 100, 0)
	ds.Ptr = make([]int64, 101)
	ds.Store = nil

	eng, err := New(ds, defaultParams())
	require.NoError(t, err)

	prev, err := eng.Snapshot()
	require.NoError(t, err)
	for tick := 0; tick < 100; tick++ {
		require.NoError(t, eng.Tick())
		next, err := eng.Snapshot()
		require.NoError(t, err)
		for _, verr := range diag.Check(prev, next, eng.Params()) {
			t.Fatalf("tick %d: %v", tick+1, verr)
		}
		for i, p := range next.Ptr {
			if p != 0 {
				t.Fatalf("tick %d: ptr[%d] = %d, want 0", tick+1, i, p)
			}
		}
		prev = next
	}
}

func TestSingleParticle(t *testing.T) {
	ds := &mavity.Dataset{
		Pos:   []mgl32.Vec3{{1, 2, 3}},
		Vel:   []mgl32.Vec3{{0.5, -0.25, 0.125}},
		Mass:  []float32{2},
		Ptr:   []int64{0, 0},
		Store: nil,
	}
	p := defaultParams()
	eng, err := New(ds, p)
	require.NoError(t, err)
	require.NoError(t, eng.Tick())

	snap, err := eng.Snapshot()
	require.NoError(t, err)

	keep := 1 - p.Damping
	wantVel := ds.Vel[0].Mul(keep)
	wantPos := ds.Pos[0].Add(wantVel.Mul(p.Dt))
	require.InDelta(t, wantVel.X(), snap.Vel[0].X(), 1e-6)
	require.InDelta(t, wantVel.Y(), snap.Vel[0].Y(), 1e-6)
	require.InDelta(t, wantVel.Z(), snap.Vel[0].Z(), 1e-6)
	require.InDelta(t, wantPos.X(), snap.Pos[0].X(), 1e-6)
	require.InDelta(t, wantPos.Y(), snap.Pos[0].Y(), 1e-6)
	require.InDelta(t, wantPos.Z(), snap.Pos[0].Z(), 1e-6)
}

func TestIdentityRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	ds := randomDataset(rng, 1000, 2)

	eng, err := New(ds, defaultParams())
	require.NoError(t, err)

	for tick := 0; tick < 3; tick++ {
		require.NoError(t, eng.Tick())
		snap, err := eng.Snapshot()
		require.NoError(t, err)
		for i := 0; i < snap.N(); i++ {
			if snap.Identity[snap.Meta[i].PID] != uint32(i) {
				t.Fatalf("tick %d: identity[%d] = %d, want %d",
					tick+1, snap.Meta[i].PID, snap.Identity[snap.Meta[i].PID], i)
			}
		}
	}
}

func TestInvariantsAcrossTicks(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for _, n := range []int{3, 64, 200, 513, 1000} {
		ds := randomDataset(rng, n, 3)
		eng, err := New(ds, defaultParams())
		require.NoError(t, err, "n=%d", n)

		prev, err := eng.Snapshot()
		require.NoError(t, err)

		// Both rolling offsets get exercised over consecutive ticks.
		for tick := 0; tick < 6; tick++ {
			require.NoError(t, eng.Tick())
			next, err := eng.Snapshot()
			require.NoError(t, err)
			for _, verr := range diag.Check(prev, next, eng.Params()) {
				t.Errorf("n=%d tick %d: %v", n, tick+1, verr)
			}
			if t.Failed() {
				t.FailNow()
			}
			prev = next
		}
	}
}

func TestZeroStepIdempotence(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	ds := randomDataset(rng, 300, 2)

	p := defaultParams()
	p.Dt = 0
	eng, err := New(ds, p)
	require.NoError(t, err)

	before, err := eng.Snapshot()
	require.NoError(t, err)
	require.NoError(t, eng.Tick())
	after, err := eng.Snapshot()
	require.NoError(t, err)

	// Positions and velocities are untouched; particles may have moved
	// slots, so compare by PID.
	for i := 0; i < before.N(); i++ {
		pid := before.Meta[i].PID
		j := after.Identity[pid]
		if before.Pos[i] != after.Pos[j] {
			t.Fatalf("pid %d position changed: %v -> %v", pid, before.Pos[i], after.Pos[j])
		}
		if before.Vel[i] != after.Vel[j] {
			t.Fatalf("pid %d velocity changed: %v -> %v", pid, before.Vel[i], after.Vel[j])
		}
	}

	for _, verr := range diag.Check(before, after, p) {
		t.Errorf("zero-step tick: %v", verr)
	}
}

func TestEdgePtrTracksCSR(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	ds := randomDataset(rng, 400, 2)
	eng, err := New(ds, defaultParams())
	require.NoError(t, err)

	for tick := 0; tick < 4; tick++ {
		require.NoError(t, eng.Tick())
		snap, err := eng.Snapshot()
		require.NoError(t, err)
		for i := 0; i < snap.N(); i++ {
			if snap.Meta[i].EdgePtr != snap.Ptr[i] {
				t.Fatalf("tick %d: slot %d edge ptr %d != ptr %d",
					tick+1, i, snap.Meta[i].EdgePtr, snap.Ptr[i])
			}
		}
	}
}
