package cpu

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oyin-bo/mavity"
)

func TestScanMatchesSerialPrefixSum(t *testing.T) {
	rng := rand.New(rand.NewSource(41))
	for _, n := range []int{1, 2, 3, 64, 127, 128, 129, 1000} {
		ds := randomDataset(rng, n, 2)
		eng, err := New(ds, defaultParams())
		require.NoError(t, err, "n=%d", n)

		for i := 0; i < n; i++ {
			eng.scanA[i] = uint32(rng.Intn(7))
		}
		want := make([]uint32, n)
		var running uint32
		for i := 0; i < n; i++ {
			running += eng.scanA[i]
			want[i] = running
		}

		incl := eng.csrScan()
		for i := 0; i < n; i++ {
			require.Equal(t, want[i], incl[i], "n=%d element %d", n, i)
		}
	}
}

func TestPtrRebuildIsExclusiveScanOfCounts(t *testing.T) {
	rng := rand.New(rand.NewSource(43))
	ds := randomDataset(rng, 600, 3)
	eng, err := New(ds, defaultParams())
	require.NoError(t, err)

	for tick := 0; tick < 4; tick++ {
		offset := (eng.Ticks() % 2) * (mavity.SortSpanSize / 2)
		prevPtr := append([]uint32(nil), eng.ptr...)
		require.NoError(t, eng.Tick())

		// Recompute the expected layout: each new slot owns as many edges
		// as its particle had in the old layout.
		var running uint32
		for i := 0; i < eng.n; i++ {
			old := eng.sourceSlot(i, offset)
			count := prevPtr[old+1] - prevPtr[old]
			require.Equal(t, running, eng.ptr[i], "tick %d slot %d", tick+1, i)
			running += count
		}
		require.Equal(t, uint32(eng.e), eng.ptr[eng.n], "tick %d sentinel", tick+1)
	}
}

func TestCoarseMapBrackets(t *testing.T) {
	rng := rand.New(rand.NewSource(47))
	ds := randomDataset(rng, 500, 4)
	eng, err := New(ds, defaultParams())
	require.NoError(t, err)
	require.NoError(t, eng.Tick())

	stride := uint32(eng.params.EdgeCoarseMapStride)
	for k, p := range eng.coarse {
		t0 := uint32(k) * stride
		if t0 >= uint32(eng.e) {
			continue
		}
		// ptrNew holds the freshly built layout after the tick's swap it
		// became eng.ptr.
		require.LessOrEqual(t, eng.ptr[p], t0, "coarse[%d]", k)
		require.Greater(t, eng.ptr[p+1], t0, "coarse[%d]", k)
	}
}

func TestRelocationPreservesEdgePairs(t *testing.T) {
	rng := rand.New(rand.NewSource(53))
	ds := randomDataset(rng, 800, 3)
	eng, err := New(ds, defaultParams())
	require.NoError(t, err)

	snapBefore, err := eng.Snapshot()
	require.NoError(t, err)
	pairsBefore := countPairs(t, snapBefore)

	for tick := 0; tick < 5; tick++ {
		require.NoError(t, eng.Tick())
	}

	snapAfter, err := eng.Snapshot()
	require.NoError(t, err)
	pairsAfter := countPairs(t, snapAfter)

	require.Equal(t, len(pairsBefore), len(pairsAfter))
	for pair, c := range pairsBefore {
		require.Equal(t, c, pairsAfter[pair], "pair %v", pair)
	}
}

func countPairs(t *testing.T, s *mavity.Snapshot) map[[2]uint32]int {
	t.Helper()
	pairs := map[[2]uint32]int{}
	for i := 0; i < s.N(); i++ {
		for e := s.Ptr[i]; e < s.Ptr[i+1]; e++ {
			target := s.Store[e]
			if target == mavity.EmptySlot {
				continue
			}
			require.Less(t, target, uint32(s.N()))
			pairs[[2]uint32{s.Meta[i].PID, s.Meta[target].PID}]++
		}
	}
	return pairs
}

func TestSentinelEdgesStaySentinel(t *testing.T) {
	rng := rand.New(rand.NewSource(59))
	ds := randomDataset(rng, 300, 2)
	eng, err := New(ds, defaultParams())
	require.NoError(t, err)

	var holes int
	for _, s := range ds.Store {
		if s == -1 {
			holes++
		}
	}
	require.Greater(t, holes, 0, "dataset should have sentinel holes")

	for tick := 0; tick < 4; tick++ {
		require.NoError(t, eng.Tick())
		got := 0
		for _, s := range eng.store {
			if s == mavity.EmptySlot {
				got++
			}
		}
		require.Equal(t, holes, got, "tick %d sentinel count", tick+1)
	}
}
